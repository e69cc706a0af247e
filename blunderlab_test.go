package blunderlab

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/discochess/blunderlab/internal/uci"
)

func TestNew_InvalidThresholds(t *testing.T) {
	_, err := New(
		WithEvaluator(newScripted()),
		WithThresholds(Thresholds{Inaccuracy: 100, Mistake: 50, Blunder: 200}),
	)
	if !errors.Is(err, ErrInvalidThresholds) {
		t.Fatalf("New() error = %v, want ErrInvalidThresholds", err)
	}
}

func TestPipeline_Run(t *testing.T) {
	// Three games through one session. The first dies on an engine
	// timeout, the second contains exactly one blunder at ply 3, the
	// third is clean. The failure must not poison the games after it.
	eng := newScripted(
		// Second game, "e4 e5 Nf3 a5": ply 3 swings the mover from +50
		// to -260, a 310 centipawn loss.
		cpEval(20, "e2e4"), cpEval(-20, "e7e5"),
		cpEval(-20, "e7e5"), cpEval(20, "g1f3"),
		cpEval(20, "g1f3"), cpEval(50, "b8c6"),
		cpEval(50, "b8c6"), cpEval(260, "d2d4"),
		// Third game, "d4": no loss.
		cpEval(20, "d2d4"), cpEval(-20, "g8f6"),
	)
	eng.errAt = 0
	eng.err = uci.ErrTimeout

	p, err := New(
		WithEvaluator(eng),
		WithThresholds(Thresholds{Inaccuracy: 50, Mistake: 100, Blunder: 300}),
		WithMetric(MetricCPLoss),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	games := []Game{
		{ID: "game/fail", Color: White, Opponent: "a", Moves: []string{"e4"}},
		{ID: "game/blunder", Color: Black, Opponent: "b", Moves: []string{"e4", "e5", "Nf3", "a5"}},
		{ID: "game/quiet", Color: White, Opponent: "c", Moves: []string{"d4"}},
	}

	report, err := p.Run(context.Background(), games)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.RunID == "" {
		t.Error("Run() produced empty run ID")
	}

	if len(report.Failures) != 1 {
		t.Fatalf("got %d failures, want 1", len(report.Failures))
	}
	f := report.Failures[0]
	if f.GameID != "game/fail" || f.Stage != StageEvaluate {
		t.Errorf("failure = %+v, want game/fail at evaluate", f)
	}
	if !strings.Contains(f.Reason, uci.ErrTimeout.Error()) {
		t.Errorf("failure reason %q does not name the timeout", f.Reason)
	}

	if report.Processed() != 2 {
		t.Errorf("Processed() = %d, want 2", report.Processed())
	}
	if report.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", report.Skipped)
	}
	if len(report.Moves) != 5 {
		t.Errorf("got %d move records, want 5", len(report.Moves))
	}

	if len(report.Blunders) != 1 {
		t.Fatalf("got %d blunders, want 1", len(report.Blunders))
	}
	b := report.Blunders[0]
	if b.GameID != "game/blunder" || b.Ply != 3 {
		t.Errorf("blunder = game %q ply %d, want game/blunder ply 3", b.GameID, b.Ply)
	}
	if b.CPLoss != 310 || b.Label != LabelBlunder || b.MetricValue != 310 {
		t.Errorf("blunder = cp_loss %d label %q metric %v", b.CPLoss, b.Label, b.MetricValue)
	}

	if len(report.Chapters) != 1 {
		t.Fatalf("got %d chapters, want 1", len(report.Chapters))
	}
	ch := report.Chapters[0]
	// The chapter opens from the position before the blunder. That
	// position was the engine's 8th consultation: the first game burned
	// one call, then three and a half plies of pairs.
	if ch.StartFEN != eng.fens[7] {
		t.Errorf("chapter start = %q, want position before ply 3 (%q)", ch.StartFEN, eng.fens[7])
	}
	if ch.PlayedSAN != "a5" {
		t.Errorf("chapter played move = %q, want a5", ch.PlayedSAN)
	}
	if ch.BestSAN != "Nc6" {
		t.Errorf("chapter best move = %q, want Nc6", ch.BestSAN)
	}

	summaries := map[string]GameSummary{}
	for _, s := range report.Summaries {
		summaries[s.GameID] = s
	}
	if s := summaries["game/blunder"]; s.WorstLabel != LabelBlunder || s.MetricValue != 310 {
		t.Errorf("blunder game summary = %+v", s)
	}
	if s := summaries["game/quiet"]; s.WorstLabel != LabelNormal || s.MoveCount != 1 {
		t.Errorf("quiet game summary = %+v", s)
	}
}

func TestPipeline_RunCancelled(t *testing.T) {
	p, err := New(WithEvaluator(newScripted()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Run(ctx, []Game{{ID: "g", Moves: []string{"e4"}}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
}

func TestPipeline_Close(t *testing.T) {
	p, err := New(WithEvaluator(newScripted()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close() error = %v, want ErrClosed", err)
	}
	if _, err := p.Run(context.Background(), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Run() after Close error = %v, want ErrClosed", err)
	}
}

func TestPipeline_ChapterFailureDropsGame(t *testing.T) {
	// First game, "e4 f6" with the player as Black: ply 1 is a mistake,
	// but the engine's best move for that position names a white pawn
	// push, so chapter synthesis rejects it.
	eng := newScripted(
		cpEval(30, "e2e4"),
		cpEval(-30, "e7e5"),
		cpEval(-30, "e2e4"),
		cpEval(150, "d2d4"),
		// Second game, "d4": clean.
		cpEval(20, "d2d4"),
		cpEval(-20, "g8f6"),
	)
	p, err := New(WithEvaluator(eng))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	report, err := p.Run(context.Background(), []Game{
		{ID: "game/badbest", Color: Black, Opponent: "a", Moves: []string{"e4", "f6"}},
		{ID: "game/quiet", Color: White, Opponent: "b", Moves: []string{"d4"}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(report.Failures) != 1 {
		t.Fatalf("got %d failures, want 1", len(report.Failures))
	}
	f := report.Failures[0]
	if f.GameID != "game/badbest" || f.Stage != StageChapter {
		t.Errorf("failure = %+v, want game/badbest at chapter", f)
	}
	if !strings.Contains(f.Reason, ErrChapterBuild.Error()) {
		t.Errorf("failure reason %q does not name the chapter error", f.Reason)
	}

	// The failed game leaves nothing behind. Every remaining move row
	// has a matching summary so downstream joins see full metadata.
	if report.Processed() != 1 {
		t.Errorf("Processed() = %d, want 1", report.Processed())
	}
	if len(report.Moves) != 1 {
		t.Fatalf("got %d move records, want the clean game's only", len(report.Moves))
	}
	if report.Moves[0].GameID != "game/quiet" {
		t.Errorf("surviving move belongs to %q, want game/quiet", report.Moves[0].GameID)
	}
	if len(report.Blunders) != 0 || len(report.Chapters) != 0 {
		t.Errorf("got %d blunders and %d chapters, want none",
			len(report.Blunders), len(report.Chapters))
	}
}

func TestPipeline_IllegalMoveSkipsGame(t *testing.T) {
	eng := newScripted(cpEval(20, "d2d4"), cpEval(-20, "g8f6"))
	p, err := New(WithEvaluator(eng))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	report, err := p.Run(context.Background(), []Game{
		{ID: "game/corrupt", Color: White, Moves: []string{"Ke5"}},
		{ID: "game/ok", Color: White, Moves: []string{"d4"}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(report.Failures) != 1 || report.Failures[0].GameID != "game/corrupt" {
		t.Fatalf("failures = %+v, want game/corrupt only", report.Failures)
	}
	if report.Processed() != 1 {
		t.Errorf("Processed() = %d, want 1", report.Processed())
	}
}
