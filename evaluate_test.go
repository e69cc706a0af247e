package blunderlab

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

// scriptedEvaluator replays a fixed sequence of evaluations, one per
// Evaluate call, and records the positions it was asked about.
type scriptedEvaluator struct {
	scores []Evaluation
	calls  int
	fens   []string

	errAt int // call index that fails, -1 for never
	err   error
}

func newScripted(scores ...Evaluation) *scriptedEvaluator {
	return &scriptedEvaluator{scores: scores, errAt: -1}
}

func (s *scriptedEvaluator) Evaluate(ctx context.Context, fen string, depth int) (Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return Evaluation{}, err
	}
	i := s.calls
	s.calls++
	s.fens = append(s.fens, fen)
	if i == s.errAt {
		return Evaluation{}, s.err
	}
	if i >= len(s.scores) {
		return Evaluation{}, errors.New("script exhausted")
	}
	return s.scores[i], nil
}

func cpEval(cp int, best string) Evaluation {
	return Evaluation{Score: Score{Centipawns: intPtr(cp)}, BestMove: best, Depth: 12}
}

func TestAnalyzeGame(t *testing.T) {
	// Two plies: white plays e4 (fine), black plays f6 (bad). Engine
	// scores are side-to-move relative, so every after-score is the
	// opponent's view of the position just reached.
	eng := newScripted(
		cpEval(30, "e2e4"),   // before e4, white to move
		cpEval(-30, "e7e5"),  // after e4, black to move
		cpEval(-30, "e7e5"),  // before f6, black to move
		cpEval(150, "d2d4"),  // after f6, white to move
	)
	g := Game{
		ID:    "https://example.org/game/1",
		Color: Black,
		Moves: []string{"e4", "f6"},
	}

	records, err := analyzeGame(context.Background(), eng, g, 12, DefaultThresholds())
	if err != nil {
		t.Fatalf("analyzeGame() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	// Two evaluations per ply.
	if eng.calls != 4 {
		t.Errorf("engine calls = %d, want 4", eng.calls)
	}
	if eng.fens[0] != startingFEN {
		t.Errorf("first evaluated position = %q, want start position", eng.fens[0])
	}
	// The after-position of one ply is the before-position of the next.
	if eng.fens[1] != eng.fens[2] {
		t.Errorf("ply boundary positions differ: %q vs %q", eng.fens[1], eng.fens[2])
	}

	white := records[0]
	if white.Ply != 0 || white.Color != White || white.IsPlayer {
		t.Errorf("ply 0 record = %+v, want white opponent move", white)
	}
	// Mover perspective: before +30, after -(-30) = +30, no loss.
	if white.CPLoss != 0 || white.Label != LabelNormal {
		t.Errorf("ply 0 cp_loss = %d label = %q, want 0 normal", white.CPLoss, white.Label)
	}
	if white.SAN != "e4" || white.UCI != "e2e4" {
		t.Errorf("ply 0 san/uci = %q/%q, want e4/e2e4", white.SAN, white.UCI)
	}

	black := records[1]
	if black.Ply != 1 || black.Color != Black || !black.IsPlayer {
		t.Errorf("ply 1 record = %+v, want black player move", black)
	}
	// Mover perspective: before -30, after -(+150) = -150, loss 120.
	if black.CPLoss != 120 {
		t.Errorf("ply 1 cp_loss = %d, want 120", black.CPLoss)
	}
	if black.Label != LabelMistake {
		t.Errorf("ply 1 label = %q, want mistake", black.Label)
	}
	if black.WPSwing >= 0 {
		t.Errorf("ply 1 wp_swing = %v, want negative", black.WPSwing)
	}
	if black.EvalAfter.BestMove != "d2d4" {
		t.Errorf("ply 1 after best move = %q, want d2d4", black.EvalAfter.BestMove)
	}
	if black.MoveNumber() != 1 {
		t.Errorf("ply 1 move number = %d, want 1", black.MoveNumber())
	}
}

// Replaying the same game twice with the same scripted engine yields
// identical records.
func TestAnalyzeGame_Deterministic(t *testing.T) {
	g := Game{ID: "g", Color: White, Moves: []string{"e4", "e5", "Nf3", "Nc6"}}
	script := []Evaluation{
		cpEval(20, "e2e4"), cpEval(-20, "e7e5"),
		cpEval(20, "e7e5"), cpEval(-20, "g1f3"),
		cpEval(25, "g1f3"), cpEval(-25, "b8c6"),
		cpEval(25, "b8c6"), cpEval(-20, "f1b5"),
	}

	first, err := analyzeGame(context.Background(), newScripted(script...), g, 12, DefaultThresholds())
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := analyzeGame(context.Background(), newScripted(script...), g, 12, DefaultThresholds())
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("record counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !reflect.DeepEqual(first[i], second[i]) {
			t.Errorf("record %d differs:\n%+v\n%+v", i, first[i], second[i])
		}
	}
}

func TestAnalyzeGame_IllegalMove(t *testing.T) {
	eng := newScripted(cpEval(0, ""))
	g := Game{ID: "g", Color: White, Moves: []string{"Qxf7#"}}

	_, err := analyzeGame(context.Background(), eng, g, 12, DefaultThresholds())
	if !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("analyzeGame() error = %v, want ErrIllegalMove", err)
	}
	if eng.calls != 0 {
		t.Errorf("engine consulted %d times for an unreplayable game, want 0", eng.calls)
	}
}

func TestAnalyzeGame_EngineError(t *testing.T) {
	boom := errors.New("engine gone")
	eng := newScripted(cpEval(20, "e2e4"), cpEval(-20, "e7e5"))
	eng.errAt = 1
	eng.err = boom

	_, err := analyzeGame(context.Background(), eng, Game{Moves: []string{"e4"}}, 12, DefaultThresholds())
	if !errors.Is(err, boom) {
		t.Fatalf("analyzeGame() error = %v, want wrapped engine error", err)
	}
}

func TestAnalyzeGame_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := analyzeGame(ctx, newScripted(), Game{Moves: []string{"e4"}}, 12, DefaultThresholds())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("analyzeGame() error = %v, want context.Canceled", err)
	}
}
