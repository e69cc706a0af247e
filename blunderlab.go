// Package blunderlab turns a player's recent games into annotated
// blunder chapters: it drives a chess engine over every move, derives
// per-move quality metrics, classifies each move, and selects the
// single worst mistake per game as a replayable study chapter.
//
// Example usage:
//
//	pipeline, err := blunderlab.New(
//	    blunderlab.WithEnginePath("stockfish"),
//	    blunderlab.WithDepth(12),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pipeline.Close()
//
//	report, err := pipeline.Run(ctx, games)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, ch := range report.Chapters {
//	    fmt.Print(ch.PGN())
//	}
package blunderlab

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/discochess/blunderlab/internal/stats"
	"github.com/discochess/blunderlab/internal/uci"
)

// ErrClosed indicates the pipeline has been closed.
var ErrClosed = errors.New("blunderlab: pipeline closed")

// Stage names used in failure records.
const (
	StageEvaluate = "evaluate"
	StageClassify = "classify"
	StageChapter  = "chapter"
)

// GameFailure records one game the run skipped, with the stage that
// failed and the reason.
type GameFailure struct {
	GameID string
	Stage  string
	Reason string
}

// Report accumulates everything one run produced: the three output
// tables, the synthesized chapters, and the failure ledger.
type Report struct {
	// RunID uniquely identifies the run in logs and outputs.
	RunID string

	// Metric is the ranking metric the run selected blunders by.
	Metric Metric

	Summaries []GameSummary
	Moves     []MoveRecord
	Blunders  []BlunderRecord
	Chapters  []*Chapter

	// Failures lists games that were marked failed and skipped.
	Failures []GameFailure

	// Skipped counts games whose player moves never reached the
	// inaccuracy threshold, so no blunder was selected.
	Skipped int
}

// Processed returns the number of games that completed evaluation.
func (r *Report) Processed() int {
	return len(r.Summaries)
}

// Pipeline sequences fetch -> evaluate -> classify -> select -> emit
// across games, reusing one engine session for the whole run and
// isolating per-game failures. Games are processed strictly one at a
// time: the session is single-flight and the engine call is the only
// operation that blocks for a non-trivial duration.
type Pipeline struct {
	engine     Evaluator
	session    io.Closer
	depth      int
	thresholds Thresholds
	metric     Metric
	stats      stats.Collector
	logger     *zap.Logger
	closed     atomic.Bool
}

// New creates a Pipeline. Threshold validation happens here, before
// any engine work starts: invalid configuration prevents the run. The
// engine session is launched eagerly unless an Evaluator is injected,
// and ErrUnavailable from the engine setup is fatal.
func New(opts ...Option) (*Pipeline, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	if err := cfg.thresholds.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		engine:     cfg.evaluator,
		depth:      cfg.depth,
		thresholds: cfg.thresholds,
		metric:     cfg.metric,
		stats:      cfg.stats,
		logger:     cfg.logger,
	}

	if p.engine == nil {
		session, err := uci.New(cfg.enginePath,
			uci.WithLogger(cfg.logger.Named("uci")),
			uci.WithHandshakeTimeout(cfg.handshakeTimeout),
			uci.WithMoveTimeout(cfg.moveTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("opening engine session: %w", err)
		}
		p.session = session
		p.engine = &engineEvaluator{session: session, stats: cfg.stats, logger: cfg.logger}
	}

	p.logger.Debug("pipeline initialized",
		zap.Int("depth", p.depth),
		zap.String("metric", string(p.metric)),
	)

	return p, nil
}

// Run processes the games in order and returns the accumulated report.
// A game that fails evaluation or chapter synthesis is recorded and
// skipped; the run aborts only on cancellation, which is observed
// between per-move evaluations.
func (p *Pipeline) Run(ctx context.Context, games []Game) (*Report, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}

	report := &Report{
		RunID:  uuid.NewString(),
		Metric: p.metric,
	}
	p.logger.Info("run started",
		zap.String("runID", report.RunID),
		zap.Int("games", len(games)),
	)

	for _, g := range games {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		p.processGame(ctx, g, report)
	}

	p.logger.Info("run finished",
		zap.String("runID", report.RunID),
		zap.Int("processed", report.Processed()),
		zap.Int("failed", len(report.Failures)),
		zap.Int("chapters", len(report.Chapters)),
	)
	return report, nil
}

// processGame walks one game through the per-game state machine.
// Panics during analysis are contained to the game.
func (p *Pipeline) processGame(ctx context.Context, g Game, report *Report) {
	defer func() {
		if r := recover(); r != nil {
			p.fail(report, g, StageEvaluate, fmt.Sprintf("panic: %v", r))
		}
	}()

	records, err := analyzeGame(ctx, p.engine, g, p.depth, p.thresholds)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.fail(report, g, StageEvaluate, err.Error())
		return
	}

	p.stats.IncCounter(stats.MetricGames, 1)
	moveStart := len(report.Moves)
	report.Moves = append(report.Moves, records...)

	selected := SelectWorst(records, p.metric)

	summary := GameSummary{
		GameID:      g.ID,
		EndTime:     g.EndTime,
		Color:       g.Color,
		Opponent:    g.Opponent,
		TimeControl: g.TimeControl,
		Result:      g.Result,
		MoveCount:   len(records),
		WorstLabel:  worstLabel(records),
		Accuracy:    g.Accuracy,
	}

	if selected == nil {
		report.Skipped++
		report.Summaries = append(report.Summaries, summary)
		p.logger.Debug("no notable player move", zap.String("game", g.ID))
		return
	}
	summary.MetricValue = selected.MetricValue

	chapterRec, err := BuildChapter(*selected, g)
	if err != nil {
		// A failed game contributes no rows: the move table joins its
		// metadata from the game summaries.
		report.Moves = report.Moves[:moveStart]
		p.fail(report, g, StageChapter, err.Error())
		return
	}

	report.Summaries = append(report.Summaries, summary)
	report.Blunders = append(report.Blunders, *selected)
	report.Chapters = append(report.Chapters, chapterRec)
	p.stats.IncCounter(stats.MetricBlunders, 1)
	p.stats.IncCounter(stats.MetricChapters, 1)

	p.logger.Debug("blunder selected",
		zap.String("game", g.ID),
		zap.Int("ply", selected.Ply),
		zap.String("label", string(selected.Label)),
		zap.Float64("metric", selected.MetricValue),
	)
}

func (p *Pipeline) fail(report *Report, g Game, stage, reason string) {
	report.Failures = append(report.Failures, GameFailure{
		GameID: g.ID,
		Stage:  stage,
		Reason: reason,
	})
	p.stats.IncCounter(stats.MetricGamesFailed, 1)
	p.logger.Warn("game failed",
		zap.String("game", g.ID),
		zap.String("stage", stage),
		zap.String("reason", reason),
	)
}

// Close releases the engine session. Exactly one close reaches the
// session even when Close is called multiple times.
func (p *Pipeline) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if p.session != nil {
		if err := p.session.Close(); err != nil {
			return fmt.Errorf("closing engine session: %w", err)
		}
	}
	return nil
}

// worstLabel returns the most severe label among the player's moves.
func worstLabel(records []MoveRecord) Label {
	worst := LabelNormal
	for _, r := range records {
		if r.IsPlayer && r.Label.severity() > worst.severity() {
			worst = r.Label
		}
	}
	return worst
}
