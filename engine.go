package blunderlab

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/blunderlab/internal/stats"
	"github.com/discochess/blunderlab/internal/uci"
)

// engineSession is the slice of uci.Session the evaluator drives.
type engineSession interface {
	Evaluate(ctx context.Context, fen string, depth int) (uci.Evaluation, error)
	Restart() error
}

// engineEvaluator adapts a uci.Session to the Evaluator interface and
// carries the retry policy: a protocol error or timeout is retried once
// against a freshly restarted engine before the failure propagates and
// marks the enclosing game failed.
type engineEvaluator struct {
	session engineSession
	stats   stats.Collector
	logger  *zap.Logger
}

var _ Evaluator = (*engineEvaluator)(nil)

func (e *engineEvaluator) Evaluate(ctx context.Context, fen string, depth int) (Evaluation, error) {
	eval, err := e.evaluateOnce(ctx, fen, depth)
	if err == nil {
		return eval, nil
	}
	if !errors.Is(err, uci.ErrTimeout) && !errors.Is(err, uci.ErrProtocol) {
		return Evaluation{}, err
	}

	if errors.Is(err, uci.ErrTimeout) {
		e.stats.IncCounter(stats.MetricEngineTimeouts, 1)
	}
	e.logger.Warn("engine call failed, restarting and retrying",
		zap.String("fen", fen),
		zap.Error(err),
	)
	e.stats.IncCounter(stats.MetricEngineRestarts, 1)
	if rerr := e.session.Restart(); rerr != nil {
		return Evaluation{}, rerr
	}
	return e.evaluateOnce(ctx, fen, depth)
}

func (e *engineEvaluator) evaluateOnce(ctx context.Context, fen string, depth int) (Evaluation, error) {
	start := time.Now()
	raw, err := e.session.Evaluate(ctx, fen, depth)
	if err != nil {
		return Evaluation{}, err
	}
	e.stats.IncCounter(stats.MetricEvaluations, 1)
	e.stats.ObserveHistogram(stats.MetricEvaluateSeconds, time.Since(start).Seconds())

	return Evaluation{
		Score:    Score{Centipawns: raw.CP, Mate: raw.Mate},
		BestMove: raw.BestMove,
		Depth:    raw.Depth,
	}, nil
}
