// Package pipelinefx provides an fx module for an engine-backed analysis pipeline.
package pipelinefx

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/blunderlab"
	"github.com/discochess/blunderlab/internal/stats"
	"github.com/discochess/blunderlab/internal/stats/logger"
)

// Config holds configuration for the analysis pipeline.
type Config struct {
	// EnginePath is the UCI engine binary to run. Default is "stockfish".
	EnginePath string

	// Depth is the fixed search depth per position. Default is 12.
	Depth int

	// Thresholds classify moves by centipawn loss. Zero value means
	// the default thresholds.
	Thresholds blunderlab.Thresholds

	// Metric ranks a game's notable moves. Default is centipawn loss.
	Metric blunderlab.Metric

	// MoveTimeout bounds a single position search. Default is 30s.
	MoveTimeout time.Duration
}

// Module provides an analysis pipeline backed by a UCI engine.
// Requires a *zap.Logger to be provided.
var Module = fx.Module("pipeline",
	fx.Provide(
		newStatsCollector,
		newPipeline,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("blunderlab.stats"))
}

// Params holds dependencies for creating the pipeline.
type Params struct {
	fx.In

	Config    Config
	Logger    *zap.Logger
	Collector stats.Collector
	Lifecycle fx.Lifecycle
}

// Result holds the provided pipeline.
type Result struct {
	fx.Out

	Pipeline *blunderlab.Pipeline
}

func newPipeline(p Params) (Result, error) {
	opts := []blunderlab.Option{
		blunderlab.WithStats(p.Collector),
		blunderlab.WithLogger(p.Logger.Named("blunderlab")),
	}
	if p.Config.EnginePath != "" {
		opts = append(opts, blunderlab.WithEnginePath(p.Config.EnginePath))
	}
	if p.Config.Depth > 0 {
		opts = append(opts, blunderlab.WithDepth(p.Config.Depth))
	}
	if p.Config.Thresholds != (blunderlab.Thresholds{}) {
		opts = append(opts, blunderlab.WithThresholds(p.Config.Thresholds))
	}
	if p.Config.Metric != "" {
		opts = append(opts, blunderlab.WithMetric(p.Config.Metric))
	}
	if p.Config.MoveTimeout > 0 {
		opts = append(opts, blunderlab.WithMoveTimeout(p.Config.MoveTimeout))
	}

	pipeline, err := blunderlab.New(opts...)
	if err != nil {
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return pipeline.Close()
		},
	})

	return Result{Pipeline: pipeline}, nil
}
