package blunderlab

import (
	"time"

	"go.uber.org/zap"

	"github.com/discochess/blunderlab/internal/stats"
)

// Option configures a Pipeline.
type Option interface {
	apply(*options)
}

// options holds the pipeline configuration.
type options struct {
	enginePath       string
	depth            int
	thresholds       Thresholds
	metric           Metric
	handshakeTimeout time.Duration
	moveTimeout      time.Duration
	evaluator        Evaluator
	stats            stats.Collector
	logger           *zap.Logger
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		enginePath:       "stockfish",
		depth:            12,
		thresholds:       DefaultThresholds(),
		metric:           MetricCPLoss,
		handshakeTimeout: 10 * time.Second,
		moveTimeout:      30 * time.Second,
		stats:            stats.NewNoop(),
		logger:           zap.NewNop(),
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithEnginePath sets the engine executable to launch.
// Default is "stockfish".
func WithEnginePath(path string) Option {
	return optionFunc(func(o *options) {
		o.enginePath = path
	})
}

// WithDepth sets the fixed search depth for every evaluation.
// Default is 12.
func WithDepth(depth int) Option {
	return optionFunc(func(o *options) {
		o.depth = depth
	})
}

// WithThresholds sets the classification thresholds.
// They are validated by New before any engine work starts.
func WithThresholds(t Thresholds) Option {
	return optionFunc(func(o *options) {
		o.thresholds = t
	})
}

// WithMetric sets the ranking metric used to select the worst move.
// Default is cp_loss.
func WithMetric(m Metric) Option {
	return optionFunc(func(o *options) {
		o.metric = m
	})
}

// WithMoveTimeout bounds each engine evaluation.
// Default is 30 seconds.
func WithMoveTimeout(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.moveTimeout = d
	})
}

// WithHandshakeTimeout bounds the engine startup handshake.
// Default is 10 seconds.
func WithHandshakeTimeout(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.handshakeTimeout = d
	})
}

// WithEvaluator injects an evaluator instead of launching an engine
// process. The pipeline does not close an injected evaluator.
func WithEvaluator(e Evaluator) Option {
	return optionFunc(func(o *options) {
		o.evaluator = e
	})
}

// WithStats sets the stats collector.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}
