// Package stats provides a unified interface for collecting pipeline metrics.
package stats

// Metric names used throughout the pipeline.
const (
	// Run metrics.
	MetricGames       = "blunderlab_games_total"
	MetricGamesFailed = "blunderlab_games_failed_total"
	MetricBlunders    = "blunderlab_blunders_total"
	MetricChapters    = "blunderlab_chapters_total"

	// Engine metrics.
	MetricEvaluations    = "blunderlab_evaluations_total"
	MetricEngineRestarts = "blunderlab_engine_restarts_total"
	MetricEngineTimeouts = "blunderlab_engine_timeouts_total"

	// MetricEvaluateSeconds is a histogram of per-position search time.
	MetricEvaluateSeconds = "blunderlab_evaluate_duration_seconds"
)

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
