// Package prometheus provides a Prometheus-based stats collector.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/discochess/blunderlab/internal/stats"
)

// counterNames is the fixed set of counters the pipeline emits. The
// metric surface is small and known, so everything is registered up
// front rather than created lazily.
var counterNames = []string{
	stats.MetricGames,
	stats.MetricGamesFailed,
	stats.MetricBlunders,
	stats.MetricChapters,
	stats.MetricEvaluations,
	stats.MetricEngineRestarts,
	stats.MetricEngineTimeouts,
}

// evaluateBuckets cover sub-second shallow searches up to the move
// timeout ceiling.
var evaluateBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// Collector implements stats.Collector using Prometheus metrics.
type Collector struct {
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

// Compile-time check that Collector implements stats.Collector.
var _ stats.Collector = (*Collector)(nil)

// New creates a collector with all pipeline metrics registered.
// If registry is nil, prometheus.DefaultRegisterer is used.
func New(registry prometheus.Registerer) *Collector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	c := &Collector{
		counters:   make(map[string]prometheus.Counter, len(counterNames)),
		histograms: make(map[string]prometheus.Histogram, 1),
	}

	for _, name := range counterNames {
		c.counters[name] = register(registry, prometheus.NewCounter(prometheus.CounterOpts{
			Name: name,
			Help: name,
		}))
	}
	c.histograms[stats.MetricEvaluateSeconds] = registerHistogram(registry,
		prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    stats.MetricEvaluateSeconds,
			Help:    stats.MetricEvaluateSeconds,
			Buckets: evaluateBuckets,
		}))

	return c
}

// IncCounter increments a counter metric. Unknown names are dropped.
func (c *Collector) IncCounter(name string, delta int64) {
	if counter, ok := c.counters[name]; ok {
		counter.Add(float64(delta))
	}
}

// ObserveHistogram records a value in a histogram. Unknown names are dropped.
func (c *Collector) ObserveHistogram(name string, value float64) {
	if histogram, ok := c.histograms[name]; ok {
		histogram.Observe(value)
	}
}

func register(r prometheus.Registerer, counter prometheus.Counter) prometheus.Counter {
	if err := r.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing
			}
		}
	}
	return counter
}

func registerHistogram(r prometheus.Registerer, histogram prometheus.Histogram) prometheus.Histogram {
	if err := r.Register(histogram); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing
			}
		}
	}
	return histogram
}
