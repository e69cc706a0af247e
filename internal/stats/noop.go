package stats

// Noop is a Collector that discards all metrics.
type Noop struct{}

// Compile-time check that Noop implements Collector.
var _ Collector = Noop{}

// NewNoop returns a collector that does nothing.
func NewNoop() Noop { return Noop{} }

// IncCounter does nothing.
func (Noop) IncCounter(string, int64) {}

// ObserveHistogram does nothing.
func (Noop) ObserveHistogram(string, float64) {}
