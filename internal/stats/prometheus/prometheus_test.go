package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/discochess/blunderlab/internal/stats"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, m := range metrics {
		if m.GetName() == name {
			return m.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("counter %s not found in registry", name)
	return 0
}

func TestCollector_IncCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.IncCounter(stats.MetricGames, 5)
	c.IncCounter(stats.MetricGames, 3)

	if val := counterValue(t, reg, stats.MetricGames); val != 8 {
		t.Errorf("counter value = %v, want 8", val)
	}
}

func TestCollector_AllCountersRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	// Every pipeline counter exists up front, even before the first
	// increment.
	for _, name := range counterNames {
		c.IncCounter(name, 1)
		if val := counterValue(t, reg, name); val != 1 {
			t.Errorf("counter %s = %v, want 1", name, val)
		}
	}
}

func TestCollector_UnknownNameDropped(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	// Not part of the pipeline's metric surface; must not panic or
	// register anything new.
	c.IncCounter("made_up_counter", 1)
	c.ObserveHistogram("made_up_histogram", 1)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, m := range metrics {
		if m.GetName() == "made_up_counter" || m.GetName() == "made_up_histogram" {
			t.Errorf("unexpected metric %s registered", m.GetName())
		}
	}
}

func TestCollector_ObserveHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveHistogram(stats.MetricEvaluateSeconds, 0.3)
	c.ObserveHistogram(stats.MetricEvaluateSeconds, 1.2)
	c.ObserveHistogram(stats.MetricEvaluateSeconds, 4.0)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, m := range metrics {
		if m.GetName() == stats.MetricEvaluateSeconds {
			found = true
			if count := m.GetMetric()[0].GetHistogram().GetSampleCount(); count != 3 {
				t.Errorf("histogram count = %v, want 3", count)
			}
		}
	}
	if !found {
		t.Errorf("histogram %s not found in registry", stats.MetricEvaluateSeconds)
	}
}

func TestCollector_AlreadyRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()

	existing := prometheus.NewCounter(prometheus.CounterOpts{
		Name: stats.MetricGames,
		Help: stats.MetricGames,
	})
	reg.MustRegister(existing)
	existing.Add(100)

	// The collector adopts the preexisting counter instead of failing.
	c := New(reg)
	c.IncCounter(stats.MetricGames, 5)

	if val := counterValue(t, reg, stats.MetricGames); val != 105 {
		t.Errorf("counter value = %v, want 105", val)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				c.IncCounter(stats.MetricEvaluations, 1)
				c.ObserveHistogram(stats.MetricEvaluateSeconds, float64(j))
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if val := counterValue(t, reg, stats.MetricEvaluations); val != 1000 {
		t.Errorf("counter value = %v, want 1000", val)
	}
}
