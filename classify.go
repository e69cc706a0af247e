package blunderlab

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidThresholds indicates the classification thresholds are not
// strictly ascending positive values.
var ErrInvalidThresholds = errors.New("blunderlab: invalid thresholds")

// Thresholds are the centipawn-loss boundaries between move quality
// labels. Each boundary is inclusive: a loss equal to Blunder classifies
// as a blunder.
type Thresholds struct {
	Inaccuracy int
	Mistake    int
	Blunder    int
}

// DefaultThresholds match the conventional 50/100/200 centipawn bands.
func DefaultThresholds() Thresholds {
	return Thresholds{Inaccuracy: 50, Mistake: 100, Blunder: 200}
}

// Validate fails fast when the thresholds would make classification
// ill-defined. Must hold: 0 < Inaccuracy < Mistake < Blunder.
func (t Thresholds) Validate() error {
	if t.Inaccuracy <= 0 || t.Mistake <= t.Inaccuracy || t.Blunder <= t.Mistake {
		return fmt.Errorf("%w: inaccuracy=%d mistake=%d blunder=%d",
			ErrInvalidThresholds, t.Inaccuracy, t.Mistake, t.Blunder)
	}
	return nil
}

// Label returns the highest label whose threshold does not exceed the
// centipawn loss.
func (t Thresholds) Label(cpLoss int) Label {
	switch {
	case cpLoss >= t.Blunder:
		return LabelBlunder
	case cpLoss >= t.Mistake:
		return LabelMistake
	case cpLoss >= t.Inaccuracy:
		return LabelInaccuracy
	default:
		return LabelNormal
	}
}

// Metric selects the ranking key used to pick the worst move of a game.
type Metric string

// Ranking metrics.
const (
	MetricCPLoss  Metric = "cp_loss"
	MetricWPSwing Metric = "wp_swing"
)

// ParseMetric validates a metric name from configuration.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricCPLoss, MetricWPSwing:
		return Metric(s), nil
	default:
		return "", fmt.Errorf("blunderlab: unknown ranking metric %q", s)
	}
}

// Value returns the record's ranking value under the metric. Win
// probability swings rank by magnitude; the sign is reporting detail.
func (m Metric) Value(r MoveRecord) float64 {
	if m == MetricWPSwing {
		return math.Abs(r.WPSwing)
	}
	return float64(r.CPLoss)
}

// SelectWorst picks the tracked player's worst move among the already
// classified records: the maximum ranking value over moves labeled
// inaccuracy or worse, ties broken by earliest ply. Returns nil when no
// player move is notable.
func SelectWorst(records []MoveRecord, metric Metric) *BlunderRecord {
	var best *MoveRecord
	var bestVal float64
	for i := range records {
		r := &records[i]
		if !r.IsPlayer || !r.Label.Notable() {
			continue
		}
		v := metric.Value(*r)
		if best == nil || v > bestVal {
			best = r
			bestVal = v
		}
	}
	if best == nil {
		return nil
	}
	return &BlunderRecord{
		MoveRecord:  *best,
		Metric:      metric,
		MetricValue: bestVal,
	}
}
