package report

import (
	"gonum.org/v1/gonum/stat"

	"github.com/discochess/blunderlab"
)

// RunStats aggregates the tracked player's move quality for the run
// summary printed at the end of an analysis.
type RunStats struct {
	// PlayerMoves is the number of player moves evaluated.
	PlayerMoves int

	// MeanCPLoss and StdDevCPLoss describe the player's centipawn
	// loss distribution.
	MeanCPLoss   float64
	StdDevCPLoss float64

	// Per-label counts over player moves.
	Inaccuracies int
	Mistakes     int
	Blunders     int
}

// Summarize computes run statistics over the tracked player's moves.
func Summarize(moves []blunderlab.MoveRecord) RunStats {
	var s RunStats
	losses := make([]float64, 0, len(moves))

	for _, m := range moves {
		if !m.IsPlayer {
			continue
		}
		s.PlayerMoves++
		losses = append(losses, float64(m.CPLoss))

		switch m.Label {
		case blunderlab.LabelInaccuracy:
			s.Inaccuracies++
		case blunderlab.LabelMistake:
			s.Mistakes++
		case blunderlab.LabelBlunder:
			s.Blunders++
		}
	}

	if len(losses) > 0 {
		s.MeanCPLoss = stat.Mean(losses, nil)
	}
	if len(losses) > 1 {
		s.StdDevCPLoss = stat.StdDev(losses, nil)
	}
	return s
}
