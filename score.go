package blunderlab

import (
	"math"
	"strconv"
)

// MateValue is the centipawn value a forced mate saturates to.
// A mate in N maps to MateValue-N (negated when the defender is mated),
// which keeps shorter mates ordered above longer ones and every mate
// ordered above any centipawn score an engine actually reports.
const MateValue = 10000

// winProbScale is the logistic steepness for WinProbability, chosen so
// that a +400cp advantage maps to roughly a 0.90 win probability.
var winProbScale = math.Log(9) / 400

// Score is a single engine score: either centipawns or a forced mate
// distance, from the perspective of the side to move.
type Score struct {
	// Centipawns is the evaluation in centipawns.
	// Nil if the position has a forced mate.
	Centipawns *int

	// Mate is the number of moves until checkmate. Positive means the
	// side to move delivers mate, negative means it receives mate.
	// Nil if there is no forced mate.
	Mate *int
}

// IsMate returns true if the score is a forced checkmate.
func (s Score) IsMate() bool {
	return s.Mate != nil
}

// Centipawn returns the score on a single centipawn scale, mapping mate
// scores onto the saturated MateValue range.
func (s Score) Centipawn() int {
	if s.Mate != nil {
		m := *s.Mate
		if m > 0 {
			return MateValue - m
		}
		// Mate 0: the side to move is already checkmated.
		return -MateValue - m
	}
	if s.Centipawns == nil {
		return 0
	}
	return *s.Centipawns
}

// Negate returns the score from the opponent's perspective.
func (s Score) Negate() Score {
	var out Score
	if s.Centipawns != nil {
		cp := -*s.Centipawns
		out.Centipawns = &cp
	}
	if s.Mate != nil {
		m := -*s.Mate
		out.Mate = &m
	}
	return out
}

// String returns a human-readable score string.
// Examples: "+1.25", "-0.50", "#3", "#-5"
func (s Score) String() string {
	if s.Mate != nil {
		return "#" + strconv.Itoa(*s.Mate)
	}
	if s.Centipawns == nil {
		return "?"
	}
	cp := *s.Centipawns
	sign := "+"
	if cp < 0 {
		sign = "-"
		cp = -cp
	}
	whole := cp / 100
	frac := cp % 100
	if frac < 10 {
		return sign + strconv.Itoa(whole) + ".0" + strconv.Itoa(frac)
	}
	return sign + strconv.Itoa(whole) + "." + strconv.Itoa(frac)
}

// Evaluation is the engine's answer for one position: the score, the
// best move found, and the depth the search ran to.
type Evaluation struct {
	// Score is from the perspective of the side to move.
	Score Score

	// BestMove is the engine's preferred move in UCI notation.
	BestMove string

	// Depth is the search depth the evaluation was reported at.
	Depth int
}

// WinProbability maps a centipawn score to a modeled probability of
// winning in [0, 1], using a logistic curve. Monotonic in cp.
func WinProbability(cp int) float64 {
	return 1 / (1 + math.Exp(-winProbScale*float64(cp)))
}

// CentipawnLoss returns the non-negative centipawn cost of the move
// actually played versus the best continuation. Both scores must already
// be expressed from the mover's perspective.
func CentipawnLoss(before, after Score) int {
	loss := before.Centipawn() - after.Centipawn()
	if loss < 0 {
		return 0
	}
	return loss
}

// WinProbabilitySwing returns the signed change in win probability for
// the mover across a move. Both scores must be mover-perspective.
func WinProbabilitySwing(before, after Score) float64 {
	return WinProbability(after.Centipawn()) - WinProbability(before.Centipawn())
}
