package blunderlab

import "time"

// Label classifies one move's quality.
type Label string

// Move quality labels, ordered from best to worst.
const (
	LabelNormal     Label = "normal"
	LabelInaccuracy Label = "inaccuracy"
	LabelMistake    Label = "mistake"
	LabelBlunder    Label = "blunder"
)

// severity orders labels for worst-of-game reporting.
func (l Label) severity() int {
	switch l {
	case LabelInaccuracy:
		return 1
	case LabelMistake:
		return 2
	case LabelBlunder:
		return 3
	default:
		return 0
	}
}

// Notable reports whether the label is inaccuracy or worse.
func (l Label) Notable() bool {
	return l.severity() > 0
}

// Color is the side a player occupies in a game.
type Color string

// Player colors.
const (
	White Color = "white"
	Black Color = "black"
)

// Other returns the opposing color.
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// Game is one fetched game: identity, metadata, and the ordered move
// list in standard algebraic notation. Immutable once fetched.
type Game struct {
	// ID identifies the game, typically its source URL.
	ID string

	// Color is the side the tracked player occupied.
	Color Color

	// Opponent is the other player's username.
	Opponent string

	// OpponentRating is the opponent's rating at game end, 0 if unknown.
	OpponentRating int

	// TimeControl is the source site's time control string.
	TimeControl string

	// Result is the PGN result ("1-0", "0-1", "1/2-1/2", "*").
	Result string

	// EndTime is when the game finished, zero if unknown.
	EndTime time.Time

	// Accuracy is the source site's accuracy score for the tracked
	// player, if it supplied one.
	Accuracy *float64

	// Moves is the full move sequence in algebraic notation.
	Moves []string
}

// MoveRecord is one evaluated ply of a game.
type MoveRecord struct {
	GameID string

	// Ply is the zero-based half-move index.
	Ply int

	// Color is the side that made the move.
	Color Color

	// IsPlayer is true when the tracked player made the move.
	IsPlayer bool

	// SAN and UCI are the played move in both notations.
	SAN string
	UCI string

	// FENBefore and FENAfter bracket the move.
	FENBefore string
	FENAfter  string

	// EvalBefore and EvalAfter are the raw engine evaluations, each
	// from the perspective of the side to move in its position.
	EvalBefore Evaluation
	EvalAfter  Evaluation

	// CPLoss is the mover's centipawn loss for the move, >= 0.
	CPLoss int

	// WPSwing is the mover's signed win-probability change.
	WPSwing float64

	// Label is the classification assigned from CPLoss.
	Label Label
}

// MoveNumber returns the conventional move number for the ply.
func (r MoveRecord) MoveNumber() int {
	return r.Ply/2 + 1
}

// BlunderRecord is the worst move selected for one game.
type BlunderRecord struct {
	MoveRecord

	// Metric is the ranking metric the selection used.
	Metric Metric

	// MetricValue is the record's value under that metric.
	MetricValue float64
}

// GameSummary is the per-game row of the run's summary table.
type GameSummary struct {
	GameID      string
	EndTime     time.Time
	Color       Color
	Opponent    string
	TimeControl string
	Result      string
	MoveCount   int
	WorstLabel  Label
	MetricValue float64
	Accuracy    *float64
}
