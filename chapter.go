package blunderlab

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/notnil/chess"
)

// ErrChapterBuild indicates a chapter could not be re-validated against
// the rules of the game at synthesis time.
var ErrChapterBuild = errors.New("blunderlab: chapter build failed")

const startingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Chapter is a single replayable study entry synthesized from a
// blunder: the position before the mistake, the move that was played as
// the main line, and the engine's best move as a one-ply variation.
type Chapter struct {
	// Name is the display name for the chapter.
	Name string

	// GameID is the source game, also recorded as provenance in the
	// Annotator tag. The Site tag is deliberately left blank so the
	// publisher can fill it with a permanent reference.
	GameID string

	// StartFEN is the position the chapter opens from.
	StartFEN string

	// PlayedSAN and BestSAN are the main-line and variation moves.
	PlayedSAN string
	BestSAN   string

	// MoveNumber is the conventional move number at StartFEN.
	MoveNumber int

	// BlackToMove records which side makes the chapter's move.
	BlackToMove bool

	// Label is the classification of the played move.
	Label Label

	// CPLoss and WPSwing annotate the main line.
	CPLoss  int
	WPSwing float64

	// Tag-pair metadata.
	Event  string
	Date   string
	White  string
	Black  string
	Result string
}

// BuildChapter synthesizes a chapter from a selected blunder. Both the
// played move and the engine's best move are re-validated against the
// starting position; replay drift upstream surfaces here as
// ErrChapterBuild rather than as a corrupt chapter.
func BuildChapter(b BlunderRecord, g Game) (*Chapter, error) {
	fenOpt, err := chess.FEN(b.FENBefore)
	if err != nil {
		return nil, fmt.Errorf("%w: bad starting position: %v", ErrChapterBuild, err)
	}
	pos := chess.NewGame(fenOpt).Position()

	playedSAN, err := validateUCI(pos, b.UCI)
	if err != nil {
		return nil, fmt.Errorf("%w: played move %q: %v", ErrChapterBuild, b.UCI, err)
	}

	best := b.EvalBefore.BestMove
	var bestSAN string
	if best != "" {
		bestSAN, err = validateUCI(pos, best)
		if err != nil {
			return nil, fmt.Errorf("%w: best move %q: %v", ErrChapterBuild, best, err)
		}
	}

	date := "????.??.??"
	if !g.EndTime.IsZero() {
		date = g.EndTime.Format("2006.01.02")
	}

	white, black := "You", g.Opponent
	if g.Color == Black {
		white, black = g.Opponent, "You"
	}

	ch := &Chapter{
		Name: fmt.Sprintf("Biggest blunder vs %s (%s) as %s",
			g.Opponent, formatMetricValue(b.Metric, b.MetricValue), g.Color),
		GameID:      g.ID,
		StartFEN:    b.FENBefore,
		PlayedSAN:   playedSAN,
		BestSAN:     bestSAN,
		MoveNumber:  b.MoveNumber(),
		BlackToMove: b.Color == Black,
		Label:       b.Label,
		CPLoss:      b.CPLoss,
		WPSwing:     b.WPSwing,
		Event:       "Biggest Blunder",
		Date:        date,
		White:       white,
		Black:       black,
		Result:      "*",
	}
	return ch, nil
}

// validateUCI decodes a UCI move against the position and confirms it
// is legal there, returning its SAN encoding.
func validateUCI(pos *chess.Position, uci string) (string, error) {
	move, err := chess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return "", err
	}
	for _, legal := range pos.ValidMoves() {
		if legal.S1() == move.S1() && legal.S2() == move.S2() && legal.Promo() == move.Promo() {
			return chess.AlgebraicNotation{}.Encode(pos, legal), nil
		}
	}
	return "", fmt.Errorf("move is not legal in position")
}

// PGN renders the chapter as a one-chapter portable game: tag pairs,
// the played move with its annotation, and the best move as a single
// parenthesized variation.
func (c *Chapter) PGN() string {
	var sb strings.Builder

	tag := func(k, v string) {
		sb.WriteString("[" + k + " \"" + v + "\"]\n")
	}
	tag("Event", c.Event)
	tag("Site", "")
	tag("Date", c.Date)
	tag("White", c.White)
	tag("Black", c.Black)
	tag("Result", c.Result)
	tag("Annotator", c.GameID)
	if c.StartFEN != startingFEN {
		tag("SetUp", "1")
		tag("FEN", c.StartFEN)
	}
	sb.WriteString("\n")

	num := strconv.Itoa(c.MoveNumber)
	prefix := num + ". "
	if c.BlackToMove {
		prefix = num + "... "
	}

	sb.WriteString(prefix + c.PlayedSAN)
	sb.WriteString(fmt.Sprintf(" {%s. cp_loss=%d wp_swing=%.3f}", c.Label, c.CPLoss, c.WPSwing))
	if c.BestSAN != "" {
		sb.WriteString(" (" + prefix + c.BestSAN + " {Best move})")
	}
	sb.WriteString(" " + c.Result + "\n")

	return sb.String()
}

func formatMetricValue(m Metric, v float64) string {
	if m == MetricWPSwing {
		return strconv.FormatFloat(v, 'f', 3, 64)
	}
	return strconv.Itoa(int(v))
}
