package blunderlab

import (
	"context"
	"errors"
	"fmt"

	"github.com/notnil/chess"
)

// ErrIllegalMove indicates a recorded move could not be applied to the
// replayed board state. The input for that game is corrupt; the game is
// abandoned but the run continues.
var ErrIllegalMove = errors.New("blunderlab: illegal recorded move")

// Evaluator asks an engine for the evaluation of a single position at a
// fixed depth. Implementations are single-flight: callers must not issue
// concurrent Evaluate calls.
type Evaluator interface {
	Evaluate(ctx context.Context, fen string, depth int) (Evaluation, error)
}

// analyzeGame replays every ply of the game, requests before/after
// evaluations, and derives the per-move quality metrics. Records are
// returned in ply order. Classification labels are filled from the
// thresholds so downstream selection sees finished rows.
func analyzeGame(ctx context.Context, eng Evaluator, g Game, depth int, thresholds Thresholds) ([]MoveRecord, error) {
	board := chess.NewGame()
	records := make([]MoveRecord, 0, len(g.Moves))

	for ply, san := range g.Moves {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		posBefore := board.Position()
		fenBefore := posBefore.String()
		mover := colorOf(posBefore.Turn())

		if err := board.MoveStr(san); err != nil {
			return nil, fmt.Errorf("%w: ply %d %q: %v", ErrIllegalMove, ply, san, err)
		}
		fenAfter := board.Position().String()

		moves := board.Moves()
		played := moves[len(moves)-1]
		uciMove := chess.UCINotation{}.Encode(posBefore, played)

		evalBefore, err := eng.Evaluate(ctx, fenBefore, depth)
		if err != nil {
			return nil, fmt.Errorf("evaluating ply %d before-position: %w", ply, err)
		}
		evalAfter, err := eng.Evaluate(ctx, fenAfter, depth)
		if err != nil {
			return nil, fmt.Errorf("evaluating ply %d after-position: %w", ply, err)
		}

		// Engine scores are side-to-move relative: the before score is
		// already the mover's, the after score belongs to the opponent.
		beforeForMover := evalBefore.Score
		afterForMover := evalAfter.Score.Negate()

		rec := MoveRecord{
			GameID:     g.ID,
			Ply:        ply,
			Color:      mover,
			IsPlayer:   mover == g.Color,
			SAN:        san,
			UCI:        uciMove,
			FENBefore:  fenBefore,
			FENAfter:   fenAfter,
			EvalBefore: evalBefore,
			EvalAfter:  evalAfter,
			CPLoss:     CentipawnLoss(beforeForMover, afterForMover),
			WPSwing:    WinProbabilitySwing(beforeForMover, afterForMover),
		}
		rec.Label = thresholds.Label(rec.CPLoss)
		records = append(records, rec)
	}

	return records, nil
}

func colorOf(c chess.Color) Color {
	if c == chess.White {
		return White
	}
	return Black
}
