package uci

import (
	"fmt"
	"strconv"
	"strings"
)

// parserState tracks where a search parse is. The engine interleaves
// diagnostic lines with result lines; an explicit state machine keeps
// diagnostics from being misclassified as results.
type parserState int

const (
	// awaitingReady: discard everything until the readyok that answers
	// the pre-search isready.
	awaitingReady parserState = iota
	// searching: collect scored info lines; the last complete one wins.
	searching
	// resultSeen: bestmove observed, parse is finished.
	resultSeen
)

// parser consumes one search's output lines and yields the evaluation.
type parser struct {
	state parserState
	last  *infoLine
}

// infoLine is one parsed "info ... score ..." report.
type infoLine struct {
	depth int
	cp    *int
	mate  *int
}

func newParser() *parser {
	return &parser{state: awaitingReady}
}

// feed advances the parser by one line. done is true once the terminal
// bestmove line has been consumed, at which point eval is valid.
func (p *parser) feed(line string) (eval Evaluation, done bool, err error) {
	switch p.state {
	case awaitingReady:
		if strings.HasPrefix(line, "readyok") {
			p.state = searching
		}
		return Evaluation{}, false, nil

	case searching:
		switch {
		case strings.HasPrefix(line, "info "):
			info, ok, perr := parseInfo(line)
			if perr != nil {
				return Evaluation{}, false, perr
			}
			if ok {
				p.last = info
			}
			return Evaluation{}, false, nil

		case strings.HasPrefix(line, "bestmove"):
			p.state = resultSeen
			return p.finish(line)

		default:
			// Diagnostic chatter between results; ignore.
			return Evaluation{}, false, nil
		}

	default:
		// Anything after bestmove belongs to no search.
		return Evaluation{}, false, nil
	}
}

// finish builds the evaluation from the bestmove line and the last
// complete scored info line.
func (p *parser) finish(line string) (Evaluation, bool, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Evaluation{}, false, fmt.Errorf("%w: malformed bestmove line %q", ErrProtocol, line)
	}
	if p.last == nil {
		return Evaluation{}, false, fmt.Errorf("%w: bestmove with no scored info line", ErrProtocol)
	}

	best := fields[1]
	if best == "(none)" {
		// Terminal position: mate or stalemate already on the board.
		best = ""
	}

	return Evaluation{
		Depth:    p.last.depth,
		CP:       p.last.cp,
		Mate:     p.last.mate,
		BestMove: best,
	}, true, nil
}

// parseInfo extracts depth and score from an info line. Lines without a
// score (e.g. "info string ...", currmove reports) are skipped with
// ok=false; a present-but-unparseable score is a protocol error.
func parseInfo(line string) (*infoLine, bool, error) {
	fields := strings.Fields(line)

	info := &infoLine{}
	scored := false

	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			if i+1 >= len(fields) {
				return nil, false, fmt.Errorf("%w: truncated depth in %q", ErrProtocol, line)
			}
			d, err := strconv.Atoi(fields[i+1])
			if err != nil {
				return nil, false, fmt.Errorf("%w: bad depth in %q", ErrProtocol, line)
			}
			info.depth = d
			i++

		case "score":
			if i+2 >= len(fields) {
				return nil, false, fmt.Errorf("%w: truncated score in %q", ErrProtocol, line)
			}
			val, err := strconv.Atoi(fields[i+2])
			if err != nil {
				return nil, false, fmt.Errorf("%w: bad score value in %q", ErrProtocol, line)
			}
			switch fields[i+1] {
			case "cp":
				info.cp = &val
			case "mate":
				info.mate = &val
			default:
				return nil, false, fmt.Errorf("%w: unknown score kind %q in %q", ErrProtocol, fields[i+1], line)
			}
			scored = true
			i += 2
		}
	}

	if !scored {
		return nil, false, nil
	}
	return info, true, nil
}
