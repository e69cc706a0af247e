package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/discochess/blunderlab"
	"github.com/discochess/blunderlab/internal/report"
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Print a per-game move timeline with blunder markers",
	Long: `Render each analyzed game as a bar of colored dots, one per move:
green for normal moves, yellow for inaccuracies, orange for mistakes,
red for blunders. Reads the moves table written by analyze.`,
	RunE: runTimeline,
}

var (
	movesPath     string
	timelineLimit int
	myMovesOnly   bool
	noColor       bool
	dotChar       string
	sepEvery      int
	showPositions bool
)

func init() {
	timelineCmd.Flags().StringVar(&movesPath, "moves", "", "moves table (default: <data-dir>/moves.csv)")
	timelineCmd.Flags().IntVar(&timelineLimit, "limit", 10, "how many games to show, newest first")
	timelineCmd.Flags().BoolVar(&myMovesOnly, "my-moves-only", false, "show only my moves")
	timelineCmd.Flags().BoolVar(&noColor, "no-color", false, "disable color output")
	timelineCmd.Flags().StringVar(&dotChar, "dot", "●", "dot character")
	timelineCmd.Flags().IntVar(&sepEvery, "sep-every", 5, "insert a separator every N dots")
	timelineCmd.Flags().BoolVar(&showPositions, "show-positions", false, "print move indices of flagged moves")
	rootCmd.AddCommand(timelineCmd)
}

// labelColor maps a classification to its dot color.
var labelColor = map[blunderlab.Label]text.Color{
	blunderlab.LabelInaccuracy: text.FgYellow,
	blunderlab.LabelMistake:    text.FgHiRed,
	blunderlab.LabelBlunder:    text.FgRed,
}

func runTimeline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := movesPath
	if path == "" {
		path = filepath.Join(cfg.DataDir, report.MovesFile)
	}
	rows, err := report.ReadMoves(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("missing %s: run 'blunderlab analyze' first", path)
		}
		return err
	}

	colored := !noColor && isatty.IsTerminal(os.Stdout.Fd())

	// Group rows by game and order games newest first.
	games := make(map[string][]report.MoveRow)
	var order []string
	for _, row := range rows {
		if _, seen := games[row.GameID]; !seen {
			order = append(order, row.GameID)
		}
		games[row.GameID] = append(games[row.GameID], row)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return games[order[i]][0].EndTime.After(games[order[j]][0].EndTime)
	})
	if timelineLimit > 0 && len(order) > timelineLimit {
		order = order[:timelineLimit]
	}

	for idx, gameID := range order {
		moves := games[gameID]
		sort.SliceStable(moves, func(i, j int) bool { return moves[i].Ply < moves[j].Ply })

		if myMovesOnly {
			filtered := moves[:0:0]
			for _, m := range moves {
				if m.IsMyMove {
					filtered = append(filtered, m)
				}
			}
			moves = filtered
		}
		if len(moves) == 0 {
			continue
		}

		flagged := map[blunderlab.Label][]int{}
		var dots []string
		for i, m := range moves {
			if m.Label.Notable() {
				flagged[m.Label] = append(flagged[m.Label], i+1)
			}
			dots = append(dots, dot(m.Label, colored))
		}

		fmt.Printf("%d) vs %s  (%s)  moves=%d  url=%s\n",
			idx+1, moves[0].Opponent, moves[0].MyColor, len(moves), gameID)
		fmt.Println("   " + joinDots(dots, colored))
		fmt.Printf("   inacc=%d  mistake=%d  blunder=%d\n",
			len(flagged[blunderlab.LabelInaccuracy]),
			len(flagged[blunderlab.LabelMistake]),
			len(flagged[blunderlab.LabelBlunder]))
		if showPositions {
			printPositions("inacc at:  ", flagged[blunderlab.LabelInaccuracy])
			printPositions("mistake at:", flagged[blunderlab.LabelMistake])
			printPositions("blunder at:", flagged[blunderlab.LabelBlunder])
		}
		fmt.Println()
	}

	printLegend(colored)
	return nil
}

// dot renders one move marker: colored dot on terminals, plain letter
// codes otherwise.
func dot(label blunderlab.Label, colored bool) string {
	if !colored {
		switch label {
		case blunderlab.LabelBlunder:
			return "B"
		case blunderlab.LabelMistake:
			return "m"
		case blunderlab.LabelInaccuracy:
			return "i"
		default:
			return "."
		}
	}
	if c, ok := labelColor[label]; ok {
		return c.Sprint(dotChar)
	}
	return text.FgGreen.Sprint(dotChar)
}

// joinDots inserts a faint separator every sepEvery dots.
func joinDots(dots []string, colored bool) string {
	sep := "|"
	if colored {
		sep = text.Faint.Sprint("|")
	}
	var sb strings.Builder
	for i, d := range dots {
		sb.WriteString(d)
		if sepEvery > 0 && (i+1)%sepEvery == 0 && i != len(dots)-1 {
			sb.WriteString(sep)
		}
	}
	return sb.String()
}

func printPositions(prefix string, positions []int) {
	if len(positions) == 0 {
		return
	}
	strs := make([]string, len(positions))
	for i, p := range positions {
		strs[i] = strconv.Itoa(p)
	}
	fmt.Printf("   %s %s\n", prefix, strings.Join(strs, ", "))
}

func printLegend(colored bool) {
	if !colored {
		fmt.Println("Legend: . ok  i inacc  m mistake  B blunder")
		return
	}
	fmt.Println("Legend:",
		text.FgGreen.Sprint(dotChar), "ok ",
		text.FgYellow.Sprint(dotChar), "inacc ",
		text.FgHiRed.Sprint(dotChar), "mistake ",
		text.FgRed.Sprint(dotChar), "blunder")
}
