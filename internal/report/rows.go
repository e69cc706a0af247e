package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/discochess/blunderlab"
)

// MoveRow is one row read back from the moves table, joined with the
// game metadata the timeline needs.
type MoveRow struct {
	GameID    string
	EndTime   time.Time
	MyColor   blunderlab.Color
	Opponent  string
	Ply       int
	IsMyMove  bool
	SAN       string
	Label     blunderlab.Label
}

// BlunderRow is one row read back from the blunders table, carrying
// everything needed to rebuild the chapter for upload.
type BlunderRow struct {
	GameID      string
	EndTime     time.Time
	MyColor     blunderlab.Color
	Opponent    string
	Ply         int
	SAN         string
	PlayedUCI   string
	BestUCI     string
	FENBefore   string
	CPLoss      int
	WPSwing     float64
	Label       blunderlab.Label
	Metric      blunderlab.Metric
	MetricValue float64
}

// ToRecord reconstructs the blunder record and the minimal game
// metadata for chapter synthesis.
func (r BlunderRow) ToRecord() (blunderlab.BlunderRecord, blunderlab.Game) {
	rec := blunderlab.BlunderRecord{
		MoveRecord: blunderlab.MoveRecord{
			GameID:    r.GameID,
			Ply:       r.Ply,
			Color:     r.MyColor,
			IsPlayer:  true,
			SAN:       r.SAN,
			UCI:       r.PlayedUCI,
			FENBefore: r.FENBefore,
			EvalBefore: blunderlab.Evaluation{
				BestMove: r.BestUCI,
			},
			CPLoss:  r.CPLoss,
			WPSwing: r.WPSwing,
			Label:   r.Label,
		},
		Metric:      r.Metric,
		MetricValue: r.MetricValue,
	}
	game := blunderlab.Game{
		ID:       r.GameID,
		Color:    r.MyColor,
		Opponent: r.Opponent,
		EndTime:  r.EndTime,
	}
	return rec, game
}

// ReadMoves reads the moves table, transparently decompressing by
// file extension.
func ReadMoves(path string) ([]MoveRow, error) {
	records, index, err := readTable(path)
	if err != nil {
		return nil, err
	}

	rows := make([]MoveRow, 0, len(records))
	for _, rec := range records {
		get := func(col string) string { return field(rec, index, col) }
		ply, _ := strconv.Atoi(get("ply"))
		rows = append(rows, MoveRow{
			GameID:   get("game_url"),
			EndTime:  parseTime(get("end_time_utc")),
			MyColor:  blunderlab.Color(get("my_color")),
			Opponent: get("opponent"),
			Ply:      ply,
			IsMyMove: get("is_my_move") == "1",
			SAN:      get("san"),
			Label:    blunderlab.Label(get("label")),
		})
	}
	return rows, nil
}

// ReadBlunders reads the blunders table.
func ReadBlunders(path string) ([]BlunderRow, error) {
	records, index, err := readTable(path)
	if err != nil {
		return nil, err
	}

	rows := make([]BlunderRow, 0, len(records))
	for _, rec := range records {
		get := func(col string) string { return field(rec, index, col) }
		ply, _ := strconv.Atoi(get("ply"))
		cpLoss, _ := strconv.Atoi(get("cp_loss"))
		wpSwing, _ := strconv.ParseFloat(get("wp_swing"), 64)
		metricValue, _ := strconv.ParseFloat(get("metric_value"), 64)
		rows = append(rows, BlunderRow{
			GameID:      get("game_url"),
			EndTime:     parseTime(get("end_time_utc")),
			MyColor:     blunderlab.Color(get("my_color")),
			Opponent:    get("opponent"),
			Ply:         ply,
			SAN:         get("san"),
			PlayedUCI:   get("played_move_uci"),
			BestUCI:     get("best_move_uci"),
			FENBefore:   get("fen_before"),
			CPLoss:      cpLoss,
			WPSwing:     wpSwing,
			Label:       blunderlab.Label(get("label")),
			Metric:      blunderlab.Metric(get("metric")),
			MetricValue: metricValue,
		})
	}
	return rows, nil
}

// readTable opens a CSV table and returns its data rows plus a
// header-name index.
func readTable(path string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	c, err := codecForPath(path)
	if err != nil {
		return nil, nil, err
	}
	dec, err := c.Reader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing %s: %w", path, err)
	}
	defer dec.Close()

	cr := csv.NewReader(dec)
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, fmt.Errorf("reading %s: empty table", path)
		}
		return nil, nil, fmt.Errorf("reading %s header: %w", path, err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return records, index, nil
}

func codecForPath(path string) (interface {
	Reader(io.Reader) (io.ReadCloser, error)
}, error) {
	switch {
	case strings.HasSuffix(path, ".zst"):
		return CodecByName("zst")
	case strings.HasSuffix(path, ".gz"):
		return CodecByName("gz")
	default:
		return CodecByName("")
	}
}

func field(rec []string, index map[string]int, col string) string {
	if i, ok := index[col]; ok && i < len(rec) {
		return rec[i]
	}
	return ""
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
