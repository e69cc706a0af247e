// Package report writes a run's output tables: the per-game summary,
// the per-move detail, the per-blunder detail, and the chapters as one
// PGN file. Tables are CSV, optionally compressed through a codec, and
// readable back for the timeline and upload commands.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/blunderlab"
	"github.com/discochess/blunderlab/internal/codec"
	"github.com/discochess/blunderlab/internal/codec/gzipcodec"
	"github.com/discochess/blunderlab/internal/codec/noopcodec"
	"github.com/discochess/blunderlab/internal/codec/zstdcodec"
)

// Default output file names inside the data directory.
const (
	SummaryFile  = "summary.csv"
	MovesFile    = "moves.csv"
	BlundersFile = "blunders.csv"
	ChaptersFile = "blunders.pgn"
)

const timeLayout = time.RFC3339

// CodecByName maps a compression name to a codec.
// Supported: "" (none), "gz", "zst".
func CodecByName(name string) (codec.Codec, error) {
	switch name {
	case "":
		return noopcodec.New(), nil
	case "gz":
		return gzipcodec.New(), nil
	case "zst":
		return zstdcodec.New(), nil
	default:
		return nil, fmt.Errorf("report: unknown compression %q", name)
	}
}

// Writer emits the output tables for one run into a directory.
type Writer struct {
	dir    string
	codec  codec.Codec
	logger *zap.Logger
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithCodec compresses every table through the codec. File names gain
// the codec's extension.
func WithCodec(c codec.Codec) WriterOption {
	return func(w *Writer) { w.codec = c }
}

// WithLogger sets the logger. If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) WriterOption {
	return func(w *Writer) { w.logger = l }
}

// NewWriter creates a Writer targeting the directory, creating it if
// needed.
func NewWriter(dir string, opts ...WriterOption) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	w := &Writer{
		dir:    dir,
		codec:  noopcodec.New(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Paths lists where the tables were written.
type Paths struct {
	Summary  string
	Moves    string
	Blunders string
	Chapters string
}

// Write emits all four outputs from the report. Game metadata for the
// move and blunder tables is joined from the report's summaries.
func (w *Writer) Write(rep *blunderlab.Report) (Paths, error) {
	meta := make(map[string]blunderlab.GameSummary, len(rep.Summaries))
	for _, s := range rep.Summaries {
		meta[s.GameID] = s
	}

	var paths Paths
	var err error

	if paths.Summary, err = w.writeSummary(rep.Summaries); err != nil {
		return paths, fmt.Errorf("writing summary: %w", err)
	}
	if paths.Moves, err = w.writeMoves(rep.Moves, meta); err != nil {
		return paths, fmt.Errorf("writing moves: %w", err)
	}
	if paths.Blunders, err = w.writeBlunders(rep.Blunders, meta); err != nil {
		return paths, fmt.Errorf("writing blunders: %w", err)
	}
	if paths.Chapters, err = w.writeChapters(rep.Chapters); err != nil {
		return paths, fmt.Errorf("writing chapters: %w", err)
	}

	w.logger.Info("report written",
		zap.String("runID", rep.RunID),
		zap.String("dir", w.dir),
		zap.Int("moves", len(rep.Moves)),
		zap.Int("blunders", len(rep.Blunders)),
	)
	return paths, nil
}

// path appends the codec extension to a base file name.
func (w *Writer) path(base string) string {
	if ext := w.codec.Extension(); ext != "" {
		base += "." + ext
	}
	return filepath.Join(w.dir, base)
}

// writeCSV streams rows through the codec into the named file.
func (w *Writer) writeCSV(base string, header []string, rows [][]string) (string, error) {
	path := w.path(base)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc, err := w.codec.Writer(f)
	if err != nil {
		return "", err
	}

	cw := csv.NewWriter(enc)
	if err := cw.Write(header); err != nil {
		return "", err
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return "", err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return path, nil
}

var summaryHeader = []string{
	"game_url", "end_time_utc", "my_color", "opponent", "time_control",
	"result", "moves", "worst_label", "metric_value", "accuracy",
}

func (w *Writer) writeSummary(summaries []blunderlab.GameSummary) (string, error) {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		accuracy := ""
		if s.Accuracy != nil {
			accuracy = strconv.FormatFloat(*s.Accuracy, 'f', 1, 64)
		}
		rows = append(rows, []string{
			s.GameID,
			formatTime(s.EndTime),
			string(s.Color),
			s.Opponent,
			s.TimeControl,
			s.Result,
			strconv.Itoa(s.MoveCount),
			string(s.WorstLabel),
			strconv.FormatFloat(s.MetricValue, 'f', 4, 64),
			accuracy,
		})
	}
	return w.writeCSV(SummaryFile, summaryHeader, rows)
}

var movesHeader = []string{
	"game_url", "end_time_utc", "my_color", "opponent", "ply", "move_no",
	"color", "is_my_move", "san", "uci", "fen_before", "fen_after",
	"eval_before", "eval_after", "best_move_uci", "cp_loss", "wp_swing", "label",
}

func (w *Writer) writeMoves(moves []blunderlab.MoveRecord, meta map[string]blunderlab.GameSummary) (string, error) {
	rows := make([][]string, 0, len(moves))
	for _, m := range moves {
		g := meta[m.GameID]
		rows = append(rows, []string{
			m.GameID,
			formatTime(g.EndTime),
			string(g.Color),
			g.Opponent,
			strconv.Itoa(m.Ply),
			strconv.Itoa(m.MoveNumber()),
			string(m.Color),
			formatBool(m.IsPlayer),
			m.SAN,
			m.UCI,
			m.FENBefore,
			m.FENAfter,
			m.EvalBefore.Score.String(),
			m.EvalAfter.Score.String(),
			m.EvalBefore.BestMove,
			strconv.Itoa(m.CPLoss),
			strconv.FormatFloat(m.WPSwing, 'f', 4, 64),
			string(m.Label),
		})
	}
	return w.writeCSV(MovesFile, movesHeader, rows)
}

var blundersHeader = []string{
	"game_url", "end_time_utc", "my_color", "opponent", "ply", "move_no",
	"san", "played_move_uci", "best_move_uci", "fen_before",
	"cp_loss", "wp_swing", "label", "metric", "metric_value",
}

func (w *Writer) writeBlunders(blunders []blunderlab.BlunderRecord, meta map[string]blunderlab.GameSummary) (string, error) {
	rows := make([][]string, 0, len(blunders))
	for _, b := range blunders {
		g := meta[b.GameID]
		rows = append(rows, []string{
			b.GameID,
			formatTime(g.EndTime),
			string(g.Color),
			g.Opponent,
			strconv.Itoa(b.Ply),
			strconv.Itoa(b.MoveNumber()),
			b.SAN,
			b.UCI,
			b.EvalBefore.BestMove,
			b.FENBefore,
			strconv.Itoa(b.CPLoss),
			strconv.FormatFloat(b.WPSwing, 'f', 4, 64),
			string(b.Label),
			string(b.Metric),
			strconv.FormatFloat(b.MetricValue, 'f', 4, 64),
		})
	}
	return w.writeCSV(BlundersFile, blundersHeader, rows)
}

func (w *Writer) writeChapters(chapters []*blunderlab.Chapter) (string, error) {
	path := w.path(ChaptersFile)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc, err := w.codec.Writer(f)
	if err != nil {
		return "", err
	}
	for i, ch := range chapters {
		if i > 0 {
			if _, err := enc.Write([]byte("\n")); err != nil {
				return "", err
			}
		}
		if _, err := enc.Write([]byte(ch.PGN())); err != nil {
			return "", err
		}
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return path, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
