package main

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/discochess/blunderlab"
	"github.com/discochess/blunderlab/internal/config"
	"github.com/discochess/blunderlab/internal/lichess"
	"github.com/discochess/blunderlab/internal/report"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload the biggest blunder per game to a Lichess study",
	Long: `Read the blunders table produced by analyze, rank the selected moves,
and import each one as a chapter of the target study via the Lichess
import-pgn API.

Requires a study ID and an API token with the study:write scope, from
flags, the config file, or LICHESS_STUDY_ID / LICHESS_TOKEN.`,
	RunE: runUploadCmd,
}

var (
	studyID      string
	apiToken     string
	blundersPath string
	uploadMetric string
	uploadLimit  int
	uploadSleep  float64
	dryRun       bool
)

func init() {
	uploadCmd.Flags().StringVar(&studyID, "study", "", "Lichess study ID")
	uploadCmd.Flags().StringVar(&apiToken, "token", "", "Lichess API token (study:write)")
	uploadCmd.Flags().StringVar(&blundersPath, "blunders-csv", "", "blunders table (default: <data-dir>/blunders.csv)")
	uploadCmd.Flags().StringVar(&uploadMetric, "metric", "", "ranking metric: cp_loss, wp_swing")
	uploadCmd.Flags().IntVar(&uploadLimit, "limit", 0, "max chapters to upload (0 = no limit)")
	uploadCmd.Flags().Float64Var(&uploadSleep, "sleep", 0, "seconds between uploads")
	uploadCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print chapters without uploading")
	rootCmd.AddCommand(uploadCmd)
}

// applyUploadFlags folds changed flags over the loaded config. Values
// are read from the command's flag set so the same code serves both
// upload and sync, which merges the two flag sets.
func applyUploadFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("study") {
		cfg.Lichess.StudyID, _ = flags.GetString("study")
	}
	if flags.Changed("token") {
		cfg.Lichess.Token, _ = flags.GetString("token")
	}
	if flags.Changed("metric") {
		cfg.Selection.Metric, _ = flags.GetString("metric")
	}
	if flags.Changed("limit") {
		cfg.Selection.Limit, _ = flags.GetInt("limit")
	}
	if flags.Changed("sleep") {
		cfg.Lichess.SleepSeconds, _ = flags.GetFloat64("sleep")
	}
}

func runUploadCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyUploadFlags(cmd, &cfg)

	ctx, cancel := signalContext()
	defer cancel()

	log := newLogger()
	defer log.Sync()

	path := blundersPath
	if path == "" {
		path = filepath.Join(cfg.DataDir, report.BlundersFile)
	}
	return runUpload(ctx, cfg, log, path)
}

// runUpload is the shared upload flow, also invoked by sync.
func runUpload(ctx context.Context, cfg config.Config, log *zap.Logger, path string) error {
	if cfg.Lichess.StudyID == "" {
		return fmt.Errorf("missing study ID: use --study or set LICHESS_STUDY_ID")
	}
	if !dryRun && cfg.Lichess.Token == "" {
		return fmt.Errorf("missing token: use --token or set LICHESS_TOKEN (needs study:write)")
	}
	metric, err := blunderlab.ParseMetric(cfg.Selection.Metric)
	if err != nil {
		return err
	}

	rows, err := report.ReadBlunders(path)
	if err != nil {
		return fmt.Errorf("reading blunders table: %w", err)
	}
	if len(rows) == 0 {
		fmt.Println("No blunders to upload.")
		return nil
	}

	picked := pickPerGame(rows, metric)
	sort.SliceStable(picked, func(i, j int) bool {
		return rowMetric(picked[i], metric) > rowMetric(picked[j], metric)
	})
	if cfg.Selection.Limit > 0 && len(picked) > cfg.Selection.Limit {
		picked = picked[:cfg.Selection.Limit]
	}

	fmt.Printf("Selected %d biggest blunders (%s) across %d games.\n",
		len(picked), metric, len(rows))

	client := lichess.New(cfg.Lichess.Token, lichess.WithLogger(log.Named("lichess")))
	sleep := time.Duration(cfg.Lichess.SleepSeconds * float64(time.Second))

	for i, row := range picked {
		rec, game := row.ToRecord()
		chapter, err := blunderlab.BuildChapter(rec, game)
		if err != nil {
			log.Warn("skipping unbuildable chapter",
				zap.String("game", row.GameID),
				zap.Error(err),
			)
			continue
		}
		name := fmt.Sprintf("%02d %s", i+1, chapter.Name)

		if dryRun {
			fmt.Printf("[DRY] %s :: %s\n", name, row.GameID)
			continue
		}

		if err := client.ImportChapter(ctx, cfg.Lichess.StudyID, name, chapter.PGN()); err != nil {
			return fmt.Errorf("uploading %q: %w", name, err)
		}
		fmt.Printf("[%d] uploaded: %s\n", i+1, name)

		if sleep > 0 && i < len(picked)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleep):
			}
		}
	}
	return nil
}

// pickPerGame keeps the strongest row per game under the metric. The
// analyze step already emits one row per game; older tables may carry
// more.
func pickPerGame(rows []report.BlunderRow, metric blunderlab.Metric) []report.BlunderRow {
	best := make(map[string]report.BlunderRow)
	var order []string
	for _, row := range rows {
		cur, seen := best[row.GameID]
		if !seen {
			order = append(order, row.GameID)
			best[row.GameID] = row
			continue
		}
		if rowMetric(row, metric) > rowMetric(cur, metric) {
			best[row.GameID] = row
		}
	}
	picked := make([]report.BlunderRow, 0, len(order))
	for _, id := range order {
		picked = append(picked, best[id])
	}
	return picked
}

// rowMetric ranks a row under the requested metric, which may differ
// from the metric the analyze run selected by.
func rowMetric(row report.BlunderRow, metric blunderlab.Metric) float64 {
	if metric == blunderlab.MetricWPSwing {
		return math.Abs(row.WPSwing)
	}
	return float64(row.CPLoss)
}
