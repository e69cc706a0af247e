package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/discochess/blunderlab"
	"github.com/discochess/blunderlab/internal/chesscom"
	"github.com/discochess/blunderlab/internal/config"
	"github.com/discochess/blunderlab/internal/report"
	"github.com/discochess/blunderlab/internal/stats/logger"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [username]",
	Short: "Fetch recent games, run the engine, write the output tables",
	Long: `Fetch a player's recent games from Chess.com, evaluate every move at a
fixed engine depth, classify moves by centipawn loss, and select the
worst move per game.

Writes to the data directory:
  summary.csv    one row per game
  moves.csv      one row per evaluated ply
  blunders.csv   the selected worst move per game
  blunders.pgn   one study chapter per selected blunder

The username may come from the config file or the CHESSCOM_USER
environment variable instead of the argument.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyzeCmd,
}

var (
	maxGames   int
	depth      int
	enginePath string
	userAgent  string
	inaccCP    int
	mistakeCP  int
	blunderCP  int
	metricName string
	compress   string
)

func init() {
	analyzeCmd.Flags().IntVar(&maxGames, "max-games", 0, "max games to analyze (default from config)")
	analyzeCmd.Flags().IntVar(&depth, "depth", 0, "engine search depth (default from config)")
	analyzeCmd.Flags().StringVar(&enginePath, "stockfish", "", "engine executable (default from config)")
	analyzeCmd.Flags().StringVar(&userAgent, "user-agent", "", "User-Agent for Chess.com requests")
	analyzeCmd.Flags().IntVar(&inaccCP, "inacc-cp", 0, "inaccuracy threshold in centipawns")
	analyzeCmd.Flags().IntVar(&mistakeCP, "mistake-cp", 0, "mistake threshold in centipawns")
	analyzeCmd.Flags().IntVar(&blunderCP, "blunder-cp", 0, "blunder threshold in centipawns")
	analyzeCmd.Flags().StringVar(&metricName, "metric", "", "ranking metric: cp_loss, wp_swing")
	analyzeCmd.Flags().StringVar(&compress, "compress", "", "table compression: gz, zst")
	rootCmd.AddCommand(analyzeCmd)
}

// applyAnalyzeFlags folds changed flags over the loaded config. Values
// are read from the command's flag set so the same code serves both
// analyze and sync, which merges the two flag sets.
func applyAnalyzeFlags(cmd *cobra.Command, cfg *config.Config, args []string) {
	if len(args) > 0 {
		cfg.Chesscom.Username = args[0]
	}
	flags := cmd.Flags()
	if flags.Changed("max-games") {
		cfg.Chesscom.MaxGames, _ = flags.GetInt("max-games")
	}
	if flags.Changed("depth") {
		cfg.Engine.Depth, _ = flags.GetInt("depth")
	}
	if flags.Changed("stockfish") {
		cfg.Engine.Path, _ = flags.GetString("stockfish")
	}
	if flags.Changed("user-agent") {
		cfg.Chesscom.UserAgent, _ = flags.GetString("user-agent")
	}
	if flags.Changed("inacc-cp") {
		cfg.Thresholds.Inaccuracy, _ = flags.GetInt("inacc-cp")
	}
	if flags.Changed("mistake-cp") {
		cfg.Thresholds.Mistake, _ = flags.GetInt("mistake-cp")
	}
	if flags.Changed("blunder-cp") {
		cfg.Thresholds.Blunder, _ = flags.GetInt("blunder-cp")
	}
	if flags.Changed("metric") {
		cfg.Selection.Metric, _ = flags.GetString("metric")
	}
	if flags.Changed("compress") {
		cfg.Output.Compression, _ = flags.GetString("compress")
	}
}

func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyAnalyzeFlags(cmd, &cfg, args)

	ctx, cancel := signalContext()
	defer cancel()

	log := newLogger()
	defer log.Sync()

	_, err = runAnalyze(ctx, cfg, log)
	return err
}

// runAnalyze is the shared analyze flow, also invoked by sync.
func runAnalyze(ctx context.Context, cfg config.Config, log *zap.Logger) (report.Paths, error) {
	var paths report.Paths

	if cfg.Chesscom.Username == "" {
		return paths, fmt.Errorf("missing Chess.com username: pass it as an argument or set CHESSCOM_USER")
	}
	if err := cfg.Validate(); err != nil {
		return paths, err
	}

	tableCodec, err := report.CodecByName(cfg.Output.Compression)
	if err != nil {
		return paths, err
	}
	writer, err := report.NewWriter(cfg.DataDir, report.WithCodec(tableCodec), report.WithLogger(log.Named("report")))
	if err != nil {
		return paths, err
	}
	// One analysis at a time per data directory: concurrent runs would
	// interleave writes to the same tables.
	lock := flock.New(filepath.Join(cfg.DataDir, ".blunderlab.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return paths, fmt.Errorf("locking data dir: %w", err)
	}
	if !locked {
		return paths, fmt.Errorf("another analysis is already running in %s", cfg.DataDir)
	}
	defer lock.Unlock()

	fetcher := chesscom.New(
		chesscom.WithUserAgent(cfg.Chesscom.UserAgent),
		chesscom.WithLogger(log.Named("chesscom")),
	)

	fmt.Printf("Fetching up to %d games for %s...\n", cfg.Chesscom.MaxGames, cfg.Chesscom.Username)
	games, err := fetcher.RecentGames(ctx, cfg.Chesscom.Username, cfg.Chesscom.MaxGames)
	if err != nil {
		return paths, fmt.Errorf("fetching games: %w", err)
	}
	if len(games) == 0 {
		return paths, fmt.Errorf("no games found for %s", cfg.Chesscom.Username)
	}

	pipeline, err := blunderlab.New(
		blunderlab.WithEnginePath(cfg.Engine.Path),
		blunderlab.WithDepth(cfg.Engine.Depth),
		blunderlab.WithThresholds(cfg.BlunderThresholds()),
		blunderlab.WithMetric(cfg.Metric()),
		blunderlab.WithMoveTimeout(time.Duration(cfg.Engine.MoveTimeoutSeconds)*time.Second),
		blunderlab.WithLogger(log.Named("pipeline")),
		blunderlab.WithStats(logger.New(log.Named("stats"))),
	)
	if err != nil {
		return paths, err
	}
	defer pipeline.Close()

	fmt.Printf("Analyzing %d games at depth %d...\n", len(games), cfg.Engine.Depth)
	start := time.Now()
	rep, err := pipeline.Run(ctx, games)
	if err != nil {
		return paths, err
	}

	paths, err = writer.Write(rep)
	if err != nil {
		return paths, err
	}

	printRunSummary(rep, time.Since(start))
	return paths, nil
}

func printRunSummary(rep *blunderlab.Report, elapsed time.Duration) {
	stats := report.Summarize(rep.Moves)

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendRows([]table.Row{
		{"Run", rep.RunID},
		{"Games processed", rep.Processed()},
		{"Games failed", len(rep.Failures)},
		{"Games without blunder", rep.Skipped},
		{"Chapters produced", len(rep.Chapters)},
		{"Player moves", stats.PlayerMoves},
		{"Mean cp loss", fmt.Sprintf("%.1f ± %.1f", stats.MeanCPLoss, stats.StdDevCPLoss)},
		{"Inacc / mistake / blunder", fmt.Sprintf("%d / %d / %d", stats.Inaccuracies, stats.Mistakes, stats.Blunders)},
		{"Elapsed", elapsed.Round(time.Second)},
	})
	fmt.Println(t.Render())

	for _, f := range rep.Failures {
		fmt.Printf("  skipped %s (%s): %s\n", f.GameID, f.Stage, f.Reason)
	}
}
