package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/discochess/blunderlab/internal/config"
)

var (
	// Global flags.
	configPath string
	dataDir    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "blunderlab",
	Short: "Turn your worst chess moves into study chapters",
	Long: `Blunderlab fetches your recent Chess.com games, evaluates every move
with a UCI engine, classifies each move by centipawn loss, and selects
the single worst mistake per game as a replayable Lichess study chapter.

Examples:
  # Analyze recent games and write the output tables
  blunderlab analyze magnuscarlsen --depth 12

  # Upload the biggest blunder per game to a Lichess study
  blunderlab upload --study abcdefgh

  # Analyze then upload in one go
  blunderlab sync magnuscarlsen --study abcdefgh

  # Show a per-game move quality timeline
  blunderlab timeline --limit 10`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ./blunderlab.toml, ~/.config/blunderlab/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "directory for generated tables (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// loadConfig loads the configuration and applies persistent flag
// overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

// newLogger builds the CLI logger: human-readable, debug level when
// verbose.
func newLogger() *zap.Logger {
	zcfg := zap.NewDevelopmentConfig()
	if !verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// signalContext returns a context cancelled on interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}
