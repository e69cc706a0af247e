package main

import (
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync [username]",
	Short: "Run analyze, then upload the results",
	Long: `Fetch and analyze recent games, then upload the biggest blunder per
game to the configured Lichess study in one step.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSyncCmd,
}

func init() {
	syncCmd.Flags().AddFlagSet(analyzeCmd.Flags())
	syncCmd.Flags().AddFlagSet(uploadCmd.Flags())
	rootCmd.AddCommand(syncCmd)
}

func runSyncCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyAnalyzeFlags(cmd, &cfg, args)
	applyUploadFlags(cmd, &cfg)

	ctx, cancel := signalContext()
	defer cancel()

	log := newLogger()
	defer log.Sync()

	paths, err := runAnalyze(ctx, cfg, log)
	if err != nil {
		return err
	}
	return runUpload(ctx, cfg, log, paths.Blunders)
}
