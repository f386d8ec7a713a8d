package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"loadhunt/internal/app"
	"loadhunt/internal/config"
	"loadhunt/internal/logging"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "loadhunt",
	Short: "Load email ingestion and hunt matching",
	Long:  "Polls a carrier mailbox for load offers, parses and geocodes them, and matches them against the tenant's hunt plans.",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		logger, err := logging.New(cfg)
		if err != nil {
			return eris.Wrap(err, "init logger")
		}
		zap.ReplaceGlobals(logger)
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(
		pollCmd,
		listenCmd,
		rematchCmd,
		exportCmd,
		huntsImportCmd,
		mailboxMapCmd,
		hintAddCmd,
		parseCmd,
	)
}

// openApp wires storage, queue, geocoder and the ingest service.
func openApp() (*app.App, error) {
	return app.New(cfg, zap.L())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
