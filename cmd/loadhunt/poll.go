package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"loadhunt/internal/listener"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Ingest one batch from the configured mailbox",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		run, err := listener.NewService(cfg, a.Ingest, a.Logger).RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("poll done trace=%s tenant=%s fetched=%d ingested=%d duplicates=%d failed=%d\n",
			run.TraceID, run.TenantID, run.Fetched, run.Ingested, run.Duplicates, run.Failed)
		return nil
	},
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Poll the mailbox on the listener schedule",
	Long:  "Runs a batch immediately and then on LISTENER_SCHEDULE. Serves /live, /ready and /metrics when METRICS_ADDR is set.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Listen(ctx)
	},
}
