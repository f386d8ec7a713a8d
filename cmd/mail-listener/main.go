package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"loadhunt/internal/app"
	"loadhunt/internal/config"
	"loadhunt/internal/logging"
)

func main() {
	cfg, err := config.Load()
	must(err)

	logger, err := logging.New(cfg)
	must(err)
	zap.ReplaceGlobals(logger)
	defer func() { _ = logger.Sync() }()

	a, err := app.New(cfg, logger)
	must(err)
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.Listen(ctx); err != nil {
		logger.Error("listener exited", zap.Error(err))
		os.Exit(1)
	}
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
