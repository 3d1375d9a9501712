package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"live-trader/internal/app"
	"live-trader/internal/logger"
)

func main() {
	if err := initializeSystem(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = logger.Shutdown(shutdownCtx)
	}()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	a, err := app.Build(ctx, cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to build trader", err)
		return err
	}
	defer a.Close()

	sched, err := a.Scheduler()
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to build scheduler", err)
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Addr != "" {
		srv := a.Server()
		g.Go(func() error { return srv.Start(ctx) })
	}
	g.Go(func() error { return sched.Run(ctx) })

	logger.Info(ctx, "Trader started", "identities", a.Identities)
	if err := g.Wait(); err != nil {
		logger.ErrorWithErr(ctx, "Trader stopped with error", err)
		return err
	}
	logger.Info(ctx, "Shutting down...")
	return nil
}
