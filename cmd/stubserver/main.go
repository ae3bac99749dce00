package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leocder07/tavily-stock-research-sub002/internal/stub"
	"github.com/leocder07/tavily-stock-research-sub002/internal/version"
)

func main() {
	addr := flag.String("addr", ":9090", "listen address")
	tick := flag.Duration("tick", 2*time.Second, "quote walk interval")
	jobStep := flag.Duration("job-step", 1500*time.Millisecond, "analysis job step interval")
	seed := flag.Uint64("seed", 0, "random walk seed (0 = time-based)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting stub backend",
		"version", version.Version,
		"addr", *addr,
		"tick", *tick,
	)

	cfg := stub.Config{
		Addr:            *addr,
		TickInterval:    *tick,
		JobStepInterval: *jobStep,
		Seed:            *seed,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	s := stub.New(cfg, logger)
	s.Start(ctx)

	<-ctx.Done()

	logger.Info("shutting down...")
	s.Close()
	logger.Info("stub backend stopped")
}
