// Package main is an interactive terminal console for the Golden Batch
// simulator. It talks to the prediction service directly, without the panel
// API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"goldenbatch/internal/config"
	"goldenbatch/internal/console"
	"goldenbatch/internal/external"
	"goldenbatch/internal/params"
	"goldenbatch/internal/simulation"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	// The terminal belongs to the prompts; logs go to stderr and default to warn.
	level := cfg.LogLevel
	if level == "info" {
		level = "warn"
	}
	logger := newLogger(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := params.NewStore()
	client := external.NewPredictorClient(external.PredictorClientConfig{
		URL:       cfg.Predictor.URL,
		Timeout:   cfg.Predictor.Timeout,
		UserAgent: cfg.Predictor.UserAgent,
		Breaker: external.BreakerSettings{
			Threshold: cfg.Predictor.BreakerThreshold,
			Cooldown:  cfg.Predictor.BreakerCooldown,
		},
		Logger: logger,
	})
	orch := simulation.New(client, store,
		simulation.WithLogger(logger),
		simulation.WithRetryPolicy(simulation.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
		}),
	)
	defer orch.Close()

	session := console.NewSession(store, orch, console.SurveyPrompter{}, os.Stdout)
	return session.Loop(ctx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
