// Package main is the entry point for the Golden Batch control panel API.
//
// It loads configuration, builds the parameter store, the prediction client
// and the simulation orchestrator, and serves the panel API until SIGINT or
// SIGTERM. When METRICS_ENABLED is set, run outcomes are also published to
// CloudWatch.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"golang.org/x/sync/errgroup"

	"goldenbatch/internal/config"
	"goldenbatch/internal/external"
	"goldenbatch/internal/panel"
	"goldenbatch/internal/params"
	"goldenbatch/internal/simulation"
	"goldenbatch/internal/telemetry"
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

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("golden batch panel starting",
		"environment", cfg.Environment,
		"build", cfg.Build,
		"port", cfg.Panel.Port,
		"predictor_url", cfg.Predictor.URL,
	)
	if cfg.Build.Dev() && cfg.Environment == "prod" {
		logger.Warn("running a development build in production")
	}

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

	srv, err := panel.NewServer(store, orch, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = []panel.HealthProbe{
		panel.ProbeFunc{ProbeName: "predictor_breaker", Fn: func(context.Context) error {
			if state := client.Base().BreakerState(); state == "open" {
				return errors.New("prediction service circuit is open")
			}
			return nil
		}},
	}

	g, gctx := errgroup.WithContext(ctx)

	var recorder *telemetry.Recorder
	if cfg.Metrics.Enabled {
		recorder, err = newRecorder(gctx, cfg, client.Endpoint(), logger)
		if err != nil {
			return fmt.Errorf("initializing metrics: %w", err)
		}
		unsubscribe := orch.Subscribe(recorder.Observe)
		defer unsubscribe()
	}

	g.Go(func() error {
		return srv.Serve(gctx, ":"+cfg.Panel.Port, cfg.Panel.ShutdownTimeout)
	})
	superviseRuns(gctx, g, orch, recorder)

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("golden batch panel stopped")
	return nil
}

// superviseRuns closes orch once ctx is done. The recorder, if any, stops
// only after that, so the terminal outcome of a canceled run is still
// published.
func superviseRuns(ctx context.Context, g *errgroup.Group, orch *simulation.Orchestrator, recorder *telemetry.Recorder) {
	recorderCtx, stopRecorder := context.WithCancel(context.WithoutCancel(ctx))
	if recorder != nil {
		g.Go(func() error {
			return recorder.Run(recorderCtx)
		})
	}
	g.Go(func() error {
		defer stopRecorder()
		<-ctx.Done()
		orch.Close()
		return nil
	})
}

// newRecorder builds the CloudWatch telemetry recorder. AWS_ENDPOINT_URL
// redirects the client, e.g. to LocalStack.
func newRecorder(ctx context.Context, cfg *config.Config, endpoint string, logger *slog.Logger) (*telemetry.Recorder, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Metrics.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	var optFns []func(*cloudwatch.Options)
	if cfg.Metrics.EndpointURL != "" {
		optFns = append(optFns, func(o *cloudwatch.Options) {
			o.BaseEndpoint = aws.String(cfg.Metrics.EndpointURL)
		})
	}
	cwClient := cloudwatch.NewFromConfig(awsCfg, optFns...)

	logger.Info("publishing simulation metrics",
		"namespace", cfg.Metrics.Namespace,
		"region", cfg.Metrics.Region,
	)
	return telemetry.NewRecorder(cwClient, telemetry.RecorderConfig{
		Namespace:  cfg.Metrics.Namespace,
		Endpoint:   endpoint,
		BufferSize: cfg.Metrics.BufferSize,
		Logger:     logger,
	}), nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler)
}
