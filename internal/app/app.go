package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/auto-dns/docker-metrics-stream/internal/alert"
	"github.com/auto-dns/docker-metrics-stream/internal/broadcast"
	"github.com/auto-dns/docker-metrics-stream/internal/collector"
	"github.com/auto-dns/docker-metrics-stream/internal/config"
	"github.com/auto-dns/docker-metrics-stream/internal/core"
	"github.com/auto-dns/docker-metrics-stream/internal/docker"
	"github.com/auto-dns/docker-metrics-stream/internal/event"
	"github.com/auto-dns/docker-metrics-stream/internal/httpserver"
	"github.com/auto-dns/docker-metrics-stream/internal/registry"
	"github.com/auto-dns/docker-metrics-stream/internal/storage"
	dockerCli "github.com/docker/docker/client"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	runtime  *docker.Runtime
	recorder *storage.Recorder
	engine   *core.Engine
	server   *httpserver.Server
	logger   zerolog.Logger
}

// New creates a new App by wiring up all dependencies.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	// Docker CLI
	dockerClient, err := dockerCli.NewClientWithOpts(dockerCli.FromEnv, dockerCli.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	runtime := docker.NewRuntime(dockerClient, logger)

	// Persistence
	backend, err := storage.Open(ctx, &cfg.Storage, logger)
	if err != nil {
		_ = runtime.Close()
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}
	recorder := storage.NewRecorder(backend, cfg.Storage.Timeout, logger)

	evaluator, err := alert.NewThresholdEvaluator(&cfg.Alerts)
	if err != nil {
		_ = recorder.Close()
		_ = runtime.Close()
		return nil, err
	}
	since, err := cfg.Ingestor.SinceTime()
	if err != nil {
		_ = recorder.Close()
		_ = runtime.Close()
		return nil, err
	}

	// Pipeline
	hub := broadcast.NewHub(cfg.Broadcast.SubscriberBuffer, logger)
	reg := registry.NewRegistry(runtime, &cfg.Registry, logger)
	coll := collector.NewCollector(logger, &cfg.Collector, &cfg.App, &http.Client{}, reg, evaluator, recorder, hub)
	ing := event.NewIngestor(logger, &cfg.Ingestor, runtime, recorder, hub, since)
	engine := core.NewEngine(logger, reg, coll, ing)

	server := httpserver.New(logger, &cfg.HTTP, reg, coll, recorder, hub)

	return &App{
		runtime:  runtime,
		recorder: recorder,
		engine:   engine,
		server:   server,
		logger:   logger,
	}, nil
}

// Run starts the HTTP server and the engine, and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info().Msg("Application starting")

	if err := a.server.Start(ctx); err != nil {
		return err
	}
	a.server.SetReady(true)

	err := a.engine.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := a.server.Shutdown(shutdownCtx); shutdownErr != nil {
		a.logger.Error().Err(shutdownErr).Msg("Error shutting down HTTP server")
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) Close() error {
	var firstErr error
	if a.runtime != nil {
		if err := a.runtime.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close docker client: %w", err)
		}
	}
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close storage: %w", err)
		}
	}
	return firstErr
}
