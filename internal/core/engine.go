package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Engine runs the registry refresh, metrics collection and event ingestion loops side by side
// until the context is cancelled.
type Engine struct {
	logger    zerolog.Logger
	registry  loop
	collector loop
	ingestor  loop
}

func NewEngine(logger zerolog.Logger, registry, collector, ingestor loop) *Engine {
	return &Engine{
		logger:    logger.With().Str("component", "engine").Logger(),
		registry:  registry,
		collector: collector,
		ingestor:  ingestor,
	}
}

func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info().Msg("Starting engine")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loops := []struct {
		name string
		loop loop
	}{
		{"registry", e.registry},
		{"collector", e.collector},
		{"ingestor", e.ingestor},
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, l := range loops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.loop.Run(ctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			mu.Lock()
			if firstErr == nil {
				firstErr = fmt.Errorf("%s loop: %w", l.name, err)
			}
			mu.Unlock()
			e.logger.Error().Err(err).Msgf("%s loop exited, stopping engine", l.name)
			cancel()
		}()
	}

	<-ctx.Done()
	e.logger.Info().Msg("Engine shutting down")
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
