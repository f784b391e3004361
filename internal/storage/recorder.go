package storage

import (
	"context"
	"time"

	"github.com/auto-dns/docker-metrics-stream/internal/domain"
	"github.com/auto-dns/docker-metrics-stream/internal/metrics"
	"github.com/rs/zerolog"
)

// Recorder is the fire-and-forget face of a Backend: each write is bounded by a timeout and
// failures are logged here instead of being returned to the pipeline.
type Recorder struct {
	backend Backend
	timeout time.Duration
	logger  zerolog.Logger
}

func NewRecorder(backend Backend, timeout time.Duration, logger zerolog.Logger) *Recorder {
	return &Recorder{
		backend: backend,
		timeout: timeout,
		logger:  logger.With().Str("component", "storage").Logger(),
	}
}

func (r *Recorder) SaveEvent(ctx context.Context, ev domain.LifecycleEvent) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := r.backend.SaveEvent(ctx, ev); err != nil {
		metrics.RecordStorageError("event")
		r.logger.Error().Err(err).Str("event", ev.Render()).Msg("Failed to persist lifecycle event")
	}
}

func (r *Recorder) SaveSnapshots(ctx context.Context, snaps []domain.Snapshot) {
	if len(snaps) == 0 {
		return
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := r.backend.SaveSnapshots(ctx, snaps); err != nil {
		metrics.RecordStorageError("snapshot")
		r.logger.Error().Err(err).Int("snapshots", len(snaps)).Msg("Failed to persist snapshots")
	}
}

// Events reads the event history through the backend. Read errors are returned to the caller.
func (r *Recorder) Events(ctx context.Context, q EventQuery) ([]domain.LifecycleEvent, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.backend.Events(ctx, q)
}

func (r *Recorder) Close() error {
	return r.backend.Close()
}

func (r *Recorder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}
