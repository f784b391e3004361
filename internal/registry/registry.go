package registry

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"time"

	"github.com/auto-dns/docker-metrics-stream/internal/config"
	"github.com/auto-dns/docker-metrics-stream/internal/domain"
	"github.com/auto-dns/docker-metrics-stream/internal/metrics"
	"github.com/rs/zerolog"
)

// Registry holds the current workload set. Readers never block on a refresh: each refresh builds a new
// slice and swaps it in whole.
type Registry struct {
	logger  zerolog.Logger
	cfg     *config.RegistryConfig
	runtime containerLister
	current atomic.Pointer[[]domain.Workload]
	now     func() time.Time
}

func NewRegistry(runtime containerLister, cfg *config.RegistryConfig, logger zerolog.Logger) *Registry {
	r := &Registry{
		logger:  logger.With().Str("component", "registry").Logger(),
		cfg:     cfg,
		runtime: runtime,
		now:     time.Now,
	}
	empty := []domain.Workload{}
	r.current.Store(&empty)
	return r
}

// CurrentWorkloads returns a copy of the last successfully refreshed set.
func (r *Registry) CurrentWorkloads() []domain.Workload {
	return slices.Clone(*r.current.Load())
}

// Describe turns a container into a workload using its first published port.
func (r *Registry) Describe(h domain.ContainerHandle) (domain.Workload, error) {
	if len(h.Ports) == 0 {
		return domain.Workload{}, NewMalformedWorkloadError(h.ID, "no port mappings")
	}
	port := h.Ports[0].PublicPort
	if port <= 0 {
		return domain.Workload{}, NewMalformedWorkloadError(h.ID, "first port mapping is not published")
	}
	return domain.Workload{
		ID:           h.ID,
		Name:         h.Image,
		PublicPort:   port,
		DiscoveredAt: r.now(),
	}, nil
}

// Refresh lists the runtime's containers and swaps in the resulting set. On failure the
// previous set is kept and the error is logged.
func (r *Registry) Refresh(ctx context.Context) {
	if r.cfg.ListTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.ListTimeout)
		defer cancel()
	}

	handles, err := r.runtime.ListContainers(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		metrics.RecordRegistryRefreshError()
		r.logger.Error().Err(NewRegistryRefreshError(err)).Int("retained", len(*r.current.Load())).Msg("Keeping previous workload set")
		return
	}

	workloads := make([]domain.Workload, 0, len(handles))
	for _, h := range handles {
		w, err := r.Describe(h)
		if err != nil {
			metrics.RecordMalformedWorkload()
			r.logger.Warn().Err(err).Str("image", h.Image).Msg("Skipping container")
			continue
		}
		workloads = append(workloads, w)
	}

	r.current.Store(&workloads)
	metrics.SetRegistryWorkloads(len(workloads))
	r.logger.Debug().Msgf("Workload set refreshed: %d workloads", len(workloads))
}

// Run refreshes immediately and then on every tick until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) error {
	r.logger.Info().Msgf("Starting registry refresh loop (interval %s)", r.cfg.RefreshInterval)
	ticker := time.NewTicker(r.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		r.Refresh(ctx)

		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Registry refresh loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
