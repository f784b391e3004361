package storage

import (
	"context"

	"github.com/auto-dns/docker-metrics-stream/internal/domain"
)

// EventQuery selects lifecycle events. An empty Image matches every image and Limit <= 0 means no limit.
// With a Limit, the newest matching events are kept.
type EventQuery struct {
	Image string
	Limit int
}

// Backend persists lifecycle events and workload snapshots and reads back the event history.
type Backend interface {
	SaveEvent(ctx context.Context, ev domain.LifecycleEvent) error
	SaveSnapshots(ctx context.Context, snaps []domain.Snapshot) error
	// Events returns the events matching q, oldest first.
	Events(ctx context.Context, q EventQuery) ([]domain.LifecycleEvent, error)
	Close() error
}
