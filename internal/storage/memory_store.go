package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/auto-dns/docker-metrics-stream/internal/domain"
)

// MemoryStore keeps the most recent events and snapshots in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	limit     int
	events    []domain.LifecycleEvent
	snapshots []domain.Snapshot
}

// NewMemoryStore creates a store retaining at most limit items of each kind (0 means unbounded).
func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{limit: limit}
}

func (s *MemoryStore) SaveEvent(ctx context.Context, ev domain.LifecycleEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = trimTail(append(s.events, ev), s.limit)
	return nil
}

func (s *MemoryStore) SaveSnapshots(ctx context.Context, snaps []domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = trimTail(append(s.snapshots, snaps...), s.limit)
	return nil
}

func (s *MemoryStore) Events(ctx context.Context, q EventQuery) ([]domain.LifecycleEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Walk newest to oldest so the limit keeps the most recent matches.
	out := []domain.LifecycleEvent{}
	for i := len(s.events) - 1; i >= 0; i-- {
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
		if q.Image != "" && s.events[i].Image != q.Image {
			continue
		}
		out = append(out, s.events[i])
	}
	slices.Reverse(out)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func trimTail[T any](items []T, limit int) []T {
	if limit <= 0 || len(items) <= limit {
		return items
	}
	return append(items[:0:0], items[len(items)-limit:]...)
}
