package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/auto-dns/docker-metrics-stream/internal/domain"
)

func testSnapshot(name string, port int, at time.Time) domain.Snapshot {
	w := domain.Workload{ID: name + "-id", Name: name, PublicPort: port, DiscoveredAt: at}
	return domain.NewSnapshot(w, domain.Metrics{"heapused": 42.0}, at)
}

func TestMemoryStore_RetainsInOrder(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(0)
	now := time.Now()
	ctx := t.Context()

	require.NoError(t, s.SaveEvent(ctx, domain.LifecycleEvent{Status: domain.EventStatusStart, Image: "app-a", OccurredAt: now}))
	require.NoError(t, s.SaveEvent(ctx, domain.LifecycleEvent{Status: domain.EventStatusDie, Image: "app-a", OccurredAt: now.Add(time.Second)}))
	require.NoError(t, s.SaveSnapshots(ctx, []domain.Snapshot{testSnapshot("app-a", 8081, now)}))

	events, err := s.Events(ctx, EventQuery{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, domain.EventStatusStart, events[0].Status)
	require.Equal(t, domain.EventStatusDie, events[1].Status)
	require.Len(t, s.snapshots, 1)
}

func TestMemoryStore_Limit(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(2)
	now := time.Now()
	for i := range 5 {
		require.NoError(t, s.SaveEvent(t.Context(), domain.LifecycleEvent{
			Status:     domain.EventStatusStart,
			Image:      "app",
			OccurredAt: now.Add(time.Duration(i) * time.Second),
		}))
	}

	events, err := s.Events(t.Context(), EventQuery{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, now.Add(3*time.Second), events[0].OccurredAt)
	require.Equal(t, now.Add(4*time.Second), events[1].OccurredAt)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(0)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	require.ErrorIs(t, s.SaveEvent(ctx, domain.LifecycleEvent{}), context.Canceled)
	require.Empty(t, s.events)

	_, err := s.Events(ctx, EventQuery{})
	require.ErrorIs(t, err, context.Canceled)
}

func seedEvents(t *testing.T, b Backend, base time.Time) {
	t.Helper()

	seed := []domain.LifecycleEvent{
		{Status: domain.EventStatusStart, Image: "app-a", OccurredAt: base},
		{Status: domain.EventStatusStart, Image: "app-b", OccurredAt: base.Add(time.Second)},
		{Status: domain.EventStatusDie, Image: "app-a", OccurredAt: base.Add(2 * time.Second)},
		{Status: domain.EventStatusDie, Image: "app-b", OccurredAt: base.Add(3 * time.Second)},
	}
	for _, ev := range seed {
		require.NoError(t, b.SaveEvent(t.Context(), ev))
	}
}

func TestMemoryStore_EventsQuery(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(0)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	seedEvents(t, s, base)

	t.Run("by image", func(t *testing.T) {
		t.Parallel()

		events, err := s.Events(t.Context(), EventQuery{Image: "app-a"})
		require.NoError(t, err)
		require.Len(t, events, 2)
		require.Equal(t, domain.EventStatusStart, events[0].Status)
		require.Equal(t, domain.EventStatusDie, events[1].Status)
	})

	t.Run("most recent", func(t *testing.T) {
		t.Parallel()

		events, err := s.Events(t.Context(), EventQuery{Limit: 1})
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.Equal(t, "app-b", events[0].Image)
		require.Equal(t, domain.EventStatusDie, events[0].Status)
	})

	t.Run("unknown image", func(t *testing.T) {
		t.Parallel()

		events, err := s.Events(t.Context(), EventQuery{Image: "app-z"})
		require.NoError(t, err)
		require.NotNil(t, events)
		require.Empty(t, events)
	})
}
