package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/auto-dns/docker-metrics-stream/internal/config"
	"github.com/auto-dns/docker-metrics-stream/internal/domain"
)

type fakeLister struct {
	mu      sync.Mutex
	handles []domain.ContainerHandle
	err     error
	calls   int
}

func (f *fakeLister) ListContainers(context.Context) ([]domain.ContainerHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.handles, f.err
}

func (f *fakeLister) set(handles []domain.ContainerHandle, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handles, f.err = handles, err
}

func handle(id, image string, ports ...int) domain.ContainerHandle {
	h := domain.ContainerHandle{ID: id, Image: image}
	for _, p := range ports {
		h.Ports = append(h.Ports, domain.PortMapping{PrivatePort: 8080, PublicPort: p, Protocol: "tcp"})
	}
	return h
}

func newTestRegistry(lister *fakeLister) *Registry {
	return NewRegistry(lister, &config.RegistryConfig{RefreshInterval: time.Hour, ListTimeout: time.Second}, zerolog.Nop())
}

func TestRegistry_Describe(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(&fakeLister{})

	tests := []struct {
		name      string
		handle    domain.ContainerHandle
		wantPort  int
		malformed bool
	}{
		{name: "first port wins", handle: handle("a", "app-a", 8081, 9090), wantPort: 8081},
		{name: "no ports", handle: handle("b", "app-b"), malformed: true},
		{name: "unpublished port", handle: handle("c", "app-c", 0), malformed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w, err := reg.Describe(tt.handle)
			if tt.malformed {
				var target *MalformedWorkloadError
				require.ErrorAs(t, err, &target)
				require.Equal(t, tt.handle.ID, target.ContainerID)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantPort, w.PublicPort)
			require.Equal(t, tt.handle.Image, w.Name)
			require.False(t, w.DiscoveredAt.IsZero())
		})
	}
}

func TestRegistry_RefreshSkipsMalformed(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{handles: []domain.ContainerHandle{
		handle("a", "app-a", 8081),
		handle("b", "app-b"),
		handle("c", "app-c", 8083),
	}}
	reg := newTestRegistry(lister)

	reg.Refresh(t.Context())

	got := reg.CurrentWorkloads()
	require.Len(t, got, 2)
	require.Equal(t, "app-a", got[0].Name)
	require.Equal(t, "app-c", got[1].Name)
}

func TestRegistry_RefreshFailureRetainsPreviousSet(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{handles: []domain.ContainerHandle{handle("a", "app-a", 8081)}}
	reg := newTestRegistry(lister)
	reg.Refresh(t.Context())
	require.Len(t, reg.CurrentWorkloads(), 1)

	lister.set(nil, errors.New("daemon unavailable"))
	reg.Refresh(t.Context())

	got := reg.CurrentWorkloads()
	require.Len(t, got, 1)
	require.Equal(t, "app-a", got[0].Name)
}

func TestRegistry_CurrentWorkloadsIsACopy(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(&fakeLister{handles: []domain.ContainerHandle{handle("a", "app-a", 8081)}})
	reg.Refresh(t.Context())

	got := reg.CurrentWorkloads()
	got[0].Name = "mutated"

	require.Equal(t, "app-a", reg.CurrentWorkloads()[0].Name)
}

func TestRegistry_RunRefreshesImmediately(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{handles: []domain.ContainerHandle{handle("a", "app-a", 8081)}}
	reg := newTestRegistry(lister)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- reg.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(reg.CurrentWorkloads()) == 1
	}, 2*time.Second, 10*time.Millisecond, "registry did not refresh on start")

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("registry did not stop")
	}
}
