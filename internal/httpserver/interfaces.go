package httpserver

import (
	"context"

	"github.com/auto-dns/docker-metrics-stream/internal/broadcast"
	"github.com/auto-dns/docker-metrics-stream/internal/domain"
	"github.com/auto-dns/docker-metrics-stream/internal/storage"
)

type workloadRegistry interface {
	CurrentWorkloads() []domain.Workload
	Refresh(ctx context.Context)
}

type batchCollector interface {
	Collect(ctx context.Context) domain.Batch
}

type eventHistory interface {
	Events(ctx context.Context, q storage.EventQuery) ([]domain.LifecycleEvent, error)
}

type subscriber interface {
	Subscribe(topic broadcast.Topic, buffer int) *broadcast.Subscription
	Unsubscribe(sub *broadcast.Subscription)
	Subscribers(topic broadcast.Topic) int
}
