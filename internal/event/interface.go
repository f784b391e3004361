package event

import (
	"context"
	"time"

	"github.com/auto-dns/docker-metrics-stream/internal/domain"
)

type eventSource interface {
	SubscribeEvents(ctx context.Context, since time.Time) (<-chan domain.RawEvent, <-chan error)
}

type eventRecorder interface {
	SaveEvent(ctx context.Context, ev domain.LifecycleEvent)
}

type eventPublisher interface {
	PublishEvent(ev domain.LifecycleEvent)
}
