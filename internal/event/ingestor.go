package event

import (
	"context"
	"errors"
	"time"

	"github.com/auto-dns/docker-metrics-stream/internal/config"
	"github.com/auto-dns/docker-metrics-stream/internal/domain"
	"github.com/auto-dns/docker-metrics-stream/internal/metrics"
	"github.com/rs/zerolog"
)

var errStreamEnded = errors.New("event stream ended")

// Ingestor keeps exactly one runtime event subscription open and forwards every event, in order,
// to persistence and then to the events topic.
type Ingestor struct {
	logger    zerolog.Logger
	cfg       *config.IngestorConfig
	source    eventSource
	recorder  eventRecorder
	publisher eventPublisher
	since     time.Time
	after     func(time.Duration) <-chan time.Time
}

// NewIngestor creates an ingestor that starts reading at since. A zero since means "now".
func NewIngestor(
	logger zerolog.Logger,
	cfg *config.IngestorConfig,
	source eventSource,
	recorder eventRecorder,
	publisher eventPublisher,
	since time.Time,
) *Ingestor {
	if since.IsZero() {
		since = time.Now()
	}
	return &Ingestor{
		logger:    logger.With().Str("component", "event_ingestor").Logger(),
		cfg:       cfg,
		source:    source,
		recorder:  recorder,
		publisher: publisher,
		since:     since,
		after:     time.After,
	}
}

// Run subscribes and processes events until ctx is cancelled. When the stream ends it resubscribes
// after a backoff, starting just after the last processed event.
func (i *Ingestor) Run(ctx context.Context) error {
	i.logger.Info().Msgf("Starting event ingestion since %s", i.since.Format(time.RFC3339Nano))

	since := i.since
	backoff := i.cfg.BackoffInitial
	for {
		last, processed, err := i.consume(ctx, since)
		if processed > 0 {
			since = last.Add(time.Nanosecond)
			backoff = i.cfg.BackoffInitial
		}
		if ctx.Err() != nil {
			i.logger.Info().Msg("Event ingestion stopped")
			return ctx.Err()
		}

		metrics.RecordEventSubscriptionError()
		i.logger.Error().Err(NewEventSubscriptionError(since, err)).Msgf("Resubscribing in %s", backoff)

		select {
		case <-ctx.Done():
			i.logger.Info().Msg("Event ingestion stopped")
			return ctx.Err()
		case <-i.after(backoff):
		}
		backoff = min(backoff*2, i.cfg.BackoffMax)
	}
}

// consume reads one subscription to its end. It returns the time of the last processed event,
// how many were processed and why the stream ended.
func (i *Ingestor) consume(ctx context.Context, since time.Time) (time.Time, int, error) {
	events, errs := i.source.SubscribeEvents(ctx, since)

	var last time.Time
	processed := 0
	for raw := range events {
		i.OnEvent(ctx, raw)
		last = raw.Time
		processed++
	}

	select {
	case err := <-errs:
		if err != nil {
			return last, processed, err
		}
	default:
	}
	return last, processed, errStreamEnded
}

// OnEvent handles one raw runtime event: it is persisted once and published once on the events topic.
func (i *Ingestor) OnEvent(ctx context.Context, raw domain.RawEvent) {
	ev := domain.NewLifecycleEvent(raw)
	metrics.RecordEventIngested(ev.Status)
	i.logger.Debug().Msgf("Received lifecycle event: %s", ev.Render())

	i.recorder.SaveEvent(ctx, ev)
	i.publisher.PublishEvent(ev)
}
