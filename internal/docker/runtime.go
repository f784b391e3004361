package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/auto-dns/docker-metrics-stream/internal/domain"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/rs/zerolog"
)

const eventBufferSize = 100

// ErrStreamClosed is reported when the runtime closes the event stream without an error.
var ErrStreamClosed = errors.New("docker events stream closed")

// Runtime adapts the Docker Engine API to the runtime-neutral handles and events.
type Runtime struct {
	logger zerolog.Logger
	cli    dockerClient
}

func NewRuntime(cli dockerClient, logger zerolog.Logger) *Runtime {
	return &Runtime{
		logger: logger.With().Str("component", "docker_runtime").Logger(),
		cli:    cli,
	}
}

// ListContainers returns the running containers.
func (r *Runtime) ListContainers(ctx context.Context) ([]domain.ContainerHandle, error) {
	containers, err := r.cli.ContainerList(ctx, container.ListOptions{All: false})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	handles := make([]domain.ContainerHandle, 0, len(containers))
	for _, c := range containers {
		handles = append(handles, fromContainerSummary(c))
	}
	return handles, nil
}

// SubscribeEvents streams container events that occurred after since (zero means "from now").
// The event channel is closed when the stream ends. If it ended for any reason other than
// ctx cancellation, exactly one error is sent on the error channel before the close.
func (r *Runtime) SubscribeEvents(ctx context.Context, since time.Time) (<-chan domain.RawEvent, <-chan error) {
	out := make(chan domain.RawEvent, eventBufferSize)
	errOut := make(chan error, 1)

	filterArgs := filters.NewArgs()
	filterArgs.Add("type", string(events.ContainerEventType))

	options := events.ListOptions{Filters: filterArgs}
	if !since.IsZero() {
		options.Since = since.Format(time.RFC3339Nano)
	}

	go func() {
		defer close(out)

		eventCh, errCh := r.cli.Events(ctx, options)
		for {
			select {
			case <-ctx.Done():
				r.logger.Debug().Msg("Docker event stream cancelled by context")
				return
			case err := <-errCh:
				if ctx.Err() != nil {
					return
				}
				if err == nil || errors.Is(err, io.EOF) {
					err = ErrStreamClosed
				}
				errOut <- err
				return
			case msg, ok := <-eventCh:
				if !ok {
					if ctx.Err() == nil {
						errOut <- ErrStreamClosed
					}
					return
				}

				raw, convErr := fromEventsMessage(msg)
				if convErr != nil {
					r.logger.Debug().Err(convErr).Msg("Skipping docker event message")
					continue
				}

				select {
				case out <- raw:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, errOut
}

// Close releases the underlying Docker client.
func (r *Runtime) Close() error {
	return r.cli.Close()
}
