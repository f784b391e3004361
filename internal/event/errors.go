package event

import (
	"fmt"
	"time"
)

// EventSubscriptionError means the runtime event feed could not be established or ended abnormally.
// The ingestor retries with backoff.
type EventSubscriptionError struct {
	Since time.Time
	Err   error
}

func (e *EventSubscriptionError) Error() string {
	return fmt.Sprintf("event subscription since %s failed: %v", e.Since.Format(time.RFC3339Nano), e.Err)
}

func (e *EventSubscriptionError) Unwrap() error {
	return e.Err
}

func NewEventSubscriptionError(since time.Time, err error) *EventSubscriptionError {
	return &EventSubscriptionError{Since: since, Err: err}
}
