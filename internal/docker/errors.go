package docker

import (
	"fmt"

	"github.com/docker/docker/api/types/events"
)

type UnsupportedEventTypeError struct {
	eventType events.Type
}

func NewUnsupportedEventTypeError(eventType events.Type) *UnsupportedEventTypeError {
	return &UnsupportedEventTypeError{eventType: eventType}
}

func (e *UnsupportedEventTypeError) Error() string {
	return fmt.Sprintf("unsupported event type: %s", e.eventType)
}
