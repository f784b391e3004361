package domain

import (
	"fmt"
	"time"
)

const (
	EventStatusCreate  = "create"
	EventStatusStart   = "start"
	EventStatusStop    = "stop"
	EventStatusDie     = "die"
	EventStatusKill    = "kill"
	EventStatusDestroy = "destroy"
)

// RawEvent is a runtime event before conversion, with the runtime's own timestamp.
type RawEvent struct {
	Status string
	From   string
	Time   time.Time
}

// LifecycleEvent is a status change reported by the runtime for an image.
type LifecycleEvent struct {
	Status     string    `json:"status"`
	Image      string    `json:"image"`
	OccurredAt time.Time `json:"time"`
}

func NewLifecycleEvent(raw RawEvent) LifecycleEvent {
	return LifecycleEvent{
		Status:     raw.Status,
		Image:      raw.From,
		OccurredAt: raw.Time,
	}
}

func (e LifecycleEvent) Render() string {
	return fmt.Sprintf("%s from image %s at %s", e.Status, e.Image, e.OccurredAt.Format(time.RFC3339Nano))
}
