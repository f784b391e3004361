package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/auto-dns/docker-metrics-stream/internal/domain"
)

type etcdEvent struct {
	Status     string    `json:"status"`
	Image      string    `json:"image"`
	OccurredAt time.Time `json:"occurred_at"`
}

type etcdSnapshot struct {
	WorkloadID string         `json:"workload_id"`
	AppName    string         `json:"app_name"`
	PublicPort int            `json:"public_port"`
	Metrics    map[string]any `json:"metrics"`
	CapturedAt time.Time      `json:"captured_at"`
}

func marshalEtcdEvent(ev domain.LifecycleEvent) (string, error) {
	b, err := json.Marshal(etcdEvent{
		Status:     ev.Status,
		Image:      ev.Image,
		OccurredAt: ev.OccurredAt,
	})
	if err != nil {
		return "", fmt.Errorf("encode etcd event: %w", err)
	}
	return string(b), nil
}

func unmarshalEtcdEvent(data []byte) (domain.LifecycleEvent, error) {
	var raw etcdEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.LifecycleEvent{}, fmt.Errorf("decode etcd event: %w", err)
	}
	return domain.LifecycleEvent{
		Status:     raw.Status,
		Image:      raw.Image,
		OccurredAt: raw.OccurredAt,
	}, nil
}

func marshalEtcdSnapshot(s domain.Snapshot) (string, error) {
	b, err := json.Marshal(etcdSnapshot{
		WorkloadID: s.ID,
		AppName:    s.Name,
		PublicPort: s.PublicPort,
		Metrics:    s.Metrics,
		CapturedAt: s.CapturedAt,
	})
	if err != nil {
		return "", fmt.Errorf("encode etcd snapshot: %w", err)
	}
	return string(b), nil
}
