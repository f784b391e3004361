package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ReservedKeyChar cannot appear in a stored metric key.
const ReservedKeyChar = "."

// Metrics is a flat metric name -> value mapping decoded from a workload's metrics endpoint.
type Metrics map[string]any

// SanitizeMetricKey strips the reserved character from a metric key. Applying it twice is a no-op.
func SanitizeMetricKey(key string) string {
	return strings.ReplaceAll(key, ReservedKeyChar, "")
}

// SanitizeMetrics returns a copy of raw with every key sanitized. When two keys collapse to the same
// sanitized key, a key that was already clean wins; otherwise the lexically smallest raw key wins.
func SanitizeMetrics(raw map[string]any) Metrics {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(Metrics, len(raw))
	for _, k := range keys {
		sk := SanitizeMetricKey(k)
		if _, exists := out[sk]; exists && k != sk {
			continue
		}
		out[sk] = raw[k]
	}
	return out
}

// Float returns the metric as a float64 when it is numeric.
func (m Metrics) Float(key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// Snapshot is one workload's metrics captured in one collection cycle. It is never mutated after creation.
type Snapshot struct {
	Workload
	Metrics    Metrics   `json:"actuatorMetrics"`
	CapturedAt time.Time `json:"timeStamp"`
}

func NewSnapshot(w Workload, metrics Metrics, capturedAt time.Time) Snapshot {
	return Snapshot{
		Workload:   w,
		Metrics:    metrics,
		CapturedAt: capturedAt,
	}
}

type snapshotKey struct {
	ID      string         `json:"i"`
	Name    string         `json:"n"`
	Port    int            `json:"p"`
	Metrics map[string]any `json:"m"`
	At      int64          `json:"t"`
}

// Key identifies a snapshot by full value: id, name, port, metrics and capture time.
// Values keep their JSON type, so the number 1 and the string "1" yield different keys.
func (s Snapshot) Key() string {
	k := snapshotKey{
		ID:      s.ID,
		Name:    s.Name,
		Port:    s.PublicPort,
		Metrics: s.Metrics,
		At:      s.CapturedAt.UnixNano(),
	}
	b, err := json.Marshal(k)
	if err != nil {
		// NaN and other unencodable values; %#v still quotes strings.
		return fmt.Sprintf("%#v", k)
	}
	return string(b)
}
