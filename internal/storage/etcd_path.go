package storage

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

func eventsPrefix(prefix string) string {
	return strings.TrimRight(prefix, "/") + "/events/"
}

func eventKey(prefix string, occurredAt time.Time, id string) string {
	return eventsPrefix(prefix) + sortableNanos(occurredAt) + "-" + id
}

func snapshotKey(prefix, image string, capturedAt time.Time, id string) string {
	return fmt.Sprintf("%s/snapshots/%s/%s-%s", strings.TrimRight(prefix, "/"), imageSegment(image), sortableNanos(capturedAt), id)
}

// imageSegment turns an image reference into a single key segment.
func imageSegment(image string) string {
	if image == "" {
		return "_"
	}
	return url.PathEscape(image)
}

// sortableNanos renders t as zero-padded nanoseconds so keys sort chronologically.
func sortableNanos(t time.Time) string {
	return fmt.Sprintf("%020d", t.UnixNano())
}
