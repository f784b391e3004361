package collector

import (
	"context"
	"net/http"

	"github.com/auto-dns/docker-metrics-stream/internal/domain"
)

type workloadSource interface {
	CurrentWorkloads() []domain.Workload
}

type alertEvaluator interface {
	Check(metrics domain.Metrics) ([]domain.Alert, error)
}

type snapshotRecorder interface {
	SaveSnapshots(ctx context.Context, snaps []domain.Snapshot)
}

type batchPublisher interface {
	PublishBatch(batch domain.Batch)
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}
