package registry

import (
	"context"

	"github.com/auto-dns/docker-metrics-stream/internal/domain"
)

type containerLister interface {
	ListContainers(ctx context.Context) ([]domain.ContainerHandle, error)
}
