package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/auto-dns/docker-metrics-stream/internal/config"
	"github.com/rs/zerolog"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Open builds the Backend selected by cfg.Backend.
func Open(ctx context.Context, cfg *config.StorageConfig, logger zerolog.Logger) (Backend, error) {
	logger = logger.With().Str("component", "storage").Str("backend", cfg.Backend).Logger()

	switch cfg.Backend {
	case config.BackendMemory, "":
		return NewMemoryStore(cfg.MemoryLimit), nil
	case config.BackendEtcd:
		client, err := clientv3.New(clientv3.Config{
			Endpoints:   cfg.Etcd.Endpoints(),
			DialTimeout: time.Duration(cfg.Etcd.DialTimeout * float64(time.Second)),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to etcd: %w", err)
		}
		return NewEtcdStore(client, &cfg.Etcd, logger), nil
	case config.BackendSQLite:
		return NewSQLite(ctx, cfg.SQLite.DSN, logger)
	case config.BackendPostgres:
		return NewPostgres(ctx, cfg.Postgres.DSN, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
