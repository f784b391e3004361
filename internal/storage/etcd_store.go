package storage

import (
	"context"
	"fmt"
	"slices"

	"github.com/auto-dns/docker-metrics-stream/internal/config"
	"github.com/auto-dns/docker-metrics-stream/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// etcd rejects transactions above its --max-txn-ops (default 128).
const maxOpsPerTxn = 64

type etcdClient interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
	Txn(ctx context.Context) clientv3.Txn
	Close() error
}

type EtcdStore struct {
	client etcdClient
	cfg    *config.EtcdConfig
	logger zerolog.Logger
}

func NewEtcdStore(client etcdClient, cfg *config.EtcdConfig, logger zerolog.Logger) *EtcdStore {
	return &EtcdStore{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// SaveEvent stores the event under a chronologically sortable key.
func (es *EtcdStore) SaveEvent(ctx context.Context, ev domain.LifecycleEvent) error {
	value, err := marshalEtcdEvent(ev)
	if err != nil {
		return err
	}
	key := eventKey(es.cfg.PathPrefix, ev.OccurredAt, uuid.NewString())
	if _, err := es.client.Put(ctx, key, value); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	es.logger.Debug().Msgf("[etcd_store] Stored event %s", key)
	return nil
}

// Events reads the event keys newest first. An image filter is applied client-side since keys are
// not partitioned by image.
func (es *EtcdStore) Events(ctx context.Context, q EventQuery) ([]domain.LifecycleEvent, error) {
	opts := []clientv3.OpOption{
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortDescend),
	}
	if q.Image == "" && q.Limit > 0 {
		opts = append(opts, clientv3.WithLimit(int64(q.Limit)))
	}
	prefix := eventsPrefix(es.cfg.PathPrefix)
	resp, err := es.client.Get(ctx, prefix, opts...)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", prefix, err)
	}

	events := []domain.LifecycleEvent{}
	for _, kv := range resp.Kvs {
		if q.Limit > 0 && len(events) == q.Limit {
			break
		}
		ev, err := unmarshalEtcdEvent(kv.Value)
		if err != nil {
			es.logger.Warn().Err(err).Msgf("[etcd_store] Skipping unreadable event %s", kv.Key)
			continue
		}
		if q.Image != "" && ev.Image != q.Image {
			continue
		}
		events = append(events, ev)
	}
	slices.Reverse(events)
	return events, nil
}

// SaveSnapshots writes the snapshots in transactions of at most maxOpsPerTxn puts.
func (es *EtcdStore) SaveSnapshots(ctx context.Context, snaps []domain.Snapshot) error {
	ops := make([]clientv3.Op, 0, len(snaps))
	for _, s := range snaps {
		value, err := marshalEtcdSnapshot(s)
		if err != nil {
			return err
		}
		ops = append(ops, clientv3.OpPut(snapshotKey(es.cfg.PathPrefix, s.Name, s.CapturedAt, uuid.NewString()), value))
	}

	for start := 0; start < len(ops); start += maxOpsPerTxn {
		end := min(start+maxOpsPerTxn, len(ops))
		resp, err := es.client.Txn(ctx).Then(ops[start:end]...).Commit()
		if err != nil {
			return fmt.Errorf("commit snapshot txn: %w", err)
		}
		if !resp.Succeeded {
			return fmt.Errorf("snapshot txn was not applied")
		}
	}
	return nil
}

func (es *EtcdStore) Close() error {
	return es.client.Close()
}
