package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/auto-dns/docker-metrics-stream/internal/config"
	"github.com/auto-dns/docker-metrics-stream/internal/domain"
	"github.com/auto-dns/docker-metrics-stream/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// Upper bound on a metrics response body.
const maxBodyBytes = 4 << 20

var errEvaluationTimeout = errors.New("alert evaluation timed out")

type Collector struct {
	logger    zerolog.Logger
	cfg       *config.CollectorConfig
	appCfg    *config.AppConfig
	client    httpDoer
	workloads workloadSource
	alerts    alertEvaluator
	recorder  snapshotRecorder
	publisher batchPublisher
	now       func() time.Time
}

func NewCollector(
	logger zerolog.Logger,
	cfg *config.CollectorConfig,
	appCfg *config.AppConfig,
	client httpDoer,
	workloads workloadSource,
	alerts alertEvaluator,
	recorder snapshotRecorder,
	publisher batchPublisher,
) *Collector {
	if client == nil {
		client = &http.Client{}
	}
	return &Collector{
		logger:    logger.With().Str("component", "collector").Logger(),
		cfg:       cfg,
		appCfg:    appCfg,
		client:    client,
		workloads: workloads,
		alerts:    alerts,
		recorder:  recorder,
		publisher: publisher,
		now:       time.Now,
	}
}

// Collect runs one cycle: it queries every current workload, persists the snapshots and publishes
// exactly one batch, which may be empty. A workload that fails is left out of the batch.
func (c *Collector) Collect(ctx context.Context) domain.Batch {
	start := c.now()

	cycleCtx := ctx
	if c.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, c.cfg.CycleTimeout)
		defer cancel()
	}

	workloads := c.workloads.CurrentWorkloads()

	p := pool.NewWithResults[*domain.Snapshot]().WithMaxGoroutines(max(c.cfg.MaxConcurrency, 1))
	for _, w := range workloads {
		p.Go(func() *domain.Snapshot {
			return c.collectOne(cycleCtx, w)
		})
	}
	results := p.Wait()

	set := domain.NewSnapshotSet()
	for _, snap := range results {
		if snap != nil {
			set.Add(*snap)
		}
	}
	batch := domain.NewBatch(start, set)

	// A cycle cut short by shutdown or a gone caller is not a real observation of the fleet.
	if ctx.Err() != nil {
		c.logger.Info().Str("batch", batch.Label).Int("workloads", len(workloads)).Msg("Collection cycle cancelled, batch discarded")
		return batch
	}

	c.recorder.SaveSnapshots(ctx, batch.Snapshots)
	c.publisher.PublishBatch(batch)

	elapsed := c.now().Sub(start)
	metrics.RecordCollectionCycle(elapsed, len(batch.Snapshots))
	if batch.Empty() {
		c.logger.Warn().Str("batch", batch.Label).Int("workloads", len(workloads)).Msg("Published empty batch: no workloads available")
	} else {
		c.logger.Info().Str("batch", batch.Label).Msgf("Published batch with %d of %d workloads in %s", len(batch.Snapshots), len(workloads), elapsed)
	}
	return batch
}

// collectOne returns nil when the workload's metrics could not be obtained.
func (c *Collector) collectOne(ctx context.Context, w domain.Workload) *domain.Snapshot {
	endpoint := c.endpoint(w)
	raw, err := c.fetch(ctx, endpoint)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			c.logger.Debug().Str("workload", w.Name).Msg("Metrics request cancelled")
			return nil
		}
		metrics.RecordWorkloadMetricsError(w.Name)
		c.logger.Error().Err(NewWorkloadMetricsError(w.Render(), endpoint, err)).Str("workload", w.Name).Msg("Workload excluded from batch")
		return nil
	}

	snap := domain.NewSnapshot(w, domain.SanitizeMetrics(raw), c.now())
	c.evaluateAlerts(ctx, snap)
	return &snap
}

func (c *Collector) endpoint(w domain.Workload) string {
	host := net.JoinHostPort(c.appCfg.MetricsHost, strconv.Itoa(w.PublicPort))
	return fmt.Sprintf("http://%s%s", host, c.appCfg.MetricsPath)
}

func (c *Collector) fetch(ctx context.Context, endpoint string) (map[string]any, error) {
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// Numbers stay json.Number so large integer counters keep every digit.
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if raw == nil {
		return nil, errors.New("decode body: not a JSON object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode body: trailing data after JSON object")
	}
	return raw, nil
}

type evaluation struct {
	alerts []domain.Alert
	err    error
}

// evaluateAlerts runs the evaluator on a copy of the snapshot's metrics. A failing, panicking or
// slow evaluator is logged and never affects the snapshot.
func (c *Collector) evaluateAlerts(ctx context.Context, snap domain.Snapshot) {
	if c.alerts == nil {
		return
	}

	done := make(chan evaluation, 1)
	input := maps.Clone(snap.Metrics)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- evaluation{err: fmt.Errorf("evaluator panicked: %v", r)}
			}
		}()
		alerts, err := c.alerts.Check(input)
		done <- evaluation{alerts: alerts, err: err}
	}()

	var timeout <-chan time.Time
	if c.cfg.AlertTimeout > 0 {
		timer := time.NewTimer(c.cfg.AlertTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var res evaluation
	select {
	case res = <-done:
	case <-timeout:
		res.err = errEvaluationTimeout
	case <-ctx.Done():
		res.err = fmt.Errorf("alert evaluation abandoned: %w", ctx.Err())
	}

	if res.err != nil {
		metrics.RecordAlertEvaluationError()
		c.logger.Error().Err(NewAlertEvaluationError(snap.Render(), res.err)).Msg("Alert evaluation failed")
		return
	}
	for _, a := range res.alerts {
		metrics.RecordAlertTriggered(a.Rule, string(a.Severity))
		c.logger.Warn().Str("workload", snap.Render()).Msgf("Alert triggered: %s", a.Render())
	}
}

// Run collects immediately and then on every tick until ctx is cancelled. Cycles never overlap:
// ticks that fire while a cycle is running are coalesced.
func (c *Collector) Run(ctx context.Context) error {
	c.logger.Info().Msgf("Starting metrics collection loop (interval %s)", c.cfg.Interval)
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		c.Collect(ctx)

		select {
		case <-ctx.Done():
			c.logger.Info().Msg("Metrics collection loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
