package collector

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/auto-dns/docker-metrics-stream/internal/config"
	"github.com/auto-dns/docker-metrics-stream/internal/domain"
)

type staticSource []domain.Workload

func (s staticSource) CurrentWorkloads() []domain.Workload { return append([]domain.Workload(nil), s...) }

type fakeRecorder struct {
	mu    sync.Mutex
	saved [][]domain.Snapshot
}

func (f *fakeRecorder) SaveSnapshots(_ context.Context, snaps []domain.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, snaps)
}

type fakePublisher struct {
	mu      sync.Mutex
	batches []domain.Batch
}

func (f *fakePublisher) PublishBatch(b domain.Batch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, b)
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

type mockEvaluator struct {
	mock.Mock
}

func (m *mockEvaluator) Check(metrics domain.Metrics) ([]domain.Alert, error) {
	args := m.Called(metrics)
	alerts, _ := args.Get(0).([]domain.Alert)
	return alerts, args.Error(1)
}

type evaluatorFunc func(domain.Metrics) ([]domain.Alert, error)

func (f evaluatorFunc) Check(m domain.Metrics) ([]domain.Alert, error) { return f(m) }

func metricsServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, int) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return srv, port
}

func jsonBody(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/metrics" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func workload(name string, port int) domain.Workload {
	return domain.Workload{ID: name + "-id", Name: name, PublicPort: port, DiscoveredAt: time.Now()}
}

// logBuffer collects JSON log lines written from concurrent workload goroutines.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// excluded returns the workload names logged as left out of a batch.
func (b *logBuffer) excluded(t *testing.T) []string {
	t.Helper()

	b.mu.Lock()
	defer b.mu.Unlock()

	var names []string
	sc := bufio.NewScanner(bytes.NewReader(b.buf.Bytes()))
	for sc.Scan() {
		var line struct {
			Message  string `json:"message"`
			Workload string `json:"workload"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		if line.Message == "Workload excluded from batch" {
			names = append(names, line.Workload)
		}
	}
	return names
}

type testCollector struct {
	*Collector
	recorder  *fakeRecorder
	publisher *fakePublisher
	logs      *logBuffer
}

func newTestCollector(source workloadSource, evaluator alertEvaluator, cfg config.CollectorConfig) testCollector {
	rec := &fakeRecorder{}
	pub := &fakePublisher{}
	logs := &logBuffer{}
	c := NewCollector(
		zerolog.New(logs),
		&cfg,
		&config.AppConfig{MetricsHost: "127.0.0.1", MetricsPath: "/metrics"},
		&http.Client{},
		source,
		evaluator,
		rec,
		pub,
	)
	return testCollector{Collector: c, recorder: rec, publisher: pub, logs: logs}
}

func defaultCollectorConfig() config.CollectorConfig {
	return config.CollectorConfig{
		Interval:       time.Hour,
		RequestTimeout: 500 * time.Millisecond,
		CycleTimeout:   2 * time.Second,
		AlertTimeout:   200 * time.Millisecond,
		MaxConcurrency: 4,
	}
}

func TestCollect_KOfNWorkloads(t *testing.T) {
	t.Parallel()

	_, okPort1 := metricsServer(t, jsonBody(`{"heap.used": 10, "threads": 4}`))
	_, okPort2 := metricsServer(t, jsonBody(`{"uptime": 99}`))
	_, errPort := metricsServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	_, badPort := metricsServer(t, jsonBody(`not json`))

	source := staticSource{
		workload("ok-1", okPort1),
		workload("failing", errPort),
		workload("ok-2", okPort2),
		workload("garbled", badPort),
	}
	c := newTestCollector(source, nil, defaultCollectorConfig())

	batch := c.Collect(t.Context())

	require.Len(t, batch.Snapshots, 2)
	names := map[string]domain.Snapshot{}
	for _, s := range batch.Snapshots {
		names[s.Name] = s
	}
	require.Contains(t, names, "ok-1")
	require.Contains(t, names, "ok-2")
	require.Equal(t, json.Number("10"), names["ok-1"].Metrics["heapused"])
	require.NotContains(t, names["ok-1"].Metrics, "heap.used")
	require.ElementsMatch(t, []string{"failing", "garbled"}, c.logs.excluded(t))

	require.Equal(t, 1, c.publisher.count())
	require.Len(t, c.recorder.saved, 1)
	require.Len(t, c.recorder.saved[0], 2)
}

func TestCollect_SlowWorkloadExcluded(t *testing.T) {
	t.Parallel()

	_, fastPort := metricsServer(t, jsonBody(`{"cpu.load": 0.4}`))
	_, slowPort := metricsServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
			return
		}
		jsonBody(`{"cpu.load": 0.9}`)(w, r)
	})

	cfg := defaultCollectorConfig()
	cfg.RequestTimeout = 100 * time.Millisecond
	c := newTestCollector(staticSource{workload("app-a", fastPort), workload("app-b", slowPort)}, nil, cfg)

	start := time.Now()
	batch := c.Collect(t.Context())

	require.Less(t, time.Since(start), time.Second)
	require.Len(t, batch.Snapshots, 1)
	require.Equal(t, "app-a", batch.Snapshots[0].Name)
	require.Equal(t, json.Number("0.4"), batch.Snapshots[0].Metrics["cpuload"])
	require.Equal(t, []string{"app-b"}, c.logs.excluded(t))
	require.Equal(t, 1, c.publisher.count())
}

func TestCollect_CancelledCycleIsNotPublished(t *testing.T) {
	t.Parallel()

	hit := make(chan struct{}, 1)
	_, port := metricsServer(t, func(w http.ResponseWriter, r *http.Request) {
		hit <- struct{}{}
		<-r.Context().Done()
	})
	c := newTestCollector(staticSource{workload("app-a", port)}, nil, defaultCollectorConfig())

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		<-hit
		cancel()
	}()
	c.Collect(ctx)

	require.Zero(t, c.publisher.count())
	require.Empty(t, c.recorder.saved)
	require.Empty(t, c.logs.excluded(t))
}

func TestFetch_PreservesNumbersAndRejectsTrailingData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		want    domain.Metrics
		wantErr string
	}{
		{name: "large integer", body: `{"requests": 9007199254740993}`, want: domain.Metrics{"requests": json.Number("9007199254740993")}},
		{name: "trailing whitespace", body: "{\"up\": 1}\n", want: domain.Metrics{"up": json.Number("1")}},
		{name: "trailing object", body: `{"up": 1}{"up": 0}`, wantErr: "trailing data"},
		{name: "trailing garbage", body: `{"up": 1} xyz`, wantErr: "trailing data"},
		{name: "array", body: `[1, 2]`, wantErr: "decode body"},
		{name: "null", body: `null`, wantErr: "not a JSON object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv, _ := metricsServer(t, jsonBody(tt.body))
			c := newTestCollector(staticSource{}, nil, defaultCollectorConfig())

			got, err := c.fetch(t.Context(), srv.URL+"/metrics")
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, domain.Metrics(got))
		})
	}
}

func TestCollect_EmptyBatchIsPublished(t *testing.T) {
	t.Parallel()

	c := newTestCollector(staticSource{}, nil, defaultCollectorConfig())

	batch := c.Collect(t.Context())

	require.True(t, batch.Empty())
	require.NotNil(t, batch.Snapshots)
	require.Len(t, batch.Label, len(domain.BatchLabelLayout))
	require.Equal(t, 1, c.publisher.count())
	require.Empty(t, c.recorder.saved[0])
}

func TestCollect_AlertsEvaluatedOnSanitizedCopy(t *testing.T) {
	t.Parallel()

	_, port := metricsServer(t, jsonBody(`{"heap.used": 500}`))

	evaluator := &mockEvaluator{}
	evaluator.On("Check", domain.Metrics{"heapused": json.Number("500")}).
		Run(func(args mock.Arguments) {
			args.Get(0).(domain.Metrics)["injected"] = true
		}).
		Return([]domain.Alert{{Rule: "heap", Metric: "heapused", Value: 500, Threshold: 100, Severity: domain.SeverityCritical}}, nil).
		Once()

	c := newTestCollector(staticSource{workload("app-a", port)}, evaluator, defaultCollectorConfig())
	batch := c.Collect(t.Context())

	evaluator.AssertExpectations(t)
	require.Len(t, batch.Snapshots, 1)
	require.NotContains(t, batch.Snapshots[0].Metrics, "injected")
}

func TestCollect_FaultyEvaluatorDoesNotDropSnapshot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		evaluator alertEvaluator
	}{
		{name: "error", evaluator: evaluatorFunc(func(domain.Metrics) ([]domain.Alert, error) {
			return nil, errors.New("rule store offline")
		})},
		{name: "panic", evaluator: evaluatorFunc(func(domain.Metrics) ([]domain.Alert, error) {
			panic("nil rule")
		})},
		{name: "timeout", evaluator: evaluatorFunc(func(domain.Metrics) ([]domain.Alert, error) {
			time.Sleep(time.Second)
			return nil, nil
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, port := metricsServer(t, jsonBody(`{"heapused": 1}`))
			c := newTestCollector(staticSource{workload("app-a", port)}, tt.evaluator, defaultCollectorConfig())

			batch := c.Collect(t.Context())
			require.Len(t, batch.Snapshots, 1)
		})
	}
}

func TestCollect_IdenticalSnapshotsCollapse(t *testing.T) {
	t.Parallel()

	_, port := metricsServer(t, jsonBody(`{"heapused": 1}`))
	w := workload("app-a", port)

	c := newTestCollector(staticSource{w, w}, nil, defaultCollectorConfig())
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	batch := c.Collect(t.Context())
	require.Len(t, batch.Snapshots, 1)
}

func TestRun_CollectsImmediatelyAndStops(t *testing.T) {
	t.Parallel()

	c := newTestCollector(staticSource{}, nil, defaultCollectorConfig())

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return c.publisher.count() >= 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not stop")
	}
}
