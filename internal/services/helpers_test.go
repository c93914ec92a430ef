package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prudhvinik1/robotrelay/internal/clock"
	"github.com/prudhvinik1/robotrelay/internal/database"
	"github.com/prudhvinik1/robotrelay/internal/metrics"
	"github.com/prudhvinik1/robotrelay/internal/models"
	"github.com/prudhvinik1/robotrelay/internal/repositories"
	"github.com/stretchr/testify/require"
)

// Helper functions and fakes for service tests

var testStart = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T {
	return &v
}

// newLocalStores opens a real SQLite store in the test's temp dir.
func newLocalStores(t *testing.T) (*repositories.SQLiteSampleRepository, *repositories.SQLiteSyncStatusRepository) {
	db, err := database.NewSQLiteDB(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	local := repositories.NewSQLiteSampleRepository(db)
	status := repositories.NewSQLiteSyncStatusRepository(db)
	require.NoError(t, local.Init(ctx))
	require.NoError(t, status.Init(ctx))
	return local, status
}

// insertSamples stores n samples one second apart starting at offset seconds past testStart.
func insertSamples(t *testing.T, local repositories.LocalSampleRepository, offset, n int) {
	for i := range n {
		ts := testStart.Add(time.Duration(offset+i) * time.Second).Format(TimestampLayout)
		_, err := local.Insert(context.Background(), &models.SensorSample{
			Timestamp:    ts,
			UltrasonicCM: ptr(20.0 + float64(i)),
			IRLeft:       ptr(0),
			IRCenter:     ptr(1),
			IRRight:      ptr(0),
			LineState:    ptr("center"),
		})
		require.NoError(t, err)
	}
}

// fakeCloud behaves like the cloud store: rows are keyed by timestamp and replays are ignored.
type fakeCloud struct {
	mu           sync.Mutex
	unconfigured bool
	connectErr   error
	failOn       map[int]bool // write call numbers (1-based) that fail
	writeCalls   int
	batchSizes   []int
	connects     int
	closes       int
	rows         map[string]models.SensorSample
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{rows: make(map[string]models.SensorSample), failOn: make(map[int]bool)}
}

func (f *fakeCloud) Configured() bool {
	return !f.unconfigured
}

func (f *fakeCloud) Connect(ctx context.Context) (repositories.CloudConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return &fakeCloudConn{cloud: f}, nil
}

func (f *fakeCloud) seed(sample models.SensorSample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[sample.Timestamp] = sample
}

func (f *fakeCloud) rowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *fakeCloud) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeCalls
}

type fakeCloudConn struct {
	cloud *fakeCloud
}

func (c *fakeCloudConn) WriteBatch(ctx context.Context, samples []*models.SensorSample) error {
	f := c.cloud
	f.mu.Lock()
	defer f.mu.Unlock()

	f.writeCalls++
	f.batchSizes = append(f.batchSizes, len(samples))
	if f.failOn[f.writeCalls] {
		return errors.New("connection reset by peer")
	}
	for _, s := range samples {
		if _, exists := f.rows[s.Timestamp]; !exists {
			row := *s
			row.Synced = true
			f.rows[s.Timestamp] = row
		}
	}
	return nil
}

func (c *fakeCloudConn) ReadAll(ctx context.Context, filter models.DateFilter) ([]*models.SensorSample, error) {
	f := c.cloud
	f.mu.Lock()
	defer f.mu.Unlock()

	samples := []*models.SensorSample{}
	for ts, row := range f.rows {
		if filter.IsZero() || ts[:10] == filter.Date() {
			r := row
			samples = append(samples, &r)
		}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].Timestamp < samples[j].Timestamp })
	return samples, nil
}

func (c *fakeCloudConn) Close() {
	c.cloud.mu.Lock()
	c.cloud.closes++
	c.cloud.mu.Unlock()
}

type fakeProber struct {
	reachable atomic.Bool
	calls     atomic.Int32
}

func (p *fakeProber) Reachable(ctx context.Context) bool {
	p.calls.Add(1)
	return p.reachable.Load()
}

// fakeReader is a SampleReader with a canned answer.
type fakeReader struct {
	mu      sync.Mutex
	samples []*models.SensorSample
	err     error
	calls   int
}

func (r *fakeReader) Query(ctx context.Context, filter models.DateFilter) ([]*models.SensorSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.samples, nil
}

func (r *fakeReader) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type engineFixture struct {
	engine  *SyncEngine
	local   *repositories.SQLiteSampleRepository
	status  *repositories.SQLiteSyncStatusRepository
	cloud   *fakeCloud
	prober  *fakeProber
	clock   *clock.FakeClock
	metrics *metrics.Metrics
}

func newEngineFixture(t *testing.T, cfg SyncEngineConfig) *engineFixture {
	local, status := newLocalStores(t)
	f := &engineFixture{
		local:   local,
		status:  status,
		cloud:   newFakeCloud(),
		prober:  &fakeProber{},
		clock:   clock.Fake(testStart),
		metrics: metrics.New(),
	}
	f.prober.reachable.Store(true)
	f.engine = NewSyncEngine(local, f.cloud, f.prober, status, cfg, f.clock, f.metrics, discardLogger())
	return f
}

func (f *engineFixture) unsyncedCount(t *testing.T) int64 {
	n, err := f.local.CountUnsynced(context.Background())
	require.NoError(t, err)
	return n
}

func timestampAt(offset int) string {
	return testStart.Add(time.Duration(offset) * time.Second).Format(TimestampLayout)
}

func feedKeyName(key string) string {
	return fmt.Sprintf("robot-%s", key)
}
