package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prudhvinik1/robotrelay/internal/clock"
	"github.com/prudhvinik1/robotrelay/internal/metrics"
	"github.com/prudhvinik1/robotrelay/internal/models"
	"github.com/prudhvinik1/robotrelay/internal/repositories"
)

type SyncState int32

const (
	StateIdle SyncState = iota
	StateProbing
	StateSyncing
	StateSyncFailed
)

func (s SyncState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProbing:
		return "probing"
	case StateSyncing:
		return "syncing"
	case StateSyncFailed:
		return "sync_failed"
	default:
		return "unknown"
	}
}

const (
	DefaultSyncInterval  = 300 * time.Second
	DefaultSyncBatchSize = 500
	defaultCloudTimeout  = 5 * time.Second
)

type SyncEngineConfig struct {
	Interval     time.Duration
	BatchSize    int
	CloudTimeout time.Duration
}

// SyncEngine pushes unsynced local samples to the cloud store on a fixed interval.
//
// A cycle never mutates local state unless the matching cloud write succeeded, and cloud
// writes skip timestamps that already exist, so any cycle can be interrupted and replayed.
type SyncEngine struct {
	local   repositories.LocalSampleRepository
	cloud   repositories.CloudConnector
	prober  Prober
	status  repositories.SyncStatusRepository
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger

	interval     time.Duration
	batchSize    int
	cloudTimeout time.Duration

	cycleMu sync.Mutex
	state   atomic.Int32
	trigger chan struct{}
}

func NewSyncEngine(
	local repositories.LocalSampleRepository,
	cloud repositories.CloudConnector,
	prober Prober,
	status repositories.SyncStatusRepository,
	cfg SyncEngineConfig,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *slog.Logger,
) *SyncEngine {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSyncInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultSyncBatchSize
	}
	if cfg.CloudTimeout <= 0 {
		cfg.CloudTimeout = defaultCloudTimeout
	}
	return &SyncEngine{
		local:        local,
		cloud:        cloud,
		prober:       prober,
		status:       status,
		clock:        clk,
		metrics:      m,
		logger:       logger,
		interval:     cfg.Interval,
		batchSize:    cfg.BatchSize,
		cloudTimeout: cfg.CloudTimeout,
		trigger:      make(chan struct{}, 1),
	}
}

func (e *SyncEngine) State() SyncState {
	return SyncState(e.state.Load())
}

func (e *SyncEngine) setState(s SyncState) {
	e.state.Store(int32(s))
}

// Run executes a cycle immediately and then on every tick until ctx is cancelled.
func (e *SyncEngine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.logger.Info("sync engine started", "interval", e.interval, "batch_size", e.batchSize)
	e.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("sync engine stopped")
			return
		case <-ticker.C:
			e.RunOnce(ctx)
		case <-e.trigger:
			e.RunOnce(ctx)
		}
	}
}

// Trigger asks a running engine for an extra cycle. Requests made while one is already
// pending are coalesced.
func (e *SyncEngine) Trigger() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// RunOnce executes one sync cycle, persists its outcome and returns it.
// Cycles are serialized; a concurrent call waits for the running one.
func (e *SyncEngine) RunOnce(ctx context.Context) models.SyncStatus {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	prev, err := e.status.Get(context.WithoutCancel(ctx))
	historyKnown := err == nil
	if !historyKnown {
		e.logger.Error("failed to read previous sync status, outcome will not be saved", "error", err)
	}

	// A cycle started after shutdown began would only record a spurious failure.
	if ctx.Err() != nil {
		return prev
	}

	now := e.clock.Now()
	status := models.SyncStatus{
		LastAttemptAt: &now,
		LastSyncAt:    prev.LastSyncAt,
		TotalSynced:   prev.TotalSynced,
	}

	result := e.cycle(ctx, &status)
	if status.Success {
		status.LastSyncAt = &now
	}
	e.finish(ctx, &status, result, historyKnown)
	return status
}

// cycle walks Probing -> Syncing and fills in status. It returns the metrics result label.
func (e *SyncEngine) cycle(ctx context.Context, status *models.SyncStatus) string {
	if !e.cloud.Configured() {
		status.Reason = models.ReasonUnconfigured
		return metrics.ResultUnconfigured
	}

	e.setState(StateProbing)
	if !e.prober.Reachable(ctx) {
		status.Reason = models.ReasonUnreachable
		return metrics.ResultUnreachable
	}

	e.setState(StateSyncing)
	pending, err := e.collectUnsynced(ctx)
	if err != nil {
		return e.fail(status, err)
	}
	if len(pending) == 0 {
		status.Success = true
		return metrics.ResultNoop
	}

	conn, err := e.cloud.Connect(ctx)
	if err != nil {
		return e.fail(status, err)
	}
	defer conn.Close()

	for start := 0; start < len(pending); start += e.batchSize {
		end := min(start+e.batchSize, len(pending))
		chunk := pending[start:end]

		writeCtx, cancel := context.WithTimeout(ctx, e.cloudTimeout)
		err := conn.WriteBatch(writeCtx, chunk)
		cancel()
		if err != nil {
			return e.fail(status, err)
		}

		ids := make([]int64, len(chunk))
		for i, sample := range chunk {
			ids[i] = sample.ID
		}
		if err := e.local.MarkSynced(ctx, ids); err != nil {
			// The rows are already in the cloud; the next cycle resends them harmlessly.
			return e.fail(status, fmt.Errorf("failed to mark samples synced: %w", err))
		}

		status.RowsSynced += len(chunk)
		status.TotalSynced += int64(len(chunk))
		e.metrics.RowsSynced.Add(float64(len(chunk)))
	}

	status.Success = true
	return metrics.ResultSynced
}

func (e *SyncEngine) fail(status *models.SyncStatus, err error) string {
	e.setState(StateSyncFailed)
	status.Success = false
	status.Reason = err.Error()
	return metrics.ResultFailed
}

func (e *SyncEngine) collectUnsynced(ctx context.Context) ([]*models.SensorSample, error) {
	var pending []*models.SensorSample
	for sample, err := range e.local.Unsynced(ctx) {
		if err != nil {
			return nil, fmt.Errorf("failed to read unsynced samples: %w", err)
		}
		pending = append(pending, sample)
	}
	return pending, nil
}

// finish records the outcome. It runs even when ctx was cancelled mid-cycle so shutdown
// still leaves an accurate status behind. Without the previous status the saved row is
// kept as is, since the new one would reset LastSyncAt and TotalSynced.
func (e *SyncEngine) finish(ctx context.Context, status *models.SyncStatus, result string, save bool) {
	ctx = context.WithoutCancel(ctx)

	if pending, err := e.local.CountUnsynced(ctx); err != nil {
		e.logger.Warn("failed to count unsynced samples", "error", err)
	} else {
		status.Pending = pending
		e.metrics.PendingRows.Set(float64(pending))
	}

	if save {
		if err := e.status.Save(ctx, *status); err != nil {
			e.logger.Error("failed to save sync status", "error", err)
		}
	}
	e.metrics.SyncCycles.WithLabelValues(result).Inc()

	switch result {
	case metrics.ResultSynced:
		e.logger.Info("sync completed", "rows", status.RowsSynced, "pending", status.Pending)
	case metrics.ResultNoop:
		e.logger.Debug("sync skipped, nothing to push")
	case metrics.ResultUnreachable, metrics.ResultUnconfigured:
		e.logger.Debug("sync skipped", "reason", status.Reason, "pending", status.Pending)
	default:
		e.logger.Warn("sync failed, will retry next cycle",
			"error", status.Reason,
			"rows", status.RowsSynced,
			"pending", status.Pending,
		)
	}

	e.setState(StateIdle)
}
