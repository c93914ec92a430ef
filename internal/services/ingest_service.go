package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prudhvinik1/robotrelay/internal/clock"
	"github.com/prudhvinik1/robotrelay/internal/metrics"
	"github.com/prudhvinik1/robotrelay/internal/models"
	"github.com/prudhvinik1/robotrelay/internal/repositories"
)

// TimestampLayout is the ISO-8601 form stamped on samples that arrive without a timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000000"

var ErrInvalidTimestamp = errors.New("invalid timestamp: expected ISO-8601 date and time")

// Accepted producer timestamps: local time with optional fraction, or RFC 3339 with an offset.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
}

// ValidTimestamp reports whether s is a full ISO-8601 date and time.
func ValidTimestamp(s string) bool {
	for _, layout := range timestampLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// IngestService is the single write path for telemetry. It only touches the local store,
// so it never waits on the network.
type IngestService struct {
	local   repositories.LocalSampleRepository
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewIngestService(local repositories.LocalSampleRepository, clk clock.Clock, m *metrics.Metrics, logger *slog.Logger) *IngestService {
	return &IngestService{local: local, clock: clk, metrics: m, logger: logger}
}

// Ingest stores sample unsynced and returns its local id. A failed write loses this one
// sample; the error is returned for the caller to log and move on.
func (s *IngestService) Ingest(ctx context.Context, sample *models.SensorSample) (int64, error) {
	if sample.Timestamp == "" {
		sample.Timestamp = s.clock.Now().Format(TimestampLayout)
	} else if !ValidTimestamp(sample.Timestamp) {
		return 0, ErrInvalidTimestamp
	}

	id, err := s.local.Insert(ctx, sample)
	if err != nil {
		s.metrics.IngestFailures.Inc()
		s.logger.Error("failed to save sample locally", "timestamp", sample.Timestamp, "error", err)
		return 0, fmt.Errorf("failed to save sample locally: %w", err)
	}

	s.metrics.SamplesIngested.Inc()
	s.logger.Debug("sample saved", "id", id, "timestamp", sample.Timestamp)
	return id, nil
}
