package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prudhvinik1/robotrelay/internal/metrics"
	"github.com/prudhvinik1/robotrelay/internal/models"
	"github.com/prudhvinik1/robotrelay/internal/repositories"
	"github.com/sony/gobreaker"
)

// Where a query result came from.
const (
	SourceCloud = "cloud"
	SourceLocal = "local"
)

type QueryResult struct {
	Samples []*models.SensorSample
	Source  string
}

type BreakerConfig struct {
	Failures uint32
	OpenFor  time.Duration
}

// QueryService answers history queries from the cloud store when it can and from the local
// store otherwise. A breaker stops every request from paying the cloud timeout while the
// cloud is down.
type QueryService struct {
	cloud   repositories.SampleReader
	local   repositories.SampleReader
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewQueryService builds the service. cloud may be nil to always answer from local.
func NewQueryService(cloud, local repositories.SampleReader, cfg BreakerConfig, m *metrics.Metrics, logger *slog.Logger) *QueryService {
	if cfg.Failures == 0 {
		cfg.Failures = 3
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "cloud-read",
		Timeout: cfg.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.Failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &QueryService{cloud: cloud, local: local, breaker: breaker, metrics: m, logger: logger}
}

func (s *QueryService) Query(ctx context.Context, filter models.DateFilter) (*QueryResult, error) {
	if s.cloud != nil {
		res, err := s.breaker.Execute(func() (interface{}, error) {
			return s.cloud.Query(ctx, filter)
		})
		if err == nil {
			samples := res.([]*models.SensorSample)
			s.metrics.QueriesServed.WithLabelValues(SourceCloud).Inc()
			s.logger.Debug("history served from cloud", "date", filter.String(), "records", len(samples))
			return &QueryResult{Samples: samples, Source: SourceCloud}, nil
		}
		s.logger.Warn("cloud history query failed, falling back to local", "date", filter.String(), "error", err)
	}

	samples, err := s.local.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query local samples: %w", err)
	}
	s.metrics.QueriesServed.WithLabelValues(SourceLocal).Inc()
	s.logger.Debug("history served from local", "date", filter.String(), "records", len(samples))
	return &QueryResult{Samples: samples, Source: SourceLocal}, nil
}
