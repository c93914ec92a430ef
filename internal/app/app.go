// Package app wires the relay's stores and services from configuration. Both the
// server and the operator CLI build on it.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/prudhvinik1/robotrelay/internal/clock"
	"github.com/prudhvinik1/robotrelay/internal/config"
	"github.com/prudhvinik1/robotrelay/internal/database"
	"github.com/prudhvinik1/robotrelay/internal/metrics"
	"github.com/prudhvinik1/robotrelay/internal/models"
	"github.com/prudhvinik1/robotrelay/internal/repositories"
	"github.com/prudhvinik1/robotrelay/internal/services"
)

type App struct {
	DB      *sql.DB
	Local   *repositories.SQLiteSampleRepository
	Status  *repositories.SQLiteSyncStatusRepository
	Source  *models.Source
	Cloud   *repositories.CloudSampleStore
	Prober  *services.TCPProber
	Metrics *metrics.Metrics
	Clock   clock.Clock

	Ingest *services.IngestService
	Query  *services.QueryService
	Engine *services.SyncEngine
	Tokens *services.TokenService
}

// New opens the local store and builds every service. A local store that cannot be opened
// is fatal; a missing or unreachable cloud store is not.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := database.NewSQLiteDB(cfg.LocalDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	local := repositories.NewSQLiteSampleRepository(db)
	status := repositories.NewSQLiteSyncStatusRepository(db)
	sources := repositories.NewSQLiteSourceRepository(db)
	for _, initer := range []interface{ Init(context.Context) error }{local, status, sources} {
		if err := initer.Init(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	source, err := sources.GetOrCreate(ctx, sourceName())
	if err != nil {
		db.Close()
		return nil, err
	}

	clk := clock.Real()
	m := metrics.New()
	cloud := repositories.NewCloudSampleStore(cfg.DatabaseURL, cfg.CloudTimeout, source.ID)

	probeAddr := cfg.ProbeAddr
	if probeAddr == "" {
		probeAddr = services.ProbeAddrFromURL(cfg.DatabaseURL)
	}
	prober := services.NewTCPProber(probeAddr, cfg.ProbeTimeout)

	var cloudReader repositories.SampleReader
	if cfg.CloudConfigured() {
		cloudReader = cloud
	}

	a := &App{
		DB:      db,
		Local:   local,
		Status:  status,
		Source:  source,
		Cloud:   cloud,
		Prober:  prober,
		Metrics: m,
		Clock:   clk,
		Ingest:  services.NewIngestService(local, clk, m, logger),
		Query: services.NewQueryService(cloudReader, local, services.BreakerConfig{
			Failures: uint32(cfg.BreakerFailures),
			OpenFor:  cfg.BreakerOpenFor,
		}, m, logger),
		Engine: services.NewSyncEngine(local, cloud, prober, status, services.SyncEngineConfig{
			Interval:     cfg.SyncInterval,
			BatchSize:    cfg.SyncBatchSize,
			CloudTimeout: cfg.CloudTimeout,
		}, clk, m, logger),
		Tokens: NewTokenService(cfg),
	}

	logger.Info("relay initialized",
		"local_db", cfg.LocalDBPath,
		"source_id", source.ID,
		"cloud_configured", cfg.CloudConfigured(),
		"probe_addr", probeAddr,
	)
	return a, nil
}

// NewTokenService builds the producer token service without opening any store.
func NewTokenService(cfg *config.Config) *services.TokenService {
	return services.NewTokenService(cfg.JWTSecret, cfg.JWTExpiry, clock.Real())
}

func (a *App) Close() error {
	return a.DB.Close()
}

func sourceName() string {
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return "robotrelay"
}
