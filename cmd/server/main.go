package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prudhvinik1/robotrelay/internal/app"
	"github.com/prudhvinik1/robotrelay/internal/config"
	"github.com/prudhvinik1/robotrelay/internal/database"
	"github.com/prudhvinik1/robotrelay/internal/handlers"
	"github.com/prudhvinik1/robotrelay/internal/repositories"
	"github.com/prudhvinik1/robotrelay/internal/services"
	"github.com/spf13/pflag"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file to load before reading the environment")
	pflag.Parse()

	ctx := context.Background()

	godotenv.Load(*envFile)

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	relay, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize relay", "error", err)
		os.Exit(1)
	}
	defer relay.Close()

	// Redis is only a cache for broker reads; run without it if it is missing.
	var feedCache repositories.FeedCache = repositories.NewMemoryFeedCache()
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, using in-process feed cache", "error", err)
		} else {
			defer redisClient.Close()
			feedCache = repositories.NewRedisFeedCache(redisClient)
		}
	}

	poller := services.NewFeedPoller(services.FeedPollerConfig{
		Username: cfg.AIOUsername,
		Key:      cfg.AIOKey,
		Feeds:    cfg.AIOFeeds,
		CacheTTL: cfg.FeedCacheTTL,
	}, nil, feedCache, relay.Ingest, relay.Clock, logger)
	if !cfg.FeedsConfigured() {
		logger.Info("broker feeds not configured, live data disabled")
	}

	// Start the sync loop
	syncCtx, stopSync := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		relay.Engine.Run(syncCtx)
	}()

	// Initialize HTTP Server
	router := handlers.NewRouter(handlers.RouterDeps{
		Telemetry: handlers.NewTelemetryHandler(relay.Ingest, poller, relay.Query, logger),
		Sync:      handlers.NewSyncHandler(relay.Engine, relay.Status, relay.Local, logger),
		Tokens:    relay.Tokens,
		Metrics:   relay.Metrics,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	logger.Info("starting server", "port", cfg.ServerPort)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
	}

	stopSync()
	wg.Wait()

	logger.Info("server stopped gracefully")
}
