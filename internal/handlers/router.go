package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prudhvinik1/robotrelay/internal/metrics"
	"github.com/prudhvinik1/robotrelay/internal/services"
)

type RouterDeps struct {
	Telemetry *TelemetryHandler
	Sync      *SyncHandler
	Tokens    *services.TokenService
	Metrics   *metrics.Metrics
}

func NewRouter(deps RouterDeps) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	// Health check endpoints
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Get("/live-data", deps.Telemetry.LiveData)
		r.Post("/historical-data", deps.Telemetry.HistoricalData)
		r.With(RequireProducer(deps.Tokens)).Post("/samples", deps.Telemetry.CreateSample)

		r.Get("/sync-status", deps.Sync.Status)
		r.Post("/sync", deps.Sync.Trigger)
	})

	return router
}
