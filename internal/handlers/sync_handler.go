package handlers

import (
	"log/slog"
	"net/http"

	"github.com/prudhvinik1/robotrelay/internal/models"
	"github.com/prudhvinik1/robotrelay/internal/repositories"
	"github.com/prudhvinik1/robotrelay/internal/services"
)

type SyncHandler struct {
	engine *services.SyncEngine
	status repositories.SyncStatusRepository
	local  repositories.LocalSampleRepository
	logger *slog.Logger
}

func NewSyncHandler(engine *services.SyncEngine, status repositories.SyncStatusRepository, local repositories.LocalSampleRepository, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{engine: engine, status: status, local: local, logger: logger}
}

type syncStatusResponse struct {
	models.SyncStatus
	State       string `json:"state"`
	NeverSynced bool   `json:"never_synced"`
	Total       int64  `json:"total"`
}

// Status reports the last persisted sync outcome alongside live counts.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status, err := h.status.Get(ctx)
	if err != nil {
		h.logger.Error("failed to read sync status", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	pending, err := h.local.CountUnsynced(ctx)
	if err != nil {
		h.logger.Error("failed to count unsynced samples", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	total, err := h.local.Count(ctx)
	if err != nil {
		h.logger.Error("failed to count samples", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	status.Pending = pending

	writeJSON(w, http.StatusOK, syncStatusResponse{
		SyncStatus:  status,
		State:       h.engine.State().String(),
		NeverSynced: status.NeverSynced(),
		Total:       total,
	})
}

// Trigger schedules an immediate cycle on the running engine.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	h.engine.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}
