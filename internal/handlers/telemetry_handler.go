package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/prudhvinik1/robotrelay/internal/models"
	"github.com/prudhvinik1/robotrelay/internal/services"
)

type TelemetryHandler struct {
	ingest *services.IngestService
	poller *services.FeedPoller
	query  *services.QueryService
	logger *slog.Logger
}

func NewTelemetryHandler(ingest *services.IngestService, poller *services.FeedPoller, query *services.QueryService, logger *slog.Logger) *TelemetryHandler {
	return &TelemetryHandler{ingest: ingest, poller: poller, query: query, logger: logger}
}

// LiveData polls the broker, records the sample and returns the raw feed values.
func (h *TelemetryHandler) LiveData(w http.ResponseWriter, r *http.Request) {
	live, err := h.poller.Poll(r.Context())
	if errors.Is(err, services.ErrFeedsNotConfigured) {
		writeError(w, http.StatusServiceUnavailable, "live feeds not configured")
		return
	}
	if err != nil {
		h.logger.Error("live data poll failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, live)
}

type createSampleResponse struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
}

// CreateSample ingests one sample pushed by a producer.
func (h *TelemetryHandler) CreateSample(w http.ResponseWriter, r *http.Request) {
	var sample models.SensorSample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		writeError(w, http.StatusBadRequest, "invalid sample body")
		return
	}
	sample.ID = 0
	sample.Synced = false

	id, err := h.ingest.Ingest(r.Context(), &sample)
	if errors.Is(err, services.ErrInvalidTimestamp) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save sample")
		return
	}

	if producer := ProducerFromContext(r.Context()); producer != "" {
		h.logger.Debug("sample received", "producer", producer, "id", id)
	}
	writeJSON(w, http.StatusCreated, createSampleResponse{ID: id, Timestamp: sample.Timestamp})
}

type historicalRequest struct {
	Date *string `json:"date"`
}

// historicalResponse is column-oriented for direct use by charting front ends.
type historicalResponse struct {
	Timestamps []string   `json:"timestamps"`
	Ultrasonic []*float64 `json:"ultrasonic"`
	IRLeft     []*int     `json:"ir_left"`
	IRCenter   []*int     `json:"ir_center"`
	IRRight    []*int     `json:"ir_right"`
	LineState  []string   `json:"line_state"`
	Source     string     `json:"source"`
}

// HistoricalData returns every sample for the requested date, or all samples when no date
// is given.
func (h *TelemetryHandler) HistoricalData(w http.ResponseWriter, r *http.Request) {
	var req historicalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "JSON body required")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var filter models.DateFilter
	if req.Date != nil {
		f, err := models.ParseDateFilter(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter = f
	}

	result, err := h.query.Query(r.Context(), filter)
	if err != nil {
		h.logger.Error("historical query failed", "date", filter.String(), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toHistoricalResponse(result))
}

func toHistoricalResponse(result *services.QueryResult) historicalResponse {
	n := len(result.Samples)
	resp := historicalResponse{
		Timestamps: make([]string, 0, n),
		Ultrasonic: make([]*float64, 0, n),
		IRLeft:     make([]*int, 0, n),
		IRCenter:   make([]*int, 0, n),
		IRRight:    make([]*int, 0, n),
		LineState:  make([]string, 0, n),
		Source:     result.Source,
	}
	for _, s := range result.Samples {
		resp.Timestamps = append(resp.Timestamps, s.Timestamp)
		resp.Ultrasonic = append(resp.Ultrasonic, s.UltrasonicCM)
		resp.IRLeft = append(resp.IRLeft, s.IRLeft)
		resp.IRCenter = append(resp.IRCenter, s.IRCenter)
		resp.IRRight = append(resp.IRRight, s.IRRight)

		lineState := ""
		if s.LineState != nil {
			lineState = *s.LineState
		}
		resp.LineState = append(resp.LineState, lineState)
	}
	return resp
}
