package handlers

import (
	"context"
	"io"
	"net/http"

	"spamcheck-backend/internal/models"
)

// Upstream is the slice of the prediction client the HTTP surface relays.
type Upstream interface {
	Forward(ctx context.Context, body []byte) (int, []byte, string, error)
	Metrics(ctx context.Context) (models.ModelMetrics, error)
	Health(ctx context.Context) (models.UpstreamStatus, error)
}

type StatsReader interface {
	Stats(ctx context.Context) (*models.CheckStats, error)
}

type UpstreamHandler struct {
	upstream Upstream
	stats    StatsReader
}

func NewUpstreamHandler(upstream Upstream, stats StatsReader) *UpstreamHandler {
	return &UpstreamHandler{upstream: upstream, stats: stats}
}

// Predict relays POST /predict to the configured endpoint so a page served
// from this origin can use the relative path.
func (h *UpstreamHandler) Predict(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("VALIDATION_ERROR", "Request body too large", r))
		return
	}

	status, respBody, contentType, err := h.upstream.Forward(r.Context(), body)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	w.Write(respBody)
}

func (h *UpstreamHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	m, err := h.upstream.Metrics(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if m.Error != "" {
		writeJSON(w, http.StatusBadGateway, m)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *UpstreamHandler) Health(w http.ResponseWriter, r *http.Request) {
	s, err := h.upstream.Health(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *UpstreamHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
