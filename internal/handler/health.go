package handler

import (
	"net/http"

	"raywatch/internal/service"
)

// StatsSource reports monitor progress
type StatsSource interface {
	Stats() service.Stats
}

// HealthHandler reports liveness and monitor progress
type HealthHandler struct {
	stats StatsSource
}

// NewHealthHandler creates a health handler. stats may be nil.
func NewHealthHandler(stats StatsSource) *HealthHandler {
	return &HealthHandler{stats: stats}
}

type healthResponse struct {
	Status  string         `json:"status"`
	Monitor *service.Stats `json:"monitor,omitempty"`
}

// Health returns 200 while the process is serving
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.stats != nil {
		s := h.stats.Stats()
		resp.Monitor = &s
	}
	writeJSON(w, r, resp)
}
