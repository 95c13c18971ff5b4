package handler

import (
	"context"
	"net/http"
	"strconv"

	"raywatch/internal/repository"
)

// ChargerJournal is the read side of the charger journal
type ChargerJournal interface {
	ListChargers(ctx context.Context) ([]repository.Charger, error)
	RecentEvents(ctx context.Context, limit int) ([]repository.EventRecord, error)
}

// ChargerHandler serves the charger journal
type ChargerHandler struct {
	journal ChargerJournal
}

// NewChargerHandler creates a new charger handler
func NewChargerHandler(journal ChargerJournal) *ChargerHandler {
	return &ChargerHandler{journal: journal}
}

// ListChargers returns every charger ever seen
// GET /api/chargers
func (h *ChargerHandler) ListChargers(w http.ResponseWriter, r *http.Request) {
	chargers, err := h.journal.ListChargers(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to list chargers", err)
		return
	}
	if chargers == nil {
		chargers = []repository.Charger{}
	}
	writeJSON(w, r, chargers)
}

// RecentEvents returns the newest journaled events
// GET /api/events?limit=N
func (h *ChargerHandler) RecentEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 1000", nil)
			return
		}
		limit = n
	}

	events, err := h.journal.RecentEvents(r.Context(), limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to list events", err)
		return
	}
	if events == nil {
		events = []repository.EventRecord{}
	}
	writeJSON(w, r, events)
}
