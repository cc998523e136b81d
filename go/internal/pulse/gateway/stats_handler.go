package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pulseboard/go/internal/pulse"
)

// StatsHandler serves the health and stats endpoints
type StatsHandler struct {
	app   *pulse.App
	cm    *ConnectionManager
	clock clockwork.Clock
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(app *pulse.App, cm *ConnectionManager, clock clockwork.Clock) *StatsHandler {
	return &StatsHandler{app: app, cm: cm, clock: clock}
}

// HandleHealth reports liveness
func (h *StatsHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": h.clock.Now().UnixMilli(),
	})
}

// HandleStats returns connection and streak statistics
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Stats(h.cm.ConnectionCount()))
}

// RegisterRoutes registers the stats routes with an HTTP mux
func (h *StatsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /stats", h.HandleStats)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}
