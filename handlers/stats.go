package handlers

import (
	"net/http"

	"relaywatch/server/stats"
)

// StatsAPI serves the cached fleet snapshot produced by the stats
// collector.
type StatsAPI struct {
	collector *stats.Collector
}

// NewStatsAPI creates a new stats API instance.
func NewStatsAPI(collector *stats.Collector) *StatsAPI {
	return &StatsAPI{collector: collector}
}

// RegisterRoutes registers the stats route.
func (api *StatsAPI) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		mux = http.DefaultServeMux
	}
	mux.HandleFunc("/api/stats", api.HandleStats)
}

// HandleStats handles GET /api/stats - returns the latest fleet
// snapshot. 503 until the first sample has completed.
func (api *StatsAPI) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snapshot := api.collector.Latest()
	if snapshot == nil {
		writeError(w, http.StatusServiceUnavailable, "no sample yet")
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}
