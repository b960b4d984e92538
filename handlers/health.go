package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"relaywatch/server/storage"
)

// healthProbeTimeout bounds the database probe so a wedged store turns
// into an unhealthy response instead of a hung one.
const healthProbeTimeout = 5 * time.Second

// HealthAPI provides HTTP handlers for health checks and version
// information. The health check exercises the device store so a dead
// database is reported, not just a live process.
type HealthAPI struct {
	store        storage.Store
	version      string
	buildTime    string
	gitCommit    string
	processStart time.Time
}

// HealthAPIOptions configures the health API.
type HealthAPIOptions struct {
	Store        storage.Store
	Version      string
	BuildTime    string
	GitCommit    string
	ProcessStart time.Time
}

// NewHealthAPI creates a new health API instance.
func NewHealthAPI(opts HealthAPIOptions) *HealthAPI {
	return &HealthAPI{
		store:        opts.Store,
		version:      opts.Version,
		buildTime:    opts.BuildTime,
		gitCommit:    opts.GitCommit,
		processStart: opts.ProcessStart,
	}
}

// RegisterRoutes registers the health and version routes.
func (api *HealthAPI) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		mux = http.DefaultServeMux
	}
	mux.HandleFunc("/health", api.HandleHealth)
	mux.HandleFunc("/api/version", api.HandleVersion)
}

// HandleHealth handles GET /health - probes store connectivity. Public,
// for use by load balancers and container orchestrators.
func (api *HealthAPI) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	count, err := api.store.CountDevices(ctx)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "error",
			"detail": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"devices":   count,
		"timestamp": time.Now().UTC(),
	})
}

// HandleVersion handles GET /api/version - returns server build
// information. Public.
func (api *HealthAPI) HandleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":    api.version,
		"build_time": api.buildTime,
		"git_commit": api.gitCommit,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"uptime":     time.Since(api.processStart).String(),
	})
}
