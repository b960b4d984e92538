package handlers

import (
	"net/http"

	"relaywatch/server/relay"
)

// RelayAPI exposes the relay server's own peer registry read-only. The
// registry file may legitimately not exist (monitor deployed apart from
// the relay), so absence is reported as an empty result, not an error.
type RelayAPI struct {
	registry *relay.Registry
	log      Logger
}

// NewRelayAPI creates a new relay API instance.
func NewRelayAPI(registry *relay.Registry, log Logger) *RelayAPI {
	return &RelayAPI{registry: registry, log: log}
}

// RegisterRoutes registers the relay registry routes.
func (api *RelayAPI) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		mux = http.DefaultServeMux
	}
	mux.HandleFunc("/api/relay/peers", api.HandleListPeers)
}

// HandleListPeers handles GET /api/relay/peers - lists peers registered
// with the relay server, ordered by registration time.
func (api *RelayAPI) HandleListPeers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !api.registry.Available() {
		api.log.Warn("Relay registry unavailable", "path", api.registry.Path())
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"available": false,
			"total":     0,
			"peers":     []*relay.Peer{},
		})
		return
	}

	peers, err := api.registry.ListPeers(r.Context())
	if err != nil {
		api.log.Error("Failed to read relay registry", "path", api.registry.Path(), "error", err.Error())
		writeError(w, http.StatusInternalServerError, "relay registry error")
		return
	}
	if peers == nil {
		peers = []*relay.Peer{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"available": true,
		"total":     len(peers),
		"peers":     peers,
	})
}
