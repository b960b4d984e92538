// Package handlers provides the HTTP API for the RelayWatch server.
// Handlers hold their dependencies as injected interfaces so tests can
// run them against an in-memory store and a nil broadcaster.
package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

// Logger provides logging capabilities.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Event is a server push notification about device activity.
type Event struct {
	Type     string                 `json:"type"`
	DeviceID string                 `json:"device_id,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// EventBroadcaster fans events out to connected watchers. Implementations
// must never block the caller.
type EventBroadcaster interface {
	Broadcast(event Event)
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body in the shape clients expect.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// getRealIP extracts the client IP address, respecting reverse proxy
// headers. X-Forwarded-For may hold a chain; the first hop is the client.
func getRealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
