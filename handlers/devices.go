package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"relaywatch/server/presence"
	"relaywatch/server/report"
	"relaywatch/server/storage"

	"github.com/Masterminds/semver"
)

const (
	// Request body caps. Heartbeats are tiny; sysinfo carries free-form
	// hardware strings and gets more room.
	maxHeartbeatBody = 10 * 1024
	maxSysinfoBody   = 50 * 1024

	maxNoteLen = 500

	defaultRecentHeartbeats = 100
)

// DeviceAPI provides HTTP handlers for report ingestion and device queries.
type DeviceAPI struct {
	store            storage.Store
	log              Logger
	events           EventBroadcaster
	offlineTimeout   time.Duration
	minClientVersion *semver.Version
	now              func() time.Time
}

// DeviceAPIOptions configures the device API.
type DeviceAPIOptions struct {
	Store          storage.Store
	Logger         Logger
	Events         EventBroadcaster
	OfflineTimeout time.Duration

	// MinClientVersion, when non-empty, is the oldest client version the
	// operator considers current. Older clients are flagged, not rejected.
	MinClientVersion string

	// Now overrides the clock for tests.
	Now func() time.Time
}

// NewDeviceAPI creates a new device API instance.
func NewDeviceAPI(opts DeviceAPIOptions) *DeviceAPI {
	api := &DeviceAPI{
		store:          opts.Store,
		log:            opts.Logger,
		events:         opts.Events,
		offlineTimeout: opts.OfflineTimeout,
		now:            opts.Now,
	}
	if api.now == nil {
		api.now = time.Now
	}
	if opts.MinClientVersion != "" {
		min, err := semver.NewVersion(opts.MinClientVersion)
		if err != nil {
			if api.log != nil {
				api.log.Warn("Ignoring unparseable min_client_version",
					"value", opts.MinClientVersion, "error", err.Error())
			}
		} else {
			api.minClientVersion = min
		}
	}
	return api
}

// RegisterRoutes registers the ingestion and query routes.
func (api *DeviceAPI) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		mux = http.DefaultServeMux
	}
	mux.HandleFunc("/api/heartbeat", api.HandleHeartbeat)
	mux.HandleFunc("/api/sysinfo", api.HandleSysinfo)
	mux.HandleFunc("/api/devices", api.HandleListDevices)
	mux.HandleFunc("/api/device/note", api.HandleSetNote)
	mux.HandleFunc("/api/heartbeats", api.HandleRecentHeartbeats)
}

// HandleHeartbeat handles POST /api/heartbeat - a liveness ping from a
// device. Only identity and time are taken from the body; telemetry keys
// in a heartbeat are ignored.
func (api *DeviceAPI) HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	payload, ok := api.decodePayload(w, r, maxHeartbeatBody)
	if !ok {
		return
	}

	now := api.now().UTC()
	rep, err := report.ParseHeartbeat(payload, now)
	if err != nil {
		api.log.Warn("Rejected heartbeat", "ip", getRealIP(r), "error", err.Error())
		writeError(w, http.StatusBadRequest, "malformed heartbeat")
		return
	}

	ts := rep.Timestamp.UTC()
	if err := api.store.RecordHeartbeat(r.Context(), rep.DeviceID, ts); err != nil {
		api.log.Error("Failed to record heartbeat", "device_id", rep.DeviceID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}

	// The audit log is best-effort; a prune race must not fail the ping.
	logEntry := &storage.HeartbeatEntry{
		DeviceID:    rep.DeviceID,
		IP:          getRealIP(r),
		Timestamp:   ts,
		ClientBuild: rep.ClientBuild,
	}
	if err := api.store.LogHeartbeat(r.Context(), logEntry); err != nil {
		api.log.Warn("Failed to log heartbeat", "device_id", rep.DeviceID, "error", err.Error())
	}

	api.broadcast(Event{Type: "heartbeat", DeviceID: rep.DeviceID})
	api.log.Debug("Heartbeat recorded", "device_id", rep.DeviceID, "ip", logEntry.IP)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleSysinfo handles POST /api/sysinfo - a telemetry snapshot. Fields
// present in the body overwrite stored values; absent fields are kept.
func (api *DeviceAPI) HandleSysinfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	payload, ok := api.decodePayload(w, r, maxSysinfoBody)
	if !ok {
		return
	}

	now := api.now().UTC()
	rep, err := report.ParseSysinfo(payload, now)
	if err != nil {
		api.log.Warn("Rejected sysinfo", "ip", getRealIP(r), "error", err.Error())
		writeError(w, http.StatusBadRequest, "malformed sysinfo")
		return
	}

	if _, ok := rep.Fields["ip"]; !ok {
		// Clients behind NAT rarely know their public address; fall back
		// to the address the report arrived from.
		rep.Fields["ip"] = getRealIP(r)
	}

	ts := rep.Timestamp.UTC()
	if err := api.store.RecordSysinfo(r.Context(), rep.DeviceID, ts, rep.Fields); err != nil {
		api.log.Error("Failed to record sysinfo", "device_id", rep.DeviceID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}

	api.checkClientVersion(rep.DeviceID, rep.Fields["version"])
	api.broadcast(Event{Type: "sysinfo", DeviceID: rep.DeviceID})
	api.log.Debug("Sysinfo recorded", "device_id", rep.DeviceID, "fields", len(rep.Fields))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// deviceView is a device row plus its presence, derived at query time.
type deviceView struct {
	*storage.Device
	Online bool            `json:"online"`
	Status presence.Status `json:"status"`
}

// HandleListDevices handles GET /api/devices - lists all devices with
// derived presence, optionally filtered by ?q= substring search.
func (api *DeviceAPI) HandleListDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := r.URL.Query().Get("q")
	devices, err := api.store.SearchDevices(r.Context(), query)
	if err != nil {
		api.log.Error("Failed to list devices", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}

	// Presence is evaluated against one clock reading so a slow scan
	// cannot report contradictory counts.
	now := api.now()
	views := make([]*deviceView, 0, len(devices))
	online := 0
	for _, d := range devices {
		status := presence.Of(d.LastSeen, now, api.offlineTimeout)
		if status == presence.Online {
			online++
		}
		views = append(views, &deviceView{
			Device: d,
			Online: status == presence.Online,
			Status: status,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":   len(views),
		"online":  online,
		"offline": len(views) - online,
		"devices": views,
	})
}

// HandleSetNote handles POST /api/device/note - attaches an operator note
// to a known device. Unknown devices get 404; a note never creates a row.
func (api *DeviceAPI) HandleSetNote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		DeviceID string `json:"device_id"`
		ID       string `json:"id"`
		Note     string `json:"note"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxHeartbeatBody)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	deviceID := body.DeviceID
	if deviceID == "" {
		deviceID = body.ID
	}
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "missing device_id")
		return
	}

	note := body.Note
	if len(note) > maxNoteLen {
		note = note[:maxNoteLen]
	}

	if err := api.store.SetNote(r.Context(), deviceID, note); err != nil {
		if errors.Is(err, storage.ErrDeviceNotFound) {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}
		api.log.Error("Failed to set note", "device_id", deviceID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}

	api.broadcast(Event{Type: "note", DeviceID: deviceID})
	api.log.Info("Note updated", "device_id", deviceID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleRecentHeartbeats handles GET /api/heartbeats - returns the tail of
// the heartbeat audit log, newest first.
func (api *DeviceAPI) HandleRecentHeartbeats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := defaultRecentHeartbeats
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := api.store.RecentHeartbeats(r.Context(), limit)
	if err != nil {
		api.log.Error("Failed to read heartbeat log", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	if entries == nil {
		entries = []*storage.HeartbeatEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":      len(entries),
		"heartbeats": entries,
	})
}

// decodePayload reads a size-capped JSON object body. It writes the error
// response itself and reports success via the second return.
func (api *DeviceAPI) decodePayload(w http.ResponseWriter, r *http.Request, maxBytes int64) (map[string]interface{}, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	return payload, true
}

// checkClientVersion flags devices running builds older than the
// configured floor. Purely advisory; old clients keep reporting.
func (api *DeviceAPI) checkClientVersion(deviceID, version string) {
	if api.minClientVersion == nil || version == "" {
		return
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		// Clients report free-form version strings; unparseable ones are
		// not worth warning about.
		return
	}
	if v.LessThan(api.minClientVersion) {
		api.log.Warn("Device running outdated client",
			"device_id", deviceID,
			"version", version,
			"min_version", api.minClientVersion.String())
	}
}

func (api *DeviceAPI) broadcast(event Event) {
	if api.events != nil {
		api.events.Broadcast(event)
	}
}
