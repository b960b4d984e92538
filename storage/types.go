package storage

import (
	"context"
	"errors"
	"time"
)

// ErrDeviceNotFound indicates an operation referenced a device that has
// never reported. Callers surface it as a client error, not a crash.
var ErrDeviceNotFound = errors.New("device not found")

// Device is the one persisted row per reporting client. Online/offline is
// never stored here; it is derived from LastSeen at query time.
type Device struct {
	DeviceID  string    `json:"device_id"`
	Hostname  string    `json:"hostname,omitempty"`
	Username  string    `json:"username,omitempty"`
	OS        string    `json:"os,omitempty"`
	CPU       string    `json:"cpu,omitempty"`
	Memory    string    `json:"memory,omitempty"`
	Version   string    `json:"version,omitempty"`
	IP        string    `json:"ip,omitempty"`
	Note      string    `json:"note"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// HeartbeatEntry is one row of the capped heartbeat audit log.
type HeartbeatEntry struct {
	ID          int64     `json:"id"`
	DeviceID    string    `json:"device_id"`
	IP          string    `json:"ip,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	ClientBuild int64     `json:"client_build,omitempty"`
}

// Store defines the device store contract. All single-row mutations are
// atomic with respect to concurrent mutations of the same row; the
// monotonic last_seen rule is enforced inside the database.
type Store interface {
	// RecordHeartbeat upserts the device row and advances last_seen to
	// max(stored, ts). A late heartbeat never moves the clock backward.
	RecordHeartbeat(ctx context.Context, deviceID string, ts time.Time) error

	// RecordSysinfo applies the same upsert and monotonic last_seen rule,
	// and unconditionally overwrites every telemetry field present in
	// fields. Absent fields keep their prior value. The note is never
	// touched by ingestion.
	RecordSysinfo(ctx context.Context, deviceID string, ts time.Time, fields map[string]string) error

	// SetNote replaces the user note. Returns ErrDeviceNotFound if the
	// device has never reported; no row is created.
	SetNote(ctx context.Context, deviceID string, note string) error

	GetDevice(ctx context.Context, deviceID string) (*Device, error)

	// ListDevices returns every row in a stable order (first_seen, then
	// device_id).
	ListDevices(ctx context.Context) ([]*Device, error)

	// SearchDevices filters case-insensitively by substring over
	// device_id, hostname, username, and ip. Empty query lists all.
	SearchDevices(ctx context.Context, query string) ([]*Device, error)

	// CountDevices is a cheap connectivity probe used by the health check.
	CountDevices(ctx context.Context) (int, error)

	// LogHeartbeat appends to the heartbeat audit log, pruning it to the
	// most recent maxHeartbeatLogRows entries.
	LogHeartbeat(ctx context.Context, entry *HeartbeatEntry) error

	// RecentHeartbeats returns up to limit most recent log entries.
	RecentHeartbeats(ctx context.Context, limit int) ([]*HeartbeatEntry, error)

	Close() error
}
