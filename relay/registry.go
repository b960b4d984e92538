// Package relay reads the external relay server's own device registry.
// The registry database belongs to the relay server: its schema and update
// cadence are outside our control, and RelayWatch never writes to it. Its
// id space is treated as independent from the monitor's device ids.
package relay

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO required)
)

// Peer is one row of the relay server's peer table.
type Peer struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	IP        string    `json:"ip,omitempty"`
}

// Registry is a read-only view over the relay server's sqlite database.
// The file is opened per query so a registry rotated or rewritten by the
// relay server is picked up without restarts.
type Registry struct {
	path string
}

// NewRegistry creates a registry reader for the given database path. The
// file not existing is not an error here; it is reported per query.
func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

// Path returns the registry database path.
func (r *Registry) Path() string {
	return r.path
}

// Available reports whether the registry database file currently exists.
func (r *Registry) Available() bool {
	if r.path == "" {
		return false
	}
	_, err := os.Stat(r.path)
	return err == nil
}

// ListPeers returns every peer ordered by creation time. The info column
// is relay-internal JSON; only the ip is surfaced.
func (r *Registry) ListPeers(ctx context.Context) ([]*Peer, error) {
	if !r.Available() {
		return nil, fmt.Errorf("relay registry not found: %s", r.path)
	}

	db, err := sql.Open("sqlite", "file:"+r.path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open relay registry: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT id, created_at, info
		FROM peer
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query relay registry: %w", err)
	}
	defer rows.Close()

	var peers []*Peer
	for rows.Next() {
		var id sql.NullString
		var createdAt interface{}
		var info sql.NullString

		if err := rows.Scan(&id, &createdAt, &info); err != nil {
			return nil, err
		}

		peer := &Peer{
			ID:        id.String,
			CreatedAt: parseCreatedAt(createdAt),
			IP:        ipFromInfo(info),
		}
		peers = append(peers, peer)
	}
	return peers, rows.Err()
}

// parseCreatedAt copes with the formats the relay server has used over
// time: unix seconds and textual datetimes.
func parseCreatedAt(raw interface{}) time.Time {
	switch v := raw.(type) {
	case int64:
		return time.Unix(v, 0)
	case float64:
		return time.Unix(int64(v), 0)
	case time.Time:
		return v
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

func ipFromInfo(info sql.NullString) string {
	if !info.Valid || info.String == "" {
		return ""
	}
	var parsed struct {
		IP string `json:"ip"`
	}
	if err := json.Unmarshal([]byte(info.String), &parsed); err != nil {
		return ""
	}
	return parsed.IP
}
