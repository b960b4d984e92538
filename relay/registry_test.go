package relay

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

// newRegistryFixture writes a relay-style sqlite database the way the
// relay server lays it out: a peer table with id, created_at, and an
// info JSON blob.
func newRegistryFixture(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "db_v2.sqlite3")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("opening fixture db: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE peer (
			id TEXT PRIMARY KEY,
			created_at INTEGER,
			info TEXT
		)
	`)
	if err != nil {
		t.Fatalf("creating peer table: %v", err)
	}

	_, err = db.Exec(`
		INSERT INTO peer (id, created_at, info) VALUES
			('relay-2', 2000, '{"ip":"198.51.100.7"}'),
			('relay-1', 1000, '{"ip":"203.0.113.4"}'),
			('relay-3', 3000, 'not json')
	`)
	if err != nil {
		t.Fatalf("inserting peers: %v", err)
	}
	return path
}

func TestListPeers(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(newRegistryFixture(t))
	if !registry.Available() {
		t.Fatal("fixture registry should be available")
	}

	peers, err := registry.ListPeers(context.Background())
	if err != nil {
		t.Fatalf("ListPeers: %v", err)
	}
	if len(peers) != 3 {
		t.Fatalf("got %d peers, want 3", len(peers))
	}

	// Ordered by created_at.
	if peers[0].ID != "relay-1" || peers[1].ID != "relay-2" || peers[2].ID != "relay-3" {
		t.Errorf("unexpected order: %s, %s, %s", peers[0].ID, peers[1].ID, peers[2].ID)
	}

	if peers[0].IP != "203.0.113.4" {
		t.Errorf("peer ip = %q", peers[0].IP)
	}
	if !peers[0].CreatedAt.Equal(time.Unix(1000, 0)) {
		t.Errorf("peer created_at = %v", peers[0].CreatedAt)
	}

	// Unparseable info JSON degrades to an empty ip, not an error.
	if peers[2].IP != "" {
		t.Errorf("bad info should yield empty ip, got %q", peers[2].IP)
	}
}

func TestListPeersMissingFile(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(filepath.Join(t.TempDir(), "nope.sqlite3"))
	if registry.Available() {
		t.Error("missing file should not be available")
	}
	if _, err := registry.ListPeers(context.Background()); err == nil {
		t.Error("expected error for missing registry")
	}
}

func TestRegistryEmptyPath(t *testing.T) {
	t.Parallel()

	registry := NewRegistry("")
	if registry.Available() {
		t.Error("empty path should not be available")
	}
}
