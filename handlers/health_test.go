package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"relaywatch/server/storage"
)

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	if err := store.RecordHeartbeat(context.Background(), "dev-1", time.Unix(1000, 0).UTC()); err != nil {
		t.Fatal(err)
	}

	api := NewHealthAPI(HealthAPIOptions{Store: store, Version: "1.0.0"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	api.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeBody(t, w)
	if resp["status"] != "ok" {
		t.Errorf("status field = %v", resp["status"])
	}
	if resp["devices"] != float64(1) {
		t.Errorf("devices = %v, want 1", resp["devices"])
	}
}

// failingStore errors on every probe, standing in for a dead database.
type failingStore struct {
	storage.Store
}

func (f *failingStore) CountDevices(ctx context.Context) (int, error) {
	return 0, errors.New("connection refused")
}

func TestHandleHealthStoreDown(t *testing.T) {
	t.Parallel()

	api := NewHealthAPI(HealthAPIOptions{Store: &failingStore{}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	api.HandleHealth(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	resp := decodeBody(t, w)
	if resp["status"] != "error" {
		t.Errorf("status field = %v", resp["status"])
	}
}

func TestHandleVersion(t *testing.T) {
	t.Parallel()

	api := NewHealthAPI(HealthAPIOptions{
		Store:        newTestStore(t),
		Version:      "1.0.0",
		BuildTime:    "2026-01-01",
		GitCommit:    "abc123",
		ProcessStart: time.Now(),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	w := httptest.NewRecorder()
	api.HandleVersion(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeBody(t, w)
	for _, field := range []string{"version", "build_time", "git_commit", "go_version", "os", "arch", "uptime"} {
		if _, ok := resp[field]; !ok {
			t.Errorf("missing %s in response", field)
		}
	}
	if resp["version"] != "1.0.0" {
		t.Errorf("version = %v", resp["version"])
	}
}

func TestHealthAPIRegisterRoutes(t *testing.T) {
	t.Parallel()

	api := NewHealthAPI(HealthAPIOptions{Store: newTestStore(t), Version: "1.0.0"})
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	for _, path := range []string{"/health", "/api/version"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, w.Code)
		}
	}
}
