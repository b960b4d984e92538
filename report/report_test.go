package report

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestParseHeartbeat(t *testing.T) {
	t.Parallel()

	r, err := ParseHeartbeat(map[string]interface{}{
		"device_id": "dev-1",
		"ver":       float64(25),
	}, testNow)
	if err != nil {
		t.Fatalf("ParseHeartbeat: %v", err)
	}
	if r.DeviceID != "dev-1" {
		t.Errorf("DeviceID = %q", r.DeviceID)
	}
	if !r.Timestamp.Equal(testNow) {
		t.Errorf("Timestamp = %v, want server now %v", r.Timestamp, testNow)
	}
	if r.ClientBuild != 25 {
		t.Errorf("ClientBuild = %d, want 25", r.ClientBuild)
	}
}

func TestParseHeartbeatLegacyIDKey(t *testing.T) {
	t.Parallel()

	r, err := ParseHeartbeat(map[string]interface{}{"id": "legacy-7"}, testNow)
	if err != nil {
		t.Fatalf("ParseHeartbeat: %v", err)
	}
	if r.DeviceID != "legacy-7" {
		t.Errorf("DeviceID = %q, want legacy-7", r.DeviceID)
	}
}

func TestParseHeartbeatMissingDeviceID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload map[string]interface{}
	}{
		{"nil payload", nil},
		{"empty payload", map[string]interface{}{}},
		{"empty device_id", map[string]interface{}{"device_id": ""}},
		{"whitespace device_id", map[string]interface{}{"device_id": "   "}},
		{"non-string device_id", map[string]interface{}{"device_id": map[string]interface{}{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseHeartbeat(tt.payload, testNow)
			if !errors.Is(err, ErrMalformedReport) {
				t.Errorf("expected ErrMalformedReport, got %v", err)
			}
		})
	}
}

func TestTimestampHandling(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload map[string]interface{}
		want    time.Time
	}{
		{
			"absent defaults to server now",
			map[string]interface{}{"device_id": "d"},
			testNow,
		},
		{
			"unix seconds honored",
			map[string]interface{}{"device_id": "d", "timestamp": float64(1000)},
			time.Unix(1000, 0),
		},
		{
			"rfc3339 honored",
			map[string]interface{}{"device_id": "d", "timestamp": "2026-01-02T15:04:05Z"},
			time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
		},
		{
			"numeric string honored",
			map[string]interface{}{"device_id": "d", "timestamp": "1000"},
			time.Unix(1000, 0),
		},
		{
			"garbage falls back to server now",
			map[string]interface{}{"device_id": "d", "timestamp": "last tuesday"},
			testNow,
		},
		{
			"negative falls back to server now",
			map[string]interface{}{"device_id": "d", "timestamp": float64(-5)},
			testNow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, err := ParseHeartbeat(tt.payload, testNow)
			if err != nil {
				t.Fatalf("ParseHeartbeat: %v", err)
			}
			if !r.Timestamp.Equal(tt.want) {
				t.Errorf("Timestamp = %v, want %v", r.Timestamp, tt.want)
			}
		})
	}
}

func TestParseSysinfoFields(t *testing.T) {
	t.Parallel()

	r, err := ParseSysinfo(map[string]interface{}{
		"device_id": "dev-1",
		"hostname":  "alice-pc",
		"username":  "alice",
		"os":        "Ubuntu 24.04",
		"memory":    float64(16384),
		"ip":        "10.0.0.5",
		"extra_key": "ignored",
	}, testNow)
	if err != nil {
		t.Fatalf("ParseSysinfo: %v", err)
	}

	want := map[string]string{
		"hostname": "alice-pc",
		"username": "alice",
		"os":       "Ubuntu 24.04",
		"memory":   "16384",
		"ip":       "10.0.0.5",
	}
	if len(r.Fields) != len(want) {
		t.Fatalf("Fields = %v, want %v", r.Fields, want)
	}
	for k, v := range want {
		if r.Fields[k] != v {
			t.Errorf("Fields[%q] = %q, want %q", k, r.Fields[k], v)
		}
	}
	if _, ok := r.Fields["cpu"]; ok {
		t.Error("absent cpu field should not appear in Fields")
	}
}

func TestParseSysinfoPresentEmptyField(t *testing.T) {
	t.Parallel()

	r, err := ParseSysinfo(map[string]interface{}{
		"device_id": "dev-1",
		"hostname":  "",
	}, testNow)
	if err != nil {
		t.Fatalf("ParseSysinfo: %v", err)
	}
	if v, ok := r.Fields["hostname"]; !ok || v != "" {
		t.Errorf("present empty hostname should overwrite: Fields=%v", r.Fields)
	}
}

func TestParseSysinfoTruncatesLongValues(t *testing.T) {
	t.Parallel()

	r, err := ParseSysinfo(map[string]interface{}{
		"device_id": "dev-1",
		"hostname":  strings.Repeat("h", 300),
		"memory":    strings.Repeat("m", 200),
	}, testNow)
	if err != nil {
		t.Fatalf("ParseSysinfo: %v", err)
	}
	if len(r.Fields["hostname"]) != 255 {
		t.Errorf("hostname length = %d, want 255", len(r.Fields["hostname"]))
	}
	if len(r.Fields["memory"]) != 100 {
		t.Errorf("memory length = %d, want 100", len(r.Fields["memory"]))
	}
}
