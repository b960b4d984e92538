// Package report normalizes and sanity-checks raw heartbeat and sysinfo
// payloads before they touch the device store. Parsing has no side effects;
// a payload either yields a normalized Report or ErrMalformedReport.
package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedReport indicates the client sent an unusable payload.
var ErrMalformedReport = errors.New("malformed report")

// Maximum stored lengths per telemetry field. Values beyond the cap are
// truncated rather than rejected.
var fieldLimits = map[string]int{
	"hostname": 255,
	"username": 255,
	"os":       500,
	"cpu":      500,
	"memory":   100,
	"version":  50,
	"ip":       45, // Longest textual IPv6 form
}

const maxDeviceIDLen = 255

// Report is a normalized heartbeat or sysinfo submission.
type Report struct {
	DeviceID  string
	Timestamp time.Time
	// Fields holds only the telemetry keys actually present in the payload.
	// A key present with an empty value still counts as present and will
	// overwrite the stored value.
	Fields map[string]string
	// ClientBuild is the numeric build identifier some clients attach to
	// heartbeats ("ver"). Zero when absent.
	ClientBuild int64
}

// ParseHeartbeat normalizes a heartbeat payload. Only device identity and
// time are extracted; any telemetry keys are ignored.
func ParseHeartbeat(payload map[string]interface{}, now time.Time) (*Report, error) {
	r, err := parseCommon(payload, now)
	if err != nil {
		return nil, err
	}
	r.ClientBuild = intValue(payload["ver"])
	return r, nil
}

// ParseSysinfo normalizes a sysinfo payload, extracting every recognized
// telemetry field that is present. Unknown keys are ignored for forward
// compatibility with newer clients.
func ParseSysinfo(payload map[string]interface{}, now time.Time) (*Report, error) {
	r, err := parseCommon(payload, now)
	if err != nil {
		return nil, err
	}

	r.Fields = make(map[string]string)
	for key, limit := range fieldLimits {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		val, ok := stringValue(raw)
		if !ok {
			continue
		}
		r.Fields[key] = truncate(val, limit)
	}
	return r, nil
}

func parseCommon(payload map[string]interface{}, now time.Time) (*Report, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedReport)
	}

	deviceID := deviceIDFrom(payload)
	if deviceID == "" {
		return nil, fmt.Errorf("%w: missing device_id", ErrMalformedReport)
	}

	return &Report{
		DeviceID:  truncate(deviceID, maxDeviceIDLen),
		Timestamp: timestampFrom(payload, now),
	}, nil
}

// deviceIDFrom accepts both the documented "device_id" key and the legacy
// "id" key older clients send.
func deviceIDFrom(payload map[string]interface{}) string {
	for _, key := range []string{"device_id", "id"} {
		if val, ok := stringValue(payload[key]); ok {
			if trimmed := strings.TrimSpace(val); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// timestampFrom honors an explicit, parseable timestamp (unix seconds or
// RFC 3339); otherwise the server's own clock is used. Clients are not
// trusted to supply correct clocks, so an unparseable value falls back to
// now rather than failing the report.
func timestampFrom(payload map[string]interface{}, now time.Time) time.Time {
	raw, ok := payload["timestamp"]
	if !ok {
		return now
	}

	switch v := raw.(type) {
	case float64:
		if v > 0 {
			sec := int64(v)
			nsec := int64((v - float64(sec)) * float64(time.Second))
			return time.Unix(sec, nsec)
		}
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return now
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
		if sec, err := strconv.ParseFloat(s, 64); err == nil && sec > 0 {
			return time.Unix(int64(sec), 0)
		}
	}
	return now
}

// stringValue converts scalar JSON values to strings the way the wire
// format expects. Objects, arrays, and nulls do not count as present.
func stringValue(raw interface{}) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

func intValue(raw interface{}) int64 {
	switch v := raw.(type) {
	case float64:
		return int64(v)
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
