package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// maxHeartbeatLogRows caps the heartbeat audit log. Older rows are pruned
// on insert.
const maxHeartbeatLogRows = 1000

// telemetryColumns is the fixed set of overwritable telemetry fields.
// Field keys in a sysinfo report map 1:1 onto these column names; anything
// else never reaches SQL.
var telemetryColumns = []string{"hostname", "username", "os", "cpu", "memory", "version", "ip"}

// BaseStore implements the device operations shared by the SQLite and
// PostgreSQL backends. Queries are written with ? placeholders and
// converted per dialect.
type BaseStore struct {
	db      *sql.DB
	dialect Dialect
	dbPath  string // SQLite file path, empty for Postgres
}

// DB returns the underlying database connection.
func (s *BaseStore) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect in use.
func (s *BaseStore) Dialect() Dialect {
	return s.dialect
}

// Path returns the SQLite database path, or empty for PostgreSQL.
func (s *BaseStore) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *BaseStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *BaseStore) query(q string) string {
	if s.dialect.Name() == "postgres" {
		return ConvertPlaceholders(q)
	}
	return q
}

func (s *BaseStore) execContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.query(query), args...)
}

func (s *BaseStore) queryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.query(query), args...)
}

func (s *BaseStore) queryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, s.query(query), args...)
}

// RecordHeartbeat upserts the device row and advances last_seen
// monotonically. The whole rule lives in one SQL statement, so two
// near-simultaneous reports for the same device cannot regress the clock.
func (s *BaseStore) RecordHeartbeat(ctx context.Context, deviceID string, ts time.Time) error {
	ts = ts.UTC()
	query := fmt.Sprintf(`
		INSERT INTO devices (device_id, note, first_seen, last_seen)
		VALUES (?, '', ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			last_seen = %s
	`, s.dialect.Greatest("last_seen", "excluded.last_seen"))

	_, err := s.execContext(ctx, query, deviceID, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to record heartbeat for %s: %w", deviceID, err)
	}
	return nil
}

// RecordSysinfo applies the heartbeat upsert rule and overwrites exactly
// the telemetry fields present in fields. Liveness stays monotonic while
// field content is last-write-wins regardless of the claimed timestamp;
// the two rules are deliberately kept apart.
func (s *BaseStore) RecordSysinfo(ctx context.Context, deviceID string, ts time.Time, fields map[string]string) error {
	ts = ts.UTC()

	insertCols := []string{"device_id", "note", "first_seen", "last_seen"}
	insertVals := []string{"?", "''", "?", "?"}
	args := []interface{}{deviceID, ts, ts}
	updates := []string{
		"last_seen = " + s.dialect.Greatest("last_seen", "excluded.last_seen"),
	}

	for _, col := range telemetryColumns {
		val, ok := fields[col]
		if !ok {
			continue
		}
		insertCols = append(insertCols, col)
		insertVals = append(insertVals, "?")
		args = append(args, val)
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
	}

	query := fmt.Sprintf(`
		INSERT INTO devices (%s)
		VALUES (%s)
		ON CONFLICT(device_id) DO UPDATE SET
			%s
	`, strings.Join(insertCols, ", "), strings.Join(insertVals, ", "), strings.Join(updates, ",\n\t\t\t"))

	_, err := s.execContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to record sysinfo for %s: %w", deviceID, err)
	}
	return nil
}

// SetNote replaces the user note for an existing device.
func (s *BaseStore) SetNote(ctx context.Context, deviceID string, note string) error {
	res, err := s.execContext(ctx, `UPDATE devices SET note = ? WHERE device_id = ?`, note, deviceID)
	if err != nil {
		return fmt.Errorf("failed to set note for %s: %w", deviceID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	return nil
}

const deviceColumns = `device_id, hostname, username, os, cpu, memory, version, ip, note, first_seen, last_seen`

// GetDevice retrieves a device by its identifier.
func (s *BaseStore) GetDevice(ctx context.Context, deviceID string) (*Device, error) {
	row := s.queryRowContext(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		WHERE device_id = ?
	`, deviceID)

	device, err := scanDevice(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	if err != nil {
		return nil, err
	}
	return device, nil
}

// ListDevices returns every device. Ordering is by first_seen then
// device_id so a single response is always stably ordered.
func (s *BaseStore) ListDevices(ctx context.Context) ([]*Device, error) {
	return s.queryDevices(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		ORDER BY first_seen ASC, device_id ASC
	`)
}

// SearchDevices filters case-insensitively by substring over device_id,
// hostname, username, and ip.
func (s *BaseStore) SearchDevices(ctx context.Context, query string) ([]*Device, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return s.ListDevices(ctx)
	}

	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
	return s.queryDevices(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		WHERE LOWER(device_id) LIKE ? ESCAPE '\'
		   OR LOWER(hostname) LIKE ? ESCAPE '\'
		   OR LOWER(username) LIKE ? ESCAPE '\'
		   OR LOWER(ip) LIKE ? ESCAPE '\'
		ORDER BY first_seen ASC, device_id ASC
	`, pattern, pattern, pattern, pattern)
}

// CountDevices returns the row count. The health probe uses it as a
// read-only connectivity check.
func (s *BaseStore) CountDevices(ctx context.Context) (int, error) {
	var count int
	err := s.queryRowContext(ctx, `SELECT COUNT(*) FROM devices`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count devices: %w", err)
	}
	return count, nil
}

// LogHeartbeat appends a heartbeat audit row and prunes the log to the
// most recent maxHeartbeatLogRows entries.
func (s *BaseStore) LogHeartbeat(ctx context.Context, entry *HeartbeatEntry) error {
	_, err := s.execContext(ctx, `
		INSERT INTO heartbeat_log (device_id, ip, timestamp, client_build)
		VALUES (?, ?, ?, ?)
	`, entry.DeviceID, entry.IP, entry.Timestamp.UTC(), entry.ClientBuild)
	if err != nil {
		return fmt.Errorf("failed to log heartbeat: %w", err)
	}

	_, err = s.execContext(ctx, fmt.Sprintf(`
		DELETE FROM heartbeat_log
		WHERE id NOT IN (
			SELECT id FROM heartbeat_log
			ORDER BY timestamp DESC, id DESC
			LIMIT %d
		)
	`, maxHeartbeatLogRows))
	if err != nil {
		return fmt.Errorf("failed to prune heartbeat log: %w", err)
	}
	return nil
}

// RecentHeartbeats returns up to limit most recent heartbeat log entries.
func (s *BaseStore) RecentHeartbeats(ctx context.Context, limit int) ([]*HeartbeatEntry, error) {
	if limit <= 0 || limit > maxHeartbeatLogRows {
		limit = maxHeartbeatLogRows
	}

	rows, err := s.queryContext(ctx, fmt.Sprintf(`
		SELECT id, device_id, ip, timestamp, client_build
		FROM heartbeat_log
		ORDER BY timestamp DESC, id DESC
		LIMIT %d
	`, limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*HeartbeatEntry
	for rows.Next() {
		var entry HeartbeatEntry
		var ip sql.NullString
		if err := rows.Scan(&entry.ID, &entry.DeviceID, &ip, &entry.Timestamp, &entry.ClientBuild); err != nil {
			return nil, err
		}
		entry.IP = ip.String
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func (s *BaseStore) queryDevices(ctx context.Context, query string, args ...interface{}) ([]*Device, error) {
	rows, err := s.queryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	return devices, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row rowScanner) (*Device, error) {
	var device Device
	var hostname, username, osInfo, cpu, memory, version, ip sql.NullString

	err := row.Scan(
		&device.DeviceID, &hostname, &username, &osInfo, &cpu, &memory,
		&version, &ip, &device.Note, &device.FirstSeen, &device.LastSeen,
	)
	if err != nil {
		return nil, err
	}

	device.Hostname = hostname.String
	device.Username = username.String
	device.OS = osInfo.String
	device.CPU = cpu.String
	device.Memory = memory.String
	device.Version = version.String
	device.IP = ip.String
	return &device, nil
}

// escapeLike escapes LIKE wildcards in user-supplied search text.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
