package storage

import (
	"fmt"

	"relaywatch/server/config"
)

// NewStore creates a Store implementation based on the database
// configuration. SQLite is the default; PostgreSQL is selected by driver.
//
// Example:
//
//	cfg := &config.DatabaseConfig{Driver: "sqlite", Path: "monitor.db"}
//	store, err := storage.NewStore(cfg)
func NewStore(cfg *config.DatabaseConfig) (Store, error) {
	if cfg == nil {
		cfg = &config.DatabaseConfig{}
	}

	switch cfg.EffectiveDriver() {
	case "sqlite":
		path := cfg.BuildDSN()
		if path == "" {
			path = GetDefaultDBPath()
			logWarn("No database path configured, using default", "path", path)
		}
		return NewSQLiteStore(path)

	case "postgres":
		return NewPostgresStore(cfg)

	default:
		return nil, fmt.Errorf("unsupported database driver: %q (supported: sqlite, postgres)", cfg.Driver)
	}
}
