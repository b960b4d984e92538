// Package config provides configuration loading for the RelayWatch server.
// Settings come from a TOML file, overridden by environment variables, and
// are passed into components as explicit structs rather than globals.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the top-level server configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Relay    RelayConfig    `toml:"relay"`
	Monitor  MonitorConfig  `toml:"monitor"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	HTTPPort    int    `toml:"http_port"`
	BindAddress string `toml:"bind_address"`
}

// DatabaseConfig holds settings for the monitor's own device store.
type DatabaseConfig struct {
	Driver              string `toml:"driver"` // sqlite (default) or postgres
	Path                string `toml:"path"`   // SQLite file path
	DSN                 string `toml:"dsn"`    // Full DSN, overrides host/port fields
	Host                string `toml:"host"`
	Port                int    `toml:"port"`
	User                string `toml:"user"`
	Password            string `toml:"password"`
	Name                string `toml:"name"`
	MaxOpenConns        int    `toml:"max_open_conns"`
	MaxIdleConns        int    `toml:"max_idle_conns"`
	ConnMaxLifetimeSecs int    `toml:"conn_max_lifetime_secs"`
}

// RelayConfig points at the external relay server's own device registry.
// The registry is read-only from our side; its schema and update cadence
// belong to the relay server.
type RelayConfig struct {
	RegistryPath string `toml:"registry_path"`
}

// MonitorConfig holds presence tracking settings.
type MonitorConfig struct {
	// OfflineTimeoutSeconds is how long after the last accepted report a
	// device is still considered online.
	OfflineTimeoutSeconds int `toml:"offline_timeout_seconds"`
	// MinClientVersion, when set, marks sysinfo reports from older clients
	// as outdated in the logs. Reports are never rejected for version.
	MinClientVersion string `toml:"min_client_version"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `toml:"level"`
	Dir   string `toml:"dir"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:    21114,
			BindAddress: "0.0.0.0",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "", // Empty = platform default
		},
		Relay: RelayConfig{
			RegistryPath: "/var/lib/relay-server/db_v2.sqlite3",
		},
		Monitor: MonitorConfig{
			OfflineTimeoutSeconds: 90,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// EffectiveDriver normalizes the driver name, defaulting to sqlite.
func (c *DatabaseConfig) EffectiveDriver() string {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "", "sqlite", "sqlite3", "modernc", "modernc-sqlite":
		return "sqlite"
	case "postgres", "postgresql":
		return "postgres"
	default:
		return strings.ToLower(strings.TrimSpace(c.Driver))
	}
}

// BuildDSN returns the connection string for the configured backend.
// For SQLite this is the file path; for PostgreSQL either the explicit DSN
// or one assembled from host/port/user/password/name.
func (c *DatabaseConfig) BuildDSN() string {
	if c.EffectiveDriver() == "sqlite" {
		if c.DSN != "" {
			return c.DSN
		}
		return c.Path
	}

	if c.DSN != "" {
		return c.DSN
	}
	if c.Host == "" || c.Name == "" {
		return ""
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, port, c.Name)
}

// Load reads the config file at path (if it exists) over defaults, then
// applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("RELAYWATCH_HTTP_PORT"); val != "" {
		var port int
		if _, err := fmt.Sscanf(val, "%d", &port); err == nil {
			cfg.Server.HTTPPort = port
		}
	}
	if val := os.Getenv("RELAYWATCH_BIND_ADDRESS"); val != "" {
		cfg.Server.BindAddress = val
	}
	if val := os.Getenv("RELAYWATCH_DB_DRIVER"); val != "" {
		cfg.Database.Driver = val
	}
	if val := os.Getenv("RELAYWATCH_DB_PATH"); val != "" {
		cfg.Database.Path = val
	}
	if val := os.Getenv("RELAYWATCH_DB_DSN"); val != "" {
		cfg.Database.DSN = val
	}
	if val := os.Getenv("RELAYWATCH_RELAY_REGISTRY"); val != "" {
		cfg.Relay.RegistryPath = val
	}
	if val := os.Getenv("RELAYWATCH_OFFLINE_TIMEOUT_SECONDS"); val != "" {
		var secs int
		if _, err := fmt.Sscanf(val, "%d", &secs); err == nil && secs > 0 {
			cfg.Monitor.OfflineTimeoutSeconds = secs
		}
	}
	if val := os.Getenv("RELAYWATCH_MIN_CLIENT_VERSION"); val != "" {
		cfg.Monitor.MinClientVersion = val
	}
	if val := os.Getenv("RELAYWATCH_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("RELAYWATCH_LOG_DIR"); val != "" {
		cfg.Logging.Dir = val
	}
}

// FindConfigFile searches platform-appropriate locations for the config
// file and returns the first path that exists, or empty string.
func FindConfigFile(filename string) string {
	for _, path := range configSearchPaths(filename) {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func configSearchPaths(filename string) []string {
	var paths []string

	switch runtime.GOOS {
	case "windows":
		paths = append(paths, filepath.Join(os.Getenv("ProgramData"), "RelayWatch", filename))
	case "darwin":
		paths = append(paths, filepath.Join("/Library/Application Support", "RelayWatch", filename))
	default:
		paths = append(paths, filepath.Join("/etc/relaywatch", filename))
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		switch runtime.GOOS {
		case "windows":
			paths = append(paths, filepath.Join(homeDir, "AppData", "Local", "RelayWatch", filename))
		case "darwin":
			paths = append(paths, filepath.Join(homeDir, "Library", "Application Support", "RelayWatch", filename))
		default:
			paths = append(paths, filepath.Join(homeDir, ".config", "relaywatch", filename))
		}
	}

	if exePath, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exePath), filename))
	}

	paths = append(paths, filepath.Join(".", filename))
	return paths
}
