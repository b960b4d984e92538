package main

import (
	"testing"

	"relaywatch/server/config"
)

func TestApplyFlagOverrides(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	applyFlagOverrides(cfg, 9000, "/tmp/custom.db", "debug")

	if cfg.Server.HTTPPort != 9000 {
		t.Errorf("port = %d", cfg.Server.HTTPPort)
	}
	if cfg.Database.EffectiveDriver() != "sqlite" || cfg.Database.Path != "/tmp/custom.db" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
}

func TestApplyFlagOverridesZeroValuesKeepConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	wantPort := cfg.Server.HTTPPort
	wantLevel := cfg.Logging.Level

	applyFlagOverrides(cfg, 0, "", "")

	if cfg.Server.HTTPPort != wantPort {
		t.Errorf("port changed to %d", cfg.Server.HTTPPort)
	}
	if cfg.Logging.Level != wantLevel {
		t.Errorf("level changed to %q", cfg.Logging.Level)
	}
}

func TestRunServiceCommandUnknown(t *testing.T) {
	t.Parallel()

	if err := runServiceCommand("bounce", config.Default()); err == nil {
		t.Error("expected error for unknown service command")
	}
}

func TestGetServiceConfig(t *testing.T) {
	t.Parallel()

	svcCfg := getServiceConfig()
	if svcCfg.Name != "RelayWatchServer" {
		t.Errorf("name = %q", svcCfg.Name)
	}
	if len(svcCfg.Arguments) == 0 {
		t.Error("expected service run arguments")
	}
}
