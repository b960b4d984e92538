package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"relaywatch/server/config"

	"github.com/kardianos/service"
)

// program implements service.Interface
type program struct {
	cfg       *config.Config
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	svcLogger service.Logger
}

func (p *program) Start(s service.Service) error {
	p.svcLogger, _ = s.Logger(nil)
	if p.svcLogger != nil {
		p.svcLogger.Info("RelayWatch Server service starting")
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.done = make(chan struct{})

	go p.run()
	return nil
}

func (p *program) run() {
	defer close(p.done)

	if err := runServer(p.ctx, p.cfg); err != nil && p.svcLogger != nil {
		p.svcLogger.Errorf("RelayWatch Server exited with error: %v", err)
	}
}

func (p *program) Stop(s service.Service) error {
	if p.svcLogger != nil {
		p.svcLogger.Info("RelayWatch Server service stop requested")
	}

	if p.cancel != nil {
		p.cancel()
	}

	// Wait for run() to finish with timeout
	timeout := time.After(30 * time.Second)
	select {
	case <-p.done:
		if p.svcLogger != nil {
			p.svcLogger.Info("RelayWatch Server service stopped gracefully")
		}
	case <-timeout:
		if p.svcLogger != nil {
			p.svcLogger.Warning("RelayWatch Server service stopped with timeout")
		}
	}

	return nil
}

// getServiceConfig returns the service configuration for the current platform
func getServiceConfig() *service.Config {
	var workingDir string
	switch runtime.GOOS {
	case "windows":
		workingDir = filepath.Join(os.Getenv("ProgramData"), "RelayWatch", "server")
	case "darwin":
		workingDir = "/Library/Application Support/RelayWatch/server"
	default:
		workingDir = "/var/lib/relaywatch"
	}

	return &service.Config{
		Name:             "RelayWatchServer",
		DisplayName:      "RelayWatch Server",
		Description:      "RelayWatch device presence monitor. Ingests heartbeat and telemetry reports and tracks fleet presence.",
		WorkingDirectory: workingDir,
		Arguments:        []string{"--service", "run"},
		Option: service.KeyValue{
			// Windows service options
			"StartType":              "automatic",
			"OnFailure":              "restart",
			"OnFailureDelayDuration": "5s",
			"OnFailureResetPeriod":   30,

			// Linux systemd options
			"Restart":           "on-failure",
			"RestartSec":        5,
			"SuccessExitStatus": "0 SIGTERM",
			"KillMode":          "mixed",
			"KillSignal":        "SIGTERM",
			"SendSIGKILL":       true,

			// macOS launchd options
			"RunAtLoad":     true,
			"KeepAlive":     true,
			"SessionCreate": false,
		},
	}
}

// setupServiceDirectories creates the data and log directories the
// service needs before first start.
func setupServiceDirectories() error {
	var dirs []string
	switch runtime.GOOS {
	case "windows":
		baseDir := filepath.Join(os.Getenv("ProgramData"), "RelayWatch")
		dirs = []string{baseDir, filepath.Join(baseDir, "server"), filepath.Join(baseDir, "server", "logs")}
	case "darwin":
		baseDir := "/Library/Application Support/RelayWatch"
		dirs = []string{baseDir, filepath.Join(baseDir, "server"), "/var/log/relaywatch"}
	default:
		dirs = []string{"/var/lib/relaywatch", "/var/log/relaywatch", "/etc/relaywatch"}
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// runServiceCommand handles the --service flag: install, uninstall,
// start, stop, and run (the entry point used by the service manager).
func runServiceCommand(command string, cfg *config.Config) error {
	prg := &program{cfg: cfg}
	svc, err := service.New(prg, getServiceConfig())
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	switch command {
	case "install":
		if err := setupServiceDirectories(); err != nil {
			return err
		}
		if err := svc.Install(); err != nil {
			return fmt.Errorf("failed to install service: %w", err)
		}
		fmt.Println("Service installed")
		return nil
	case "uninstall":
		if err := svc.Uninstall(); err != nil {
			return fmt.Errorf("failed to uninstall service: %w", err)
		}
		fmt.Println("Service uninstalled")
		return nil
	case "start":
		if err := svc.Start(); err != nil {
			return fmt.Errorf("failed to start service: %w", err)
		}
		fmt.Println("Service started")
		return nil
	case "stop":
		if err := svc.Stop(); err != nil {
			return fmt.Errorf("failed to stop service: %w", err)
		}
		fmt.Println("Service stopped")
		return nil
	case "run":
		return svc.Run()
	default:
		return fmt.Errorf("unknown service command: %s", command)
	}
}
