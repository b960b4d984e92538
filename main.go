// RelayWatch Server - presence and telemetry monitor for relay-managed
// device fleets. Ingests heartbeat and sysinfo reports over HTTP and
// serves device presence, notes, and the relay's own peer registry.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"relaywatch/server/config"
	"relaywatch/server/handlers"
	"relaywatch/server/logger"
	"relaywatch/server/relay"
	"relaywatch/server/stats"
	"relaywatch/server/storage"
)

// Version information (set at build time via -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: platform search paths)")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (error, warn, info, debug, trace)")
	svcCommand := flag.String("service", "", "Service command: install, uninstall, start, stop, run")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("relaywatch-server %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	applyFlagOverrides(cfg, *port, *dbPath, *logLevel)

	if *svcCommand != "" {
		if err := runServiceCommand(*svcCommand, cfg); err != nil {
			log.Fatal(err)
		}
		return
	}

	// Direct foreground run: shut down on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runServer(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.FindConfigFile("relaywatch.toml")
	}
	return config.Load(path)
}

func applyFlagOverrides(cfg *config.Config, port int, dbPath, logLevel string) {
	if port > 0 {
		cfg.Server.HTTPPort = port
	}
	if dbPath != "" {
		cfg.Database.Driver = "sqlite"
		cfg.Database.Path = dbPath
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
}

// runServer brings up the full server and blocks until ctx is cancelled,
// then drains in-flight requests before returning. Both foreground runs
// and the service wrapper come through here.
func runServer(ctx context.Context, cfg *config.Config) error {
	serverLogger := logger.New(logger.ParseLevel(cfg.Logging.Level), cfg.Logging.Dir, 1000)
	defer serverLogger.Close()

	serverLogger.Info("Server starting",
		"version", Version,
		"go", runtime.Version(),
		"os", runtime.GOOS,
		"arch", runtime.GOARCH)

	storage.SetLogger(serverLogger)
	store, err := storage.NewStore(&cfg.Database)
	if err != nil {
		serverLogger.Error("Failed to initialize storage", "error", err.Error())
		return fmt.Errorf("storage init: %w", err)
	}
	defer store.Close()
	serverLogger.Info("Storage initialized", "driver", cfg.Database.EffectiveDriver())

	registry := relay.NewRegistry(cfg.Relay.RegistryPath)
	if !registry.Available() {
		serverLogger.Warn("Relay registry not found, peers endpoint will be empty",
			"path", registry.Path())
	}

	hub := handlers.NewEventHub(serverLogger)
	defer hub.Close()

	offlineTimeout := time.Duration(cfg.Monitor.OfflineTimeoutSeconds) * time.Second

	deviceAPI := handlers.NewDeviceAPI(handlers.DeviceAPIOptions{
		Store:            store,
		Logger:           serverLogger,
		Events:           hub,
		OfflineTimeout:   offlineTimeout,
		MinClientVersion: cfg.Monitor.MinClientVersion,
	})
	healthAPI := handlers.NewHealthAPI(handlers.HealthAPIOptions{
		Store:        store,
		Version:      Version,
		BuildTime:    BuildTime,
		GitCommit:    GitCommit,
		ProcessStart: time.Now(),
	})
	relayAPI := handlers.NewRelayAPI(registry, serverLogger)

	collector := stats.NewCollector(store, stats.CollectorConfig{
		OfflineTimeout: offlineTimeout,
		Logger:         serverLogger,
	})
	collector.Start(ctx)
	defer collector.Stop()
	statsAPI := handlers.NewStatsAPI(collector)

	mux := http.NewServeMux()
	deviceAPI.RegisterRoutes(mux)
	healthAPI.RegisterRoutes(mux)
	relayAPI.RegisterRoutes(mux)
	statsAPI.RegisterRoutes(mux)
	hub.RegisterRoutes(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		serverLogger.Info("HTTP server listening",
			"addr", addr,
			"offline_timeout_seconds", cfg.Monitor.OfflineTimeoutSeconds)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		serverLogger.Error("HTTP server failed", "error", err.Error())
		return err
	case <-ctx.Done():
	}

	serverLogger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		serverLogger.Warn("Forced shutdown", "error", err.Error())
		return err
	}
	serverLogger.Info("Shutdown complete")
	return nil
}
