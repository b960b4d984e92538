// Package stats provides the background worker that samples fleet
// presence and process health for the dashboard.
package stats

import (
	"context"
	"runtime"
	"sync"
	"time"

	"relaywatch/server/presence"
	"relaywatch/server/storage"
)

// Logger provides logging capabilities.
type Logger interface {
	Debug(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
}

// Snapshot is one sample of fleet and process state.
type Snapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	TotalDevices   int       `json:"total_devices"`
	OnlineDevices  int       `json:"online_devices"`
	OfflineDevices int       `json:"offline_devices"`
	Goroutines     int       `json:"goroutines"`
	HeapBytes      uint64    `json:"heap_bytes"`
}

// CollectorConfig configures the stats collector.
type CollectorConfig struct {
	// Interval between samples (default 30s)
	Interval time.Duration

	// OfflineTimeout is the presence window used to classify devices.
	OfflineTimeout time.Duration

	Logger Logger
}

// Collector periodically samples the device store and caches the latest
// snapshot for cheap reads. Queries hitting /api/devices always compute
// presence live; the collector exists so dashboards polling frequently
// do not rescan the table.
type Collector struct {
	store  storage.Store
	config CollectorConfig
	log    Logger

	mu      sync.RWMutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	latest  *Snapshot
}

// NewCollector creates a new stats collector.
func NewCollector(store storage.Store, config CollectorConfig) *Collector {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	return &Collector{
		store:  store,
		config: config,
		log:    config.Logger,
	}
}

// Start launches the sampling loop. Calling Start on a running collector
// is a no-op.
func (c *Collector) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.mu.Unlock()

	// First sample immediately so Latest works right after startup.
	c.sample(ctx)

	go c.loop(ctx)
}

// Stop halts the sampling loop and waits for it to exit.
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stop)
	done := c.done
	c.mu.Unlock()

	<-done
}

// Latest returns the most recent snapshot, or nil before the first
// sample completes.
func (c *Collector) Latest() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

func (c *Collector) loop(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sample(ctx)
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Collector) sample(ctx context.Context) {
	sampleCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	devices, err := c.store.ListDevices(sampleCtx)
	if err != nil {
		if c.log != nil {
			c.log.Warn("Stats sample failed", "error", err.Error())
		}
		return
	}

	now := time.Now()
	online := 0
	for _, d := range devices {
		if presence.IsOnline(d.LastSeen, now, c.config.OfflineTimeout) {
			online++
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	snapshot := &Snapshot{
		Timestamp:      now.UTC(),
		TotalDevices:   len(devices),
		OnlineDevices:  online,
		OfflineDevices: len(devices) - online,
		Goroutines:     runtime.NumGoroutine(),
		HeapBytes:      mem.HeapAlloc,
	}

	c.mu.Lock()
	c.latest = snapshot
	c.mu.Unlock()

	if c.log != nil {
		c.log.Debug("Stats sampled",
			"total", snapshot.TotalDevices,
			"online", snapshot.OnlineDevices)
	}
}
