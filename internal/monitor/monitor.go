// Package monitor runs the background disk-pressure loop: poll usage for
// the configured path, and when it crosses the threshold, compress a
// batch of the highest-priority candidates. One monitor runs at most one
// loop; per-iteration errors never stop it.
package monitor

import (
	"sync"
	"time"

	"github.com/shrinkfs/shrinkfs/internal/batch"
	"github.com/shrinkfs/shrinkfs/internal/metrics"
	"github.com/shrinkfs/shrinkfs/pkg/errors"
	"github.com/shrinkfs/shrinkfs/pkg/status"
	"github.com/shrinkfs/shrinkfs/pkg/types"
	"github.com/shrinkfs/shrinkfs/pkg/utils"
)

// Config holds monitor tuning and optional observability hooks
type Config struct {
	// Path is the filesystem location whose usage is polled
	Path string

	// ScanRoot is where candidates are selected from; defaults to Path
	ScanRoot string

	// ThresholdPercent triggers compression when usage reaches it
	ThresholdPercent float64

	// Interval is the sleep between polling iterations
	Interval time.Duration

	// BatchLimit caps how many files one trigger may compress
	BatchLimit int

	// MinPriority filters candidates below this score
	MinPriority float64

	// Method is the codec used for triggered compressions
	Method types.Method

	// StopTimeout bounds how long Stop waits for the loop to join
	StopTimeout time.Duration

	// Events receives threshold trigger events when set
	Events *utils.EventLogger

	// Metrics receives cycle and trigger metrics when set
	Metrics *metrics.Collector

	// Status records triggered batches as tracked operations when set
	Status *status.Tracker
}

// DefaultConfig returns the default monitor configuration
func DefaultConfig() *Config {
	return &Config{
		Path:             ".",
		ThresholdPercent: 90.0,
		Interval:         60 * time.Second,
		BatchLimit:       50,
		MinPriority:      0.3,
		Method:           types.MethodGzip,
		StopTimeout:      5 * time.Second,
	}
}

// Monitor polls disk usage and triggers batch compression
type Monitor struct {
	config  *Config
	runner  *batch.Runner
	logger  *utils.StructuredLogger
	events  *utils.EventLogger
	metrics *metrics.Collector
	status  *status.Tracker

	// usageFn is swapped out in tests
	usageFn func(string) (types.DiskUsage, error)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a monitor driving the given scanner and engine. Zero-value
// config fields fall back to defaults.
func New(config *Config, scn types.Scanner, eng types.Engine, logger *utils.StructuredLogger) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Path == "" {
		config.Path = "."
	}
	if config.ScanRoot == "" {
		config.ScanRoot = config.Path
	}
	if config.ThresholdPercent <= 0 {
		config.ThresholdPercent = 90.0
	}
	if config.Interval <= 0 {
		config.Interval = 60 * time.Second
	}
	if config.BatchLimit <= 0 {
		config.BatchLimit = 50
	}
	if config.Method == "" {
		config.Method = types.MethodGzip
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = 5 * time.Second
	}
	if logger == nil {
		logger, _ = utils.NewStructuredLogger(nil)
	}

	return &Monitor{
		config:  config,
		runner:  batch.NewRunner(scn, eng, logger, config.Metrics),
		logger:  logger.WithComponent("monitor"),
		events:  config.Events,
		metrics: config.Metrics,
		status:  config.Status,
		usageFn: GetDiskUsage,
	}
}

// Start launches the background loop. Starting a running monitor fails.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errors.NewError(errors.ErrCodeAlreadyRunning, "disk monitor is already running").
			WithComponent("monitor").
			WithOperation("start")
	}

	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.running = true
	m.metrics.SetMonitorRunning(true)

	m.logger.Info("Disk monitor started", map[string]interface{}{
		"path":      m.config.Path,
		"threshold": m.config.ThresholdPercent,
		"interval":  m.config.Interval.String(),
	})

	go m.loop(m.stopCh, m.doneCh)

	return nil
}

// Stop signals the loop and waits up to StopTimeout for it to join.
// Stopping a stopped monitor fails. A loop that does not join in time is
// abandoned; it exits at its next iteration boundary.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return errors.NewError(errors.ErrCodeNotRunning, "disk monitor is not running").
			WithComponent("monitor").
			WithOperation("stop")
	}
	close(m.stopCh)
	doneCh := m.doneCh
	m.running = false
	m.mu.Unlock()

	select {
	case <-doneCh:
		m.logger.Info("Disk monitor stopped")
	case <-time.After(m.config.StopTimeout):
		m.logger.Warn("Disk monitor did not stop within timeout, abandoning", map[string]interface{}{
			"timeout": m.config.StopTimeout.String(),
		})
	}

	m.metrics.SetMonitorRunning(false)
	return nil
}

// Running reports whether the background loop is active
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// ShouldTrigger reports whether the given usage crosses the threshold
func (m *Monitor) ShouldTrigger(usedPercent float64) bool {
	return usedPercent >= m.config.ThresholdPercent
}

// loop checks immediately on start, then sleeps the full interval between
// iterations. Stop is only observed at iteration boundaries, never
// mid-file.
func (m *Monitor) loop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	for {
		m.cycle()

		select {
		case <-stopCh:
			return
		case <-time.After(m.config.Interval):
		}
	}
}

func (m *Monitor) cycle() {
	m.metrics.RecordMonitorCycle()

	usage, err := m.usageFn(m.config.Path)
	if err != nil {
		m.logger.Error("Failed to query disk usage", map[string]interface{}{
			"path":  m.config.Path,
			"error": err.Error(),
		})
		return
	}
	m.metrics.SetDiskUsedPercent(usage.UsedPercent)

	if !m.ShouldTrigger(usage.UsedPercent) {
		return
	}

	m.metrics.RecordThresholdTrigger()
	if m.events != nil {
		m.events.ThresholdTrigger(usage.UsedPercent, m.config.ThresholdPercent)
	}

	var opID string
	if m.status != nil {
		op := m.status.StartOperation("monitor_compress", map[string]interface{}{
			"disk_used_percent": usage.UsedPercent,
			"threshold_percent": m.config.ThresholdPercent,
		})
		opID = op.ID
	}

	result, err := m.runner.CompressTop(m.config.ScanRoot, m.config.BatchLimit, m.config.MinPriority, m.config.Method)
	if err != nil {
		if m.status != nil {
			_ = m.status.FailOperation(opID, err)
		}
		m.logger.Error("Triggered compression batch failed", map[string]interface{}{
			"error":  err.Error(),
			"run_id": result.RunID,
		})
		return
	}
	if m.status != nil {
		_ = m.status.CompleteOperation(opID)
	}

	m.logger.Info("Triggered compression batch complete", map[string]interface{}{
		"run_id":       result.RunID,
		"used_percent": usage.UsedPercent,
		"total":        result.TotalFiles,
		"successful":   result.Successful,
		"failed":       result.Failed,
	})
}
