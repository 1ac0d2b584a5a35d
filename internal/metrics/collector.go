// Package metrics provides Prometheus metrics for the compression
// lifecycle: per-method operation counters and durations, monitor cycle
// and threshold counters, and gauges mirroring ledger and disk state.
//
// The collector is nil-safe and no-op when disabled, so callers record
// unconditionally.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config represents metrics configuration
type Config struct {
	Enabled   bool              `yaml:"enabled"`
	Address   string            `yaml:"address"`
	Path      string            `yaml:"path"`
	Namespace string            `yaml:"namespace"`
	Subsystem string            `yaml:"subsystem"`
	Labels    map[string]string `yaml:"labels"`
}

// Collector owns a private Prometheus registry for all ShrinkFS metrics
type Collector struct {
	config   *Config
	registry *prometheus.Registry

	compressionCounter   *prometheus.CounterVec
	decompressionCounter *prometheus.CounterVec
	compressionDuration  *prometheus.HistogramVec
	decompressionDur     *prometheus.HistogramVec
	originalBytes        *prometheus.CounterVec
	compressedBytes      *prometheus.CounterVec

	scanCounter      prometheus.Counter
	cycleCounter     prometheus.Counter
	triggerCounter   prometheus.Counter
	reconcileCounter prometheus.Counter
	batchSize        prometheus.Histogram

	diskUsedPercent prometheus.Gauge
	ledgerEntries   prometheus.Gauge
	spaceSavedBytes prometheus.Gauge
	monitorRunning  prometheus.Gauge

	server *http.Server
}

// NewCollector creates a metrics collector. A nil config or a disabled
// one yields a collector whose methods do nothing.
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = &Config{Enabled: false}
	}

	if config.Path == "" {
		config.Path = "/metrics"
	}
	if config.Namespace == "" {
		config.Namespace = "shrinkfs"
	}

	if !config.Enabled {
		return &Collector{config: config}, nil
	}

	collector := &Collector{
		config:   config,
		registry: prometheus.NewRegistry(),
	}

	collector.initMetrics()
	if err := collector.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return collector, nil
}

// Enabled reports whether the collector records anything
func (c *Collector) Enabled() bool {
	return c != nil && c.config != nil && c.config.Enabled
}

// Handler returns the Prometheus scrape handler for embedding in another
// server, or nil when disabled.
func (c *Collector) Handler() http.Handler {
	if !c.Enabled() {
		return nil
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Start serves the scrape endpoint on the configured address
func (c *Collector) Start(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, c.Handler())
	mux.HandleFunc("/health", c.healthHandler)

	c.server = &http.Server{
		Addr:              c.config.Address,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Metrics server error: %v\n", err)
		}
	}()

	return nil
}

// Stop shuts down the scrape endpoint
func (c *Collector) Stop(ctx context.Context) error {
	if c == nil || c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

// RecordCompression records one compression attempt
func (c *Collector) RecordCompression(method string, success bool, duration time.Duration, originalSize, compressedSize int64) {
	if !c.Enabled() {
		return
	}

	status := map[bool]string{true: "success", false: "error"}[success]
	c.compressionCounter.With(prometheus.Labels{"method": method, "status": status}).Inc()
	c.compressionDuration.With(prometheus.Labels{"method": method}).Observe(duration.Seconds())

	if success {
		c.originalBytes.With(prometheus.Labels{"method": method}).Add(float64(originalSize))
		c.compressedBytes.With(prometheus.Labels{"method": method}).Add(float64(compressedSize))
	}
}

// RecordDecompression records one decompression attempt
func (c *Collector) RecordDecompression(method string, success bool, duration time.Duration) {
	if !c.Enabled() {
		return
	}

	status := map[bool]string{true: "success", false: "error"}[success]
	c.decompressionCounter.With(prometheus.Labels{"method": method, "status": status}).Inc()
	c.decompressionDur.With(prometheus.Labels{"method": method}).Observe(duration.Seconds())
}

// RecordScan records one completed directory scan
func (c *Collector) RecordScan() {
	if !c.Enabled() {
		return
	}
	c.scanCounter.Inc()
}

// RecordMonitorCycle records one monitor loop iteration
func (c *Collector) RecordMonitorCycle() {
	if !c.Enabled() {
		return
	}
	c.cycleCounter.Inc()
}

// RecordThresholdTrigger records a cycle that crossed the usage threshold
func (c *Collector) RecordThresholdTrigger() {
	if !c.Enabled() {
		return
	}
	c.triggerCounter.Inc()
}

// RecordReconcile records entries dropped by a reconcile pass
func (c *Collector) RecordReconcile(removed int) {
	if !c.Enabled() {
		return
	}
	c.reconcileCounter.Add(float64(removed))
}

// RecordBatch records the size of a triggered compression batch
func (c *Collector) RecordBatch(size int) {
	if !c.Enabled() {
		return
	}
	c.batchSize.Observe(float64(size))
}

// SetDiskUsedPercent mirrors the latest disk usage sample
func (c *Collector) SetDiskUsedPercent(percent float64) {
	if !c.Enabled() {
		return
	}
	c.diskUsedPercent.Set(percent)
}

// SetLedgerEntries mirrors the current ledger entry count
func (c *Collector) SetLedgerEntries(count int) {
	if !c.Enabled() {
		return
	}
	c.ledgerEntries.Set(float64(count))
}

// SetSpaceSavedBytes mirrors the ledger's exact space accounting
func (c *Collector) SetSpaceSavedBytes(bytes int64) {
	if !c.Enabled() {
		return
	}
	c.spaceSavedBytes.Set(float64(bytes))
}

// SetMonitorRunning mirrors the monitor state machine
func (c *Collector) SetMonitorRunning(running bool) {
	if !c.Enabled() {
		return
	}
	if running {
		c.monitorRunning.Set(1)
	} else {
		c.monitorRunning.Set(0)
	}
}

func (c *Collector) initMetrics() {
	c.compressionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "compressions_total",
			Help:        "Total number of compression attempts",
			ConstLabels: c.config.Labels,
		},
		[]string{"method", "status"},
	)

	c.decompressionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "decompressions_total",
			Help:        "Total number of decompression attempts",
			ConstLabels: c.config.Labels,
		},
		[]string{"method", "status"},
	)

	c.compressionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "compression_duration_seconds",
			Help:        "Duration of single-file compressions in seconds",
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
			ConstLabels: c.config.Labels,
		},
		[]string{"method"},
	)

	c.decompressionDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "decompression_duration_seconds",
			Help:        "Duration of single-file decompressions in seconds",
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 15),
			ConstLabels: c.config.Labels,
		},
		[]string{"method"},
	)

	c.originalBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "original_bytes_total",
			Help:        "Total uncompressed bytes successfully compressed",
			ConstLabels: c.config.Labels,
		},
		[]string{"method"},
	)

	c.compressedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "compressed_bytes_total",
			Help:        "Total compressed bytes produced",
			ConstLabels: c.config.Labels,
		},
		[]string{"method"},
	)

	c.scanCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        "scans_total",
		Help:        "Total number of directory scans",
		ConstLabels: c.config.Labels,
	})

	c.cycleCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        "monitor_cycles_total",
		Help:        "Total number of monitor loop iterations",
		ConstLabels: c.config.Labels,
	})

	c.triggerCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        "threshold_triggers_total",
		Help:        "Total number of monitor cycles that crossed the usage threshold",
		ConstLabels: c.config.Labels,
	})

	c.reconcileCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        "reconcile_removed_total",
		Help:        "Total ledger entries dropped because their artifact disappeared",
		ConstLabels: c.config.Labels,
	})

	c.batchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        "batch_size_files",
		Help:        "Number of files selected per triggered batch",
		Buckets:     prometheus.LinearBuckets(5, 5, 10), // 5 to 50 files
		ConstLabels: c.config.Labels,
	})

	c.diskUsedPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        "disk_used_percent",
		Help:        "Latest sampled disk usage of the monitored path",
		ConstLabels: c.config.Labels,
	})

	c.ledgerEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        "ledger_entries",
		Help:        "Current number of compressed files tracked in the ledger",
		ConstLabels: c.config.Labels,
	})

	c.spaceSavedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        "space_saved_bytes",
		Help:        "Exact bytes saved according to the ledger",
		ConstLabels: c.config.Labels,
	})

	c.monitorRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        "monitor_running",
		Help:        "Whether the disk monitor loop is running (1) or stopped (0)",
		ConstLabels: c.config.Labels,
	})
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.compressionCounter,
		c.decompressionCounter,
		c.compressionDuration,
		c.decompressionDur,
		c.originalBytes,
		c.compressedBytes,
		c.scanCounter,
		c.cycleCounter,
		c.triggerCounter,
		c.reconcileCounter,
		c.batchSize,
		c.diskUsedPercent,
		c.ledgerEntries,
		c.spaceSavedBytes,
		c.monitorRunning,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

func (c *Collector) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy","service":"shrinkfs-metrics"}`))
}
