// Package shrinkfs is the front-end surface of the compression
// lifecycle engine. It wires the ledger, scanner, engine, monitor, and
// maintenance schedule from one configuration and exposes the operations
// a CLI or GUI consumes.
package shrinkfs

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shrinkfs/shrinkfs/internal/batch"
	"github.com/shrinkfs/shrinkfs/internal/config"
	"github.com/shrinkfs/shrinkfs/internal/engine"
	"github.com/shrinkfs/shrinkfs/internal/janitor"
	"github.com/shrinkfs/shrinkfs/internal/ledger"
	"github.com/shrinkfs/shrinkfs/internal/metrics"
	"github.com/shrinkfs/shrinkfs/internal/monitor"
	"github.com/shrinkfs/shrinkfs/internal/scanner"
	"github.com/shrinkfs/shrinkfs/internal/stats"
	"github.com/shrinkfs/shrinkfs/pkg/errors"
	"github.com/shrinkfs/shrinkfs/pkg/health"
	"github.com/shrinkfs/shrinkfs/pkg/status"
	"github.com/shrinkfs/shrinkfs/pkg/types"
	"github.com/shrinkfs/shrinkfs/pkg/utils"
)

// ShrinkFS owns one configured instance of the compression lifecycle
type ShrinkFS struct {
	config *config.Config

	events    *utils.EventLogger
	logger    *utils.StructuredLogger
	collector *metrics.Collector

	ledger   *ledger.Ledger
	scanner  *scanner.Scanner
	engine   *engine.Engine
	runner   *batch.Runner
	monitor  *monitor.Monitor
	janitor  *janitor.Janitor
	reporter *stats.Reporter

	health *health.Tracker
	status *status.Tracker
}

// New builds a fully wired instance from the configuration. A nil
// config uses defaults. The maintenance schedule starts immediately;
// monitoring starts only on StartMonitoring.
func New(cfg *config.Config) (*ShrinkFS, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewError(errors.ErrCodeConfigValidation, "invalid configuration").
			WithCause(err).
			WithComponent("shrinkfs")
	}

	level, _ := utils.ParseLogLevel(cfg.Logging.Level)

	var rotation *utils.RotationConfig
	if cfg.Logging.File != "" {
		rotation = &utils.RotationConfig{
			Filename:   cfg.Logging.File,
			MaxSize:    int64(cfg.Logging.MaxSizeMB),
			MaxBackups: cfg.Logging.MaxBackups,
		}
	}

	events, err := utils.NewEventLogger(&utils.EventLoggerConfig{
		Level:    level,
		Rotation: rotation,
		RingSize: cfg.Logging.RingSize,
	})
	if err != nil {
		return nil, err
	}
	logger := events.Logger()

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   cfg.Metrics.Enabled,
		Address:   cfg.Metrics.Address,
		Namespace: cfg.Metrics.Namespace,
	})
	if err != nil {
		return nil, err
	}

	ldg, err := ledger.New(cfg.LedgerPath(), logger)
	if err != nil {
		return nil, err
	}

	scn := scanner.New(&scanner.Config{
		AllowExtensions: cfg.Scan.AllowExtensions,
		DenyExtensions:  cfg.Scan.DenyExtensions,
		MinFileSize:     cfg.Scan.MinFileSize,
		Recursive:       cfg.Scan.Recursive,
	}, ldg, logger)

	eng := engine.New(&engine.Config{
		Level:   cfg.Compression.Level,
		Events:  events,
		Metrics: collector,
	}, ldg, logger)

	healthTracker := health.NewTracker(health.DefaultConfig())
	for _, component := range []string{"ledger", "scanner", "engine", "monitor"} {
		healthTracker.RegisterComponent(component)
	}
	statusTracker := status.NewTracker(status.TrackerConfig{Health: healthTracker})

	method := types.Method(cfg.Compression.Method)

	mon := monitor.New(&monitor.Config{
		Path:             cfg.MonitorPath(),
		ScanRoot:         cfg.Scan.Root,
		ThresholdPercent: cfg.Monitor.ThresholdPercent,
		Interval:         cfg.Monitor.Interval,
		BatchLimit:       cfg.Monitor.BatchLimit,
		MinPriority:      cfg.Scan.MinPriority,
		Method:           method,
		StopTimeout:      cfg.Monitor.StopTimeout,
		Events:           events,
		Metrics:          collector,
		Status:           statusTracker,
	}, scn, eng, logger)

	jan := janitor.New(&janitor.Config{
		Schedule:        cfg.Maintenance.Schedule,
		SweepRoot:       cfg.Scan.Root,
		BackupRetention: cfg.Maintenance.BackupRetention,
		Metrics:         collector,
	}, ldg, logger)
	if err := jan.Start(); err != nil {
		return nil, err
	}

	fs := &ShrinkFS{
		config:    cfg,
		events:    events,
		logger:    logger.WithComponent("shrinkfs"),
		collector: collector,
		ledger:    ldg,
		scanner:   scn,
		engine:    eng,
		runner:    batch.NewRunner(scn, eng, logger, collector),
		monitor:   mon,
		janitor:   jan,
		reporter:  stats.NewReporter(ldg),
		health:    healthTracker,
		status:    statusTracker,
	}

	if cfg.Metrics.Enabled {
		if err := collector.Start(context.Background()); err != nil {
			return nil, err
		}
	}
	fs.refreshLedgerGauges()

	fs.logger.Info("ShrinkFS initialized", map[string]interface{}{
		"scan_root":   cfg.Scan.Root,
		"ledger_path": cfg.LedgerPath(),
		"method":      method.String(),
	})

	return fs, nil
}

// GetDiskUsage reports capacity for the monitored path
func (fs *ShrinkFS) GetDiskUsage() (types.DiskUsage, error) {
	usage, err := monitor.GetDiskUsage(fs.config.MonitorPath())
	if err != nil {
		fs.health.RecordError("monitor", err)
		return types.DiskUsage{}, err
	}
	fs.health.RecordSuccess("monitor")
	fs.collector.SetDiskUsedPercent(usage.UsedPercent)
	return usage, nil
}

// CompressFiles selects up to maxFiles of the highest-priority
// candidates under the scan root and compresses them. A non-positive
// maxFiles means no limit. Per-file failures are counted, never fatal.
func (fs *ShrinkFS) CompressFiles(maxFiles int) (types.BatchResult, error) {
	op := fs.status.StartOperation("compress_batch", map[string]interface{}{
		"max_files": maxFiles,
	})

	method := types.Method(fs.config.Compression.Method)
	result, err := fs.runner.CompressTop(fs.config.Scan.Root, maxFiles, fs.config.Scan.MinPriority, method)
	if err != nil {
		fs.health.RecordError("scanner", err)
		_ = fs.status.FailOperation(op.ID, err)
		return result, err
	}
	fs.health.RecordSuccess("scanner")
	fs.recordEngineOutcome(result)
	fs.refreshLedgerGauges()
	_ = fs.status.CompleteOperation(op.ID)

	return result, nil
}

// StartMonitoring launches the background disk-pressure monitor
func (fs *ShrinkFS) StartMonitoring() error {
	if err := fs.monitor.Start(); err != nil {
		return err
	}
	fs.health.RecordSuccess("monitor")
	return nil
}

// StopMonitoring stops the background monitor
func (fs *ShrinkFS) StopMonitoring() error {
	return fs.monitor.Stop()
}

// MonitoringActive reports whether the background monitor is running
func (fs *ShrinkFS) MonitoringActive() bool {
	return fs.monitor.Running()
}

// GetCompressionStats returns the ledger's exact aggregates
func (fs *ShrinkFS) GetCompressionStats() types.LedgerStats {
	return fs.ledger.Stats()
}

// StatsSummary renders the ledger aggregates for humans
func (fs *ShrinkFS) StatsSummary() string {
	return fs.reporter.Summary()
}

// DecompressAll restores every compressed file tracked in the ledger
func (fs *ShrinkFS) DecompressAll(verify bool) (types.BatchResult, error) {
	return fs.decompressEntries(fs.ledger.ListAll(), verify)
}

// DecompressByCriteria restores the compressed files whose original
// extension is in fileTypes (all when empty) and whose age in days since
// compression is at most maxAgeDays (any age when non-positive).
func (fs *ShrinkFS) DecompressByCriteria(fileTypes []string, maxAgeDays float64, verify bool) (types.BatchResult, error) {
	extensions := make(map[string]bool, len(fileTypes))
	for _, ext := range fileTypes {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extensions[ext] = true
	}

	var selected []types.CompressionEntry
	for _, entry := range fs.ledger.ListAll() {
		if len(extensions) > 0 && !extensions[strings.ToLower(entry.OriginalExtension)] {
			continue
		}
		if maxAgeDays > 0 && entry.AgeDays() > maxAgeDays {
			continue
		}
		selected = append(selected, entry)
	}

	return fs.decompressEntries(selected, verify)
}

func (fs *ShrinkFS) decompressEntries(entries []types.CompressionEntry, verify bool) (types.BatchResult, error) {
	op := fs.status.StartOperation("decompress_batch", map[string]interface{}{
		"files":  len(entries),
		"verify": verify,
	})

	result := fs.runner.Decompress(entries, verify)
	fs.recordEngineOutcome(result)
	fs.refreshLedgerGauges()
	_ = fs.status.CompleteOperation(op.ID)

	return result, nil
}

// GetFileStatistics scans dir (the configured root when empty) and
// summarizes what a compression pass would consider
func (fs *ShrinkFS) GetFileStatistics(dir string) (types.ScanStatistics, error) {
	if dir == "" {
		dir = fs.config.Scan.Root
	}

	scanStats, err := fs.scanner.Statistics(dir, fs.config.Scan.Recursive)
	if err != nil {
		fs.health.RecordError("scanner", err)
		return types.ScanStatistics{}, err
	}
	fs.health.RecordSuccess("scanner")
	fs.collector.RecordScan()

	if usage, err := monitor.GetDiskUsage(fs.config.MonitorPath()); err == nil {
		scanStats.DiskUsedPercent = usage.UsedPercent
	}

	fs.events.ScanSummary(scanStats.TotalFiles, scanStats.EligibleFiles, scanStats.DiskUsedPercent)

	return scanStats, nil
}

// GetDecompressionPreview lists what a full restore would touch, without
// touching the disk
func (fs *ShrinkFS) GetDecompressionPreview() []types.RestorePreview {
	entries := fs.ledger.ListAll()

	previews := make([]types.RestorePreview, 0, len(entries))
	for _, entry := range entries {
		previews = append(previews, types.RestorePreview{
			OriginalPath:   entry.OriginalPath,
			CompressedPath: entry.CompressedPath,
			OriginalSize:   entry.OriginalSize,
			CompressedSize: entry.CompressedSize,
			Method:         entry.Method,
			CompressedAt:   entry.CompressedAt,
			AgeDays:        entry.AgeDays(),
		})
	}

	sort.Slice(previews, func(i, j int) bool {
		return previews[i].OriginalPath < previews[j].OriginalPath
	})

	return previews
}

// Unmark drops the ledger entry for a path without restoring anything.
// The compressed artifact, if any, is left on disk.
func (fs *ShrinkFS) Unmark(path string) error {
	if err := fs.ledger.Remove(path); err != nil {
		fs.health.RecordError("ledger", err)
		return err
	}
	fs.health.RecordSuccess("ledger")
	fs.refreshLedgerGauges()
	return nil
}

// RunMaintenance triggers one maintenance pass outside the schedule
func (fs *ShrinkFS) RunMaintenance() {
	fs.janitor.RunOnce()
	fs.refreshLedgerGauges()
}

// RecentLogs returns up to n recent event log lines, oldest first
func (fs *ShrinkFS) RecentLogs(n int) []string {
	return fs.events.RecentLines(n)
}

// SystemStatus returns active operations plus overall health
func (fs *ShrinkFS) SystemStatus() *status.SystemStatus {
	return fs.status.GetSystemStatus()
}

// OperationHistory returns up to limit finished operations, newest first
func (fs *ShrinkFS) OperationHistory(limit int) []*status.Operation {
	return fs.status.GetHistory(limit)
}

// ActiveOperations returns snapshots of in-flight operations
func (fs *ShrinkFS) ActiveOperations() []*status.Operation {
	return fs.status.GetActiveOperations()
}

// MetricsHandler exposes the Prometheus scrape handler for embedding,
// nil when metrics are disabled
func (fs *ShrinkFS) MetricsHandler() http.Handler {
	return fs.collector.Handler()
}

// StatusTracker exposes the operation tracker, for the API server and
// embedding consumers
func (fs *ShrinkFS) StatusTracker() *status.Tracker {
	return fs.status
}

// HealthTracker exposes the component health tracker
func (fs *ShrinkFS) HealthTracker() *health.Tracker {
	return fs.health
}

// Config returns the active configuration
func (fs *ShrinkFS) Config() *config.Config {
	return fs.config
}

// Close stops the monitor, maintenance schedule, and metrics endpoint.
// Safe to call with monitoring already stopped.
func (fs *ShrinkFS) Close() error {
	if fs.monitor.Running() {
		if err := fs.monitor.Stop(); err != nil && !errors.HasCode(err, errors.ErrCodeNotRunning) {
			fs.logger.Warn("Failed to stop monitor during close", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	fs.janitor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fs.collector.Stop(ctx); err != nil {
		fs.logger.Warn("Failed to stop metrics endpoint", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return fs.events.Close()
}

// recordEngineOutcome maps a batch tally onto engine health
func (fs *ShrinkFS) recordEngineOutcome(result types.BatchResult) {
	if result.TotalFiles == 0 {
		return
	}
	if result.Failed == 0 {
		fs.health.RecordSuccess("engine")
		return
	}
	fs.health.RecordError("engine", errors.NewError(errors.ErrCodeInternalError,
		"batch finished with failures").
		WithDetail("failed", result.Failed).
		WithDetail("total", result.TotalFiles))
}

func (fs *ShrinkFS) refreshLedgerGauges() {
	ledgerStats := fs.ledger.Stats()
	fs.collector.SetLedgerEntries(ledgerStats.TotalFiles)
	fs.collector.SetSpaceSavedBytes(ledgerStats.SpaceSaved)
}
