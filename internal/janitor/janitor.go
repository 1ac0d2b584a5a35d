// Package janitor runs scheduled maintenance: reconciling the ledger
// against the disk and sweeping stale restore backups.
package janitor

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shrinkfs/shrinkfs/internal/metrics"
	"github.com/shrinkfs/shrinkfs/pkg/errors"
	"github.com/shrinkfs/shrinkfs/pkg/types"
	"github.com/shrinkfs/shrinkfs/pkg/utils"
)

// backupPattern matches restore backups: <name>.backup_<unix seconds>
var backupPattern = regexp.MustCompile(`\.backup_(\d+)$`)

// Config holds janitor scheduling and sweep settings
type Config struct {
	// Schedule is a cron expression (@every syntax allowed); empty
	// disables scheduling entirely
	Schedule string

	// SweepRoot is the directory tree swept for stale backups
	SweepRoot string

	// BackupRetention is the minimum age before a backup is removed;
	// zero or negative disables the sweep
	BackupRetention time.Duration

	// Metrics receives reconcile metrics when set
	Metrics *metrics.Collector
}

// Janitor owns the maintenance schedule
type Janitor struct {
	config  *Config
	ledger  types.Ledger
	logger  *utils.StructuredLogger
	metrics *metrics.Collector

	cron *cron.Cron
}

// New creates a janitor over the given ledger
func New(config *Config, ldg types.Ledger, logger *utils.StructuredLogger) *Janitor {
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger, _ = utils.NewStructuredLogger(nil)
	}

	return &Janitor{
		config:  config,
		ledger:  ldg,
		logger:  logger.WithComponent("janitor"),
		metrics: config.Metrics,
	}
}

// Start schedules maintenance runs. With no schedule configured this is
// a no-op.
func (j *Janitor) Start() error {
	if j.config.Schedule == "" {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(j.config.Schedule, j.RunOnce); err != nil {
		return errors.NewError(errors.ErrCodeInvalidConfig, "invalid maintenance schedule").
			WithCause(err).
			WithComponent("janitor").
			WithDetail("schedule", j.config.Schedule)
	}
	c.Start()
	j.cron = c

	j.logger.Info("Maintenance schedule started", map[string]interface{}{
		"schedule": j.config.Schedule,
	})

	return nil
}

// Stop halts scheduling and waits for a running job to finish
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
	j.cron = nil
	j.logger.Info("Maintenance schedule stopped")
}

// RunOnce performs one maintenance pass: reconcile, then sweep. Failures
// are logged; a pass never aborts its remaining steps.
func (j *Janitor) RunOnce() {
	removed, err := j.ledger.Reconcile()
	if err != nil {
		j.logger.Error("Ledger reconcile failed", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		if removed > 0 {
			j.logger.Info("Reconciled ledger", map[string]interface{}{
				"entries_removed": removed,
			})
		}
		j.metrics.RecordReconcile(removed)
	}

	swept, err := j.SweepBackups()
	if err != nil {
		j.logger.Error("Backup sweep failed", map[string]interface{}{
			"error": err.Error(),
		})
	} else if swept > 0 {
		j.logger.Info("Swept stale backups", map[string]interface{}{
			"files_removed": swept,
		})
	}
}

// SweepBackups removes restore backups under SweepRoot older than the
// retention window, judged by the unix timestamp in the filename, and
// returns how many were removed.
func (j *Janitor) SweepBackups() (int, error) {
	if j.config.SweepRoot == "" || j.config.BackupRetention <= 0 {
		return 0, nil
	}

	cutoff := time.Now().Add(-j.config.BackupRetention)
	removed := 0

	err := filepath.WalkDir(j.config.SweepRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			j.logger.Warn("Skipping unreadable path during sweep", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			return nil
		}
		if d.IsDir() {
			return nil
		}

		match := backupPattern.FindStringSubmatch(d.Name())
		if match == nil {
			return nil
		}
		stamp, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			return nil
		}
		if time.Unix(stamp, 0).After(cutoff) {
			return nil
		}

		if err := os.Remove(path); err != nil {
			j.logger.Warn("Failed to remove stale backup", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, errors.NewIOError("failed to sweep backups", err).
			WithComponent("janitor").
			WithPath(j.config.SweepRoot)
	}

	return removed, nil
}
