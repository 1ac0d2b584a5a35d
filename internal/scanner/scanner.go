// Package scanner walks directories for compression candidates and ranks
// them by a batch-local priority score favoring old, large files.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shrinkfs/shrinkfs/pkg/errors"
	"github.com/shrinkfs/shrinkfs/pkg/types"
	"github.com/shrinkfs/shrinkfs/pkg/utils"
)

// Scoring weights. Age dominates: a file untouched for the saturation
// window outranks any merely large file.
const (
	ageWeight  = 0.7
	sizeWeight = 0.3

	// ageSaturationDays is where the age component maxes out
	ageSaturationDays = 30.0
)

// Gate reports whether a path is already compressed. The metadata ledger
// satisfies this.
type Gate interface {
	IsCompressed(path string) bool
}

// Config controls candidate eligibility
type Config struct {
	AllowExtensions []string
	DenyExtensions  []string
	MinFileSize     int64
	Recursive       bool
}

// DefaultConfig returns the stock eligibility rules
func DefaultConfig() *Config {
	return &Config{
		AllowExtensions: []string{
			".txt", ".log", ".json", ".csv", ".xml", ".yaml", ".yml",
		},
		DenyExtensions: []string{
			".gz", ".zz", ".zip", ".rar", ".7z", ".bz2", ".xz",
			".jpg", ".jpeg", ".png", ".gif", ".mp4", ".avi", ".mp3",
			".exe", ".dll", ".so",
		},
		MinFileSize: 1024,
		Recursive:   true,
	}
}

// Scanner implements types.Scanner over the local filesystem
type Scanner struct {
	config *Config
	gate   Gate
	logger *utils.StructuredLogger
	allow  map[string]bool
	deny   map[string]bool
}

// New creates a scanner. A nil config uses DefaultConfig; a nil gate
// disables the already-compressed check.
func New(config *Config, gate Gate, logger *utils.StructuredLogger) *Scanner {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger, _ = utils.NewStructuredLogger(nil)
	}

	allow := make(map[string]bool, len(config.AllowExtensions))
	for _, ext := range config.AllowExtensions {
		allow[strings.ToLower(ext)] = true
	}
	deny := make(map[string]bool, len(config.DenyExtensions))
	for _, ext := range config.DenyExtensions {
		deny[strings.ToLower(ext)] = true
	}

	return &Scanner{
		config: config,
		gate:   gate,
		logger: logger.WithComponent("scanner"),
		allow:  allow,
		deny:   deny,
	}
}

// Scan returns the eligible files under dir. Unreadable entries are
// logged and skipped; only an inaccessible root aborts the scan.
func (s *Scanner) Scan(dir string, recursive bool) ([]types.FileRecord, error) {
	var records []types.FileRecord
	err := s.walk(dir, recursive, func(path string, info os.FileInfo) {
		if rec, ok := s.candidate(path, info); ok {
			records = append(records, rec)
		}
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Score fills PriorityScore on each record. ageScore saturates at the
// 30-day window; sizeScore is relative to the largest file in this
// batch, so scores are comparable only within one scan.
func (s *Scanner) Score(records []types.FileRecord) []types.FileRecord {
	if len(records) == 0 {
		return records
	}

	var maxSize int64
	for _, rec := range records {
		if rec.Size > maxSize {
			maxSize = rec.Size
		}
	}

	now := time.Now()
	for i := range records {
		ageDays := now.Sub(records[i].AccessTime).Hours() / 24
		ageScore := ageDays / ageSaturationDays
		if ageScore > 1 {
			ageScore = 1
		}
		if ageScore < 0 {
			ageScore = 0
		}

		sizeScore := 0.0
		if maxSize > 0 {
			sizeScore = float64(records[i].Size) / float64(maxSize)
		}

		records[i].PriorityScore = ageWeight*ageScore + sizeWeight*sizeScore
	}
	return records
}

// SelectTopN scans dir (using the configured recursion), scores the
// candidates, keeps those at or above minPriority, and returns them in
// descending priority order, truncated to maxFiles when positive. Equal
// scores order by path so repeated runs pick the same batch.
func (s *Scanner) SelectTopN(dir string, maxFiles int, minPriority float64) ([]types.FileRecord, error) {
	records, err := s.Scan(dir, s.config.Recursive)
	if err != nil {
		return nil, err
	}

	records = s.Score(records)

	var selected []types.FileRecord
	for _, rec := range records {
		if rec.PriorityScore >= minPriority {
			selected = append(selected, rec)
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].PriorityScore != selected[j].PriorityScore {
			return selected[i].PriorityScore > selected[j].PriorityScore
		}
		return selected[i].Path < selected[j].Path
	})

	if maxFiles > 0 && len(selected) > maxFiles {
		selected = selected[:maxFiles]
	}
	return selected, nil
}

// Statistics summarizes dir without mutating anything. DiskUsedPercent
// is left zero; callers with a disk monitor fill it in.
func (s *Scanner) Statistics(dir string, recursive bool) (types.ScanStatistics, error) {
	stats := types.ScanStatistics{
		ByExtension: make(map[string]int),
	}

	err := s.walk(dir, recursive, func(path string, info os.FileInfo) {
		stats.TotalFiles++
		if rec, ok := s.candidate(path, info); ok {
			stats.EligibleFiles++
			stats.EligibleBytes += rec.Size
			stats.ByExtension[rec.Extension]++
		}
	})
	if err != nil {
		return types.ScanStatistics{}, err
	}
	return stats, nil
}

// walk visits every regular file under dir, logging and skipping
// per-entry failures.
func (s *Scanner) walk(dir string, recursive bool, visit func(path string, info os.FileInfo)) error {
	if info, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFound("scan root does not exist", dir).
				WithComponent("scanner").WithOperation("walk")
		}
		return errors.NewIOError("scan root not accessible", err).
			WithComponent("scanner").WithPath(dir)
	} else if !info.IsDir() {
		return errors.NewIOError("scan root is not a directory", nil).
			WithComponent("scanner").WithPath(dir)
	}

	if !recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return errors.NewIOError("failed to read scan root", err).
				WithComponent("scanner").WithPath(dir)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				s.logger.Warn("skipping unreadable entry", map[string]interface{}{
					"path":  filepath.Join(dir, entry.Name()),
					"error": err.Error(),
				})
				continue
			}
			if info.Mode().IsRegular() {
				visit(filepath.Join(dir, entry.Name()), info)
			}
		}
		return nil
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("skipping unreadable entry", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			s.logger.Warn("skipping unreadable entry", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			return nil
		}
		if info.Mode().IsRegular() {
			visit(path, info)
		}
		return nil
	})
}

// candidate applies the eligibility rules to one file
func (s *Scanner) candidate(path string, info os.FileInfo) (types.FileRecord, bool) {
	ext := strings.ToLower(filepath.Ext(path))

	if !s.allow[ext] {
		return types.FileRecord{}, false
	}
	// Deny wins even for an allow-listed extension.
	if s.deny[ext] {
		return types.FileRecord{}, false
	}
	if info.Size() < s.config.MinFileSize {
		return types.FileRecord{}, false
	}
	if s.gate != nil && s.gate.IsCompressed(path) {
		return types.FileRecord{}, false
	}

	atime, mtime := utils.FileTimes(info)
	return types.FileRecord{
		Path:       path,
		Size:       info.Size(),
		AccessTime: atime,
		ModTime:    mtime,
		Extension:  ext,
	}, true
}
