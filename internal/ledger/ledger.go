// Package ledger persists the mapping from original file paths to their
// compressed artifacts. The ledger is the sole source of truth for
// whether a file is considered compressed: an entry exists iff the file
// is compressed, and every mutation rewrites the whole document
// atomically.
package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shrinkfs/shrinkfs/pkg/errors"
	"github.com/shrinkfs/shrinkfs/pkg/retry"
	"github.com/shrinkfs/shrinkfs/pkg/types"
	"github.com/shrinkfs/shrinkfs/pkg/utils"
)

// documentVersion marks the on-disk schema. Bump only with a migration.
const documentVersion = "1.0"

// document is the on-disk shape of the ledger. It is rewritten wholesale
// on every mutation; there are no partial updates.
type document struct {
	Version         string                            `json:"version"`
	Created         time.Time                         `json:"created"`
	CompressedFiles map[string]types.CompressionEntry `json:"compressed_files"`
}

func newDocument() *document {
	return &document{
		Version:         documentVersion,
		Created:         time.Now(),
		CompressedFiles: make(map[string]types.CompressionEntry),
	}
}

// Ledger is a file-backed implementation of types.Ledger. All operations
// run a full load-modify-save cycle under one mutex, so the monitor
// goroutine and foreground callers can share a single instance.
type Ledger struct {
	mu      sync.Mutex
	path    string
	logger  *utils.StructuredLogger
	retryer *retry.Retryer
}

// New creates a ledger backed by the document at path, creating the
// parent directory and an empty versioned document if none exists.
func New(path string, logger *utils.StructuredLogger) (*Ledger, error) {
	if logger == nil {
		var err error
		logger, err = utils.NewStructuredLogger(nil)
		if err != nil {
			return nil, err
		}
	}

	l := &Ledger{
		path:    path,
		logger:  logger.WithComponent("ledger"),
		retryer: retry.New(retry.DefaultConfig()),
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, errors.NewMetadataError("failed to create ledger directory", err).
				WithComponent("ledger").WithPath(path)
		}
	}

	// Materialize the document up front so it is inspectable before the
	// first compression.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := l.save(newDocument()); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// Path returns the location of the backing document
func (l *Ledger) Path() string {
	return l.path
}

// load reads the current document. A missing or unparsable document
// reinitializes to an empty one; persistence problems degrade to an
// empty ledger rather than aborting the caller.
func (l *Ledger) load() *document {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Warn("ledger document unreadable, reinitializing", map[string]interface{}{
				"path":  l.path,
				"error": err.Error(),
			})
		}
		return newDocument()
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		l.logger.Warn("ledger document unparsable, reinitializing", map[string]interface{}{
			"path":  l.path,
			"error": err.Error(),
		})
		return newDocument()
	}

	if doc.Version == "" {
		doc.Version = documentVersion
	}
	if doc.Created.IsZero() {
		doc.Created = time.Now()
	}
	if doc.CompressedFiles == nil {
		doc.CompressedFiles = make(map[string]types.CompressionEntry)
	}
	return &doc
}

// save rewrites the document via a tmp file and atomic rename. The
// document stays human-inspectable (indented UTF-8 JSON).
func (l *Ledger) save(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.NewMetadataError("failed to encode ledger document", err).
			WithComponent("ledger").WithPath(l.path)
	}

	tmpPath := l.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return errors.NewMetadataError("failed to write ledger document", err).
			WithComponent("ledger").WithPath(l.path)
	}

	if err := os.Rename(tmpPath, l.path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.NewMetadataError("failed to replace ledger document", err).
			WithComponent("ledger").WithPath(l.path)
	}

	return nil
}

// saveWithRetry retries transient write failures with backoff. Metadata
// errors are the only retryable class in the system.
func (l *Ledger) saveWithRetry(doc *document) error {
	return l.retryer.Do(func() error {
		return l.save(doc)
	})
}

// RecordCompression inserts or replaces the entry for originalPath. The
// content hash and original timestamps are captured from the original
// file, which must still exist at call time; callers record the entry
// before removing the original so a crash leaves both files and one
// authoritative record.
func (l *Ledger) RecordCompression(originalPath, compressedPath string, originalSize, compressedSize int64, method types.Method) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc := l.load()

	entry := types.CompressionEntry{
		OriginalPath:      originalPath,
		CompressedPath:    compressedPath,
		OriginalSize:      originalSize,
		CompressedSize:    compressedSize,
		Method:            method,
		CompressedAt:      time.Now(),
		OriginalExtension: filepath.Ext(originalPath),
	}

	if info, err := os.Stat(originalPath); err == nil {
		atime, mtime := utils.FileTimes(info)
		entry.AccessTime = atime
		entry.ModTime = mtime

		hash, hashErr := HashFile(originalPath)
		if hashErr != nil {
			l.logger.Warn("could not hash original file, integrity verification will be skipped", map[string]interface{}{
				"path":  originalPath,
				"error": hashErr.Error(),
			})
		} else {
			entry.FileHash = hash
		}
	} else {
		l.logger.Warn("original file missing at record time", map[string]interface{}{
			"path": originalPath,
		})
	}

	doc.CompressedFiles[originalPath] = entry
	return l.saveWithRetry(doc)
}

// IsCompressed reports whether an entry exists for path
func (l *Ledger) IsCompressed(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc := l.load()
	_, ok := doc.CompressedFiles[path]
	return ok
}

// GetEntry returns the entry for path, if present
func (l *Ledger) GetEntry(path string) (types.CompressionEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc := l.load()
	entry, ok := doc.CompressedFiles[path]
	return entry, ok
}

// ListAll returns every entry in the ledger
func (l *Ledger) ListAll() []types.CompressionEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc := l.load()
	entries := make([]types.CompressionEntry, 0, len(doc.CompressedFiles))
	for _, entry := range doc.CompressedFiles {
		entries = append(entries, entry)
	}
	return entries
}

// Remove deletes the entry for path. Removing an absent entry is a
// NOT_FOUND error.
func (l *Ledger) Remove(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc := l.load()
	if _, ok := doc.CompressedFiles[path]; !ok {
		return errors.NewNotFound("no compression record for path", path).
			WithComponent("ledger").WithOperation("remove")
	}

	delete(doc.CompressedFiles, path)
	return l.saveWithRetry(doc)
}

// Stats aggregates the current document contents
func (l *Ledger) Stats() types.LedgerStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc := l.load()

	stats := types.LedgerStats{
		TotalFiles: len(doc.CompressedFiles),
	}
	for _, entry := range doc.CompressedFiles {
		stats.TotalOriginalBytes += entry.OriginalSize
		stats.TotalCompressedBytes += entry.CompressedSize
	}
	stats.SpaceSaved = stats.TotalOriginalBytes - stats.TotalCompressedBytes
	if stats.TotalOriginalBytes > 0 {
		stats.AvgRatioPercent = float64(stats.SpaceSaved) / float64(stats.TotalOriginalBytes) * 100
	}
	return stats
}

// Reconcile drops entries whose compressed artifact no longer exists on
// disk and reports how many were removed. Entries whose artifact is
// merely unreadable (permission errors) are kept.
func (l *Ledger) Reconcile() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc := l.load()

	removed := 0
	for path, entry := range doc.CompressedFiles {
		if _, err := os.Stat(entry.CompressedPath); os.IsNotExist(err) {
			delete(doc.CompressedFiles, path)
			removed++
			l.logger.Info("dropped ledger entry with missing artifact", map[string]interface{}{
				"original":   path,
				"compressed": entry.CompressedPath,
			})
		}
	}

	if removed == 0 {
		return 0, nil
	}

	if err := l.saveWithRetry(doc); err != nil {
		return 0, err
	}
	return removed, nil
}
