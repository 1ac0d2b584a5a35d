// Package engine executes single-file compression and decompression.
// It owns the artifact naming scheme, the record-before-delete ordering
// that keeps the ledger consistent with the disk, and the backup and
// rollback handling around restores.
package engine

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shrinkfs/shrinkfs/internal/buffer"
	"github.com/shrinkfs/shrinkfs/internal/ledger"
	"github.com/shrinkfs/shrinkfs/internal/metrics"
	"github.com/shrinkfs/shrinkfs/pkg/errors"
	"github.com/shrinkfs/shrinkfs/pkg/types"
	"github.com/shrinkfs/shrinkfs/pkg/utils"
)

// copyBufferSize is the pooled buffer size for streaming copies
const copyBufferSize = 32 * 1024

// Config holds engine tuning and optional observability hooks
type Config struct {
	// Level is the codec compression level; -1 selects the codec default
	Level int

	// Events receives lifecycle events when set
	Events *utils.EventLogger

	// Metrics receives operation metrics when set
	Metrics *metrics.Collector
}

// Engine compresses and decompresses individual files against a ledger
type Engine struct {
	level   int
	ledger  types.Ledger
	logger  *utils.StructuredLogger
	events  *utils.EventLogger
	metrics *metrics.Collector
}

// New creates an engine backed by the given ledger
func New(config *Config, ldg types.Ledger, logger *utils.StructuredLogger) *Engine {
	if config == nil {
		config = &Config{Level: -1}
	}
	if logger == nil {
		logger, _ = utils.NewStructuredLogger(nil)
	}

	return &Engine{
		level:   config.Level,
		ledger:  ldg,
		logger:  logger.WithComponent("engine"),
		events:  config.Events,
		metrics: config.Metrics,
	}
}

// Compress compresses one file and returns the artifact path. The original
// is deleted only after the ledger entry is durably recorded; a failed
// delete leaves both files on disk with the entry standing.
func (e *Engine) Compress(rec types.FileRecord, method types.Method) (string, error) {
	start := time.Now()

	compressedPath, originalSize, compressedSize, err := e.compress(rec.Path, method)
	duration := time.Since(start)

	if err != nil {
		e.metrics.RecordCompression(method.String(), false, duration, 0, 0)
		return "", err
	}

	e.metrics.RecordCompression(method.String(), true, duration, originalSize, compressedSize)
	if e.events != nil {
		e.events.Compression(rec.Path, originalSize, compressedSize, method.String())
	}

	return compressedPath, nil
}

func (e *Engine) compress(originalPath string, method types.Method) (string, int64, int64, error) {
	if !method.Valid() {
		return "", 0, 0, errors.NewUnsupportedMethod(method.String()).
			WithComponent("engine").
			WithOperation("compress")
	}

	// Sizes from the scan may be stale; stat fresh.
	info, err := os.Stat(originalPath)
	if err != nil {
		return "", 0, 0, errors.NewIOError("failed to stat original file", err).
			WithComponent("engine").
			WithOperation("compress").
			WithPath(originalPath)
	}
	originalSize := info.Size()

	compressedPath := destinationPath(originalPath, method)

	src, err := os.Open(originalPath)
	if err != nil {
		return "", 0, 0, errors.NewIOError("failed to open original file", err).
			WithComponent("engine").
			WithOperation("compress").
			WithPath(originalPath)
	}
	defer func() { _ = src.Close() }()

	// O_EXCL guards the probe against a concurrent writer taking the name.
	dst, err := os.OpenFile(compressedPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", 0, 0, errors.NewIOError("failed to create compressed file", err).
			WithComponent("engine").
			WithOperation("compress").
			WithPath(compressedPath)
	}

	if err := e.streamCompress(src, dst, method); err != nil {
		_ = dst.Close()
		_ = os.Remove(compressedPath)
		return "", 0, 0, err
	}

	if err := dst.Close(); err != nil {
		_ = os.Remove(compressedPath)
		return "", 0, 0, errors.NewIOError("failed to close compressed file", err).
			WithComponent("engine").
			WithOperation("compress").
			WithPath(compressedPath)
	}

	compressedInfo, err := os.Stat(compressedPath)
	if err != nil {
		return "", 0, 0, errors.NewIOError("compressed file missing after write", err).
			WithComponent("engine").
			WithOperation("compress").
			WithPath(compressedPath)
	}
	compressedSize := compressedInfo.Size()

	// Record before delete: an entry must exist before the original is gone.
	if err := e.ledger.RecordCompression(originalPath, compressedPath, originalSize, compressedSize, method); err != nil {
		if removeErr := os.Remove(compressedPath); removeErr != nil {
			e.logger.Warn("Failed to remove orphaned compressed file", map[string]interface{}{
				"path":  compressedPath,
				"error": removeErr.Error(),
			})
		}
		return "", 0, 0, err
	}

	if err := os.Remove(originalPath); err != nil {
		e.logger.Warn("Failed to remove original after compression", map[string]interface{}{
			"path":  originalPath,
			"error": err.Error(),
		})
	}

	return compressedPath, originalSize, compressedSize, nil
}

func (e *Engine) streamCompress(src io.Reader, dst io.Writer, method types.Method) error {
	compressor, err := newCompressor(method, dst, e.level)
	if err != nil {
		return err
	}

	buf := buffer.GetBuffer(copyBufferSize)
	defer buffer.PutBuffer(buf)

	if _, err := io.CopyBuffer(compressor, src, buf); err != nil {
		_ = compressor.Close()
		return errors.NewIOError("failed to compress file content", err).
			WithComponent("engine").
			WithOperation("compress")
	}

	// Close flushes the codec footer; an error here means a bad artifact.
	if err := compressor.Close(); err != nil {
		return errors.NewIOError("failed to finalize compressed stream", err).
			WithComponent("engine").
			WithOperation("compress")
	}

	return nil
}

// Decompress restores one file identified by its original path. Any file
// already at that path is copied aside first and restored on failure, so a
// failed decompression never loses data.
func (e *Engine) Decompress(originalPath string, verifyIntegrity bool) error {
	start := time.Now()

	method, err := e.decompress(originalPath, verifyIntegrity)
	duration := time.Since(start)

	methodLabel := method.String()
	if methodLabel == "" {
		methodLabel = "unknown"
	}
	e.metrics.RecordDecompression(methodLabel, err == nil, duration)
	if e.events != nil {
		errText := ""
		if err != nil {
			errText = err.Error()
		}
		e.events.Decompression(originalPath, err == nil, errText)
	}

	return err
}

func (e *Engine) decompress(originalPath string, verifyIntegrity bool) (types.Method, error) {
	entry, ok := e.ledger.GetEntry(originalPath)
	if !ok {
		return "", errors.NewNotFound("no compression record for path", originalPath).
			WithComponent("engine").
			WithOperation("decompress")
	}

	if _, err := os.Stat(entry.CompressedPath); err != nil {
		if os.IsNotExist(err) {
			return entry.Method, errors.NewNotFound("compressed file no longer exists", entry.CompressedPath).
				WithComponent("engine").
				WithOperation("decompress")
		}
		return entry.Method, errors.NewIOError("failed to stat compressed file", err).
			WithComponent("engine").
			WithOperation("decompress").
			WithPath(entry.CompressedPath)
	}

	backupPath, err := e.backupExisting(originalPath)
	if err != nil {
		return entry.Method, err
	}

	if err := e.restore(entry, originalPath); err != nil {
		e.rollback(originalPath, backupPath)
		return entry.Method, err
	}

	if verifyIntegrity {
		if entry.FileHash == "" {
			e.logger.Warn("No recorded hash, skipping integrity verification", map[string]interface{}{
				"path": originalPath,
			})
		} else {
			restoredHash, err := ledger.HashFile(originalPath)
			if err != nil {
				e.rollback(originalPath, backupPath)
				return entry.Method, errors.NewIOError("failed to hash restored file", err).
					WithComponent("engine").
					WithOperation("decompress").
					WithPath(originalPath)
			}
			if restoredHash != entry.FileHash {
				e.rollback(originalPath, backupPath)
				return entry.Method, errors.NewIntegrityMismatch(originalPath).
					WithComponent("engine").
					WithOperation("decompress").
					WithDetail("expected_hash", entry.FileHash).
					WithDetail("actual_hash", restoredHash)
			}
		}
	}

	if err := os.Remove(entry.CompressedPath); err != nil {
		e.logger.Warn("Failed to remove compressed file after restore", map[string]interface{}{
			"path":  entry.CompressedPath,
			"error": err.Error(),
		})
	}

	if err := e.ledger.Remove(originalPath); err != nil {
		return entry.Method, err
	}

	if backupPath != "" {
		if err := os.Remove(backupPath); err != nil {
			e.logger.Warn("Failed to remove backup after restore", map[string]interface{}{
				"path":  backupPath,
				"error": err.Error(),
			})
		}
	}

	e.restoreTimestamps(originalPath, entry)

	return entry.Method, nil
}

// backupExisting copies any file at path aside and returns the backup
// path, or "" when nothing was there.
func (e *Engine) backupExisting(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.NewIOError("failed to stat restore target", err).
			WithComponent("engine").
			WithOperation("decompress").
			WithPath(path)
	}

	backupPath := fmt.Sprintf("%s.backup_%d", path, time.Now().Unix())
	if err := copyFile(path, backupPath); err != nil {
		_ = os.Remove(backupPath)
		return "", errors.NewIOError("failed to back up existing file", err).
			WithComponent("engine").
			WithOperation("decompress").
			WithPath(path)
	}

	return backupPath, nil
}

func (e *Engine) restore(entry types.CompressionEntry, originalPath string) error {
	src, err := os.Open(entry.CompressedPath)
	if err != nil {
		return errors.NewIOError("failed to open compressed file", err).
			WithComponent("engine").
			WithOperation("decompress").
			WithPath(entry.CompressedPath)
	}
	defer func() { _ = src.Close() }()

	decompressor, err := newDecompressor(entry.Method, src)
	if err != nil {
		return err
	}
	defer func() { _ = decompressor.Close() }()

	dst, err := os.Create(originalPath)
	if err != nil {
		return errors.NewIOError("failed to create restored file", err).
			WithComponent("engine").
			WithOperation("decompress").
			WithPath(originalPath)
	}

	buf := buffer.GetBuffer(copyBufferSize)
	defer buffer.PutBuffer(buf)

	if _, err := io.CopyBuffer(dst, decompressor, buf); err != nil {
		_ = dst.Close()
		return errors.NewIOError("failed to decompress file content", err).
			WithComponent("engine").
			WithOperation("decompress").
			WithPath(originalPath)
	}

	if err := dst.Close(); err != nil {
		return errors.NewIOError("failed to close restored file", err).
			WithComponent("engine").
			WithOperation("decompress").
			WithPath(originalPath)
	}

	return nil
}

// rollback removes a partial restore and moves the backup, if any, back
// into place.
func (e *Engine) rollback(originalPath, backupPath string) {
	if err := os.Remove(originalPath); err != nil && !os.IsNotExist(err) {
		e.logger.Warn("Failed to remove partial restore", map[string]interface{}{
			"path":  originalPath,
			"error": err.Error(),
		})
	}

	if backupPath == "" {
		return
	}
	if err := os.Rename(backupPath, originalPath); err != nil {
		e.logger.Error("Failed to restore backup after failed decompression", map[string]interface{}{
			"path":   originalPath,
			"backup": backupPath,
			"error":  err.Error(),
		})
	}
}

// restoreTimestamps puts the entry's captured times back on the restored
// file. Best effort; the content round-trip has already succeeded.
func (e *Engine) restoreTimestamps(path string, entry types.CompressionEntry) {
	if entry.ModTime.IsZero() {
		return
	}
	atime := entry.AccessTime
	if atime.IsZero() {
		atime = entry.ModTime
	}
	if err := os.Chtimes(path, atime, entry.ModTime); err != nil {
		e.logger.Warn("Failed to restore file timestamps", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
	}
}

// destinationPath returns the artifact path for an original: the method
// extension appended, with numeric suffixes probed until a free name is
// found. Existing files are never overwritten.
func destinationPath(originalPath string, method types.Method) string {
	base := originalPath + "." + method.Extension()
	if _, err := os.Lstat(base); os.IsNotExist(err) {
		return base
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s.%d", base, i)
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	buf := buffer.GetBuffer(copyBufferSize)
	defer buffer.PutBuffer(buf)

	if _, err := io.CopyBuffer(out, in, buf); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}
