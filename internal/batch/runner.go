// Package batch runs multi-file compression and decompression passes.
// Files are processed sequentially to bound resource use and keep ledger
// writes serialized; a per-file failure is tallied and logged, never
// fatal to the batch.
package batch

import (
	"time"

	"github.com/google/uuid"

	"github.com/shrinkfs/shrinkfs/internal/metrics"
	"github.com/shrinkfs/shrinkfs/pkg/types"
	"github.com/shrinkfs/shrinkfs/pkg/utils"
)

// estimatedSavingsRatio is the rough projection applied to original bytes
// when reporting a compression batch. The ledger's stats are the exact
// post-hoc figures; this is only a preview.
const estimatedSavingsRatio = 0.3

// Runner executes batches against a scanner and engine pair
type Runner struct {
	scanner types.Scanner
	engine  types.Engine
	logger  *utils.StructuredLogger
	metrics *metrics.Collector
}

// NewRunner creates a batch runner
func NewRunner(scn types.Scanner, eng types.Engine, logger *utils.StructuredLogger, collector *metrics.Collector) *Runner {
	if logger == nil {
		logger, _ = utils.NewStructuredLogger(nil)
	}

	return &Runner{
		scanner: scn,
		engine:  eng,
		logger:  logger.WithComponent("batch"),
		metrics: collector,
	}
}

// CompressTop selects up to maxFiles of the highest-priority candidates
// under root and compresses each in priority order. Every batch carries a
// run id through logs and the result.
func (r *Runner) CompressTop(root string, maxFiles int, minPriority float64, method types.Method) (types.BatchResult, error) {
	runID := uuid.New().String()
	start := time.Now()

	result := types.BatchResult{RunID: runID}

	records, err := r.scanner.SelectTopN(root, maxFiles, minPriority)
	if err != nil {
		return result, err
	}
	r.metrics.RecordBatch(len(records))

	result.TotalFiles = len(records)
	for _, rec := range records {
		if _, err := r.engine.Compress(rec, method); err != nil {
			result.Failed++
			r.logger.Warn("Compression failed", map[string]interface{}{
				"path":   rec.Path,
				"error":  err.Error(),
				"run_id": runID,
			})
			continue
		}
		result.Successful++
		result.SpaceSavedEstimate += int64(float64(rec.Size) * estimatedSavingsRatio)
	}
	result.Duration = time.Since(start)

	r.logger.Info("Compression batch complete", map[string]interface{}{
		"run_id":     runID,
		"total":      result.TotalFiles,
		"successful": result.Successful,
		"failed":     result.Failed,
		"duration":   result.Duration.String(),
	})

	return result, nil
}

// Decompress restores the given entries sequentially
func (r *Runner) Decompress(entries []types.CompressionEntry, verify bool) types.BatchResult {
	runID := uuid.New().String()
	start := time.Now()

	result := types.BatchResult{RunID: runID, TotalFiles: len(entries)}
	for _, entry := range entries {
		if err := r.engine.Decompress(entry.OriginalPath, verify); err != nil {
			result.Failed++
			r.logger.Warn("Decompression failed", map[string]interface{}{
				"path":   entry.OriginalPath,
				"error":  err.Error(),
				"run_id": runID,
			})
			continue
		}
		result.Successful++
	}
	result.Duration = time.Since(start)

	r.logger.Info("Decompression batch complete", map[string]interface{}{
		"run_id":     runID,
		"total":      result.TotalFiles,
		"successful": result.Successful,
		"failed":     result.Failed,
		"duration":   result.Duration.String(),
	})

	return result
}
