// Package stats renders ledger aggregates, disk usage, and batch results
// into human-readable summaries. Read-only; nothing here mutates state.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shrinkfs/shrinkfs/pkg/types"
	"github.com/shrinkfs/shrinkfs/pkg/utils"
)

// Reporter reads the ledger and formats summaries
type Reporter struct {
	ledger types.Ledger
}

// NewReporter creates a reporter over the given ledger
func NewReporter(ldg types.Ledger) *Reporter {
	return &Reporter{ledger: ldg}
}

// Summary renders the current ledger aggregates
func (r *Reporter) Summary() string {
	return FormatLedgerStats(r.ledger.Stats())
}

// FormatLedgerStats renders ledger aggregates, one fact per line
func FormatLedgerStats(s types.LedgerStats) string {
	if s.TotalFiles == 0 {
		return "No compressed files tracked."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Compressed files: %d\n", s.TotalFiles)
	fmt.Fprintf(&b, "Original size:    %s\n", utils.FormatBytes(s.TotalOriginalBytes))
	fmt.Fprintf(&b, "Compressed size:  %s\n", utils.FormatBytes(s.TotalCompressedBytes))
	fmt.Fprintf(&b, "Space saved:      %s (%.1f%% average ratio)",
		utils.FormatBytes(s.SpaceSaved), s.AvgRatioPercent)
	return b.String()
}

// FormatDiskUsage renders one disk usage sample as a single line
func FormatDiskUsage(u types.DiskUsage) string {
	return fmt.Sprintf("Disk usage: %.1f%% (used %s of %s, %s free)",
		u.UsedPercent,
		utils.FormatBytes(int64(u.UsedBytes)),
		utils.FormatBytes(int64(u.TotalBytes)),
		utils.FormatBytes(int64(u.FreeBytes)))
}

// FormatBatchResult renders a batch tally. The space figure is an
// estimate made before exact compressed sizes are known; the ledger
// stats are the exact accounting.
func FormatBatchResult(r types.BatchResult) string {
	line := fmt.Sprintf("Batch %s: %d files, %d compressed, %d failed in %s",
		r.RunID, r.TotalFiles, r.Successful, r.Failed,
		r.Duration.Round(time.Millisecond))
	if r.SpaceSavedEstimate > 0 {
		line += fmt.Sprintf(" (estimated %s saved)", utils.FormatBytes(r.SpaceSavedEstimate))
	}
	return line
}

// FormatScanStatistics renders a scan summary with per-extension counts
func FormatScanStatistics(s types.ScanStatistics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scanned %d files: %d eligible (%s) at %.1f%% disk usage",
		s.TotalFiles, s.EligibleFiles, utils.FormatBytes(s.EligibleBytes), s.DiskUsedPercent)

	if len(s.ByExtension) == 0 {
		return b.String()
	}

	exts := make([]string, 0, len(s.ByExtension))
	for ext := range s.ByExtension {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	b.WriteString("\nEligible by extension:")
	for _, ext := range exts {
		fmt.Fprintf(&b, " %s=%d", ext, s.ByExtension[ext])
	}
	return b.String()
}
