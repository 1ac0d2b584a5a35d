package types

import (
	"time"
)

// Method identifies the byte-stream codec used for a compressed file
type Method string

const (
	// MethodGzip compresses with a gzip container (RFC 1952)
	MethodGzip Method = "gzip"

	// MethodDeflate compresses with a raw DEFLATE stream (RFC 1951)
	MethodDeflate Method = "deflate"
)

// Valid reports whether the method is one of the supported codecs
func (m Method) Valid() bool {
	switch m {
	case MethodGzip, MethodDeflate:
		return true
	default:
		return false
	}
}

// Extension returns the filename extension (without dot) for artifacts
// produced with this method
func (m Method) Extension() string {
	switch m {
	case MethodGzip:
		return "gz"
	case MethodDeflate:
		return "zz"
	default:
		return ""
	}
}

// String returns the method name
func (m Method) String() string {
	return string(m)
}

// FileRecord represents a candidate file observed during a scan.
// Records are created per scan, scored, ranked, and discarded after
// selection; they are never persisted.
type FileRecord struct {
	Path          string    `json:"path"`
	Size          int64     `json:"size"`
	AccessTime    time.Time `json:"access_time"`
	ModTime       time.Time `json:"mod_time"`
	Extension     string    `json:"extension"`
	PriorityScore float64   `json:"priority_score"`
}

// CompressionEntry is the persistent ledger record for one compressed file.
// Exactly one entry exists per original path; an entry exists iff the
// system currently considers that file compressed.
type CompressionEntry struct {
	OriginalPath      string    `json:"original_path"`
	CompressedPath    string    `json:"compressed_path"`
	OriginalSize      int64     `json:"original_size"`
	CompressedSize    int64     `json:"compressed_size"`
	Method            Method    `json:"compression_method"`
	CompressedAt      time.Time `json:"compressed_at"`
	FileHash          string    `json:"file_hash"`
	OriginalExtension string    `json:"original_extension"`
	AccessTime        time.Time `json:"access_time"`
	ModTime           time.Time `json:"modify_time"`
}

// Ratio returns the compression ratio as a percentage,
// (1 - compressed/original) * 100, guarding a zero original size.
func (e CompressionEntry) Ratio() float64 {
	if e.OriginalSize == 0 {
		return 0
	}
	return (1 - float64(e.CompressedSize)/float64(e.OriginalSize)) * 100
}

// AgeDays returns the number of days since the entry was recorded
func (e CompressionEntry) AgeDays() float64 {
	return time.Since(e.CompressedAt).Hours() / 24
}

// LedgerStats aggregates ledger contents for reporting
type LedgerStats struct {
	TotalFiles           int     `json:"total_files"`
	TotalOriginalBytes   int64   `json:"total_original_size"`
	TotalCompressedBytes int64   `json:"total_compressed_size"`
	SpaceSaved           int64   `json:"space_saved"`
	AvgRatioPercent      float64 `json:"average_compression_ratio"`
}

// DiskUsage describes filesystem capacity for a monitored path
type DiskUsage struct {
	TotalBytes  uint64  `json:"total_bytes"`
	UsedBytes   uint64  `json:"used_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// BatchResult summarizes one batch compression or decompression run.
// SpaceSavedEstimate is a rough projection made before exact compressed
// sizes are known; the ledger's stats are the exact accounting.
type BatchResult struct {
	RunID              string        `json:"run_id"`
	TotalFiles         int           `json:"total_files"`
	Successful         int           `json:"successful"`
	Failed             int           `json:"failed"`
	SpaceSavedEstimate int64         `json:"space_saved_estimate"`
	Duration           time.Duration `json:"duration"`
}

// ScanStatistics summarizes a directory scan without mutating anything
type ScanStatistics struct {
	TotalFiles      int            `json:"total_files"`
	EligibleFiles   int            `json:"eligible_files"`
	EligibleBytes   int64          `json:"eligible_bytes"`
	ByExtension     map[string]int `json:"by_extension"`
	DiskUsedPercent float64        `json:"disk_used_percent"`
}

// RestorePreview describes what a decompression of one entry would restore
type RestorePreview struct {
	OriginalPath   string    `json:"original_path"`
	CompressedPath string    `json:"compressed_path"`
	OriginalSize   int64     `json:"original_size"`
	CompressedSize int64     `json:"compressed_size"`
	Method         Method    `json:"compression_method"`
	CompressedAt   time.Time `json:"compressed_at"`
	AgeDays        float64   `json:"age_days"`
}
