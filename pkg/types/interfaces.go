package types

// Ledger defines the metadata ledger contract. It is the sole source of
// truth for "is this file compressed"; all mutations rewrite the full
// persisted document.
type Ledger interface {
	// RecordCompression creates the entry for a newly compressed file.
	// The original's content hash and timestamps are captured here if the
	// original still exists on disk.
	RecordCompression(originalPath, compressedPath string, originalSize, compressedSize int64, method Method) error

	// IsCompressed reports whether an entry exists for the path
	IsCompressed(path string) bool

	// GetEntry returns the entry for the path, if present
	GetEntry(path string) (CompressionEntry, bool)

	// ListAll returns every entry in the ledger
	ListAll() []CompressionEntry

	// Remove deletes the entry for the path
	Remove(path string) error

	// Stats aggregates the ledger contents
	Stats() LedgerStats

	// Reconcile drops entries whose compressed artifact no longer exists
	// and returns how many were removed
	Reconcile() (int, error)
}

// Scanner defines the priority scanner contract
type Scanner interface {
	// Scan walks the directory and returns eligible files only
	Scan(dir string, recursive bool) ([]FileRecord, error)

	// Score fills PriorityScore on each record relative to the batch
	Score(records []FileRecord) []FileRecord

	// SelectTopN scans, scores, filters by minimum priority, and returns
	// the highest-priority records, truncated to maxFiles when positive
	SelectTopN(dir string, maxFiles int, minPriority float64) ([]FileRecord, error)
}

// Engine defines the single-file compression executor contract
type Engine interface {
	// Compress compresses one file and returns the artifact path
	Compress(rec FileRecord, method Method) (string, error)

	// Decompress restores one file identified by its original path
	Decompress(originalPath string, verifyIntegrity bool) error
}
