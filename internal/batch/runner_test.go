package batch

import (
	"testing"

	"github.com/shrinkfs/shrinkfs/pkg/errors"
	"github.com/shrinkfs/shrinkfs/pkg/types"
)

type fakeScanner struct {
	records []types.FileRecord
	err     error
}

func (f *fakeScanner) Scan(dir string, recursive bool) ([]types.FileRecord, error) {
	return f.records, f.err
}

func (f *fakeScanner) Score(records []types.FileRecord) []types.FileRecord {
	return records
}

func (f *fakeScanner) SelectTopN(dir string, maxFiles int, minPriority float64) ([]types.FileRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if maxFiles > 0 && len(f.records) > maxFiles {
		return f.records[:maxFiles], nil
	}
	return f.records, nil
}

type fakeEngine struct {
	failPaths    map[string]bool
	compressed   []string
	decompressed []string
}

func (f *fakeEngine) Compress(rec types.FileRecord, method types.Method) (string, error) {
	if f.failPaths[rec.Path] {
		return "", errors.NewIOError("synthetic failure", nil)
	}
	f.compressed = append(f.compressed, rec.Path)
	return rec.Path + ".gz", nil
}

func (f *fakeEngine) Decompress(originalPath string, verifyIntegrity bool) error {
	if f.failPaths[originalPath] {
		return errors.NewNotFound("synthetic failure", originalPath)
	}
	f.decompressed = append(f.decompressed, originalPath)
	return nil
}

func TestCompressTop(t *testing.T) {
	scn := &fakeScanner{records: []types.FileRecord{
		{Path: "/data/a.log", Size: 1000},
		{Path: "/data/b.log", Size: 2000},
		{Path: "/data/c.log", Size: 4000},
	}}
	eng := &fakeEngine{failPaths: map[string]bool{"/data/b.log": true}}
	runner := NewRunner(scn, eng, nil, nil)

	result, err := runner.CompressTop("/data", 0, 0.3, types.MethodGzip)
	if err != nil {
		t.Fatalf("CompressTop() error = %v", err)
	}

	if result.RunID == "" {
		t.Error("batch has no run id")
	}
	if result.TotalFiles != 3 || result.Successful != 2 || result.Failed != 1 {
		t.Errorf("tally = %d/%d/%d, want 3/2/1", result.TotalFiles, result.Successful, result.Failed)
	}

	// Estimate covers successful files only, at the 30% projection.
	if want := int64(0.3*1000 + 0.3*4000); result.SpaceSavedEstimate != want {
		t.Errorf("estimate = %d, want %d", result.SpaceSavedEstimate, want)
	}

	if len(eng.compressed) != 2 || eng.compressed[0] != "/data/a.log" || eng.compressed[1] != "/data/c.log" {
		t.Errorf("compressed paths = %v", eng.compressed)
	}
}

func TestCompressTopScanError(t *testing.T) {
	scn := &fakeScanner{err: errors.NewNotFound("directory does not exist", "/missing")}
	runner := NewRunner(scn, &fakeEngine{}, nil, nil)

	result, err := runner.CompressTop("/missing", 10, 0.3, types.MethodGzip)
	if !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Fatalf("CompressTop() error = %v, want NOT_FOUND", err)
	}
	if result.RunID == "" {
		t.Error("failed batch still carries a run id")
	}
}

func TestCompressTopRespectsLimit(t *testing.T) {
	scn := &fakeScanner{records: []types.FileRecord{
		{Path: "/data/a.log", Size: 100},
		{Path: "/data/b.log", Size: 100},
	}}
	eng := &fakeEngine{}
	runner := NewRunner(scn, eng, nil, nil)

	result, err := runner.CompressTop("/data", 1, 0, types.MethodGzip)
	if err != nil {
		t.Fatalf("CompressTop() error = %v", err)
	}
	if result.TotalFiles != 1 || len(eng.compressed) != 1 {
		t.Errorf("limit ignored: total = %d, compressed = %v", result.TotalFiles, eng.compressed)
	}
}

func TestDecompressBatch(t *testing.T) {
	eng := &fakeEngine{failPaths: map[string]bool{"/data/b.log": true}}
	runner := NewRunner(&fakeScanner{}, eng, nil, nil)

	entries := []types.CompressionEntry{
		{OriginalPath: "/data/a.log"},
		{OriginalPath: "/data/b.log"},
		{OriginalPath: "/data/c.log"},
	}

	result := runner.Decompress(entries, true)
	if result.TotalFiles != 3 || result.Successful != 2 || result.Failed != 1 {
		t.Errorf("tally = %d/%d/%d, want 3/2/1", result.TotalFiles, result.Successful, result.Failed)
	}
	if result.SpaceSavedEstimate != 0 {
		t.Errorf("decompression batch has estimate %d", result.SpaceSavedEstimate)
	}
	if result.RunID == "" {
		t.Error("batch has no run id")
	}
}
