package engine

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/shrinkfs/shrinkfs/internal/ledger"
	"github.com/shrinkfs/shrinkfs/pkg/errors"
	"github.com/shrinkfs/shrinkfs/pkg/types"
)

var _ types.Engine = (*Engine)(nil)

const testContent = "shrinkfs engine test content, repeated to be worth compressing. "

func newTestEngine(t *testing.T) (*Engine, *ledger.Ledger, string) {
	t.Helper()

	dir := t.TempDir()
	ldg, err := ledger.New(filepath.Join(dir, "metadata", "ledger.json"), nil)
	if err != nil {
		t.Fatalf("ledger.New() error = %v", err)
	}

	return New(nil, ldg, nil), ldg, dir
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", path, err)
	}
}

func record(path string) types.FileRecord {
	return types.FileRecord{Path: path}
}

func gzipBytes(t *testing.T, content []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(content); err != nil {
		t.Fatalf("gzip write error = %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close error = %v", err)
	}
	return buf.Bytes()
}

func TestCompress(t *testing.T) {
	eng, ldg, dir := newTestEngine(t)

	content := strings.Repeat(testContent, 100)
	original := filepath.Join(dir, "report.log")
	writeTestFile(t, original, content)

	compressedPath, err := eng.Compress(record(original), types.MethodGzip)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}

	if want := original + ".gz"; compressedPath != want {
		t.Errorf("compressed path = %s, want %s", compressedPath, want)
	}
	if _, err := os.Stat(compressedPath); err != nil {
		t.Errorf("compressed file missing: %v", err)
	}
	if _, err := os.Stat(original); !os.IsNotExist(err) {
		t.Errorf("original still exists after compression")
	}

	entry, ok := ldg.GetEntry(original)
	if !ok {
		t.Fatal("ledger has no entry for compressed file")
	}
	if entry.Method != types.MethodGzip {
		t.Errorf("entry method = %s, want gzip", entry.Method)
	}
	if entry.OriginalSize != int64(len(content)) {
		t.Errorf("entry original size = %d, want %d", entry.OriginalSize, len(content))
	}
	if entry.CompressedSize <= 0 || entry.CompressedSize >= entry.OriginalSize {
		t.Errorf("compressed size = %d, expected smaller than %d", entry.CompressedSize, entry.OriginalSize)
	}
	if entry.FileHash == "" {
		t.Error("entry has no content hash")
	}
}

func TestCompressUnsupportedMethod(t *testing.T) {
	eng, _, dir := newTestEngine(t)

	original := filepath.Join(dir, "file.txt")
	writeTestFile(t, original, testContent)

	_, err := eng.Compress(record(original), types.Method("lz4"))
	if !errors.HasCode(err, errors.ErrCodeUnsupportedMethod) {
		t.Fatalf("Compress() error = %v, want UNSUPPORTED_METHOD", err)
	}

	if _, err := os.Stat(original); err != nil {
		t.Errorf("original should be untouched: %v", err)
	}
}

func TestCompressMissingOriginal(t *testing.T) {
	eng, _, dir := newTestEngine(t)

	_, err := eng.Compress(record(filepath.Join(dir, "gone.txt")), types.MethodGzip)
	if !errors.HasCode(err, errors.ErrCodeIOError) {
		t.Fatalf("Compress() error = %v, want IO_ERROR", err)
	}
}

func TestCompressProbesDestination(t *testing.T) {
	eng, _, dir := newTestEngine(t)

	original := filepath.Join(dir, "data.csv")
	writeTestFile(t, original, strings.Repeat(testContent, 10))
	writeTestFile(t, original+".gz", "already here")
	writeTestFile(t, original+".gz.1", "this one too")

	compressedPath, err := eng.Compress(record(original), types.MethodGzip)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if want := original + ".gz.2"; compressedPath != want {
		t.Errorf("compressed path = %s, want %s", compressedPath, want)
	}

	// Pre-existing files are never overwritten.
	data, err := os.ReadFile(original + ".gz")
	if err != nil || string(data) != "already here" {
		t.Errorf("pre-existing .gz was modified: %q, %v", data, err)
	}
}

func TestDecompressRoundTrip(t *testing.T) {
	for _, method := range []types.Method{types.MethodGzip, types.MethodDeflate} {
		t.Run(method.String(), func(t *testing.T) {
			eng, ldg, dir := newTestEngine(t)

			content := strings.Repeat(testContent, 50)
			original := filepath.Join(dir, "notes.txt")
			writeTestFile(t, original, content)

			mtime := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
			if err := os.Chtimes(original, mtime, mtime); err != nil {
				t.Fatalf("Chtimes() error = %v", err)
			}

			compressedPath, err := eng.Compress(record(original), method)
			if err != nil {
				t.Fatalf("Compress() error = %v", err)
			}

			if err := eng.Decompress(original, true); err != nil {
				t.Fatalf("Decompress() error = %v", err)
			}

			restored, err := os.ReadFile(original)
			if err != nil {
				t.Fatalf("restored file unreadable: %v", err)
			}
			if string(restored) != content {
				t.Error("restored content differs from original")
			}
			if _, err := os.Stat(compressedPath); !os.IsNotExist(err) {
				t.Error("compressed file still exists after restore")
			}
			if ldg.IsCompressed(original) {
				t.Error("ledger entry still present after restore")
			}

			info, err := os.Stat(original)
			if err != nil {
				t.Fatalf("Stat() error = %v", err)
			}
			if diff := info.ModTime().Sub(mtime); diff < -time.Second || diff > time.Second {
				t.Errorf("restored mtime = %v, want %v", info.ModTime(), mtime)
			}
		})
	}
}

func TestDecompressNotFound(t *testing.T) {
	eng, _, dir := newTestEngine(t)

	err := eng.Decompress(filepath.Join(dir, "never-compressed.txt"), false)
	if !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Fatalf("Decompress() error = %v, want NOT_FOUND", err)
	}
}

func TestDecompressMissingArtifact(t *testing.T) {
	eng, _, dir := newTestEngine(t)

	original := filepath.Join(dir, "log.txt")
	writeTestFile(t, original, strings.Repeat(testContent, 10))

	compressedPath, err := eng.Compress(record(original), types.MethodGzip)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if err := os.Remove(compressedPath); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	err = eng.Decompress(original, false)
	if !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Fatalf("Decompress() error = %v, want NOT_FOUND", err)
	}
}

func TestDecompressIntegrityMismatch(t *testing.T) {
	eng, ldg, dir := newTestEngine(t)

	original := filepath.Join(dir, "audit.json")
	writeTestFile(t, original, strings.Repeat(testContent, 20))

	compressedPath, err := eng.Compress(record(original), types.MethodGzip)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}

	// Swap the artifact for a valid stream of different content, and put a
	// new file at the original path so the rollback has something to keep.
	if err := os.WriteFile(compressedPath, gzipBytes(t, []byte("tampered")), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	writeTestFile(t, original, "current working copy")

	err = eng.Decompress(original, true)
	if !errors.HasCode(err, errors.ErrCodeIntegrityMismatch) {
		t.Fatalf("Decompress() error = %v, want INTEGRITY_MISMATCH", err)
	}

	// Rollback restored the working copy and kept the entry and artifact.
	data, err := os.ReadFile(original)
	if err != nil || string(data) != "current working copy" {
		t.Errorf("working copy not restored: %q, %v", data, err)
	}
	if !ldg.IsCompressed(original) {
		t.Error("ledger entry removed despite failed restore")
	}
	if _, err := os.Stat(compressedPath); err != nil {
		t.Errorf("artifact removed despite failed restore: %v", err)
	}

	backups, _ := filepath.Glob(original + ".backup_*")
	if len(backups) != 0 {
		t.Errorf("leftover backups after rollback: %v", backups)
	}
}

func TestDecompressCorruptArtifact(t *testing.T) {
	eng, ldg, dir := newTestEngine(t)

	original := filepath.Join(dir, "broken.txt")
	writeTestFile(t, original, strings.Repeat(testContent, 20))

	compressedPath, err := eng.Compress(record(original), types.MethodGzip)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if err := os.WriteFile(compressedPath, []byte("not gzip at all"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	err = eng.Decompress(original, false)
	if !errors.HasCode(err, errors.ErrCodeIOError) {
		t.Fatalf("Decompress() error = %v, want IO_ERROR", err)
	}
	if !ldg.IsCompressed(original) {
		t.Error("ledger entry removed despite failed restore")
	}
	if _, err := os.Stat(original); !os.IsNotExist(err) {
		t.Error("partial restore left behind")
	}
}

func TestDecompressWithoutVerify(t *testing.T) {
	eng, _, dir := newTestEngine(t)

	original := filepath.Join(dir, "cache.txt")
	writeTestFile(t, original, strings.Repeat(testContent, 20))

	compressedPath, err := eng.Compress(record(original), types.MethodGzip)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if err := os.WriteFile(compressedPath, gzipBytes(t, []byte("tampered")), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	// verify=false restores whatever the artifact holds.
	if err := eng.Decompress(original, false); err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	data, err := os.ReadFile(original)
	if err != nil || string(data) != "tampered" {
		t.Errorf("restored content = %q, %v", data, err)
	}
}

func TestDecompressRemovesBackupOnSuccess(t *testing.T) {
	eng, _, dir := newTestEngine(t)

	content := strings.Repeat(testContent, 20)
	original := filepath.Join(dir, "doc.txt")
	writeTestFile(t, original, content)

	if _, err := eng.Compress(record(original), types.MethodGzip); err != nil {
		t.Fatalf("Compress() error = %v", err)
	}

	// A newer file appeared at the original path since compression.
	writeTestFile(t, original, "newer content")

	if err := eng.Decompress(original, true); err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}

	data, err := os.ReadFile(original)
	if err != nil || string(data) != content {
		t.Errorf("restored content differs from compressed original")
	}

	backups, _ := filepath.Glob(original + ".backup_*")
	if len(backups) != 0 {
		t.Errorf("backup not cleaned up after successful restore: %v", backups)
	}
}

func TestDestinationPath(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "file.txt")

	if got, want := destinationPath(original, types.MethodGzip), original+".gz"; got != want {
		t.Errorf("destinationPath() = %s, want %s", got, want)
	}
	if got, want := destinationPath(original, types.MethodDeflate), original+".zz"; got != want {
		t.Errorf("destinationPath() = %s, want %s", got, want)
	}

	writeTestFile(t, original+".gz", "x")
	if got, want := destinationPath(original, types.MethodGzip), original+".gz.1"; got != want {
		t.Errorf("destinationPath() with collision = %s, want %s", got, want)
	}
}
