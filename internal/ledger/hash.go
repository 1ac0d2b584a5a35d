package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/shrinkfs/shrinkfs/internal/buffer"
)

// hashChunkSize is the fixed read size for streaming hashes. Memory use
// stays constant regardless of file size.
const hashChunkSize = 4096

// HashFile computes the sha256 hex digest of the file at path by
// streaming it in fixed-size chunks.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()

	buf := buffer.GetBuffer(hashChunkSize)
	defer buffer.PutBuffer(buf)

	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
