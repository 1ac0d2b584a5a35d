package engine

import (
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"

	"github.com/shrinkfs/shrinkfs/pkg/errors"
	"github.com/shrinkfs/shrinkfs/pkg/types"
)

// newCompressor returns a WriteCloser compressing into w with the given
// method and level. Close must be called to flush the stream trailer.
func newCompressor(method types.Method, w io.Writer, level int) (io.WriteCloser, error) {
	switch method {
	case types.MethodGzip:
		zw, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return nil, errors.NewIOError("failed to create gzip writer", err)
		}
		return zw, nil
	case types.MethodDeflate:
		fw, err := flate.NewWriter(w, level)
		if err != nil {
			return nil, errors.NewIOError("failed to create deflate writer", err)
		}
		return fw, nil
	default:
		return nil, errors.NewUnsupportedMethod(string(method))
	}
}

// newDecompressor returns a ReadCloser decompressing from r with the
// given method.
func newDecompressor(method types.Method, r io.Reader) (io.ReadCloser, error) {
	switch method {
	case types.MethodGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.NewIOError("failed to open gzip stream", err)
		}
		return zr, nil
	case types.MethodDeflate:
		return flate.NewReader(r), nil
	default:
		return nil, errors.NewUnsupportedMethod(string(method))
	}
}
