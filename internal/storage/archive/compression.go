package archive

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/Shevanio/snapback/internal/core/domain"
)

// newCompressor wraps w with the stream compressor recorded for a snapshot.
// The returned closer must be closed before the underlying file is synced.
func newCompressor(w io.Writer, c domain.CompressionType) (io.WriteCloser, error) {
	switch c {
	case domain.CompressionNone:
		return nopWriteCloser{w}, nil
	case domain.CompressionGzip:
		return gzip.NewWriter(w), nil
	case domain.CompressionZstd:
		return zstd.NewWriter(w)
	}
	return nil, domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("compression %q", c))
}

// newDecompressor wraps r with the decompressor matching the recorded
// algorithm; no content sniffing is performed.
func newDecompressor(r io.Reader, c domain.CompressionType) (io.ReadCloser, error) {
	switch c {
	case domain.CompressionNone:
		return io.NopCloser(r), nil
	case domain.CompressionGzip:
		return gzip.NewReader(r)
	case domain.CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zstdReadCloser{dec}, nil
	}
	return nil, domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("compression %q", c))
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

type zstdReadCloser struct {
	*zstd.Decoder
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}
