package compression

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

const (
	// EncodingGzip is the HTTP content coding handled by this package.
	EncodingGzip = "gzip"

	// DefaultMinSize is the smallest body worth compressing.
	DefaultMinSize = 1024
)

// ErrTooLarge is returned when a decompressed body exceeds the limit.
var ErrTooLarge = errors.New("compression: decompressed body exceeds limit")

// Compressor compresses and decompresses message bodies.
type Compressor struct {
	level   int
	maxSize int64
}

// NewCompressor creates a compressor with the default level. maxSize bounds
// decompressed output; zero or negative means unbounded.
func NewCompressor(maxSize int64) *Compressor {
	return NewCompressorWithLevel(gzip.DefaultCompression, maxSize)
}

// NewCompressorWithLevel creates a compressor with the given gzip level.
func NewCompressorWithLevel(level int, maxSize int64) *Compressor {
	return &Compressor{
		level:   level,
		maxSize: maxSize,
	}
}

// Compress gzips data.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	writer, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress gunzips data, failing with ErrTooLarge past the size limit.
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	return c.DecompressReader(bytes.NewReader(data))
}

// DecompressReader gunzips everything readable from r.
func (c *Compressor) DecompressReader(r io.Reader) ([]byte, error) {
	reader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer reader.Close()

	var src io.Reader = reader
	if c.maxSize > 0 {
		src = io.LimitReader(reader, c.maxSize+1)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, src); err != nil {
		return nil, fmt.Errorf("failed to read compressed data: %w", err)
	}
	if c.maxSize > 0 && int64(buf.Len()) > c.maxSize {
		return nil, ErrTooLarge
	}

	return buf.Bytes(), nil
}

// IsGzipEncoded reports whether a Content-Encoding header value names gzip.
func IsGzipEncoded(contentEncoding string) bool {
	for _, coding := range strings.Split(contentEncoding, ",") {
		coding = strings.ToLower(strings.TrimSpace(coding))
		if coding == EncodingGzip || coding == "x-gzip" {
			return true
		}
	}
	return false
}

// AcceptsGzip reports whether an Accept-Encoding header value allows a gzip
// response. A coding with q=0 is refused.
func AcceptsGzip(acceptEncoding string) bool {
	for _, entry := range strings.Split(acceptEncoding, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(entry), ";")
		coding = strings.ToLower(strings.TrimSpace(coding))
		if coding != EncodingGzip && coding != "x-gzip" && coding != "*" {
			continue
		}
		if qualityOf(params) > 0 {
			return true
		}
	}
	return false
}

func qualityOf(params string) float64 {
	for _, p := range strings.Split(params, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || strings.TrimSpace(key) != "q" {
			continue
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0
		}
		return q
	}
	return 1
}

// ShouldCompress reports whether a response body is worth compressing.
func ShouldCompress(contentType string, size int) bool {
	if size < DefaultMinSize {
		return false
	}

	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	// already compressed
	switch mediaType {
	case "application/gzip", "application/zip", "application/x-gzip":
		return false
	}
	return true
}
