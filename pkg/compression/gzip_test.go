package compression

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressor_CompressDecompress(t *testing.T) {
	compressor := NewCompressor(0)

	doc := []byte(`<Document xmlns="urn:iso:std:iso:20022:tech:xsd:pacs.008.001.08"><FIToFICstmrCdtTrf/></Document>`)
	testData := bytes.Repeat(doc, 20)

	compressed, err := compressor.Compress(testData)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(testData))

	decompressed, err := compressor.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, testData, decompressed)
}

func TestCompressor_EmptyData(t *testing.T) {
	compressor := NewCompressor(0)

	compressed, err := compressor.Compress([]byte{})
	require.NoError(t, err)
	assert.NotEmpty(t, compressed) // header only

	decompressed, err := compressor.Decompress(compressed)
	require.NoError(t, err)
	assert.Empty(t, decompressed)
}

func TestCompressor_SizeLimit(t *testing.T) {
	data := bytes.Repeat([]byte("a"), 4096)
	compressed, err := NewCompressor(0).Compress(data)
	require.NoError(t, err)

	_, err = NewCompressor(4095).Decompress(compressed)
	assert.ErrorIs(t, err, ErrTooLarge)

	out, err := NewCompressor(4096).Decompress(compressed)
	require.NoError(t, err)
	assert.Len(t, out, 4096)
}

func TestCompressor_InvalidData(t *testing.T) {
	_, err := NewCompressor(0).Decompress([]byte("<Document/>"))
	assert.Error(t, err)
}

func TestCompressor_Levels(t *testing.T) {
	data := bytes.Repeat([]byte("test data "), 10000)

	for _, level := range []int{1, 5, 9} {
		c := NewCompressorWithLevel(level, 0)
		compressed, err := c.Compress(data)
		require.NoError(t, err, "level %d", level)

		out, err := c.Decompress(compressed)
		require.NoError(t, err)
		assert.Equal(t, data, out)
	}

	_, err := NewCompressorWithLevel(42, 0).Compress(data)
	assert.Error(t, err)
}

func TestIsGzipEncoded(t *testing.T) {
	tests := []struct {
		header string
		want   bool
	}{
		{"gzip", true},
		{"GZIP", true},
		{"x-gzip", true},
		{"identity, gzip", true},
		{"", false},
		{"deflate", false},
		{"br", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsGzipEncoded(tt.header), tt.header)
	}
}

func TestAcceptsGzip(t *testing.T) {
	tests := []struct {
		header string
		want   bool
	}{
		{"gzip", true},
		{"gzip, deflate, br", true},
		{"deflate;q=1.0, gzip;q=0.5", true},
		{"*", true},
		{"gzip;q=0", false},
		{"gzip; q=0.0", false},
		{"gzip;q=abc", false},
		{"deflate", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AcceptsGzip(tt.header), tt.header)
	}
}

func TestShouldCompress(t *testing.T) {
	tests := []struct {
		contentType string
		size        int
		want        bool
	}{
		{"application/xml", 4096, true},
		{"application/json; charset=utf-8", 4096, true},
		{"application/xml", 100, false},
		{"application/gzip", 4096, false},
		{"application/zip", 4096, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShouldCompress(tt.contentType, tt.size), tt.contentType)
	}
}
