package compression

import (
	"bytes"
	"compress/gzip"
	"io"
)

// Compressor defines the contract for testcase body compression.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// GzipCompressor implements standard gzip compression.
type GzipCompressor struct {
	level int
}

// NewGzipCompressor uses BestSpeed: corpus writes sit on the fuzzing hot path.
func NewGzipCompressor() *GzipCompressor {
	return &GzipCompressor{level: gzip.BestSpeed}
}

func (g *GzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, g.level)
	if err != nil {
		return nil, err
	}

	if _, err := writer.Write(data); err != nil {
		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (g *GzipCompressor) Decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

// NopCompressor stores bodies unchanged.
type NopCompressor struct{}

func (NopCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

func (NopCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}

// For picks the compressor matching a header's Compressed flag.
func For(compressed bool) Compressor {
	if compressed {
		return NewGzipCompressor()
	}
	return NopCompressor{}
}
