package compression

import (
	"bytes"
	"testing"
)

func TestGzipRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("AAAABBBB"), 512)

	c := NewGzipCompressor()
	packed, err := c.Compress(data)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if len(packed) >= len(data) {
		t.Errorf("Repetitive data did not shrink: %d -> %d", len(data), len(packed))
	}

	unpacked, err := c.Decompress(packed)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if !bytes.Equal(data, unpacked) {
		t.Fatal("Round trip mismatch")
	}
}

func TestGzipRejectsGarbage(t *testing.T) {
	if _, err := NewGzipCompressor().Decompress([]byte("not gzip")); err == nil {
		t.Fatal("Expected an error for non-gzip data")
	}
}

func TestFor(t *testing.T) {
	if _, ok := For(true).(*GzipCompressor); !ok {
		t.Error("For(true) should return gzip")
	}
	if _, ok := For(false).(NopCompressor); !ok {
		t.Error("For(false) should return the nop compressor")
	}
}
