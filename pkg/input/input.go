// Package input defines the fuzz-target data unit.
package input

import (
	"bytes"
	"fmt"
)

// Input is the constraint every fuzz input satisfies: it can be duplicated so a
// corpus entry is never mutated in place.
type Input[I any] interface {
	Clone() I
}

// Codec turns inputs into bytes for storage and back.
type Codec[I any] interface {
	Encode(in I) ([]byte, error)
	Decode(data []byte) (I, error)
}

// Bytes is a plain byte-buffer input.
type Bytes struct {
	data []byte
}

// NewBytes wraps a copy of data.
func NewBytes(data []byte) *Bytes {
	return &Bytes{data: bytes.Clone(data)}
}

// Clone returns a deep copy.
func (b *Bytes) Clone() *Bytes {
	return NewBytes(b.data)
}

// Bytes returns the underlying buffer. Callers may modify it in place.
func (b *Bytes) Bytes() []byte {
	return b.data
}

// SetBytes replaces the buffer without copying.
func (b *Bytes) SetBytes(data []byte) {
	b.data = data
}

func (b *Bytes) Len() int {
	return len(b.data)
}

func (b *Bytes) String() string {
	return fmt.Sprintf("%q", b.data)
}

// BytesCodec stores Bytes inputs verbatim.
type BytesCodec struct{}

func (BytesCodec) Encode(in *Bytes) ([]byte, error) {
	if in == nil {
		return nil, fmt.Errorf("cannot encode nil input")
	}
	return bytes.Clone(in.data), nil
}

func (BytesCodec) Decode(data []byte) (*Bytes, error) {
	return NewBytes(data), nil
}
