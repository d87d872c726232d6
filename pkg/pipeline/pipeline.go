package pipeline

import (
	"fmt"
	"io"

	"github.com/Beastly713/mutafuzz/pkg/compression"
	"github.com/Beastly713/mutafuzz/pkg/format"
	"github.com/Beastly713/mutafuzz/pkg/input"
)

// PersistConfig holds the parameters for storing a testcase.
type PersistConfig struct {
	Compress bool
	// Raw writes only the encoded input, without header or compression.
	Raw bool
}

// Persist orchestrates the flow: Encode -> Compress -> Frame.
// header.Size and header.Compressed are filled in from the input.
func Persist[I any](w io.Writer, codec input.Codec[I], in I, header format.Header, config PersistConfig) error {
	// 1. Encode
	body, err := codec.Encode(in)
	if err != nil {
		return fmt.Errorf("failed to encode input: %w", err)
	}
	header.Size = len(body)
	header.Compressed = config.Compress && !config.Raw

	// 2. Compress
	if header.Compressed {
		body, err = compression.NewGzipCompressor().Compress(body)
		if err != nil {
			return fmt.Errorf("compression failed: %w", err)
		}
	}

	// 3. Frame
	if err := format.NewWriter(w).Write(&header, body, config.Raw); err != nil {
		return fmt.Errorf("failed to write testcase: %w", err)
	}
	return nil
}

// Restore orchestrates the reverse: Unframe -> Decompress -> Decode.
func Restore[I any](r io.Reader, codec input.Codec[I]) (I, *format.Header, error) {
	var zero I

	// 1. Unframe
	reader, err := format.NewReader(r)
	if err != nil {
		return zero, nil, err
	}
	body, err := io.ReadAll(reader.Body)
	if err != nil {
		return zero, nil, fmt.Errorf("failed to read body: %w", err)
	}

	// 2. Decompress
	body, err = compression.For(reader.Header.Compressed).Decompress(body)
	if err != nil {
		return zero, nil, fmt.Errorf("decompression failed: %w", err)
	}
	if len(body) != reader.Header.Size {
		return zero, nil, fmt.Errorf("body size %d does not match header size %d", len(body), reader.Header.Size)
	}

	// 3. Decode
	in, err := codec.Decode(body)
	if err != nil {
		return zero, nil, fmt.Errorf("failed to decode input: %w", err)
	}
	return in, reader.Header, nil
}
