package format

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// maxPreambleLines bounds the header scan so garbage files fail fast.
const maxPreambleLines = 50

// Reader separates the metadata header from the input body.
type Reader struct {
	Header *Header
	Body   io.Reader
}

// NewReader parses a testcase stream.
// It consumes the text header and returns a Reader whose Body is positioned
// at the first byte of the input.
func NewReader(r io.Reader) (*Reader, error) {
	bufReader := bufio.NewReader(r)

	// 1. Scan for the Header Marker
	foundHeader := false
	for i := 0; i < maxPreambleLines; i++ {
		line, err := bufReader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to read stream while looking for header: %w", err)
		}
		if strings.TrimSpace(line) == HeaderMarker {
			foundHeader = true
			break
		}
	}

	if !foundHeader {
		return nil, fmt.Errorf("%w: could not find %q marker", ErrNotTestcase, HeaderMarker)
	}

	// 2. Read the JSON content until the Body Marker
	var jsonBuilder bytes.Buffer
	for {
		line, err := bufReader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("%w: could not find %q marker: %w", ErrNotTestcase, BodyMarker, err)
		}
		if strings.TrimSpace(line) == BodyMarker {
			break
		}
		jsonBuilder.WriteString(line)
	}

	// 3. Unmarshal the Header
	header := &Header{}
	if err := json.Unmarshal(jsonBuilder.Bytes(), header); err != nil {
		return nil, fmt.Errorf("failed to parse header json: %w", err)
	}

	// 4. Validate the parsed header
	if err := header.Validate(); err != nil {
		return nil, fmt.Errorf("header validation failed: %w", err)
	}

	return &Reader{
		Header: header,
		Body:   bufReader,
	}, nil
}
