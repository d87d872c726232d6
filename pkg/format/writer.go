package format

import (
	"encoding/json"
	"fmt"
	"io"
)

// Writer writes a single testcase file.
type Writer struct {
	w io.Writer
}

// NewWriter creates a new Writer around an io.Writer (usually an os.File).
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write serializes the header and body to the underlying writer.
// If raw is true only the body is written, so the file can be fed to the
// target as is.
func (tw *Writer) Write(header *Header, body []byte, raw bool) error {
	if !raw {
		// 1. Validate the header before writing anything
		if err := header.Validate(); err != nil {
			return fmt.Errorf("invalid header: %w", err)
		}

		// 2. Banner
		note := ""
		if header.Compressed {
			note = " (GZIP)"
		}
		banner := fmt.Sprintf(MagicHeader, header.ID, header.Depth, header.Instance, note)
		if _, err := fmt.Fprint(tw.w, banner); err != nil {
			return fmt.Errorf("failed to write magic header: %w", err)
		}

		// 3. Header Marker
		if _, err := fmt.Fprintln(tw.w, HeaderMarker); err != nil {
			return fmt.Errorf("failed to write header marker: %w", err)
		}

		// 4. Header JSON
		headerBytes, err := json.Marshal(header)
		if err != nil {
			return fmt.Errorf("failed to marshal header: %w", err)
		}
		if _, err := tw.w.Write(headerBytes); err != nil {
			return fmt.Errorf("failed to write json header: %w", err)
		}
		if _, err := fmt.Fprintln(tw.w); err != nil {
			return err
		}

		// 5. Body Marker
		if _, err := fmt.Fprintln(tw.w, BodyMarker); err != nil {
			return fmt.Errorf("failed to write body marker: %w", err)
		}
	}

	// 6. Body
	if _, err := tw.w.Write(body); err != nil {
		return fmt.Errorf("failed to write body: %w", err)
	}

	return nil
}
