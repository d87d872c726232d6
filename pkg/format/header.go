package format

import (
	"errors"
	"fmt"
)

// Markers used to delineate sections in a testcase file.
const (
	// MagicHeader is the human-readable banner at the top of the file.
	MagicHeader = `# THIS FILE IS A MUTAFUZZ TESTCASE.
# ID %s, DEPTH %d, FOUND BY %q.
# THE BODY BELOW IS THE RAW FUZZ INPUT%s.
`
	// HeaderMarker indicates the start of the JSON metadata
	HeaderMarker = "-- HEADER --"

	// BodyMarker indicates the start of the input bytes
	BodyMarker = "-- BODY --"
)

// ErrNotTestcase is returned when a stream carries no testcase header.
var ErrNotTestcase = errors.New("not a testcase file")

// Header contains the metadata stored next to a testcase input.
type Header struct {
	// ID is the testcase id, unique across instances.
	ID string `json:"id"`

	// ParentID is the id of the base testcase this one was mutated from.
	// Empty for seeds.
	ParentID string `json:"parentId,omitempty"`

	// Depth is the number of mutation generations from a seed.
	Depth int `json:"depth"`

	// Timestamp is the unix time the testcase was admitted.
	Timestamp int64 `json:"timestamp"`

	// Executions is how many times the target ran before this input was found.
	Executions uint64 `json:"executions"`

	// ExitKind is the target outcome that made the input interesting.
	ExitKind string `json:"exitKind,omitempty"`

	// Instance names the fuzzing instance that found the input.
	Instance string `json:"instance,omitempty"`

	// Compressed reports whether the body is gzip-compressed.
	Compressed bool `json:"compressed"`

	// Size is the length of the decoded input in bytes.
	Size int `json:"size"`
}

// Validate checks if the header contains sane values.
func (h *Header) Validate() error {
	if h.ID == "" {
		return errors.New("header is missing testcase id")
	}
	if h.Depth < 0 {
		return fmt.Errorf("invalid depth %d", h.Depth)
	}
	if h.Size < 0 {
		return fmt.Errorf("invalid size %d", h.Size)
	}
	if h.ParentID == h.ID {
		return fmt.Errorf("testcase %s lists itself as parent", h.ID)
	}
	return nil
}
