// Package testcase implements the shared corpus entry handle.
//
// A *Testcase is held at the same time by a corpus, the state and a running
// stage. All access goes through an RW lock: many readers, one writer. Stages
// only ever read through the handle and mutate a clone of the input.
package testcase

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNoInput is returned when an unloaded testcase has no way to reload its input.
var ErrNoInput = errors.New("testcase has no input and no loader")

// LoadFunc materializes an input from its backing storage.
type LoadFunc[I any] func() (I, error)

// Metadata describes where a testcase came from.
type Metadata struct {
	ParentID   string
	Depth      int
	Executions uint64
	FoundAt    time.Time
	ExitKind   string
	Filename   string
}

// Testcase wraps exactly one input, possibly not yet loaded.
type Testcase[I any] struct {
	mu     sync.RWMutex
	id     string
	input  I
	loaded bool
	load   LoadFunc[I]
	meta   Metadata
}

// New creates a testcase holding in.
func New[I any](in I) *Testcase[I] {
	return &Testcase[I]{
		id:     uuid.NewString(),
		input:  in,
		loaded: true,
		meta:   Metadata{FoundAt: time.Now()},
	}
}

// NewLazy creates a testcase whose input is read on first use.
func NewLazy[I any](id string, load LoadFunc[I], meta Metadata) *Testcase[I] {
	if id == "" {
		id = uuid.NewString()
	}
	return &Testcase[I]{
		id:   id,
		load: load,
		meta: meta,
	}
}

func (t *Testcase[I]) ID() string {
	return t.id
}

// LoadInput returns the input, loading it if needed.
// The returned value is shared; clone it before modifying.
func (t *Testcase[I]) LoadInput() (I, error) {
	t.mu.RLock()
	if t.loaded {
		in := t.input
		t.mu.RUnlock()
		return in, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.loaded {
		return t.input, nil
	}

	var zero I
	if t.load == nil {
		return zero, fmt.Errorf("testcase %s: %w", t.id, ErrNoInput)
	}
	in, err := t.load()
	if err != nil {
		return zero, fmt.Errorf("testcase %s: %w", t.id, err)
	}
	t.input = in
	t.loaded = true
	return in, nil
}

// SetLoader attaches backing storage. Corpora call it once they persisted the entry.
func (t *Testcase[I]) SetLoader(load LoadFunc[I]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.load = load
}

// Unload drops the in-memory input. It is a no-op without a loader,
// since the input could never come back.
func (t *Testcase[I]) Unload() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.load == nil || !t.loaded {
		return false
	}
	var zero I
	t.input = zero
	t.loaded = false
	return true
}

func (t *Testcase[I]) Loaded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loaded
}

// Metadata returns a copy of the metadata.
func (t *Testcase[I]) Metadata() Metadata {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.meta
}

// UpdateMetadata applies fn under the write lock.
func (t *Testcase[I]) UpdateMetadata(fn func(*Metadata)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.meta)
}
