// Package corpus holds the pool of interesting testcases.
//
// A corpus hands out shared *testcase.Testcase handles. It promises nothing
// about iteration order; schedulers pick entries by index.
package corpus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Beastly713/mutafuzz/pkg/testcase"
)

var (
	// ErrOutOfRange is returned by Get for an index past Count.
	ErrOutOfRange = errors.New("corpus index out of range")

	// ErrEmpty is returned when an entry is requested from an empty corpus.
	ErrEmpty = errors.New("corpus is empty")
)

// Corpus is the mutable pool of testcases.
type Corpus[I any] interface {
	Count() int
	Add(tc *testcase.Testcase[I]) (int, error)
	Get(idx int) (*testcase.Testcase[I], error)
}

// Memory keeps every testcase in memory.
type Memory[I any] struct {
	mu      sync.RWMutex
	entries []*testcase.Testcase[I]
}

func NewMemory[I any]() *Memory[I] {
	return &Memory[I]{}
}

func (c *Memory[I]) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Memory[I]) Add(tc *testcase.Testcase[I]) (int, error) {
	if tc == nil {
		return -1, errors.New("cannot add nil testcase")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, tc)
	return len(c.entries) - 1, nil
}

func (c *Memory[I]) Get(idx int) (*testcase.Testcase[I], error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return entryAt(c.entries, idx)
}

func entryAt[I any](entries []*testcase.Testcase[I], idx int) (*testcase.Testcase[I], error) {
	if idx < 0 || idx >= len(entries) {
		return nil, fmt.Errorf("%w: %d (count %d)", ErrOutOfRange, idx, len(entries))
	}
	return entries[idx], nil
}
