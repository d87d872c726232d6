package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Beastly713/mutafuzz/pkg/input"
	"github.com/Beastly713/mutafuzz/pkg/pipeline"
	"github.com/Beastly713/mutafuzz/pkg/testcase"
)

// OnDiskOptions configures an OnDisk corpus.
type OnDiskOptions struct {
	// Compress gzips testcase bodies.
	Compress bool
	// KeepInMemory keeps inputs loaded after they are written.
	// When false, inputs are evicted and reloaded from disk on demand.
	KeepInMemory bool
	// Instance is recorded in each file header.
	Instance string
	// WriteInputs also stores each bare input as <id>.input for replay.
	WriteInputs bool
}

// OnDisk stores each testcase as a file in a directory.
type OnDisk[I any] struct {
	mu      sync.RWMutex
	dir     string
	codec   input.Codec[I]
	opts    OnDiskOptions
	entries []*testcase.Testcase[I]
	ids     map[string]struct{}
}

// NewOnDisk creates the corpus directory if needed and picks up testcase
// files already in it, lazily.
func NewOnDisk[I any](dir string, codec input.Codec[I], opts OnDiskOptions) (*OnDisk[I], error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create corpus directory: %w", err)
	}
	c := &OnDisk[I]{
		dir:   dir,
		codec: codec,
		opts:  opts,
		ids:   make(map[string]struct{}),
	}
	if err := c.scan(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *OnDisk[I]) scan() error {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("failed to read corpus directory: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	for _, f := range files {
		if f.IsDir() || !pipeline.IsTestcaseFile(f.Name()) {
			continue
		}
		path := filepath.Join(c.dir, f.Name())
		_, header, err := pipeline.ReadFile(path, c.codec)
		if err != nil {
			// Foreign or damaged files are not ours to delete.
			continue
		}
		tc := testcase.NewLazy(header.ID, pipeline.FileLoader(path, c.codec), pipeline.MetadataFrom(header, path))
		c.entries = append(c.entries, tc)
		c.ids[header.ID] = struct{}{}
	}
	return nil
}

func (c *OnDisk[I]) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Add writes tc to disk and attaches the file as its backing storage.
func (c *OnDisk[I]) Add(tc *testcase.Testcase[I]) (int, error) {
	if tc == nil {
		return -1, errors.New("cannot add nil testcase")
	}
	path := filepath.Join(c.dir, tc.ID()+pipeline.Ext)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.ids[tc.ID()]; dup {
		return -1, fmt.Errorf("testcase %s already in corpus", tc.ID())
	}

	err := pipeline.WriteFile(path, c.codec, tc, c.opts.Instance, pipeline.PersistConfig{Compress: c.opts.Compress})
	if err != nil {
		return -1, fmt.Errorf("failed to store testcase %s: %w", tc.ID(), err)
	}
	if c.opts.WriteInputs {
		raw := filepath.Join(c.dir, tc.ID()+pipeline.InputExt)
		if err := pipeline.WriteInput(raw, c.codec, tc); err != nil {
			return -1, fmt.Errorf("failed to store input of %s: %w", tc.ID(), err)
		}
	}
	tc.SetLoader(pipeline.FileLoader(path, c.codec))
	tc.UpdateMetadata(func(m *testcase.Metadata) { m.Filename = path })
	if !c.opts.KeepInMemory {
		tc.Unload()
	}

	c.entries = append(c.entries, tc)
	c.ids[tc.ID()] = struct{}{}
	return len(c.entries) - 1, nil
}

func (c *OnDisk[I]) Get(idx int) (*testcase.Testcase[I], error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return entryAt(c.entries, idx)
}
