package events

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Beastly713/mutafuzz/pkg/input"
	"github.com/Beastly713/mutafuzz/pkg/pipeline"
	"github.com/Beastly713/mutafuzz/pkg/testcase"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// SyncDir shares new testcases with other processes through a directory.
// Each instance writes <instance>-<id>.testcase files and watches for the
// files of the others.
type SyncDir[I any] struct {
	dir      string
	instance string
	codec    input.Codec[I]
	compress bool
	logger   *zap.Logger
}

func NewSyncDir[I any](dir, instance string, codec input.Codec[I], compress bool, logger *zap.Logger) (*SyncDir[I], error) {
	if instance == "" {
		return nil, fmt.Errorf("sync directory needs an instance name")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sync directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncDir[I]{dir: dir, instance: instance, codec: codec, compress: compress, logger: logger}, nil
}

// Fire publishes NewTestcase events; everything else stays local.
func (s *SyncDir[I]) Fire(ev Event) error {
	e, ok := ev.(*NewTestcase[I])
	if !ok || e.Testcase == nil {
		return nil
	}
	name := fmt.Sprintf("%s-%s%s", s.instance, e.Testcase.ID(), pipeline.Ext)
	path := filepath.Join(s.dir, name)
	if err := pipeline.WriteFile(path, s.codec, e.Testcase, s.instance, pipeline.PersistConfig{Compress: s.compress}); err != nil {
		return fmt.Errorf("failed to publish testcase %s: %w", e.Testcase.ID(), err)
	}
	return nil
}

// Watch starts importing files written by other instances. Files already in
// the directory are queued first.
func (s *SyncDir[I]) Watch() (*Watcher[I], error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(s.dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", s.dir, err)
	}

	w := &Watcher[I]{
		sync: s,
		fsw:  fsw,
		seen: make(map[string]struct{}),
		done: make(chan struct{}),
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to read sync directory: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.consider(filepath.Join(s.dir, e.Name()))
		}
	}

	go w.run()
	return w, nil
}

// Watcher collects testcases published by other instances. It implements
// Source; events are only handed out from Drain, on the caller's goroutine.
type Watcher[I any] struct {
	sync *SyncDir[I]
	fsw  *fsnotify.Watcher
	done chan struct{}

	mu      sync.Mutex
	seen    map[string]struct{}
	pending []Event
}

func (w *Watcher[I]) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				w.consider(ev.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.sync.logger.Warn("sync watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher[I]) consider(path string) {
	if !pipeline.IsTestcaseFile(path) {
		return
	}
	w.mu.Lock()
	if _, dup := w.seen[path]; dup {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	_, header, err := pipeline.ReadFile(path, w.sync.codec)
	if err != nil {
		w.sync.logger.Debug("skipping sync file", zap.String("path", path), zap.Error(err))
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.seen[path] = struct{}{}
	if header.Instance == w.sync.instance {
		return
	}
	tc := testcase.NewLazy(header.ID, pipeline.FileLoader(path, w.sync.codec), pipeline.MetadataFrom(header, path))
	w.pending = append(w.pending, &NewTestcase[I]{Testcase: tc, Instance: header.Instance})
}

func (w *Watcher[I]) Drain(fn func(ev Event) error) (int, error) {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	for i, ev := range batch {
		if err := fn(ev); err != nil {
			w.mu.Lock()
			w.pending = append(batch[i+1:], w.pending...)
			w.mu.Unlock()
			return i + 1, err
		}
	}
	return len(batch), nil
}

// Close stops the watcher goroutine.
func (w *Watcher[I]) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}
