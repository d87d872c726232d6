// Package monitor aggregates progress across fuzzing instances.
package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Beastly713/mutafuzz/pkg/events"
	"go.uber.org/zap"
)

// Instance is the last reported progress of one instance.
type Instance struct {
	Name       string
	Executions uint64
	CorpusSize int
	Solutions  int
	Updated    time.Time
}

// Snapshot is a point-in-time view of the whole campaign.
type Snapshot struct {
	Instances   []Instance
	Executions  uint64
	CorpusSize  int
	Solutions   int
	Finds       int
	Objectives  int
	Elapsed     time.Duration
	ExecsPerSec float64
	LastFind    time.Time
}

// Monitor is an events.Manager that keeps counters instead of publishing.
// It is safe to share between instances.
type Monitor struct {
	mu         sync.Mutex
	start      time.Time
	now        func() time.Time
	instances  map[string]*Instance
	finds      int
	objectives int
	lastFind   time.Time
	logger     *zap.Logger
}

func New(logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Monitor{now: time.Now, instances: make(map[string]*Instance), logger: logger}
	m.start = m.now()
	return m
}

func (m *Monitor) Fire(ev events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Kind() {
	case events.KindStats:
		s := ev.(*events.Stats)
		inst, ok := m.instances[s.Instance]
		if !ok {
			inst = &Instance{Name: s.Instance}
			m.instances[s.Instance] = inst
		}
		inst.Executions = s.Executions
		inst.CorpusSize = s.CorpusSize
		inst.Solutions = s.Solutions
		inst.Updated = s.Time
	case events.KindNewTestcase:
		m.finds++
		m.lastFind = m.now()
	case events.KindObjective:
		m.objectives++
	}
	return nil
}

func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Finds:      m.finds,
		Objectives: m.objectives,
		Elapsed:    m.now().Sub(m.start),
		LastFind:   m.lastFind,
	}
	for _, inst := range m.instances {
		snap.Instances = append(snap.Instances, *inst)
		snap.Executions += inst.Executions
		snap.CorpusSize += inst.CorpusSize
		snap.Solutions += inst.Solutions
	}
	sort.Slice(snap.Instances, func(i, j int) bool { return snap.Instances[i].Name < snap.Instances[j].Name })
	if secs := snap.Elapsed.Seconds(); secs > 0 {
		snap.ExecsPerSec = float64(snap.Executions) / secs
	}
	return snap
}

// Run logs a snapshot every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := m.Snapshot()
			m.logger.Info("campaign",
				zap.Int("instances", len(s.Instances)),
				zap.Uint64("execs", s.Executions),
				zap.Float64("execs_per_sec", s.ExecsPerSec),
				zap.Int("corpus", s.CorpusSize),
				zap.Int("solutions", s.Solutions),
				zap.Duration("elapsed", s.Elapsed))
		}
	}
}
