// Package fuzzer drives stages over a corpus until a budget or context ends.
package fuzzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Beastly713/mutafuzz/pkg/corpus"
	"github.com/Beastly713/mutafuzz/pkg/events"
	"github.com/Beastly713/mutafuzz/pkg/fuzzerr"
	"github.com/Beastly713/mutafuzz/pkg/input"
	"github.com/Beastly713/mutafuzz/pkg/rng"
	"github.com/Beastly713/mutafuzz/pkg/stage"
	"github.com/Beastly713/mutafuzz/pkg/state"
	"github.com/Beastly713/mutafuzz/pkg/testcase"
	"go.uber.org/zap"
)

// State is the state a fuzzer drives: evaluation plus lineage and counters.
type State[I any] interface {
	state.State[I]
	SetCurrent(tc *testcase.Testcase[I])
	Executions() uint64
	SolutionCount() uint64
}

// Options configures a Fuzzer.
type Options struct {
	Instance string
	// StageRuns stops Loop after this many FuzzOne calls. 0 means no limit.
	StageRuns uint64
	// StatsInterval is how often Loop fires a Stats event.
	StatsInterval time.Duration
	Logger        *zap.Logger
}

// Fuzzer runs its stages, in order, on one scheduled testcase at a time.
type Fuzzer[I input.Input[I]] struct {
	stages    []stage.Stage[I]
	scheduler corpus.Scheduler[I]
	opts      Options
	runs      uint64
	imported  uint64
	lastStats time.Time
}

func New[I input.Input[I]](scheduler corpus.Scheduler[I], opts Options, stages ...stage.Stage[I]) *Fuzzer[I] {
	if scheduler == nil {
		scheduler = corpus.RandomScheduler[I]{}
	}
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	opts.Logger = opts.Logger.With(zap.String("instance", opts.Instance))
	return &Fuzzer[I]{stages: stages, scheduler: scheduler, opts: opts}
}

// Runs returns how many FuzzOne calls completed.
func (f *Fuzzer[I]) Runs() uint64 {
	return f.runs
}

// Imported returns how many peer testcases were evaluated.
func (f *Fuzzer[I]) Imported() uint64 {
	return f.imported
}

// FuzzOne schedules a base testcase and runs every stage on it.
func (f *Fuzzer[I]) FuzzOne(r rng.Rand, st State[I], em events.Manager) error {
	idx, err := f.scheduler.Next(r, st.Corpus())
	if err != nil {
		return fmt.Errorf("failed to schedule testcase: %w", err)
	}
	tc, err := st.Corpus().Get(idx)
	if err != nil {
		return fmt.Errorf("failed to get testcase %d: %w", idx, err)
	}

	st.SetCurrent(tc)
	for i, s := range f.stages {
		if err := s.Perform(r, st, em, tc); err != nil {
			return fmt.Errorf("stage %d on testcase %s: %w", i, tc.ID(), err)
		}
	}
	f.runs++
	return nil
}

// Loop calls FuzzOne until ctx is done or the StageRuns budget is spent.
// Between runs it evaluates testcases from src, if any, and fires Stats.
// A base testcase that can no longer be loaded, or a peer whose inbox is
// full, is logged and skipped; any other error ends the loop.
func (f *Fuzzer[I]) Loop(ctx context.Context, r rng.Rand, st State[I], em events.Manager, src events.Source) error {
	f.lastStats = time.Now()
	defer f.fireStats(st, em)

	for {
		if ctx.Err() != nil {
			f.opts.Logger.Info("fuzzing stopped", zap.Uint64("runs", f.runs))
			return nil
		}
		if f.opts.StageRuns > 0 && f.runs >= f.opts.StageRuns {
			f.opts.Logger.Info("stage budget spent", zap.Uint64("runs", f.runs))
			return nil
		}

		if src != nil {
			if err := f.importPeers(st, src); err != nil {
				return err
			}
		}

		err := f.FuzzOne(r, st, em)
		switch {
		case err == nil:
		case errors.Is(err, fuzzerr.ErrInputLoad), errors.Is(err, events.ErrBacklog):
			f.opts.Logger.Warn("skipping failed stage run", zap.Error(err))
			f.runs++
		default:
			return err
		}

		if time.Since(f.lastStats) >= f.opts.StatsInterval {
			if err := f.fireStats(st, em); err != nil {
				return err
			}
		}
	}
}

// importPeers evaluates new testcases found by other instances. Imports are
// copies, so they start a new lineage here. Inputs the state admits are not
// announced again.
func (f *Fuzzer[I]) importPeers(st State[I], src events.Source) error {
	n, err := src.Drain(func(ev events.Event) error {
		ntc, ok := ev.(*events.NewTestcase[I])
		if !ok || ntc.Testcase == nil {
			return nil
		}
		in, err := ntc.Testcase.LoadInput()
		if err != nil {
			f.opts.Logger.Warn("failed to load peer testcase",
				zap.String("peer", ntc.Instance),
				zap.String("testcase", ntc.Testcase.ID()),
				zap.Error(err))
			return nil
		}
		st.SetCurrent(nil)
		if _, _, err := st.EvaluateInput(in.Clone()); err != nil {
			return fmt.Errorf("failed to evaluate peer testcase %s: %w", ntc.Testcase.ID(), err)
		}
		f.imported++
		return nil
	})
	if n > 0 {
		f.opts.Logger.Debug("drained peer events", zap.Int("events", n))
	}
	return err
}

func (f *Fuzzer[I]) fireStats(st State[I], em events.Manager) error {
	f.lastStats = time.Now()
	err := em.Fire(&events.Stats{
		Instance:   f.opts.Instance,
		Executions: st.Executions(),
		CorpusSize: st.Corpus().Count(),
		Solutions:  int(st.SolutionCount()),
		Time:       f.lastStats,
	})
	if err != nil && !errors.Is(err, events.ErrBacklog) {
		return fmt.Errorf("failed to publish stats: %w", err)
	}
	return nil
}
