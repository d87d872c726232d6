// Package state owns a fuzzing instance's corpus and decides which executed
// inputs are kept.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/Beastly713/mutafuzz/pkg/corpus"
	"github.com/Beastly713/mutafuzz/pkg/events"
	"github.com/Beastly713/mutafuzz/pkg/executor"
	"github.com/Beastly713/mutafuzz/pkg/feedback"
	"github.com/Beastly713/mutafuzz/pkg/input"
	"github.com/Beastly713/mutafuzz/pkg/pipeline"
	"github.com/Beastly713/mutafuzz/pkg/testcase"
	"go.uber.org/zap"
)

// State is what a stage needs: the corpus and a way to evaluate a candidate.
// EvaluateInput runs the input and, when it is interesting, inserts a new
// testcase into the corpus and returns it.
type State[I any] interface {
	Corpus() corpus.Corpus[I]
	EvaluateInput(in I) (bool, *testcase.Testcase[I], error)
}

// Options configures a Std state.
type Options[I any] struct {
	Executor executor.Executor[I]
	Feedback feedback.Feedback[I]
	// Objective marks inputs as solutions. Optional.
	Objective feedback.Feedback[I]
	Corpus    corpus.Corpus[I]
	// Solutions receives objective hits. Defaults to an in-memory corpus.
	Solutions corpus.Corpus[I]
	// Events receives Objective events. Optional.
	Events   events.Manager
	Instance string
	Logger   *zap.Logger
}

// Std is the standard State: execute, judge, admit.
type Std[I any] struct {
	opts       Options[I]
	current    *testcase.Testcase[I]
	executions atomic.Uint64
	solutions  atomic.Uint64
}

func New[I any](opts Options[I]) (*Std[I], error) {
	if opts.Executor == nil {
		return nil, errors.New("state needs an executor")
	}
	if opts.Feedback == nil {
		return nil, errors.New("state needs a feedback")
	}
	if opts.Corpus == nil {
		opts.Corpus = corpus.NewMemory[I]()
	}
	if opts.Solutions == nil {
		opts.Solutions = corpus.NewMemory[I]()
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Std[I]{opts: opts}, nil
}

func (s *Std[I]) Corpus() corpus.Corpus[I] {
	return s.opts.Corpus
}

// Solutions holds the inputs that hit the objective.
func (s *Std[I]) Solutions() corpus.Corpus[I] {
	return s.opts.Solutions
}

func (s *Std[I]) Executions() uint64 {
	return s.executions.Load()
}

func (s *Std[I]) SolutionCount() uint64 {
	return s.solutions.Load()
}

// SetCurrent records the base testcase new findings descend from.
func (s *Std[I]) SetCurrent(tc *testcase.Testcase[I]) {
	s.current = tc
}

func (s *Std[I]) Current() *testcase.Testcase[I] {
	return s.current
}

// EvaluateInput executes in, feeds the result to the feedbacks and admits it
// to the corpus when interesting. Objective hits go to the solutions corpus
// instead and are reported as not interesting.
func (s *Std[I]) EvaluateInput(in I) (bool, *testcase.Testcase[I], error) {
	exit, interesting, err := s.execute(in)
	if err != nil {
		return false, nil, err
	}

	if s.opts.Objective != nil {
		hit, err := s.opts.Objective.IsInteresting(in, exit)
		if err != nil {
			return false, nil, fmt.Errorf("objective failed: %w", err)
		}
		if hit {
			return false, nil, s.addSolution(in, exit)
		}
	}

	if !interesting {
		return false, nil, nil
	}
	tc, err := s.admit(in, exit)
	if err != nil {
		return false, nil, err
	}
	return true, tc, nil
}

// AddSeed executes in once so feedback history learns it, then admits it
// regardless of the verdict.
func (s *Std[I]) AddSeed(in I) (*testcase.Testcase[I], error) {
	exit, _, err := s.execute(in)
	if err != nil {
		return nil, err
	}
	return s.admit(in, exit)
}

// LoadSeeds adds every file in dir as a seed. Stored testcase files are
// restored through their header; any other file is decoded as a raw input.
func (s *Std[I]) LoadSeeds(dir string, codec input.Codec[I]) (int, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed directory: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	count := 0
	for _, f := range files {
		if f.IsDir() || f.Name()[0] == '.' {
			continue
		}
		path := filepath.Join(dir, f.Name())
		in, err := readSeed(path, codec)
		if err != nil {
			return count, fmt.Errorf("seed %s: %w", f.Name(), err)
		}
		if _, err := s.AddSeed(in); err != nil {
			return count, fmt.Errorf("seed %s: %w", f.Name(), err)
		}
		count++
	}
	s.opts.Logger.Info("seeds loaded", zap.String("dir", dir), zap.Int("count", count))
	return count, nil
}

func readSeed[I any](path string, codec input.Codec[I]) (I, error) {
	if pipeline.IsTestcaseFile(filepath.Base(path)) {
		in, _, err := pipeline.ReadFile(path, codec)
		return in, err
	}
	var zero I
	data, err := os.ReadFile(path)
	if err != nil {
		return zero, err
	}
	return codec.Decode(data)
}

func (s *Std[I]) execute(in I) (executor.ExitKind, bool, error) {
	exit, err := s.opts.Executor.Run(in)
	if err != nil {
		return exit, false, fmt.Errorf("failed to execute input: %w", err)
	}
	s.executions.Add(1)

	interesting, err := s.opts.Feedback.IsInteresting(in, exit)
	if err != nil {
		return exit, false, fmt.Errorf("feedback failed: %w", err)
	}
	return exit, interesting, nil
}

func (s *Std[I]) newTestcase(in I, exit executor.ExitKind) *testcase.Testcase[I] {
	tc := testcase.New(in)
	tc.UpdateMetadata(func(m *testcase.Metadata) {
		m.Executions = s.executions.Load()
		m.ExitKind = exit.String()
		if s.current != nil {
			parent := s.current.Metadata()
			m.ParentID = s.current.ID()
			m.Depth = parent.Depth + 1
		}
	})
	return tc
}

func (s *Std[I]) admit(in I, exit executor.ExitKind) (*testcase.Testcase[I], error) {
	tc := s.newTestcase(in, exit)
	if _, err := s.opts.Corpus.Add(tc); err != nil {
		return nil, fmt.Errorf("failed to add testcase to corpus: %w", err)
	}
	return tc, nil
}

func (s *Std[I]) addSolution(in I, exit executor.ExitKind) error {
	tc := s.newTestcase(in, exit)
	if _, err := s.opts.Solutions.Add(tc); err != nil {
		return fmt.Errorf("failed to add solution: %w", err)
	}
	s.solutions.Add(1)
	s.opts.Logger.Warn("objective hit",
		zap.String("testcase", tc.ID()),
		zap.String("exit", exit.String()),
		zap.Uint64("executions", s.executions.Load()))
	if err := s.opts.Events.Fire(&events.Objective[I]{Testcase: tc, ExitKind: exit.String(), Instance: s.opts.Instance}); err != nil {
		return fmt.Errorf("failed to publish objective: %w", err)
	}
	return nil
}
