// Package stage runs units of fuzzing work against one base testcase.
//
// A mutational stage clones the base input, mutates the clone, hands it to
// the state for evaluation, tells the mutator the verdict and announces any
// new testcase. Iterations run strictly in order and the first error ends the
// run. Testcases the state already admitted stay admitted.
package stage

import (
	"github.com/Beastly713/mutafuzz/pkg/events"
	"github.com/Beastly713/mutafuzz/pkg/fuzzerr"
	"github.com/Beastly713/mutafuzz/pkg/input"
	"github.com/Beastly713/mutafuzz/pkg/mutator"
	"github.com/Beastly713/mutafuzz/pkg/rng"
	"github.com/Beastly713/mutafuzz/pkg/state"
	"github.com/Beastly713/mutafuzz/pkg/testcase"
)

// MaxIterations is the upper bound of DefaultIterations.
const MaxIterations = 128

// Stage performs work on one base testcase. The testcase handle is only read.
type Stage[I input.Input[I]] interface {
	Perform(r rng.Rand, st state.State[I], em events.Manager, tc *testcase.Testcase[I]) error
}

// MutationalStage is a Stage built from a mutator and an iteration policy.
// Implementations usually delegate Perform to PerformMutational.
type MutationalStage[I input.Input[I]] interface {
	Stage[I]
	Mutator() mutator.Mutator[I]
	// Iterations is called once per Perform and must return at least 1.
	Iterations(r rng.Rand) int
}

// DefaultIterations returns a fresh value in [1, MaxIterations] on every call.
func DefaultIterations(r rng.Rand) int {
	return 1 + int(r.Below(MaxIterations))
}

// PerformMutational runs s.Iterations(r) mutate/evaluate cycles over clones
// of tc's input. A NewTestcase event is fired exactly when the state returns
// a testcase, whatever the verdict.
func PerformMutational[I input.Input[I]](s MutationalStage[I], r rng.Rand, st state.State[I], em events.Manager, tc *testcase.Testcase[I]) error {
	num := s.Iterations(r)
	for i := 0; i < num; i++ {
		// 1. Private copy of the base input
		base, err := tc.LoadInput()
		if err != nil {
			return fuzzerr.Wrap(fuzzerr.ErrInputLoad, i, err)
		}
		in := base.Clone()

		// 2. Mutate
		if err := s.Mutator().Mutate(r, st.Corpus(), in, i); err != nil {
			return fuzzerr.Wrap(fuzzerr.ErrMutator, i, err)
		}

		// 3. Execute and judge; the state admits interesting inputs itself
		interesting, newTC, err := st.EvaluateInput(in)
		if err != nil {
			return fuzzerr.Wrap(fuzzerr.ErrEvaluation, i, err)
		}

		// 4. Report the verdict, admitted or not
		if err := s.Mutator().PostExec(interesting, newTC, i); err != nil {
			return fuzzerr.Wrap(fuzzerr.ErrMutator, i, err)
		}

		// 5. Announce
		if newTC == nil {
			continue
		}
		ev := &events.NewTestcase[I]{Testcase: newTC, CorpusSize: st.Corpus().Count()}
		if err := em.Fire(ev); err != nil {
			return fuzzerr.Wrap(fuzzerr.ErrEventPublish, i, err)
		}
	}
	return nil
}

// StdMutationalStage owns one mutator and uses DefaultIterations.
type StdMutationalStage[I input.Input[I]] struct {
	mutator mutator.Mutator[I]
}

func NewStdMutationalStage[I input.Input[I]](m mutator.Mutator[I]) *StdMutationalStage[I] {
	return &StdMutationalStage[I]{mutator: m}
}

func (s *StdMutationalStage[I]) Mutator() mutator.Mutator[I] {
	return s.mutator
}

func (s *StdMutationalStage[I]) Iterations(r rng.Rand) int {
	return DefaultIterations(r)
}

func (s *StdMutationalStage[I]) Perform(r rng.Rand, st state.State[I], em events.Manager, tc *testcase.Testcase[I]) error {
	return PerformMutational[I](s, r, st, em, tc)
}
