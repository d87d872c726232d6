// Package feedback decides whether an executed input is worth keeping.
package feedback

import (
	"github.com/Beastly713/mutafuzz/pkg/coverage"
	"github.com/Beastly713/mutafuzz/pkg/executor"
)

// Feedback judges one execution. It may update internal history, so it must
// be called exactly once per execution.
type Feedback[I any] interface {
	IsInteresting(in I, exit executor.ExitKind) (bool, error)
}

// Func adapts a plain function.
type Func[I any] func(in I, exit executor.ExitKind) (bool, error)

func (f Func[I]) IsInteresting(in I, exit executor.ExitKind) (bool, error) {
	return f(in, exit)
}

// MaxMap reports inputs that push any edge into a higher hit-count bucket
// than ever seen before.
type MaxMap[I any] struct {
	cov     *coverage.Map
	history []uint8
	edges   int
}

func NewMaxMap[I any](cov *coverage.Map) *MaxMap[I] {
	return &MaxMap[I]{cov: cov, history: make([]uint8, cov.Len())}
}

func (f *MaxMap[I]) IsInteresting(_ I, _ executor.ExitKind) (bool, error) {
	novel := false
	for i, h := range f.cov.Hits() {
		if h == 0 {
			continue
		}
		b := coverage.Bucket(h)
		if b > f.history[i] {
			if f.history[i] == 0 {
				f.edges++
			}
			f.history[i] = b
			novel = true
		}
	}
	return novel, nil
}

// Edges returns the number of distinct edges ever seen.
func (f *MaxMap[I]) Edges() int {
	return f.edges
}

// ExitIs is an objective feedback matching one exit kind.
type ExitIs[I any] struct {
	Kind executor.ExitKind
}

func (f ExitIs[I]) IsInteresting(_ I, exit executor.ExitKind) (bool, error) {
	return exit == f.Kind, nil
}

// NewCrash returns an objective for crashing inputs.
func NewCrash[I any]() ExitIs[I] {
	return ExitIs[I]{Kind: executor.Crash}
}

// NewTimeout returns an objective for hanging inputs.
func NewTimeout[I any]() ExitIs[I] {
	return ExitIs[I]{Kind: executor.Timeout}
}

// Any is true when at least one member is. Every member is evaluated so that
// each keeps its history current.
type Any[I any] []Feedback[I]

func (fs Any[I]) IsInteresting(in I, exit executor.ExitKind) (bool, error) {
	interesting := false
	for _, f := range fs {
		ok, err := f.IsInteresting(in, exit)
		if err != nil {
			return false, err
		}
		interesting = interesting || ok
	}
	return interesting, nil
}
