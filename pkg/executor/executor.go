// Package executor runs a single input against the target.
package executor

import (
	"fmt"

	"github.com/Beastly713/mutafuzz/pkg/coverage"
	"go.uber.org/zap"
)

// ExitKind is the raw outcome of one execution.
type ExitKind int

const (
	Ok ExitKind = iota
	Crash
	Timeout
)

func (k ExitKind) String() string {
	switch k {
	case Ok:
		return "ok"
	case Crash:
		return "crash"
	case Timeout:
		return "timeout"
	default:
		return fmt.Sprintf("exit(%d)", int(k))
	}
}

// Executor runs one input. An error means the executor itself broke, not that
// the target crashed.
type Executor[I any] interface {
	Run(in I) (ExitKind, error)
}

// Harness is an in-process target. It reports edges into cov.
type Harness[I any] func(in I, cov *coverage.Map) ExitKind

// InProcess calls a harness in the current goroutine and turns panics into
// crashes.
type InProcess[I any] struct {
	harness Harness[I]
	cov     *coverage.Map
	logger  *zap.Logger
	runs    uint64
}

func NewInProcess[I any](harness Harness[I], cov *coverage.Map, logger *zap.Logger) *InProcess[I] {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cov == nil {
		cov = coverage.NewMap(0)
	}
	return &InProcess[I]{harness: harness, cov: cov, logger: logger}
}

// Coverage returns the map the harness writes to.
func (e *InProcess[I]) Coverage() *coverage.Map {
	return e.cov
}

func (e *InProcess[I]) Runs() uint64 {
	return e.runs
}

func (e *InProcess[I]) Run(in I) (kind ExitKind, err error) {
	e.runs++
	e.cov.Reset()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("harness panicked", zap.Any("panic", r), zap.Uint64("run", e.runs))
			kind = Crash
			err = nil
		}
	}()
	return e.harness(in, e.cov), nil
}
