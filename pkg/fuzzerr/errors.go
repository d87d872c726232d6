// Package fuzzerr holds the error kinds shared by every stage of a fuzzing
// campaign. Collaborators return whatever error they like; the stage tags it
// with one of these kinds so callers can tell which step failed.
package fuzzerr

import (
	"errors"
	"fmt"
)

var (
	// ErrInputLoad means a testcase's input could not be materialized.
	ErrInputLoad = errors.New("input load failed")

	// ErrMutator means Mutate or PostExec failed.
	ErrMutator = errors.New("mutator failed")

	// ErrEvaluation means the state could not execute or judge an input.
	// A crashing target is not an evaluation failure.
	ErrEvaluation = errors.New("evaluation failed")

	// ErrEventPublish means the event manager could not deliver an event.
	ErrEventPublish = errors.New("event publish failed")
)

// Wrap tags err with kind and the iteration it happened in.
// errors.Is matches both kind and the original error.
func Wrap(kind error, iteration int, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: iteration %d: %w", kind, iteration, err)
}

// Kind returns the error kind carried by err, or nil.
func Kind(err error) error {
	for _, k := range []error{ErrInputLoad, ErrMutator, ErrEvaluation, ErrEventPublish} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
