// Package mutator transforms inputs into new candidates.
package mutator

import (
	"github.com/Beastly713/mutafuzz/pkg/corpus"
	"github.com/Beastly713/mutafuzz/pkg/rng"
	"github.com/Beastly713/mutafuzz/pkg/testcase"
)

// Mutator changes an input in place. It may read other corpus entries, for
// example to splice. PostExec is called after every evaluation with the
// verdict, whether or not a testcase was produced; tc is read-only there.
type Mutator[I any] interface {
	Mutate(r rng.Rand, c corpus.Corpus[I], in I, idx int) error
	PostExec(interesting bool, tc *testcase.Testcase[I], idx int) error
}
