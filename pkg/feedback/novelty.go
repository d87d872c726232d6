package feedback

import (
	"github.com/Beastly713/mutafuzz/pkg/executor"
	"github.com/Beastly713/mutafuzz/pkg/input"
)

type signature struct {
	exit       executor.ExitKind
	code       int
	outputHash uint64
}

// Novelty is the coverage substitute for uninstrumented command targets: an
// input is interesting when its (exit kind, exit code, output hash) triple
// has never been seen.
type Novelty struct {
	cmd  *executor.Command
	seen map[signature]struct{}
}

func NewNovelty(cmd *executor.Command) *Novelty {
	return &Novelty{cmd: cmd, seen: make(map[signature]struct{})}
}

func (f *Novelty) IsInteresting(_ *input.Bytes, exit executor.ExitKind) (bool, error) {
	last := f.cmd.Last()
	sig := signature{exit: exit, code: last.ExitCode, outputHash: last.OutputHash}
	if _, ok := f.seen[sig]; ok {
		return false, nil
	}
	f.seen[sig] = struct{}{}
	return true, nil
}

// Seen returns the number of distinct behaviors observed.
func (f *Novelty) Seen() int {
	return len(f.seen)
}
