package mutator

import (
	"fmt"

	"github.com/Beastly713/mutafuzz/pkg/corpus"
	"github.com/Beastly713/mutafuzz/pkg/input"
	"github.com/Beastly713/mutafuzz/pkg/rng"
	"github.com/Beastly713/mutafuzz/pkg/testcase"
	"go.uber.org/zap"
)

// HavocOptions configures a Havoc mutator.
type HavocOptions struct {
	// MaxSize caps input growth. 0 means unlimited.
	MaxSize int
	// MaxStackPow bounds the number of stacked operations to 1<<MaxStackPow.
	MaxStackPow uint64
	// Adaptive weights operations by how often they led to new testcases.
	Adaptive bool
	Ops      []Op
	Logger   *zap.Logger
}

// OpStats counts how an operation performed.
type OpStats struct {
	Name  string
	Uses  uint64
	Finds uint64
}

// Havoc applies a random stack of byte operations per call.
type Havoc struct {
	opts  HavocOptions
	stats []OpStats
	used  []int
}

func NewHavoc(opts HavocOptions) *Havoc {
	if len(opts.Ops) == 0 {
		opts.Ops = ByteOps
	}
	if opts.MaxStackPow == 0 {
		opts.MaxStackPow = 7
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	stats := make([]OpStats, len(opts.Ops))
	for i, op := range opts.Ops {
		stats[i].Name = op.Name
	}
	return &Havoc{opts: opts, stats: stats}
}

func (h *Havoc) Mutate(r rng.Rand, c corpus.Corpus[*input.Bytes], in *input.Bytes, idx int) error {
	h.used = h.used[:0]
	stack := 1 << (1 + r.Below(h.opts.MaxStackPow))
	for i := 0; i < stack; i++ {
		opIdx := h.pick(r)
		op := h.opts.Ops[opIdx]
		res, err := op.Fn(r, c, in, h.opts.MaxSize)
		if err != nil {
			return fmt.Errorf("%s: %w", op.Name, err)
		}
		if res == Mutated {
			h.used = append(h.used, opIdx)
		}
	}
	if h.opts.MaxSize > 0 && in.Len() > h.opts.MaxSize {
		in.SetBytes(in.Bytes()[:h.opts.MaxSize])
	}
	return nil
}

// PostExec credits the operations of the last Mutate call.
func (h *Havoc) PostExec(interesting bool, tc *testcase.Testcase[*input.Bytes], idx int) error {
	found := interesting && tc != nil
	for _, opIdx := range h.used {
		h.stats[opIdx].Uses++
		if found {
			h.stats[opIdx].Finds++
		}
	}
	if found {
		h.opts.Logger.Debug("mutation found testcase",
			zap.String("testcase", tc.ID()),
			zap.Int("iteration", idx),
			zap.Int("ops", len(h.used)))
	}
	h.used = h.used[:0]
	return nil
}

// Stats returns a copy of the per-operation counters.
func (h *Havoc) Stats() []OpStats {
	return append([]OpStats(nil), h.stats...)
}

func (h *Havoc) weight(i int) uint64 {
	s := h.stats[i]
	return 1 + s.Finds*100/(s.Uses+1)
}

func (h *Havoc) pick(r rng.Rand) int {
	if !h.opts.Adaptive {
		return rng.Choose(r, len(h.opts.Ops))
	}
	var total uint64
	for i := range h.opts.Ops {
		total += h.weight(i)
	}
	roll := r.Below(total)
	for i := range h.opts.Ops {
		w := h.weight(i)
		if roll < w {
			return i
		}
		roll -= w
	}
	return len(h.opts.Ops) - 1
}
