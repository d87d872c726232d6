// Package targets holds small in-process harnesses used for demos and tests.
package targets

import (
	"fmt"
	"sort"

	"github.com/Beastly713/mutafuzz/pkg/coverage"
	"github.com/Beastly713/mutafuzz/pkg/executor"
	"github.com/Beastly713/mutafuzz/pkg/input"
)

// Harness is a built-in target over byte inputs.
type Harness = executor.Harness[*input.Bytes]

var builtin = map[string]Harness{
	"magic": Magic,
	"tlv":   TLV,
}

// Lookup returns the built-in harness called name.
func Lookup(name string) (Harness, error) {
	h, ok := builtin[name]
	if !ok {
		return nil, fmt.Errorf("unknown target %q (have %v)", name, Names())
	}
	return h, nil
}

// Names lists the built-in targets.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for n := range builtin {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MagicWord is what Magic looks for.
const MagicWord = "FUZZ!"

// Magic compares the input against MagicWord one byte at a time, recording an
// edge per matched prefix length, and panics on a full match.
func Magic(in *input.Bytes, cov *coverage.Map) executor.ExitKind {
	data := in.Bytes()
	cov.Hit(0)
	for i := 0; i < len(MagicWord); i++ {
		if i >= len(data) || data[i] != MagicWord[i] {
			return executor.Ok
		}
		cov.Hit(uint32(i + 1))
	}
	panic("magic word reached")
}
