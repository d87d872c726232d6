package mutator

import (
	"github.com/Beastly713/mutafuzz/pkg/corpus"
	"github.com/Beastly713/mutafuzz/pkg/input"
	"github.com/Beastly713/mutafuzz/pkg/rng"
)

// Result says whether an operation changed the input.
type Result int

const (
	Mutated Result = iota
	Skipped
)

// ByteFunc is one mutation over a byte input. maxSize caps growth.
type ByteFunc func(r rng.Rand, c corpus.Corpus[*input.Bytes], in *input.Bytes, maxSize int) (Result, error)

// Op is a named mutation.
type Op struct {
	Name string
	Fn   ByteFunc
}

// ByteOps is the default havoc operation set.
var ByteOps = []Op{
	{"bit_flip", BitFlip},
	{"byte_flip", ByteFlip},
	{"byte_inc", ByteInc},
	{"byte_dec", ByteDec},
	{"byte_rand", ByteRand},
	{"byte_interesting", ByteInteresting},
	{"byte_insert", ByteInsert},
	{"byte_delete", ByteDelete},
	{"bytes_copy", BytesCopy},
	{"splice", Splice},
}

var interesting8 = []byte{0x80, 0xff, 0x00, 0x01, 0x10, 0x20, 0x40, 0x64, 0x7f}

func pos(r rng.Rand, n int) int {
	return int(r.Below(uint64(n)))
}

func BitFlip(r rng.Rand, _ corpus.Corpus[*input.Bytes], in *input.Bytes, _ int) (Result, error) {
	data := in.Bytes()
	if len(data) == 0 {
		return Skipped, nil
	}
	data[pos(r, len(data))] ^= 1 << r.Below(8)
	return Mutated, nil
}

func ByteFlip(r rng.Rand, _ corpus.Corpus[*input.Bytes], in *input.Bytes, _ int) (Result, error) {
	data := in.Bytes()
	if len(data) == 0 {
		return Skipped, nil
	}
	data[pos(r, len(data))] ^= 0xff
	return Mutated, nil
}

func ByteInc(r rng.Rand, _ corpus.Corpus[*input.Bytes], in *input.Bytes, _ int) (Result, error) {
	data := in.Bytes()
	if len(data) == 0 {
		return Skipped, nil
	}
	data[pos(r, len(data))]++
	return Mutated, nil
}

func ByteDec(r rng.Rand, _ corpus.Corpus[*input.Bytes], in *input.Bytes, _ int) (Result, error) {
	data := in.Bytes()
	if len(data) == 0 {
		return Skipped, nil
	}
	data[pos(r, len(data))]--
	return Mutated, nil
}

// ByteRand replaces a byte with a different random value.
func ByteRand(r rng.Rand, _ corpus.Corpus[*input.Bytes], in *input.Bytes, _ int) (Result, error) {
	data := in.Bytes()
	if len(data) == 0 {
		return Skipped, nil
	}
	data[pos(r, len(data))] ^= byte(1 + r.Below(255))
	return Mutated, nil
}

func ByteInteresting(r rng.Rand, _ corpus.Corpus[*input.Bytes], in *input.Bytes, _ int) (Result, error) {
	data := in.Bytes()
	if len(data) == 0 {
		return Skipped, nil
	}
	data[pos(r, len(data))] = interesting8[pos(r, len(interesting8))]
	return Mutated, nil
}

func ByteInsert(r rng.Rand, _ corpus.Corpus[*input.Bytes], in *input.Bytes, maxSize int) (Result, error) {
	data := in.Bytes()
	if maxSize > 0 && len(data) >= maxSize {
		return Skipped, nil
	}
	at := pos(r, len(data)+1)
	data = append(data, 0)
	copy(data[at+1:], data[at:])
	data[at] = byte(r.Next())
	in.SetBytes(data)
	return Mutated, nil
}

func ByteDelete(r rng.Rand, _ corpus.Corpus[*input.Bytes], in *input.Bytes, _ int) (Result, error) {
	data := in.Bytes()
	if len(data) == 0 {
		return Skipped, nil
	}
	at := pos(r, len(data))
	copy(data[at:], data[at+1:])
	in.SetBytes(data[:len(data)-1])
	return Mutated, nil
}

// BytesCopy copies a chunk of the input over another place in it.
func BytesCopy(r rng.Rand, _ corpus.Corpus[*input.Bytes], in *input.Bytes, _ int) (Result, error) {
	data := in.Bytes()
	if len(data) < 2 {
		return Skipped, nil
	}
	from := pos(r, len(data))
	to := pos(r, len(data))
	if from == to {
		return Skipped, nil
	}
	n := 1 + pos(r, min(len(data)-from, len(data)-to))
	copy(data[to:to+n], data[from:from+n])
	return Mutated, nil
}

// Splice joins a prefix of the input with a suffix of a random corpus entry.
// A donor whose input can no longer be loaded is skipped.
func Splice(r rng.Rand, c corpus.Corpus[*input.Bytes], in *input.Bytes, maxSize int) (Result, error) {
	if c == nil || c.Count() == 0 {
		return Skipped, nil
	}
	tc, err := c.Get(rng.Choose(r, c.Count()))
	if err != nil {
		return Skipped, err
	}
	other, err := tc.LoadInput()
	if err != nil {
		return Skipped, nil
	}
	data, donor := in.Bytes(), other.Bytes()
	if len(data) == 0 || len(donor) == 0 {
		return Skipped, nil
	}

	split := pos(r, len(data))
	from := pos(r, len(donor))
	out := make([]byte, 0, split+len(donor)-from)
	out = append(out, data[:split]...)
	out = append(out, donor[from:]...)
	if maxSize > 0 && len(out) > maxSize {
		out = out[:maxSize]
	}
	if string(out) == string(data) {
		return Skipped, nil
	}
	in.SetBytes(out)
	return Mutated, nil
}
