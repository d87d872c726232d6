package mutator

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Beastly713/mutafuzz/pkg/corpus"
	"github.com/Beastly713/mutafuzz/pkg/input"
	"github.com/Beastly713/mutafuzz/pkg/rng"
	"github.com/Beastly713/mutafuzz/pkg/testcase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInPlaceOpsChangeInput(t *testing.T) {
	r := rng.New(7)
	for _, op := range []Op{
		{"bit_flip", BitFlip},
		{"byte_flip", ByteFlip},
		{"byte_inc", ByteInc},
		{"byte_dec", ByteDec},
		{"byte_rand", ByteRand},
	} {
		t.Run(op.Name, func(t *testing.T) {
			orig := []byte("abcdefgh")
			in := input.NewBytes(orig)
			res, err := op.Fn(r, nil, in, 0)
			require.NoError(t, err)
			assert.Equal(t, Mutated, res)
			assert.Equal(t, len(orig), in.Len())
			assert.NotEqual(t, orig, in.Bytes())
		})
	}
}

func TestOpsSkipEmptyInput(t *testing.T) {
	r := rng.New(1)
	for _, op := range ByteOps {
		if op.Name == "byte_insert" {
			continue
		}
		res, err := op.Fn(r, corpus.NewMemory[*input.Bytes](), input.NewBytes(nil), 0)
		require.NoError(t, err, op.Name)
		assert.Equal(t, Skipped, res, op.Name)
	}
}

func TestInsertAndDelete(t *testing.T) {
	r := rng.New(3)
	in := input.NewBytes([]byte("abc"))

	res, err := ByteInsert(r, nil, in, 0)
	require.NoError(t, err)
	assert.Equal(t, Mutated, res)
	assert.Equal(t, 4, in.Len())

	res, err = ByteInsert(r, nil, in, 4)
	require.NoError(t, err)
	assert.Equal(t, Skipped, res, "insert respects max size")

	res, err = ByteDelete(r, nil, in, 0)
	require.NoError(t, err)
	assert.Equal(t, Mutated, res)
	assert.Equal(t, 3, in.Len())
}

func TestSpliceUsesCorpus(t *testing.T) {
	c := corpus.NewMemory[*input.Bytes]()
	_, err := c.Add(testcase.New(input.NewBytes(bytes.Repeat([]byte{'Z'}, 16))))
	require.NoError(t, err)

	r := rng.New(11)
	mutated := false
	for i := 0; i < 32 && !mutated; i++ {
		in := input.NewBytes([]byte("aaaaaaaa"))
		res, err := Splice(r, c, in, 0)
		require.NoError(t, err)
		if res == Mutated {
			mutated = true
			assert.Contains(t, in.String(), "Z")
		}
	}
	assert.True(t, mutated)
}

func TestSpliceSkipsUnloadableDonor(t *testing.T) {
	c := corpus.NewMemory[*input.Bytes]()
	_, err := c.Add(testcase.NewLazy[*input.Bytes]("lost", func() (*input.Bytes, error) {
		return nil, errors.New("gone")
	}, testcase.Metadata{}))
	require.NoError(t, err)

	in := input.NewBytes([]byte("abc"))
	res, err := Splice(rng.New(1), c, in, 0)
	require.NoError(t, err)
	assert.Equal(t, Skipped, res)
	assert.Equal(t, "abc", string(in.Bytes()))
}

func TestHavocRespectsMaxSize(t *testing.T) {
	h := NewHavoc(HavocOptions{MaxSize: 8, Ops: []Op{{"byte_insert", ByteInsert}}})
	r := rng.New(5)
	in := input.NewBytes([]byte("seed"))
	for i := 0; i < 20; i++ {
		require.NoError(t, h.Mutate(r, nil, in, i))
		require.NoError(t, h.PostExec(false, nil, i))
		assert.LessOrEqual(t, in.Len(), 8)
	}
}

func TestHavocPropagatesOpErrors(t *testing.T) {
	boom := errors.New("boom")
	h := NewHavoc(HavocOptions{Ops: []Op{{"fail", func(rng.Rand, corpus.Corpus[*input.Bytes], *input.Bytes, int) (Result, error) {
		return Skipped, boom
	}}}})
	err := h.Mutate(rng.New(1), nil, input.NewBytes([]byte("x")), 0)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "fail")
}

func TestHavocAdaptiveCredits(t *testing.T) {
	h := NewHavoc(HavocOptions{Adaptive: true, Ops: []Op{{"byte_flip", ByteFlip}, {"byte_delete", ByteDelete}}})
	r := rng.New(9)
	tc := testcase.New(input.NewBytes([]byte("found")))

	for i := 0; i < 10; i++ {
		require.NoError(t, h.Mutate(r, nil, input.NewBytes([]byte("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")), i))
		require.NoError(t, h.PostExec(true, tc, i))
	}
	var uses, finds uint64
	for _, s := range h.Stats() {
		uses += s.Uses
		finds += s.Finds
	}
	assert.Positive(t, uses)
	assert.Equal(t, uses, finds)

	require.NoError(t, h.Mutate(r, nil, input.NewBytes([]byte("abc")), 10))
	require.NoError(t, h.PostExec(false, nil, 10))
	var after uint64
	for _, s := range h.Stats() {
		after += s.Finds
	}
	assert.Equal(t, finds, after, "no credit without a testcase")
}
