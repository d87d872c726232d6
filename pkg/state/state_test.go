package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Beastly713/mutafuzz/pkg/corpus"
	"github.com/Beastly713/mutafuzz/pkg/coverage"
	"github.com/Beastly713/mutafuzz/pkg/events"
	"github.com/Beastly713/mutafuzz/pkg/executor"
	"github.com/Beastly713/mutafuzz/pkg/feedback"
	"github.com/Beastly713/mutafuzz/pkg/input"
	"github.com/Beastly713/mutafuzz/pkg/pipeline"
	"github.com/Beastly713/mutafuzz/pkg/testcase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// firstByte hits one edge per distinct first byte and crashes on '!'.
func firstByte(in *input.Bytes, cov *coverage.Map) executor.ExitKind {
	data := in.Bytes()
	if len(data) == 0 {
		return executor.Ok
	}
	if data[0] == '!' {
		panic("bang")
	}
	cov.Hit(uint32(data[0]))
	return executor.Ok
}

func newState(t *testing.T, em events.Manager) *Std[*input.Bytes] {
	t.Helper()
	cov := coverage.NewMap(256)
	st, err := New(Options[*input.Bytes]{
		Executor:  executor.NewInProcess[*input.Bytes](firstByte, cov, nil),
		Feedback:  feedback.NewMaxMap[*input.Bytes](cov),
		Objective: feedback.NewCrash[*input.Bytes](),
		Events:    em,
		Instance:  "w0",
		Logger:    zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return st
}

func TestEvaluateAdmitsNovelInputs(t *testing.T) {
	st := newState(t, nil)

	ok, tc, err := st.EvaluateInput(input.NewBytes([]byte("a")))
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, tc)
	assert.Equal(t, 1, st.Corpus().Count())

	ok, tc, err = st.EvaluateInput(input.NewBytes([]byte("abc")))
	require.NoError(t, err)
	assert.False(t, ok, "same edge, same bucket")
	assert.Nil(t, tc)
	assert.Equal(t, 1, st.Corpus().Count())
	assert.EqualValues(t, 2, st.Executions())
}

func TestEvaluateRecordsLineage(t *testing.T) {
	st := newState(t, nil)
	parent, err := st.AddSeed(input.NewBytes([]byte("p")))
	require.NoError(t, err)
	st.SetCurrent(parent)

	_, tc, err := st.EvaluateInput(input.NewBytes([]byte("q")))
	require.NoError(t, err)
	require.NotNil(t, tc)
	meta := tc.Metadata()
	assert.Equal(t, parent.ID(), meta.ParentID)
	assert.Equal(t, 1, meta.Depth)
	assert.Equal(t, "ok", meta.ExitKind)
	assert.EqualValues(t, 2, meta.Executions)
}

func TestObjectiveGoesToSolutions(t *testing.T) {
	var fired []events.Event
	st := newState(t, events.ManagerFunc(func(ev events.Event) error {
		fired = append(fired, ev)
		return nil
	}))

	ok, tc, err := st.EvaluateInput(input.NewBytes([]byte("!")))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, tc)
	assert.Equal(t, 0, st.Corpus().Count())
	assert.Equal(t, 1, st.Solutions().Count())
	assert.EqualValues(t, 1, st.SolutionCount())

	require.Len(t, fired, 1)
	obj := fired[0].(*events.Objective[*input.Bytes])
	assert.Equal(t, "crash", obj.ExitKind)
	assert.Equal(t, "w0", obj.Instance)
}

func TestExecutorFailureIsReturned(t *testing.T) {
	boom := errors.New("target gone")
	st, err := New(Options[*input.Bytes]{
		Executor: executorFunc(func(*input.Bytes) (executor.ExitKind, error) { return executor.Ok, boom }),
		Feedback: feedback.Func[*input.Bytes](func(*input.Bytes, executor.ExitKind) (bool, error) { return true, nil }),
	})
	require.NoError(t, err)

	_, _, err = st.EvaluateInput(input.NewBytes(nil))
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 0, st.Executions())
}

func TestCorpusFailureIsReturned(t *testing.T) {
	cov := coverage.NewMap(256)
	dir := filepath.Join(t.TempDir(), "corpus")
	disk, err := corpus.NewOnDisk[*input.Bytes](dir, input.BytesCodec{}, corpus.OnDiskOptions{})
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	st, err := New(Options[*input.Bytes]{
		Executor: executor.NewInProcess[*input.Bytes](firstByte, cov, nil),
		Feedback: feedback.NewMaxMap[*input.Bytes](cov),
		Corpus:   disk,
	})
	require.NoError(t, err)

	_, _, err = st.EvaluateInput(input.NewBytes([]byte("z")))
	assert.ErrorContains(t, err, "failed to add testcase to corpus")
}

func TestLoadSeeds(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "raw"), []byte("x1"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("no"), 0644))
	stored := testcase.New(input.NewBytes([]byte("y2")))
	require.NoError(t, pipeline.WriteFile(filepath.Join(dir, stored.ID()+pipeline.Ext), input.BytesCodec{}, stored, "seed", pipeline.PersistConfig{Compress: true}))

	st := newState(t, nil)
	n, err := st.LoadSeeds(dir, input.BytesCodec{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, st.Corpus().Count())
	assert.EqualValues(t, 2, st.Executions())

	_, err = st.LoadSeeds(filepath.Join(dir, "missing"), input.BytesCodec{})
	assert.Error(t, err)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options[*input.Bytes]{})
	assert.Error(t, err)
}

type executorFunc func(*input.Bytes) (executor.ExitKind, error)

func (f executorFunc) Run(in *input.Bytes) (executor.ExitKind, error) { return f(in) }
