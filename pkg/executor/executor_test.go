package executor

import (
	"os/exec"
	"testing"
	"time"

	"github.com/Beastly713/mutafuzz/pkg/coverage"
	"github.com/Beastly713/mutafuzz/pkg/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestInProcessRecoversPanics(t *testing.T) {
	harness := func(in *input.Bytes, cov *coverage.Map) ExitKind {
		cov.Hit(1)
		if string(in.Bytes()) == "boom" {
			panic("target crashed")
		}
		return Ok
	}
	e := NewInProcess[*input.Bytes](harness, nil, zaptest.NewLogger(t))

	kind, err := e.Run(input.NewBytes([]byte("fine")))
	require.NoError(t, err)
	assert.Equal(t, Ok, kind)
	assert.Equal(t, 1, e.Coverage().Count())

	kind, err = e.Run(input.NewBytes([]byte("boom")))
	require.NoError(t, err)
	assert.Equal(t, Crash, kind)
	assert.Equal(t, uint64(2), e.Runs())
}

func TestInProcessResetsCoverage(t *testing.T) {
	cov := coverage.NewMap(16)
	calls := 0
	e := NewInProcess[*input.Bytes](func(_ *input.Bytes, cov *coverage.Map) ExitKind {
		calls++
		cov.Hit(uint32(calls))
		return Ok
	}, cov, nil)

	_, _ = e.Run(input.NewBytes(nil))
	_, _ = e.Run(input.NewBytes(nil))
	assert.Equal(t, 1, cov.Count(), "map must only hold the last run")
}

func TestExitKindString(t *testing.T) {
	assert.Equal(t, "ok", Ok.String())
	assert.Equal(t, "crash", Crash.String())
	assert.Equal(t, "timeout", Timeout.String())
	assert.Equal(t, "exit(9)", ExitKind(9).String())
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestCommandStdin(t *testing.T) {
	requireShell(t)
	e, err := NewCommand([]string{"sh", "-c", `read x; [ "$x" = "crash" ] && kill -SEGV $$; exit 3`}, 5*time.Second, nil)
	require.NoError(t, err)

	kind, err := e.Run(input.NewBytes([]byte("hello\n")))
	require.NoError(t, err)
	assert.Equal(t, Ok, kind)
	assert.Equal(t, 3, e.Last().ExitCode)

	kind, err = e.Run(input.NewBytes([]byte("crash\n")))
	require.NoError(t, err)
	assert.Equal(t, Crash, kind)
	assert.True(t, e.Last().Signaled)
}

func TestCommandFilePlaceholder(t *testing.T) {
	requireShell(t)
	e, err := NewCommand([]string{"sh", "-c", `cat "$1"`, "sh", FilePlaceholder}, 5*time.Second, nil)
	require.NoError(t, err)

	_, err = e.Run(input.NewBytes([]byte("one")))
	require.NoError(t, err)
	first := e.Last().OutputHash

	_, err = e.Run(input.NewBytes([]byte("two")))
	require.NoError(t, err)
	assert.NotEqual(t, first, e.Last().OutputHash)
}

func TestCommandTimeout(t *testing.T) {
	requireShell(t)
	e, err := NewCommand([]string{"sh", "-c", "sleep 5"}, 50*time.Millisecond, nil)
	require.NoError(t, err)

	kind, err := e.Run(input.NewBytes(nil))
	require.NoError(t, err)
	assert.Equal(t, Timeout, kind)
}

func TestCommandMissingProgram(t *testing.T) {
	_, err := NewCommand(nil, time.Second, nil)
	assert.Error(t, err)

	e, err := NewCommand([]string{"/definitely/not/here"}, time.Second, nil)
	require.NoError(t, err)
	_, err = e.Run(input.NewBytes(nil))
	assert.Error(t, err)
}
