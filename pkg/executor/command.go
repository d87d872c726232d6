package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/maphash"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/Beastly713/mutafuzz/pkg/input"
	"go.uber.org/zap"
)

// FilePlaceholder in the argument list is replaced with the path of a file
// holding the input. Without it the input goes to stdin.
const FilePlaceholder = "@@"

// Result describes the last command execution.
type Result struct {
	ExitCode   int
	Signaled   bool
	OutputHash uint64
	Duration   time.Duration
}

// Command runs an external program once per input.
type Command struct {
	argv    []string
	timeout time.Duration
	logger  *zap.Logger
	seed    maphash.Seed
	last    Result
}

// NewCommand creates an executor for argv. timeout bounds each run.
func NewCommand(argv []string, timeout time.Duration, logger *zap.Logger) (*Command, error) {
	if len(argv) == 0 {
		return nil, errors.New("command executor needs a program to run")
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Command{
		argv:    append([]string(nil), argv...),
		timeout: timeout,
		logger:  logger,
		seed:    maphash.MakeSeed(),
	}, nil
}

// Last returns details of the most recent run.
func (c *Command) Last() Result {
	return c.last
}

func (c *Command) Run(in *input.Bytes) (ExitKind, error) {
	args, cleanup, err := c.args(in.Bytes())
	if err != nil {
		return Ok, err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.argv[0], args...)
	if !c.usesFile() {
		cmd.Stdin = bytes.NewReader(in.Bytes())
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	// Children of the target may hold the pipes open after a kill.
	cmd.WaitDelay = c.timeout

	start := time.Now()
	runErr := cmd.Run()
	c.last = Result{
		Duration:   time.Since(start),
		OutputHash: maphash.Bytes(c.seed, out.Bytes()),
	}

	if ctx.Err() == context.DeadlineExceeded {
		c.last.ExitCode = -1
		return Timeout, nil
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		return Ok, nil
	case errors.As(runErr, &exitErr):
		c.last.ExitCode = exitErr.ExitCode()
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			c.last.Signaled = true
			c.logger.Debug("target killed by signal", zap.String("signal", status.Signal().String()))
			return Crash, nil
		}
		return Ok, nil
	default:
		return Ok, fmt.Errorf("failed to run %s: %w", c.argv[0], runErr)
	}
}

func (c *Command) usesFile() bool {
	for _, a := range c.argv[1:] {
		if a == FilePlaceholder {
			return true
		}
	}
	return false
}

func (c *Command) args(data []byte) ([]string, func(), error) {
	args := append([]string(nil), c.argv[1:]...)
	if !c.usesFile() {
		return args, func() {}, nil
	}

	f, err := os.CreateTemp("", "mutafuzz-input-*")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create input file: %w", err)
	}
	cleanup := func() { os.Remove(f.Name()) }
	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return nil, nil, fmt.Errorf("failed to write input file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return nil, nil, err
	}
	for i, a := range args {
		if a == FilePlaceholder {
			args[i] = f.Name()
		}
	}
	return args, cleanup, nil
}
