// Package events carries notifications between fuzzing instances.
package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/Beastly713/mutafuzz/pkg/testcase"
	"go.uber.org/zap"
)

// Kind identifies an event type.
type Kind int

const (
	KindNewTestcase Kind = iota
	KindObjective
	KindStats
)

func (k Kind) String() string {
	switch k {
	case KindNewTestcase:
		return "new_testcase"
	case KindObjective:
		return "objective"
	case KindStats:
		return "stats"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is a structured notification.
type Event interface {
	Kind() Kind
}

// NewTestcase announces an input admitted to a corpus. It carries a shared
// handle, not the corpus's ownership.
type NewTestcase[I any] struct {
	Testcase   *testcase.Testcase[I]
	CorpusSize int
	// Instance names the origin; managers fill it in when empty.
	Instance string
}

func (*NewTestcase[I]) Kind() Kind { return KindNewTestcase }

// Objective announces an input that hit an objective (crash, timeout).
type Objective[I any] struct {
	Testcase *testcase.Testcase[I]
	ExitKind string
	Instance string
}

func (*Objective[I]) Kind() Kind { return KindObjective }

// Stats is a periodic progress report.
type Stats struct {
	Instance   string
	Executions uint64
	CorpusSize int
	Solutions  int
	Time       time.Time
}

func (*Stats) Kind() Kind { return KindStats }

// Manager publishes events.
type Manager interface {
	Fire(ev Event) error
}

// Source yields events received from other instances.
type Source interface {
	// Drain hands every pending event to fn without blocking and returns how
	// many were handled.
	Drain(fn func(ev Event) error) (int, error)
}

// Sources drains several sources in order and stops at the first failure.
type Sources []Source

func (s Sources) Drain(fn func(ev Event) error) (int, error) {
	total := 0
	for _, src := range s {
		n, err := src.Drain(fn)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ManagerFunc adapts a function.
type ManagerFunc func(ev Event) error

func (f ManagerFunc) Fire(ev Event) error {
	return f(ev)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Fire(Event) error { return nil }

// Multi fires to every manager in order and stops at the first failure.
type Multi []Manager

func (m Multi) Fire(ev Event) error {
	for _, mgr := range m {
		if err := mgr.Fire(ev); err != nil {
			return err
		}
	}
	return nil
}

// Logger writes each event to a zap logger.
type Logger struct {
	logger   *zap.Logger
	instance string
}

func NewLogger(logger *zap.Logger, instance string) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger, instance: instance}
}

func (l *Logger) Fire(ev Event) error {
	fields := []zap.Field{zap.String("instance", l.instance), zap.Stringer("event", ev.Kind())}
	switch e := ev.(type) {
	case *Stats:
		fields = append(fields,
			zap.Uint64("execs", e.Executions),
			zap.Int("corpus", e.CorpusSize),
			zap.Int("solutions", e.Solutions))
		l.logger.Info("progress", fields...)
	case interface{ testcaseID() string }:
		fields = append(fields, zap.String("testcase", e.testcaseID()))
		if ev.Kind() == KindObjective {
			l.logger.Warn("objective found", fields...)
		} else {
			l.logger.Debug("new testcase", fields...)
		}
	default:
		l.logger.Debug("event", fields...)
	}
	return nil
}

func (e *NewTestcase[I]) testcaseID() string { return idOf(e.Testcase) }
func (e *Objective[I]) testcaseID() string   { return idOf(e.Testcase) }

func idOf[I any](tc *testcase.Testcase[I]) string {
	if tc == nil {
		return ""
	}
	return tc.ID()
}

// ErrBacklog is returned when a peer's inbox is full.
var ErrBacklog = errors.New("peer inbox full")
