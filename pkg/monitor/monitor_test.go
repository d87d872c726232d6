package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/Beastly713/mutafuzz/pkg/events"
	"github.com/Beastly713/mutafuzz/pkg/input"
	"github.com/Beastly713/mutafuzz/pkg/testcase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSnapshotAggregatesInstances(t *testing.T) {
	m := New(nil)
	clock := m.start
	m.now = func() time.Time { return clock }

	require.NoError(t, m.Fire(&events.Stats{Instance: "b", Executions: 300, CorpusSize: 4, Solutions: 1}))
	require.NoError(t, m.Fire(&events.Stats{Instance: "a", Executions: 100, CorpusSize: 2}))
	require.NoError(t, m.Fire(&events.Stats{Instance: "a", Executions: 200, CorpusSize: 3}))
	tc := testcase.New(input.NewBytes([]byte("x")))
	require.NoError(t, m.Fire(&events.NewTestcase[*input.Bytes]{Testcase: tc}))
	require.NoError(t, m.Fire(&events.Objective[*input.Bytes]{Testcase: tc}))

	clock = clock.Add(10 * time.Second)
	s := m.Snapshot()
	require.Len(t, s.Instances, 2)
	assert.Equal(t, "a", s.Instances[0].Name)
	assert.EqualValues(t, 500, s.Executions)
	assert.Equal(t, 7, s.CorpusSize)
	assert.Equal(t, 1, s.Solutions)
	assert.Equal(t, 1, s.Finds)
	assert.Equal(t, 1, s.Objectives)
	assert.InDelta(t, 50.0, s.ExecsPerSec, 0.001)
}

func TestRunLogsUntilCancelled(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := New(zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return logs.FilterMessage("campaign").Len() > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
