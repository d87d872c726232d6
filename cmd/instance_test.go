package cmd

import (
	"context"
	"testing"

	"github.com/Beastly713/mutafuzz/pkg/config"
	"github.com/Beastly713/mutafuzz/pkg/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInstanceLogsOpStats(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Campaign.StageRuns = 5
	cfg.Campaign.Seed = 1
	cfg.Solutions.Dir = ""

	core, logs := observer.New(zap.DebugLevel)
	c, err := newCampaign(cfg, zap.New(core), monitor.New(nil))
	require.NoError(t, err)

	inst, err := c.newInstance(0)
	require.NoError(t, err)
	defer inst.Close()
	require.NoError(t, inst.Run(context.Background()))

	ops := logs.FilterMessage("mutation op").All()
	require.Len(t, ops, len(inst.havoc.Stats()))
	assert.Equal(t, inst.havoc.Stats()[0].Name, ops[0].ContextMap()["op"])
	assert.Equal(t, inst.name, ops[0].ContextMap()["instance"])
}
