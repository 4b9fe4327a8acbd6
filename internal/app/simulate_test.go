package app

import (
	"bytes"
	"context"
	"testing"

	"poolbet/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulate(t *testing.T) {
	b := start(t, testConfig(t, ""))

	report, err := Simulate(context.Background(), b, SimOptions{Rounds: 20, Seed: 42})
	require.NoError(t, err)

	assert.Equal(t, 20, report.Rounds)
	assert.Equal(t, 20, report.Resolved+report.Canceled)
	assert.Positive(t, report.Bets)
	assert.Positive(t, report.Paid)

	snap := b.Metrics.Snapshot()
	assert.Equal(t, uint64(report.Rejected), snap.CommandsRejected)
	assert.Equal(t, uint64(report.Bets+report.StrategyBets), snap.BetsPlaced)

	var open int
	b.Sequencer.Read(func(p *core.PoolState) {
		for _, c := range p.Conditions() {
			if c.IsOpen() {
				open++
			}
		}
		assert.Zero(t, p.Liquidity().Locked())
	})
	assert.Zero(t, open)

	var buf bytes.Buffer
	require.NoError(t, PrintReport(&buf, b))
	assert.Contains(t, buf.String(), "RESOLVED")
}

func TestSimulate_Deterministic(t *testing.T) {
	run := func() SimReport {
		b := start(t, testConfig(t, ""))
		report, err := Simulate(context.Background(), b, SimOptions{Rounds: 10, Seed: 7, Bettors: 3})
		require.NoError(t, err)
		return report
	}
	assert.Equal(t, run(), run())
}

func TestSimulate_NeedsOracle(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Pool.Oracles = nil
	b := start(t, cfg)

	_, err := Simulate(context.Background(), b, SimOptions{Rounds: 1})
	assert.Error(t, err)
}
