package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"poolbet/internal/core"
	"poolbet/internal/domain"
	"poolbet/internal/engine"
	"poolbet/internal/infra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, dbPath string) *infra.Config {
	t.Helper()
	cfg, err := infra.LoadConfig("../../configs/config.yaml")
	require.NoError(t, err)
	cfg.Storage.Path = dbPath
	cfg.Engine.DumpFile = filepath.Join(t.TempDir(), "dump.json")
	return cfg
}

// start sets up a system and runs its sequencer until the test ends.
func start(t *testing.T, cfg *infra.Config) *Bootstrap {
	t.Helper()
	b := NewBootstrap()
	require.NoError(t, b.Setup(context.Background(), cfg))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Sequencer.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		b.Close()
	})
	require.NoError(t, b.SeedRoles(context.Background()))
	return b
}

func TestRunWorkflow_ShippedScript(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pool.db")
	b := start(t, testConfig(t, dbPath))

	wf, err := LoadWorkflow("../../configs/workflow.yaml")
	require.NoError(t, err)

	results, err := RunWorkflow(context.Background(), b.Sequencer, wf)
	require.NoError(t, err)
	require.Len(t, results, len(wf.Steps))

	var rejected int
	for _, r := range results {
		if r.Err != nil {
			rejected++
		}
	}
	assert.Equal(t, 4, rejected)
	assert.Equal(t, uint64(4), b.Metrics.Snapshot().CommandsRejected)

	b.Sequencer.Read(func(p *core.PoolState) {
		assert.NotPanics(t, p.VerifyInvariants)
		assert.Zero(t, p.Liquidity().Total())
		assert.Zero(t, p.Outstanding())
		assert.Zero(t, p.Vault().PoolBalance())
		assert.Greater(t, p.Vault().BalanceOf("lp", domain.AssetToken), int64(1_000_000))
		assert.Greater(t, p.Vault().BalanceOf("carol", domain.AssetToken), int64(10_000))
		assert.Equal(t, int64(5_000), p.Vault().BalanceOf("bob", domain.AssetToken))
	})

	market, ok := b.Market.GetMarket(1)
	require.True(t, ok)
	assert.Equal(t, domain.ConditionResolved, market.State)
	assert.Equal(t, uint64(2), market.OutcomeWin)

	conds, err := b.Storage.Conditions(context.Background())
	require.NoError(t, err)
	require.Len(t, conds, 1)
}

func TestSetup_ReplaysJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pool.db")
	cfg := testConfig(t, dbPath)

	first := start(t, cfg)
	wf, err := LoadWorkflow("../../configs/workflow.yaml")
	require.NoError(t, err)
	// Stop before the resolve so the replayed pool has an open condition.
	wf.Steps = wf.Steps[:8]
	_, err = RunWorkflow(context.Background(), first.Sequencer, wf)
	require.NoError(t, err)

	var want core.Snapshot
	first.Sequencer.Read(func(p *core.PoolState) { want = p.Snapshot() })
	nextSeq := first.Sequencer.NextSeq()

	second := start(t, cfg)
	assert.Equal(t, nextSeq, second.Sequencer.NextSeq(), "seeding must not run again")
	second.Sequencer.Read(func(p *core.PoolState) {
		assert.Equal(t, want, p.Snapshot())
	})

	// The read model is rebuilt from replayed events too.
	m, ok := second.Market.GetMarket(1)
	require.True(t, ok)
	assert.Equal(t, 2, m.BetCount)
}

func TestRunWorkflow_Errors(t *testing.T) {
	b := start(t, testConfig(t, ""))
	ctx := context.Background()

	tests := []struct {
		name string
		wf   Workflow
		want string
	}{
		{
			name: "unknown command",
			wf:   Workflow{Steps: []Step{{Caller: "owner", Command: "nope"}}},
			want: "unknown command",
		},
		{
			name: "undefined variable",
			wf: Workflow{Steps: []Step{{
				Caller:  "owner",
				Command: "mint",
				Args:    map[string]any{"to": "lp", "amount": "$missing"},
			}}},
			want: "undefined variable $missing",
		},
		{
			name: "unexpected rejection",
			wf: Workflow{Steps: []Step{{
				Caller:  "bob",
				Command: "mint",
				Args:    map[string]any{"to": "bob", "amount": 1},
			}}},
			want: "unexpected error: OnlyOwner",
		},
		{
			name: "wrong expected code",
			wf: Workflow{Steps: []Step{{
				Caller:  "bob",
				Command: "mint",
				Args:    map[string]any{"to": "bob", "amount": 1},
				Expect:  "OnlyOracle",
			}}},
			want: "expected OnlyOracle, got OnlyOwner",
		},
		{
			name: "expected failure succeeded",
			wf: Workflow{Steps: []Step{{
				Caller:  "owner",
				Command: "mint",
				Args:    map[string]any{"to": "bob", "amount": 1},
				Expect:  "OnlyOwner",
			}}},
			want: "expected OnlyOwner, got <nil>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RunWorkflow(ctx, b.Sequencer, &tt.wf)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSubstitute(t *testing.T) {
	vars := map[string]int64{"start": 100, "cond": 7}

	got, err := substitute(map[string]any{
		"condition_id": "$cond",
		"deadline":     "$start+50",
		"early":        "$start-10",
		"odds":         []any{1, "$cond"},
		"asset":        "native",
	}, vars)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"condition_id": int64(7),
		"deadline":     int64(150),
		"early":        int64(90),
		"odds":         []any{1, int64(7)},
		"asset":        "native",
	}, got)

	_, err = substitute("$start+x", vars)
	assert.Error(t, err)
}

func TestSavedValue(t *testing.T) {
	v, ok := savedValue(engine.BetResult{BetID: 3, Odds: 1})
	assert.True(t, ok)
	assert.Equal(t, int64(3), v)

	_, ok = savedValue(nil)
	assert.False(t, ok)
}

func TestLoadWorkflow_NotFound(t *testing.T) {
	_, err := LoadWorkflow(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunWorkflow_FreeBets(t *testing.T) {
	b := start(t, testConfig(t, ""))
	step := func(at int64, caller, command string, args map[string]any) Step {
		return Step{At: at, Caller: caller, Command: command, Args: args}
	}
	wf := &Workflow{Start: 1_700_000_000, Steps: []Step{
		step(0, "owner", "mint", map[string]any{"to": "lp", "amount": 1_000_000}),
		step(0, "owner", "mint", map[string]any{"to": "sponsor", "amount": 5_000}),
		step(0, "lp", "addLiquidity", map[string]any{"amount": 1_000_000}),
		step(0, "sponsor", "fundFreeBets", map[string]any{"amount": 5_000}),
		step(10, "oracle", "createCondition", map[string]any{
			"oracle_condition_id": 1, "odds": []any{1, 1}, "outcomes": []any{1, 2}, "starts_at": "$start+3600",
		}),
		step(20, "maintainer", "mintFreeBet", map[string]any{
			"to": "bob", "terms": map[string]any{"amount": 1_000, "duration": 86_400},
		}),
		step(30, "bob", "transferFreeBet", map[string]any{"freebet_id": "$fb", "to": "carol"}),
		step(40, "bob", "redeemFreeBet", map[string]any{
			"freebet_id": "$fb", "condition_id": "$cond", "outcome": 1, "amount": 1_000, "deadline": "$start+600",
		}),
		step(50, "maintainer", "withdrawReserve", map[string]any{"amount": 5_000}),
		step(3700, "oracle", "resolveCondition", map[string]any{"oracle_condition_id": 1, "outcome": 1}),
		step(3800, "carol", "resolveFreeBetPayout", map[string]any{"bet_id": "$fbBet"}),
		step(3800, "bob", "withdrawFreeBetPayout", map[string]any{"bet_id": "$fbBet"}),
		step(3800, "carol", "resolveFreeBetPayout", map[string]any{"bet_id": "$fbBet"}),
		step(3900, "maintainer", "withdrawReserve", map[string]any{"amount": 5_000}),
	}}
	wf.Steps[4].Save = "cond"
	wf.Steps[5].Save = "fb"
	wf.Steps[6].Expect = "NonTransferable"
	wf.Steps[7].Save = "fbBet"
	wf.Steps[8].Expect = "InsufficientContractBalance"
	wf.Steps[12].Expect = "AlreadyResolved"

	_, err := RunWorkflow(context.Background(), b.Sequencer, wf)
	require.NoError(t, err)

	b.Sequencer.Read(func(p *core.PoolState) {
		assert.NotPanics(t, p.VerifyInvariants)
		assert.Greater(t, p.Vault().BalanceOf("bob", domain.AssetToken), int64(0))
		assert.Zero(t, p.Vault().BalanceOf("freebets", domain.AssetToken))
		assert.Equal(t, int64(5_000), p.Vault().BalanceOf("maintainer", domain.AssetToken))
	})
}
