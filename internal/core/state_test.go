package core

import (
	"testing"

	"poolbet/internal/domain"
	"poolbet/internal/event"
	"poolbet/pkg/quant"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	owner      domain.Account = "owner"
	oracle     domain.Account = "oracle"
	oracle2    domain.Account = "oracle2"
	maintainer domain.Account = "maintainer"
	lpA        domain.Account = "lp-a"
	lpB        domain.Account = "lp-b"
	bettorB    domain.Account = "bettor-b"
	bettorC    domain.Account = "bettor-c"
	bettorD    domain.Account = "bettor-d"

	// U is one whole token in base units.
	U int64 = 1_000_000

	start    int64 = 1_700_000_000
	oneDay   int64 = 86_400
	outcomeW       = uint64(1)
	outcomeL       = uint64(2)
)

type fixture struct {
	t    *testing.T
	pool *PoolState
	rec  *event.Recorder
	now  int64
	seq  uint64
}

func newFixture(t *testing.T, mutate func(*Params)) *fixture {
	t.Helper()
	params := DefaultParams()
	params.TreeDepth = 20
	params.DefaultReinforcement = 20_000 * U
	if mutate != nil {
		mutate(&params)
	}
	f := &fixture{t: t, rec: &event.Recorder{}, now: start}
	f.pool = New(owner, params, WithSink(f.rec))
	require.NoError(t, f.pool.AddOracle(f.call(owner), oracle))
	require.NoError(t, f.pool.AddOracle(f.call(owner), oracle2))
	require.NoError(t, f.pool.AddMaintainer(f.call(owner), maintainer))
	return f
}

func (f *fixture) call(who domain.Account) Call {
	f.seq++
	return Call{Caller: who, Now: f.now, Seq: f.seq}
}

func (f *fixture) mint(who domain.Account, amount int64) {
	f.t.Helper()
	require.NoError(f.t, f.pool.Mint(f.call(owner), who, domain.AssetToken, amount))
}

func (f *fixture) deposit(who domain.Account, amount int64) uint64 {
	f.t.Helper()
	f.mint(who, amount)
	leaf, err := f.pool.AddLiquidity(f.call(who), domain.AssetToken, amount)
	require.NoError(f.t, err)
	return leaf
}

func (f *fixture) create(oracleCondID uint64, startsAt int64) uint64 {
	f.t.Helper()
	id, err := f.pool.CreateCondition(f.call(oracle), CreateConditionRequest{
		OracleConditionID: oracleCondID,
		ScopeID:           1,
		Odds:              [2]int64{5_000_000, 5_000_000},
		Outcomes:          [2]uint64{outcomeW, outcomeL},
		StartsAt:          startsAt,
		MetadataHash:      "ipfs",
	})
	require.NoError(f.t, err)
	return id
}

func (f *fixture) bet(who domain.Account, conditionID, outcome uint64, amount int64) uint64 {
	f.t.Helper()
	f.mint(who, amount)
	id, _, err := f.pool.PlaceBet(f.call(who), BetRequest{
		ConditionID: conditionID,
		Outcome:     outcome,
		Amount:      amount,
		Deadline:    f.now + 1000,
	})
	require.NoError(f.t, err)
	return id
}

func TestNew_InvalidParamsPanics(t *testing.T) {
	params := DefaultParams()
	params.DaoFee = quant.Multiplier
	assert.Panics(t, func() { New(owner, params) })
}

func TestRoles(t *testing.T) {
	f := newFixture(t, nil)

	assert.True(t, f.pool.IsOracle(oracle))
	assert.False(t, f.pool.IsOracle(maintainer))
	assert.True(t, f.pool.IsMaintainer(maintainer))

	assert.ErrorIs(t, f.pool.AddOracle(f.call(oracle), lpA), domain.ErrOnlyOwner)
	assert.ErrorIs(t, f.pool.AddMaintainer(f.call(maintainer), lpA), domain.ErrOnlyOwner)
	assert.ErrorIs(t, f.pool.RemoveMaintainer(f.call(lpA), maintainer), domain.ErrOnlyOwner)
	assert.ErrorIs(t, f.pool.RenounceOracle(f.call(maintainer)), domain.ErrOnlyOracle)

	require.NoError(t, f.pool.RenounceOracle(f.call(oracle2)))
	assert.False(t, f.pool.IsOracle(oracle2))
	require.NoError(t, f.pool.RemoveMaintainer(f.call(owner), maintainer))
	assert.False(t, f.pool.IsMaintainer(maintainer))

	roles := f.rec.OfType(event.TypeRoleChanged)
	require.Len(t, roles, 5)
	last := roles[4].(*event.RoleChangedEvent)
	assert.Equal(t, "maintainer", last.Role)
	assert.False(t, last.Granted)
}

func TestParams_Setters(t *testing.T) {
	f := newFixture(t, nil)

	assert.ErrorIs(t, f.pool.ChangeFees(f.call(maintainer), 1, 1), domain.ErrOnlyOwner)
	assert.ErrorIs(t, f.pool.ChangeFees(f.call(owner), 6e8, 4e8), domain.ErrWrongParameter)
	require.NoError(t, f.pool.ChangeFees(f.call(owner), 5e7, 0))
	assert.Equal(t, int64(5e7), f.pool.Params().DaoFee)

	assert.ErrorIs(t, f.pool.ChangeMaxBanksRatio(f.call(owner), 10_002), domain.ErrOnlyMaintainer)
	require.NoError(t, f.pool.ChangeMaxBanksRatio(f.call(maintainer), 10_002))
	assert.Equal(t, int64(10_002), f.pool.Params().MaxBanksRatio)

	assert.ErrorIs(t, f.pool.ChangeReinforcementAbility(f.call(owner), 0), domain.ErrWrongParameter)
	require.NoError(t, f.pool.ChangeReinforcementAbility(f.call(owner), quant.Multiplier))
	assert.Equal(t, quant.Multiplier, f.pool.Liquidity().Params().ReinforcementAbility)

	require.NoError(t, f.pool.ChangeMinDeposit(f.call(owner), 10))
	assert.Equal(t, int64(10), f.pool.Liquidity().Params().MinDeposit)

	assert.ErrorIs(t, f.pool.UpdateMargins(f.call(maintainer), []int64{1, 2, 3}), domain.ErrWrongDataFormat)
	assert.ErrorIs(t, f.pool.UpdateMargins(f.call(maintainer), []int64{1, quant.Multiplier}), domain.ErrWrongParameter)
	assert.ErrorIs(t, f.pool.UpdateReinforcements(f.call(owner), []int64{1, 5}), domain.ErrOnlyMaintainer)
	require.NoError(t, f.pool.UpdateReinforcements(f.call(maintainer), []int64{7, 30_000 * U, 8, 40_000 * U}))
	assert.Equal(t, 30_000*U, f.pool.reinforcementFor(7))
	assert.Equal(t, f.pool.Params().DefaultReinforcement, f.pool.reinforcementFor(1))

	changed := f.rec.OfType(event.TypeParamChanged)
	last := changed[len(changed)-1].(*event.ParamChangedEvent)
	assert.Equal(t, "reinforcement", last.Name)
	assert.Equal(t, uint64(8), last.Key)
}

func TestEvents_IdsAreStableWithinCall(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.pool.ChangeFees(f.call(owner), 1, 1))

	evs := f.rec.OfType(event.TypeParamChanged)
	require.Len(t, evs, 2)
	assert.Equal(t, evs[0].GetSeq(), evs[1].GetSeq())
	assert.NotEqual(t, evs[0].GetID(), evs[1].GetID())
}
