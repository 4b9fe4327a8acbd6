package service

import (
	"testing"

	"poolbet/internal/core"
	"poolbet/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	u        int64 = 1_000_000
	now      int64 = 1_700_000_000
	startsAt int64 = now + 86_400
)

type market struct {
	t    *testing.T
	pool *core.PoolState
	svc  *MarketService
	seq  uint64
	id   uint64
}

func (m *market) call(who domain.Account, at int64) core.Call {
	m.seq++
	return core.Call{Caller: who, Now: at, Seq: m.seq}
}

func (m *market) bet(who domain.Account, outcome uint64, amount int64) {
	m.t.Helper()
	require.NoError(m.t, m.pool.Mint(m.call("owner", now), who, domain.AssetToken, amount))
	_, _, err := m.pool.PlaceBet(m.call(who, now), core.BetRequest{
		ConditionID: m.id,
		Outcome:     outcome,
		Amount:      amount,
		Deadline:    now + 100,
	})
	require.NoError(m.t, err)
}

func newMarket(t *testing.T) *market {
	t.Helper()
	params := core.DefaultParams()
	params.TreeDepth = 16
	params.DefaultReinforcement = 20_000 * u

	m := &market{t: t, svc: NewMarketService()}
	m.pool = core.New("owner", params, core.WithSink(m.svc))
	require.NoError(t, m.pool.AddOracle(m.call("owner", now), "oracle"))
	require.NoError(t, m.pool.AddMaintainer(m.call("owner", now), "maintainer"))
	require.NoError(t, m.pool.Mint(m.call("owner", now), "lp", domain.AssetToken, 100_000*u))
	_, err := m.pool.AddLiquidity(m.call("lp", now), domain.AssetToken, 100_000*u)
	require.NoError(t, err)

	m.id, err = m.pool.CreateCondition(m.call("oracle", now), core.CreateConditionRequest{
		OracleConditionID: 1,
		Odds:              [2]int64{1, 1},
		Outcomes:          [2]uint64{10, 20},
		StartsAt:          startsAt,
	})
	require.NoError(t, err)
	return m
}

func TestMarketService_TracksPool(t *testing.T) {
	m := newMarket(t)

	got, ok := m.svc.GetMarket(m.id)
	require.True(t, ok)
	assert.Equal(t, [2]int64{10_000 * u, 10_000 * u}, got.FundBank)
	assert.Equal(t, got.Odds[0], got.Odds[1])
	assert.Equal(t, domain.ConditionCreated, got.State)

	m.bet("bob", 10, 5_000*u)
	m.bet("carol", 20, 1_000*u)

	got, _ = m.svc.GetMarket(m.id)
	cond, err := m.pool.GetCondition(m.id)
	require.NoError(t, err)
	assert.Equal(t, cond.FundBank, got.FundBank)
	assert.Equal(t, 2, got.BetCount)

	for _, outcome := range []uint64{10, 20} {
		for _, amount := range []int64{1, 700 * u, 3_000 * u} {
			want, err := m.pool.CalculateOdds(m.id, amount, outcome)
			require.NoError(t, err)
			quoted, err := m.svc.Quote(m.id, outcome, amount)
			require.NoError(t, err)
			assert.Equal(t, want, quoted, "outcome %d amount %d", outcome, amount)
		}
	}
	assert.Less(t, got.Odds[0], got.Odds[1])

	_, err = m.svc.Quote(m.id, 30, 1)
	assert.ErrorIs(t, err, domain.ErrWrongOutcome)
	_, err = m.svc.Quote(99, 10, 1)
	assert.ErrorIs(t, err, domain.ErrConditionNotExists)
}

func TestMarketService_StateChanges(t *testing.T) {
	m := newMarket(t)

	require.NoError(t, m.pool.StopCondition(m.call("maintainer", now), m.id, true))
	got, _ := m.svc.GetMarket(m.id)
	assert.True(t, got.Paused)

	require.NoError(t, m.pool.StopCondition(m.call("maintainer", now), m.id, false))
	require.NoError(t, m.pool.ResolveCondition(m.call("oracle", startsAt+3600), 1, 20))

	got, _ = m.svc.GetMarket(m.id)
	assert.False(t, got.Paused)
	assert.Equal(t, domain.ConditionResolved, got.State)
	assert.Equal(t, uint64(20), got.OutcomeWin)
	assert.Len(t, m.svc.Markets(), 1)
}

func TestMarketService_Alerts(t *testing.T) {
	m := newMarket(t)
	initial, _ := m.svc.GetMarket(m.id)

	once := domain.NewOddsAlert(m.id, 10, initial.Odds[0]-1, initial.Odds[0], false)
	sticky := domain.NewOddsAlert(m.id, 20, initial.Odds[1]+1, initial.Odds[1], true)
	other := domain.NewOddsAlert(m.id+1, 10, 0, 1, true)
	m.svc.AddAlert(once)
	m.svc.AddAlert(sticky)
	m.svc.AddAlert(other)

	// Shortens outcome 10 and lengthens outcome 20.
	m.bet("bob", 10, 2_000*u)
	m.bet("bob", 10, 2_000*u)

	var hits []AlertHit
	for len(m.svc.GetAlertChan()) > 0 {
		hits = append(hits, <-m.svc.GetAlertChan())
	}

	require.Len(t, hits, 3)
	assert.Equal(t, uint64(10), hits[0].Alert.Outcome)
	assert.Equal(t, uint64(20), hits[1].Alert.Outcome)
	assert.Equal(t, uint64(20), hits[2].Alert.Outcome)
	assert.Less(t, hits[0].Odds, initial.Odds[0])
	assert.False(t, once.IsActive())
	assert.True(t, sticky.IsActive())
}

func TestDisplayOdds(t *testing.T) {
	d := DisplayOdds(domain.MarketState{Odds: [2]int64{1_950_000_000, 2_000_000_000}})
	assert.True(t, d[0].Equal(decimal.RequireFromString("1.95")))
	assert.Equal(t, "2", d[1].String())
}
