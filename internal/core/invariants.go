package core

import (
	"fmt"
	"sort"

	"poolbet/internal/domain"
	"poolbet/internal/liquidity"
	"poolbet/pkg/safe"
)

// VerifyInvariants panics if the books do not balance. Every token the pool
// holds is owed to depositors, to reward counters or to bettors.
func (p *PoolState) VerifyInvariants() {
	p.liq.VerifyInvariant()
	p.funds.Verify()
	for _, ext := range p.extensions {
		ext.Verify()
	}

	var locked int64
	for _, c := range p.conditions {
		if c.IsOpen() {
			locked = safe.SafeAdd(locked, c.Reinforcement)
		}
	}
	if locked != p.liq.Locked() {
		panic(fmt.Sprintf("POOL_INVARIANT_LOCKED: conditions=%d pool=%d", locked, p.liq.Locked()))
	}
	if p.outstanding < 0 {
		panic(fmt.Sprintf("POOL_INVARIANT_NEGATIVE_OUTSTANDING: %d", p.outstanding))
	}

	owed := safe.SafeAdd(safe.SafeAdd(p.liq.Total(), p.claimable()), p.outstanding)
	if held := p.funds.PoolBalance(); held != owed {
		panic(fmt.Sprintf("POOL_INVARIANT_BALANCE: held=%d owed=%d (liquidity=%d rewards=%d bets=%d)",
			held, owed, p.liq.Total(), p.claimable(), p.outstanding))
	}
}

// Outstanding is what the pool owes bettors: stakes on open conditions plus
// unclaimed payouts and refunds.
func (p *PoolState) Outstanding() int64 { return p.outstanding }

// Snapshot is a full copy of the pool for state dumps and reports.
type Snapshot struct {
	Params      Params                    `json:"params"`
	Total       int64                     `json:"total"`
	Locked      int64                     `json:"locked"`
	Outstanding int64                     `json:"outstanding"`
	AllStopped  bool                      `json:"all_stopped"`
	Owner       domain.Account            `json:"owner"`
	Oracles     []domain.Account          `json:"oracles"`
	Maintainers []domain.Account          `json:"maintainers"`
	Rewards     Rewards                   `json:"rewards"`
	Conditions  []domain.Condition        `json:"conditions"`
	Bets        []domain.Bet              `json:"bets"`
	Positions   []domain.DepositPosition  `json:"positions"`
	Balances    []domain.Balance          `json:"balances"`
	Tree        map[uint64]liquidity.Node `json:"tree"`
	Log         []liquidity.LogEntry      `json:"log"`
}

func sortedAccounts(set map[domain.Account]bool) []domain.Account {
	out := make([]domain.Account, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (p *PoolState) Snapshot() Snapshot {
	bets := make([]domain.Bet, 0, len(p.bets))
	for _, b := range p.bets {
		bets = append(bets, *b)
	}
	sort.Slice(bets, func(i, j int) bool { return bets[i].ID < bets[j].ID })

	return Snapshot{
		Params:      p.params,
		Total:       p.liq.Total(),
		Locked:      p.liq.Locked(),
		Outstanding: p.outstanding,
		AllStopped:  p.allStopped,
		Owner:       p.owner,
		Oracles:     sortedAccounts(p.oracles),
		Maintainers: sortedAccounts(p.maintainers),
		Rewards:     p.Rewards(),
		Conditions:  p.Conditions(),
		Bets:        bets,
		Positions:   p.liq.Positions(),
		Balances:    p.funds.Snapshot(),
		Tree:        p.liq.Tree().Snapshot(),
		Log:         p.liq.Tree().Log().Entries(),
	}
}
