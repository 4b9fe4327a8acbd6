package core

import (
	"poolbet/internal/domain"
	"poolbet/internal/event"
	"poolbet/pkg/quant"
)

type profitSplit struct {
	dao    int64 // new DAO counter
	oracle int64 // new counter of the resolving oracle
	tree   int64 // delta for depositors
}

func positive(v int64) int64 { return max(v, 0) }

// splitProfit charges fees on a condition's result. Counters move by their
// fee share in both directions; depositors get the result less whatever
// became claimable, so a loss first eats into rewards not yet claimed.
func (p *PoolState) splitProfit(oracle domain.Account, profit int64) profitSplit {
	oldDao, oldOracle := p.daoReward, p.oracleRewards[oracle]
	s := profitSplit{
		dao:    oldDao + quant.MulDivSigned(profit, p.params.DaoFee, quant.Multiplier),
		oracle: oldOracle + quant.MulDivSigned(profit, p.params.OracleFee, quant.Multiplier),
	}
	s.tree = profit -
		(positive(s.dao) - positive(oldDao)) -
		(positive(s.oracle) - positive(oldOracle))
	return s
}

// Rewards are the fee counters. Negative values are losses to be earned back
// before anything becomes claimable.
type Rewards struct {
	Dao    int64                    `json:"dao"`
	Oracle map[domain.Account]int64 `json:"oracle"`
}

func (p *PoolState) Rewards() Rewards {
	r := Rewards{Dao: p.daoReward, Oracle: make(map[domain.Account]int64, len(p.oracleRewards))}
	for k, v := range p.oracleRewards {
		r.Oracle[k] = v
	}
	return r
}

func (p *PoolState) claimable() int64 {
	total := positive(p.daoReward)
	for _, v := range p.oracleRewards {
		total += positive(v)
	}
	return total
}

// ClaimDaoReward pays the positive DAO counter to the owner.
func (p *PoolState) ClaimDaoReward(call Call) (int64, error) {
	if err := p.onlyOwner(call); err != nil {
		return 0, err
	}
	if p.daoReward <= 0 {
		return 0, domain.ErrNoDaoReward
	}
	if next := p.lastDaoClaim + p.params.ClaimTimeout; p.lastDaoClaim != 0 && call.Now < next {
		return 0, domain.ErrClaimTimeout.With(next)
	}
	amount := p.daoReward
	if err := p.funds.CanPay(amount); err != nil {
		return 0, err
	}
	p.begin(call)
	p.daoReward = 0
	p.lastDaoClaim = call.Now
	p.emit(&event.RewardClaimedEvent{Account: call.Caller, Kind: "dao", Amount: amount}, event.TypeRewardClaimed)
	if err := p.funds.Pay(call.Caller, domain.AssetToken, amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// ClaimOracleReward pays the caller's positive oracle counter. An oracle
// that renounced its role can still claim.
func (p *PoolState) ClaimOracleReward(call Call) (int64, error) {
	amount := p.oracleRewards[call.Caller]
	if amount <= 0 {
		return 0, domain.ErrNoOracleReward
	}
	last := p.lastClaims[call.Caller]
	if next := last + p.params.ClaimTimeout; last != 0 && call.Now < next {
		return 0, domain.ErrClaimTimeout.With(next)
	}
	if err := p.funds.CanPay(amount); err != nil {
		return 0, err
	}
	p.begin(call)
	p.oracleRewards[call.Caller] = 0
	p.lastClaims[call.Caller] = call.Now
	p.emit(&event.RewardClaimedEvent{Account: call.Caller, Kind: "oracle", Amount: amount}, event.TypeRewardClaimed)
	if err := p.funds.Pay(call.Caller, domain.AssetToken, amount); err != nil {
		return 0, err
	}
	return amount, nil
}
