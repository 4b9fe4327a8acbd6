package core

import (
	"poolbet/internal/domain"
	"poolbet/internal/event"
	"poolbet/pkg/quant"
)

// change validates a parameter change, applies it and emits ParamChanged.
func (p *PoolState) change(call Call, auth func(Call) error, name string, key uint64, value int64, ok bool, apply func()) error {
	if err := auth(call); err != nil {
		return err
	}
	if !ok {
		return domain.ErrWrongParameter
	}
	p.begin(call)
	apply()
	p.emit(&event.ParamChangedEvent{Name: name, Key: key, Value: value}, event.TypeParamChanged)
	return nil
}

// ChangeFees sets the DAO and oracle shares of condition profit.
func (p *PoolState) ChangeFees(call Call, dao, oracle int64) error {
	if err := p.onlyOwner(call); err != nil {
		return err
	}
	if dao < 0 || oracle < 0 || dao+oracle >= quant.Multiplier {
		return domain.ErrWrongParameter
	}
	p.begin(call)
	p.params.DaoFee, p.params.OracleFee = dao, oracle
	p.emit(&event.ParamChangedEvent{Name: "dao_fee", Value: dao}, event.TypeParamChanged)
	p.emit(&event.ParamChangedEvent{Name: "oracle_fee", Value: oracle}, event.TypeParamChanged)
	return nil
}

// ChangeReinforcementAbility sets the share of liquidity conditions may lock.
func (p *PoolState) ChangeReinforcementAbility(call Call, v int64) error {
	return p.change(call, p.onlyOwner, "reinforcement_ability", 0, v, v > 0 && v <= quant.Multiplier, func() {
		p.params.Liquidity.ReinforcementAbility = v
		p.liq.SetParams(p.params.Liquidity)
	})
}

func (p *PoolState) ChangeMinDeposit(call Call, v int64) error {
	return p.change(call, p.onlyOwner, "min_deposit", 0, v, v > 0, func() {
		p.params.Liquidity.MinDeposit = v
		p.liq.SetParams(p.params.Liquidity)
	})
}

// ChangeWithdrawTimeout applies to deposits made after the change.
func (p *PoolState) ChangeWithdrawTimeout(call Call, v int64) error {
	return p.change(call, p.onlyOwner, "withdraw_timeout", 0, v, v >= 0, func() {
		p.params.Liquidity.WithdrawTimeout = v
		p.liq.SetParams(p.params.Liquidity)
	})
}

func (p *PoolState) ChangeClaimTimeout(call Call, v int64) error {
	return p.change(call, p.onlyOwner, "claim_timeout", 0, v, v >= 0, func() {
		p.params.ClaimTimeout = v
	})
}

func (p *PoolState) ChangeMinBet(call Call, v int64) error {
	return p.change(call, p.onlyOwner, "min_bet", 0, v, v > 0, func() {
		p.params.MinBet = v
	})
}

func (p *PoolState) ChangeSettlementDelay(call Call, v int64) error {
	return p.change(call, p.onlyOwner, "settlement_delay", 0, v, v >= 0, func() {
		p.params.SettlementDelay = v
	})
}

// ChangeResolveTimeout sets how long after the settlement delay an oracle
// may still resolve. Zero disables the limit.
func (p *PoolState) ChangeResolveTimeout(call Call, v int64) error {
	return p.change(call, p.onlyOwner, "resolve_timeout", 0, v, v >= 0, func() {
		p.params.ResolveTimeout = v
	})
}

func (p *PoolState) ChangeDefaultReinforcement(call Call, v int64) error {
	return p.change(call, p.onlyMaintainer, "default_reinforcement", 0, v, v > 0, func() {
		p.params.DefaultReinforcement = v
	})
}

func (p *PoolState) ChangeDefaultMargin(call Call, v int64) error {
	return p.change(call, p.onlyMaintainer, "default_margin", 0, v, v >= 0 && v < quant.Multiplier, func() {
		p.params.DefaultMargin = v
	})
}

func (p *PoolState) ChangeMaxBanksRatio(call Call, v int64) error {
	return p.change(call, p.onlyMaintainer, "max_banks_ratio", 0, v, v > 0, func() {
		p.params.MaxBanksRatio = v
	})
}

// UpdateReinforcements sets per-outcome reinforcement overrides from a flat
// [outcome, value, outcome, value, ...] list.
func (p *PoolState) UpdateReinforcements(call Call, data []int64) error {
	return p.updateOverrides(call, "reinforcement", p.reinforcements, data, func(v int64) bool { return v > 0 })
}

// UpdateMargins sets per-outcome margin overrides from a flat
// [outcome, value, outcome, value, ...] list.
func (p *PoolState) UpdateMargins(call Call, data []int64) error {
	return p.updateOverrides(call, "margin", p.margins, data, func(v int64) bool { return v >= 0 && v < quant.Multiplier })
}

func (p *PoolState) updateOverrides(call Call, name string, dst map[uint64]int64, data []int64, valid func(int64) bool) error {
	if err := p.onlyMaintainer(call); err != nil {
		return err
	}
	if len(data)%2 != 0 {
		return domain.ErrWrongDataFormat
	}
	for i := 0; i < len(data); i += 2 {
		if data[i] < 0 || !valid(data[i+1]) {
			return domain.ErrWrongParameter
		}
	}
	p.begin(call)
	for i := 0; i < len(data); i += 2 {
		outcome := uint64(data[i])
		dst[outcome] = data[i+1]
		p.emit(&event.ParamChangedEvent{Name: name, Key: outcome, Value: data[i+1]}, event.TypeParamChanged)
	}
	return nil
}

func (p *PoolState) reinforcementFor(outcome uint64) int64 {
	if v, ok := p.reinforcements[outcome]; ok {
		return v
	}
	return p.params.DefaultReinforcement
}

func (p *PoolState) marginFor(outcome uint64) int64 {
	if v, ok := p.margins[outcome]; ok {
		return v
	}
	return p.params.DefaultMargin
}
