package engine

import (
	"encoding/json"
	"fmt"

	"poolbet/internal/core"
	"poolbet/internal/domain"
)

// Command is one state-changing pool call. Commands are plain data so they
// can be journaled as JSON and applied again on replay.
type Command interface {
	Name() string
	Apply(p *core.PoolState, call core.Call) (any, error)
}

var commands = map[string]func() Command{
	"mint":                    func() Command { return &Mint{} },
	"addOracle":               func() Command { return &AddOracle{} },
	"renounceOracle":          func() Command { return &RenounceOracle{} },
	"addMaintainer":           func() Command { return &AddMaintainer{} },
	"removeMaintainer":        func() Command { return &RemoveMaintainer{} },
	"setParam":                func() Command { return &SetParam{} },
	"addLiquidity":            func() Command { return &AddLiquidity{} },
	"addLiquidityNative":      func() Command { return &AddLiquidity{Asset: domain.AssetNative} },
	"withdrawLiquidity":       func() Command { return &WithdrawLiquidity{} },
	"withdrawLiquidityNative": func() Command { return &WithdrawLiquidity{Asset: domain.AssetNative} },
	"transferPosition":        func() Command { return &TransferPosition{} },
	"createCondition":         func() Command { return &CreateCondition{} },
	"resolveCondition":        func() Command { return &ResolveCondition{} },
	"cancelCondition":         func() Command { return &CancelCondition{} },
	"cancelByMaintainer":      func() Command { return &CancelByMaintainer{} },
	"shiftCondition":          func() Command { return &ShiftCondition{} },
	"stopCondition":           func() Command { return &StopCondition{} },
	"stopAllConditions":       func() Command { return &StopAllConditions{} },
	"bet":                     func() Command { return &PlaceBet{} },
	"betFor":                  func() Command { return &PlaceBet{} },
	"betNative":               func() Command { return &PlaceBet{BetRequest: core.BetRequest{Asset: domain.AssetNative}} },
	"withdrawPayout":          func() Command { return &WithdrawPayout{} },
	"withdrawPayoutNative":    func() Command { return &WithdrawPayout{Asset: domain.AssetNative} },
	"claimDaoReward":          func() Command { return &ClaimDaoReward{} },
	"claimOracleReward":       func() Command { return &ClaimOracleReward{} },
	"fundFreeBets":            func() Command { return &FundFreeBets{} },
	"withdrawReserve":         func() Command { return &WithdrawReserve{} },
	"mintFreeBet":             func() Command { return &MintFreeBet{} },
	"mintFreeBetBatch":        func() Command { return &MintFreeBetBatch{} },
	"transferFreeBet":         func() Command { return &TransferFreeBet{} },
	"burnExpiredFreeBets":     func() Command { return &BurnExpiredFreeBets{} },
	"redeemFreeBet":           func() Command { return &RedeemFreeBet{} },
	"resolveFreeBetPayout":    func() Command { return &ResolveFreeBetPayout{} },
	"withdrawFreeBetPayout":   func() Command { return &WithdrawFreeBetPayout{} },
}

// Decode builds a command from its name and JSON payload.
func Decode(name string, payload []byte) (Command, error) {
	newCmd, ok := commands[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCommand, name)
	}
	cmd := newCmd()
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, cmd); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", name, err)
		}
	}
	return cmd, nil
}

// Names lists every command Decode accepts.
func Names() []string {
	out := make([]string, 0, len(commands))
	for name := range commands {
		out = append(out, name)
	}
	return out
}

// BetResult is what a placed bet returns.
type BetResult struct {
	BetID uint64 `json:"bet_id"`
	Odds  int64  `json:"odds"`
}

type Mint struct {
	To     domain.Account `json:"to"`
	Asset  domain.Asset   `json:"asset"`
	Amount int64          `json:"amount"`
}

func (c *Mint) Name() string { return "mint" }

func (c *Mint) Apply(p *core.PoolState, call core.Call) (any, error) {
	return nil, p.Mint(call, c.To, c.Asset, c.Amount)
}

type AddOracle struct {
	Account domain.Account `json:"account"`
}

func (c *AddOracle) Name() string { return "addOracle" }

func (c *AddOracle) Apply(p *core.PoolState, call core.Call) (any, error) {
	return nil, p.AddOracle(call, c.Account)
}

type RenounceOracle struct{}

func (c *RenounceOracle) Name() string { return "renounceOracle" }

func (c *RenounceOracle) Apply(p *core.PoolState, call core.Call) (any, error) {
	return nil, p.RenounceOracle(call)
}

type AddMaintainer struct {
	Account domain.Account `json:"account"`
}

func (c *AddMaintainer) Name() string { return "addMaintainer" }

func (c *AddMaintainer) Apply(p *core.PoolState, call core.Call) (any, error) {
	return nil, p.AddMaintainer(call, c.Account)
}

type RemoveMaintainer struct {
	Account domain.Account `json:"account"`
}

func (c *RemoveMaintainer) Name() string { return "removeMaintainer" }

func (c *RemoveMaintainer) Apply(p *core.PoolState, call core.Call) (any, error) {
	return nil, p.RemoveMaintainer(call, c.Account)
}

// SetParam changes one pool parameter. "fees" takes [dao, oracle] in Values;
// "reinforcements" and "margins" take flat [outcome, value, ...] lists.
type SetParam struct {
	Param  string  `json:"param"`
	Value  int64   `json:"value,omitempty"`
	Values []int64 `json:"values,omitempty"`
}

func (c *SetParam) Name() string { return "setParam" }

func (c *SetParam) Apply(p *core.PoolState, call core.Call) (any, error) {
	switch c.Param {
	case "fees":
		if len(c.Values) != 2 {
			return nil, domain.ErrWrongDataFormat
		}
		return nil, p.ChangeFees(call, c.Values[0], c.Values[1])
	case "reinforcements":
		return nil, p.UpdateReinforcements(call, c.Values)
	case "margins":
		return nil, p.UpdateMargins(call, c.Values)
	case "reinforcement_ability":
		return nil, p.ChangeReinforcementAbility(call, c.Value)
	case "min_deposit":
		return nil, p.ChangeMinDeposit(call, c.Value)
	case "withdraw_timeout":
		return nil, p.ChangeWithdrawTimeout(call, c.Value)
	case "claim_timeout":
		return nil, p.ChangeClaimTimeout(call, c.Value)
	case "min_bet":
		return nil, p.ChangeMinBet(call, c.Value)
	case "settlement_delay":
		return nil, p.ChangeSettlementDelay(call, c.Value)
	case "resolve_timeout":
		return nil, p.ChangeResolveTimeout(call, c.Value)
	case "default_reinforcement":
		return nil, p.ChangeDefaultReinforcement(call, c.Value)
	case "default_margin":
		return nil, p.ChangeDefaultMargin(call, c.Value)
	case "max_banks_ratio":
		return nil, p.ChangeMaxBanksRatio(call, c.Value)
	}
	return nil, domain.ErrWrongParameter
}

type AddLiquidity struct {
	Amount int64        `json:"amount"`
	Asset  domain.Asset `json:"asset"`
}

func (c *AddLiquidity) Name() string { return "addLiquidity" }

func (c *AddLiquidity) Apply(p *core.PoolState, call core.Call) (any, error) {
	return p.AddLiquidity(call, c.Asset, c.Amount)
}

type WithdrawLiquidity struct {
	Leaf     uint64       `json:"leaf"`
	Fraction int64        `json:"fraction"`
	Asset    domain.Asset `json:"asset"`
}

func (c *WithdrawLiquidity) Name() string { return "withdrawLiquidity" }

func (c *WithdrawLiquidity) Apply(p *core.PoolState, call core.Call) (any, error) {
	return p.WithdrawLiquidity(call, c.Leaf, c.Fraction, c.Asset)
}

type TransferPosition struct {
	Kind string         `json:"kind"`
	ID   uint64         `json:"id"`
	To   domain.Account `json:"to"`
}

func (c *TransferPosition) Name() string { return "transferPosition" }

func (c *TransferPosition) Apply(p *core.PoolState, call core.Call) (any, error) {
	return nil, p.TransferPosition(call, c.Kind, c.ID, c.To)
}

type CreateCondition struct {
	core.CreateConditionRequest
}

func (c *CreateCondition) Name() string { return "createCondition" }

func (c *CreateCondition) Apply(p *core.PoolState, call core.Call) (any, error) {
	return p.CreateCondition(call, c.CreateConditionRequest)
}

type ResolveCondition struct {
	OracleConditionID uint64 `json:"oracle_condition_id"`
	Outcome           uint64 `json:"outcome"`
}

func (c *ResolveCondition) Name() string { return "resolveCondition" }

func (c *ResolveCondition) Apply(p *core.PoolState, call core.Call) (any, error) {
	return nil, p.ResolveCondition(call, c.OracleConditionID, c.Outcome)
}

type CancelCondition struct {
	OracleConditionID uint64 `json:"oracle_condition_id"`
}

func (c *CancelCondition) Name() string { return "cancelCondition" }

func (c *CancelCondition) Apply(p *core.PoolState, call core.Call) (any, error) {
	return nil, p.CancelByOracle(call, c.OracleConditionID)
}

type CancelByMaintainer struct {
	ConditionID uint64 `json:"condition_id"`
}

func (c *CancelByMaintainer) Name() string { return "cancelByMaintainer" }

func (c *CancelByMaintainer) Apply(p *core.PoolState, call core.Call) (any, error) {
	return nil, p.CancelByMaintainer(call, c.ConditionID)
}

type ShiftCondition struct {
	OracleConditionID uint64 `json:"oracle_condition_id"`
	StartsAt          int64  `json:"starts_at"`
}

func (c *ShiftCondition) Name() string { return "shiftCondition" }

func (c *ShiftCondition) Apply(p *core.PoolState, call core.Call) (any, error) {
	return nil, p.ShiftCondition(call, c.OracleConditionID, c.StartsAt)
}

type StopCondition struct {
	ConditionID uint64 `json:"condition_id"`
	Flag        bool   `json:"flag"`
}

func (c *StopCondition) Name() string { return "stopCondition" }

func (c *StopCondition) Apply(p *core.PoolState, call core.Call) (any, error) {
	return nil, p.StopCondition(call, c.ConditionID, c.Flag)
}

type StopAllConditions struct {
	Flag bool `json:"flag"`
}

func (c *StopAllConditions) Name() string { return "stopAllConditions" }

func (c *StopAllConditions) Apply(p *core.PoolState, call core.Call) (any, error) {
	return nil, p.StopAllConditions(call, c.Flag)
}

type PlaceBet struct {
	core.BetRequest
}

func (c *PlaceBet) Name() string { return "bet" }

func (c *PlaceBet) Apply(p *core.PoolState, call core.Call) (any, error) {
	id, odds, err := p.PlaceBet(call, c.BetRequest)
	if err != nil {
		return nil, err
	}
	return BetResult{BetID: id, Odds: odds}, nil
}

type WithdrawPayout struct {
	BetID uint64       `json:"bet_id"`
	Asset domain.Asset `json:"asset"`
}

func (c *WithdrawPayout) Name() string { return "withdrawPayout" }

func (c *WithdrawPayout) Apply(p *core.PoolState, call core.Call) (any, error) {
	return p.WithdrawPayout(call, c.BetID, c.Asset)
}

type ClaimDaoReward struct{}

func (c *ClaimDaoReward) Name() string { return "claimDaoReward" }

func (c *ClaimDaoReward) Apply(p *core.PoolState, call core.Call) (any, error) {
	return p.ClaimDaoReward(call)
}

type ClaimOracleReward struct{}

func (c *ClaimOracleReward) Name() string { return "claimOracleReward" }

func (c *ClaimOracleReward) Apply(p *core.PoolState, call core.Call) (any, error) {
	return p.ClaimOracleReward(call)
}
