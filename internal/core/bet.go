package core

import (
	"math"

	"poolbet/internal/domain"
	"poolbet/internal/event"
	"poolbet/internal/odds"
	"poolbet/pkg/quant"
	"poolbet/pkg/safe"
)

// BetRequest stakes Amount on Outcome. The bet is rejected if it would be
// accepted after Deadline or below MinOdds. Beneficiary receives the bet;
// empty means the caller.
type BetRequest struct {
	ConditionID uint64         `json:"condition_id"`
	Outcome     uint64         `json:"outcome"`
	Amount      int64          `json:"amount"`
	Deadline    int64          `json:"deadline"`
	MinOdds     int64          `json:"min_odds"`
	Beneficiary domain.Account `json:"beneficiary,omitempty"`
	Asset       domain.Asset   `json:"asset"`
}

// quote validates a bet against the condition and returns the odds it
// would be accepted at.
func (p *PoolState) quote(call Call, req BetRequest) (*domain.Condition, int, int64, error) {
	c, err := p.condition(req.ConditionID)
	if err != nil {
		return nil, 0, 0, err
	}
	if call.Now > req.Deadline {
		return nil, 0, 0, domain.ErrBetExpired
	}
	if !c.IsOpen() || c.Paused || p.allStopped {
		return nil, 0, 0, domain.ErrBetNotAllowed
	}
	if call.Now >= c.StartsAt {
		return nil, 0, 0, domain.ErrConditionStarted
	}
	o, ok := c.OutcomeIndex(req.Outcome)
	if !ok {
		return nil, 0, 0, domain.ErrWrongOutcome
	}
	if req.Amount < p.params.MinBet || req.Amount <= 0 {
		return nil, 0, 0, domain.ErrSmallBet
	}
	if err := p.funds.CanCollect(call.Caller, req.Asset, req.Amount); err != nil {
		return nil, 0, 0, err
	}
	other := c.FundBank[1-o]
	if other <= 0 || !fitsBanks(c, req.Amount) || (c.FundBank[o]+req.Amount)/other > p.params.MaxBanksRatio {
		return nil, 0, 0, domain.ErrBigDifference
	}
	price := odds.Price(c.FundBank[0], c.FundBank[1], req.Amount, o, c.Margin, quant.Multiplier)
	if price < req.MinOdds {
		return nil, 0, 0, domain.ErrSmallOdds
	}
	return c, o, price, nil
}

// PlaceBet accepts a stake at the current odds and returns the bet id and
// the odds fixed for it.
func (p *PoolState) PlaceBet(call Call, req BetRequest) (uint64, int64, error) {
	c, o, price, err := p.quote(call, req)
	if err != nil {
		return 0, 0, err
	}
	owner := req.Beneficiary
	if owner == "" {
		owner = call.Caller
	}
	if owner == domain.PoolAccount {
		return 0, 0, domain.ErrWrongParameter
	}

	p.begin(call)
	if err := p.funds.Collect(call.Caller, req.Asset, req.Amount); err != nil {
		return 0, 0, err
	}
	payout := quant.ApplyOdds(req.Amount, price)
	c.FundBank[o] = safe.SafeAdd(c.FundBank[o], req.Amount)
	c.FundBank[1-o] = safe.SafeSub(c.FundBank[1-o], payout-req.Amount)
	c.TotalNetBets[o] = safe.SafeAdd(c.TotalNetBets[o], req.Amount)
	c.Payouts[o] = safe.SafeAdd(c.Payouts[o], payout)
	p.outstanding = safe.SafeAdd(p.outstanding, req.Amount)

	id := p.betTokens.Mint(owner)
	p.bets[id] = &domain.Bet{
		ID:          id,
		ConditionID: c.ID,
		Outcome:     req.Outcome,
		Amount:      req.Amount,
		Odds:        price,
		CreatedAt:   call.Now,
		Asset:       req.Asset,
	}
	p.emit(&event.NewBetEvent{
		Owner:       owner,
		BetID:       id,
		ConditionID: c.ID,
		Outcome:     req.Outcome,
		Amount:      req.Amount,
		Odds:        price,
		FundBank:    c.FundBank,
	}, event.TypeNewBet)
	return id, price, nil
}

// CalculateOdds returns the odds a stake of amount on outcome would get now.
func (p *PoolState) CalculateOdds(conditionID uint64, amount int64, outcome uint64) (int64, error) {
	c, err := p.condition(conditionID)
	if err != nil {
		return 0, err
	}
	o, ok := c.OutcomeIndex(outcome)
	if !ok {
		return 0, domain.ErrWrongOutcome
	}
	if amount < 0 {
		return 0, domain.ErrSmallBet
	}
	if !fitsBanks(c, amount) {
		return 0, domain.ErrBigDifference
	}
	return odds.Price(c.FundBank[0], c.FundBank[1], amount, o, c.Margin, quant.Multiplier), nil
}

// fitsBanks reports whether amount can be added to both banks of c without
// leaving int64.
func fitsBanks(c *domain.Condition, amount int64) bool {
	return amount <= math.MaxInt64-c.FundBank[0]-c.FundBank[1]
}

// ViewPayout reports what withdrawing the bet would pay now.
func (p *PoolState) ViewPayout(betID uint64) (bool, int64, error) {
	b, ok := p.bets[betID]
	if !ok {
		return false, 0, domain.ErrBetNotExists
	}
	win, amount := p.payoutOf(b)
	return win, amount, nil
}

func (p *PoolState) payoutOf(b *domain.Bet) (bool, int64) {
	if b.Withdrawn {
		return false, 0
	}
	c := p.conditions[b.ConditionID]
	switch {
	case c.State == domain.ConditionCanceled:
		return true, b.Amount
	case c.State == domain.ConditionResolved && c.OutcomeWin == b.Outcome:
		return true, quant.ApplyOdds(b.Amount, b.Odds)
	}
	return false, 0
}

// WithdrawPayout pays a won or refunded bet to its holder. A bet pays at
// most once.
func (p *PoolState) WithdrawPayout(call Call, betID uint64, asset domain.Asset) (int64, error) {
	b, ok := p.bets[betID]
	if !ok {
		return 0, domain.ErrBetNotExists
	}
	if err := p.betTokens.CheckOwner(call.Caller, betID); err != nil {
		return 0, err
	}
	if p.conditions[b.ConditionID].IsOpen() {
		return 0, domain.ErrConditionNotStarted
	}
	_, amount := p.payoutOf(b)
	if amount == 0 {
		return 0, domain.ErrNoWinNoPrize
	}
	if err := p.funds.CanPay(amount); err != nil {
		return 0, err
	}

	p.begin(call)
	b.Withdrawn = true
	p.outstanding = safe.SafeSub(p.outstanding, amount)
	p.emit(&event.BetterWinEvent{Account: call.Caller, BetID: betID, Amount: amount}, event.TypeBetterWin)
	if err := p.funds.Pay(call.Caller, asset, amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// GetBet returns a copy of a bet.
func (p *PoolState) GetBet(id uint64) (domain.Bet, error) {
	b, ok := p.bets[id]
	if !ok {
		return domain.Bet{}, domain.ErrBetNotExists
	}
	return *b, nil
}

// BetOwner returns the current holder of a bet.
func (p *PoolState) BetOwner(id uint64) (domain.Account, bool) {
	return p.betTokens.OwnerOf(id)
}
