package engine

import (
	"poolbet/internal/core"
	"poolbet/internal/domain"
	"poolbet/internal/freebet"
)

// Free bet commands fail with domain.ErrFreeBetDisabled on a pool without
// a free bet manager.

type FundFreeBets struct {
	Amount int64 `json:"amount"`
}

func (c *FundFreeBets) Name() string { return "fundFreeBets" }

func (c *FundFreeBets) Apply(p *core.PoolState, call core.Call) (any, error) {
	m, err := freebet.From(p)
	if err != nil {
		return nil, err
	}
	return nil, m.Fund(call, c.Amount)
}

type WithdrawReserve struct {
	Amount int64 `json:"amount"`
}

func (c *WithdrawReserve) Name() string { return "withdrawReserve" }

func (c *WithdrawReserve) Apply(p *core.PoolState, call core.Call) (any, error) {
	m, err := freebet.From(p)
	if err != nil {
		return nil, err
	}
	return nil, m.WithdrawReserve(call, c.Amount)
}

type MintFreeBet struct {
	To    domain.Account `json:"to"`
	Terms freebet.Terms  `json:"terms"`
}

func (c *MintFreeBet) Name() string { return "mintFreeBet" }

func (c *MintFreeBet) Apply(p *core.PoolState, call core.Call) (any, error) {
	m, err := freebet.From(p)
	if err != nil {
		return nil, err
	}
	return m.Mint(call, c.To, c.Terms)
}

type MintFreeBetBatch struct {
	To    []domain.Account `json:"to"`
	Terms []freebet.Terms  `json:"terms"`
}

func (c *MintFreeBetBatch) Name() string { return "mintFreeBetBatch" }

func (c *MintFreeBetBatch) Apply(p *core.PoolState, call core.Call) (any, error) {
	m, err := freebet.From(p)
	if err != nil {
		return nil, err
	}
	return m.MintBatch(call, c.To, c.Terms)
}

type TransferFreeBet struct {
	FreeBetID uint64         `json:"freebet_id"`
	To        domain.Account `json:"to"`
}

func (c *TransferFreeBet) Name() string { return "transferFreeBet" }

func (c *TransferFreeBet) Apply(p *core.PoolState, call core.Call) (any, error) {
	m, err := freebet.From(p)
	if err != nil {
		return nil, err
	}
	return nil, m.Transfer(call, c.FreeBetID, c.To)
}

type BurnExpiredFreeBets struct {
	IDs []uint64 `json:"ids"`
}

func (c *BurnExpiredFreeBets) Name() string { return "burnExpiredFreeBets" }

func (c *BurnExpiredFreeBets) Apply(p *core.PoolState, call core.Call) (any, error) {
	m, err := freebet.From(p)
	if err != nil {
		return nil, err
	}
	return nil, m.BurnExpired(call, c.IDs)
}

type RedeemFreeBet struct {
	freebet.RedeemRequest
}

func (c *RedeemFreeBet) Name() string { return "redeemFreeBet" }

func (c *RedeemFreeBet) Apply(p *core.PoolState, call core.Call) (any, error) {
	m, err := freebet.From(p)
	if err != nil {
		return nil, err
	}
	id, odds, err := m.Redeem(call, c.RedeemRequest)
	if err != nil {
		return nil, err
	}
	return BetResult{BetID: id, Odds: odds}, nil
}

type ResolveFreeBetPayout struct {
	BetID uint64 `json:"bet_id"`
}

func (c *ResolveFreeBetPayout) Name() string { return "resolveFreeBetPayout" }

func (c *ResolveFreeBetPayout) Apply(p *core.PoolState, call core.Call) (any, error) {
	m, err := freebet.From(p)
	if err != nil {
		return nil, err
	}
	return nil, m.ResolvePayout(call, c.BetID)
}

type WithdrawFreeBetPayout struct {
	BetID uint64 `json:"bet_id"`
}

func (c *WithdrawFreeBetPayout) Name() string { return "withdrawFreeBetPayout" }

func (c *WithdrawFreeBetPayout) Apply(p *core.PoolState, call core.Call) (any, error) {
	m, err := freebet.From(p)
	if err != nil {
		return nil, err
	}
	return m.WithdrawPayout(call, c.BetID)
}
