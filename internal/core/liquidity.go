package core

import (
	"poolbet/internal/domain"
	"poolbet/internal/event"
	"poolbet/internal/registry"
)

// AddLiquidity deposits amount of the caller's asset and returns the leaf
// that now represents the caller's share.
func (p *PoolState) AddLiquidity(call Call, asset domain.Asset, amount int64) (uint64, error) {
	if amount <= 0 || amount < p.params.Liquidity.MinDeposit {
		return 0, domain.ErrAmountNotSufficient
	}
	if err := p.funds.CanCollect(call.Caller, asset, amount); err != nil {
		return 0, err
	}
	p.begin(call)
	leaf, err := p.liq.Deposit(amount, call.Now)
	if err != nil {
		return 0, err
	}
	if err := p.funds.Collect(call.Caller, asset, amount); err != nil {
		return 0, err
	}
	p.lpTokens.MintAt(leaf, call.Caller)
	p.emit(&event.LiquidityAddedEvent{Account: call.Caller, LeafID: leaf, Amount: amount}, event.TypeLiquidityAdded)
	return leaf, nil
}

// WithdrawLiquidity takes fraction (of quant.FractionScale) of the leaf's
// current value out of the pool and pays it to the caller.
func (p *PoolState) WithdrawLiquidity(call Call, leaf uint64, fraction int64, asset domain.Asset) (int64, error) {
	if err := p.lpTokens.CheckOwner(call.Caller, leaf); err != nil {
		return 0, err
	}
	amount, err := p.liq.PreviewWithdraw(leaf, fraction, call.Now)
	if err != nil {
		return 0, err
	}
	if err := p.funds.CanPay(amount); err != nil {
		return 0, err
	}

	p.begin(call)
	if _, err := p.liq.Withdraw(leaf, fraction, call.Now); err != nil {
		return 0, err
	}
	_, open := p.liq.Position(leaf)
	if !open {
		p.lpTokens.Burn(leaf)
	}
	p.emit(&event.LiquidityRemovedEvent{
		Account: call.Caller,
		LeafID:  leaf,
		Amount:  amount,
		Closed:  !open,
	}, event.TypeLiquidityRemoved)
	if err := p.funds.Pay(call.Caller, asset, amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// NodeWithdrawView is what withdrawing the whole leaf would pay now.
func (p *PoolState) NodeWithdrawView(leaf uint64) int64 {
	return p.liq.WithdrawView(leaf)
}

// LiquidityOf lists the leaves held by account.
func (p *PoolState) LiquidityOf(account domain.Account) []uint64 {
	return p.lpTokens.IDsOf(account)
}

// BetsOf lists the bets held by account.
func (p *PoolState) BetsOf(account domain.Account) []uint64 {
	return p.betTokens.IDsOf(account)
}

// TransferPosition hands a liquidity leaf ("liquidity") or a bet ("bet")
// to another holder. Only the current holder may transfer.
func (p *PoolState) TransferPosition(call Call, kind string, id uint64, to domain.Account) error {
	var reg *registry.Registry
	switch kind {
	case p.lpTokens.Name():
		reg = p.lpTokens
	case p.betTokens.Name():
		reg = p.betTokens
	default:
		return domain.ErrWrongParameter
	}
	if err := reg.CheckOwner(call.Caller, id); err != nil {
		return err
	}
	if to == "" || to == domain.PoolAccount {
		return domain.ErrWrongParameter
	}
	p.begin(call)
	if err := reg.Transfer(call.Caller, to, id); err != nil {
		return err
	}
	p.emit(&event.PositionTransferredEvent{Kind: kind, ID: id, From: call.Caller, To: to}, event.TypePositionTransferred)
	return nil
}
