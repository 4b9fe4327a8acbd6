// Package vault holds account balances and moves funds in and out of the pool.
package vault

import (
	"fmt"

	"poolbet/internal/domain"
	"poolbet/pkg/safe"
)

// TransferHook runs after funds have left the pool or moved between accounts.
type TransferHook func(to domain.Account, asset domain.Asset, amount int64)

// Vault is the funds ledger. The pool always holds token; native funds are
// wrapped on the way in and unwrapped on the way out.
type Vault struct {
	book   *domain.BalanceBook
	minted int64
	seq    uint64

	// OnTransfer, when set, is called after every outgoing transfer.
	OnTransfer TransferHook
}

// New creates an empty vault.
func New() *Vault {
	return &Vault{book: domain.NewBalanceBook()}
}

// Stamp records the call sequence that subsequent balance changes belong to.
func (v *Vault) Stamp(seq uint64) { v.seq = seq }

// Mint credits new funds to an account.
func (v *Vault) Mint(to domain.Account, asset domain.Asset, amount int64) error {
	if amount <= 0 {
		return domain.ErrWrongParameter
	}
	v.book.Get(to, asset).Credit(amount, v.seq)
	v.minted = safe.SafeAdd(v.minted, amount)
	return nil
}

// BalanceOf returns an account's holding of one asset.
func (v *Vault) BalanceOf(account domain.Account, asset domain.Asset) int64 {
	return v.book.Amount(account, asset)
}

// PoolBalance is the token held by the pool.
func (v *Vault) PoolBalance() int64 {
	return v.book.Amount(domain.PoolAccount, domain.AssetToken)
}

// CanCollect checks that from can pay amount of asset into the pool.
func (v *Vault) CanCollect(from domain.Account, asset domain.Asset, amount int64) error {
	if amount <= 0 || v.book.Amount(from, asset) < amount {
		return domain.ErrInsufficientFunds
	}
	return nil
}

// Collect moves funds from an account into the pool.
func (v *Vault) Collect(from domain.Account, asset domain.Asset, amount int64) error {
	if err := v.CanCollect(from, asset, amount); err != nil {
		return err
	}
	v.book.Get(from, asset).Debit(amount, v.seq)
	v.book.Get(domain.PoolAccount, domain.AssetToken).Credit(amount, v.seq)
	return nil
}

// CanPay checks that the pool holds amount.
func (v *Vault) CanPay(amount int64) error {
	if amount < 0 || v.PoolBalance() < amount {
		return domain.ErrInsufficientContractBalance
	}
	return nil
}

// Pay moves funds from the pool to an account. The hook runs last, after
// every balance has been updated.
func (v *Vault) Pay(to domain.Account, asset domain.Asset, amount int64) error {
	if err := v.CanPay(amount); err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}
	v.book.Get(domain.PoolAccount, domain.AssetToken).Debit(amount, v.seq)
	v.book.Get(to, asset).Credit(amount, v.seq)
	if v.OnTransfer != nil {
		v.OnTransfer(to, asset, amount)
	}
	return nil
}

// Transfer moves funds between two accounts.
func (v *Vault) Transfer(from, to domain.Account, asset domain.Asset, amount int64) error {
	if from == domain.PoolAccount || to == domain.PoolAccount {
		return domain.ErrWrongParameter
	}
	if err := v.CanCollect(from, asset, amount); err != nil {
		return err
	}
	v.book.Get(from, asset).Debit(amount, v.seq)
	v.book.Get(to, asset).Credit(amount, v.seq)
	if v.OnTransfer != nil {
		v.OnTransfer(to, asset, amount)
	}
	return nil
}

// Verify checks balance invariants and that wrapping never created or
// destroyed funds.
func (v *Vault) Verify() {
	v.book.VerifyAll()
	supply := safe.SafeAdd(v.book.Supply(domain.AssetToken), v.book.Supply(domain.AssetNative))
	if supply != v.minted {
		panic(fmt.Sprintf("VAULT_INVARIANT_SUPPLY: supply=%d minted=%d", supply, v.minted))
	}
}

// Snapshot returns all non-empty balances.
func (v *Vault) Snapshot() []domain.Balance {
	return v.book.Snapshot()
}
