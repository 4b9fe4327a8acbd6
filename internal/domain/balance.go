package domain

import (
	"fmt"
	"sort"

	"poolbet/pkg/safe"
)

// Balance is one account's holding of one asset.
type Balance struct {
	Account Account `json:"account"`
	Asset   Asset   `json:"asset"`
	Amount  int64   `json:"amount"`
	LastSeq uint64  `json:"last_seq"` // Last call sequence that modified this
}

// Credit adds funds to the balance. Panics on overflow.
func (b *Balance) Credit(amount int64, seq uint64) {
	b.Amount = safe.SafeAdd(b.Amount, amount)
	b.LastSeq = seq
}

// Debit removes funds from the balance. Panics if insufficient.
// Callers check Amount first and return ErrInsufficientFunds.
func (b *Balance) Debit(amount int64, seq uint64) {
	if amount > b.Amount {
		panic(fmt.Sprintf("BALANCE_INSUFFICIENT: %s/%s need %d, available %d",
			b.Account, b.Asset, amount, b.Amount))
	}
	b.Amount = safe.SafeSub(b.Amount, amount)
	b.LastSeq = seq
}

// VerifyInvariant checks that balance satisfies invariants.
func (b *Balance) VerifyInvariant() {
	if b.Amount < 0 {
		panic(fmt.Sprintf("BALANCE_INVARIANT_NEGATIVE_AMOUNT: %s/%s = %d",
			b.Account, b.Asset, b.Amount))
	}
}

type balanceKey struct {
	account Account
	asset   Asset
}

// BalanceBook manages balances of every account and asset.
type BalanceBook struct {
	balances map[balanceKey]*Balance
}

// NewBalanceBook creates a new balance book.
func NewBalanceBook() *BalanceBook {
	return &BalanceBook{
		balances: make(map[balanceKey]*Balance),
	}
}

// Get returns the balance for an account and asset, creating if not exists.
func (bb *BalanceBook) Get(account Account, asset Asset) *Balance {
	k := balanceKey{account, asset}
	b, ok := bb.balances[k]
	if !ok {
		b = &Balance{Account: account, Asset: asset}
		bb.balances[k] = b
	}
	return b
}

// Amount returns the amount held without creating an entry.
func (bb *BalanceBook) Amount(account Account, asset Asset) int64 {
	if b, ok := bb.balances[balanceKey{account, asset}]; ok {
		return b.Amount
	}
	return 0
}

// VerifyAll checks invariants on all balances.
func (bb *BalanceBook) VerifyAll() {
	for _, b := range bb.balances {
		b.VerifyInvariant()
	}
}

// Supply returns the sum of all balances of one asset.
func (bb *BalanceBook) Supply(asset Asset) int64 {
	var total int64
	for k, b := range bb.balances {
		if k.asset == asset {
			total = safe.SafeAdd(total, b.Amount)
		}
	}
	return total
}

// Snapshot returns a copy of all non-empty balances ordered by account then
// asset (for state dump).
func (bb *BalanceBook) Snapshot() []Balance {
	result := make([]Balance, 0, len(bb.balances))
	for _, v := range bb.balances {
		if v.Amount != 0 {
			result = append(result, *v)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Account != result[j].Account {
			return result[i].Account < result[j].Account
		}
		return result[i].Asset < result[j].Asset
	})
	return result
}
