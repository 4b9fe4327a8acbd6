package liquidity

import (
	"fmt"
	"sort"

	"poolbet/internal/domain"
	"poolbet/pkg/quant"
	"poolbet/pkg/safe"
)

// Params bound what depositors and conditions may do with the pool.
type Params struct {
	MinDeposit           int64 `json:"min_deposit"`
	WithdrawTimeout      int64 `json:"withdraw_timeout"`
	ReinforcementAbility int64 `json:"reinforcement_ability"` // share of the total that may be locked, quant.Multiplier scale
}

// Pool wraps the tree with deposit positions and the liquidity reserved for
// open conditions. Locked liquidity behaves like a reserved balance: it stays
// in the tree and earns its share, but may not be withdrawn.
type Pool struct {
	tree      *Tree
	positions map[uint64]*domain.DepositPosition
	locked    int64
	params    Params
}

// NewPool creates an empty pool.
func NewPool(depth uint, params Params) *Pool {
	return &Pool{
		tree:      NewTree(depth),
		positions: make(map[uint64]*domain.DepositPosition),
		params:    params,
	}
}

func (p *Pool) Tree() *Tree { return p.tree }

// Total is the value of all positions, locked part included.
func (p *Pool) Total() int64 { return p.tree.Total() }

// Locked is the liquidity reserved by open conditions.
func (p *Pool) Locked() int64 { return p.locked }

func (p *Pool) Params() Params { return p.params }

func (p *Pool) SetParams(v Params) { p.params = v }

// Free is the liquidity not reserved by any condition.
func (p *Pool) Free() int64 {
	return safe.SafeSub(p.tree.Total(), p.locked)
}

// Position returns the deposit bound to leaf.
func (p *Pool) Position(leaf uint64) (domain.DepositPosition, bool) {
	pos, ok := p.positions[leaf]
	if !ok {
		return domain.DepositPosition{}, false
	}
	return *pos, true
}

// Deposit adds liquidity and opens a position on a fresh leaf.
func (p *Pool) Deposit(amount, now int64) (uint64, error) {
	if amount <= 0 || amount < p.params.MinDeposit {
		return 0, domain.ErrAmountNotSufficient
	}
	leaf, err := p.tree.Deposit(amount)
	if err != nil {
		return 0, err
	}
	p.positions[leaf] = &domain.DepositPosition{
		LeafID:        leaf,
		Deposited:     amount,
		CreatedAt:     now,
		WithdrawAfter: now + p.params.WithdrawTimeout,
	}
	return leaf, nil
}

// PreviewWithdraw runs every withdrawal check and returns the amount a
// Withdraw with the same arguments would pay. A position that losses took
// to zero can still be closed with a full withdrawal paying nothing.
func (p *Pool) PreviewWithdraw(leaf uint64, fraction, now int64) (int64, error) {
	pos, ok := p.positions[leaf]
	if !ok {
		return 0, domain.ErrNoLiquidity
	}
	if now < pos.WithdrawAfter {
		return 0, domain.ErrWithdrawalTimeout.With(pos.WithdrawAfter)
	}
	if fraction == quant.FractionScale && p.tree.View(leaf) == 0 {
		return 0, nil
	}
	amount, err := p.tree.removable(leaf, fraction)
	if err != nil {
		return 0, err
	}
	if amount > p.Free() {
		return 0, domain.ErrAmountLocked
	}
	return amount, nil
}

// Withdraw removes fraction (of quant.FractionScale) of a position.
func (p *Pool) Withdraw(leaf uint64, fraction, now int64) (int64, error) {
	amount, err := p.PreviewWithdraw(leaf, fraction, now)
	if err != nil {
		return 0, err
	}
	if p.tree.View(leaf) > 0 {
		if amount, err = p.tree.Remove(leaf, fraction); err != nil {
			return 0, err
		}
	}
	pos := p.positions[leaf]
	if p.tree.View(leaf) == 0 {
		delete(p.positions, leaf)
	} else {
		pos.Deposited -= quant.Share(pos.Deposited, fraction)
	}
	return amount, nil
}

// WithdrawView is the current value of a position.
func (p *Pool) WithdrawView(leaf uint64) int64 {
	if _, ok := p.positions[leaf]; !ok {
		return 0
	}
	return p.tree.View(leaf)
}

// CanLock checks that amount more can be reserved without exceeding the
// reinforcement ability of the pool.
func (p *Pool) CanLock(amount int64) error {
	if amount <= 0 {
		return domain.ErrWrongParameter
	}
	limit := quant.MulDiv(p.tree.Total(), p.params.ReinforcementAbility, quant.Multiplier)
	if safe.SafeAdd(p.locked, amount) > limit {
		return domain.ErrNotEnoughLiquidity
	}
	return nil
}

// Lock reserves amount for a condition.
func (p *Pool) Lock(amount int64) error {
	if err := p.CanLock(amount); err != nil {
		return err
	}
	p.locked += amount
	return nil
}

// Unlock releases a reservation. Panics if more is released than reserved.
func (p *Pool) Unlock(amount int64) {
	if amount < 0 || amount > p.locked {
		panic(fmt.Sprintf("LIQUIDITY_UNLOCK_EXCEEDS_LOCKED: unlock %d, locked %d", amount, p.locked))
	}
	p.locked -= amount
}

// ApplyPoolDelta forwards a settled profit or loss to the tree.
func (p *Pool) ApplyPoolDelta(delta int64) error {
	return p.tree.ApplyPoolDelta(delta)
}

// ApplyPoolDeltaUpTo forwards a settled result that only positions up to
// leaf may profit from.
func (p *Pool) ApplyPoolDeltaUpTo(delta int64, leaf uint64) error {
	return p.tree.ApplyPoolDeltaUpTo(delta, leaf)
}

// LastLeaf is the leaf of the newest position ever opened.
func (p *Pool) LastLeaf() uint64 { return p.tree.LastUsedLeaf() }

// CheckPoolDelta reports whether ApplyPoolDelta(delta) would succeed.
func (p *Pool) CheckPoolDelta(delta int64) error {
	return p.tree.CheckPoolDelta(delta)
}

// Positions returns all open positions ordered by leaf.
func (p *Pool) Positions() []domain.DepositPosition {
	out := make([]domain.DepositPosition, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeafID < out[j].LeafID })
	return out
}

// VerifyInvariant checks that the reservation is sane and that the leaves
// add up to the root. It walks every leaf and is meant for tests and audits.
func (p *Pool) VerifyInvariant() {
	if p.locked < 0 {
		panic(fmt.Sprintf("LIQUIDITY_INVARIANT_NEGATIVE_LOCKED: %d", p.locked))
	}
	var sum int64
	for leaf := range p.positions {
		sum = safe.SafeAdd(sum, p.tree.View(leaf))
	}
	if sum != p.tree.Total() {
		panic(fmt.Sprintf("LIQUIDITY_INVARIANT_CONSERVATION: leaves=%d root=%d", sum, p.tree.Total()))
	}
}
