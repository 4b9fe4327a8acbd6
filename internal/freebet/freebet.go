// Package freebet issues free bets: non-transferable credits, funded from a
// reserve, that a holder spends on pool bets. The stake stays with the
// reserve; the holder only keeps the winnings.
//
// A Manager is attached to a core.PoolState and changes state only inside
// sequenced pool calls, so it shares the pool's single-writer rules.
package freebet

import (
	"fmt"
	"math"

	"poolbet/internal/core"
	"poolbet/internal/domain"
	"poolbet/internal/event"
	"poolbet/internal/registry"
	"poolbet/pkg/safe"
)

// Name is the extension name the manager is attached under.
const Name = "freebet"

// Terms describe a free bet when it is issued.
type Terms struct {
	Amount   int64 `json:"amount"`
	MinOdds  int64 `json:"min_odds"`
	Duration int64 `json:"duration"` // seconds from issue or reissue
}

// FreeBet is an issued free bet. Terms are as issued; Left is what can
// still be redeemed.
type FreeBet struct {
	Terms
	ID        uint64 `json:"id"`
	Left      int64  `json:"left"`
	ExpiresAt int64  `json:"expires_at"`
}

// Expired reports whether the free bet can no longer be redeemed at now.
func (f FreeBet) Expired(now int64) bool { return now >= f.ExpiresAt }

// Redemption is a pool bet placed with a free bet. Stake is zero once the
// bet is resolved; Payout is the winnings still owed to Owner.
type Redemption struct {
	Owner     domain.Account `json:"owner"`
	FreeBetID uint64         `json:"freebet_id"`
	Stake     int64          `json:"stake"`
	Payout    int64          `json:"payout"`
	Resolved  bool           `json:"resolved"`
}

// RedeemRequest spends Amount of a free bet on a pool bet. The bet's
// minimum odds are the larger of MinOdds and the free bet's own.
type RedeemRequest struct {
	FreeBetID   uint64 `json:"freebet_id"`
	ConditionID uint64 `json:"condition_id"`
	Outcome     uint64 `json:"outcome"`
	Amount      int64  `json:"amount"`
	Deadline    int64  `json:"deadline"`
	MinOdds     int64  `json:"min_odds"`
}

// Manager holds the free bets of one pool. Its reserve is the token balance
// of its account in the pool's vault.
type Manager struct {
	pool    *core.PoolState
	account domain.Account
	tokens  *registry.Registry

	freeBets    map[uint64]*FreeBet
	redemptions map[uint64]*Redemption // by pool bet id
	lastID      uint64

	locked int64 // unredeemed free bet amounts
	owed   int64 // winnings not yet paid
}

// Attach creates a manager reserving funds under account and attaches it
// to pool.
func Attach(pool *core.PoolState, account domain.Account) (*Manager, error) {
	if account == "" || account == domain.PoolAccount {
		return nil, fmt.Errorf("invalid free bet account %q", account)
	}
	m := &Manager{
		pool:        pool,
		account:     account,
		tokens:      registry.New("freebet", domain.ErrOnlyBetOwner),
		freeBets:    make(map[uint64]*FreeBet),
		redemptions: make(map[uint64]*Redemption),
	}
	pool.Attach(m)
	return m, nil
}

// From returns the manager attached to pool.
func From(pool *core.PoolState) (*Manager, error) {
	ext, ok := pool.Extension(Name)
	if !ok {
		return nil, domain.ErrFreeBetDisabled
	}
	return ext.(*Manager), nil
}

func (m *Manager) Name() string { return Name }

// Account is where the reserve is held and the owner of every free bet's
// pool bet.
func (m *Manager) Account() domain.Account { return m.account }

// Reserve is the manager's token balance.
func (m *Manager) Reserve() int64 {
	return m.pool.Vault().BalanceOf(m.account, domain.AssetToken)
}

// Locked is the reserve backing unredeemed free bets.
func (m *Manager) Locked() int64 { return m.locked }

// Owed is the winnings not yet withdrawn by holders.
func (m *Manager) Owed() int64 { return m.owed }

// Available is the part of the reserve a maintainer may withdraw.
func (m *Manager) Available() int64 { return m.Reserve() - m.locked - m.owed }

// FreeBet returns a copy of a free bet, burned ones included.
func (m *Manager) FreeBet(id uint64) (FreeBet, bool) {
	f, ok := m.freeBets[id]
	if !ok {
		return FreeBet{}, false
	}
	return *f, true
}

// OwnerOf returns the holder of a free bet that has not been burned.
func (m *Manager) OwnerOf(id uint64) (domain.Account, bool) { return m.tokens.OwnerOf(id) }

// BalanceOf is the number of unburned free bets held by account.
func (m *Manager) BalanceOf(account domain.Account) int { return m.tokens.BalanceOf(account) }

// Redemption returns the free bet record of a pool bet.
func (m *Manager) Redemption(betID uint64) (Redemption, bool) {
	r, ok := m.redemptions[betID]
	if !ok {
		return Redemption{}, false
	}
	return *r, true
}

func (m *Manager) onlyMaintainer(call core.Call) error {
	if !m.pool.IsMaintainer(call.Caller) {
		return domain.ErrOnlyMaintainer
	}
	return nil
}

// Fund moves amount of the caller's token into the reserve. Anyone may fund.
func (m *Manager) Fund(call core.Call, amount int64) error {
	if call.Caller == m.account || call.Caller == domain.PoolAccount {
		return domain.ErrWrongParameter
	}
	if err := m.pool.Vault().CanCollect(call.Caller, domain.AssetToken, amount); err != nil {
		return err
	}
	m.pool.Emit(call, &event.ReserveChangedEvent{Account: call.Caller, Amount: amount}, event.TypeReserveFunded)
	return m.pool.Vault().Transfer(call.Caller, m.account, domain.AssetToken, amount)
}

// WithdrawReserve sends unlocked reserve to the calling maintainer.
func (m *Manager) WithdrawReserve(call core.Call, amount int64) error {
	if err := m.onlyMaintainer(call); err != nil {
		return err
	}
	if amount <= 0 {
		return domain.ErrWrongParameter
	}
	if amount > m.Available() {
		return domain.ErrInsufficientContractBalance
	}
	m.pool.Emit(call, &event.ReserveChangedEvent{Account: call.Caller, Amount: amount}, event.TypeReserveWithdrawn)
	return m.pool.Vault().Transfer(m.account, call.Caller, domain.AssetToken, amount)
}

func validTerms(t Terms) bool {
	return t.Amount > 0 && t.MinOdds >= 0 && t.Duration > 0
}

// Mint issues a free bet to to. Maintainer only.
func (m *Manager) Mint(call core.Call, to domain.Account, terms Terms) (uint64, error) {
	ids, err := m.MintBatch(call, []domain.Account{to}, []Terms{terms})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// MintBatch issues terms[i] to to[i]. Either every free bet is issued or
// none is. Maintainer only.
func (m *Manager) MintBatch(call core.Call, to []domain.Account, terms []Terms) ([]uint64, error) {
	if err := m.onlyMaintainer(call); err != nil {
		return nil, err
	}
	if len(to) == 0 || len(to) != len(terms) {
		return nil, domain.ErrWrongParameter
	}
	var total int64
	for i, t := range terms {
		if to[i] == "" || to[i] == domain.PoolAccount || to[i] == m.account || !validTerms(t) || t.Duration > math.MaxInt64-call.Now {
			return nil, domain.ErrWrongParameter
		}
		if t.Amount > math.MaxInt64-total {
			return nil, domain.ErrInsufficientContractBalance
		}
		total += t.Amount
	}
	if total > m.Available() {
		return nil, domain.ErrInsufficientContractBalance
	}

	ids := make([]uint64, len(to))
	for i, t := range terms {
		m.lastID++
		id := m.lastID
		m.tokens.MintAt(id, to[i])
		f := &FreeBet{ID: id, Terms: t, Left: t.Amount, ExpiresAt: safe.SafeAdd(call.Now, t.Duration)}
		m.freeBets[id] = f
		m.locked = safe.SafeAdd(m.locked, t.Amount)
		m.emitIssued(call, to[i], f, event.TypeFreeBetMinted)
		ids[i] = id
	}
	return ids, nil
}

func (m *Manager) emitIssued(call core.Call, to domain.Account, f *FreeBet, typ event.Type) {
	m.pool.Emit(call, &event.FreeBetMintedEvent{
		Account:   to,
		FreeBetID: f.ID,
		Amount:    f.Left,
		MinOdds:   f.MinOdds,
		Duration:  f.Duration,
		ExpiresAt: f.ExpiresAt,
	}, typ)
}

// Transfer always fails: free bets stay with the account they were issued to.
func (m *Manager) Transfer(call core.Call, id uint64, to domain.Account) error {
	if err := m.tokens.CheckOwner(call.Caller, id); err != nil {
		return err
	}
	return domain.ErrNonTransferable
}

// ExpiredUnburned lists expired free bets that still hold a token, scanning
// ids in [start, start+count).
func (m *Manager) ExpiredUnburned(now int64, start, count uint64) []uint64 {
	var out []uint64
	for id := max(start, 1); id <= m.lastID && id-start < count; id++ {
		if _, held := m.tokens.OwnerOf(id); held && m.freeBets[id].Expired(now) {
			out = append(out, id)
		}
	}
	return out
}

// BurnExpired burns expired free bets and releases their reserve. Anyone
// may call it. Nothing is burned if one of ids has not expired.
func (m *Manager) BurnExpired(call core.Call, ids []uint64) error {
	for _, id := range ids {
		if _, held := m.tokens.OwnerOf(id); !held {
			return domain.ErrTokenNotExists
		}
		if !m.freeBets[id].Expired(call.Now) {
			return domain.ErrBetNotExpired
		}
	}
	for _, id := range ids {
		m.burn(call, id)
	}
	return nil
}

func (m *Manager) burn(call core.Call, id uint64) {
	owner, held := m.tokens.OwnerOf(id)
	if !held {
		return
	}
	f := m.freeBets[id]
	released := f.Left
	m.locked = safe.SafeSub(m.locked, released)
	f.Left = 0
	m.tokens.Burn(id)
	m.pool.Emit(call, &event.FreeBetBurnedEvent{Account: owner, FreeBetID: id, Amount: released}, event.TypeFreeBetBurned)
}

// Redeem places a pool bet paid from the free bet. The pool bet belongs to
// the manager's account; the free bet holder gets the winnings.
func (m *Manager) Redeem(call core.Call, req RedeemRequest) (uint64, int64, error) {
	if err := m.tokens.CheckOwner(call.Caller, req.FreeBetID); err != nil {
		return 0, 0, err
	}
	f := m.freeBets[req.FreeBetID]
	if f.Expired(call.Now) {
		return 0, 0, domain.ErrBetExpired
	}
	if req.Amount <= 0 || req.Amount > f.Left {
		return 0, 0, domain.ErrAmountNotSufficient
	}

	inner := core.Call{Caller: m.account, Now: call.Now, Seq: call.Seq}
	betID, odds, err := m.pool.PlaceBet(inner, core.BetRequest{
		ConditionID: req.ConditionID,
		Outcome:     req.Outcome,
		Amount:      req.Amount,
		Deadline:    req.Deadline,
		MinOdds:     max(req.MinOdds, f.MinOdds),
		Beneficiary: m.account,
		Asset:       domain.AssetToken,
	})
	if err != nil {
		return 0, 0, err
	}

	f.Left -= req.Amount
	m.locked = safe.SafeSub(m.locked, req.Amount)
	m.redemptions[betID] = &Redemption{Owner: call.Caller, FreeBetID: f.ID, Stake: req.Amount}
	m.pool.Emit(call, &event.FreeBetRedeemedEvent{
		Account:     call.Caller,
		FreeBetID:   f.ID,
		BetID:       betID,
		ConditionID: req.ConditionID,
		Amount:      req.Amount,
	}, event.TypeFreeBetRedeemed)
	return betID, odds, nil
}

// ResolvePayout collects the pool payout of a redeemed bet once its
// condition is finished. Anyone may call it, once per bet.
//
// A canceled bet returns the stake to its free bet, which gets a fresh
// expiry. A won bet leaves payout minus stake owed to the holder. A free bet
// with nothing left is burned.
func (m *Manager) ResolvePayout(call core.Call, betID uint64) error {
	r, ok := m.redemptions[betID]
	if !ok {
		return domain.ErrBetNotExists
	}
	if r.Resolved {
		return domain.ErrAlreadyResolved
	}
	bet, err := m.pool.GetBet(betID)
	if err != nil {
		return err
	}
	cond, err := m.pool.GetCondition(bet.ConditionID)
	if err != nil {
		return err
	}
	if cond.IsOpen() {
		return domain.ErrConditionNotStarted
	}
	_, payout, err := m.pool.ViewPayout(betID)
	if err != nil {
		return err
	}
	if payout > 0 {
		inner := core.Call{Caller: m.account, Now: call.Now, Seq: call.Seq}
		if _, err := m.pool.WithdrawPayout(inner, betID, domain.AssetToken); err != nil {
			return err
		}
	}

	stake := r.Stake
	r.Stake = 0
	r.Resolved = true
	f := m.freeBets[r.FreeBetID]
	owner, held := m.tokens.OwnerOf(f.ID)

	if cond.State == domain.ConditionCanceled {
		if held {
			f.Left = safe.SafeAdd(f.Left, stake)
			f.ExpiresAt = safe.SafeAdd(call.Now, f.Duration)
			m.locked = safe.SafeAdd(m.locked, stake)
			m.emitIssued(call, owner, f, event.TypeFreeBetReissued)
		}
		return nil
	}
	if payout > stake {
		r.Payout = payout - stake
		m.owed = safe.SafeAdd(m.owed, r.Payout)
	}
	if held && f.Left == 0 {
		m.burn(call, f.ID)
	}
	return nil
}

// WithdrawPayout pays the holder's winnings, resolving the bet first if
// needed. Withdrawing again pays nothing.
func (m *Manager) WithdrawPayout(call core.Call, betID uint64) (int64, error) {
	r, ok := m.redemptions[betID]
	if !ok {
		return 0, domain.ErrBetNotExists
	}
	if r.Owner != call.Caller {
		return 0, domain.ErrOnlyBetOwner
	}
	if !r.Resolved {
		if err := m.ResolvePayout(call, betID); err != nil {
			return 0, err
		}
	}
	amount := r.Payout
	if amount == 0 {
		return 0, nil
	}
	r.Payout = 0
	m.owed = safe.SafeSub(m.owed, amount)
	m.pool.Emit(call, &event.FreeBetPaidEvent{Account: call.Caller, BetID: betID, Amount: amount}, event.TypeFreeBetPaid)
	if err := m.pool.Vault().Transfer(m.account, call.Caller, domain.AssetToken, amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// Verify panics if the locked and owed counters disagree with the records
// or exceed the reserve.
func (m *Manager) Verify() {
	var locked, owed int64
	for id, f := range m.freeBets {
		if _, held := m.tokens.OwnerOf(id); held {
			locked = safe.SafeAdd(locked, f.Left)
		} else if f.Left != 0 {
			panic(fmt.Sprintf("FREEBET_INVARIANT_BURNED_LEFT: #%d left=%d", id, f.Left))
		}
	}
	for _, r := range m.redemptions {
		owed = safe.SafeAdd(owed, r.Payout)
	}
	if locked != m.locked || owed != m.owed {
		panic(fmt.Sprintf("FREEBET_INVARIANT_COUNTERS: locked=%d/%d owed=%d/%d", m.locked, locked, m.owed, owed))
	}
	if reserve := m.Reserve(); reserve < safe.SafeAdd(locked, owed) {
		panic(fmt.Sprintf("FREEBET_INVARIANT_RESERVE: reserve=%d locked=%d owed=%d", reserve, locked, owed))
	}
}
