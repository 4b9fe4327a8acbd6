// Package core is the pool: liquidity, conditions, bets and rewards held in
// one explicit state value.
//
// PoolState is not safe for concurrent use. Every mutating method validates
// the whole call before changing anything, so a returned error means nothing
// happened. Funds leave the pool only after all bookkeeping is done.
package core

import (
	"fmt"

	"poolbet/internal/domain"
	"poolbet/internal/event"
	"poolbet/internal/liquidity"
	"poolbet/internal/registry"
	"poolbet/internal/vault"
	"poolbet/pkg/quant"
)

// Call identifies who makes a call, when, and its position in the total
// order of calls.
type Call struct {
	Caller domain.Account `json:"caller"`
	Now    int64          `json:"now"`
	Seq    uint64         `json:"seq"`
}

// Params are the tunable bounds of the pool. Fees, margins and the
// reinforcement ability are quant.Multiplier scaled.
type Params struct {
	TreeDepth            uint             `json:"tree_depth"`
	Liquidity            liquidity.Params `json:"liquidity"`
	DefaultReinforcement int64            `json:"default_reinforcement"`
	DefaultMargin        int64            `json:"default_margin"`
	MaxBanksRatio        int64            `json:"max_banks_ratio"`
	MinBet               int64            `json:"min_bet"`
	SettlementDelay      int64            `json:"settlement_delay"`
	ResolveTimeout       int64            `json:"resolve_timeout"` // 0 disables the stale check
	DaoFee               int64            `json:"dao_fee"`
	OracleFee            int64            `json:"oracle_fee"`
	ClaimTimeout         int64            `json:"claim_timeout"`
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		TreeDepth: liquidity.DefaultDepth,
		Liquidity: liquidity.Params{
			MinDeposit:           1,
			WithdrawTimeout:      0,
			ReinforcementAbility: 500_000_000,
		},
		DefaultReinforcement: 20_000,
		DefaultMargin:        50_000_000,
		MaxBanksRatio:        10_000,
		MinBet:               1,
		SettlementDelay:      60,
		DaoFee:               90_000_000,
		OracleFee:            10_000_000,
		ClaimTimeout:         0,
	}
}

// Validate checks that the parameters are usable.
func (p Params) Validate() error {
	switch {
	case p.TreeDepth == 0 || p.TreeDepth > 48:
		return fmt.Errorf("tree depth %d out of range [1, 48]", p.TreeDepth)
	case p.Liquidity.ReinforcementAbility <= 0 || p.Liquidity.ReinforcementAbility > quant.Multiplier:
		return fmt.Errorf("reinforcement ability %d out of range", p.Liquidity.ReinforcementAbility)
	case p.DefaultReinforcement <= 0:
		return fmt.Errorf("default reinforcement must be positive")
	case p.DefaultMargin < 0 || p.DefaultMargin >= quant.Multiplier:
		return fmt.Errorf("default margin %d out of range", p.DefaultMargin)
	case p.MaxBanksRatio <= 0:
		return fmt.Errorf("max banks ratio must be positive")
	case p.MinBet <= 0:
		return fmt.Errorf("min bet must be positive")
	case p.DaoFee < 0 || p.OracleFee < 0 || p.DaoFee+p.OracleFee >= quant.Multiplier:
		return fmt.Errorf("fees %d + %d out of range", p.DaoFee, p.OracleFee)
	case p.SettlementDelay < 0 || p.ResolveTimeout < 0 || p.ClaimTimeout < 0 || p.Liquidity.WithdrawTimeout < 0:
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

type oracleKey struct {
	oracle domain.Account
	id     uint64
}

// PoolState holds everything the pool knows.
type PoolState struct {
	params Params
	liq    *liquidity.Pool
	funds  *vault.Vault

	lpTokens  *registry.Registry
	betTokens *registry.Registry

	conditions       map[uint64]*domain.Condition
	oracleConditions map[oracleKey]uint64
	lastConditionID  uint64
	bets             map[uint64]*domain.Bet

	reinforcements map[uint64]int64 // per-outcome override
	margins        map[uint64]int64 // per-outcome override
	allStopped     bool

	owner       domain.Account
	oracles     map[domain.Account]bool
	maintainers map[domain.Account]bool

	daoReward     int64
	oracleRewards map[domain.Account]int64
	lastDaoClaim  int64
	lastClaims    map[domain.Account]int64

	// stakes of open conditions plus unclaimed payouts and refunds
	outstanding int64

	extensions map[string]Extension

	sink    event.Sink
	call    Call
	emitted int
}

// Extension is state kept beside the pool that moves pool funds through pool
// calls, such as the free bet manager. Verify panics when its books do not
// balance and runs with VerifyInvariants.
type Extension interface {
	Name() string
	Verify()
}

// Option configures a PoolState.
type Option func(*PoolState)

// WithSink sends every event to sink.
func WithSink(sink event.Sink) Option {
	return func(p *PoolState) { p.sink = sink }
}

// WithVault uses an existing funds ledger.
func WithVault(v *vault.Vault) Option {
	return func(p *PoolState) { p.funds = v }
}

// New creates an empty pool owned by owner. Panics on invalid params.
func New(owner domain.Account, params Params, opts ...Option) *PoolState {
	if err := params.Validate(); err != nil {
		panic(fmt.Sprintf("POOL_INVALID_PARAMS: %v", err))
	}
	p := &PoolState{
		params:           params,
		liq:              liquidity.NewPool(params.TreeDepth, params.Liquidity),
		funds:            vault.New(),
		lpTokens:         registry.New("liquidity", domain.ErrLiquidityNotOwned),
		betTokens:        registry.New("bet", domain.ErrOnlyBetOwner),
		conditions:       make(map[uint64]*domain.Condition),
		oracleConditions: make(map[oracleKey]uint64),
		bets:             make(map[uint64]*domain.Bet),
		reinforcements:   make(map[uint64]int64),
		margins:          make(map[uint64]int64),
		owner:            owner,
		oracles:          make(map[domain.Account]bool),
		maintainers:      make(map[domain.Account]bool),
		oracleRewards:    make(map[domain.Account]int64),
		lastClaims:       make(map[domain.Account]int64),
		extensions:       make(map[string]Extension),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// begin records the call so events and balance changes can be stamped.
// Calls nested in one sequenced command keep counting events.
func (p *PoolState) begin(call Call) {
	if call.Seq != p.call.Seq {
		p.emitted = 0
	}
	p.call = call
	p.funds.Stamp(call.Seq)
}

func (p *PoolState) emit(ev event.Event, typ event.Type) {
	event.Stamp(ev, p.call.Seq, p.emitted, p.call.Now, typ)
	p.emitted++
	if p.sink != nil {
		p.sink.Publish(ev)
	}
}

// Emit publishes an extension's event as part of call.
func (p *PoolState) Emit(call Call, ev event.Event, typ event.Type) {
	p.begin(call)
	p.emit(ev, typ)
}

// Extension returns the extension attached under name.
func (p *PoolState) Extension(name string) (Extension, bool) {
	ext, ok := p.extensions[name]
	return ext, ok
}

// Attach adds an extension after construction. An extension with the same
// name is replaced.
func (p *PoolState) Attach(ext Extension) { p.extensions[ext.Name()] = ext }

// SetSink replaces the event sink. A nil sink silences events.
func (p *PoolState) SetSink(sink event.Sink) { p.sink = sink }

// Params returns the current parameters.
func (p *PoolState) Params() Params { return p.params }

// Vault exposes the funds ledger.
func (p *PoolState) Vault() *vault.Vault { return p.funds }

// Liquidity exposes the liquidity pool for inspection.
func (p *PoolState) Liquidity() *liquidity.Pool { return p.liq }

// Owner returns the pool owner.
func (p *PoolState) Owner() domain.Account { return p.owner }

func (p *PoolState) onlyOwner(call Call) error {
	if call.Caller != p.owner {
		return domain.ErrOnlyOwner
	}
	return nil
}

func (p *PoolState) onlyOracle(call Call) error {
	if !p.oracles[call.Caller] {
		return domain.ErrOnlyOracle
	}
	return nil
}

func (p *PoolState) onlyMaintainer(call Call) error {
	if !p.maintainers[call.Caller] {
		return domain.ErrOnlyMaintainer
	}
	return nil
}

// IsOracle reports whether account may create and resolve conditions.
func (p *PoolState) IsOracle(account domain.Account) bool { return p.oracles[account] }

// IsMaintainer reports whether account may pause conditions and tune margins.
func (p *PoolState) IsMaintainer(account domain.Account) bool { return p.maintainers[account] }

// Mint credits funds to an account. Owner only; used to seed balances.
func (p *PoolState) Mint(call Call, to domain.Account, asset domain.Asset, amount int64) error {
	if err := p.onlyOwner(call); err != nil {
		return err
	}
	p.begin(call)
	if err := p.funds.Mint(to, asset, amount); err != nil {
		return err
	}
	p.emit(&event.FundsMintedEvent{Account: to, Asset: asset, Amount: amount}, event.TypeFundsMinted)
	return nil
}

func (p *PoolState) setRole(call Call, role string, account domain.Account, granted bool) error {
	if err := p.onlyOwner(call); err != nil {
		return err
	}
	if account == "" {
		return domain.ErrWrongParameter
	}
	set := p.oracles
	if role == "maintainer" {
		set = p.maintainers
	}
	p.begin(call)
	if granted {
		set[account] = true
	} else {
		delete(set, account)
	}
	p.emit(&event.RoleChangedEvent{Role: role, Account: account, Granted: granted}, event.TypeRoleChanged)
	return nil
}

// AddOracle grants the oracle role. Owner only.
func (p *PoolState) AddOracle(call Call, account domain.Account) error {
	return p.setRole(call, "oracle", account, true)
}

// AddMaintainer grants the maintainer role. Owner only.
func (p *PoolState) AddMaintainer(call Call, account domain.Account) error {
	return p.setRole(call, "maintainer", account, true)
}

// RemoveMaintainer revokes the maintainer role. Owner only.
func (p *PoolState) RemoveMaintainer(call Call, account domain.Account) error {
	return p.setRole(call, "maintainer", account, false)
}

// RenounceOracle lets an oracle drop its own role. Conditions it created
// can then only be canceled by a maintainer.
func (p *PoolState) RenounceOracle(call Call) error {
	if err := p.onlyOracle(call); err != nil {
		return err
	}
	p.begin(call)
	delete(p.oracles, call.Caller)
	p.emit(&event.RoleChangedEvent{Role: "oracle", Account: call.Caller}, event.TypeRoleChanged)
	return nil
}
