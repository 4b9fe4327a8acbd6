// Package event defines the notifications emitted by every state-changing
// pool call. They carry the key fields of the call for indexing and UI.
package event

import (
	"strconv"

	"poolbet/internal/domain"

	"github.com/google/uuid"
)

// Type names an event kind.
type Type string

const (
	TypeLiquidityAdded       Type = "LiquidityAdded"
	TypeLiquidityRemoved     Type = "LiquidityRemoved"
	TypeConditionCreated     Type = "ConditionCreated"
	TypeConditionResolved    Type = "ConditionResolved"
	TypeConditionShifted     Type = "ConditionShifted"
	TypeConditionStopped     Type = "ConditionStopped"
	TypeAllConditionsStopped Type = "AllConditionsStopped"
	TypeNewBet               Type = "NewBet"
	TypeBetterWin            Type = "BetterWin"
	TypeRewardClaimed        Type = "RewardClaimed"
	TypePositionTransferred  Type = "PositionTransferred"
	TypeParamChanged         Type = "ParamChanged"
	TypeRoleChanged          Type = "RoleChanged"
	TypeFundsMinted          Type = "FundsMinted"
	TypeFreeBetMinted        Type = "FreeBetMinted"
	TypeFreeBetRedeemed      Type = "FreeBetRedeemed"
	TypeFreeBetReissued      Type = "FreeBetReissued"
	TypeFreeBetBurned        Type = "FreeBetBurned"
	TypeFreeBetPaid          Type = "FreeBetPaid"
	TypeReserveFunded        Type = "ReserveFunded"
	TypeReserveWithdrawn     Type = "ReserveWithdrawn"
)

// Event is implemented by every notification.
type Event interface {
	GetSeq() uint64
	GetTs() int64
	GetType() Type
	GetID() string
	base() *BaseEvent
}

// BaseEvent carries the fields common to all events.
type BaseEvent struct {
	ID   string `json:"id"`
	Seq  uint64 `json:"seq"` // sequence of the call that emitted it
	Ts   int64  `json:"ts"`
	Type Type   `json:"type"`
}

func (e *BaseEvent) GetSeq() uint64 { return e.Seq }

func (e *BaseEvent) GetTs() int64 { return e.Ts }

func (e *BaseEvent) GetType() Type { return e.Type }

func (e *BaseEvent) GetID() string { return e.ID }

func (e *BaseEvent) base() *BaseEvent { return e }

// Stamp fills the common fields. The id is derived from the call sequence
// and the event's position within the call, so replaying a call yields the
// same ids and indexers can upsert instead of duplicating.
func Stamp(ev Event, seq uint64, index int, ts int64, typ Type) {
	b := ev.base()
	b.Seq = seq
	b.Ts = ts
	b.Type = typ
	name := strconv.FormatUint(seq, 10) + "/" + strconv.Itoa(index)
	b.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

type LiquidityAddedEvent struct {
	BaseEvent
	Account domain.Account `json:"account"`
	LeafID  uint64         `json:"leaf_id"`
	Amount  int64          `json:"amount"`
}

type LiquidityRemovedEvent struct {
	BaseEvent
	Account domain.Account `json:"account"`
	LeafID  uint64         `json:"leaf_id"`
	Amount  int64          `json:"amount"`
	Closed  bool           `json:"closed"`
}

type ConditionCreatedEvent struct {
	BaseEvent
	Oracle            domain.Account `json:"oracle"`
	OracleConditionID uint64         `json:"oracle_condition_id"`
	ConditionID       uint64         `json:"condition_id"`
	ScopeID           uint64         `json:"scope_id"`
	Outcomes          [2]uint64      `json:"outcomes"`
	FundBank          [2]int64       `json:"fund_bank"`
	Reinforcement     int64          `json:"reinforcement"`
	Margin            int64          `json:"margin"`
	StartsAt          int64          `json:"starts_at"`
	MetadataHash      string         `json:"metadata_hash,omitempty"`
}

// ConditionResolvedEvent is emitted on resolution and on cancellation.
// PoolDelta is the condition's net result for the pool, TreeDelta the part
// credited to depositors after fees.
type ConditionResolvedEvent struct {
	BaseEvent
	ConditionID       uint64                `json:"condition_id"`
	OracleConditionID uint64                `json:"oracle_condition_id"`
	State             domain.ConditionState `json:"state"`
	OutcomeWin        uint64                `json:"outcome_win"`
	PoolDelta         int64                 `json:"pool_delta"`
	TreeDelta         int64                 `json:"tree_delta"`
}

type ConditionShiftedEvent struct {
	BaseEvent
	ConditionID uint64 `json:"condition_id"`
	StartsAt    int64  `json:"starts_at"`
}

type ConditionStoppedEvent struct {
	BaseEvent
	ConditionID uint64 `json:"condition_id"`
	Flag        bool   `json:"flag"`
}

type AllConditionsStoppedEvent struct {
	BaseEvent
	Flag bool `json:"flag"`
}

type NewBetEvent struct {
	BaseEvent
	Owner       domain.Account `json:"owner"`
	BetID       uint64         `json:"bet_id"`
	ConditionID uint64         `json:"condition_id"`
	Outcome     uint64         `json:"outcome"`
	Amount      int64          `json:"amount"`
	Odds        int64          `json:"odds"`
	FundBank    [2]int64       `json:"fund_bank"`
}

type BetterWinEvent struct {
	BaseEvent
	Account domain.Account `json:"account"`
	BetID   uint64         `json:"bet_id"`
	Amount  int64          `json:"amount"`
}

type RewardClaimedEvent struct {
	BaseEvent
	Account domain.Account `json:"account"`
	Kind    string         `json:"kind"` // "dao" or "oracle"
	Amount  int64          `json:"amount"`
}

type PositionTransferredEvent struct {
	BaseEvent
	Kind string         `json:"kind"` // registry name
	ID   uint64         `json:"position_id"`
	From domain.Account `json:"from"`
	To   domain.Account `json:"to"`
}

type ParamChangedEvent struct {
	BaseEvent
	Name  string `json:"name"`
	Key   uint64 `json:"key,omitempty"` // outcome for per-outcome overrides
	Value int64  `json:"value"`
}

type RoleChangedEvent struct {
	BaseEvent
	Role    string         `json:"role"`
	Account domain.Account `json:"account"`
	Granted bool           `json:"granted"`
}

type FundsMintedEvent struct {
	BaseEvent
	Account domain.Account `json:"account"`
	Asset   domain.Asset   `json:"asset"`
	Amount  int64          `json:"amount"`
}

// FreeBetMintedEvent is emitted for every issued free bet, batch mints
// included. FreeBetReissuedEvent reuses it when a canceled bet returns the
// stake to its free bet.
type FreeBetMintedEvent struct {
	BaseEvent
	Account   domain.Account `json:"account"`
	FreeBetID uint64         `json:"freebet_id"`
	Amount    int64          `json:"amount"`
	MinOdds   int64          `json:"min_odds"`
	Duration  int64          `json:"duration"`
	ExpiresAt int64          `json:"expires_at"`
}

type FreeBetRedeemedEvent struct {
	BaseEvent
	Account     domain.Account `json:"account"`
	FreeBetID   uint64         `json:"freebet_id"`
	BetID       uint64         `json:"bet_id"`
	ConditionID uint64         `json:"condition_id"`
	Amount      int64          `json:"amount"`
}

type FreeBetBurnedEvent struct {
	BaseEvent
	Account   domain.Account `json:"account"`
	FreeBetID uint64         `json:"freebet_id"`
	Amount    int64          `json:"amount"` // reserve released
}

// FreeBetPaidEvent is the winnings of a free bet, stake excluded, paid to
// its holder.
type FreeBetPaidEvent struct {
	BaseEvent
	Account domain.Account `json:"account"`
	BetID   uint64         `json:"bet_id"`
	Amount  int64          `json:"amount"`
}

// ReserveChangedEvent is emitted when the free bet reserve is funded or
// withdrawn. Account is the sender or the recipient.
type ReserveChangedEvent struct {
	BaseEvent
	Account domain.Account `json:"account"`
	Amount  int64          `json:"amount"`
}
