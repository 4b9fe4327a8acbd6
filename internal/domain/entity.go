package domain

import (
	"time"
)

// CommandRecord is one journaled pool call. Payload is the command as JSON.
type CommandRecord struct {
	Seq       uint64    `gorm:"primaryKey;autoIncrement:false" json:"seq"`
	Name      string    `gorm:"index" json:"name"`
	Caller    string    `json:"caller"`
	At        int64     `json:"at"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// EventRecord is one emitted event, keyed by its deterministic id.
type EventRecord struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Seq       uint64    `gorm:"index" json:"seq"`
	Type      string    `gorm:"index" json:"type"`
	Ts        int64     `json:"ts"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// ConditionRecord is the indexed view of a condition.
type ConditionRecord struct {
	ConditionID       uint64    `gorm:"primaryKey;autoIncrement:false" json:"condition_id"`
	OracleConditionID uint64    `gorm:"index" json:"oracle_condition_id"`
	Oracle            string    `gorm:"index" json:"oracle"`
	Outcome0          uint64    `json:"outcome0"`
	Outcome1          uint64    `json:"outcome1"`
	FundBank0         int64     `json:"fund_bank0"`
	FundBank1         int64     `json:"fund_bank1"`
	Reinforcement     int64     `json:"reinforcement"`
	Margin            int64     `json:"margin"`
	StartsAt          int64     `json:"starts_at"`
	State             string    `gorm:"index" json:"state"`
	Paused            bool      `json:"paused"`
	OutcomeWin        uint64    `json:"outcome_win"`
	PoolDelta         int64     `json:"pool_delta"`
	LastSeq           uint64    `json:"last_seq"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// BetRecord is the indexed view of a bet.
type BetRecord struct {
	BetID       uint64    `gorm:"primaryKey;autoIncrement:false" json:"bet_id"`
	ConditionID uint64    `gorm:"index" json:"condition_id"`
	Owner       string    `gorm:"index" json:"owner"`
	Outcome     uint64    `json:"outcome"`
	Amount      int64     `json:"amount"`
	Odds        int64     `json:"odds"`
	Paid        int64     `json:"paid"`
	Withdrawn   bool      `json:"withdrawn"`
	LastSeq     uint64    `json:"last_seq"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PositionRecord is the indexed view of a liquidity position.
type PositionRecord struct {
	LeafID    uint64    `gorm:"primaryKey;autoIncrement:false" json:"leaf_id"`
	Owner     string    `gorm:"index" json:"owner"`
	Deposited int64     `json:"deposited"`
	Withdrawn int64     `json:"withdrawn"`
	Closed    bool      `json:"closed"`
	LastSeq   uint64    `json:"last_seq"`
	UpdatedAt time.Time `json:"updated_at"`
}
