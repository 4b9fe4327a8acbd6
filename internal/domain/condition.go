package domain

// ConditionState is the lifecycle state of a condition. Paused is tracked
// separately and only meaningful while Created.
type ConditionState uint8

const (
	ConditionCreated ConditionState = iota
	ConditionResolved
	ConditionCanceled
)

func (s ConditionState) String() string {
	switch s {
	case ConditionCreated:
		return "CREATED"
	case ConditionResolved:
		return "RESOLVED"
	case ConditionCanceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

// Condition is one bettable event with two outcomes.
// Banks, net stakes and payouts are indexed by outcome position (0 or 1).
type Condition struct {
	ID                uint64    `json:"id"`
	OracleConditionID uint64    `json:"oracle_condition_id"`
	ScopeID           uint64    `json:"scope_id"`
	Oracle            Account   `json:"oracle"`
	Outcomes          [2]uint64 `json:"outcomes"`

	FundBank      [2]int64 `json:"fund_bank"`
	TotalNetBets  [2]int64 `json:"total_net_bets"`
	Payouts       [2]int64 `json:"payouts"`
	Reinforcement int64    `json:"reinforcement"`
	Margin        int64    `json:"margin"`

	// LastLeaf is the newest liquidity leaf when the condition was created.
	// Only leaves up to it share a profit from the condition.
	LastLeaf uint64 `json:"last_leaf"`

	StartsAt     int64          `json:"starts_at"`
	CreatedAt    int64          `json:"created_at"`
	State        ConditionState `json:"state"`
	Paused       bool           `json:"paused"`
	OutcomeWin   uint64         `json:"outcome_win"`
	MetadataHash string         `json:"metadata_hash,omitempty"`
}

// OutcomeIndex returns the position of outcome within the condition.
func (c *Condition) OutcomeIndex(outcome uint64) (int, bool) {
	switch outcome {
	case c.Outcomes[0]:
		return 0, true
	case c.Outcomes[1]:
		return 1, true
	}
	return 0, false
}

// IsOpen reports whether the condition still holds locked reinforcement.
func (c *Condition) IsOpen() bool {
	return c.State == ConditionCreated
}

// ResolveNotBefore is the earliest time an oracle may resolve.
func (c *Condition) ResolveNotBefore(settlementDelay int64) int64 {
	return c.StartsAt + settlementDelay
}
