package domain

// Bet is one accepted stake. Odds are fixed at acceptance.
// All monetary values are strictly int64.
type Bet struct {
	ID          uint64 `json:"id"`
	ConditionID uint64 `json:"condition_id"`
	Outcome     uint64 `json:"outcome"`
	Amount      int64  `json:"amount"`
	Odds        int64  `json:"odds"`
	CreatedAt   int64  `json:"created_at"`
	Withdrawn   bool   `json:"withdrawn"`
	Asset       Asset  `json:"asset"`
}

// DepositPosition is one liquidity contribution bound to a tree leaf.
type DepositPosition struct {
	LeafID        uint64 `json:"leaf_id"`
	Deposited     int64  `json:"deposited"`
	CreatedAt     int64  `json:"created_at"`
	WithdrawAfter int64  `json:"withdraw_after"`
}
