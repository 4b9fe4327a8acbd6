package domain

// MarketState is the read-side view of one condition: current banks and the
// odds a minimal stake would get on each side.
// Fields are ordered for cache-line efficiency: hot fields first.
type MarketState struct {
	Odds         [2]int64 `json:"odds"`
	FundBank     [2]int64 `json:"fund_bank"`
	LastUpdateTs int64    `json:"last_update"`
	BetCount     int      `json:"bet_count"`

	ConditionID uint64         `json:"condition_id"`
	Outcomes    [2]uint64      `json:"outcomes"`
	Margin      int64          `json:"margin"`
	State       ConditionState `json:"state"`
	Paused      bool           `json:"paused"`
	OutcomeWin  uint64         `json:"outcome_win"`
}
