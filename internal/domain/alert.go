package domain

// OddsAlert watches the quoted odds of one outcome.
// Target is in quant.Multiplier scale.
type OddsAlert struct {
	ConditionID  uint64 `json:"condition_id"`
	Outcome      uint64 `json:"outcome"`
	Target       int64  `json:"target"`
	Direction    string `json:"direction"` // "UP" or "DOWN"
	IsPersistent bool   `json:"is_persistent"`
	active       bool
}

// NewOddsAlert creates a new odds alert.
// Direction is automatically determined based on current:
// - UP: target >= current (waiting for odds to lengthen)
// - DOWN: target < current (waiting for odds to shorten)
func NewOddsAlert(conditionID, outcome uint64, target, current int64, isPersistent bool) *OddsAlert {
	direction := "UP"
	if target < current {
		direction = "DOWN"
	}
	return &OddsAlert{
		ConditionID:  conditionID,
		Outcome:      outcome,
		Target:       target,
		Direction:    direction,
		IsPersistent: isPersistent,
		active:       true,
	}
}

// IsActive returns whether the alert is active
func (a *OddsAlert) IsActive() bool {
	return a.active
}

// SetActive sets the alert's active state
func (a *OddsAlert) SetActive(active bool) {
	a.active = active
}

// CheckCondition reports whether odds reached the target in the alert's
// direction. Inactive alerts never trigger.
func (a *OddsAlert) CheckCondition(odds int64) bool {
	if !a.active {
		return false
	}
	switch a.Direction {
	case "UP":
		return odds >= a.Target
	case "DOWN":
		return odds <= a.Target
	default:
		return false
	}
}
