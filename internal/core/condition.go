package core

import (
	"sort"

	"poolbet/internal/domain"
	"poolbet/internal/event"
	"poolbet/internal/odds"
)

// CreateConditionRequest opens a condition. Odds are the initial fair odds
// hints for each outcome and only decide how reinforcement is split.
type CreateConditionRequest struct {
	OracleConditionID     uint64    `json:"oracle_condition_id"`
	ScopeID               uint64    `json:"scope_id"`
	Odds                  [2]int64  `json:"odds"`
	Outcomes              [2]uint64 `json:"outcomes"`
	StartsAt              int64     `json:"starts_at"`
	MetadataHash          string    `json:"metadata_hash,omitempty"`
	ReinforcementOverride *int64    `json:"reinforcement,omitempty"`
}

// CreateCondition locks reinforcement from the pool and opens betting until
// StartsAt. Returns the internal condition id.
func (p *PoolState) CreateCondition(call Call, req CreateConditionRequest) (uint64, error) {
	if err := p.onlyOracle(call); err != nil {
		return 0, err
	}
	if req.Outcomes[0] == req.Outcomes[1] {
		return 0, domain.ErrSameOutcomes
	}
	if req.Odds[0] <= 0 || req.Odds[1] <= 0 {
		return 0, domain.ErrZeroOdds
	}
	if req.StartsAt <= call.Now {
		return 0, domain.ErrIncorrectTimestamp
	}
	key := oracleKey{call.Caller, req.OracleConditionID}
	if _, ok := p.oracleConditions[key]; ok {
		return 0, domain.ErrConditionAlreadyCreated
	}

	reinforcement := p.reinforcementFor(req.Outcomes[0])
	if req.ReinforcementOverride != nil {
		reinforcement = *req.ReinforcementOverride
	}
	if reinforcement <= 0 {
		return 0, domain.ErrWrongParameter
	}
	bank0, bank1, err := odds.SplitReinforcement(reinforcement, req.Odds[0], req.Odds[1])
	if err != nil {
		return 0, err
	}
	if err := p.liq.CanLock(reinforcement); err != nil {
		return 0, err
	}

	p.begin(call)
	if err := p.liq.Lock(reinforcement); err != nil {
		return 0, err
	}
	p.lastConditionID++
	c := &domain.Condition{
		ID:                p.lastConditionID,
		OracleConditionID: req.OracleConditionID,
		ScopeID:           req.ScopeID,
		Oracle:            call.Caller,
		Outcomes:          req.Outcomes,
		FundBank:          [2]int64{bank0, bank1},
		Reinforcement:     reinforcement,
		Margin:            p.marginFor(req.Outcomes[0]),
		LastLeaf:          p.liq.LastLeaf(),
		StartsAt:          req.StartsAt,
		CreatedAt:         call.Now,
		State:             domain.ConditionCreated,
		MetadataHash:      req.MetadataHash,
	}
	p.conditions[c.ID] = c
	p.oracleConditions[key] = c.ID

	p.emit(&event.ConditionCreatedEvent{
		Oracle:            c.Oracle,
		OracleConditionID: c.OracleConditionID,
		ConditionID:       c.ID,
		ScopeID:           c.ScopeID,
		Outcomes:          c.Outcomes,
		FundBank:          c.FundBank,
		Reinforcement:     c.Reinforcement,
		Margin:            c.Margin,
		StartsAt:          c.StartsAt,
		MetadataHash:      c.MetadataHash,
	}, event.TypeConditionCreated)
	return c.ID, nil
}

// oracleCondition finds a condition the caller created.
func (p *PoolState) oracleCondition(call Call, oracleConditionID uint64) (*domain.Condition, error) {
	if err := p.onlyOracle(call); err != nil {
		return nil, err
	}
	id, ok := p.oracleConditions[oracleKey{call.Caller, oracleConditionID}]
	if !ok {
		return nil, domain.ErrConditionNotExists
	}
	return p.conditions[id], nil
}

func (p *PoolState) condition(id uint64) (*domain.Condition, error) {
	c, ok := p.conditions[id]
	if !ok {
		return nil, domain.ErrConditionNotExists
	}
	return c, nil
}

// ConditionProfit is the pool's result if outcome index win is the winner:
// the stakes lost minus the winnings paid beyond returned stakes.
func ConditionProfit(c *domain.Condition, win int) int64 {
	lose := 1 - win
	return c.TotalNetBets[lose] - (c.Payouts[win] - c.TotalNetBets[win])
}

// ResolveCondition settles a condition the caller created. A loss is shared
// by every depositor. A profit less fees goes only to the positions that
// existed when the condition was created.
func (p *PoolState) ResolveCondition(call Call, oracleConditionID, outcomeWin uint64) error {
	c, err := p.oracleCondition(call, oracleConditionID)
	if err != nil {
		return err
	}
	if !c.IsOpen() {
		return domain.ErrConditionAlreadyResolved
	}
	notBefore := c.ResolveNotBefore(p.params.SettlementDelay)
	if call.Now < notBefore {
		return domain.ErrResolveTooEarly.With(notBefore)
	}
	if p.params.ResolveTimeout > 0 && call.Now > notBefore+p.params.ResolveTimeout {
		return domain.ErrResolveTooLate.With(notBefore + p.params.ResolveTimeout)
	}
	win, ok := c.OutcomeIndex(outcomeWin)
	if !ok {
		return domain.ErrWrongOutcome
	}

	profit := ConditionProfit(c, win)
	split := p.splitProfit(c.Oracle, profit)
	if err := p.liq.CheckPoolDelta(split.tree); err != nil {
		return err
	}

	p.begin(call)
	p.liq.Unlock(c.Reinforcement)
	if err := p.liq.ApplyPoolDeltaUpTo(split.tree, c.LastLeaf); err != nil {
		return err
	}
	p.daoReward = split.dao
	p.oracleRewards[c.Oracle] = split.oracle
	p.outstanding -= profit
	c.State = domain.ConditionResolved
	c.OutcomeWin = outcomeWin

	p.emit(&event.ConditionResolvedEvent{
		ConditionID:       c.ID,
		OracleConditionID: c.OracleConditionID,
		State:             c.State,
		OutcomeWin:        outcomeWin,
		PoolDelta:         profit,
		TreeDelta:         split.tree,
	}, event.TypeConditionResolved)
	return nil
}

// CancelByOracle cancels a condition the caller created. Every bet on it
// becomes refundable at its stake.
func (p *PoolState) CancelByOracle(call Call, oracleConditionID uint64) error {
	c, err := p.oracleCondition(call, oracleConditionID)
	if err != nil {
		return err
	}
	return p.cancel(call, c)
}

// CancelByMaintainer cancels any open condition by internal id.
func (p *PoolState) CancelByMaintainer(call Call, conditionID uint64) error {
	if err := p.onlyMaintainer(call); err != nil {
		return err
	}
	c, err := p.condition(conditionID)
	if err != nil {
		return err
	}
	return p.cancel(call, c)
}

func (p *PoolState) cancel(call Call, c *domain.Condition) error {
	if !c.IsOpen() {
		return domain.ErrConditionAlreadyResolved
	}
	p.begin(call)
	p.liq.Unlock(c.Reinforcement)
	c.State = domain.ConditionCanceled
	c.Paused = false
	p.emit(&event.ConditionResolvedEvent{
		ConditionID:       c.ID,
		OracleConditionID: c.OracleConditionID,
		State:             c.State,
	}, event.TypeConditionResolved)
	return nil
}

// ShiftCondition moves the start of a condition the caller created.
func (p *PoolState) ShiftCondition(call Call, oracleConditionID uint64, startsAt int64) error {
	c, err := p.oracleCondition(call, oracleConditionID)
	if err != nil {
		return err
	}
	if !c.IsOpen() {
		return domain.ErrConditionAlreadyResolved
	}
	if startsAt <= 0 {
		return domain.ErrIncorrectTimestamp
	}
	p.begin(call)
	c.StartsAt = startsAt
	p.emit(&event.ConditionShiftedEvent{ConditionID: c.ID, StartsAt: startsAt}, event.TypeConditionShifted)
	return nil
}

// StopCondition pauses (flag true) or resumes betting on one condition.
func (p *PoolState) StopCondition(call Call, conditionID uint64, flag bool) error {
	if err := p.onlyMaintainer(call); err != nil {
		return err
	}
	c, err := p.condition(conditionID)
	if err != nil {
		return err
	}
	if !c.IsOpen() || c.Paused == flag {
		return domain.ErrCantChangeFlag
	}
	p.begin(call)
	c.Paused = flag
	p.emit(&event.ConditionStoppedEvent{ConditionID: c.ID, Flag: flag}, event.TypeConditionStopped)
	return nil
}

// StopAllConditions pauses or resumes betting on every condition at once.
func (p *PoolState) StopAllConditions(call Call, flag bool) error {
	if err := p.onlyMaintainer(call); err != nil {
		return err
	}
	if p.allStopped == flag {
		return domain.ErrCantChangeFlag
	}
	p.begin(call)
	p.allStopped = flag
	p.emit(&event.AllConditionsStoppedEvent{Flag: flag}, event.TypeAllConditionsStopped)
	return nil
}

// AllStopped reports the global pause flag.
func (p *PoolState) AllStopped() bool { return p.allStopped }

// GetCondition returns a copy of a condition.
func (p *PoolState) GetCondition(id uint64) (domain.Condition, error) {
	c, err := p.condition(id)
	if err != nil {
		return domain.Condition{}, err
	}
	return *c, nil
}

// ConditionID maps an oracle's own condition id to the internal id.
func (p *PoolState) ConditionID(oracle domain.Account, oracleConditionID uint64) (uint64, bool) {
	id, ok := p.oracleConditions[oracleKey{oracle, oracleConditionID}]
	return id, ok
}

// Conditions returns copies of all conditions ordered by id.
func (p *PoolState) Conditions() []domain.Condition {
	out := make([]domain.Condition, 0, len(p.conditions))
	for _, c := range p.conditions {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
