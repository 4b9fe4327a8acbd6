package service

import (
	"sort"
	"sync"

	"poolbet/internal/domain"
	"poolbet/internal/event"
	"poolbet/internal/odds"
	"poolbet/pkg/quant"

	"github.com/shopspring/decimal"
)

var _ domain.MarketReader = (*MarketService)(nil)

// AlertHit is an odds alert that triggered.
type AlertHit struct {
	Alert domain.OddsAlert `json:"alert"`
	Odds  int64            `json:"odds"`
	Seq   uint64           `json:"seq"`
}

// MarketService keeps the read-side view of every condition, fed by pool
// events. Readers never touch the pool itself.
type MarketService struct {
	mu        sync.RWMutex
	markets   map[uint64]*domain.MarketState
	alerts    []*domain.OddsAlert
	alertChan chan AlertHit
}

// NewMarketService creates a new MarketService instance
func NewMarketService() *MarketService {
	return &MarketService{
		markets:   make(map[uint64]*domain.MarketState),
		alertChan: make(chan AlertHit, 100),
	}
}

// Publish makes MarketService an event.Sink.
func (s *MarketService) Publish(ev event.Event) {
	s.ProcessEvents([]event.Event{ev})
}

// ProcessEvents applies events in order and checks alerts on every market
// whose odds moved.
func (s *MarketService) ProcessEvents(evs []event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range evs {
		m := s.apply(ev)
		if m != nil {
			s.checkAlerts(m, ev.GetSeq())
		}
	}
}

// apply updates one market and returns it when its quotes changed.
// Must be called with lock held
func (s *MarketService) apply(ev event.Event) *domain.MarketState {
	switch e := ev.(type) {
	case *event.ConditionCreatedEvent:
		m := &domain.MarketState{
			ConditionID:  e.ConditionID,
			Outcomes:     e.Outcomes,
			FundBank:     e.FundBank,
			Margin:       e.Margin,
			State:        domain.ConditionCreated,
			LastUpdateTs: e.Ts,
		}
		s.markets[e.ConditionID] = m
		requote(m)
		return m

	case *event.NewBetEvent:
		m, ok := s.markets[e.ConditionID]
		if !ok {
			return nil
		}
		m.FundBank = e.FundBank
		m.BetCount++
		m.LastUpdateTs = e.Ts
		requote(m)
		return m

	case *event.ConditionResolvedEvent:
		if m, ok := s.markets[e.ConditionID]; ok {
			m.State = e.State
			m.OutcomeWin = e.OutcomeWin
			m.LastUpdateTs = e.Ts
		}

	case *event.ConditionStoppedEvent:
		if m, ok := s.markets[e.ConditionID]; ok {
			m.Paused = e.Flag
			m.LastUpdateTs = e.Ts
		}
	}
	return nil
}

// requote sets the odds a minimal stake would get on each side.
func requote(m *domain.MarketState) {
	for i := range m.Odds {
		m.Odds[i] = odds.Price(m.FundBank[0], m.FundBank[1], 0, i, m.Margin, quant.Multiplier)
	}
}

// Must be called with lock held
func (s *MarketService) checkAlerts(m *domain.MarketState, seq uint64) {
	for _, a := range s.alerts {
		if a.ConditionID != m.ConditionID {
			continue
		}
		idx := 0
		if a.Outcome == m.Outcomes[1] {
			idx = 1
		} else if a.Outcome != m.Outcomes[0] {
			continue
		}
		if !a.CheckCondition(m.Odds[idx]) {
			continue
		}
		if !a.IsPersistent {
			a.SetActive(false)
		}
		select {
		case s.alertChan <- AlertHit{Alert: *a, Odds: m.Odds[idx], Seq: seq}:
		default:
		}
	}
}

// GetMarket returns a copy of one market.
func (s *MarketService) GetMarket(conditionID uint64) (domain.MarketState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[conditionID]
	if !ok {
		return domain.MarketState{}, false
	}
	return *m, true
}

// Markets returns all markets sorted by condition id.
func (s *MarketService) Markets() []domain.MarketState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.MarketState, 0, len(s.markets))
	for _, m := range s.markets {
		result = append(result, *m)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ConditionID < result[j].ConditionID
	})
	return result
}

// Quote prices a stake of amount on outcome from the read model. It matches
// what the pool would quote as of the last processed event.
func (s *MarketService) Quote(conditionID, outcome uint64, amount int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[conditionID]
	if !ok {
		return 0, domain.ErrConditionNotExists
	}
	idx := 0
	switch outcome {
	case m.Outcomes[0]:
	case m.Outcomes[1]:
		idx = 1
	default:
		return 0, domain.ErrWrongOutcome
	}
	return odds.Price(m.FundBank[0], m.FundBank[1], amount, idx, m.Margin, quant.Multiplier), nil
}

// DisplayOdds renders both quotes as decimals, e.g. 1.95.
func DisplayOdds(m domain.MarketState) [2]decimal.Decimal {
	return [2]decimal.Decimal{
		decimal.New(m.Odds[0], -9),
		decimal.New(m.Odds[1], -9),
	}
}

// AddAlert registers an odds alert.
func (s *MarketService) AddAlert(a *domain.OddsAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts = append(s.alerts, a)
}

// GetAlertChan returns the channel triggered alerts are sent on.
func (s *MarketService) GetAlertChan() <-chan AlertHit {
	return s.alertChan
}
