package strategy

import (
	"poolbet/internal/domain"
	"poolbet/pkg/safe"
)

// window is the odds history of one outcome of one condition.
// Ring buffer, so updates do not allocate.
type window struct {
	odds  []int64
	head  int   // Current write position
	count int   // Number of elements filled
	sum   int64 // Running sum over the long period

	prevShortSMA int64
	prevLongSMA  int64
}

// SMACrossStrategy watches the quoted odds of the first outcome of every
// condition. When the short moving average crosses above the long one the
// first outcome is drifting out and it is backed; a cross below backs the
// second outcome. It is stateful and deterministic.
type SMACrossStrategy struct {
	shortPeriod int
	longPeriod  int
	stake       int64

	windows map[uint64]*window
}

// NewSMACrossStrategy creates a new instance staking stake per signal.
func NewSMACrossStrategy(shortPeriod, longPeriod int, stake int64) *SMACrossStrategy {
	if shortPeriod >= longPeriod {
		panic("SMACrossStrategy: shortPeriod must be less than longPeriod")
	}
	return &SMACrossStrategy{
		shortPeriod: shortPeriod,
		longPeriod:  longPeriod,
		stake:       stake,
		windows:     make(map[uint64]*window),
	}
}

// OnMarketUpdate processes market updates and generates bets.
func (s *SMACrossStrategy) OnMarketUpdate(state domain.MarketState) []Action {
	// 1. Closed markets are forgotten
	if state.State != domain.ConditionCreated {
		delete(s.windows, state.ConditionID)
		return nil
	}

	w, ok := s.windows[state.ConditionID]
	if !ok {
		w = &window{odds: make([]int64, s.longPeriod)}
		s.windows[state.ConditionID] = w
	}

	current := state.Odds[0]

	// 2. Update odds history (ring buffer)
	// If full, subtract the oldest value from sum before overwriting
	if w.count == s.longPeriod {
		w.sum = safe.SafeSub(w.sum, w.odds[w.head]) // head points to the oldest value when full
	}
	w.odds[w.head] = current
	w.sum = safe.SafeAdd(w.sum, current)
	w.head = (w.head + 1) % s.longPeriod
	if w.count < s.longPeriod {
		w.count++
	}

	// 3. Check if we have enough data
	if w.count < s.longPeriod {
		return nil
	}

	// 4. Calculate SMAs
	currLongSMA := safe.SafeDiv(w.sum, int64(s.longPeriod))
	currShortSMA := s.shortSMA(w)

	var actions []Action

	// 5. Check for Cross. Paused markets still update the history.
	if w.prevShortSMA != 0 && w.prevLongSMA != 0 && !state.Paused {
		if w.prevShortSMA <= w.prevLongSMA && currShortSMA > currLongSMA {
			actions = append(actions, Action{
				ConditionID: state.ConditionID,
				Outcome:     state.Outcomes[0],
				Amount:      s.stake,
				MinOdds:     state.Odds[0],
			})
		}
		if w.prevShortSMA >= w.prevLongSMA && currShortSMA < currLongSMA {
			actions = append(actions, Action{
				ConditionID: state.ConditionID,
				Outcome:     state.Outcomes[1],
				Amount:      s.stake,
				MinOdds:     state.Odds[1],
			})
		}
	}

	// 6. Update State
	w.prevShortSMA = currShortSMA
	w.prevLongSMA = currLongSMA

	return actions
}

// shortSMA averages the last shortPeriod entries of the ring buffer.
func (s *SMACrossStrategy) shortSMA(w *window) int64 {
	var sum int64
	// head is the next write slot, so head-1 is the latest
	idx := w.head
	for i := 0; i < s.shortPeriod; i++ {
		idx--
		if idx < 0 {
			idx = s.longPeriod - 1
		}
		sum = safe.SafeAdd(sum, w.odds[idx])
	}
	return safe.SafeDiv(sum, int64(s.shortPeriod))
}
