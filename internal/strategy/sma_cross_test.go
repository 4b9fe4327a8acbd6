package strategy_test

import (
	"testing"

	"poolbet/internal/domain"
	"poolbet/internal/strategy"
)

func market(id uint64, odds0 int64) domain.MarketState {
	return domain.MarketState{
		ConditionID: id,
		Outcomes:    [2]uint64{10, 20},
		Odds:        [2]int64{odds0, 3_000_000_000 - odds0},
	}
}

func TestSMACrossStrategy(t *testing.T) {
	// Setup: Short=3, Long=5
	strat := strategy.NewSMACrossStrategy(3, 5, 100)

	push := func(odds int64) []strategy.Action {
		return strat.OnMarketUpdate(market(1, odds))
	}

	// T1-T5: flat at 1.0, not enough history for a previous average
	for i := 0; i < 5; i++ {
		if actions := push(1_000_000_000); len(actions) > 0 {
			t.Errorf("T%d: Expected no actions, got %v", i, actions)
		}
	}

	// T6: odds drift out to 2.0
	//    Short(3) = (1+1+2)/3 = 1.333
	//    Long(5)  = (1+1+1+1+2)/5 = 1.2  => back the first outcome
	actions := push(2_000_000_000)
	if len(actions) != 1 {
		t.Fatalf("T6: Expected 1 action, got %d", len(actions))
	}
	if actions[0].Outcome != 10 || actions[0].Amount != 100 || actions[0].MinOdds != 2_000_000_000 {
		t.Errorf("T6: unexpected action %+v", actions[0])
	}

	// T7: 0.5 -> Short 1.166 > Long 1.1, no cross
	if actions := push(500_000_000); len(actions) != 0 {
		t.Errorf("T7: Expected no actions, got %v", actions)
	}

	// T8: 0 -> Short 0.833 < Long 0.9 => back the second outcome
	actions = push(0)
	if len(actions) != 1 {
		t.Fatalf("T8: Expected 1 action, got %d", len(actions))
	}
	if actions[0].Outcome != 20 || actions[0].MinOdds != 3_000_000_000 {
		t.Errorf("T8: unexpected action %+v", actions[0])
	}
}

func TestSMACrossStrategy_PerCondition(t *testing.T) {
	strat := strategy.NewSMACrossStrategy(1, 2, 1)

	// Interleaved updates must not share history.
	strat.OnMarketUpdate(market(1, 1_000_000_000))
	strat.OnMarketUpdate(market(2, 2_000_000_000))
	strat.OnMarketUpdate(market(1, 1_000_000_000))
	strat.OnMarketUpdate(market(2, 2_000_000_000))

	if actions := strat.OnMarketUpdate(market(1, 1_500_000_000)); len(actions) != 1 || actions[0].ConditionID != 1 {
		t.Errorf("expected a bet on condition 1, got %v", actions)
	}
	if actions := strat.OnMarketUpdate(market(2, 2_000_000_000)); len(actions) != 0 {
		t.Errorf("expected no bet on flat condition 2, got %v", actions)
	}
}

func TestSMACrossStrategy_IgnoresClosedAndPaused(t *testing.T) {
	strat := strategy.NewSMACrossStrategy(1, 2, 1)
	for _, odds := range []int64{1_000_000_000, 1_000_000_000} {
		strat.OnMarketUpdate(market(1, odds))
	}

	paused := market(1, 1_500_000_000)
	paused.Paused = true
	if actions := strat.OnMarketUpdate(paused); len(actions) != 0 {
		t.Errorf("expected no bet on paused market, got %v", actions)
	}

	resolved := market(1, 3_000_000_000)
	resolved.State = domain.ConditionResolved
	if actions := strat.OnMarketUpdate(resolved); len(actions) != 0 {
		t.Errorf("expected no bet on resolved market, got %v", actions)
	}
}

func TestNewSMACrossStrategy_PanicsOnBadPeriods(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	strategy.NewSMACrossStrategy(5, 5, 1)
}
