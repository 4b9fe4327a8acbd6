package strategy_test

import (
	"testing"

	"poolbet/internal/strategy"
)

// BenchmarkSMACrossStrategy_OnMarketUpdate measures steady-state cost.
// The ring buffer keeps it allocation free.
func BenchmarkSMACrossStrategy_OnMarketUpdate(b *testing.B) {
	strat := strategy.NewSMACrossStrategy(20, 50, 1)

	// Pre-fill buffer to reach steady state
	for i := 0; i < 50; i++ {
		strat.OnMarketUpdate(market(1, 1_900_000_000+int64(i*1000)))
	}

	state := market(1, 1_950_000_000)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		state.Odds[0] = 1_900_000_000 + int64(i%10000)*1000
		strat.OnMarketUpdate(state)
	}
}

// BenchmarkSMACrossStrategy_ColdStart measures strategy initialization overhead.
func BenchmarkSMACrossStrategy_ColdStart(b *testing.B) {
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		strat := strategy.NewSMACrossStrategy(20, 50, 1)
		strat.OnMarketUpdate(market(1, 1_900_000_000))
	}
}
