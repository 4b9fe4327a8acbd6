// Package strategy holds automated bettors used by the simulation.
package strategy

import (
	"poolbet/internal/domain"
)

// Action is a bet a strategy wants placed.
type Action struct {
	ConditionID uint64
	Outcome     uint64
	Amount      int64
	MinOdds     int64 // quant.Multiplier scale; the quote seen when deciding
}

// Strategy is the interface that all betting strategies must implement.
// It is called synchronously with every market update.
type Strategy interface {
	// OnMarketUpdate is called when a market changes.
	// It returns a list of bets to be placed.
	OnMarketUpdate(state domain.MarketState) []Action
}
