package domain

import (
	"context"
)

// CommandJournal persists pool calls before they are applied, so the state
// can be rebuilt by applying them again in order.
type CommandJournal interface {
	SaveCommand(ctx context.Context, rec *CommandRecord) error
	LoadCommands(ctx context.Context, fromSeq uint64) ([]CommandRecord, error)
}

// MarketReader serves the read-side view of conditions.
type MarketReader interface {
	GetMarket(conditionID uint64) (MarketState, bool)
	Markets() []MarketState
}
