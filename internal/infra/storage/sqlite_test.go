package storage

import (
	"context"
	"path/filepath"
	"testing"

	"poolbet/internal/domain"
	"poolbet/internal/event"
)

func setupTestDB(t *testing.T) *Storage {
	s, err := NewStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestSaveAndLoadCommands(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	for seq := uint64(1); seq <= 3; seq++ {
		rec := &domain.CommandRecord{Seq: seq, Name: "bet", Caller: "bob", At: int64(100 + seq), Payload: `{"amount":1}`}
		if err := s.SaveCommand(ctx, rec); err != nil {
			t.Fatalf("SaveCommand failed: %v", err)
		}
	}

	recs, err := s.LoadCommands(ctx, 2)
	if err != nil {
		t.Fatalf("LoadCommands failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(recs))
	}
	if recs[0].Seq != 2 || recs[1].Seq != 3 {
		t.Errorf("unexpected order: %d, %d", recs[0].Seq, recs[1].Seq)
	}
	if recs[1].At != 103 || recs[1].Payload != `{"amount":1}` {
		t.Errorf("unexpected record %+v", recs[1])
	}
}

func TestSaveCommand_DuplicateSeq(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	if err := s.SaveCommand(ctx, &domain.CommandRecord{Seq: 1, Name: "mint"}); err != nil {
		t.Fatalf("SaveCommand failed: %v", err)
	}
	if err := s.SaveCommand(ctx, &domain.CommandRecord{Seq: 1, Name: "mint"}); err == nil {
		t.Error("expected error for duplicate sequence")
	}
}

func stamp(ev event.Event, seq uint64, index int, typ event.Type) event.Event {
	event.Stamp(ev, seq, index, 1_700_000_000+int64(seq), typ)
	return ev
}

// lifecycle is one deposit, one condition with a winning bet, a payout, a
// partial withdrawal and a transfer.
func lifecycle() []event.Event {
	return []event.Event{
		stamp(&event.LiquidityAddedEvent{Account: "lp", LeafID: 1 << 20, Amount: 1000}, 1, 0, event.TypeLiquidityAdded),
		stamp(&event.ConditionCreatedEvent{
			Oracle: "oracle", OracleConditionID: 7, ConditionID: 1,
			Outcomes: [2]uint64{1, 2}, FundBank: [2]int64{50, 50},
			Reinforcement: 100, Margin: 0, StartsAt: 1_700_086_400,
		}, 2, 0, event.TypeConditionCreated),
		stamp(&event.NewBetEvent{
			Owner: "bob", BetID: 1, ConditionID: 1, Outcome: 1,
			Amount: 10, Odds: 1_900_000_000, FundBank: [2]int64{60, 41},
		}, 3, 0, event.TypeNewBet),
		stamp(&event.ConditionShiftedEvent{ConditionID: 1, StartsAt: 1_700_090_000}, 4, 0, event.TypeConditionShifted),
		stamp(&event.ConditionResolvedEvent{
			ConditionID: 1, OracleConditionID: 7, State: domain.ConditionResolved,
			OutcomeWin: 1, PoolDelta: -9, TreeDelta: -9,
		}, 5, 0, event.TypeConditionResolved),
		stamp(&event.BetterWinEvent{Account: "bob", BetID: 1, Amount: 19}, 6, 0, event.TypeBetterWin),
		stamp(&event.LiquidityRemovedEvent{Account: "lp", LeafID: 1 << 20, Amount: 400}, 7, 0, event.TypeLiquidityRemoved),
		stamp(&event.PositionTransferredEvent{Kind: "liquidity", ID: 1 << 20, From: "lp", To: "carol"}, 8, 0, event.TypePositionTransferred),
	}
}

func TestIndexer_Lifecycle(t *testing.T) {
	s := setupTestDB(t)
	ix := NewIndexer(s)
	ctx := context.Background()

	for _, ev := range lifecycle() {
		ix.Publish(ev)
	}
	if ix.Failed() != 0 {
		t.Fatalf("expected no failed writes, got %d", ix.Failed())
	}

	conds, err := s.Conditions(ctx)
	if err != nil || len(conds) != 1 {
		t.Fatalf("expected 1 condition, got %d (%v)", len(conds), err)
	}
	c := conds[0]
	if c.State != "RESOLVED" || c.OutcomeWin != 1 || c.PoolDelta != -9 {
		t.Errorf("unexpected resolution %+v", c)
	}
	if c.FundBank0 != 60 || c.FundBank1 != 41 || c.StartsAt != 1_700_090_000 {
		t.Errorf("unexpected banks or start %+v", c)
	}

	bets, err := s.BetsOf(ctx, "bob")
	if err != nil || len(bets) != 1 {
		t.Fatalf("expected 1 bet, got %d (%v)", len(bets), err)
	}
	if !bets[0].Withdrawn || bets[0].Paid != 19 {
		t.Errorf("expected paid bet, got %+v", bets[0])
	}

	positions, err := s.Positions(ctx)
	if err != nil || len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d (%v)", len(positions), err)
	}
	if positions[0].Owner != "carol" || positions[0].Withdrawn != 400 || positions[0].Closed {
		t.Errorf("unexpected position %+v", positions[0])
	}

	events, err := s.EventsSince(ctx, 5, 10)
	if err != nil {
		t.Fatalf("EventsSince failed: %v", err)
	}
	if len(events) != 4 || events[0].Type != string(event.TypeConditionResolved) {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestIndexer_ReplayIsIdempotent(t *testing.T) {
	s := setupTestDB(t)
	ix := NewIndexer(s)
	ctx := context.Background()

	for range 2 {
		for _, ev := range lifecycle() {
			ix.Publish(ev)
		}
	}

	events, _ := s.EventsSince(ctx, 0, 100)
	if len(events) != len(lifecycle()) {
		t.Errorf("expected %d events, got %d", len(lifecycle()), len(events))
	}
	positions, _ := s.Positions(ctx)
	if len(positions) != 1 || positions[0].Withdrawn != 400 {
		t.Errorf("replay double counted: %+v", positions)
	}
	bets, _ := s.BetsOn(ctx, 1)
	if len(bets) != 1 || bets[0].Paid != 19 {
		t.Errorf("unexpected bets after replay %+v", bets)
	}
}
