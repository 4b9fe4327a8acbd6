package event

import "testing"

func TestStamp_DeterministicIDs(t *testing.T) {
	a := &NewBetEvent{BetID: 1}
	b := &NewBetEvent{BetID: 1}
	Stamp(a, 7, 0, 100, TypeNewBet)
	Stamp(b, 7, 0, 100, TypeNewBet)

	if a.GetID() != b.GetID() {
		t.Errorf("same seq/index produced different ids: %s vs %s", a.GetID(), b.GetID())
	}
	if a.GetSeq() != 7 || a.GetType() != TypeNewBet || a.Ts != 100 {
		t.Errorf("unexpected base fields: %+v", a.BaseEvent)
	}

	c := &NewBetEvent{}
	Stamp(c, 7, 1, 100, TypeNewBet)
	if c.GetID() == a.GetID() {
		t.Error("second event of a call must get its own id")
	}
}

func TestFanoutAndRecorder(t *testing.T) {
	var rec Recorder
	var count int
	sink := Fanout{&rec, SinkFunc(func(Event) { count++ })}

	sink.Publish(&LiquidityAddedEvent{BaseEvent: BaseEvent{Type: TypeLiquidityAdded}})
	sink.Publish(&NewBetEvent{BaseEvent: BaseEvent{Type: TypeNewBet}})

	if count != 2 || len(rec.Events()) != 2 {
		t.Fatalf("count=%d recorded=%d", count, len(rec.Events()))
	}
	if got := rec.OfType(TypeNewBet); len(got) != 1 {
		t.Errorf("OfType(NewBet) = %d events", len(got))
	}
}

func TestChannel_DropsWhenFull(t *testing.T) {
	ch := NewChannel(1)
	ch.Publish(&NewBetEvent{})
	ch.Publish(&NewBetEvent{})
	if ch.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", ch.Dropped())
	}
	<-ch.C
}
