package engine

import (
	"context"
	"errors"
	"testing"

	"poolbet/internal/core"
	"poolbet/internal/domain"
	"poolbet/internal/event"
	"poolbet/internal/freebet"
)

func newFreeBetPool(t *testing.T, sink event.Sink) *core.PoolState {
	t.Helper()
	params := core.DefaultParams()
	params.TreeDepth = 16
	p := core.New("owner", params, core.WithSink(sink))
	if _, err := freebet.Attach(p, "freebets"); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestFreeBetCommands_DisabledWithoutManager(t *testing.T) {
	seq := NewSequencer(4, newTestPool())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go seq.Run(ctx)

	res, err := seq.Submit(ctx, "maint", &MintFreeBet{To: "bob", Terms: freebet.Terms{Amount: 1, Duration: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(res.Err, domain.ErrFreeBetDisabled) {
		t.Errorf("Expected free bets disabled, got %v", res.Err)
	}
}

func TestFreeBetCommands_RedeemAndWithdraw(t *testing.T) {
	now := int64(1_700_000_000)
	rec := &event.Recorder{}
	seq := NewSequencer(16, newFreeBetPool(t, rec), WithClock(fixedClock(&now)), WithInvariantChecks())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go seq.Run(ctx)

	submit := func(caller domain.Account, cmd Command, at int64) Result {
		t.Helper()
		res, err := seq.SubmitAt(ctx, caller, cmd, at)
		if err != nil {
			t.Fatal(err)
		}
		if res.Err != nil {
			t.Fatalf("%s: %v", cmd.Name(), res.Err)
		}
		return res
	}

	submit("owner", &AddOracle{Account: "oracle"}, 0)
	submit("owner", &AddMaintainer{Account: "maint"}, 0)
	submit("owner", &Mint{To: "lp", Amount: 1_000_000}, 0)
	submit("owner", &Mint{To: "sponsor", Amount: 10_000}, 0)
	submit("lp", &AddLiquidity{Amount: 1_000_000}, 0)
	submit("sponsor", &FundFreeBets{Amount: 10_000}, 0)
	submit("oracle", &CreateCondition{core.CreateConditionRequest{
		OracleConditionID: 7, Odds: [2]int64{2e9, 2e9}, Outcomes: [2]uint64{1, 2}, StartsAt: now + 3600,
	}}, 0)
	submit("maint", &MintFreeBet{To: "bob", Terms: freebet.Terms{Amount: 1_000, MinOdds: 1_500_000_000, Duration: 86_400}}, 0)

	redeemed := submit("bob", &RedeemFreeBet{freebet.RedeemRequest{
		FreeBetID: 1, ConditionID: 1, Outcome: 1, Amount: 1_000, Deadline: now + 10,
	}}, 0)
	bet := redeemed.Value.(BetResult)

	// NewBet and FreeBetRedeemed come from the same call and must not share an id
	var ids []string
	for _, ev := range rec.Events() {
		if ev.GetSeq() == redeemed.Seq {
			ids = append(ids, ev.GetID())
		}
	}
	if len(ids) != 2 || ids[0] == ids[1] {
		t.Errorf("Expected two distinct event ids in the redeem call, got %v", ids)
	}

	res, err := seq.SubmitAt(ctx, "alice", &TransferFreeBet{FreeBetID: 1, To: "alice"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(res.Err, domain.ErrOnlyBetOwner) {
		t.Errorf("Expected OnlyBetOwner for a stranger, got %v", res.Err)
	}

	submit("oracle", &ResolveCondition{OracleConditionID: 7, Outcome: 1}, now+3600+60)
	paid := submit("bob", &WithdrawFreeBetPayout{BetID: bet.BetID}, now+3600+61)

	want := 1_000*bet.Odds/1_000_000_000 - 1_000
	if paid.Value.(int64) != want {
		t.Errorf("Expected winnings %d, got %v", want, paid.Value)
	}
	seq.Read(func(p *core.PoolState) {
		if got := p.Vault().BalanceOf("bob", domain.AssetToken); got != want {
			t.Errorf("Expected bob to hold %d, got %d", want, got)
		}
		m, _ := freebet.From(p)
		if _, held := m.OwnerOf(1); held {
			t.Error("Expected the spent free bet to be burned")
		}
	})
}
