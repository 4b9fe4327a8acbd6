package engine

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"poolbet/internal/core"
	"poolbet/internal/domain"
)

type memJournal struct {
	mu   sync.Mutex
	recs []domain.CommandRecord
	fail error
}

func (j *memJournal) SaveCommand(_ context.Context, rec *domain.CommandRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.fail != nil {
		return j.fail
	}
	j.recs = append(j.recs, *rec)
	return nil
}

func (j *memJournal) LoadCommands(_ context.Context, fromSeq uint64) ([]domain.CommandRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []domain.CommandRecord
	for _, r := range j.recs {
		if r.Seq >= fromSeq {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestPool() *core.PoolState {
	params := core.DefaultParams()
	params.TreeDepth = 16
	return core.New("owner", params)
}

func fixedClock(now *int64) func() int64 {
	return func() int64 { return *now }
}

func TestSequencer_ConcurrentSubmitsGetTotalOrder(t *testing.T) {
	journal := &memJournal{}
	seq := NewSequencer(16, newTestPool(), WithJournal(journal))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go seq.Run(ctx)

	const n = 50
	var wg sync.WaitGroup
	seen := make(chan uint64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := seq.Submit(ctx, "owner", &Mint{To: "alice", Amount: 1})
			if err != nil || res.Err != nil {
				t.Errorf("submit failed: %v %v", err, res.Err)
				return
			}
			seen <- res.Seq
		}()
	}
	wg.Wait()
	close(seen)

	got := make(map[uint64]bool)
	for s := range seen {
		if got[s] {
			t.Fatalf("sequence %d assigned twice", s)
		}
		got[s] = true
	}
	for i := uint64(1); i <= n; i++ {
		if !got[i] {
			t.Errorf("sequence %d missing", i)
		}
	}
	for i, rec := range journal.recs {
		if rec.Seq != uint64(i+1) {
			t.Fatalf("journal out of order at %d: seq %d", i, rec.Seq)
		}
	}
	seq.Read(func(p *core.PoolState) {
		if bal := p.Vault().BalanceOf("alice", domain.AssetToken); bal != n {
			t.Errorf("Expected balance %d, got %d", n, bal)
		}
	})
}

func runScript(t *testing.T, seq *Sequencer, now *int64) {
	t.Helper()
	ctx := context.Background()
	steps := []struct {
		caller domain.Account
		cmd    Command
		at     int64
	}{
		{"owner", &AddOracle{Account: "oracle"}, 0},
		{"owner", &AddMaintainer{Account: "maint"}, 0},
		{"owner", &Mint{To: "lp", Amount: 1_000_000}, 0},
		{"owner", &Mint{To: "bob", Amount: 10_000}, 0},
		{"owner", &Mint{To: "carol", Asset: domain.AssetNative, Amount: 10_000}, 0},
		{"lp", &AddLiquidity{Amount: 1_000_000}, 0},
		{"oracle", &CreateCondition{core.CreateConditionRequest{
			OracleConditionID: 7, Odds: [2]int64{2e9, 2e9}, Outcomes: [2]uint64{1, 2}, StartsAt: *now + 3600,
		}}, 0},
		{"bob", &PlaceBet{core.BetRequest{ConditionID: 1, Outcome: 1, Amount: 5_000, Deadline: *now + 10}}, 0},
		{"carol", &PlaceBet{core.BetRequest{ConditionID: 1, Outcome: 2, Amount: 3_000, Deadline: *now + 10, Asset: domain.AssetNative}}, 0},
		{"bob", &PlaceBet{core.BetRequest{ConditionID: 1, Outcome: 3, Amount: 1, Deadline: *now + 10}}, 0},
		{"oracle", &ResolveCondition{OracleConditionID: 7, Outcome: 1}, *now + 3600 + 60},
		{"bob", &WithdrawPayout{BetID: 1}, *now + 3600 + 61},
		{"lp", &WithdrawLiquidity{Leaf: 1 << 16, Fraction: 500_000_000_000}, *now + 3600 + 62},
		{"owner", &ClaimDaoReward{}, *now + 3600 + 63},
	}
	for i, st := range steps {
		if _, err := seq.SubmitAt(ctx, st.caller, st.cmd, st.at); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

func TestSequencer_ReplayIsDeterministic(t *testing.T) {
	now := int64(1_700_000_000)
	journal := &memJournal{}
	live := NewSequencer(16, newTestPool(), WithJournal(journal), WithClock(fixedClock(&now)), WithInvariantChecks())
	ctx, cancel := context.WithCancel(context.Background())
	go live.Run(ctx)
	runScript(t, live, &now)
	cancel()

	recs, err := journal.LoadCommands(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 14 {
		t.Fatalf("Expected 14 journaled commands, got %d", len(recs))
	}

	replayed := NewSequencer(16, newTestPool(), WithInvariantChecks())
	if err := replayed.Replay(recs); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if replayed.NextSeq() != live.NextSeq() {
		t.Errorf("Expected next seq %d, got %d", live.NextSeq(), replayed.NextSeq())
	}

	var want, got core.Snapshot
	live.Read(func(p *core.PoolState) { want = p.Snapshot() })
	replayed.Read(func(p *core.PoolState) { got = p.Snapshot() })
	if !reflect.DeepEqual(want, got) {
		t.Errorf("replayed state differs\nwant %+v\ngot  %+v", want, got)
	}
}

func TestSequencer_RejectedCommandKeepsSequence(t *testing.T) {
	journal := &memJournal{}
	seq := NewSequencer(4, newTestPool(), WithJournal(journal))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go seq.Run(ctx)

	res, err := seq.Submit(ctx, "mallory", &Mint{To: "mallory", Amount: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(res.Err, domain.ErrOnlyOwner) {
		t.Errorf("Expected OnlyOwner, got %v", res.Err)
	}
	if res.Seq != 1 || seq.NextSeq() != 2 {
		t.Errorf("Expected seq 1 consumed, got seq %d next %d", res.Seq, seq.NextSeq())
	}
	if len(journal.recs) != 1 {
		t.Errorf("Expected rejected command to be journaled")
	}
}

func TestSequencer_SubmitHonoursContext(t *testing.T) {
	seq := NewSequencer(1, newTestPool())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// nothing drains the inbox
	_, err := seq.Submit(ctx, "owner", &ClaimDaoReward{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestSequencer_ReplayGapDetection(t *testing.T) {
	seq := NewSequencer(1, newTestPool())

	defer func() {
		if r := recover(); r == nil {
			t.Error("Sequencer should have panicked on sequence gap")
		}
	}()

	_ = seq.Replay([]domain.CommandRecord{{Seq: 2, Name: "claimDaoReward"}})
}

func TestSequencer_PersistenceFailureHalts(t *testing.T) {
	seq := NewSequencer(1, newTestPool(), WithJournal(&memJournal{fail: errors.New("disk full")}))

	defer func() {
		if r := recover(); r == nil {
			t.Error("Sequencer should have panicked on journal failure")
		}
		if seq.NextSeq() != 1 {
			t.Error("Sequence must not advance when journaling fails")
		}
	}()

	seq.process(&request{caller: "owner", cmd: &ClaimDaoReward{}, reply: make(chan Result, 1)})
}

func TestDecode(t *testing.T) {
	cmd, err := Decode("betNative", []byte(`{"condition_id":3,"outcome":1,"amount":50,"deadline":10}`))
	if err != nil {
		t.Fatal(err)
	}
	bet, ok := cmd.(*PlaceBet)
	if !ok {
		t.Fatalf("Expected *PlaceBet, got %T", cmd)
	}
	if bet.ConditionID != 3 || bet.Amount != 50 || bet.Asset != domain.AssetNative {
		t.Errorf("unexpected decode: %+v", bet.BetRequest)
	}

	if _, err := Decode("selfDestruct", nil); !errors.Is(err, domain.ErrUnknownCommand) {
		t.Errorf("Expected unknown command error, got %v", err)
	}
	if _, err := Decode("bet", []byte(`{"amount":"lots"}`)); err == nil {
		t.Error("Expected decode error for malformed payload")
	}
}

func TestDecode_RoundTripsEveryCommand(t *testing.T) {
	for _, name := range Names() {
		cmd, err := Decode(name, nil)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if _, err := Decode(cmd.Name(), nil); err != nil {
			t.Errorf("%s journals as unknown name %q", name, cmd.Name())
		}
	}
}
