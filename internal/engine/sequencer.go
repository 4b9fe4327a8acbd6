package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"poolbet/internal/core"
	"poolbet/internal/domain"
)

// Result is what a submitted command produced.
type Result struct {
	Seq   uint64 `json:"seq"`
	At    int64  `json:"at"`
	Value any    `json:"value,omitempty"`
	Err   error  `json:"-"`
}

type request struct {
	caller domain.Account
	cmd    Command
	at     int64
	reply  chan Result
}

// Observer is told about every applied command.
type Observer func(name string, res Result, elapsed time.Duration)

// Sequencer is the single writer of the pool. Commands from any number of
// goroutines are put in one total order, journaled, then applied.
type Sequencer struct {
	inbox   chan *request
	pool    *core.PoolState
	nextSeq uint64
	journal domain.CommandJournal

	clock    func() int64
	observer Observer
	verify   bool
	dumpFile string

	mu sync.RWMutex // held while applying; readers take RLock
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithJournal persists every command before it is applied.
func WithJournal(j domain.CommandJournal) Option {
	return func(s *Sequencer) { s.journal = j }
}

// WithClock replaces the wall clock used to stamp commands.
func WithClock(clock func() int64) Option {
	return func(s *Sequencer) { s.clock = clock }
}

// WithObserver reports every applied command.
func WithObserver(o Observer) Option {
	return func(s *Sequencer) { s.observer = o }
}

// WithInvariantChecks verifies the pool after every command.
func WithInvariantChecks() Option {
	return func(s *Sequencer) { s.verify = true }
}

// WithDumpFile sets where the state is written when the sequencer halts.
func WithDumpFile(path string) Option {
	return func(s *Sequencer) { s.dumpFile = path }
}

// NewSequencer creates a new sequencer over pool.
func NewSequencer(inboxSize int, pool *core.PoolState, opts ...Option) *Sequencer {
	s := &Sequencer{
		inbox:    make(chan *request, inboxSize),
		pool:     pool,
		nextSeq:  1,
		clock:    func() int64 { return time.Now().Unix() },
		dumpFile: "panic_dump.json",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextSeq is the sequence the next command will get.
func (s *Sequencer) NextSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextSeq
}

// Submit queues a command and waits for its result. The command's own error
// is in Result.Err; the returned error only reports that ctx ended first.
func (s *Sequencer) Submit(ctx context.Context, caller domain.Account, cmd Command) (Result, error) {
	return s.SubmitAt(ctx, caller, cmd, 0)
}

// SubmitAt is Submit with an explicit timestamp. Zero means the sequencer
// clock. Scripts and simulations use it to move time.
func (s *Sequencer) SubmitAt(ctx context.Context, caller domain.Account, cmd Command, at int64) (Result, error) {
	req := &request{caller: caller, cmd: cmd, at: at, reply: make(chan Result, 1)}
	select {
	case s.inbox <- req:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Run starts the main loop. This MUST be run in a single goroutine.
func (s *Sequencer) Run(ctx context.Context) {
	slog.Info("Sequencer started", slog.Uint64("next_seq", s.NextSeq()))

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			s.DumpState(s.dumpFile)
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Sequencer stopping...", slog.Uint64("next_seq", s.NextSeq()))
			return
		case req := <-s.inbox:
			req.reply <- s.process(req)
		}
	}
}

func (s *Sequencer) process(req *request) Result {
	at := req.at
	if at == 0 {
		at = s.clock()
	}
	seq := s.nextSeq

	// 1. WAL-first: persistence
	if s.journal != nil {
		payload, err := json.Marshal(req.cmd)
		if err != nil {
			return Result{Seq: seq, At: at, Err: fmt.Errorf("failed to encode %s: %w", req.cmd.Name(), err)}
		}
		rec := &domain.CommandRecord{
			Seq:     seq,
			Name:    req.cmd.Name(),
			Caller:  string(req.caller),
			At:      at,
			Payload: string(payload),
		}
		if err := s.journal.SaveCommand(context.Background(), rec); err != nil {
			panic(fmt.Sprintf("PERSISTENCE_FAILURE: %v", err))
		}
	}

	// 2. Apply
	start := time.Now()
	res := s.apply(req.caller, req.cmd, seq, at)
	if s.observer != nil {
		s.observer(req.cmd.Name(), res, time.Since(start))
	}
	if res.Err != nil {
		slog.Debug("command rejected",
			slog.Uint64("seq", seq),
			slog.String("command", req.cmd.Name()),
			slog.String("caller", string(req.caller)),
			slog.Any("error", res.Err))
	}
	return res
}

// apply runs one command and advances the sequence.
func (s *Sequencer) apply(caller domain.Account, cmd Command, seq uint64, at int64) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, err := cmd.Apply(s.pool, core.Call{Caller: caller, Now: at, Seq: seq})
	if s.verify {
		s.pool.VerifyInvariants()
	}
	s.nextSeq++
	return Result{Seq: seq, At: at, Value: value, Err: err}
}

// Replay applies journaled commands without journaling them again. It must
// be called before Run. Records must continue the sequence exactly.
func (s *Sequencer) Replay(records []domain.CommandRecord) error {
	for _, rec := range records {
		if rec.Seq != s.nextSeq {
			panic(fmt.Sprintf("REPLAY_GAP_DETECTED: expected %d, got %d", s.nextSeq, rec.Seq))
		}
		cmd, err := Decode(rec.Name, []byte(rec.Payload))
		if err != nil {
			return fmt.Errorf("failed to replay seq %d: %w", rec.Seq, err)
		}
		s.apply(domain.Account(rec.Caller), cmd, rec.Seq, rec.At)
	}
	slog.Info("Replay completed", slog.Int("commands", len(records)), slog.Uint64("next_seq", s.NextSeq()))
	return nil
}

// Read runs fn with shared access to the pool (external reads).
func (s *Sequencer) Read(fn func(p *core.PoolState)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.pool)
}

// DumpState writes the entire internal state to a file (for post-mortem).
func (s *Sequencer) DumpState(filename string) {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	data := struct {
		NextSeq uint64        `json:"next_seq"`
		Pool    core.Snapshot `json:"pool"`
	}{
		NextSeq: s.nextSeq,
		Pool:    s.pool.Snapshot(),
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	err = os.WriteFile(filename, b, 0644)
	if err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
