package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"poolbet/internal/core"
	"poolbet/internal/domain"
	"poolbet/internal/engine"
	"poolbet/internal/strategy"
	"poolbet/pkg/quant"
)

// SimOptions drives a simulation run.
type SimOptions struct {
	Rounds  int
	Seed    uint64
	Start   int64 // first round time; 0 means 1_700_000_000
	Bettors int
}

// SimReport counts what a simulation did.
type SimReport struct {
	Rounds       int
	Bets         int
	StrategyBets int
	Rejected     int
	Resolved     int
	Canceled     int
	Paid         int64
	Rewards      int64
	AlertHits    int
}

const (
	simDeposit      = 10_000_000
	simBettorFunds  = 100_000
	simStrategyFund = 1_000_000
	simRoundLength  = 3_600
)

type simulation struct {
	ctx    context.Context
	seq    *engine.Sequencer
	b      *Bootstrap
	rng    *rand.Rand
	strat  strategy.Strategy
	report SimReport

	owner, oracle domain.Account
	bettors       []domain.Account
	nextOracleID  uint64
	delay         int64
}

type placedBet struct {
	id    uint64
	owner domain.Account
}

// Simulate plays random rounds against the pool: liquidity goes in, each
// round opens a condition, takes random bets plus whatever the SMA cross
// bettor wants, then resolves or cancels it and pays the winners. The pool
// invariants are checked at the end.
func Simulate(ctx context.Context, b *Bootstrap, opts SimOptions) (SimReport, error) {
	if len(b.Config.Pool.Oracles) == 0 {
		return SimReport{}, errors.New("simulation needs an oracle in pool.oracles")
	}
	if opts.Bettors <= 0 {
		opts.Bettors = 5
	}
	if opts.Start == 0 {
		opts.Start = 1_700_000_000
	}

	s := &simulation{
		ctx:    ctx,
		seq:    b.Sequencer,
		b:      b,
		rng:    rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		strat:  strategy.NewSMACrossStrategy(3, 5, 500),
		owner:  domain.Account(b.Config.Pool.Owner),
		oracle: domain.Account(b.Config.Pool.Oracles[0]),
	}
	for i := range opts.Bettors {
		s.bettors = append(s.bettors, domain.Account(fmt.Sprintf("bettor-%d", i+1)))
	}

	now := opts.Start
	if err := s.fund(now); err != nil {
		return s.report, err
	}

	s.seq.Read(func(p *core.PoolState) { s.delay = p.Params().SettlementDelay })

	for r := range opts.Rounds {
		if err := s.round(now); err != nil {
			return s.report, fmt.Errorf("round %d: %w", r, err)
		}
		s.report.Rounds++
		now += simRoundLength + s.delay + 60
	}

	for len(b.Market.GetAlertChan()) > 0 {
		<-b.Market.GetAlertChan()
		s.report.AlertHits++
	}

	var verr error
	s.seq.Read(func(p *core.PoolState) {
		defer func() {
			if r := recover(); r != nil {
				verr = fmt.Errorf("invariant violated: %v", r)
			}
		}()
		p.VerifyInvariants()
	})

	slog.Info("✨ Simulation completed",
		slog.Int("rounds", s.report.Rounds),
		slog.Int("bets", s.report.Bets),
		slog.Int("rejected", s.report.Rejected))
	return s.report, verr
}

// submit sends one command. Pool rejections are counted, not returned.
func (s *simulation) submit(caller domain.Account, cmd engine.Command, at int64) (engine.Result, error) {
	res, err := s.seq.SubmitAt(s.ctx, caller, cmd, at)
	if err != nil {
		return res, err
	}
	if res.Err != nil {
		s.report.Rejected++
	}
	return res, nil
}

func (s *simulation) fund(now int64) error {
	mints := []*engine.Mint{{To: "lp-sim", Amount: simDeposit}, {To: "sma-bettor", Amount: simStrategyFund}}
	for _, a := range s.bettors {
		mints = append(mints, &engine.Mint{To: a, Amount: simBettorFunds})
	}
	for _, m := range mints {
		res, err := s.submit(s.owner, m, now)
		if err != nil {
			return err
		}
		if res.Err != nil {
			return fmt.Errorf("failed to mint for %s: %w", m.To, res.Err)
		}
	}
	res, err := s.submit("lp-sim", &engine.AddLiquidity{Amount: simDeposit}, now)
	if err != nil {
		return err
	}
	return res.Err
}

func (s *simulation) round(now int64) error {
	startsAt := now + simRoundLength

	// 1. Open a condition with random odds hints
	s.seq.Read(func(p *core.PoolState) {
		for {
			s.nextOracleID++
			if _, taken := p.ConditionID(s.oracle, s.nextOracleID); !taken {
				return
			}
		}
	})
	oracleID := s.nextOracleID
	res, err := s.submit(s.oracle, &engine.CreateCondition{CreateConditionRequest: core.CreateConditionRequest{
		OracleConditionID: oracleID,
		Odds:              [2]int64{1 + s.rng.Int64N(4), 1 + s.rng.Int64N(4)},
		Outcomes:          [2]uint64{1, 2},
		StartsAt:          startsAt,
	}}, now)
	if err != nil {
		return err
	}
	if res.Err != nil {
		return fmt.Errorf("failed to create condition: %w", res.Err)
	}
	conditionID := res.Value.(uint64)

	if m, ok := s.b.Market.GetMarket(conditionID); ok {
		target := quant.MulDiv(m.Odds[0], 12, 10)
		s.b.Market.AddAlert(domain.NewOddsAlert(conditionID, m.Outcomes[0], target, m.Odds[0], false))
	}

	// 2. Random bets, each followed by the strategy's reaction
	var bets []placedBet
	n := 5 + s.rng.IntN(10)
	for i := range n {
		at := now + int64(i+1)*10
		bettor := s.bettors[s.rng.IntN(len(s.bettors))]
		res, err := s.submit(bettor, &engine.PlaceBet{BetRequest: core.BetRequest{
			ConditionID: conditionID,
			Outcome:     uint64(1 + s.rng.IntN(2)),
			Amount:      100 + s.rng.Int64N(4_900),
			Deadline:    startsAt,
		}}, at)
		if err != nil {
			return err
		}
		if res.Err != nil {
			continue
		}
		s.report.Bets++
		bets = append(bets, placedBet{res.Value.(engine.BetResult).BetID, bettor})

		placed, err := s.react(conditionID, at)
		if err != nil {
			return err
		}
		bets = append(bets, placed...)
	}

	// 3. Close it: mostly resolved, sometimes canceled
	closeAt := startsAt + s.delay
	if s.rng.IntN(8) == 0 {
		res, err = s.submit(s.oracle, &engine.CancelCondition{OracleConditionID: oracleID}, closeAt)
		if err == nil && res.Err == nil {
			s.report.Canceled++
		}
	} else {
		res, err = s.submit(s.oracle, &engine.ResolveCondition{
			OracleConditionID: oracleID,
			Outcome:           uint64(1 + s.rng.IntN(2)),
		}, closeAt)
		if err == nil && res.Err == nil {
			s.report.Resolved++
		}
	}
	if err != nil {
		return err
	}

	// 4. Winners and refunds collect
	return s.payout(bets, closeAt+10)
}

// react lets the strategy bettor act on the market as the read model sees it.
func (s *simulation) react(conditionID uint64, at int64) ([]placedBet, error) {
	m, ok := s.b.Market.GetMarket(conditionID)
	if !ok {
		return nil, nil
	}
	var placed []placedBet
	for _, a := range s.strat.OnMarketUpdate(m) {
		quoted, err := s.b.Market.Quote(a.ConditionID, a.Outcome, a.Amount)
		if err != nil {
			continue
		}
		res, err := s.submit("sma-bettor", &engine.PlaceBet{BetRequest: core.BetRequest{
			ConditionID: a.ConditionID,
			Outcome:     a.Outcome,
			Amount:      a.Amount,
			Deadline:    at,
			MinOdds:     min(quoted, a.MinOdds),
		}}, at)
		if err != nil {
			return nil, err
		}
		if res.Err == nil {
			s.report.StrategyBets++
			placed = append(placed, placedBet{res.Value.(engine.BetResult).BetID, "sma-bettor"})
		}
	}
	return placed, nil
}

func (s *simulation) payout(bets []placedBet, at int64) error {
	for _, bet := range bets {
		var win bool
		s.seq.Read(func(p *core.PoolState) { win, _, _ = p.ViewPayout(bet.id) })
		if !win {
			continue
		}
		res, err := s.submit(bet.owner, &engine.WithdrawPayout{BetID: bet.id}, at)
		if err != nil {
			return err
		}
		if res.Err == nil {
			s.report.Paid += res.Value.(int64)
		}
	}

	if s.report.Rounds%5 == 4 {
		return s.claimRewards(at)
	}
	return nil
}

func (s *simulation) claimRewards(at int64) error {
	var dao, oracle int64
	s.seq.Read(func(p *core.PoolState) {
		r := p.Rewards()
		dao, oracle = r.Dao, r.Oracle[s.oracle]
	})
	if dao > 0 {
		res, err := s.submit(s.owner, &engine.ClaimDaoReward{}, at)
		if err != nil {
			return err
		}
		if res.Err == nil {
			s.report.Rewards += res.Value.(int64)
		}
	}
	if oracle > 0 {
		res, err := s.submit(s.oracle, &engine.ClaimOracleReward{}, at)
		if err != nil {
			return err
		}
		if res.Err == nil {
			s.report.Rewards += res.Value.(int64)
		}
	}
	return nil
}
