package app

import (
	"fmt"
	"io"

	"poolbet/internal/core"
	"poolbet/internal/service"

	"github.com/olekukonko/tablewriter"
)

// PrintReport writes the conditions as the read model sees them, then the
// pool totals and metrics.
func PrintReport(w io.Writer, b *Bootstrap) error {
	markets := b.Market.Markets()
	fmt.Fprintf(w, "\n[poolbet] %d conditions\n", len(markets))

	table := tablewriter.NewWriter(w)
	table.Header("ID", "Outcomes", "State", "Bank 0", "Bank 1", "Odds 0", "Odds 1", "Bets", "Winner")
	for _, m := range markets {
		state := m.State.String()
		if m.Paused {
			state += " (paused)"
		}
		winner := "-"
		if m.OutcomeWin != 0 {
			winner = fmt.Sprintf("%d", m.OutcomeWin)
		}
		display := service.DisplayOdds(m)
		table.Append(
			fmt.Sprintf("%d", m.ConditionID),
			fmt.Sprintf("%d / %d", m.Outcomes[0], m.Outcomes[1]),
			state,
			fmt.Sprintf("%d", m.FundBank[0]),
			fmt.Sprintf("%d", m.FundBank[1]),
			display[0].StringFixed(4),
			display[1].StringFixed(4),
			fmt.Sprintf("%d", m.BetCount),
			winner,
		)
	}
	if err := table.Render(); err != nil {
		return err
	}

	var snap core.Snapshot
	var poolBalance int64
	b.Sequencer.Read(func(p *core.PoolState) {
		snap = p.Snapshot()
		poolBalance = p.Vault().PoolBalance()
	})
	var oracleRewards int64
	for _, v := range snap.Rewards.Oracle {
		oracleRewards += v
	}

	metrics := b.Metrics.Snapshot()
	fmt.Fprintf(w, "\n  --- POOL ---\n")
	fmt.Fprintf(w, "  Liquidity:          %d (locked %d)\n", snap.Total, snap.Locked)
	fmt.Fprintf(w, "  Outstanding:        %d\n", snap.Outstanding)
	fmt.Fprintf(w, "  DAO reward:         %d\n", snap.Rewards.Dao)
	fmt.Fprintf(w, "  Oracle rewards:     %d\n", oracleRewards)
	fmt.Fprintf(w, "  Pool balance:       %d\n", poolBalance)
	fmt.Fprintf(w, "  Positions:          %d\n", len(snap.Positions))
	fmt.Fprintf(w, "\n  --- ENGINE ---\n")
	fmt.Fprintf(w, "  Commands applied:   %d (rejected %d)\n", metrics.CommandsApplied, metrics.CommandsRejected)
	fmt.Fprintf(w, "  Bets placed:        %d (volume %d)\n", metrics.BetsPlaced, metrics.BetVolume)
	fmt.Fprintf(w, "  Conditions closed:  %d (pool result %d)\n", metrics.ConditionsClosed, metrics.PoolResult)
	fmt.Fprintf(w, "  Avg latency:        %dns\n", metrics.AvgLatencyNs)
	return nil
}
