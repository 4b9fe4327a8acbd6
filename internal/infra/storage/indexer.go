package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"poolbet/internal/domain"
	"poolbet/internal/event"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Indexer is an event.Sink that keeps the condition, bet and position tables
// in step with the pool. Event ids are deterministic, so a replay rewrites
// the same rows instead of adding new ones.
type Indexer struct {
	s      *Storage
	failed atomic.Uint64
}

// NewIndexer creates an indexer writing to s.
func NewIndexer(s *Storage) *Indexer {
	return &Indexer{s: s}
}

// Failed is the number of events that could not be written.
func (ix *Indexer) Failed() uint64 { return ix.failed.Load() }

func (ix *Indexer) Publish(ev event.Event) {
	err := ix.s.db.Transaction(func(tx *gorm.DB) error {
		if err := saveEvent(tx, ev); err != nil {
			return err
		}
		return index(tx, ev)
	})
	if err != nil {
		ix.failed.Add(1)
		slog.Error("Indexer write failed",
			slog.String("type", string(ev.GetType())),
			slog.Uint64("seq", ev.GetSeq()),
			slog.Any("error", err))
	}
}

func saveEvent(tx *gorm.DB, ev event.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	rec := domain.EventRecord{
		ID:      ev.GetID(),
		Seq:     ev.GetSeq(),
		Type:    string(ev.GetType()),
		Ts:      ev.GetTs(),
		Payload: string(payload),
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error
}

// upsert writes a full row, replacing an existing one with the same key.
func upsert(tx *gorm.DB, rec any) error {
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(rec).Error
}

func index(tx *gorm.DB, ev event.Event) error {
	seq := ev.GetSeq()

	switch e := ev.(type) {
	case *event.ConditionCreatedEvent:
		return upsert(tx, &domain.ConditionRecord{
			ConditionID:       e.ConditionID,
			OracleConditionID: e.OracleConditionID,
			Oracle:            string(e.Oracle),
			Outcome0:          e.Outcomes[0],
			Outcome1:          e.Outcomes[1],
			FundBank0:         e.FundBank[0],
			FundBank1:         e.FundBank[1],
			Reinforcement:     e.Reinforcement,
			Margin:            e.Margin,
			StartsAt:          e.StartsAt,
			State:             domain.ConditionCreated.String(),
			LastSeq:           seq,
		})

	case *event.ConditionResolvedEvent:
		return updateCondition(tx, e.ConditionID, map[string]any{
			"state":       e.State.String(),
			"outcome_win": e.OutcomeWin,
			"pool_delta":  e.PoolDelta,
			"last_seq":    seq,
		})

	case *event.ConditionShiftedEvent:
		return updateCondition(tx, e.ConditionID, map[string]any{
			"starts_at": e.StartsAt,
			"last_seq":  seq,
		})

	case *event.ConditionStoppedEvent:
		return updateCondition(tx, e.ConditionID, map[string]any{
			"paused":   e.Flag,
			"last_seq": seq,
		})

	case *event.NewBetEvent:
		if err := upsert(tx, &domain.BetRecord{
			BetID:       e.BetID,
			ConditionID: e.ConditionID,
			Owner:       string(e.Owner),
			Outcome:     e.Outcome,
			Amount:      e.Amount,
			Odds:        e.Odds,
			LastSeq:     seq,
		}); err != nil {
			return err
		}
		return updateCondition(tx, e.ConditionID, map[string]any{
			"fund_bank0": e.FundBank[0],
			"fund_bank1": e.FundBank[1],
			"last_seq":   seq,
		})

	case *event.BetterWinEvent:
		return tx.Model(&domain.BetRecord{}).Where("bet_id = ?", e.BetID).
			Updates(map[string]any{"paid": e.Amount, "withdrawn": true, "last_seq": seq}).Error

	case *event.LiquidityAddedEvent:
		return upsert(tx, &domain.PositionRecord{
			LeafID:    e.LeafID,
			Owner:     string(e.Account),
			Deposited: e.Amount,
			LastSeq:   seq,
		})

	case *event.LiquidityRemovedEvent:
		return tx.Model(&domain.PositionRecord{}).Where("leaf_id = ?", e.LeafID).
			Updates(map[string]any{
				"withdrawn": gorm.Expr("withdrawn + ?", e.Amount),
				"closed":    e.Closed,
				"last_seq":  seq,
			}).Error

	case *event.PositionTransferredEvent:
		switch e.Kind {
		case "liquidity":
			return tx.Model(&domain.PositionRecord{}).Where("leaf_id = ?", e.ID).
				Updates(map[string]any{"owner": string(e.To), "last_seq": seq}).Error
		case "bet":
			return tx.Model(&domain.BetRecord{}).Where("bet_id = ?", e.ID).
				Updates(map[string]any{"owner": string(e.To), "last_seq": seq}).Error
		}
	}
	return nil
}

func updateCondition(tx *gorm.DB, id uint64, fields map[string]any) error {
	return tx.Model(&domain.ConditionRecord{}).Where("condition_id = ?", id).Updates(fields).Error
}
