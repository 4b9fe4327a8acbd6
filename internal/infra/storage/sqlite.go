package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"poolbet/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage persists the command journal and the indexed views of the pool.
type Storage struct {
	db *gorm.DB
}

var _ domain.CommandJournal = (*Storage)(nil)

// NewStorage opens (or creates) the SQLite database at path.
func NewStorage(path string) (*Storage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&domain.CommandRecord{},
		&domain.EventRecord{},
		&domain.ConditionRecord{},
		&domain.BetRecord{},
		&domain.PositionRecord{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the underlying connection.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Command journal
// ======================================================================================

// SaveCommand appends one command to the journal. A sequence can be written once.
func (s *Storage) SaveCommand(ctx context.Context, rec *domain.CommandRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to save command %d: %w", rec.Seq, err)
	}
	return nil
}

// LoadCommands returns journaled commands from fromSeq on, in order.
func (s *Storage) LoadCommands(ctx context.Context, fromSeq uint64) ([]domain.CommandRecord, error) {
	var recs []domain.CommandRecord
	err := s.db.WithContext(ctx).
		Where("seq >= ?", fromSeq).
		Order("seq").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load commands: %w", err)
	}
	return recs, nil
}

// ======================================================================================
// Indexed views
// ======================================================================================

// Conditions returns every indexed condition ordered by id.
func (s *Storage) Conditions(ctx context.Context) ([]domain.ConditionRecord, error) {
	var recs []domain.ConditionRecord
	err := s.db.WithContext(ctx).Order("condition_id").Find(&recs).Error
	return recs, err
}

// BetsOf returns the bets owned by account ordered by id.
func (s *Storage) BetsOf(ctx context.Context, owner string) ([]domain.BetRecord, error) {
	var recs []domain.BetRecord
	err := s.db.WithContext(ctx).Where("owner = ?", owner).Order("bet_id").Find(&recs).Error
	return recs, err
}

// BetsOn returns the bets placed on one condition ordered by id.
func (s *Storage) BetsOn(ctx context.Context, conditionID uint64) ([]domain.BetRecord, error) {
	var recs []domain.BetRecord
	err := s.db.WithContext(ctx).Where("condition_id = ?", conditionID).Order("bet_id").Find(&recs).Error
	return recs, err
}

// Positions returns every liquidity position ordered by leaf.
func (s *Storage) Positions(ctx context.Context) ([]domain.PositionRecord, error) {
	var recs []domain.PositionRecord
	err := s.db.WithContext(ctx).Order("leaf_id").Find(&recs).Error
	return recs, err
}

// EventsSince returns up to limit events emitted at or after seq.
func (s *Storage) EventsSince(ctx context.Context, seq uint64, limit int) ([]domain.EventRecord, error) {
	var recs []domain.EventRecord
	err := s.db.WithContext(ctx).
		Where("seq >= ?", seq).
		Order("seq").Order("rowid").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}
