package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store wraps a gorm DB instance and provides helper methods for persisting
// authority positions. A nil *Store is valid and persists nothing.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new store helper from a gorm DB.
func NewStore(db *gorm.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

// DB exposes the underlying gorm DB instance.
func (s *Store) DB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// ErrNotFound is returned when a record is not found.
var ErrNotFound = gorm.ErrRecordNotFound

// PositionUpdate is a partial update to a position row.
type PositionUpdate struct {
	FEN      *string
	Zobrist  *string
	Winner   *string
	LastSeen *time.Time
}

// CreatePosition inserts a position row unless one with id exists.
func (s *Store) CreatePosition(ctx context.Context, id uuid.UUID, fen string, lastSeen time.Time) error {
	if s == nil {
		return nil
	}
	pos := Position{ID: id, FEN: fen, Winner: "-", LastSeen: lastSeen}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&pos).Error
}

// SavePosition applies partial updates to the position row.
func (s *Store) SavePosition(ctx context.Context, id uuid.UUID, upd PositionUpdate) error {
	if s == nil {
		return nil
	}
	updates := make(map[string]any)
	if upd.FEN != nil {
		updates["fen"] = *upd.FEN
	}
	if upd.Zobrist != nil {
		updates["zobrist"] = *upd.Zobrist
	}
	if upd.Winner != nil {
		updates["winner"] = *upd.Winner
	}
	if upd.LastSeen != nil {
		updates["last_seen"] = *upd.LastSeen
	}
	if len(updates) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&Position{}).Where("id = ?", id).Updates(updates).Error
}

// RecordMove inserts a move row for the given position.
func (s *Store) RecordMove(ctx context.Context, m Move) error {
	if s == nil {
		return nil
	}
	if m.PositionID == uuid.Nil {
		return ErrMissingPosition
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

// ClearMoves deletes the move history of a position, e.g. after a new
// position was loaded.
func (s *Store) ClearMoves(ctx context.Context, id uuid.UUID) error {
	if s == nil {
		return nil
	}
	return s.db.WithContext(ctx).Where("position_id = ?", id).Delete(&Move{}).Error
}

// LoadPosition fetches a persisted position and its moves in order.
func (s *Store) LoadPosition(ctx context.Context, id uuid.UUID) (*Position, error) {
	if s == nil {
		return nil, gorm.ErrRecordNotFound
	}
	var pos Position
	err := s.db.WithContext(ctx).
		Preload("Moves", func(db *gorm.DB) *gorm.DB { return db.Order("number") }).
		First(&pos, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

// Stats represents aggregate counts for display.
type Stats struct {
	Positions int64 `json:"positions"`
	Moves     int64 `json:"moves"`
	Agent     int64 `json:"agent"`
}

// FetchStats aggregates row counts.
func (s *Store) FetchStats(ctx context.Context) (Stats, error) {
	var stats Stats
	if s == nil {
		return stats, nil
	}
	if err := s.db.WithContext(ctx).Model(&Position{}).Count(&stats.Positions).Error; err != nil {
		return stats, err
	}
	if err := s.db.WithContext(ctx).Model(&Move{}).Count(&stats.Moves).Error; err != nil {
		return stats, err
	}
	if err := s.db.WithContext(ctx).Model(&Move{}).Where("by_agent = ?", true).Count(&stats.Agent).Error; err != nil {
		return stats, err
	}
	return stats, nil
}

// ErrMissingPosition is returned when a move has no position to belong to.
var ErrMissingPosition = errors.New("position not found")
