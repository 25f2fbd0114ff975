package storage

import (
	"time"

	"github.com/google/uuid"
)

// Position is the persisted board of one authority.
type Position struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	FEN       string
	Zobrist   string `gorm:"size:16;index"`
	Winner    string `gorm:"size:1"`
	LastSeen  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	Moves     []Move
}

// Move stores a single applied move.
type Move struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PositionID uuid.UUID `gorm:"type:uuid;index"`
	Number     int
	UCI        string
	SAN        string
	Flags      int
	Color      string
	ByAgent    bool
	CreatedAt  time.Time
}
