package storage

import (
	"time"

	"github.com/google/uuid"
)

// Game is one played game. A browser session produces a new row per
// "new game".
type Game struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionID   string    `gorm:"index"`
	HumanSide   string
	FEN         string
	PGN         string
	Status      string
	Result      string
	Opening     string
	Active      bool `gorm:"index"`
	CompletedAt *time.Time
	LastSeen    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Moves       []Move `gorm:"constraint:OnDelete:CASCADE;"`
}

// Move stores a single applied move.
type Move struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	GameID    uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_game_ply"`
	Ply       int       `gorm:"uniqueIndex:idx_game_ply"`
	Actor     string
	Color     string
	UCI       string
	SAN       string
	CreatedAt time.Time
}
