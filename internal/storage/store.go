package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store wraps a gorm DB instance. A nil *Store is valid and turns every
// method into a no-op, so the server runs without a database.
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

// Enabled reports whether writes reach a database.
func (s *Store) Enabled() bool {
	return s != nil && s.db != nil
}

// ErrNotFound is returned when a record is not found.
var ErrNotFound = gorm.ErrRecordNotFound

// GameStateUpdate represents a partial update to a game row.
type GameStateUpdate struct {
	FEN         *string
	PGN         *string
	Status      *string
	Result      *string
	Opening     *string
	Active      *bool
	LastSeen    *time.Time
	CompletedAt *time.Time
}

// MoveRecord is one history entry to persist.
type MoveRecord struct {
	Ply   int
	Actor string
	Color string
	UCI   string
	SAN   string
}

// CreateGame inserts a new game row for a session.
func (s *Store) CreateGame(ctx context.Context, id uuid.UUID, sessionID, humanSide string, lastSeen time.Time) error {
	if s == nil {
		return nil
	}
	game := Game{
		ID:        id,
		SessionID: sessionID,
		HumanSide: humanSide,
		Status:    "in_progress",
		Result:    "*",
		Active:    true,
		LastSeen:  lastSeen,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&game).Error
}

// SaveGameState applies partial updates to the game row.
func (s *Store) SaveGameState(ctx context.Context, id uuid.UUID, upd GameStateUpdate) error {
	if s == nil {
		return nil
	}
	updates := upd.columns()
	if len(updates) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&Game{}).Where("id = ?", id).Updates(updates).Error
}

func (upd GameStateUpdate) columns() map[string]any {
	updates := make(map[string]any)
	if upd.FEN != nil {
		updates["fen"] = *upd.FEN
	}
	if upd.PGN != nil {
		updates["pgn"] = *upd.PGN
	}
	if upd.Status != nil {
		updates["status"] = *upd.Status
	}
	if upd.Result != nil {
		updates["result"] = *upd.Result
	}
	if upd.Opening != nil {
		updates["opening"] = *upd.Opening
	}
	if upd.Active != nil {
		updates["active"] = *upd.Active
	}
	if upd.LastSeen != nil {
		updates["last_seen"] = *upd.LastSeen
	}
	if upd.CompletedAt != nil {
		updates["completed_at"] = *upd.CompletedAt
	}
	return updates
}

// RecordMoves inserts move rows for the given game in one transaction.
// Rows already present for a ply are left alone.
func (s *Store) RecordMoves(ctx context.Context, gameID uuid.UUID, moves []MoveRecord) error {
	if s == nil || len(moves) == 0 {
		return nil
	}
	rows := make([]Move, 0, len(moves))
	for _, m := range moves {
		rows = append(rows, Move{
			GameID: gameID,
			Ply:    m.Ply,
			Actor:  m.Actor,
			Color:  m.Color,
			UCI:    m.UCI,
			SAN:    m.SAN,
		})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
}

// LoadGame fetches a persisted game with its moves in ply order.
func (s *Store) LoadGame(ctx context.Context, id uuid.UUID) (*Game, error) {
	if s == nil {
		return nil, ErrNotFound
	}
	var game Game
	err := s.db.WithContext(ctx).
		Preload("Moves", func(db *gorm.DB) *gorm.DB { return db.Order("ply") }).
		First(&game, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// Stats represents aggregate counts for games.
type Stats struct {
	Started   int64 `json:"started"`
	Completed int64 `json:"completed"`
	Active    int64 `json:"active"`
}

// FetchStats aggregates counts for display on the home page.
func (s *Store) FetchStats(ctx context.Context) (Stats, error) {
	var stats Stats
	if s == nil {
		return stats, nil
	}
	if err := s.db.WithContext(ctx).Model(&Game{}).Count(&stats.Started).Error; err != nil {
		return stats, err
	}
	if err := s.db.WithContext(ctx).Model(&Game{}).Where("active = ?", true).Count(&stats.Active).Error; err != nil {
		return stats, err
	}
	if err := s.db.WithContext(ctx).Model(&Game{}).Where("completed_at IS NOT NULL").Count(&stats.Completed).Error; err != nil {
		return stats, err
	}
	return stats, nil
}

// CompleteGame marks a game as finished with the provided status and result.
func (s *Store) CompleteGame(ctx context.Context, id uuid.UUID, status, result string, completedAt time.Time) error {
	if s == nil {
		return nil
	}
	active := false
	return s.SaveGameState(ctx, id, GameStateUpdate{
		Status:      &status,
		Result:      &result,
		Active:      &active,
		CompletedAt: &completedAt,
	})
}

// AbandonGame closes a game that was replaced by a new one before it ended.
func (s *Store) AbandonGame(ctx context.Context, id uuid.UUID, when time.Time) error {
	if s == nil {
		return nil
	}
	status := "abandoned"
	active := false
	return s.SaveGameState(ctx, id, GameStateUpdate{
		Status:      &status,
		Active:      &active,
		CompletedAt: &when,
	})
}
