package game

import (
	"strings"
	"sync"
	"time"

	"github.com/corentings/chess/v2"

	"chessai/internal/errors"
)

// Side is the colour the human chose when starting a game.
type Side int

const (
	SideWhite Side = iota
	SideBlack
	// SideManual disables the automated opponent; the human moves both colours.
	SideManual
)

// ParseSide accepts "white", "black" or "manual" in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w", "":
		return SideWhite, nil
	case "black", "b":
		return SideBlack, nil
	case "manual", "none", "off":
		return SideManual, nil
	}
	return SideWhite, errors.Wrapf(errors.ErrInvalidSide, "%q", s)
}

func (s Side) String() string {
	switch s {
	case SideWhite:
		return "white"
	case SideBlack:
		return "black"
	case SideManual:
		return "manual"
	}
	return "unknown"
}

// Opponent returns the colour the engine plays, or chess.NoColor.
func (s Side) Opponent() chess.Color {
	switch s {
	case SideWhite:
		return chess.Black
	case SideBlack:
		return chess.White
	}
	return chess.NoColor
}

// Orientation names the colour drawn at the bottom of the board.
func (s Side) Orientation() string {
	if s == SideBlack {
		return "black"
	}
	return "white"
}

// Phase is the turn-sequencing state of a session.
type Phase int

const (
	AwaitingHumanMove Phase = iota
	AwaitingAutomatedMove
	GameOver
)

func (p Phase) String() string {
	switch p {
	case AwaitingHumanMove:
		return "awaiting_human"
	case AwaitingAutomatedMove:
		return "awaiting_engine"
	case GameOver:
		return "game_over"
	}
	return "unknown"
}

// StatusKind classifies the current position.
type StatusKind int

const (
	InProgress StatusKind = iota
	Check
	Checkmate
	Stalemate
	Draw
)

func (k StatusKind) String() string {
	switch k {
	case InProgress:
		return "in_progress"
	case Check:
		return "check"
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	case Draw:
		return "draw"
	}
	return "unknown"
}

// Status is the classification returned by Board.Status. Reason is set for
// draws only.
type Status struct {
	Kind   StatusKind
	Reason string
}

// Terminal reports whether no further moves can be played.
func (s Status) Terminal() bool {
	return s.Kind == Checkmate || s.Kind == Stalemate || s.Kind == Draw
}

// Actor tags who played a history entry.
type Actor string

const (
	ActorHuman  Actor = "You"
	ActorEngine Actor = "AI"
)

// HistoryEntry is one applied move.
type HistoryEntry struct {
	Ply   int    `json:"ply"`
	Actor Actor  `json:"actor"`
	Color string `json:"color"`
	UCI   string `json:"uci"`
	SAN   string `json:"san"`
}

// Session is one player's game: the board, the opponent setting and the
// watchers that receive state updates.
type Session struct {
	Mu        sync.Mutex
	ID        string
	GameID    string
	board     *Board
	side      Side
	phase     Phase
	seq       uint64
	lastErr   error
	Watchers  map[chan []byte]struct{}
	LastSeen  time.Time
	persisted int
}

// MoveEvent is a raw move token from the page together with the sequence
// number of the state it was entered against.
type MoveEvent struct {
	Token string
	Seq   uint64
}

// MoveRequest is the JSON body of a move submission.
type MoveRequest struct {
	UCI string `json:"uci"`
	Seq uint64 `json:"seq"`
}

// SideRequest is the JSON body of new-game and opponent changes.
type SideRequest struct {
	Side string `json:"side"`
}

// GameState is the snapshot sent to the page.
type GameState struct {
	Kind        string         `json:"kind"`
	ID          string         `json:"id"`
	GameID      string         `json:"gameId"`
	FEN         string         `json:"fen"`
	Turn        string         `json:"turn"`
	Side        string         `json:"side"`
	Orientation string         `json:"orientation"`
	Phase       string         `json:"phase"`
	Status      string         `json:"status"`
	Reason      string         `json:"reason,omitempty"`
	Result      string         `json:"result"`
	Banner      string         `json:"banner,omitempty"`
	Seq         uint64         `json:"seq"`
	History     []HistoryEntry `json:"history"`
	LastMove    []string       `json:"lastMove,omitempty"`
	CheckSquare string         `json:"checkSquare,omitempty"`
	PGN         string         `json:"pgn"`
	OpeningCode string         `json:"openingCode,omitempty"`
	Opening     string         `json:"opening,omitempty"`
	Error       string         `json:"error,omitempty"`
	ErrorCode   string         `json:"errorCode,omitempty"`
	LastSeen    int64          `json:"lastSeen"`
	Watchers    int            `json:"watchers"`
}
