package game

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"chessai/internal/errors"
	"chessai/internal/logging"
)

// NewSession returns a session at the starting position with no automated
// opponent configured yet.
func NewSession(id string) *Session {
	return &Session{
		ID:       id,
		GameID:   uuid.NewString(),
		board:    NewBoard(),
		side:     SideManual,
		phase:    AwaitingHumanMove,
		Watchers: make(map[chan []byte]struct{}),
		LastSeen: time.Now(),
	}
}

// Touch updates the last seen timestamp for a session
func (s *Session) Touch() {
	s.Mu.Lock()
	s.LastSeen = time.Now()
	s.Mu.Unlock()
}

// Board returns the session board. Hold Mu while using it.
func (s *Session) Board() *Board { return s.board }

// Side returns the colour the human plays.
func (s *Session) Side() Side { return s.side }

// Phase returns the sequencing state.
func (s *Session) Phase() Phase { return s.phase }

// Seq returns the current move-sequence counter.
func (s *Session) Seq() uint64 { return s.seq }

// Persisted is the number of history entries already written to storage.
func (s *Session) Persisted() int { return s.persisted }

// MarkPersisted records that the first n history entries are stored.
func (s *Session) MarkPersisted(n int) { s.persisted = n }

// reset replaces the game wholesale. The sequence counter keeps counting so
// events rendered against the previous game are stale.
func (s *Session) reset(side Side) {
	s.board = NewBoard()
	s.side = side
	s.GameID = uuid.NewString()
	s.phase = AwaitingHumanMove
	s.lastErr = nil
	s.persisted = 0
	s.seq++
	logging.Debugf("session %s reset: game %s, human plays %s", s.ID, s.GameID, side)
}

// StateLocked returns the current session state (must be called with lock held)
func (s *Session) StateLocked() GameState {
	b := s.board
	st := b.Status()
	state := GameState{
		Kind:        "state",
		ID:          s.ID,
		GameID:      s.GameID,
		FEN:         b.FEN(),
		Turn:        colorName(b.Turn()),
		Side:        s.side.String(),
		Orientation: s.side.Orientation(),
		Phase:       s.phase.String(),
		Status:      st.Kind.String(),
		Reason:      st.Reason,
		Result:      b.Result(),
		Banner:      banner(st, b.Result()),
		Seq:         s.seq,
		History:     b.History(),
		LastMove:    b.LastMove(),
		CheckSquare: b.CheckedKing(),
		PGN:         b.PGN(),
		LastSeen:    s.LastSeen.UnixMilli(),
		Watchers:    len(s.Watchers),
	}
	state.OpeningCode, state.Opening = lookupOpening(b)
	if s.lastErr != nil {
		state.Error = s.lastErr.Error()
		state.ErrorCode = errors.Code(s.lastErr)
	}
	return state
}

// State locks the session and returns its snapshot.
func (s *Session) State() GameState {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.StateLocked()
}

// Broadcast sends the current session state to all watchers
func (s *Session) Broadcast() {
	s.Mu.Lock()
	state := s.StateLocked()
	data, _ := json.Marshal(state)
	for ch := range s.Watchers {
		select {
		case ch <- data:
		default:
		}
	}
	s.Mu.Unlock()
}

// AddWatcher adds a new watcher channel
func (s *Session) AddWatcher(ch chan []byte) {
	s.Mu.Lock()
	s.Watchers[ch] = struct{}{}
	s.Mu.Unlock()
}

// RemoveWatcher removes a watcher channel
func (s *Session) RemoveWatcher(ch chan []byte) {
	s.Mu.Lock()
	delete(s.Watchers, ch)
	s.Mu.Unlock()
}

func banner(st Status, result string) string {
	switch st.Kind {
	case Check:
		return "Check!"
	case Checkmate, Stalemate, Draw:
		return "Game Over: " + result
	}
	return ""
}
