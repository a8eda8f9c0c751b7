package game

import (
	"context"
	"time"

	"github.com/corentings/chess/v2"

	"chessai/internal/errors"
	"chessai/internal/logging"
)

// Mover produces one move for the side to move in pos within budget.
type Mover interface {
	BestMove(ctx context.Context, pos *chess.Position, budget time.Duration) (*chess.Move, error)
}

// Sequencer applies human moves and drives the automated opponent's replies.
// Every method locks the session for its whole duration, so a session sees
// at most one move in flight.
type Sequencer struct {
	engine Mover
	budget time.Duration
}

// NewSequencer returns a sequencer asking engine for moves with the given
// thinking budget. A nil engine makes every automated turn fail with
// ErrEngineUnavailable.
func NewSequencer(engine Mover, budget time.Duration) *Sequencer {
	return &Sequencer{engine: engine, budget: budget}
}

// Submit resolves a raw move token against the session and, if legal,
// applies it and lets the opponent reply.
func (q *Sequencer) Submit(ctx context.Context, s *Session, ev MoveEvent) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if ev.Seq < s.seq {
		return errors.Wrapf(errors.ErrStaleEvent, "event seq %d, session seq %d", ev.Seq, s.seq)
	}
	switch s.phase {
	case GameOver:
		return errors.ErrGameOver
	case AwaitingAutomatedMove:
		return errors.ErrNotYourTurn
	}

	m, err := Resolve(ev.Token, s.board.Position())
	if err != nil {
		logging.Debugf("session %s rejected %q: %v", s.ID, ev.Token, err)
		return err
	}
	return q.advance(ctx, s, m)
}

// NewGame replaces the session's game and lets the engine open if it plays
// White.
func (q *Sequencer) NewGame(ctx context.Context, s *Session, side Side) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	s.reset(side)
	return q.settle(ctx, s)
}

// Retry asks the engine again after a failed automated turn. It does
// nothing unless the session is waiting on the engine.
func (q *Sequencer) Retry(ctx context.Context, s *Session) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.phase != AwaitingAutomatedMove {
		return nil
	}
	return q.settle(ctx, s)
}

// SetOpponent changes which colour the human plays in the running game.
// SideManual turns the engine off, which unblocks a session whose engine
// is unavailable.
func (q *Sequencer) SetOpponent(ctx context.Context, s *Session, side Side) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.side == side {
		return nil
	}
	s.side = side
	s.seq++
	return q.settle(ctx, s)
}

// advance applies a resolved human move and then settles the session.
// Must be called with s.Mu held.
func (q *Sequencer) advance(ctx context.Context, s *Session, m *chess.Move) error {
	if err := s.board.Apply(m, ActorHuman); err != nil {
		return err
	}
	s.seq++
	s.lastErr = nil
	return q.settle(ctx, s)
}

// settle moves the session to its next phase, playing engine moves while
// the automated side is to move. On engine error no move is applied and
// the session stays in AwaitingAutomatedMove.
func (q *Sequencer) settle(ctx context.Context, s *Session) error {
	for {
		if s.board.Status().Terminal() {
			s.phase = GameOver
			s.lastErr = nil
			return nil
		}
		ai := s.side.Opponent()
		if ai == chess.NoColor || s.board.Turn() != ai {
			s.phase = AwaitingHumanMove
			s.lastErr = nil
			return nil
		}

		s.phase = AwaitingAutomatedMove
		m, err := q.engineMove(ctx, s)
		if err != nil {
			s.lastErr = err
			logging.Log.Warn().Err(err).Str("session", s.ID).Msg("engine move failed")
			return err
		}
		if err := s.board.Apply(m, ActorEngine); err != nil {
			err = errors.Wrap(errors.ErrEngineFailure, err.Error())
			s.lastErr = err
			return err
		}
		s.seq++
		logging.Debugf("session %s engine played %s", s.ID, s.board.LastMove())
	}
}

func (q *Sequencer) engineMove(ctx context.Context, s *Session) (*chess.Move, error) {
	if q.engine == nil {
		return nil, errors.ErrEngineUnavailable
	}
	m, err := q.engine.BestMove(ctx, s.board.Position(), q.budget)
	if err != nil {
		if errors.Is(err, errors.ErrEngineUnavailable) || errors.Is(err, errors.ErrEngineFailure) {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrEngineFailure, err.Error())
	}
	if m == nil {
		return nil, errors.Wrap(errors.ErrEngineFailure, "no move returned")
	}
	return m, nil
}
