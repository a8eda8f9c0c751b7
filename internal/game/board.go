package game

import (
	"github.com/corentings/chess/v2"

	"chessai/internal/errors"
)

// Board owns the position and the move history of one game. All mutation
// goes through Apply, which refuses moves outside the legal set.
type Board struct {
	g       *chess.Game
	history []HistoryEntry
}

// NewBoard returns a board at the standard starting position.
func NewBoard() *Board {
	return &Board{g: chess.NewGame()}
}

// NewBoardFromFEN returns a board set up from fen with an empty history.
func NewBoardFromFEN(fen string) (*Board, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, errors.Wrapf(err, "load fen %q", fen)
	}
	return &Board{g: chess.NewGame(opt)}, nil
}

// Reset returns the board to the starting position and clears history.
func (b *Board) Reset() {
	b.g = chess.NewGame()
	b.history = nil
}

// Apply plays m for actor. m must be in the legal-move set of the current
// position; anything else fails with ErrIllegalMove and changes nothing.
func (b *Board) Apply(m *chess.Move, actor Actor) error {
	pos := b.g.Position()
	if m == nil {
		return &errors.MoveError{Err: errors.ErrIllegalMove, FEN: pos.String()}
	}
	legal := findLegal(pos, m.S1(), m.S2(), m.Promo())
	if legal == nil {
		return &errors.MoveError{Err: errors.ErrIllegalMove, Token: moveToken(m), FEN: pos.String()}
	}
	entry := HistoryEntry{
		Ply:   len(b.history) + 1,
		Actor: actor,
		Color: colorName(pos.Turn()),
		UCI:   chess.UCINotation{}.Encode(pos, legal),
		SAN:   chess.AlgebraicNotation{}.Encode(pos, legal),
	}
	if err := b.g.Move(legal, nil); err != nil {
		return &errors.MoveError{Err: errors.ErrIllegalMove, Token: entry.UCI, FEN: pos.String()}
	}
	b.history = append(b.history, entry)
	return nil
}

// Status classifies the current position.
func (b *Board) Status() Status {
	if b.g.Outcome() != chess.NoOutcome {
		switch m := b.g.Method(); m {
		case chess.Checkmate:
			return Status{Kind: Checkmate}
		case chess.Stalemate:
			return Status{Kind: Stalemate}
		default:
			return Status{Kind: Draw, Reason: drawReason(m)}
		}
	}
	if b.inCheck() {
		return Status{Kind: Check}
	}
	return Status{Kind: InProgress}
}

// Position returns the current position. Callers must not mutate it.
func (b *Board) Position() *chess.Position { return b.g.Position() }

// FEN serialises the current position.
func (b *Board) FEN() string { return b.g.Position().String() }

// Turn is the colour to move.
func (b *Board) Turn() chess.Color { return b.g.Position().Turn() }

// PGN renders the game so far.
func (b *Board) PGN() string { return b.g.String() }

// Result is "1-0", "0-1", "1/2-1/2" or "*".
func (b *Board) Result() string { return b.g.Outcome().String() }

// History returns a copy of the applied moves in order.
func (b *Board) History() []HistoryEntry {
	out := make([]HistoryEntry, len(b.history))
	copy(out, b.history)
	return out
}

// LastMove returns the from/to squares of the last applied move, or nil.
func (b *Board) LastMove() []string {
	if len(b.history) == 0 {
		return nil
	}
	uci := b.history[len(b.history)-1].UCI
	return []string{uci[:2], uci[2:4]}
}

// CheckedKing returns the square of the king in check, or "" when the side
// to move is not in check.
func (b *Board) CheckedKing() string {
	switch b.Status().Kind {
	case Check, Checkmate:
	default:
		return ""
	}
	turn := b.Turn()
	board := b.g.Position().Board()
	for i := 0; i < 64; i++ {
		sq := chess.Square(i)
		p := board.Piece(sq)
		if p.Type() == chess.King && p.Color() == turn {
			return sq.String()
		}
	}
	return ""
}

// game exposes the underlying game for the opening lookup.
func (b *Board) game() *chess.Game { return b.g }

// inCheck reads the check tag of the last move. A position loaded from FEN
// with no moves played reports no check.
func (b *Board) inCheck() bool {
	ms := b.g.Moves()
	if len(ms) == 0 {
		return false
	}
	return ms[len(ms)-1].HasTag(chess.Check)
}

func findLegal(pos *chess.Position, from, to chess.Square, promo chess.PieceType) *chess.Move {
	for _, m := range pos.ValidMoves() {
		if m.S1() == from && m.S2() == to && m.Promo() == promo {
			mv := m
			return &mv
		}
	}
	return nil
}

func moveToken(m *chess.Move) string {
	s := m.S1().String() + m.S2().String()
	if l, ok := promoLetters[m.Promo()]; ok {
		s += string(l)
	}
	return s
}

func colorName(c chess.Color) string {
	switch c {
	case chess.White:
		return "white"
	case chess.Black:
		return "black"
	}
	return ""
}

func drawReason(m chess.Method) string {
	switch m {
	case chess.ThreefoldRepetition:
		return "threefold repetition"
	case chess.FivefoldRepetition:
		return "fivefold repetition"
	case chess.FiftyMoveRule:
		return "fifty-move rule"
	case chess.SeventyFiveMoveRule:
		return "seventy-five-move rule"
	case chess.InsufficientMaterial:
		return "insufficient material"
	case chess.DrawOffer:
		return "agreement"
	}
	return m.String()
}
