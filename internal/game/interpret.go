package game

import (
	"strings"

	"github.com/corentings/chess/v2"

	"chessai/internal/errors"
)

var promoPieces = map[byte]chess.PieceType{
	'q': chess.Queen,
	'r': chess.Rook,
	'b': chess.Bishop,
	'n': chess.Knight,
}

var promoLetters = map[chess.PieceType]byte{
	chess.Queen:  'q',
	chess.Rook:   'r',
	chess.Bishop: 'b',
	chess.Knight: 'n',
}

// Resolve turns a raw square-pair token ("e2e4", "a7a8n") into a legal move
// of pos. A bare pawn move to the last rank that is only legal with a
// promotion piece resolves to the queen promotion. Explicit promotion
// letters are honoured as given.
func Resolve(raw string, pos *chess.Position) (*chess.Move, error) {
	token := strings.ToLower(strings.TrimSpace(raw))
	from, to, promo, ok := parseToken(token)
	if !ok {
		return nil, &errors.MoveError{Err: errors.ErrInvalidFormat, Token: raw, FEN: pos.String()}
	}
	if m := findLegal(pos, from, to, promo); m != nil {
		return m, nil
	}
	if promo == chess.NoPieceType {
		if m := findLegal(pos, from, to, chess.Queen); m != nil {
			return m, nil
		}
	}
	return nil, &errors.MoveError{Err: errors.ErrIllegalMove, Token: token, FEN: pos.String()}
}

func parseToken(s string) (from, to chess.Square, promo chess.PieceType, ok bool) {
	if len(s) != 4 && len(s) != 5 {
		return
	}
	if from, ok = parseSquare(s[0:2]); !ok {
		return
	}
	if to, ok = parseSquare(s[2:4]); !ok {
		return
	}
	if from == to {
		ok = false
		return
	}
	if len(s) == 5 {
		if promo, ok = promoPieces[s[4]]; !ok {
			return
		}
	}
	return from, to, promo, true
}

func parseSquare(s string) (chess.Square, bool) {
	if len(s) != 2 {
		return chess.NoSquare, false
	}
	f, r := s[0], s[1]
	if f < 'a' || f > 'h' || r < '1' || r > '8' {
		return chess.NoSquare, false
	}
	return chess.NewSquare(chess.File(f-'a'), chess.Rank(r-'1')), true
}
