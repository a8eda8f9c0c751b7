package game

import (
	"errors"
	"testing"

	"github.com/corentings/chess/v2"

	apperr "chessai/internal/errors"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func mustResolve(t *testing.T, b *Board, token string) *chess.Move {
	t.Helper()
	m, err := Resolve(token, b.Position())
	if err != nil {
		t.Fatalf("Resolve(%q): %v", token, err)
	}
	return m
}

func play(t *testing.T, b *Board, tokens ...string) {
	t.Helper()
	for _, tok := range tokens {
		if err := b.Apply(mustResolve(t, b, tok), ActorHuman); err != nil {
			t.Fatalf("Apply(%q): %v", tok, err)
		}
	}
}

func boardFromFEN(t *testing.T, fen string) *Board {
	t.Helper()
	b, err := NewBoardFromFEN(fen)
	if err != nil {
		t.Fatalf("NewBoardFromFEN: %v", err)
	}
	return b
}

func TestBoardApplyLegal(t *testing.T) {
	b := NewBoard()
	play(t, b, "e2e4")

	h := b.History()
	if len(h) != 1 {
		t.Fatalf("history length = %d, want 1", len(h))
	}
	if h[0].UCI != "e2e4" || h[0].SAN != "e4" || h[0].Actor != ActorHuman || h[0].Color != "white" {
		t.Fatalf("unexpected history entry: %+v", h[0])
	}
	if b.Turn() != chess.Black {
		t.Fatalf("turn = %v, want black", b.Turn())
	}
	if got := b.LastMove(); len(got) != 2 || got[0] != "e2" || got[1] != "e4" {
		t.Fatalf("LastMove = %v", got)
	}
}

func TestBoardApplyIllegalLeavesStateAlone(t *testing.T) {
	other := NewBoard()
	play(t, other, "e2e4")
	blackReply := mustResolve(t, other, "e7e5")

	b := NewBoard()
	before := b.FEN()
	err := b.Apply(blackReply, ActorHuman)
	if !errors.Is(err, apperr.ErrIllegalMove) {
		t.Fatalf("Apply(out of turn) err = %v, want ErrIllegalMove", err)
	}
	if b.FEN() != before || len(b.History()) != 0 {
		t.Fatalf("illegal apply mutated the board")
	}
	if err := b.Apply(nil, ActorHuman); !errors.Is(err, apperr.ErrIllegalMove) {
		t.Fatalf("Apply(nil) err = %v, want ErrIllegalMove", err)
	}
}

func TestBoardReset(t *testing.T) {
	b := NewBoard()
	play(t, b, "e2e4", "e7e5", "g1f3")
	b.Reset()
	if b.FEN() != startFEN {
		t.Fatalf("FEN after reset = %q", b.FEN())
	}
	if len(b.History()) != 0 {
		t.Fatalf("history not cleared")
	}
	if b.LastMove() != nil {
		t.Fatalf("LastMove after reset = %v", b.LastMove())
	}
}

func TestBoardHistoryIsCopied(t *testing.T) {
	b := NewBoard()
	play(t, b, "d2d4")
	h := b.History()
	h[0].UCI = "zzzz"
	if b.History()[0].UCI != "d2d4" {
		t.Fatalf("History exposed internal slice")
	}
}

func TestBoardStatus(t *testing.T) {
	tests := []struct {
		name    string
		fen     string
		moves   []string
		kind    StatusKind
		reason  string
		checked string
		result  string
	}{
		{name: "opening", moves: []string{"e2e4"}, kind: InProgress, result: "*"},
		{name: "check", moves: []string{"e2e4", "f7f6", "d1h5"}, kind: Check, checked: "e8", result: "*"},
		{name: "fools mate", moves: []string{"f2f3", "e7e5", "g2g4", "d8h4"}, kind: Checkmate, checked: "e1", result: "0-1"},
		{name: "stalemate", fen: "k7/8/8/1Q6/8/8/8/7K w - - 0 1", moves: []string{"b5b6"}, kind: Stalemate, result: "1/2-1/2"},
		{name: "bare kings", fen: "k7/8/8/8/8/8/1q6/K7 w - - 0 1", moves: []string{"a1b2"}, kind: Draw, reason: "insufficient material", result: "1/2-1/2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBoard()
			if tt.fen != "" {
				b = boardFromFEN(t, tt.fen)
			}
			play(t, b, tt.moves...)
			st := b.Status()
			if st.Kind != tt.kind {
				t.Fatalf("Status = %v, want %v", st.Kind, tt.kind)
			}
			if st.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", st.Reason, tt.reason)
			}
			if got := b.CheckedKing(); got != tt.checked {
				t.Errorf("CheckedKing = %q, want %q", got, tt.checked)
			}
			if got := b.Result(); got != tt.result {
				t.Errorf("Result = %q, want %q", got, tt.result)
			}
			if st.Terminal() != (tt.kind == Checkmate || tt.kind == Stalemate || tt.kind == Draw) {
				t.Errorf("Terminal = %v for %v", st.Terminal(), st.Kind)
			}
		})
	}
}

func TestNewBoardFromFENRejectsGarbage(t *testing.T) {
	if _, err := NewBoardFromFEN("not a fen"); err == nil {
		t.Fatalf("expected error for bad fen")
	}
}
