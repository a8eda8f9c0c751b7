package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/corentings/chess/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"chessai/internal/game"
	"chessai/internal/storage"
)

// firstMover always plays the first legal move.
type firstMover struct{}

func (firstMover) BestMove(_ context.Context, pos *chess.Position, _ time.Duration) (*chess.Move, error) {
	moves := pos.ValidMoves()
	mv := moves[0]
	return &mv, nil
}

type reply struct {
	OK    bool           `json:"ok"`
	Error string         `json:"error"`
	Code  string         `json:"code"`
	State game.GameState `json:"state"`
}

func newTestHandler(engine game.Mover) *Handler {
	return NewHandler(game.NewHub(time.Hour), game.NewSequencer(engine, time.Millisecond), nil)
}

func post(t *testing.T, h http.HandlerFunc, path, body string) reply {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h(w, req)
	var resp reply
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return resp
}

func TestHandleMoveSuccess(t *testing.T) {
	h := newTestHandler(firstMover{})
	s := h.session(context.Background(), "g1")

	resp := post(t, h.HandleMove, "/move/g1", `{"uci":"e2e4","seq":`+itoa(s.State().Seq)+`}`)
	if !resp.OK {
		t.Fatalf("expected move to succeed: %s", resp.Error)
	}
	if len(resp.State.History) != 2 || resp.State.History[0].Actor != game.ActorHuman || resp.State.History[1].Actor != game.ActorEngine {
		t.Fatalf("history = %+v", resp.State.History)
	}
	if resp.State.Turn != "white" || resp.State.Phase != "awaiting_human" {
		t.Fatalf("turn %q phase %q", resp.State.Turn, resp.State.Phase)
	}
}

func TestHandleMoveRejections(t *testing.T) {
	h := newTestHandler(firstMover{})
	s := h.session(context.Background(), "g2")
	seq := itoa(s.State().Seq)

	tests := []struct {
		body string
		code string
	}{
		{`{"uci":"e2e5","seq":` + seq + `}`, "illegal_move"},
		{`{"uci":"hello","seq":` + seq + `}`, "invalid_format"},
	}
	for _, tt := range tests {
		resp := post(t, h.HandleMove, "/move/g2", tt.body)
		if resp.OK || resp.Code != tt.code {
			t.Errorf("body %s: ok %v code %q, want %q", tt.body, resp.OK, resp.Code, tt.code)
		}
		if len(resp.State.History) != 0 {
			t.Errorf("rejected move changed history")
		}
	}

	if resp := post(t, h.HandleMove, "/move/g2", `{"uci":"e2e4","seq":`+seq+`}`); !resp.OK {
		t.Fatalf("legal move failed: %s", resp.Error)
	}
	if resp := post(t, h.HandleMove, "/move/g2", `{"uci":"e2e4","seq":`+seq+`}`); resp.OK || resp.Code != "stale_event" {
		t.Fatalf("replayed event: ok %v code %q", resp.OK, resp.Code)
	}
}

func TestHandleMoveBadJSON(t *testing.T) {
	h := newTestHandler(firstMover{})
	req := httptest.NewRequest(http.MethodPost, "/move/g3", strings.NewReader(`{`))
	w := httptest.NewRecorder()
	h.HandleMove(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleResetAsBlack(t *testing.T) {
	h := newTestHandler(firstMover{})
	resp := post(t, h.HandleReset, "/reset/g4", `{"side":"black"}`)
	if !resp.OK {
		t.Fatalf("reset failed: %s", resp.Error)
	}
	st := resp.State
	if st.Orientation != "black" || st.Side != "black" {
		t.Fatalf("orientation %q side %q", st.Orientation, st.Side)
	}
	if len(st.History) != 1 || st.History[0].Actor != game.ActorEngine {
		t.Fatalf("history = %+v, want one AI move", st.History)
	}

	if resp := post(t, h.HandleReset, "/reset/g4", `{"side":"green"}`); resp.OK || resp.Code != "invalid_side" {
		t.Fatalf("bad side: ok %v code %q", resp.OK, resp.Code)
	}
}

func TestEngineUnavailableFlow(t *testing.T) {
	h := newTestHandler(nil)
	s := h.session(context.Background(), "g5")

	resp := post(t, h.HandleMove, "/move/g5", `{"uci":"e2e4","seq":`+itoa(s.State().Seq)+`}`)
	if resp.OK || resp.Code != "engine_unavailable" {
		t.Fatalf("ok %v code %q, want engine_unavailable", resp.OK, resp.Code)
	}
	if len(resp.State.History) != 1 || resp.State.Phase != "awaiting_engine" {
		t.Fatalf("history %d phase %q", len(resp.State.History), resp.State.Phase)
	}

	if resp := post(t, h.HandleEngine, "/engine/g5", ``); resp.OK {
		t.Fatalf("retry without engine should fail")
	}

	resp = post(t, h.HandleOpponent, "/opponent/g5", `{"side":"manual"}`)
	if !resp.OK || resp.State.Phase != "awaiting_human" || resp.State.Side != "manual" {
		t.Fatalf("disable engine: ok %v phase %q side %q", resp.OK, resp.State.Phase, resp.State.Side)
	}
}

func TestHandleNewRedirects(t *testing.T) {
	h := newTestHandler(firstMover{})
	req := httptest.NewRequest(http.MethodPost, "/new", strings.NewReader("side=black"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.HandleNew(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	id := strings.TrimPrefix(w.Header().Get("Location"), "/")
	s, ok := h.Hub.Lookup(id)
	if !ok {
		t.Fatalf("session %q not created", id)
	}
	if st := s.State(); st.Side != "black" || len(st.History) != 1 {
		t.Fatalf("side %q history %d", st.Side, len(st.History))
	}
}

func TestHandleStateAndStats(t *testing.T) {
	h := newTestHandler(firstMover{})

	w := httptest.NewRecorder()
	h.HandleState(w, httptest.NewRequest(http.MethodGet, "/state/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown session status = %d", w.Code)
	}

	h.session(context.Background(), "g6")
	w = httptest.NewRecorder()
	h.HandleState(w, httptest.NewRequest(http.MethodGet, "/state/g6", nil))
	var resp reply
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || resp.State.ID != "g6" {
		t.Fatalf("state reply %+v", resp)
	}

	w = httptest.NewRecorder()
	h.HandleStats(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	var stats map[string]any
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats["sessions"].(float64) != 1 || stats["stored"].(bool) {
		t.Fatalf("stats = %v", stats)
	}
}

func TestHandlePage(t *testing.T) {
	h := newTestHandler(firstMover{})
	w := httptest.NewRecorder()
	h.HandlePage(w, httptest.NewRequest(http.MethodGet, "/abc", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"abc"`) {
		t.Fatalf("game page not served for abc")
	}
	if _, ok := h.Hub.Lookup("abc"); !ok {
		t.Fatalf("visiting a game page should create the session")
	}
}

func TestHandlePageRejectsNonIDPaths(t *testing.T) {
	h := newTestHandler(firstMover{})
	for _, path := range []string{"/favicon.ico", "/a/b", "/" + strings.Repeat("x", 65)} {
		w := httptest.NewRecorder()
		h.HandlePage(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s: status = %d, want 404", path, w.Code)
		}
	}
	if n := h.Hub.Len(); n != 0 {
		t.Fatalf("%d sessions created for non-id paths", n)
	}

	if resp := post(t, h.HandleMove, "/move/favicon.ico", `{"uci":"e2e4"}`); resp.OK {
		t.Fatalf("move accepted for a non-id path")
	}
	if n := h.Hub.Len(); n != 0 {
		t.Fatalf("move created a session for a non-id path")
	}
}

func TestHandleGame(t *testing.T) {
	h := newTestHandler(firstMover{})

	w := httptest.NewRecorder()
	h.HandleGame(w, httptest.NewRequest(http.MethodGet, "/game/not-a-uuid", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", w.Code)
	}

	// Without a database no game is ever found.
	w = httptest.NewRecorder()
	h.HandleGame(w, httptest.NewRequest(http.MethodGet, "/game/"+uuid.NewString(), nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing game status = %d", w.Code)
	}
}

func TestNewGameRecord(t *testing.T) {
	id := uuid.New()
	done := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	g := &storage.Game{
		ID:          id,
		SessionID:   "s1",
		HumanSide:   "white",
		Status:      "checkmate",
		Result:      "0-1",
		CompletedAt: &done,
		Moves: []storage.Move{
			{GameID: id, Ply: 1, Actor: "You", Color: "white", UCI: "f2f3", SAN: "f3"},
			{GameID: id, Ply: 2, Actor: "AI", Color: "black", UCI: "e7e5", SAN: "e5"},
		},
	}
	got := newGameRecord(g)
	want := gameRecord{
		ID:          id.String(),
		SessionID:   "s1",
		HumanSide:   "white",
		Status:      "checkmate",
		Result:      "0-1",
		CompletedAt: &done,
		Moves: []moveRecord{
			{Ply: 1, Actor: "You", Color: "white", UCI: "f2f3", SAN: "f3"},
			{Ply: 2, Actor: "AI", Color: "black", UCI: "e7e5", SAN: "e5"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestLogRequestsSetsRequestID(t *testing.T) {
	mux := http.NewServeMux()
	newTestHandler(firstMover{}).Routes(mux)
	w := httptest.NewRecorder()
	LogRequests(mux).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(w.Header().Get("X-Request-Id")) != 16 {
		t.Fatalf("request id = %q", w.Header().Get("X-Request-Id"))
	}
}

func itoa(n uint64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
