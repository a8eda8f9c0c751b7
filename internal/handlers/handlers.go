package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chessai/internal/errors"
	"chessai/internal/game"
	"chessai/internal/logging"
	"chessai/internal/storage"
	"chessai/internal/templates"
)

// Handler contains dependencies for HTTP handlers
type Handler struct {
	Hub   *game.Hub
	Seq   *game.Sequencer
	Store *storage.Store
	log   zerolog.Logger
}

// NewHandler creates a new handler instance. store may be nil.
func NewHandler(hub *game.Hub, seq *game.Sequencer, store *storage.Store) *Handler {
	return &Handler{Hub: hub, Seq: seq, Store: store, log: logging.With("http")}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/new", h.HandleNew)
	mux.HandleFunc("/sse/", h.HandleSSE)
	mux.HandleFunc("/move/", h.HandleMove)
	mux.HandleFunc("/reset/", h.HandleReset)
	mux.HandleFunc("/engine/", h.HandleEngine)
	mux.HandleFunc("/opponent/", h.HandleOpponent)
	mux.HandleFunc("/state/", h.HandleState)
	mux.HandleFunc("/game/", h.HandleGame)
	mux.HandleFunc("/stats", h.HandleStats)
	mux.HandleFunc("/", h.HandlePage)
}

// HandleNew creates a session, starts a game for the requested side and
// redirects to it
func (h *Handler) HandleNew(w http.ResponseWriter, r *http.Request) {
	side, err := game.ParseSide(r.FormValue("side"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := uuid.NewString()
	s := h.Hub.Get(id)
	if err := h.Seq.NewGame(r.Context(), s, side); err != nil {
		h.log.Warn().Err(err).Str("session", id).Msg("new game")
	}
	h.persist(r.Context(), s)
	http.Redirect(w, r, "/"+id, http.StatusFound)
}

// HandlePage serves the home page or game page
func (h *Handler) HandlePage(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	if path == "" || path == "index.html" {
		templates.WriteHomeHTML(w)
		return
	}
	id, ok := validID(path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	h.session(r.Context(), id)
	templates.WriteGameHTML(w, id)
}

// HandleSSE handles Server-Sent Events for real-time game updates
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	id, ok := validID(strings.TrimPrefix(r.URL.Path, "/sse/"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	s := h.session(r.Context(), id)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan []byte, 16)
	s.AddWatcher(ch)

	initial, _ := json.Marshal(s.State())

	_, _ = fmt.Fprintf(w, "data: %s\n\n", initial)
	flusher.Flush()

	s.Touch()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	defer s.RemoveWatcher(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// heartbeat
			_, _ = w.Write([]byte("data: {}\n\n"))
			flusher.Flush()
		case msg := <-ch:
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(msg)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

// HandleMove processes a move token from the board or the text form
func (h *Handler) HandleMove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "error": "method not allowed"})
		return
	}
	id, ok := validID(strings.TrimPrefix(r.URL.Path, "/move/"))
	if !ok {
		WriteJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "unknown session"})
		return
	}
	s := h.session(r.Context(), id)

	var m game.MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad json"})
		return
	}

	s.Touch()
	err := h.Seq.Submit(r.Context(), s, game.MoveEvent{Token: m.UCI, Seq: m.Seq})
	h.finish(w, r, s, err)
}

// HandleReset starts a new game in the session for the requested side
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "error": "method not allowed"})
		return
	}
	id, ok := validID(strings.TrimPrefix(r.URL.Path, "/reset/"))
	if !ok {
		WriteJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "unknown session"})
		return
	}
	s := h.session(r.Context(), id)

	side, ok := decodeSide(w, r)
	if !ok {
		return
	}

	s.Mu.Lock()
	prev, prevState := s.GameID, s.StateLocked()
	s.Mu.Unlock()
	if prevState.Phase != game.GameOver.String() && len(prevState.History) > 0 {
		if gid, err := uuid.Parse(prev); err == nil {
			if err := h.Store.AbandonGame(r.Context(), gid, time.Now()); err != nil {
				h.log.Error().Err(err).Str("game", prev).Msg("abandon game")
			}
		}
	}

	err := h.Seq.NewGame(r.Context(), s, side)
	h.finish(w, r, s, err)
}

// HandleEngine asks the engine again after a failed automated move
func (h *Handler) HandleEngine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "error": "method not allowed"})
		return
	}
	id, ok := validID(strings.TrimPrefix(r.URL.Path, "/engine/"))
	if !ok {
		WriteJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "unknown session"})
		return
	}
	s := h.session(r.Context(), id)
	err := h.Seq.Retry(r.Context(), s)
	h.finish(w, r, s, err)
}

// HandleOpponent switches the human's side, or turns the engine off with
// side "manual"
func (h *Handler) HandleOpponent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "error": "method not allowed"})
		return
	}
	id, ok := validID(strings.TrimPrefix(r.URL.Path, "/opponent/"))
	if !ok {
		WriteJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "unknown session"})
		return
	}
	s := h.session(r.Context(), id)

	side, ok := decodeSide(w, r)
	if !ok {
		return
	}
	err := h.Seq.SetOpponent(r.Context(), s, side)
	h.finish(w, r, s, err)
}

// HandleState returns the session snapshot
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	s, ok := h.Hub.Lookup(strings.TrimPrefix(r.URL.Path, "/state/"))
	if !ok {
		WriteJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "unknown session"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "state": s.State()})
}

// HandleGame returns a stored game with its moves
func (h *Handler) HandleGame(w http.ResponseWriter, r *http.Request) {
	gid, err := uuid.Parse(strings.TrimPrefix(r.URL.Path, "/game/"))
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad game id"})
		return
	}
	g, err := h.Store.LoadGame(r.Context(), gid)
	if errors.Is(err, storage.ErrNotFound) {
		WriteJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "unknown game"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("game", gid.String()).Msg("load game")
		WriteJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "game unavailable"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "game": newGameRecord(g)})
}

// HandleStats reports live sessions and, with a database, stored game counts
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.FetchStats(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("fetch stats")
		WriteJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "stats unavailable"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"sessions": h.Hub.Len(),
		"stats":    stats,
		"stored":   h.Store.Enabled(),
	})
}

// session returns the session for id, starting a game with the human on
// White when the id has not been seen before.
func (h *Handler) session(ctx context.Context, id string) *game.Session {
	if s, ok := h.Hub.Lookup(id); ok {
		return s
	}
	s := h.Hub.Get(id)
	if err := h.Seq.NewGame(ctx, s, game.SideWhite); err != nil {
		h.log.Warn().Err(err).Str("session", id).Msg("start game")
	}
	h.persist(ctx, s)
	return s
}

// finish persists and broadcasts the session and writes the JSON reply
// for a sequencer call that returned err.
func (h *Handler) finish(w http.ResponseWriter, r *http.Request, s *game.Session, err error) {
	h.persist(r.Context(), s)
	go s.Broadcast()

	state := s.State()
	if err != nil {
		logging.Debugf("session %s: %v", s.ID, err)
		WriteJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error(), "code": errors.Code(err), "state": state})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "state": state})
}

// persist writes history entries not yet stored and the current game row.
func (h *Handler) persist(ctx context.Context, s *game.Session) {
	if !h.Store.Enabled() {
		return
	}
	s.Mu.Lock()
	state := s.StateLocked()
	from := s.Persisted()
	s.MarkPersisted(len(state.History))
	s.Mu.Unlock()

	gid, err := uuid.Parse(state.GameID)
	if err != nil {
		h.log.Error().Err(err).Str("game", state.GameID).Msg("bad game id")
		return
	}
	// unmark rolls the persisted marker back so the next call retries.
	unmark := func() {
		s.Mu.Lock()
		if s.GameID == state.GameID {
			s.MarkPersisted(from)
		}
		s.Mu.Unlock()
	}
	now := time.Now()
	if from == 0 {
		if err := h.Store.CreateGame(ctx, gid, s.ID, state.Side, now); err != nil {
			h.log.Error().Err(err).Str("game", state.GameID).Msg("create game")
			unmark()
			return
		}
	}
	if from < len(state.History) {
		recs := make([]storage.MoveRecord, 0, len(state.History)-from)
		for _, e := range state.History[from:] {
			recs = append(recs, storage.MoveRecord{Ply: e.Ply, Actor: string(e.Actor), Color: e.Color, UCI: e.UCI, SAN: e.SAN})
		}
		if err := h.Store.RecordMoves(ctx, gid, recs); err != nil {
			h.log.Error().Err(err).Str("game", state.GameID).Msg("record moves")
			unmark()
		}
	}
	upd := storage.GameStateUpdate{
		FEN:      &state.FEN,
		PGN:      &state.PGN,
		Status:   &state.Status,
		Result:   &state.Result,
		Opening:  &state.Opening,
		LastSeen: &now,
	}
	if err := h.Store.SaveGameState(ctx, gid, upd); err != nil {
		h.log.Error().Err(err).Str("game", state.GameID).Msg("save game")
	}
	if state.Phase == game.GameOver.String() {
		if err := h.Store.CompleteGame(ctx, gid, state.Status, state.Result, now); err != nil {
			h.log.Error().Err(err).Str("game", state.GameID).Msg("complete game")
		}
	}
}

// validID accepts the ids /new hands out and other short tokens of
// letters, digits, '-' and '_'. Anything else (favicon.ico, nested paths)
// never becomes a session.
func validID(id string) (string, bool) {
	if id == "" || len(id) > 64 {
		return "", false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return "", false
		}
	}
	return id, true
}

type moveRecord struct {
	Ply   int    `json:"ply"`
	Actor string `json:"actor"`
	Color string `json:"color"`
	UCI   string `json:"uci"`
	SAN   string `json:"san"`
}

type gameRecord struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"sessionId"`
	HumanSide   string       `json:"side"`
	FEN         string       `json:"fen"`
	PGN         string       `json:"pgn"`
	Status      string       `json:"status"`
	Result      string       `json:"result"`
	Opening     string       `json:"opening"`
	Active      bool         `json:"active"`
	CreatedAt   time.Time    `json:"createdAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
	Moves       []moveRecord `json:"moves"`
}

func newGameRecord(g *storage.Game) gameRecord {
	rec := gameRecord{
		ID:          g.ID.String(),
		SessionID:   g.SessionID,
		HumanSide:   g.HumanSide,
		FEN:         g.FEN,
		PGN:         g.PGN,
		Status:      g.Status,
		Result:      g.Result,
		Opening:     g.Opening,
		Active:      g.Active,
		CreatedAt:   g.CreatedAt,
		CompletedAt: g.CompletedAt,
		Moves:       make([]moveRecord, 0, len(g.Moves)),
	}
	for _, m := range g.Moves {
		rec.Moves = append(rec.Moves, moveRecord{Ply: m.Ply, Actor: m.Actor, Color: m.Color, UCI: m.UCI, SAN: m.SAN})
	}
	return rec
}

func decodeSide(w http.ResponseWriter, r *http.Request) (game.Side, bool) {
	var body game.SideRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad json"})
			return 0, false
		}
	}
	side, err := game.ParseSide(body.Side)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error(), "code": errors.Code(err)})
		return 0, false
	}
	return side, true
}
