package game

import (
	"sync"
	"time"
)

// Hub manages all live sessions
type Hub struct {
	Mu       sync.Mutex
	Sessions map[string]*Session
	ttl      time.Duration
}

// NewHub creates a new session hub with cleanup goroutine
func NewHub(ttl time.Duration) *Hub {
	h := &Hub{Sessions: make(map[string]*Session), ttl: ttl}
	go func() {
		for {
			time.Sleep(5 * time.Minute)
			h.Sweep(time.Now())
		}
	}()
	return h
}

// Get retrieves an existing session or creates a new one
func (h *Hub) Get(id string) *Session {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	if s, ok := h.Sessions[id]; ok {
		return s
	}
	s := NewSession(id)
	h.Sessions[id] = s
	return s
}

// Lookup returns the session for id without creating it.
func (h *Hub) Lookup(id string) (*Session, bool) {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	s, ok := h.Sessions[id]
	return s, ok
}

// Sweep drops sessions idle for longer than the hub's ttl and returns how
// many were removed. Sessions busy with a move are skipped, so a long
// engine search never holds up the registry.
func (h *Hub) Sweep(now time.Time) int {
	h.Mu.Lock()
	candidates := make(map[string]*Session, len(h.Sessions))
	for id, s := range h.Sessions {
		candidates[id] = s
	}
	h.Mu.Unlock()

	var idle []string
	for id, s := range candidates {
		if !s.Mu.TryLock() {
			continue
		}
		if now.Sub(s.LastSeen) > h.ttl {
			idle = append(idle, id)
		}
		s.Mu.Unlock()
	}

	h.Mu.Lock()
	defer h.Mu.Unlock()
	removed := 0
	for _, id := range idle {
		if h.Sessions[id] == candidates[id] {
			delete(h.Sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (h *Hub) Len() int {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	return len(h.Sessions)
}
