package personacore

import (
	"context"
	"errors"
	"sync"
)

// ──────────────────────────────────────────────
// Session Registry — per-session state isolation
// ──────────────────────────────────────────────
//
// All mutable conversation state is keyed by session ID. The registry only
// provides window continuity and same-session serialization; the
// PersonaStore remains the source of truth, and traits are reloaded from it
// on every turn. Nothing here is authoritative across requests.

// PersonaSession holds the per-session mutable state for the turn pipeline.
type PersonaSession struct {
	SessionID string
	Window    *ReflectionWindow

	// mu serializes turns within one session. Turns for different
	// sessions run fully independently.
	mu sync.Mutex
}

// Lock acquires the session for one turn.
func (s *PersonaSession) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *PersonaSession) Unlock() { s.mu.Unlock() }

// LoadTraits resolves the session's current traits from the store.
// A missing persona is not an error: the caller gets the neutral default.
func (s *PersonaSession) LoadTraits(ctx context.Context, store PersonaStore) (TraitVector, float64, error) {
	rec, err := store.LoadLatest(ctx, s.SessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return DefaultTraits(), 0, nil
		}
		return DefaultTraits(), 0, err
	}
	return rec.Traits.Clamped(), rec.Growth, nil
}

// SessionRegistry resolves PersonaSessions by ID.
type SessionRegistry struct {
	mu             sync.Mutex
	sessions       map[string]*PersonaSession
	windowCapacity int
}

// NewSessionRegistry creates a registry. windowCapacity <= 0 uses the
// default reflection-window capacity.
func NewSessionRegistry(windowCapacity int) *SessionRegistry {
	if windowCapacity <= 0 {
		windowCapacity = DefaultWindowCapacity
	}
	return &SessionRegistry{
		sessions:       make(map[string]*PersonaSession),
		windowCapacity: windowCapacity,
	}
}

// Resolve returns the session for id, creating it on first use.
func (r *SessionRegistry) Resolve(id string) *PersonaSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s
	}
	s := &PersonaSession{
		SessionID: id,
		Window:    NewReflectionWindow(r.windowCapacity),
	}
	r.sessions[id] = s
	return s
}

// Drop removes a session's in-process state. Durable rows are untouched.
func (r *SessionRegistry) Drop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
