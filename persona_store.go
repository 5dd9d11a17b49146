package personacore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ──────────────────────────────────────────────
// Persona Store — durable append-only persona rows
// ──────────────────────────────────────────────

// ErrNotFound is returned when a session has no persisted persona yet.
// Callers fall back to DefaultTraits().
var ErrNotFound = errors.New("persona not found")

// PersonaRecord is one durable row of persona state. Rows are append-only:
// every save inserts a new row and the full trait history stays
// reconstructible. "Current" persona = the row with the greatest timestamp.
type PersonaRecord struct {
	ID          string      `json:"id"`
	SessionID   string      `json:"session_id"`
	Traits      TraitVector `json:"traits"`
	Reflection  string      `json:"reflection"`
	MetaSummary string      `json:"meta_summary"`
	Growth      float64     `json:"growth"`
	CreatedAt   time.Time   `json:"created_at"`
}

// PersonaStore is the pluggable persistence backend.
//
// Writes are insert-only; LoadLatest returns the most recent row for the
// session or ErrNotFound. PruneHistory is the retention hook: it drops the
// oldest rows beyond keepLast but never the latest one.
type PersonaStore interface {
	LoadLatest(ctx context.Context, sessionID string) (*PersonaRecord, error)
	Save(ctx context.Context, rec *PersonaRecord) error
	History(ctx context.Context, sessionID string, limit int) ([]*PersonaRecord, error)

	AppendGrowth(ctx context.Context, entry GrowthLogEntry) error
	GrowthLog(ctx context.Context, sessionID string, limit int) ([]GrowthLogEntry, error)

	PruneHistory(ctx context.Context, sessionID string, keepLast int) error
}

// stampRecord assigns identity fields on first save.
func stampRecord(rec *PersonaRecord, now time.Time) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
}

// InMemoryPersonaStore is a thread-safe in-memory PersonaStore for
// development and tests. Data is lost on restart.
type InMemoryPersonaStore struct {
	mu      sync.RWMutex
	records map[string][]*PersonaRecord
	growth  map[string][]GrowthLogEntry
}

// NewInMemoryPersonaStore creates an empty in-memory store.
func NewInMemoryPersonaStore() *InMemoryPersonaStore {
	return &InMemoryPersonaStore{
		records: make(map[string][]*PersonaRecord),
		growth:  make(map[string][]GrowthLogEntry),
	}
}

func (s *InMemoryPersonaStore) LoadLatest(_ context.Context, sessionID string) (*PersonaRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.records[sessionID]
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	cp := *rows[len(rows)-1]
	return &cp, nil
}

func (s *InMemoryPersonaStore) Save(_ context.Context, rec *PersonaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stampRecord(rec, time.Now())
	cp := *rec
	s.records[rec.SessionID] = append(s.records[rec.SessionID], &cp)
	return nil
}

func (s *InMemoryPersonaStore) History(_ context.Context, sessionID string, limit int) ([]*PersonaRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.records[sessionID]
	if limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	out := make([]*PersonaRecord, 0, len(rows))
	for _, r := range rows {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryPersonaStore) AppendGrowth(_ context.Context, entry GrowthLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.growth[entry.SessionID] = append(s.growth[entry.SessionID], entry)
	return nil
}

func (s *InMemoryPersonaStore) GrowthLog(_ context.Context, sessionID string, limit int) ([]GrowthLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.growth[sessionID]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]GrowthLogEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (s *InMemoryPersonaStore) PruneHistory(_ context.Context, sessionID string, keepLast int) error {
	if keepLast <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rows := s.records[sessionID]; len(rows) > keepLast {
		s.records[sessionID] = append([]*PersonaRecord(nil), rows[len(rows)-keepLast:]...)
	}
	if entries := s.growth[sessionID]; len(entries) > keepLast {
		s.growth[sessionID] = append([]GrowthLogEntry(nil), entries[len(entries)-keepLast:]...)
	}
	return nil
}
