package personacore

import (
	"context"
	"testing"
	"time"
)

// ══════════════════════════════════════════════
// InMemoryPersonaStore tests
// ══════════════════════════════════════════════

func TestInMemoryStore_LoadLatestBeforeSave(t *testing.T) {
	s := NewInMemoryPersonaStore()
	if _, err := s.LoadLatest(context.Background(), "nobody"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInMemoryStore_SaveRoundTrip(t *testing.T) {
	s := NewInMemoryPersonaStore()
	ctx := context.Background()

	rec := &PersonaRecord{
		SessionID:   "sess-1",
		Traits:      TraitVector{Calm: 0.61, Empathy: 0.72, Curiosity: 0.55},
		Reflection:  "静かな一日だった。",
		MetaSummary: "安定している",
		Growth:      0.12,
	}
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Fatal("save must stamp id and timestamp")
	}

	got, err := s.LoadLatest(ctx, "sess-1")
	if err != nil {
		t.Fatalf("loadLatest: %v", err)
	}
	if got.Traits != rec.Traits || got.Reflection != rec.Reflection ||
		got.MetaSummary != rec.MetaSummary || got.Growth != rec.Growth {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, rec)
	}
}

func TestInMemoryStore_SequentialSavesPreserveHistory(t *testing.T) {
	s := NewInMemoryPersonaStore()
	ctx := context.Background()

	first := &PersonaRecord{SessionID: "sess-1", Traits: TraitVector{Calm: 0.4, Empathy: 0.5, Curiosity: 0.5}}
	second := &PersonaRecord{SessionID: "sess-1", Traits: TraitVector{Calm: 0.6, Empathy: 0.5, Curiosity: 0.5}}
	if err := s.Save(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, second); err != nil {
		t.Fatal(err)
	}

	history, err := s.History(ctx, "sess-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("append-only store must keep both rows, got %d", len(history))
	}
	if history[0].Traits.Calm != 0.4 || history[1].Traits.Calm != 0.6 {
		t.Fatal("history must be in write order")
	}

	latest, _ := s.LoadLatest(ctx, "sess-1")
	if latest.Traits.Calm != 0.6 {
		t.Fatal("loadLatest must return the newest row")
	}
}

func TestInMemoryStore_GrowthLogAppendOnly(t *testing.T) {
	s := NewInMemoryPersonaStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entry := NewGrowthLogEntry("sess-1", DefaultTraits(), DefaultTraits(), time.Now())
		if err := s.AppendGrowth(ctx, entry); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := s.GrowthLog(ctx, "sess-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 flat entries, got %d", len(entries))
	}
}

func TestInMemoryStore_PruneKeepsLatest(t *testing.T) {
	s := NewInMemoryPersonaStore()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		rec := &PersonaRecord{SessionID: "sess-1", Traits: TraitVector{Calm: float64(i) / 10, Empathy: 0.5, Curiosity: 0.5}}
		if err := s.Save(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.PruneHistory(ctx, "sess-1", 4); err != nil {
		t.Fatal(err)
	}

	history, _ := s.History(ctx, "sess-1", 0)
	if len(history) != 4 {
		t.Fatalf("expected 4 rows after prune, got %d", len(history))
	}
	latest, _ := s.LoadLatest(ctx, "sess-1")
	if latest.Traits.Calm != 0.9 {
		t.Fatal("prune must never drop the latest row")
	}
}

func TestInMemoryStore_SessionsAreIsolated(t *testing.T) {
	s := NewInMemoryPersonaStore()
	ctx := context.Background()

	if err := s.Save(ctx, &PersonaRecord{SessionID: "a", Traits: TraitVector{Calm: 0.1, Empathy: 0.5, Curiosity: 0.5}}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadLatest(ctx, "b"); err != ErrNotFound {
		t.Fatalf("session b must be empty, got %v", err)
	}
}
