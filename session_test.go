package personacore

import (
	"context"
	"testing"
)

func TestRegistry_ResolveIsStablePerID(t *testing.T) {
	r := NewSessionRegistry(5)
	a := r.Resolve("sess-a")
	if r.Resolve("sess-a") != a {
		t.Fatal("same id must resolve the same session")
	}
	if r.Resolve("sess-b") == a {
		t.Fatal("different ids must resolve different sessions")
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 live sessions, got %d", r.Len())
	}
}

func TestRegistry_DropDiscardsWindowOnly(t *testing.T) {
	r := NewSessionRegistry(5)
	s := r.Resolve("sess-a")
	s.Window.Add(Reflection{Text: "x"})

	r.Drop("sess-a")
	if r.Resolve("sess-a").Window.Len() != 0 {
		t.Fatal("re-resolved session must start with an empty window")
	}
}

func TestSession_LoadTraitsDefaultsWhenMissing(t *testing.T) {
	s := &PersonaSession{SessionID: "sess-a", Window: NewReflectionWindow(5)}
	traits, growth, err := s.LoadTraits(context.Background(), NewInMemoryPersonaStore())
	if err != nil {
		t.Fatalf("missing persona is not an error: %v", err)
	}
	if traits != DefaultTraits() || growth != 0 {
		t.Fatalf("expected neutral defaults, got %+v growth=%f", traits, growth)
	}
}
