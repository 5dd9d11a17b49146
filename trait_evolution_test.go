package personacore

import (
	"math"
	"strings"
	"testing"
)

// ══════════════════════════════════════════════
// TraitEvolver tests
// ══════════════════════════════════════════════

func TestEvolve_GratitudeRaisesEmpathy(t *testing.T) {
	e := NewTraitEvolver()
	prev := TraitVector{Calm: 0.65, Empathy: 0.70, Curiosity: 0.60}

	next := e.Evolve(prev, "ありがとう、助かる")

	// Nudge then decay: (0.70+0.04)*0.98 + 0.5*0.02 = 0.7352
	if next.Empathy <= prev.Empathy {
		t.Fatalf("empathy should rise above baseline, got %f", next.Empathy)
	}
	if next.Empathy >= prev.Empathy+0.04 {
		t.Fatalf("decay must pull below the naive additive result, got %f", next.Empathy)
	}
	want := (prev.Empathy+0.04)*(1-DefaultDecayRate) + TraitBaseline*DefaultDecayRate
	if math.Abs(next.Empathy-want) > 1e-9 {
		t.Fatalf("expected empathy %f, got %f", want, next.Empathy)
	}
}

func TestEvolve_HostilityLowersCalm(t *testing.T) {
	e := NewTraitEvolver()
	prev := DefaultTraits()

	next := e.Evolve(prev, "shut up, you are useless")
	if next.Calm >= prev.Calm {
		t.Fatalf("calm should drop on hostility, got %f", next.Calm)
	}
}

func TestEvolve_CuriosityMarkers(t *testing.T) {
	e := NewTraitEvolver()
	next := e.Evolve(DefaultTraits(), "なぜ空は青いの？教えて")
	if next.Curiosity <= TraitBaseline {
		t.Fatalf("curiosity should rise, got %f", next.Curiosity)
	}
}

func TestEvolve_MultipleCategoriesApplyIndependently(t *testing.T) {
	e := NewTraitEvolver()
	prev := DefaultTraits()

	next := e.Evolve(prev, "ありがとう。でも、なぜか不安なんだ")
	if next.Empathy <= prev.Empathy {
		t.Fatal("gratitude nudge missing")
	}
	if next.Calm >= prev.Calm {
		t.Fatal("reassurance-seeking nudge missing")
	}
	if next.Curiosity <= prev.Curiosity {
		t.Fatal("curiosity nudge missing")
	}

	cats := e.MatchedCategories("ありがとう。でも、なぜか不安なんだ")
	if len(cats) != 3 {
		t.Fatalf("expected 3 categories, got %v", cats)
	}
}

func TestEvolve_EmptyInputStillDecays(t *testing.T) {
	e := NewTraitEvolver()
	prev := TraitVector{Calm: 0.9, Empathy: 0.2, Curiosity: 0.5}

	next := e.Evolve(prev, "   ")
	if next.Calm >= prev.Calm {
		t.Fatal("calm should decay toward baseline")
	}
	if next.Empathy <= prev.Empathy {
		t.Fatal("empathy should decay toward baseline")
	}
	if math.Abs(next.Curiosity-0.5) > 1e-9 {
		t.Fatalf("trait at baseline should stay put, got %f", next.Curiosity)
	}
}

func TestEvolve_NeutralInputConvergesToBaseline(t *testing.T) {
	e := NewTraitEvolver()
	traits := TraitVector{Calm: 0.95, Empathy: 0.05, Curiosity: 0.8}

	prevDist := distanceFromBaseline(traits)
	for i := 0; i < 200; i++ {
		traits = e.Evolve(traits, "そうなんだ")
		dist := distanceFromBaseline(traits)
		if dist > prevDist+1e-12 {
			t.Fatalf("distance from baseline grew at step %d: %f > %f", i, dist, prevDist)
		}
		prevDist = dist
	}
	if math.Abs(traits.Calm-0.5) > 0.02 || math.Abs(traits.Empathy-0.5) > 0.02 {
		t.Fatalf("traits did not converge: %+v", traits)
	}
}

func TestEvolve_BoundsUnderRepeatedExtremes(t *testing.T) {
	e := NewTraitEvolver()

	traits := DefaultTraits()
	for i := 0; i < 1000; i++ {
		traits = e.Evolve(traits, "ありがとう thank you なぜ why")
		assertInBounds(t, traits)
	}

	traits = DefaultTraits()
	for i := 0; i < 1000; i++ {
		traits = e.Evolve(traits, "shut up うざい 不安")
		assertInBounds(t, traits)
	}
}

func TestEvolve_ClampBeforeDecay(t *testing.T) {
	e := NewTraitEvolver()
	prev := TraitVector{Calm: 0.5, Empathy: 0.99, Curiosity: 0.5}

	next := e.Evolve(prev, "thank you so much")
	// 0.99+0.04 clamps to 1.0 before decay: 1.0*0.98 + 0.01 = 0.99
	want := 1.0*(1-DefaultDecayRate) + TraitBaseline*DefaultDecayRate
	if math.Abs(next.Empathy-want) > 1e-9 {
		t.Fatalf("expected clamp-then-decay %f, got %f", want, next.Empathy)
	}
}

func TestEvolve_Deterministic(t *testing.T) {
	e := NewTraitEvolver()
	prev := TraitVector{Calm: 0.3, Empathy: 0.7, Curiosity: 0.6}
	input := strings.Repeat("ありがとう ", 3)

	a := e.Evolve(prev, input)
	b := e.Evolve(prev, input)
	if a != b {
		t.Fatalf("evolve must be deterministic: %+v vs %+v", a, b)
	}
}

func assertInBounds(t *testing.T, v TraitVector) {
	t.Helper()
	for name, val := range map[string]float64{"calm": v.Calm, "empathy": v.Empathy, "curiosity": v.Curiosity} {
		if val < 0 || val > 1 {
			t.Fatalf("%s out of bounds: %f", name, val)
		}
	}
}

func distanceFromBaseline(v TraitVector) float64 {
	return math.Abs(v.Calm-0.5) + math.Abs(v.Empathy-0.5) + math.Abs(v.Curiosity-0.5)
}
