package personacore

// ──────────────────────────────────────────────
// TraitVector — three-axis bounded mood state
// ──────────────────────────────────────────────

// TraitBaseline is the homeostatic resting point every trait drifts toward.
const TraitBaseline = 0.5

// DefaultDecayRate is the per-turn pull toward TraitBaseline.
const DefaultDecayRate = 0.02

// TraitVector is the persona's mood state. Each component stays in [0,1].
// Values are computed per turn and never mutated afterwards; a new vector
// supersedes the previous one.
type TraitVector struct {
	Calm      float64 `json:"calm"`      // composure; high = measured, conflict-avoidant
	Empathy   float64 `json:"empathy"`   // attunement to the user's feelings
	Curiosity float64 `json:"curiosity"` // appetite for new topics and depth
}

// DefaultTraits returns the neutral starting state for a fresh session.
func DefaultTraits() TraitVector {
	return TraitVector{Calm: TraitBaseline, Empathy: TraitBaseline, Curiosity: TraitBaseline}
}

// Clamped returns a copy with every component bounded to [0,1].
func (t TraitVector) Clamped() TraitVector {
	return TraitVector{
		Calm:      clamp01(t.Calm),
		Empathy:   clamp01(t.Empathy),
		Curiosity: clamp01(t.Curiosity),
	}
}

// Decayed pulls every component toward TraitBaseline by rate:
// trait' = trait*(1-rate) + baseline*rate.
// A clamped input stays clamped, so Decayed never leaves [0,1].
func (t TraitVector) Decayed(rate float64) TraitVector {
	return TraitVector{
		Calm:      t.Calm*(1-rate) + TraitBaseline*rate,
		Empathy:   t.Empathy*(1-rate) + TraitBaseline*rate,
		Curiosity: t.Curiosity*(1-rate) + TraitBaseline*rate,
	}
}

// Delta returns the componentwise difference t - prev.
func (t TraitVector) Delta(prev TraitVector) TraitVector {
	return TraitVector{
		Calm:      t.Calm - prev.Calm,
		Empathy:   t.Empathy - prev.Empathy,
		Curiosity: t.Curiosity - prev.Curiosity,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
