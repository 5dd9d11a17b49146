package personacore

import (
	"time"

	"github.com/google/uuid"
)

// ──────────────────────────────────────────────
// Growth Log — flat append-only trait history
// ──────────────────────────────────────────────

// GrowthLogEntry records one turn's trait movement. Entries are flat rows:
// an entry never embeds prior entries, so the log grows linearly and stays
// cheap to chart and audit. Never mutated after append.
type GrowthLogEntry struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	Traits    TraitVector `json:"traits"` // absolute snapshot after the turn
	Delta     TraitVector `json:"delta"`  // movement relative to the prior turn
	Timestamp time.Time   `json:"timestamp"`
}

// NewGrowthLogEntry builds an entry for one completed turn.
func NewGrowthLogEntry(sessionID string, traits, prev TraitVector, now time.Time) GrowthLogEntry {
	return GrowthLogEntry{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Traits:    traits,
		Delta:     traits.Delta(prev),
		Timestamp: now,
	}
}

// RecentDeltaSummary condenses the tail of a growth log into a short
// machine-readable digest for prompt context.
func RecentDeltaSummary(entries []GrowthLogEntry, n int) TraitVector {
	if n <= 0 || len(entries) == 0 {
		return TraitVector{}
	}
	if n > len(entries) {
		n = len(entries)
	}
	var sum TraitVector
	for _, e := range entries[len(entries)-n:] {
		sum.Calm += e.Delta.Calm
		sum.Empathy += e.Delta.Empathy
		sum.Curiosity += e.Delta.Curiosity
	}
	return sum
}
