package personacore

import (
	"strings"
)

// ──────────────────────────────────────────────
// Trait Evolution — lightweight rule-based drift
// ──────────────────────────────────────────────

// traitTarget names which TraitVector component a category nudges.
type traitTarget int

const (
	targetCalm traitTarget = iota
	targetEmpathy
	targetCuriosity
)

// nudgeCategory is one keyword category. A category fires at most once per
// input and applies exactly one fixed-size nudge to exactly one trait.
type nudgeCategory struct {
	name     string
	target   traitTarget
	step     float64 // signed nudge applied on match
	keywords []string
}

// TraitEvolver turns user input plus the prior TraitVector into the next one.
// Bilingual (Japanese + English) keyword matching, no LLM cost.
type TraitEvolver struct {
	categories []nudgeCategory
	decayRate  float64
}

// NewTraitEvolver creates an evolver with the built-in bilingual categories.
func NewTraitEvolver() *TraitEvolver {
	return &TraitEvolver{
		categories: defaultNudgeCategories(),
		decayRate:  DefaultDecayRate,
	}
}

func defaultNudgeCategories() []nudgeCategory {
	return []nudgeCategory{
		{
			name:   "gratitude",
			target: targetEmpathy,
			step:   +0.04,
			keywords: []string{
				// Japanese
				"ありがとう", "ありがと", "感謝", "助かる", "助かった", "嬉しい", "うれしい",
				// English
				"thank you", "thanks", "appreciate", "grateful", "you helped",
			},
		},
		{
			name:   "hostility",
			target: targetCalm,
			step:   -0.05,
			keywords: []string{
				"うざい", "黙れ", "最悪", "むかつく", "消えろ", "嫌い", "ふざけるな",
				"shut up", "stupid", "useless", "hate you", "terrible", "you suck",
			},
		},
		{
			name:   "reassurance",
			target: targetCalm,
			step:   -0.03,
			keywords: []string{
				"不安", "心配", "怖い", "こわい", "大丈夫かな", "つらい", "辛い", "疲れた",
				"worried", "anxious", "scared", "afraid", "am i okay", "i can't sleep",
			},
		},
		{
			name:   "curiosity",
			target: targetCuriosity,
			step:   +0.04,
			keywords: []string{
				"なぜ", "どうして", "気になる", "知りたい", "教えて", "面白い", "おもしろい",
				"why", "how does", "curious", "tell me more", "what if", "i wonder",
			},
		},
	}
}

// Evolve computes the next TraitVector from the previous one and raw input.
//
// Order is fixed for determinism: accumulate all category nudges, clamp once,
// then decay once toward the baseline. Empty input and no-match input still
// decay, so repeated neutral turns converge to the baseline. Pure function.
func (e *TraitEvolver) Evolve(prev TraitVector, input string) TraitVector {
	next := prev
	lower := strings.ToLower(input)

	if strings.TrimSpace(lower) != "" {
		for _, cat := range e.categories {
			if !matchesAny(lower, cat.keywords) {
				continue
			}
			switch cat.target {
			case targetCalm:
				next.Calm += cat.step
			case targetEmpathy:
				next.Empathy += cat.step
			case targetCuriosity:
				next.Curiosity += cat.step
			}
		}
	}

	return next.Clamped().Decayed(e.decayRate)
}

// MatchedCategories reports which categories fire for the input, in
// registration order. Used for audit fields and tests.
func (e *TraitEvolver) MatchedCategories(input string) []string {
	lower := strings.ToLower(input)
	if strings.TrimSpace(lower) == "" {
		return nil
	}
	var names []string
	for _, cat := range e.categories {
		if matchesAny(lower, cat.keywords) {
			names = append(names, cat.name)
		}
	}
	return names
}

func matchesAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
