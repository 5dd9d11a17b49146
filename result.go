package personacore

// ──────────────────────────────────────────────
// Result envelopes and degraded-path taxonomy
// ──────────────────────────────────────────────

// FallbackKind distinguishes why a pipeline step degraded instead of
// silently swallowing the cause. A turn can report several kinds at once.
type FallbackKind string

const (
	FallbackNone          FallbackKind = ""
	FallbackGeneration    FallbackKind = "generation"     // primary reply fell back
	FallbackReflection    FallbackKind = "reflection"     // reflection fell back to the fixed sentence
	FallbackIntrospection FallbackKind = "introspection"  // mid-term report neutralized
	FallbackMeta          FallbackKind = "meta_reflection" // deep report neutralized
	FallbackPersist       FallbackKind = "persist"        // save failed, reply still served
)

// GenerationFallbackReply replaces the primary reply when the generation
// service fails. The trait update still applies; the turn never errors out.
const GenerationFallbackReply = "……ごめん、少し言葉が出てこなかった。もう一度聞かせてくれる？" +
	" (Sorry — the words didn't come out for a moment. Could you say that again?)"

// TurnResult is the per-turn success envelope. Best-effort fields are always
// populated, even under partial failure.
type TurnResult struct {
	Reply       string         `json:"reply"`
	Traits      TraitVector    `json:"traits"`
	Reflection  string         `json:"reflection"`
	MetaSummary string         `json:"meta_summary"`
	Safety      SafetyReport   `json:"safety"`
	Route       RouteDecision  `json:"route"`
	Fallbacks   []FallbackKind `json:"fallbacks,omitempty"`
	// PersistError carries a store write failure as a secondary error
	// field: the in-memory trait computation above it is already final.
	PersistError string `json:"persist_error,omitempty"`
}

// ReflectNowResult is the envelope for the on-demand reflection pipeline.
type ReflectNowResult struct {
	Reflection    string              `json:"reflection"`
	Introspection IntrospectionReport `json:"introspection"`
	MetaSummary   string              `json:"meta_summary"`
	Safety        SafetyReport        `json:"safety"`
	Traits        TraitVector         `json:"traits"`
	Fallbacks     []FallbackKind      `json:"fallbacks,omitempty"`
}
