package personacore

import (
	"strings"
	"unicode/utf8"
)

// ──────────────────────────────────────────────
// Model Router — static cost-control tier selection
// ──────────────────────────────────────────────
//
// A deterministic scoring heuristic, not a learned classifier: shallow
// small-talk goes to the cheap tier, reflective/philosophical turns earn the
// premium tier. Explainable by construction — the sub-scores are returned
// with every decision.

// Intent categories recognized by the router.
const (
	IntentSmallTalk  = "smalltalk"
	IntentEmotional  = "emotional"
	IntentTask       = "task"
	IntentReflective = "reflective"
)

// SemanticFrame carries lightweight analysis of the inbound message.
// Callers may fill it themselves; AnalyzeFrame derives it from raw text.
type SemanticFrame struct {
	SelfReference bool     `json:"self_reference"` // message is about the speaker or the agent itself
	Abstract      bool     `json:"abstract"`       // meaning/existence/identity register
	Topics        []string `json:"topics,omitempty"`
}

// RouteScores are the four independent sub-scores, each in [0,1].
type RouteScores struct {
	Abstraction  float64 `json:"abstraction"`
	ContextDepth float64 `json:"context_depth"`
	Length       float64 `json:"length"`
	Intent       float64 `json:"intent"`
}

// RouteDecision is the selected generation tier plus its rationale.
type RouteDecision struct {
	Model       string      `json:"model"`
	Temperature float64     `json:"temperature"`
	MaxTokens   int         `json:"max_tokens"`
	Load        float64     `json:"load"`
	Scores      RouteScores `json:"scores"`
}

// ModelTier binds a model name to its generation settings.
type ModelTier struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// RouterConfig controls scoring weights and tier cut points.
type RouterConfig struct {
	Cheap   ModelTier
	Mid     ModelTier
	Premium ModelTier

	MidCut     float64 // load >= MidCut selects Mid
	PremiumCut float64 // load >= PremiumCut selects Premium

	WeightAbstraction  float64
	WeightContextDepth float64
	WeightLength       float64
	WeightIntent       float64
}

// DefaultRouterConfig returns production defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		Cheap:      ModelTier{Model: "gpt-4o-mini", Temperature: 0.8, MaxTokens: 256},
		Mid:        ModelTier{Model: "gpt-4o", Temperature: 0.7, MaxTokens: 512},
		Premium:    ModelTier{Model: "gpt-4.1", Temperature: 0.6, MaxTokens: 1024},
		MidCut:     0.35,
		PremiumCut: 0.65,

		WeightAbstraction:  0.35,
		WeightContextDepth: 0.25,
		WeightLength:       0.15,
		WeightIntent:       0.25,
	}
}

// ModelRouter selects a generation tier from estimated cognitive load.
type ModelRouter struct {
	config RouterConfig
}

// NewModelRouter creates a router. Pass a config to override defaults.
func NewModelRouter(config ...RouterConfig) *ModelRouter {
	cfg := DefaultRouterConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	return &ModelRouter{config: cfg}
}

// abstraction markers: identity / meaning / existence register (JA + EN).
var abstractionMarkers = []string{
	"意味", "存在", "生きる", "自分", "心", "意識", "なぜ生き", "本当の",
	"meaning", "existence", "consciousness", "who am i", "why do i", "my purpose",
	"what does it mean", "yourself",
}

var intentWeights = map[string]float64{
	IntentSmallTalk:  0.1,
	IntentTask:       0.4,
	IntentEmotional:  0.6,
	IntentReflective: 0.9,
}

// Select computes the four sub-scores, combines them into a load estimate and
// thresholds it into a tier. Deterministic given identical inputs.
func (r *ModelRouter) Select(message string, frame SemanticFrame, intent string, contextDepth int) RouteDecision {
	scores := RouteScores{
		Abstraction:  abstractionScore(message, frame),
		ContextDepth: clamp01(float64(contextDepth) / 20.0),
		Length:       clamp01(float64(utf8.RuneCountInString(message)) / 240.0),
		Intent:       intentScore(intent),
	}

	cfg := r.config
	load := scores.Abstraction*cfg.WeightAbstraction +
		scores.ContextDepth*cfg.WeightContextDepth +
		scores.Length*cfg.WeightLength +
		scores.Intent*cfg.WeightIntent

	tier := cfg.Cheap
	switch {
	case load >= cfg.PremiumCut:
		tier = cfg.Premium
	case load >= cfg.MidCut:
		tier = cfg.Mid
	}

	return RouteDecision{
		Model:       tier.Model,
		Temperature: tier.Temperature,
		MaxTokens:   tier.MaxTokens,
		Load:        load,
		Scores:      scores,
	}
}

func abstractionScore(message string, frame SemanticFrame) float64 {
	lower := strings.ToLower(message)
	hits := 0
	for _, m := range abstractionMarkers {
		if strings.Contains(lower, m) {
			hits++
		}
	}
	score := float64(hits) * 0.25
	if frame.SelfReference {
		score += 0.2
	}
	if frame.Abstract {
		score += 0.2
	}
	return clamp01(score)
}

func intentScore(intent string) float64 {
	if w, ok := intentWeights[intent]; ok {
		return w
	}
	return intentWeights[IntentSmallTalk]
}

// ClassifyIntent derives a coarse intent category from raw text.
// Keyword heuristic, same register as the trait evolver.
func ClassifyIntent(message string) string {
	lower := strings.ToLower(message)
	switch {
	case matchesAny(lower, []string{
		"意味", "存在", "人生", "生きる理由", "自分って", "本当の私",
		"meaning of", "purpose", "who am i", "what am i", "do you ever think",
	}):
		return IntentReflective
	case matchesAny(lower, []string{
		"不安", "心配", "つらい", "辛い", "悲しい", "寂しい", "さみしい",
		"worried", "anxious", "sad", "lonely", "scared", "depressed",
	}):
		return IntentEmotional
	case matchesAny(lower, []string{
		"教えて", "やり方", "方法", "どうやって", "まとめて",
		"how do i", "how to", "explain", "summarize", "help me with",
	}):
		return IntentTask
	default:
		return IntentSmallTalk
	}
}

// AnalyzeFrame derives a SemanticFrame from raw text.
func AnalyzeFrame(message string) SemanticFrame {
	lower := strings.ToLower(message)
	return SemanticFrame{
		SelfReference: matchesAny(lower, []string{
			"自分", "私は", "僕は", "あなたは", "君は",
			"i am", "i feel", "i think", "you are", "do you",
		}),
		Abstract: matchesAny(lower, []string{
			"意味", "存在", "意識", "本質",
			"meaning", "existence", "consciousness", "essence",
		}),
	}
}
