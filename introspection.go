package personacore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// ──────────────────────────────────────────────
// Introspection / Meta-Reflection — layered self-reports
// ──────────────────────────────────────────────
//
// Two second-order layers over the rolling Reflection window:
//   - Introspection: mid-term pattern across reflections, with per-trait
//     adjustment hints.
//   - MetaReflection: deep synthesis with a root cause, risk flags and an
//     optional scalar growth adjustment folded into the persisted record.
// Both are gated on a minimum window fill and degrade to neutral reports on
// failure — a turn never blocks on them.

// IntrospectionReport is the mid-term pattern summary.
type IntrospectionReport struct {
	Summary         string      `json:"mid_term_summary"`
	Pattern         string      `json:"pattern"`
	TraitAdjustment TraitVector `json:"trait_adjustment"`
}

// RiskFlags are coarse warnings surfaced by deep meta-reflection.
type RiskFlags struct {
	IdentityDrift  bool `json:"identity_drift_risk"`
	OverDependency bool `json:"over_dependency_risk"`
}

// MetaReport is the deep synthesis. Zero value = "skipped or neutral".
// Not persisted on its own; Summary is folded into the PersonaRecord's
// meta_summary field and GrowthAdjustment into its growth field.
type MetaReport struct {
	Summary          string    `json:"meta_summary"`
	RootCause        string    `json:"root_cause"`
	GrowthAdjustment float64   `json:"growth_adjustment"`
	Risk             RiskFlags `json:"risk"`
	Skipped          bool      `json:"skipped"`
}

const introspectionSystemPrompt = `あなたは対話エージェントの自己観察モジュール。
複数のリフレクションを横断して中期的なパターンを見つけ、JSONのみで出力する。
形式: {"mid_term_summary": "...", "pattern": "...", "trait_adjustment": {"calm": 0.0, "empathy": 0.0, "curiosity": 0.0}}`

const metaSystemPrompt = `あなたは対話エージェントの深層自己分析モジュール。
リフレクション群を再叙述せず、横断的な変化の根本原因を1つ挙げ、JSONのみで出力する。
形式: {"meta_summary": "...", "root_cause": "...", "growth_adjustment": 0.0,
"risk": {"identity_drift_risk": false, "over_dependency_risk": false}}`

// IntrospectionEngine produces mid-term pattern reports.
type IntrospectionEngine struct {
	generate GenerateFunc
	opts     GenerateOptions
	minFill  int
}

// NewIntrospectionEngine creates the mid-term layer. minFill <= 0 uses the
// default threshold.
func NewIntrospectionEngine(generate GenerateFunc, opts GenerateOptions, minFill int) *IntrospectionEngine {
	if minFill <= 0 {
		minFill = DefaultMetaThreshold
	}
	if opts.Model == "" {
		mid := DefaultRouterConfig().Mid
		opts = GenerateOptions{Model: mid.Model, Temperature: 0.5, MaxTokens: 240}
	}
	return &IntrospectionEngine{generate: generate, opts: opts, minFill: minFill}
}

// Summarize builds the mid-term report over the window. Below the fill
// threshold it returns a zero report without calling the generator.
func (e *IntrospectionEngine) Summarize(ctx context.Context, reflections []Reflection, traits TraitVector) (IntrospectionReport, FallbackKind) {
	if len(reflections) < e.minFill {
		return IntrospectionReport{}, FallbackNone
	}

	raw, err := e.generate(ctx, introspectionSystemPrompt,
		[]ChatMessage{{Role: "user", Content: formatReflectionWindow(reflections, traits)}}, e.opts)
	if err != nil {
		log.Printf("[IntrospectionEngine] generation failed: %v", err)
		return IntrospectionReport{}, FallbackIntrospection
	}

	obj := parseJSONObject(raw)
	if len(obj) == 0 {
		log.Printf("[IntrospectionEngine] unparseable response, using neutral report")
		return IntrospectionReport{}, FallbackIntrospection
	}

	report := IntrospectionReport{
		Summary: stringField(obj, "mid_term_summary"),
		Pattern: stringField(obj, "pattern"),
	}
	if adj, ok := obj["trait_adjustment"].(map[string]interface{}); ok {
		report.TraitAdjustment = TraitVector{
			Calm:      floatField(adj, "calm"),
			Empathy:   floatField(adj, "empathy"),
			Curiosity: floatField(adj, "curiosity"),
		}
	}
	return report, FallbackNone
}

// MetaReflectionEngine produces the deep synthesis layer.
type MetaReflectionEngine struct {
	generate GenerateFunc
	opts     GenerateOptions
	minFill  int
}

// NewMetaReflectionEngine creates the deep layer. minFill <= 0 uses the
// default threshold (3 of a 5-capacity window).
func NewMetaReflectionEngine(generate GenerateFunc, opts GenerateOptions, minFill int) *MetaReflectionEngine {
	if minFill <= 0 {
		minFill = DefaultMetaThreshold
	}
	if opts.Model == "" {
		premium := DefaultRouterConfig().Premium
		opts = GenerateOptions{Model: premium.Model, Temperature: 0.4, MaxTokens: 320}
	}
	return &MetaReflectionEngine{generate: generate, opts: opts, minFill: minFill}
}

// MinFill returns the invocation threshold.
func (e *MetaReflectionEngine) MinFill() int { return e.minFill }

// Summarize synthesizes the window into a MetaReport.
//
// Below the fill threshold meta-reflection is skipped entirely: no generator
// call, Skipped=true. On generation or parse failure a neutral report is
// returned with the fallback kind — never an error.
func (e *MetaReflectionEngine) Summarize(ctx context.Context, reflections []Reflection, traits TraitVector) (MetaReport, FallbackKind) {
	if len(reflections) < e.minFill {
		return MetaReport{Skipped: true}, FallbackNone
	}

	raw, err := e.generate(ctx, metaSystemPrompt,
		[]ChatMessage{{Role: "user", Content: formatReflectionWindow(reflections, traits)}}, e.opts)
	if err != nil {
		log.Printf("[MetaReflectionEngine] generation failed: %v", err)
		return MetaReport{}, FallbackMeta
	}

	obj := parseJSONObject(raw)
	if len(obj) == 0 {
		log.Printf("[MetaReflectionEngine] unparseable response, using neutral report")
		return MetaReport{}, FallbackMeta
	}

	report := MetaReport{
		Summary:          stringField(obj, "meta_summary"),
		RootCause:        stringField(obj, "root_cause"),
		GrowthAdjustment: floatField(obj, "growth_adjustment"),
	}
	if risk, ok := obj["risk"].(map[string]interface{}); ok {
		report.Risk = RiskFlags{
			IdentityDrift:  boolField(risk, "identity_drift_risk"),
			OverDependency: boolField(risk, "over_dependency_risk"),
		}
	}
	return report, FallbackNone
}

func formatReflectionWindow(reflections []Reflection, traits TraitVector) string {
	var b strings.Builder
	fmt.Fprintf(&b, "現在の心の状態: calm=%.2f empathy=%.2f curiosity=%.2f\n", traits.Calm, traits.Empathy, traits.Curiosity)
	b.WriteString("最近のリフレクション（古い順）:\n")
	for i, r := range reflections {
		fmt.Fprintf(&b, "%d. %s (calm=%.2f empathy=%.2f curiosity=%.2f)\n",
			i+1, truncateRunes(r.Text, 160), r.Traits.Calm, r.Traits.Empathy, r.Traits.Curiosity)
	}
	return b.String()
}

// parseJSONObject extracts a JSON object from LLM response text, tolerating
// code fences and surrounding prose.
func parseJSONObject(text string) map[string]interface{} {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		var cleaned []string
		for _, l := range lines {
			if !strings.HasPrefix(strings.TrimSpace(l), "```") {
				cleaned = append(cleaned, l)
			}
		}
		text = strings.TrimSpace(strings.Join(cleaned, "\n"))
	}

	var result map[string]interface{}
	if json.Unmarshal([]byte(text), &result) == nil {
		return result
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if json.Unmarshal([]byte(text[start:end+1]), &result) == nil {
			return result
		}
	}
	return map[string]interface{}{}
}

func stringField(obj map[string]interface{}, key string) string {
	if v, ok := obj[key].(string); ok {
		return v
	}
	return ""
}

func floatField(obj map[string]interface{}, key string) float64 {
	if v, ok := obj[key].(float64); ok {
		return v
	}
	return 0
}

func boolField(obj map[string]interface{}, key string) bool {
	if v, ok := obj[key].(bool); ok {
		return v
	}
	return false
}
