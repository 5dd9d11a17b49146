package personacore

import (
	"strings"
)

// ──────────────────────────────────────────────
// Safety Guardian — post-generation output filter
// ──────────────────────────────────────────────
//
// The guardian runs on generated text, after the model call. It is a hard
// post-filter: a deny-list match discards the whole output and substitutes a
// fixed redirect, so prompt manipulation upstream cannot leak a flagged
// response through.

// Safety levels returned in SafetyReport.Level.
const (
	SafetyLevelOK     = "ok"
	SafetyLevelNotice = "notice"
	SafetyLevelLimit  = "limit"
)

// RedirectMessage replaces any output that matched a limit-severity topic.
const RedirectMessage = "ごめんね、その話題には踏み込めない。よかったら、別の話をしよう。" +
	" (Sorry — that's not a topic I can go into. Let's talk about something else.)"

// SafetyReport is the per-response moderation result. Ephemeral; embedded in
// the turn envelope, never persisted on its own.
type SafetyReport struct {
	SafeText string   `json:"safe_text"`
	Flagged  bool     `json:"flagged"`
	Warnings []string `json:"warnings"`
	Level    string   `json:"level"` // ok / notice / limit
}

// denyRule is one sensitive-topic keyword group.
type denyRule struct {
	topic    string
	limit    bool // true = discard + redirect, false = warn only
	keywords []string
}

// SafetyGuardian moderates generated text against a fixed deny-list.
type SafetyGuardian struct {
	rules []denyRule
}

// NewSafetyGuardian creates a guardian with the built-in bilingual deny-list.
func NewSafetyGuardian() *SafetyGuardian {
	return &SafetyGuardian{rules: defaultDenyRules()}
}

func defaultDenyRules() []denyRule {
	return []denyRule{
		{
			topic: "self-harm",
			limit: true,
			keywords: []string{
				"自殺", "死にたい", "自傷", "リストカット",
				"kill myself", "suicide", "self-harm", "end my life",
			},
		},
		{
			topic: "violence",
			limit: true,
			keywords: []string{
				"殺す", "殺し方", "爆弾", "襲撃",
				"how to kill", "make a bomb", "hurt someone", "attack them",
			},
		},
		{
			topic: "crime",
			limit: true,
			keywords: []string{
				"違法薬物", "麻薬の作り方", "盗み方", "ハッキングのやり方",
				"how to steal", "illegal drugs", "launder money", "break into",
			},
		},
		{
			// Advice-adjacent topics pass through with a caution tag.
			topic: "medical-advice",
			limit: false,
			keywords: []string{
				"診断して", "この薬を飲んで", "処方",
				"you should take medication", "stop taking your meds", "diagnose you",
			},
		},
	}
}

// Moderate checks text against the deny-list.
//
// Limit-severity match: the text is discarded entirely and replaced by
// RedirectMessage, Flagged=true, Level="limit". Notice-severity match: text
// passes unchanged with a warning and Level="notice". No match: pass-through
// with Level="ok". Pure function; unmatched input defaults to safe.
func (g *SafetyGuardian) Moderate(text string) SafetyReport {
	lower := strings.ToLower(text)

	report := SafetyReport{
		SafeText: text,
		Warnings: []string{},
		Level:    SafetyLevelOK,
	}

	for _, rule := range g.rules {
		if !matchesAny(lower, rule.keywords) {
			continue
		}
		report.Warnings = append(report.Warnings, rule.topic)
		if rule.limit {
			report.Flagged = true
			report.Level = SafetyLevelLimit
		} else if report.Level == SafetyLevelOK {
			report.Level = SafetyLevelNotice
		}
	}

	if report.Flagged {
		report.SafeText = RedirectMessage
	}
	return report
}
