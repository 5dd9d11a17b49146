package personacore

import (
	"context"
	"fmt"
	"strings"
)

// ──────────────────────────────────────────────
// Generation — pluggable external text service
// ──────────────────────────────────────────────

// ChatMessage is one turn of dialogue passed to the generation service.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// GenerateOptions selects the generation tier for a single call.
type GenerateOptions struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// GenerateFunc is the signature for calling the external text-generation
// service. The engine treats the returned text as opaque; failures are
// recovered locally, never propagated to the end user.
type GenerateFunc func(ctx context.Context, systemPrompt string, messages []ChatMessage, opts GenerateOptions) (string, error)

// DummyGenerator returns a deterministic offline GenerateFunc.
//
// Used when no generation endpoint is configured, and as the test double.
// The reply echoes the model tier so routing stays observable offline.
func DummyGenerator() GenerateFunc {
	return func(_ context.Context, _ string, messages []ChatMessage, opts GenerateOptions) (string, error) {
		last := ""
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Role == "user" {
				last = messages[i].Content
				break
			}
		}
		last = strings.TrimSpace(last)
		if last == "" {
			return fmt.Sprintf("[dummy:%s] ……うん、そばにいるよ。", opts.Model), nil
		}
		return fmt.Sprintf("[dummy:%s] なるほど、「%s」について考えていたんだね。", opts.Model, truncateRunes(last, 40)), nil
	}
}

// FixedGenerator always returns the given text. Test helper.
func FixedGenerator(text string) GenerateFunc {
	return func(context.Context, string, []ChatMessage, GenerateOptions) (string, error) {
		return text, nil
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
