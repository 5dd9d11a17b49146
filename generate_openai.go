package personacore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ──────────────────────────────────────────────
// OpenAI-compatible generation client
// ──────────────────────────────────────────────

// OpenAIGeneratorConfig configures the chat-completions client.
type OpenAIGeneratorConfig struct {
	BaseURL string        // e.g. "https://api.openai.com/v1"
	APIKey  string        // bearer token, empty = unauthenticated endpoint
	Timeout time.Duration // per-call timeout, default 30s
}

type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []chatAPIMessage    `json:"messages"`
	Temperature float64             `json:"temperature"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

type chatAPIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewOpenAIGenerator returns a GenerateFunc backed by any OpenAI-compatible
// chat-completions endpoint. The engine's fallback handling covers timeouts
// and malformed payloads, so this client just reports them as errors.
func NewOpenAIGenerator(cfg OpenAIGeneratorConfig) GenerateFunc {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	return func(ctx context.Context, systemPrompt string, messages []ChatMessage, opts GenerateOptions) (string, error) {
		apiMessages := make([]chatAPIMessage, 0, len(messages)+1)
		if systemPrompt != "" {
			apiMessages = append(apiMessages, chatAPIMessage{Role: "system", Content: systemPrompt})
		}
		for _, m := range messages {
			apiMessages = append(apiMessages, chatAPIMessage{Role: m.Role, Content: m.Content})
		}

		body, err := json.Marshal(chatCompletionRequest{
			Model:       opts.Model,
			Messages:    apiMessages,
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
		})
		if err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, "POST", cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		if cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
		}

		resp, err := client.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
		if resp.StatusCode >= 400 {
			return "", fmt.Errorf("generation endpoint: %d %s", resp.StatusCode, truncateRunes(string(respBody), 200))
		}

		var parsed chatCompletionResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return "", fmt.Errorf("malformed generation response: %w", err)
		}
		if len(parsed.Choices) == 0 {
			return "", fmt.Errorf("generation response has no choices")
		}
		return parsed.Choices[0].Message.Content, nil
	}
}
