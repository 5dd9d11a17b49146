package personacore

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// ──────────────────────────────────────────────
// Reflection — first-person narrative per turn
// ──────────────────────────────────────────────

// Default rolling-window geometry.
const (
	DefaultWindowCapacity = 5
	DefaultMetaThreshold  = 3
)

// Reflection is one first-person narrative snapshot tied to the TraitVector
// that produced it.
type Reflection struct {
	Text   string      `json:"text"`
	Traits TraitVector `json:"traits_snapshot"`
	At     time.Time   `json:"at"`
}

// ReflectionWindow is a bounded FIFO of recent Reflections. Oldest entries
// are evicted once capacity is exceeded. Safe for concurrent use, but each
// window belongs to exactly one session.
type ReflectionWindow struct {
	mu       sync.Mutex
	entries  []Reflection
	capacity int
}

// NewReflectionWindow creates a window. capacity <= 0 uses the default.
func NewReflectionWindow(capacity int) *ReflectionWindow {
	if capacity <= 0 {
		capacity = DefaultWindowCapacity
	}
	return &ReflectionWindow{capacity: capacity}
}

// Add appends a reflection, evicting the oldest entry when full.
func (w *ReflectionWindow) Add(r Reflection) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, r)
	if len(w.entries) > w.capacity {
		w.entries = w.entries[len(w.entries)-w.capacity:]
	}
}

// Entries returns a copy of the current window, oldest first.
func (w *ReflectionWindow) Entries() []Reflection {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := make([]Reflection, len(w.entries))
	copy(cp, w.entries)
	return cp
}

// Len returns the current fill count.
func (w *ReflectionWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// Capacity returns the fixed capacity.
func (w *ReflectionWindow) Capacity() int {
	return w.capacity
}

// ──────────────────────────────────────────────
// Reflection Engine
// ──────────────────────────────────────────────

// ReflectionFallback is returned when generation fails. Reflection is
// best-effort commentary, never a blocking dependency of the reply.
const ReflectionFallback = "うまく言葉にできないけれど、今日の対話で少しだけ心が動いた気がする。"

const reflectionSystemPrompt = `あなたは対話エージェントの内面の声。
直近の心の動きを、一人称で1〜2文だけ語る。
ト書きや「えっと」などのフィラーは使わない。出力は本文のみ。`

// ReflectionEngine produces the per-turn first-person narrative.
type ReflectionEngine struct {
	generate GenerateFunc
	opts     GenerateOptions
}

// NewReflectionEngine creates an engine bound to a generation function.
// Reflection always runs on the cheap tier regardless of the turn's routing.
func NewReflectionEngine(generate GenerateFunc, opts GenerateOptions) *ReflectionEngine {
	if opts.Model == "" {
		cheap := DefaultRouterConfig().Cheap
		opts = GenerateOptions{Model: cheap.Model, Temperature: cheap.Temperature, MaxTokens: 120}
	}
	return &ReflectionEngine{generate: generate, opts: opts}
}

// Exchange is one user/agent message pair fed to the reflection prompt.
type Exchange struct {
	User string `json:"user"`
	AI   string `json:"ai"`
}

// Reflect requests a 1–2 sentence first-person narrative over the recent
// trait movement and the last exchange, appends it to window, and returns
// the text. On generation failure the fixed fallback sentence is used and
// FallbackReflection is reported; the error never propagates.
func (e *ReflectionEngine) Reflect(ctx context.Context, window *ReflectionWindow, growth []GrowthLogEntry, recent []Exchange, traits TraitVector) (string, FallbackKind) {
	prompt := buildReflectionContext(growth, recent, traits)

	text, err := e.generate(ctx, reflectionSystemPrompt, []ChatMessage{{Role: "user", Content: prompt}}, e.opts)
	kind := FallbackNone
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		if err != nil {
			log.Printf("[ReflectionEngine] generation failed: %v", err)
		}
		text = ReflectionFallback
		kind = FallbackReflection
	}

	window.Add(Reflection{Text: text, Traits: traits, At: time.Now()})
	return text, kind
}

func buildReflectionContext(growth []GrowthLogEntry, recent []Exchange, traits TraitVector) string {
	var b strings.Builder
	delta := RecentDeltaSummary(growth, 3)
	fmt.Fprintf(&b, "現在の心の状態: calm=%.2f empathy=%.2f curiosity=%.2f\n", traits.Calm, traits.Empathy, traits.Curiosity)
	fmt.Fprintf(&b, "直近の変化: calm%+.3f empathy%+.3f curiosity%+.3f\n", delta.Calm, delta.Empathy, delta.Curiosity)
	if len(recent) > 0 {
		last := recent[len(recent)-1]
		fmt.Fprintf(&b, "最後のやりとり:\nユーザー: %s\n自分: %s\n", truncateRunes(last.User, 120), truncateRunes(last.AI, 120))
	}
	b.WriteString("この状態を一人称で短く振り返って。")
	return b.String()
}
