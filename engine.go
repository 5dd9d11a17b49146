package personacore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.uber.org/atomic"
)

// ──────────────────────────────────────────────
// Engine — the per-turn persona pipeline
// ──────────────────────────────────────────────
//
// Control flow per turn:
//
//	input → TraitEvolver → ModelRouter → generation → SafetyGuardian
//	      → ReflectionEngine → (window ≥ threshold) MetaReflectionEngine
//	      → PersonaStore save + one GrowthLog append
//
// Every external call is wrapped; failures degrade to fixed fallbacks with a
// recorded FallbackKind. The only hard error is an invalid request shape,
// rejected before any stateful work.

// ErrInvalidRequest is returned for malformed input (e.g. empty session ID)
// before any trait mutation occurs.
var ErrInvalidRequest = errors.New("invalid request")

// EngineConfig controls pipeline geometry and retention.
type EngineConfig struct {
	SystemPrompt    string // persona system prompt for the primary reply
	WindowCapacity  int    // rolling reflection window size, default 5
	MetaThreshold   int    // min window fill before meta-reflection, default 3
	HistoryKeepLast int    // per-session rows kept after each save, 0 = unlimited
	GrowthContext   int    // growth-log tail fetched for prompts/routing, default 20
}

// DefaultEngineConfig returns production defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SystemPrompt: "あなたは穏やかで共感的な対話パートナー。短く自然な日本語で応答する。" +
			" (Respond briefly and naturally; mirror the user's language.)",
		WindowCapacity:  DefaultWindowCapacity,
		MetaThreshold:   DefaultMetaThreshold,
		HistoryKeepLast: 500,
		GrowthContext:   20,
	}
}

// EngineStats are process-level counters for observability.
type EngineStats struct {
	Turns           int64 `json:"turns"`
	Fallbacks       int64 `json:"fallbacks"`
	PersistFailures int64 `json:"persist_failures"`
}

// Engine wires the persona pipeline together. All conversation state is
// session-scoped; the Engine itself holds only immutable collaborators and
// counters, so one Engine serves concurrent sessions.
type Engine struct {
	store        PersonaStore
	generate     GenerateFunc
	evolver      *TraitEvolver
	guardian     *SafetyGuardian
	router       *ModelRouter
	reflector    *ReflectionEngine
	introspector *IntrospectionEngine
	meta         *MetaReflectionEngine
	sessions     *SessionRegistry
	config       EngineConfig

	turns           atomic.Int64
	fallbacks       atomic.Int64
	persistFailures atomic.Int64
}

// NewEngine creates an engine over a store and a generation function.
// Pass a config to override defaults.
func NewEngine(store PersonaStore, generate GenerateFunc, config ...EngineConfig) *Engine {
	cfg := DefaultEngineConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.WindowCapacity <= 0 {
		cfg.WindowCapacity = DefaultWindowCapacity
	}
	if cfg.MetaThreshold <= 0 {
		cfg.MetaThreshold = DefaultMetaThreshold
	}
	if cfg.GrowthContext <= 0 {
		cfg.GrowthContext = 20
	}
	return &Engine{
		store:        store,
		generate:     generate,
		evolver:      NewTraitEvolver(),
		guardian:     NewSafetyGuardian(),
		router:       NewModelRouter(),
		reflector:    NewReflectionEngine(generate, GenerateOptions{}),
		introspector: NewIntrospectionEngine(generate, GenerateOptions{}, cfg.MetaThreshold),
		meta:         NewMetaReflectionEngine(generate, GenerateOptions{}, cfg.MetaThreshold),
		sessions:     NewSessionRegistry(cfg.WindowCapacity),
		config:       cfg,
	}
}

// Store exposes the backing PersonaStore for read-side callers.
func (e *Engine) Store() PersonaStore { return e.store }

// Sessions exposes the session registry.
func (e *Engine) Sessions() *SessionRegistry { return e.sessions }

// Stats returns the engine counters.
func (e *Engine) Stats() EngineStats {
	return EngineStats{
		Turns:           e.turns.Load(),
		Fallbacks:       e.fallbacks.Load(),
		PersistFailures: e.persistFailures.Load(),
	}
}

// Turn processes one inbound message end to end and returns the best-effort
// envelope. The returned error is non-nil only for invalid request shape.
func (e *Engine) Turn(ctx context.Context, sessionID, userText string) (*TurnResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidRequest)
	}
	e.turns.Inc()

	sess := e.sessions.Resolve(sessionID)
	sess.Lock()
	defer sess.Unlock()

	result := &TurnResult{}

	// 1. Resolve prior state. The store is the source of truth; a read
	// failure means "no persona yet", never a failed turn.
	prev := DefaultTraits()
	prevGrowth := 0.0
	prevMeta := ""
	if rec, err := e.store.LoadLatest(ctx, sessionID); err == nil {
		prev = rec.Traits.Clamped()
		prevGrowth = rec.Growth
		prevMeta = rec.MetaSummary
	} else if !errors.Is(err, ErrNotFound) {
		log.Printf("[Engine] load persona %s failed, using defaults: %v", sessionID, err)
	}

	// 2. Trait evolution.
	traits := e.evolver.Evolve(prev, userText)
	result.Traits = traits

	growthTail, err := e.store.GrowthLog(ctx, sessionID, e.config.GrowthContext)
	if err != nil {
		log.Printf("[Engine] growth log read failed for %s: %v", sessionID, err)
		growthTail = nil
	}

	// 3. Tier selection.
	route := e.router.Select(userText, AnalyzeFrame(userText), ClassifyIntent(userText), len(growthTail))
	result.Route = route

	// 4. Primary reply.
	reply, err := e.generate(ctx, e.systemPromptFor(traits),
		[]ChatMessage{{Role: "user", Content: userText}},
		GenerateOptions{Model: route.Model, Temperature: route.Temperature, MaxTokens: route.MaxTokens})
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			log.Printf("[Engine] generation failed for %s: %v", sessionID, err)
		}
		reply = GenerationFallbackReply
		result.Fallbacks = append(result.Fallbacks, FallbackGeneration)
		e.fallbacks.Inc()
	}

	// 5. Output moderation, hard post-filter.
	result.Safety = e.guardian.Moderate(reply)
	result.Reply = result.Safety.SafeText

	// 6. Reflection (best effort).
	reflection, rkind := e.reflector.Reflect(ctx, sess.Window, growthTail,
		[]Exchange{{User: userText, AI: result.Reply}}, traits)
	result.Reflection = reflection
	if rkind != FallbackNone {
		result.Fallbacks = append(result.Fallbacks, rkind)
		e.fallbacks.Inc()
	}

	// 7. Meta-reflection, gated on window fill.
	metaReport, mkind := e.meta.Summarize(ctx, sess.Window.Entries(), traits)
	if mkind != FallbackNone {
		result.Fallbacks = append(result.Fallbacks, mkind)
		e.fallbacks.Inc()
	}
	metaSummary := prevMeta
	if !metaReport.Skipped && metaReport.Summary != "" {
		metaSummary = metaReport.Summary
	}
	result.MetaSummary = metaSummary

	// 8. Persist: one record row plus one flat growth entry. A write
	// failure is surfaced as a secondary field; the reply above stands.
	now := time.Now()
	rec := &PersonaRecord{
		SessionID:   sessionID,
		Traits:      traits,
		Reflection:  reflection,
		MetaSummary: metaSummary,
		Growth:      prevGrowth + metaReport.GrowthAdjustment,
		CreatedAt:   now,
	}
	if err := e.persistTurn(ctx, rec, NewGrowthLogEntry(sessionID, traits, prev, now)); err != nil {
		result.PersistError = err.Error()
		result.Fallbacks = append(result.Fallbacks, FallbackPersist)
		e.persistFailures.Inc()
	}

	return result, nil
}

func (e *Engine) persistTurn(ctx context.Context, rec *PersonaRecord, entry GrowthLogEntry) error {
	if err := e.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("save persona: %w", err)
	}
	if err := e.store.AppendGrowth(ctx, entry); err != nil {
		return fmt.Errorf("append growth log: %w", err)
	}
	if e.config.HistoryKeepLast > 0 {
		if err := e.store.PruneHistory(ctx, rec.SessionID, e.config.HistoryKeepLast); err != nil {
			// Retention is advisory; stale rows are not a turn failure.
			log.Printf("[Engine] prune history for %s failed: %v", rec.SessionID, err)
		}
	}
	return nil
}

// ReflectNow runs the on-demand self-report pipeline: one fresh reflection,
// then introspection and meta-reflection fanned out concurrently over the
// window and joined before responding. Nothing is persisted.
func (e *Engine) ReflectNow(ctx context.Context, sessionID string, growth []GrowthLogEntry, recent []Exchange) (*ReflectNowResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidRequest)
	}

	sess := e.sessions.Resolve(sessionID)
	sess.Lock()
	defer sess.Unlock()

	traits, _, err := sess.LoadTraits(ctx, e.store)
	if err != nil {
		log.Printf("[Engine] load persona %s failed, using defaults: %v", sessionID, err)
	}

	if len(growth) == 0 {
		if tail, err := e.store.GrowthLog(ctx, sessionID, e.config.GrowthContext); err == nil {
			growth = tail
		}
	}

	result := &ReflectNowResult{Traits: traits}

	reflection, rkind := e.reflector.Reflect(ctx, sess.Window, growth, recent, traits)
	result.Reflection = reflection
	if rkind != FallbackNone {
		result.Fallbacks = append(result.Fallbacks, rkind)
		e.fallbacks.Inc()
	}

	// Fan out the two second-order summaries; they share no mutable state
	// and are joined before the response, so completion order is free.
	entries := sess.Window.Entries()

	type introOut struct {
		report IntrospectionReport
		kind   FallbackKind
	}
	type metaOut struct {
		report MetaReport
		kind   FallbackKind
	}
	introCh := make(chan introOut, 1)
	metaCh := make(chan metaOut, 1)
	go func() {
		report, kind := e.introspector.Summarize(ctx, entries, traits)
		introCh <- introOut{report: report, kind: kind}
	}()
	go func() {
		report, kind := e.meta.Summarize(ctx, entries, traits)
		metaCh <- metaOut{report: report, kind: kind}
	}()

	intro := <-introCh
	meta := <-metaCh

	result.Introspection = intro.report
	result.MetaSummary = meta.report.Summary
	for _, kind := range []FallbackKind{intro.kind, meta.kind} {
		if kind != FallbackNone {
			result.Fallbacks = append(result.Fallbacks, kind)
			e.fallbacks.Inc()
		}
	}

	result.Safety = e.guardian.Moderate(result.Reflection)
	result.Reflection = result.Safety.SafeText

	return result, nil
}

func (e *Engine) systemPromptFor(traits TraitVector) string {
	return fmt.Sprintf("%s\n現在の内面状態: calm=%.2f empathy=%.2f curiosity=%.2f",
		e.config.SystemPrompt, traits.Calm, traits.Empathy, traits.Curiosity)
}
