// Package history implements the standalone History Compactor (C12): a
// message-list form of compaction usable outside a session-backed run —
// for a host that wants to check and compact an arbitrary conversation
// history (e.g. one assembled for a raw completion call) without going
// through the Compaction Engine's (C6) live, session-owning event stream.
//
// Grounded directly on
// original_source/src/streetrace/dsl/runtime/history_compactor.py, read in
// full: the same 80%-of-context-window trigger, the same
// keep-first-plus-fit-recent truncation and
// summarize-middle-keep-first-and-recent summarization, and the same
// should_compact/compact/count_tokens public surface, adapted from Python's
// role/content message dicts to a small Message struct and from litellm's
// model-info lookup (no Go analogue exists anywhere in the example corpus)
// to an injectable ContextWindowLookup function.
package history

import (
	"context"

	"github.com/streetrace-ai/streetrace-go/runtime/compaction"
	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
)

const (
	// CompactionThreshold triggers compaction once history reaches this
	// fraction of the model's context window.
	CompactionThreshold = 0.80
	// TargetRatio is the fraction of the context window compaction aims to
	// leave history at — lower than CompactionThreshold so a turn doesn't
	// immediately re-trigger compaction afterward.
	TargetRatio = 0.50
	// DefaultContextWindow is used when no explicit max and no
	// ContextWindowLookup entry resolves a model.
	DefaultContextWindow = compaction.DefaultContextWindow
	// MinimumRecentMessages is the message count at or below which
	// compaction never runs: a history this short is never worth compacting.
	MinimumRecentMessages = 4
)

// Message is the role/content message-list form this package compacts,
// mirroring the reference implementation's plain dict[str, object]
// messages (role, content) rather than this runtime's richer
// session/model.Event.
type Message struct {
	Role    string
	Content string
}

// Result reports what a Compact call did.
type Result struct {
	Messages        []Message
	OriginalTokens  int
	CompactedTokens int
	MessagesRemoved int
}

// TokenCounter estimates the token cost of a message list for a given
// model. The default, EstimateTokens, is stdlib len/4 — the same fallback
// spec.md §4.4 names for C6, since no tokenizer library appears anywhere in
// the example corpus.
type TokenCounter func(messages []Message, model string) int

// EstimateTokens is the default TokenCounter: len(content)/4 summed over
// every message, matching compaction.EstimateEventTokens's fallback
// estimator.
func EstimateTokens(messages []Message, _ string) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content) / 4
	}
	return total
}

// ContextWindowLookup resolves a model identifier to its context window
// size, or (0, false) if unknown. Compactor falls back to
// DefaultContextWindow when no lookup is configured or none resolves.
type ContextWindowLookup func(model string) (int, bool)

// Strategy compacts a message list to fit within targetTokens.
type Strategy interface {
	Compact(ctx context.Context, messages []Message, targetTokens int, model string) ([]Message, error)
}

// Summarizer produces a natural-language summary of rendered conversation
// text. Reuses compaction.Summarizer's shape (a narrow closure, typically
// backed by an llm.Client call) rather than redefining an identical type.
type Summarizer = compaction.Summarizer

// Compactor checks whether a message list needs compacting and applies the
// configured Strategy when it does — the reference implementation's
// HistoryCompactor class.
type Compactor struct {
	Strategy    Strategy
	Counter     TokenCounter
	ContextSize ContextWindowLookup
}

// NewTruncating builds a Compactor using TruncateStrategy, the default when
// the reference implementation's strategy=="truncate" (its own default).
func NewTruncating() *Compactor {
	return &Compactor{Strategy: TruncateStrategy{}}
}

// NewSummarizing builds a Compactor using SummarizeStrategy backed by
// summarizer. A nil summarizer falls back to truncation, matching the
// reference implementation's "no llm_client provided" behavior.
func NewSummarizing(summarizer Summarizer) *Compactor {
	return &Compactor{Strategy: SummarizeStrategy{Summarizer: summarizer}}
}

func (c *Compactor) counter() TokenCounter {
	if c.Counter != nil {
		return c.Counter
	}
	return EstimateTokens
}

// contextWindow resolves the context window per the reference
// implementation's priority: explicit maxInputTokens first, then a
// configured lookup, then DefaultContextWindow.
func (c *Compactor) contextWindow(modelID string, maxInputTokens *int) int {
	if maxInputTokens != nil && *maxInputTokens > 0 {
		return *maxInputTokens
	}
	if c.ContextSize != nil {
		if w, ok := c.ContextSize(modelID); ok && w > 0 {
			return w
		}
	}
	return DefaultContextWindow
}

// ShouldCompact reports whether messages' token count has reached
// CompactionThreshold of the resolved context window.
func (c *Compactor) ShouldCompact(messages []Message, modelID string, maxInputTokens *int) bool {
	current := c.counter()(messages, modelID)
	window := c.contextWindow(modelID, maxInputTokens)
	threshold := int(float64(window) * CompactionThreshold)
	return current >= threshold
}

// Compact applies the configured Strategy, targeting TargetRatio of the
// resolved context window.
func (c *Compactor) Compact(ctx context.Context, messages []Message, modelID string, maxInputTokens *int) (Result, error) {
	counter := c.counter()
	originalTokens := counter(messages, modelID)
	window := c.contextWindow(modelID, maxInputTokens)
	targetTokens := int(float64(window) * TargetRatio)

	compacted, err := c.Strategy.Compact(ctx, messages, targetTokens, modelID)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Messages:        compacted,
		OriginalTokens:  originalTokens,
		CompactedTokens: counter(compacted, modelID),
		MessagesRemoved: len(messages) - len(compacted),
	}, nil
}

// CountTokens exposes the configured TokenCounter directly.
func (c *Compactor) CountTokens(messages []Message, modelID string) int {
	return c.counter()(messages, modelID)
}

// ExtractMessages converts a session's events into the message-list form
// this package compacts: one message per event that has text content,
// author "user" mapped to role "user" and anything else to role
// "assistant", mirroring extract_messages_from_events.
func ExtractMessages(events []model.Event) []Message {
	var messages []Message
	for _, e := range events {
		if !e.HasContent() || e.IsFlowNotice() {
			continue
		}
		text := e.Text()
		if text == "" {
			continue
		}
		role := "assistant"
		if e.Author == "user" {
			role = "user"
		}
		messages = append(messages, Message{Role: role, Content: text})
	}
	return messages
}
