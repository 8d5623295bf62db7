// Package compaction keeps a running session within a model's context
// window during a multi-step agent turn. It tracks token usage as events
// are produced, and when a configured threshold is crossed (and no tool
// call is awaiting its result) aborts the in-flight stream, compacts the
// session via a pluggable Strategy, and restarts the run from a minimal
// continuation message.
//
// Grounded on original_source/.../dsl/runtime/compacting_runner.py's
// CompactingRunner: the same threshold/running-token accounting, the same
// truncate/summarize strategies, and the same "never compact mid tool-call"
// invariant, adapted from an ADK-Runner async generator wrapper into a Go
// channel-based producer/consumer (spec.md §9's explicit guidance).
package compaction

import (
	"strings"

	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
)

const (
	// DefaultThresholdRatio is the fraction of the context window at which
	// compaction triggers when a Strategy doesn't override it.
	DefaultThresholdRatio = 0.80
	// DefaultContextWindow is used when no explicit MaxTokens is configured.
	// Runner does not look up a context window by model identifier.
	DefaultContextWindow = 128_000
	// summaryTextMaxLen truncates any single event's text before handing it
	// to the summarizer, so one oversized event can't blow the prompt.
	summaryTextMaxLen = 2000
)

// TokenEstimator estimates the token cost of an event for a given model,
// used only for events that lack authoritative usage_metadata (pre-existing
// session events at the start of a run, or after a compaction).
type TokenEstimator func(e model.Event, modelID string) int

// EstimateEventTokens is the default TokenEstimator: it falls back to
// len(text)/4 over the event's rendered text, matching spec.md §4.4's
// fallback estimator (a model-aware tokenizer can be substituted by
// supplying a different TokenEstimator to Runner).
func EstimateEventTokens(e model.Event, modelID string) int {
	text := renderEventText(e)
	if text == "" {
		return 0
	}
	return len(text) / 4
}

// renderEventText approximates the content an LLM tokenizer would see for
// an event: concatenated text parts, plus a short marker for tool calls and
// results (mirroring the Python source's estimate_event_tokens).
func renderEventText(e model.Event) string {
	var sb strings.Builder
	for _, p := range e.Content {
		switch v := p.(type) {
		case model.TextPart:
			sb.WriteString(v.Text)
		case model.FunctionCallPart:
			sb.WriteString("function_call: ")
			sb.WriteString(v.Name)
		case model.FunctionResponsePart:
			sb.WriteString("function_response: ")
			sb.WriteString(v.Name)
		}
	}
	return sb.String()
}

// eventTokenCount returns the authoritative usage_metadata total when
// present, otherwise falls back to estimator.
func eventTokenCount(e model.Event, modelID string, estimator TokenEstimator) int {
	if e.UsageMetadata != nil {
		if total := e.UsageMetadata.TotalOrDerived(); total > 0 {
			return total
		}
	}
	return estimator(e, modelID)
}

// estimateSessionTokens sums estimator over every event in the session;
// used to forecast the running count at the start of a run and right after
// a compaction, when events have no fresh usage_metadata to trust.
func estimateSessionTokens(events []model.Event, modelID string, estimator TokenEstimator) int {
	total := 0
	for _, e := range events {
		total += estimator(e, modelID)
	}
	return total
}

// ContinuationText is the user-role text synthesized after a compaction to
// resume a run that requires a non-empty message.
const ContinuationText = "Session compacted. Continue from where you left off."
