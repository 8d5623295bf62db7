package compaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
)

// Strategy compacts a session's event log in place, returning the new event
// list. Each strategy defines its own ThresholdRatio.
type Strategy interface {
	ThresholdRatio() float64
	Compact(ctx context.Context, events []model.Event) ([]model.Event, error)
}

// Summarizer produces a natural-language summary of rendered conversation
// text, typically backed by an llm.Client call. Kept as a narrow closure
// (rather than depending on runtime/llm directly) so strategies stay
// testable without a model.
type Summarizer func(ctx context.Context, text string) (string, error)

// TruncateStrategy keeps the first event when it looks like a seed (authored
// "system" or "user") and the last KeepRecent events, dropping everything in
// between.
type TruncateStrategy struct {
	KeepRecent int
	Threshold  float64
}

// NewTruncateStrategy builds a TruncateStrategy with spec defaults
// (keep_recent=6, threshold_ratio=0.80) applied to zero fields.
func NewTruncateStrategy(keepRecent int, thresholdRatio float64) TruncateStrategy {
	if keepRecent <= 0 {
		keepRecent = 6
	}
	if thresholdRatio <= 0 {
		thresholdRatio = DefaultThresholdRatio
	}
	return TruncateStrategy{KeepRecent: keepRecent, Threshold: thresholdRatio}
}

func (t TruncateStrategy) ThresholdRatio() float64 { return t.Threshold }

// Compact keeps the seed event (if any) plus the last KeepRecent events. If
// the session is already small enough, it is returned unchanged.
func (t TruncateStrategy) Compact(ctx context.Context, events []model.Event) ([]model.Event, error) {
	if len(events) <= t.KeepRecent+1 {
		return events, nil
	}

	var out []model.Event
	recentStart := len(events) - t.KeepRecent
	if recentStart < 0 {
		recentStart = 0
	}
	if len(events) > 0 && (events[0].Author == "system" || events[0].Author == "user") {
		out = append(out, events[0])
		if recentStart < 1 {
			recentStart = 1
		}
	}
	out = append(out, events[recentStart:]...)
	return out, nil
}

// SummarizeStrategy summarizes every non-seed event into a single new
// system-authored event via an injected Summarizer, ensuring the compacted
// session is small regardless of how large the original was.
type SummarizeStrategy struct {
	Summarizer Summarizer
	KeepRecent int
	Threshold  float64
}

// NewSummarizeStrategy builds a SummarizeStrategy with spec defaults
// (keep_recent=4, threshold_ratio=0.80) applied to zero fields. KeepRecent
// only sets the no-op guard in Compact (nothing is summarized while
// KeepRecent+1 >= len(events)); once Compact does summarize, it summarizes
// ALL remaining events and keeps no recent events verbatim.
func NewSummarizeStrategy(summarizer Summarizer, keepRecent int, thresholdRatio float64) SummarizeStrategy {
	if keepRecent <= 0 {
		keepRecent = 4
	}
	if thresholdRatio <= 0 {
		thresholdRatio = DefaultThresholdRatio
	}
	return SummarizeStrategy{Summarizer: summarizer, KeepRecent: keepRecent, Threshold: thresholdRatio}
}

func (s SummarizeStrategy) ThresholdRatio() float64 { return s.Threshold }

// Compact keeps a leading "system" event verbatim, if present, and replaces
// everything else with one synthesized "[Previous conversation summary: ...]"
// event. Returns the session unchanged when KeepRecent+1 >= len(events) —
// there is nothing worth summarizing away.
func (s SummarizeStrategy) Compact(ctx context.Context, events []model.Event) ([]model.Event, error) {
	if s.KeepRecent+1 >= len(events) {
		return events, nil
	}

	startIdx := 0
	var out []model.Event
	if events[0].Author == "system" {
		out = append(out, events[0])
		startIdx = 1
	}

	toSummarize := events[startIdx:]
	if len(toSummarize) == 0 {
		return out, nil
	}

	text := eventsToText(toSummarize)
	summary, err := s.Summarizer(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("compaction: summarize: %w", err)
	}

	out = append(out, model.Event{
		Author: "system",
		Content: []model.Part{
			model.TextPart{Text: fmt.Sprintf("[Previous conversation summary: %s]", summary)},
		},
	})
	return out, nil
}

// eventsToText renders a slice of events the way the summarizer prompt
// expects: one "{author}: {rendering}" line per event, text parts truncated
// at summaryTextMaxLen.
func eventsToText(events []model.Event) string {
	var lines []string
	for _, e := range events {
		author := e.Author
		if author == "" {
			author = "unknown"
		}
		for _, p := range e.Content {
			switch v := p.(type) {
			case model.TextPart:
				text := v.Text
				if len(text) > summaryTextMaxLen {
					text = text[:summaryTextMaxLen] + "... [truncated]"
				}
				if text != "" {
					lines = append(lines, fmt.Sprintf("%s: %s", author, text))
				}
			case model.FunctionCallPart:
				lines = append(lines, fmt.Sprintf("%s: [Called tool: %s]", author, v.Name))
			case model.FunctionResponsePart:
				lines = append(lines, fmt.Sprintf("%s: [Tool %s returned result]", author, v.Name))
			}
		}
	}
	return strings.Join(lines, "\n")
}
