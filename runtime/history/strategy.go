package history

import (
	"context"
	"fmt"
)

// summaryPreambleFmt is the role="system" placeholder message
// SummarizeStrategy prepends in place of the summarized middle portion.
const summaryPreambleFmt = "[Previous conversation summary: %s]"

// TruncateStrategy keeps the first message (usually system/context) plus as
// many of the most recent messages as fit within targetTokens, dropping the
// middle. Transcribed from TruncateStrategy.compact in
// original_source/src/streetrace/dsl/runtime/history_compactor.py.
type TruncateStrategy struct {
	// Counter overrides the token counter used to size the fit. Defaults to
	// EstimateTokens.
	Counter TokenCounter
}

func (s TruncateStrategy) counter() TokenCounter {
	if s.Counter != nil {
		return s.Counter
	}
	return EstimateTokens
}

// Compact implements Strategy.
func (s TruncateStrategy) Compact(_ context.Context, messages []Message, targetTokens int, modelID string) ([]Message, error) {
	if len(messages) <= MinimumRecentMessages {
		return messages, nil
	}

	counter := s.counter()
	first := messages[0]
	remaining := messages[1:]

	currentTokens := counter([]Message{first}, modelID)
	var kept []Message
	for i := len(remaining) - 1; i >= 0; i-- {
		msg := remaining[i]
		msgTokens := counter([]Message{msg}, modelID)
		if currentTokens+msgTokens > targetTokens {
			break
		}
		kept = append(kept, msg)
		currentTokens += msgTokens
	}

	result := make([]Message, 0, len(kept)+1)
	result = append(result, first)
	for i := len(kept) - 1; i >= 0; i-- {
		result = append(result, kept[i])
	}

	return result, nil
}

// SummarizeStrategy summarizes the middle portion of history with an LLM,
// keeping the first message and MinimumRecentMessages most recent messages
// verbatim. With no Summarizer configured, it falls back to TruncateStrategy
// — same as the reference implementation's "no llm_client" path.
// Transcribed from SummarizeStrategy.compact.
type SummarizeStrategy struct {
	Summarizer Summarizer
	Counter    TokenCounter
}

// Compact implements Strategy.
func (s SummarizeStrategy) Compact(ctx context.Context, messages []Message, targetTokens int, modelID string) ([]Message, error) {
	if len(messages) <= MinimumRecentMessages {
		return messages, nil
	}

	if s.Summarizer == nil {
		return TruncateStrategy{Counter: s.Counter}.Compact(ctx, messages, targetTokens, modelID)
	}

	first := messages[0]
	recentCount := MinimumRecentMessages
	if recentCount > len(messages)-1 {
		recentCount = len(messages) - 1
	}
	var recent []Message
	if recentCount > 0 {
		recent = messages[len(messages)-recentCount:]
	}

	hasMiddle := len(messages) > recentCount+1
	var middle []Message
	if hasMiddle {
		middle = messages[1 : len(messages)-recentCount]
	}
	if len(middle) == 0 {
		return messages, nil
	}

	summary, err := s.Summarizer(ctx, renderMessages(middle))
	if err != nil {
		return nil, fmt.Errorf("history: summarize middle portion: %w", err)
	}

	result := []Message{first}
	if summary != "" {
		result = append(result, Message{Role: "system", Content: fmt.Sprintf(summaryPreambleFmt, summary)})
	}
	result = append(result, recent...)

	return result, nil
}

// renderMessages formats messages as "role: content" lines joined by
// newlines, the exact shape _generate_summary builds its prompt body from.
func renderMessages(messages []Message) string {
	rendered := ""
	for i, m := range messages {
		if i > 0 {
			rendered += "\n"
		}
		rendered += m.Role + ": " + m.Content
	}
	return rendered
}
