package compaction_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetrace-ai/streetrace-go/runtime/compaction"
	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
)

func textEvent(author, text string) model.Event {
	return model.Event{Author: author, Content: []model.Part{model.TextPart{Text: text}}}
}

func TestTruncateStrategyKeepsSeedAndRecent(t *testing.T) {
	events := []model.Event{
		textEvent("user", "seed"),
		textEvent("assistant", "1"),
		textEvent("assistant", "2"),
		textEvent("assistant", "3"),
		textEvent("assistant", "4"),
		textEvent("assistant", "5"),
		textEvent("assistant", "6"),
		textEvent("assistant", "7"),
	}
	strat := compaction.NewTruncateStrategy(3, 0.8)
	out, err := strat.Compact(context.Background(), events)
	require.NoError(t, err)

	require.Len(t, out, 4)
	assert.Equal(t, "seed", out[0].Text())
	assert.Equal(t, "5", out[1].Text())
	assert.Equal(t, "6", out[2].Text())
	assert.Equal(t, "7", out[3].Text())
}

func TestTruncateStrategyNoopWhenSmall(t *testing.T) {
	events := []model.Event{textEvent("user", "a"), textEvent("assistant", "b")}
	strat := compaction.NewTruncateStrategy(6, 0.8)
	out, err := strat.Compact(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, events, out)
}

func TestTruncateStrategyDropsSeedWhenFirstAuthorIsntSystemOrUser(t *testing.T) {
	events := []model.Event{
		textEvent("assistant", "0"),
		textEvent("assistant", "1"),
		textEvent("assistant", "2"),
	}
	strat := compaction.NewTruncateStrategy(1, 0.8)
	out, err := strat.Compact(context.Background(), events)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "2", out[0].Text())
}

func TestSummarizeStrategyKeepsSystemSeedAndSummarizesRest(t *testing.T) {
	var gotText string
	summarizer := func(ctx context.Context, text string) (string, error) {
		gotText = text
		return "concise summary", nil
	}
	events := []model.Event{
		textEvent("system", "you are an agent"),
		textEvent("user", "do the thing"),
		{Author: "assistant", Content: []model.Part{model.FunctionCallPart{Name: "run_tool"}}},
		{Author: "user", Content: []model.Part{model.FunctionResponsePart{Name: "run_tool", Response: "ok"}}},
	}
	strat := compaction.NewSummarizeStrategy(summarizer, 1, 0.8)
	out, err := strat.Compact(context.Background(), events)
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, "you are an agent", out[0].Text())
	assert.Equal(t, "system", out[1].Author)
	assert.Equal(t, "[Previous conversation summary: concise summary]", out[1].Text())
	assert.Contains(t, gotText, "user: do the thing")
	assert.Contains(t, gotText, "[Called tool: run_tool]")
	assert.Contains(t, gotText, "[Tool run_tool returned result]")
}

func TestSummarizeStrategyNoopWhenSingleEvent(t *testing.T) {
	events := []model.Event{textEvent("user", "only one")}
	strat := compaction.NewSummarizeStrategy(func(context.Context, string) (string, error) {
		t.Fatal("summarizer should not be called")
		return "", nil
	}, 4, 0.8)
	out, err := strat.Compact(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, events, out)
}

func TestSummarizeStrategyTruncatesLongText(t *testing.T) {
	longText := make([]byte, 3000)
	for i := range longText {
		longText[i] = 'x'
	}
	var gotText string
	summarizer := func(ctx context.Context, text string) (string, error) {
		gotText = text
		return "s", nil
	}
	events := []model.Event{textEvent("system", "seed"), textEvent("user", string(longText)), textEvent("user", "more")}
	strat := compaction.NewSummarizeStrategy(summarizer, 1, 0.8)
	_, err := strat.Compact(context.Background(), events)
	require.NoError(t, err)
	assert.Contains(t, gotText, "... [truncated]")
}
