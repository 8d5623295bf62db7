package compaction_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetrace-ai/streetrace-go/runtime/compaction"
	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
)

func usageEvent(author, text string, total int) model.Event {
	return model.Event{
		Author:        author,
		Content:       []model.Part{model.TextPart{Text: text}},
		UsageMetadata: &model.TokenUsage{Total: total},
	}
}

// fakeRuns lets a test script a sequence of AgentRun invocations: each call
// to the returned AgentRun pops the next scripted batch of events/error.
type fakeRuns struct {
	batches [][]model.Event
	errs    []error
	calls   int
}

func (f *fakeRuns) run(ctx context.Context, session model.Session, message *model.Event) (<-chan model.Event, <-chan error) {
	idx := f.calls
	f.calls++
	events := make(chan model.Event, len(f.batches[idx]))
	errc := make(chan error, 1)
	for _, e := range f.batches[idx] {
		events <- e
	}
	close(events)
	if idx < len(f.errs) {
		errc <- f.errs[idx]
	} else {
		errc <- nil
	}
	return events, errc
}

func TestRunnerCompletesWithoutCompactionWhenUnderThreshold(t *testing.T) {
	session := model.Session{ID: "s1", AppName: "app", UserID: "u1"}
	fake := &fakeRuns{batches: [][]model.Event{
		{usageEvent("assistant", "hi", 10)},
	}}

	r := compaction.NewRunner(compaction.NewTruncateStrategy(6, 0.8), nil, nil, nil)
	r.MaxTokens = 1000

	out := make(chan model.Event, 10)
	err := r.Run(context.Background(), fake.run, session, nil, out)
	require.NoError(t, err)
	close(out)

	var got []model.Event
	for e := range out {
		got = append(got, e)
	}
	require.Len(t, got, 1)
	assert.Equal(t, 1, fake.calls)
}

func TestRunnerCompactsAndRestartsWhenThresholdCrossed(t *testing.T) {
	session := model.Session{ID: "s1", AppName: "app", UserID: "u1"}
	fake := &fakeRuns{batches: [][]model.Event{
		{usageEvent("assistant", "big reply", 900)},
		{usageEvent("assistant", "final reply", 10)},
	}}

	refreshCalls := 0
	refresh := func(ctx context.Context, app, user, id string) (model.Session, bool, error) {
		refreshCalls++
		return model.Session{
			ID: id, AppName: app, UserID: user,
			Events: []model.Event{
				usageEvent("user", "seed", 0),
				usageEvent("assistant", "big reply", 900),
			},
		}, true, nil
	}
	replaceCalls := 0
	replace := func(ctx context.Context, s model.Session, newEvents []model.Event) (model.Session, error) {
		replaceCalls++
		s.Events = newEvents
		return s, nil
	}

	r := compaction.NewRunner(compaction.NewTruncateStrategy(1, 0.8), refresh, replace, nil)
	r.MaxTokens = 1000 // threshold = 800

	out := make(chan model.Event, 10)
	err := r.Run(context.Background(), fake.run, session, nil, out)
	require.NoError(t, err)
	close(out)

	var got []model.Event
	for e := range out {
		got = append(got, e)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "big reply", got[0].Text())
	assert.Equal(t, "final reply", got[1].Text())
	assert.Equal(t, 2, fake.calls)
	assert.Equal(t, 1, refreshCalls)
	assert.Equal(t, 1, replaceCalls)
}

func TestRunnerDoesNotCompactImmediatelyAfterToolCall(t *testing.T) {
	session := model.Session{ID: "s1", AppName: "app", UserID: "u1"}
	toolCall := model.Event{
		Author:        "assistant",
		Content:       []model.Part{model.FunctionCallPart{ID: "c1", Name: "search"}},
		UsageMetadata: &model.TokenUsage{Total: 900},
	}
	toolResult := model.Event{
		Author:        "user",
		Content:       []model.Part{model.FunctionResponsePart{ID: "c1", Name: "search", Response: "ok"}},
		UsageMetadata: &model.TokenUsage{Total: 10},
	}
	fake := &fakeRuns{batches: [][]model.Event{
		{toolCall, toolResult},
		{},
	}}

	refresh := func(ctx context.Context, app, user, id string) (model.Session, bool, error) {
		return model.Session{ID: id, AppName: app, UserID: user, Events: []model.Event{toolCall, toolResult}}, true, nil
	}
	replace := func(ctx context.Context, s model.Session, newEvents []model.Event) (model.Session, error) {
		s.Events = newEvents
		return s, nil
	}

	r := compaction.NewRunner(compaction.NewTruncateStrategy(1, 0.8), refresh, replace, nil)
	r.MaxTokens = 1000 // threshold = 800, compaction fires only after toolResult

	out := make(chan model.Event, 10)
	err := r.Run(context.Background(), fake.run, session, nil, out)
	require.NoError(t, err)
	close(out)

	var got []model.Event
	for e := range out {
		got = append(got, e)
	}
	// Threshold was crossed at toolCall (900 >= 800) but lastEventWasToolCall
	// suppresses compaction there; it re-checks after toolResult (910 >= 800,
	// not a tool call) and compacts, restarting with the second (empty)
	// batch, which completes the run naturally.
	assert.Equal(t, 2, len(got))
	assert.Equal(t, 2, fake.calls)
}
