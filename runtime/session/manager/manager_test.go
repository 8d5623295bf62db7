package manager_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetrace-ai/streetrace-go/runtime/session/manager"
	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
	"github.com/streetrace-ai/streetrace-go/runtime/session/store/jsonstore"
)

type fakeProjectContext struct {
	seed  []string
	turns [][2]string
}

func (f *fakeProjectContext) GetProjectContext() []string { return f.seed }
func (f *fakeProjectContext) AddContextFromTurn(userInput, assistantResponse string) {
	f.turns = append(f.turns, [2]string{userInput, assistantResponse})
}

func newTestManager(t *testing.T) (*manager.Manager, *fakeProjectContext) {
	t.Helper()
	st := jsonstore.New(t.TempDir(), nil)
	pc := &fakeProjectContext{seed: []string{"ctx1", "ctx2"}}
	m := manager.New(st, pc, "app", "user", "sess1")
	return m, pc
}

func textEvent(author, text string) model.Event {
	return model.Event{Author: author, Content: []model.Part{model.TextPart{Text: text}}}
}

func callEvent(name, id string) model.Event {
	return model.Event{Author: "assistant", Content: []model.Part{model.FunctionCallPart{ID: id, Name: name}}}
}

func responseEvent(name, id string) model.Event {
	return model.Event{Author: "assistant", Content: []model.Part{model.FunctionResponsePart{ID: id, Name: name}}}
}

// S2: Session [user("hi"), function_call("t"), user("stop")] -> validate_session
// yields [user("hi"), user("stop")].
func TestValidateSessionOrphanRepair(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	sess, err := m.GetOrCreateSession(ctx)
	require.NoError(t, err)

	events := []model.Event{
		textEvent("user", "hi"),
		callEvent("t", "c1"),
		textEvent("user", "stop"),
	}
	require.NoError(t, m.ReplaceCurrentSessionEvents(ctx, events))

	sess, _, err = storeGet(t, m)
	require.NoError(t, err)

	repaired, err := m.ValidateSession(ctx, sess)
	require.NoError(t, err)

	require.Len(t, repaired.Events, 2)
	assert.Equal(t, "hi", repaired.Events[0].Text())
	assert.Equal(t, "stop", repaired.Events[1].Text())
}

func TestValidateSessionNoViolationIsNoop(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	sess, err := m.GetOrCreateSession(ctx)
	require.NoError(t, err)

	events := []model.Event{callEvent("t", "c1"), responseEvent("t", "c1")}
	require.NoError(t, m.ReplaceCurrentSessionEvents(ctx, events))
	sess, _, err = storeGet(t, m)
	require.NoError(t, err)

	out, err := m.ValidateSession(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, sess.Events, out.Events)
}

// S1: 25 call/response pairs -> manage_current_session keeps pairs 5..24 (last 20).
func TestManageCurrentSessionTrimsToLast20Pairs(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.GetOrCreateSession(ctx)
	require.NoError(t, err)

	var events []model.Event
	for i := 0; i < 25; i++ {
		name := fmt.Sprintf("f_%d", i)
		id := fmt.Sprintf("c_%d", i)
		events = append(events, callEvent(name, id), responseEvent(name, id))
	}
	require.NoError(t, m.ReplaceCurrentSessionEvents(ctx, events))

	require.NoError(t, m.ManageCurrentSession(ctx))

	sess, _, err := storeGet(t, m)
	require.NoError(t, err)

	require.Len(t, sess.Events, 40)
	for i := 0; i < 20; i++ {
		expectedName := fmt.Sprintf("f_%d", i+5)
		assert.Equal(t, expectedName, sess.Events[2*i].FunctionCalls()[0].Name)
		assert.Equal(t, expectedName, sess.Events[2*i+1].FunctionResponses()[0].Name)
	}

	// validate_session on the result is a no-op.
	out, err := m.ValidateSession(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, sess.Events, out.Events)
}

func TestManageCurrentSessionNoopAtExactly20(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	_, err := m.GetOrCreateSession(ctx)
	require.NoError(t, err)

	var events []model.Event
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("f_%d", i)
		events = append(events, callEvent(name, name), responseEvent(name, name))
	}
	require.NoError(t, m.ReplaceCurrentSessionEvents(ctx, events))

	require.NoError(t, m.ManageCurrentSession(ctx))

	sess, _, err := storeGet(t, m)
	require.NoError(t, err)
	require.Len(t, sess.Events, 40)
}

func TestGetOrCreateSessionSeedsProjectContext(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	sess, err := m.GetOrCreateSession(ctx)
	require.NoError(t, err)
	require.Len(t, sess.Events, 1)
	assert.Equal(t, "user", sess.Events[0].Author)
	assert.Equal(t, "ctx1", sess.Events[0].Content[0].(model.TextPart).Text)

	out, err := m.ValidateSession(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, sess.Events, out.Events)
}

func TestPostProcessSquashesAndUpdatesContext(t *testing.T) {
	m, pc := newTestManager(t)
	ctx := context.Background()

	sess, err := m.GetOrCreateSession(ctx)
	require.NoError(t, err)

	intermediate := textEvent("assistant", "thinking")
	final := model.Event{Author: "assistant", IsFinal: true, Content: []model.Part{model.TextPart{Text: "done"}}}
	require.NoError(t, m.ReplaceCurrentSessionEvents(ctx, []model.Event{intermediate, final}))

	sess, _, err = storeGet(t, m)
	require.NoError(t, err)

	require.NoError(t, m.PostProcess(ctx, "do the thing", sess))

	squashed, _, err := storeGet(t, m)
	require.NoError(t, err)
	require.Len(t, squashed.Events, 1)
	assert.Equal(t, "done", squashed.Events[0].Text())

	require.Len(t, pc.turns, 1)
	assert.Equal(t, "do the thing", pc.turns[0][0])
	assert.Equal(t, "done", pc.turns[0][1])
}

func storeGet(t *testing.T, m *manager.Manager) (model.Session, bool, error) {
	t.Helper()
	return m.GetCurrentSession(context.Background())
}

func TestSessionIDGeneratedWhenEmpty(t *testing.T) {
	st := jsonstore.New(t.TempDir(), nil)
	pc := &fakeProjectContext{}
	m := manager.New(st, pc, "app", "user", "", manager.WithClock(func() time.Time {
		return time.Date(2026, 7, 30, 14, 5, 0, 0, time.Local)
	}))
	assert.Equal(t, "2026-07-30_14-05", m.CurrentSessionID())
}
