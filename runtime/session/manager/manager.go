// Package manager implements the Session Manager (C3): the sole owner of
// session mutation. Every algorithm here is transcribed from
// original_source/src/streetrace/session/session_manager.py, which is the
// authoritative source for these exact semantics (spec.md summarizes them;
// the Python source is unambiguous about edge cases).
package manager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/streetrace-ai/streetrace-go/runtime/apperrors"
	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
	"github.com/streetrace-ai/streetrace-go/runtime/session/store"
	"github.com/streetrace-ai/streetrace-go/runtime/telemetry"
)

// MaxToolCallsInSession caps the number of function-response events kept in
// a session's event log (spec.md §4.2).
const MaxToolCallsInSession = 20

// sessionIDTimeFormat mirrors the Python reference's
// datetime.strftime("%Y-%m-%d_%H-%M").
const sessionIDTimeFormat = "2006-01-02_15-04"

// ProjectContext supplies and records the free-form "project context"
// strings seeded into new sessions and updated after every turn.
// Experimental, per spec.md §4.2/§9: the contract is intentionally narrow.
type ProjectContext interface {
	// GetProjectContext returns the current context strings, rendered as
	// the parts of the seed event appended to a freshly created session.
	GetProjectContext() []string
	// AddContextFromTurn records the user's input and the assistant's
	// final response text for this turn.
	AddContextFromTurn(userInput, assistantResponse string)
}

// Manager owns all mutation of one session identity (app_name, user_id) at
// a time, enforcing the invariants of spec.md §3/§4.2.
type Manager struct {
	store            store.Store
	projectContext   ProjectContext
	logger           telemetry.Logger
	now              func() time.Time
	appName          string
	userID           string
	currentSessionID string
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger overrides the Manager's logger.
func WithLogger(l telemetry.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides the Manager's time source (tests only).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New constructs a Manager. sessionID may be empty, in which case one is
// generated from the current local time at minute resolution.
func New(st store.Store, pc ProjectContext, appName, userID, sessionID string, opts ...Option) *Manager {
	m := &Manager{
		store:          st,
		projectContext: pc,
		logger:         telemetry.NewNoopLogger(),
		now:            time.Now,
		appName:        appName,
		userID:         userID,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.currentSessionID = newSessionID(sessionID, m.now)
	return m
}

func newSessionID(userProvided string, now func() time.Time) string {
	if userProvided != "" {
		return userProvided
	}
	return now().Local().Format(sessionIDTimeFormat)
}

// CurrentSessionID returns the session id this Manager currently points at.
func (m *Manager) CurrentSessionID() string { return m.currentSessionID }

// ResetSession changes the current-session-id pointer. The next
// GetOrCreateSession call materializes a new session if the id doesn't
// already exist. Leave newID empty to generate a fresh timestamp id.
func (m *Manager) ResetSession(newID string) {
	m.currentSessionID = newSessionID(newID, m.now)
}

// GetCurrentSession returns the session at the current pointer without
// creating it, or (Session{}, false) if it does not exist.
func (m *Manager) GetCurrentSession(ctx context.Context) (model.Session, bool, error) {
	return m.store.Get(ctx, m.appName, m.userID, m.currentSessionID)
}

// GetOrCreateSession creates the session with empty state if absent,
// seeding it with an initial "user"-authored event whose parts are the
// current project-context strings; otherwise returns the existing session.
func (m *Manager) GetOrCreateSession(ctx context.Context) (model.Session, error) {
	sess, ok, err := m.store.Get(ctx, m.appName, m.userID, m.currentSessionID)
	if err != nil {
		return model.Session{}, err
	}
	if ok {
		return sess, nil
	}

	sess, err = m.store.Create(ctx, m.appName, m.userID, m.currentSessionID, map[string]any{}, m.now().UTC())
	if err != nil {
		return model.Session{}, fmt.Errorf("session manager: create: %w", err)
	}

	parts := make([]model.Part, 0, len(m.projectContext.GetProjectContext()))
	for _, text := range m.projectContext.GetProjectContext() {
		parts = append(parts, model.TextPart{Text: text})
	}
	contextEvent := model.Event{Author: "user", Content: parts}

	sess, err = m.store.AppendEvent(ctx, sess, contextEvent)
	if err != nil {
		return model.Session{}, fmt.Errorf("session manager: seed project context: %w", err)
	}
	return sess, nil
}

// AppendCurrentEvent appends e to the session at the current pointer,
// creating it first if absent. This is how the Supervisor (C10) folds each
// event a Workload streams back into session history before running
// ManageCurrentSession over it (spec.md §4.8 step 5).
func (m *Manager) AppendCurrentEvent(ctx context.Context, e model.Event) (model.Session, error) {
	sess, err := m.GetOrCreateSession(ctx)
	if err != nil {
		return model.Session{}, err
	}
	return m.store.AppendEvent(ctx, sess, e)
}

// ValidateSession enforces tool-call pairing by removing orphans:
//   - a function_response with no preceding unmatched function_call is
//     dropped;
//   - a function_call not immediately followed by a function_response is
//     dropped;
//   - regular events are kept unconditionally; any pending unmatched
//     function_call is dropped when a non-response event arrives.
//
// Returns sess unchanged (not rewritten) if no violation is found.
func (m *Manager) ValidateSession(ctx context.Context, sess model.Session) (model.Session, error) {
	var newEvents []model.Event
	var pendingCall *model.Event
	errorsFound := 0

	for i := range sess.Events {
		event := sess.Events[i]

		if !event.HasContent() {
			newEvents = append(newEvents, event)
			continue
		}

		switch {
		case event.HasFunctionResponse():
			if pendingCall != nil {
				newEvents = append(newEvents, *pendingCall, event)
				pendingCall = nil
				errorsFound--
			} else {
				errorsFound++
			}
		case event.HasFunctionCall():
			if pendingCall != nil {
				errorsFound++
			}
			callCopy := event
			pendingCall = &callCopy
			errorsFound++
		default:
			if pendingCall != nil {
				errorsFound++
				pendingCall = nil
			}
			newEvents = append(newEvents, event)
		}
	}

	if errorsFound == 0 {
		return sess, nil
	}

	return m.store.ReplaceEvents(ctx, sess, newEvents)
}

// ReplaceCurrentSessionEvents is a trusted bulk replace against whatever
// session the current pointer resolves to. Fails if no current session
// exists.
func (m *Manager) ReplaceCurrentSessionEvents(ctx context.Context, newEvents []model.Event) error {
	sess, ok, err := m.store.Get(ctx, m.appName, m.userID, m.currentSessionID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrSessionNotFound
	}
	_, err = m.store.ReplaceEvents(ctx, sess, newEvents)
	return err
}

// ManageCurrentSession caps tool traffic: if more than
// MaxToolCallsInSession function-response events exist in the current
// session, keep only the last 20 (call, response) pairs plus all non-tool
// events, in original relative order. The call and response of each kept
// pair must share the same function name; any violation or missing
// predecessor is a fatal SessionInvariantViolation for this turn.
func (m *Manager) ManageCurrentSession(ctx context.Context) error {
	sess, ok, err := m.store.Get(ctx, m.appName, m.userID, m.currentSessionID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrSessionNotFound
	}

	var responseIndices []int
	for i, e := range sess.Events {
		if e.HasContent() && e.HasFunctionResponse() {
			responseIndices = append(responseIndices, i)
		}
	}

	if len(responseIndices) <= MaxToolCallsInSession {
		return nil
	}

	keep := make(map[int]bool)
	kept := responseIndices[len(responseIndices)-MaxToolCallsInSession:]
	for _, i := range kept {
		keep[i] = true
		if i == 0 {
			return fmt.Errorf("%w: function response with no preceding function call at index %d",
				apperrors.ErrSessionInvariantViolation, i)
		}
		callEvent := sess.Events[i-1]
		respEvent := sess.Events[i]
		if !callEvent.HasContent() || !respEvent.HasContent() {
			return fmt.Errorf("%w: missing content or parts in events at indices %d and %d",
				apperrors.ErrSessionInvariantViolation, i-1, i)
		}
		var callName, respName string
		for _, fc := range callEvent.FunctionCalls() {
			callName = fc.Name
		}
		for _, fr := range respEvent.FunctionResponses() {
			respName = fr.Name
		}
		if callName == "" || respName == "" || callName != respName {
			return fmt.Errorf("%w: mismatched call/response pair at indices %d and %d",
				apperrors.ErrSessionInvariantViolation, i-1, i)
		}
		keep[i-1] = true
	}

	var newEvents []model.Event
	for i, e := range sess.Events {
		isToolEvent := e.HasContent() && e.IsToolEvent()
		if keep[i] || !isToolEvent {
			newEvents = append(newEvents, e)
		}
	}

	_, err = m.store.ReplaceEvents(ctx, sess, newEvents)
	return err
}

// squashTurnEvents keeps only is_final_response && has-content events from
// session as the new canonical history, persists it, and returns the last
// non-user final event's concatenated text (empty if the last kept event
// is authored "user").
func (m *Manager) squashTurnEvents(ctx context.Context, sess model.Session) (string, error) {
	var keepEvents []model.Event
	for _, e := range sess.Events {
		if e.IsFinal && e.HasContent() {
			keepEvents = append(keepEvents, e)
		}
	}

	var assistantFinalResponse string
	if len(keepEvents) > 0 {
		last := keepEvents[len(keepEvents)-1]
		if last.Author != "user" && last.HasContent() {
			assistantFinalResponse = last.Text()
		}
	}

	if _, err := m.store.ReplaceEvents(ctx, sess, keepEvents); err != nil {
		return "", err
	}
	return assistantFinalResponse, nil
}

// addProjectContext stores the last user request and assistant response in
// the project context. If userInput is empty, it is derived by
// concatenating every user-authored event's text across the WHOLE session —
// this can grow unboundedly and may be stale after a squash; this is
// carried over unchanged from the reference implementation per spec.md §9
// ("do not guess intent").
func (m *Manager) addProjectContext(userInput, assistantResponse string, sess model.Session) {
	if userInput == "" {
		var parts []string
		for _, e := range sess.Events {
			if e.Author != "user" || !e.HasContent() {
				continue
			}
			if t := e.Text(); t != "" {
				parts = append(parts, t)
			}
		}
		userInput = strings.Join(parts, "\n")
	}
	m.projectContext.AddContextFromTurn(userInput, assistantResponse)
}

// PostProcess runs after each turn, successful or not: squash the turn (keep only
// final-response events as canonical history) and update project context
// from the squashed result. Best-effort by convention of its caller (the
// Supervisor invokes this regardless of turn success and logs failures).
func (m *Manager) PostProcess(ctx context.Context, userInput string, originalSession model.Session) error {
	sess, ok, err := m.store.Get(ctx, originalSession.AppName, originalSession.UserID, originalSession.ID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrSessionNotFound
	}

	assistantResponse, err := m.squashTurnEvents(ctx, sess)
	if err != nil {
		return err
	}

	m.addProjectContext(userInput, assistantResponse, sess)
	return nil
}
