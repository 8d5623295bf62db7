// Package supervisor implements the Supervisor (C10): the top-level turn
// driver spec.md §4.8 specifies. It resolves a workload by name, streams
// its response against the current session, folds every agent-produced
// event back into session history, and forwards everything — agent events
// and DSL flow-level LLM notices alike — to the UI bus.
//
// Grounded directly on
// original_source/tests/unit/workflow/test_supervisor_workloads.py and
// test_supervisor_flow_events.py, the authoritative behavioral source for
// this component (no supervisor.py source file itself was retrieved,
// only its test suites).
package supervisor

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/codes"

	"github.com/streetrace-ai/streetrace-go/runtime/apperrors"
	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
	"github.com/streetrace-ai/streetrace-go/runtime/telemetry"
	"github.com/streetrace-ai/streetrace-go/runtime/uibus"
	"github.com/streetrace-ai/streetrace-go/runtime/workload"
)

// WorkloadRunner is the subset of runtime/workload.Manager's API the
// Supervisor depends on, narrowed per this codebase's
// consumer-defined-interface idiom (runtime/dsl/exec.AgentRunner is the
// same pattern) so a test can drive Handle against a fake workload without
// constructing a real Manager/Loader chain.
type WorkloadRunner interface {
	CreateWorkload(ctx context.Context, name string, fn func(context.Context, workload.Workload) error) error
}

// SessionManager is the subset of runtime/session/manager.Manager's API
// the Supervisor depends on.
type SessionManager interface {
	GetOrCreateSession(ctx context.Context) (model.Session, error)
	ValidateSession(ctx context.Context, sess model.Session) (model.Session, error)
	AppendCurrentEvent(ctx context.Context, e model.Event) (model.Session, error)
	ManageCurrentSession(ctx context.Context) error
	PostProcess(ctx context.Context, userInput string, originalSession model.Session) error
}

// defaultWorkloadName is what an empty Turn.AgentName resolves to (the
// Workload Manager's own "default" alias, spec.md §4.7).
const defaultWorkloadName = "default"

// escalatedMarker is the sentinel final_response text a content-less
// escalation event produces.
const escalatedMarker = "escalated"

// fallbackFinalResponse is what Turn.FinalResponse is set to if the stream
// ends without ever capturing one.
const fallbackFinalResponse = "Agent did not produce a final response."

// spanName is the telemetry span every Handle call opens.
const spanName = "streetrace_agent_run"

// Turn is one request/response cycle through the Supervisor: the caller
// fills UserInput (and optionally AgentName) and reads FinalResponse back
// out after Handle returns (even on error — Handle always sets it to its
// best-effort best guess before returning, matching the reference
// implementation's input_context mutation-in-place contract).
type Turn struct {
	UserInput  string
	AgentName  string
	BashOutput string

	FinalResponse string
}

// Supervisor drives one turn end to end per spec.md §4.8.
type Supervisor struct {
	workloads WorkloadRunner
	sessions  SessionManager
	bus       uibus.Bus
	tracer    telemetry.Tracer
	logger    telemetry.Logger
}

// Dependencies are the Supervisor's collaborators. Workloads, Sessions, and
// Bus are required; Tracer and Logger default to no-ops.
type Dependencies struct {
	Workloads WorkloadRunner
	Sessions  SessionManager
	Bus       uibus.Bus
	Tracer    telemetry.Tracer
	Logger    telemetry.Logger
}

// New constructs a Supervisor.
func New(deps Dependencies) *Supervisor {
	tracer := deps.Tracer
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	logger := deps.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Supervisor{
		workloads: deps.Workloads,
		sessions:  deps.Sessions,
		bus:       deps.Bus,
		tracer:    tracer,
		logger:    logger,
	}
}

// LongRunning reports true unconditionally: a Supervisor turn may hold
// several LLM round trips, MCP calls, and subprocess I/O, so any upstream
// input handler driving it must not apply its own short turn timeout.
func (s *Supervisor) LongRunning() bool { return true }

// Handle drives turn through to completion: resolve the workload, stream
// its events against the current session, and leave turn.FinalResponse set
// regardless of outcome. A stream failure is dispatched to the UI bus as an
// Error event, then returned wrapped in an apperrors.Aggregate; post_process
// still runs (best-effort, logged on failure) even in that case.
func (s *Supervisor) Handle(ctx context.Context, turn *Turn) error {
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()

	agentName := turn.AgentName
	if agentName == "" {
		agentName = defaultWorkloadName
	}

	originalSession, err := s.sessions.GetOrCreateSession(ctx)
	if err != nil {
		s.bus.Dispatch(uibus.Error{Text: err.Error()})
		turn.FinalResponse = fallbackFinalResponse
		return s.fail(span, err)
	}
	validated, err := s.sessions.ValidateSession(ctx, originalSession)
	if err != nil {
		s.bus.Dispatch(uibus.Error{Text: err.Error()})
		turn.FinalResponse = fallbackFinalResponse
		return s.fail(span, err)
	}

	var finalResponse string
	runErr := s.workloads.CreateWorkload(ctx, agentName, func(ctx context.Context, w workload.Workload) error {
		events, errc := w.RunAsync(ctx, &validated, turn.UserInput)
		for e := range events {
			if handleErr := s.handleEvent(ctx, e, &finalResponse); handleErr != nil {
				return handleErr
			}
		}
		return <-errc
	})

	if runErr != nil {
		s.bus.Dispatch(uibus.Error{Text: runErr.Error()})
		turn.FinalResponse = fallbackFinalResponse
		s.postProcess(ctx, turn.UserInput, originalSession)
		return s.fail(span, runErr)
	}

	if finalResponse == "" {
		finalResponse = fallbackFinalResponse
	}
	turn.FinalResponse = finalResponse

	s.postProcess(ctx, turn.UserInput, originalSession)
	return nil
}

// handleEvent dispatches one streamed event to the UI bus and, for
// genuine agent events (as opposed to DSL flow-level LLM notices), folds it
// into session history. finalResponse is set at most once (first-in-stream
// wins), from whichever of the two event shapes supplies it first.
func (s *Supervisor) handleEvent(ctx context.Context, e model.Event, finalResponse *string) error {
	if notice := e.FlowNotice; notice != nil {
		if notice.IsResponse {
			s.bus.Dispatch(uibus.LlmResponse{PromptName: notice.PromptName, Content: notice.Content, IsFinal: notice.IsFinal})
			if notice.IsFinal && *finalResponse == "" {
				*finalResponse = notice.Content
			}
		} else {
			s.bus.Dispatch(uibus.LlmCall{PromptName: notice.PromptName, Model: notice.Model, PromptText: notice.PromptText})
		}
		return nil
	}

	s.bus.Dispatch(uibus.ADKEnvelope{Event: e})

	switch {
	case e.Escalate && !e.HasContent():
		if *finalResponse == "" {
			*finalResponse = escalatedMarker
		}
	case e.IsFinal && e.HasContent():
		if *finalResponse == "" {
			*finalResponse = e.Text()
		}
	}

	if _, err := s.sessions.AppendCurrentEvent(ctx, e); err != nil {
		return err
	}
	return s.sessions.ManageCurrentSession(ctx)
}

// postProcess runs Session Manager post-processing unconditionally
// (spec.md §4.8 step 8), logging rather than propagating any failure.
func (s *Supervisor) postProcess(ctx context.Context, userInput string, originalSession model.Session) {
	if err := s.sessions.PostProcess(ctx, userInput, originalSession); err != nil {
		s.logger.Warn(ctx, "supervisor: post_process failed", "error", err)
	}
}

// fail records err on span, dispatches nothing further (the caller already
// dispatched the one UI Error event this failure warrants, or is about to),
// and returns it wrapped as an apperrors.Aggregate.
func (s *Supervisor) fail(span telemetry.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return apperrors.NewAggregate([]error{err})
}

// IsEscalated reports whether response is the Supervisor's escalation
// marker (spec.md §4.8 step 6: callers match it case-insensitively as a
// substring, since a workload's own text may legitimately wrap it).
func IsEscalated(response string) bool {
	return strings.Contains(strings.ToLower(response), escalatedMarker)
}
