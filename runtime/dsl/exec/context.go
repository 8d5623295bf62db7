package exec

import (
	"context"
	"fmt"
	"strings"

	"github.com/streetrace-ai/streetrace-go/runtime/dsl/ir"
	"github.com/streetrace-ai/streetrace-go/runtime/telemetry"
)

// EscalationCallback is the optional, context-level human-in-the-loop hook
// a workflow can register (spec.md §4.5 Context: "An escalation callback
// ... (both optional)"), invoked by the DSL's escalate_to_human builtin.
// Grounded on original_source/.../dsl/runtime/context.py's
// escalate_to_human, which calls a registered callback then dispatches a
// ui_events.Warn.
type EscalationCallback func(ctx context.Context, message string) error

// WorkflowContext is the per-run mutable arena every statement in a Flow
// executes against (spec.md §4.5 "Context"). Parallel does not clone it:
// branch inputs are evaluated before the branches start and results are
// written to vars only after every branch has finished, so branches never
// touch vars concurrently. Clone makes an independent copy on request.
type WorkflowContext struct {
	Program *ir.Program

	vars       map[string]any
	lastResult any

	Guardrails GuardrailProvider
	Escalate   EscalationCallback
	UIBus      UIBus
	Logger     telemetry.Logger

	// Goal is the workflow's stated objective, used by DetectDrift. Empty
	// if the workflow never set one.
	Goal string
}

// NewContext builds a WorkflowContext for program. guardrails, escalate,
// bus, and logger may all be nil/zero; NewContext fills in safe defaults
// (a no-op logger, the default regex GuardrailProvider, whose unknown-kind
// warnings go to logger).
func NewContext(program *ir.Program, guardrails GuardrailProvider, escalate EscalationCallback, bus UIBus, logger telemetry.Logger) *WorkflowContext {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if guardrails == nil {
		guardrails = NewGuardrailProvider(func(kind string) {
			logger.Warn(context.Background(), "dsl: unknown guardrail kind", "kind", kind)
		})
	}
	return &WorkflowContext{
		Program:    program,
		vars:       make(map[string]any),
		Guardrails: guardrails,
		Escalate:   escalate,
		UIBus:      bus,
		Logger:     logger,
	}
}

// Clone produces an independent sub-arena sharing Program/Guardrails/
// Escalate/UIBus/Logger but with its own copy-on-fork vars and last_result,
// per spec.md §9's "single-arena workflow context with cloned sub-arenas
// for Parallel" design note.
func (c *WorkflowContext) Clone() *WorkflowContext {
	cp := &WorkflowContext{
		Program:    c.Program,
		vars:       make(map[string]any, len(c.vars)),
		Guardrails: c.Guardrails,
		Escalate:   c.Escalate,
		UIBus:      c.UIBus,
		Logger:     c.Logger,
		Goal:       c.Goal,
	}
	for k, v := range c.vars {
		cp.vars[k] = v
	}
	cp.lastResult = c.lastResult
	return cp
}

// SetVar binds name (stripped of any leading "$") to value.
func (c *WorkflowContext) SetVar(name string, value any) {
	c.vars[strings.TrimPrefix(name, "$")] = value
}

// GetVar reads vars[name], stripped of any leading "$". ok is false if
// unbound.
func (c *WorkflowContext) GetVar(name string) (any, bool) {
	v, ok := c.vars[strings.TrimPrefix(name, "$")]
	return v, ok
}

// LastResult returns the most recent Call/RunAgent return value.
func (c *WorkflowContext) LastResult() any { return c.lastResult }

func (c *WorkflowContext) setLastResult(v any) { c.lastResult = v }

// Log, Warn, and Notify mirror
// original_source/.../dsl/runtime/context.py's identically-named
// WorkflowContext methods: structured logging plus, for Notify, a UI-bus
// dispatch so the frontend can surface a transient message.
func (c *WorkflowContext) Log(ctx context.Context, msg string, keyvals ...any) {
	c.Logger.Info(ctx, msg, keyvals...)
}

func (c *WorkflowContext) Warn(ctx context.Context, msg string, keyvals ...any) {
	c.Logger.Warn(ctx, msg, keyvals...)
}

func (c *WorkflowContext) Notify(msg string) {
	if c.UIBus != nil {
		c.UIBus.Dispatch(UIEvent{Kind: "notify", Message: msg})
	}
}

// EscalateToHuman invokes the registered EscalationCallback (if any) and
// always dispatches a "warn" UI event, matching
// original_source/.../dsl/runtime/context.py's escalate_to_human.
func (c *WorkflowContext) EscalateToHuman(ctx context.Context, message string) error {
	var err error
	if c.Escalate != nil {
		err = c.Escalate(ctx, message)
	}
	if c.UIBus != nil {
		c.UIBus.Dispatch(UIEvent{Kind: "warn", Message: message})
	}
	return err
}

// SetGoal records the workflow's stated objective for later DetectDrift
// calls.
func (c *WorkflowContext) SetGoal(goal string) { c.Goal = goal }

// GetGoal returns the workflow's stated objective, or "" if none was set.
func (c *WorkflowContext) GetGoal() string { return c.Goal }

// Process looks up a named pipeline bound in vars and returns it
// unevaluated (spec.md §4.5 doesn't name Process explicitly; this is a
// supplemented feature from
// original_source/.../dsl/runtime/context.py's process(*args,
// pipeline=None): a named lookup into vars, not a control-flow primitive).
func (c *WorkflowContext) Process(pipelineName string) (any, error) {
	v, ok := c.GetVar(pipelineName)
	if !ok {
		return nil, fmt.Errorf("dsl: no pipeline bound to %q", pipelineName)
	}
	return v, nil
}
