package exec

import (
	"context"
	"fmt"
	"sync"

	"github.com/streetrace-ai/streetrace-go/runtime/apperrors"
	"github.com/streetrace-ai/streetrace-go/runtime/dsl/ir"
	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
)

// AgentRunner constructs and executes a runtime agent from an IR
// AgentSpec, against an in-memory session seeded with input as the user
// message, streaming every event it produces (spec.md §4.5 RunAgent: "...
// execute it against an in-memory session with the rendered input ...,
// stream its events upward"). The Agent Factory (C8) is the production
// implementation of this interface; it is injected here so C7 has no
// compile-time dependency on C8's construction machinery.
type AgentRunner interface {
	RunAgent(ctx context.Context, spec ir.AgentSpec, input string) (<-chan model.Event, <-chan error)
}

// execRunAgent implements spec.md §4.5's RunAgent statement: flow
// recursion when IsFlow, otherwise a single agent run via AgentRunner,
// with escalation-event handling and target binding.
func (i *Interpreter) execRunAgent(ctx context.Context, wc *WorkflowContext, stmt ir.RunAgent) error {
	var input any
	if stmt.Input != nil {
		v, err := Eval(wc, stmt.Input)
		if err != nil {
			return err
		}
		input = v
	}

	if stmt.IsFlow {
		flow, ok := i.Program.Flows[stmt.Name]
		if !ok {
			return fmt.Errorf("dsl: run_agent references unknown flow %q", stmt.Name)
		}
		result, err := i.ExecuteFlow(ctx, wc, flow)
		if err != nil {
			return err
		}
		wc.setLastResult(result)
		if stmt.Target != "" {
			wc.SetVar(stmt.Target, result)
		}
		return nil
	}

	spec, ok := i.Program.Agents[stmt.Name]
	if !ok {
		return fmt.Errorf("dsl: run_agent references unknown agent %q", stmt.Name)
	}
	if i.Agents == nil {
		return fmt.Errorf("dsl: run_agent %q invoked with no AgentRunner configured", stmt.Name)
	}

	inputText := stringifyInput(input)
	events, errc := i.Agents.RunAgent(ctx, spec, inputText)

	var finalText string
	var escalated *model.Event
	for e := range events {
		i.emit(e)
		if e.Escalate && escalated == nil {
			ev := e
			escalated = &ev
		}
		if e.IsFinal {
			finalText = e.Text()
		}
	}
	if err := <-errc; err != nil {
		return fmt.Errorf("dsl: run_agent %q: %w", stmt.Name, err)
	}

	if escalated != nil && len(stmt.OnEscalate) > 0 {
		returned, value, err := i.execBody(ctx, wc, stmt.OnEscalate)
		if err != nil {
			return err
		}
		if returned {
			finalText = stringifyInput(value)
		}
	}

	wc.setLastResult(finalText)
	if stmt.Target != "" {
		wc.SetVar(stmt.Target, finalText)
	}
	return nil
}

// execParallel implements spec.md §4.5's Parallel statement: every body
// entry's input is evaluated eagerly (sequentially, before any agent
// starts), every agent then runs concurrently, and each spec's result is
// copied into vars[target] once the whole composite completes. Results
// for specs with no Target are dropped.
func (i *Interpreter) execParallel(ctx context.Context, wc *WorkflowContext, stmt ir.Parallel) error {
	if i.Agents == nil {
		return fmt.Errorf("dsl: parallel invoked with no AgentRunner configured")
	}

	type branch struct {
		spec   ir.RunAgent
		input  string
		result string
	}
	branches := make([]branch, len(stmt.Body))
	for idx, ra := range stmt.Body {
		if ra.IsFlow {
			return fmt.Errorf("dsl: parallel body entry %q is a flow; spec.md §4.5 requires RunAgent specs only", ra.Name)
		}
		var input any
		if ra.Input != nil {
			v, err := Eval(wc, ra.Input)
			if err != nil {
				return err
			}
			input = v
		}
		branches[idx] = branch{spec: ra, input: stringifyInput(input)}
	}

	var wg sync.WaitGroup
	errs := make([]error, len(branches))
	for idx := range branches {
		b := &branches[idx]
		agentSpec, ok := i.Program.Agents[b.spec.Name]
		if !ok {
			errs[idx] = fmt.Errorf("dsl: parallel references unknown agent %q", b.spec.Name)
			continue
		}
		wg.Add(1)
		go func(b *branch, agentSpec ir.AgentSpec) {
			defer wg.Done()
			events, errc := i.Agents.RunAgent(ctx, agentSpec, b.input)
			var finalText string
			for e := range events {
				i.emit(e)
				if e.IsFinal {
					finalText = e.Text()
				}
			}
			if err := <-errc; err != nil {
				errs[idx] = fmt.Errorf("dsl: parallel agent %q: %w", b.spec.Name, err)
				return
			}
			b.result = finalText
		}(b, agentSpec)
	}
	wg.Wait()

	if err := apperrors.NewAggregate(errs); err != nil {
		return err
	}

	for _, b := range branches {
		if b.spec.Target != "" {
			wc.SetVar(b.spec.Target, b.result)
		}
	}
	return nil
}

func (i *Interpreter) emit(e model.Event) {
	if i.Emit != nil {
		i.Emit(e)
	}
}

func stringifyInput(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", s)
	}
}
