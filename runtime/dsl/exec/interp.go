package exec

import (
	"context"
	"fmt"

	"github.com/streetrace-ai/streetrace-go/runtime/dsl/ir"
	"github.com/streetrace-ai/streetrace-go/runtime/llm"
	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
)

// Interpreter executes a Program's flows against a WorkflowContext,
// driving Call statements through Client and RunAgent statements through
// Agents.
type Interpreter struct {
	Program *ir.Program
	Client  llm.Client
	Agents  AgentRunner

	// Emit, if set, is called with every event a RunAgent/Parallel branch
	// produces and with the pre- and post-call FlowNotice events of each
	// Call statement, giving the caller a uniform upward event stream per
	// spec.md §4.5 "stream its events upward".
	Emit func(model.Event)

	schemas *schemaCache
}

// NewInterpreter builds an Interpreter for program. client drives Call
// statements; agents drives RunAgent/Parallel (may be nil if the workflow
// never runs a non-flow agent).
func NewInterpreter(program *ir.Program, client llm.Client, agents AgentRunner) *Interpreter {
	return &Interpreter{
		Program: program,
		Client:  client,
		Agents:  agents,
		schemas: newSchemaCache(),
	}
}

// ExecuteFlow runs flow.Body against wc to completion, returning either
// the value of an explicit Return statement or, if none was reached, the
// context's final last_result (spec.md §4.5 doesn't name a default flow
// result explicitly; last_result is the natural fallback since every
// statement form that produces a value also updates it).
func (i *Interpreter) ExecuteFlow(ctx context.Context, wc *WorkflowContext, flow ir.Flow) (any, error) {
	returned, value, err := i.execBody(ctx, wc, flow.Body)
	if err != nil {
		return nil, err
	}
	if returned {
		return value, nil
	}
	return wc.LastResult(), nil
}

// execBody runs body statements in order against wc. returned is true iff
// a Return statement (directly, or via a nested Loop/For/If) was reached;
// in that case value is the Return's value (nil if none given) and
// execution of any remaining statements is skipped.
func (i *Interpreter) execBody(ctx context.Context, wc *WorkflowContext, body []ir.Statement) (returned bool, value any, err error) {
	for _, st := range body {
		if err := ctx.Err(); err != nil {
			return false, nil, err
		}

		switch s := st.(type) {
		case ir.Assign:
			v, err := Eval(wc, s.Expr)
			if err != nil {
				return false, nil, err
			}
			wc.SetVar(s.Target, v)

		case ir.ExprStatement:
			if _, err := Eval(wc, s.Expr); err != nil {
				return false, nil, err
			}

		case ir.Call:
			if err := i.execCall(ctx, wc, s); err != nil {
				return false, nil, err
			}

		case ir.RunAgent:
			if err := i.execRunAgent(ctx, wc, s); err != nil {
				return false, nil, err
			}

		case ir.Parallel:
			if err := i.execParallel(ctx, wc, s); err != nil {
				return false, nil, err
			}

		case ir.Push:
			if err := i.execPush(wc, s); err != nil {
				return false, nil, err
			}

		case ir.Loop:
			r, v, err := i.execLoop(ctx, wc, s)
			if err != nil {
				return false, nil, err
			}
			if r {
				return true, v, nil
			}

		case ir.For:
			r, v, err := i.execFor(ctx, wc, s)
			if err != nil {
				return false, nil, err
			}
			if r {
				return true, v, nil
			}

		case ir.If:
			cond, err := Eval(wc, s.Cond)
			if err != nil {
				return false, nil, err
			}
			branch := s.Else
			if truthy(cond) {
				branch = s.Then
			}
			r, v, err := i.execBody(ctx, wc, branch)
			if err != nil {
				return false, nil, err
			}
			if r {
				return true, v, nil
			}

		case ir.Return:
			var v any
			if s.Value != nil {
				var err error
				v, err = Eval(wc, s.Value)
				if err != nil {
					return false, nil, err
				}
			}
			return true, v, nil

		default:
			return false, nil, fmt.Errorf("dsl: unsupported statement %T", st)
		}
	}
	return false, nil, nil
}

func (i *Interpreter) execPush(wc *WorkflowContext, s ir.Push) error {
	existing, ok := wc.GetVar(s.Target)
	if !ok {
		return fmt.Errorf("dsl: push target %q is unbound", s.Target)
	}
	list, ok := existing.([]any)
	if !ok {
		return fmt.Errorf("dsl: push target %q is not a sequence (got %T)", s.Target, existing)
	}
	v, err := Eval(wc, s.Value)
	if err != nil {
		return err
	}
	wc.SetVar(s.Target, append(list, v))
	return nil
}

// execLoop implements spec.md §4.5's Loop: iterate Body, capped at MaxIter
// if set, until a Return is seen or the cap is reached.
func (i *Interpreter) execLoop(ctx context.Context, wc *WorkflowContext, s ir.Loop) (bool, any, error) {
	limit := -1
	if s.MaxIter != nil {
		v, err := Eval(wc, s.MaxIter)
		if err != nil {
			return false, nil, err
		}
		n, ok := asNumber(v)
		if !ok {
			return false, nil, fmt.Errorf("dsl: loop max_iter must be numeric, got %T", v)
		}
		limit = int(n)
	}

	for iter := 0; limit < 0 || iter < limit; iter++ {
		if err := ctx.Err(); err != nil {
			return false, nil, err
		}
		returned, value, err := i.execBody(ctx, wc, s.Body)
		if err != nil {
			return false, nil, err
		}
		if returned {
			return true, value, nil
		}
	}
	return false, nil, nil
}

// execFor implements spec.md §4.5's For: bind Var (stripped of any "$") to
// each element of Iterable in turn.
func (i *Interpreter) execFor(ctx context.Context, wc *WorkflowContext, s ir.For) (bool, any, error) {
	iterable, err := Eval(wc, s.Iterable)
	if err != nil {
		return false, nil, err
	}
	items, ok := asList(iterable)
	if !ok {
		return false, nil, fmt.Errorf("dsl: for requires an ordered sequence, got %T", iterable)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return false, nil, err
		}
		wc.SetVar(s.Var, item)
		returned, value, err := i.execBody(ctx, wc, s.Body)
		if err != nil {
			return false, nil, err
		}
		if returned {
			return true, value, nil
		}
	}
	return false, nil, nil
}
