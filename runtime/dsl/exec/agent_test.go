package exec_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetrace-ai/streetrace-go/runtime/dsl/exec"
	"github.com/streetrace-ai/streetrace-go/runtime/dsl/ir"
	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
)

// fakeAgentRunner scripts one reply per agent name.
type fakeAgentRunner struct {
	replies   map[string]string
	escalate  map[string]bool
	seenInput map[string]string
}

func (f *fakeAgentRunner) RunAgent(ctx context.Context, spec ir.AgentSpec, input string) (<-chan model.Event, <-chan error) {
	if f.seenInput == nil {
		f.seenInput = map[string]string{}
	}
	f.seenInput[spec.Name] = input
	events := make(chan model.Event, 2)
	errc := make(chan error, 1)
	if f.escalate[spec.Name] {
		events <- model.Event{Author: "assistant", Escalate: true, Content: []model.Part{model.TextPart{Text: "need human"}}}
	}
	events <- model.Event{
		Author:  "assistant",
		IsFinal: true,
		Content: []model.Part{model.TextPart{Text: f.replies[spec.Name]}},
	}
	close(events)
	errc <- nil
	return events, errc
}

func agentProgram() *ir.Program {
	return &ir.Program{
		Agents: map[string]ir.AgentSpec{
			"researcher": {Name: "researcher"},
			"writer":     {Name: "writer"},
		},
		Prompts: map[string]ir.PromptSpec{},
		Schemas: map[string]ir.SchemaDef{},
		Models:  map[string]ir.ModelRef{},
		Flows:   map[string]ir.Flow{},
	}
}

func TestExecRunAgentBindsTargetToFinalText(t *testing.T) {
	program := agentProgram()
	runner := &fakeAgentRunner{replies: map[string]string{"researcher": "the answer is 42"}}
	interp := exec.NewInterpreter(program, nil, runner)
	wc := exec.NewContext(program, nil, nil, nil, nil)

	flow := ir.Flow{Body: []ir.Statement{ir.RunAgent{Name: "researcher", Target: "result"}}}
	_, err := interp.ExecuteFlow(context.Background(), wc, flow)
	require.NoError(t, err)

	v, ok := wc.GetVar("result")
	require.True(t, ok)
	assert.Equal(t, "the answer is 42", v)
}

func TestExecRunAgentEscalationInvokesOnEscalateHandler(t *testing.T) {
	program := agentProgram()
	runner := &fakeAgentRunner{
		replies:  map[string]string{"researcher": "final text"},
		escalate: map[string]bool{"researcher": true},
	}
	interp := exec.NewInterpreter(program, nil, runner)
	wc := exec.NewContext(program, nil, nil, nil, nil)

	flow := ir.Flow{Body: []ir.Statement{
		ir.RunAgent{
			Name:   "researcher",
			Target: "result",
			OnEscalate: []ir.Statement{
				ir.Return{Value: ir.Lit{Value: "escalated-override"}},
			},
		},
	}}
	_, err := interp.ExecuteFlow(context.Background(), wc, flow)
	require.NoError(t, err)

	v, _ := wc.GetVar("result")
	assert.Equal(t, "escalated-override", v)
}

func TestExecRunAgentFlowRecursesWithSharedVars(t *testing.T) {
	program := agentProgram()
	program.Flows["sub"] = ir.Flow{Body: []ir.Statement{
		ir.Assign{Target: "from_sub", Expr: ir.Lit{Value: "set-by-sub"}},
	}}
	interp := exec.NewInterpreter(program, nil, nil)
	wc := exec.NewContext(program, nil, nil, nil, nil)

	flow := ir.Flow{Body: []ir.Statement{ir.RunAgent{Name: "sub", IsFlow: true}}}
	_, err := interp.ExecuteFlow(context.Background(), wc, flow)
	require.NoError(t, err)

	v, ok := wc.GetVar("from_sub")
	require.True(t, ok)
	assert.Equal(t, "set-by-sub", v)
}

func TestExecParallelBindsEachTargetAndDropsNullTargets(t *testing.T) {
	program := agentProgram()
	runner := &fakeAgentRunner{replies: map[string]string{
		"researcher": "research done",
		"writer":     "draft done",
	}}
	interp := exec.NewInterpreter(program, nil, runner)
	wc := exec.NewContext(program, nil, nil, nil, nil)

	flow := ir.Flow{Body: []ir.Statement{
		ir.Parallel{Body: []ir.RunAgent{
			{Name: "researcher", Target: "r"},
			{Name: "writer"}, // no target: result dropped
		}},
	}}
	_, err := interp.ExecuteFlow(context.Background(), wc, flow)
	require.NoError(t, err)

	v, ok := wc.GetVar("r")
	require.True(t, ok)
	assert.Equal(t, "research done", v)
	_, ok = wc.GetVar("writer")
	assert.False(t, ok)
}

func TestExecParallelUnknownAgentAggregatesError(t *testing.T) {
	program := agentProgram()
	runner := &fakeAgentRunner{replies: map[string]string{"researcher": "ok"}}
	interp := exec.NewInterpreter(program, nil, runner)
	wc := exec.NewContext(program, nil, nil, nil, nil)

	flow := ir.Flow{Body: []ir.Statement{
		ir.Parallel{Body: []ir.RunAgent{
			{Name: "researcher", Target: "r"},
			{Name: "does-not-exist", Target: "x"},
		}},
	}}
	_, err := interp.ExecuteFlow(context.Background(), wc, flow)
	require.Error(t, err)
}
