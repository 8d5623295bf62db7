package exec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/streetrace-ai/streetrace-go/runtime/dsl/exec"
	"github.com/streetrace-ai/streetrace-go/runtime/dsl/ir"
)

func TestDetectDriftFalseWhenNoGoalSet(t *testing.T) {
	wc := exec.NewContext(&ir.Program{}, nil, nil, nil, nil)
	assert.False(t, wc.DetectDrift("anything at all"))
}

func TestDetectDriftFalseWhenOnTopic(t *testing.T) {
	wc := exec.NewContext(&ir.Program{}, nil, nil, nil, nil)
	wc.SetGoal("migrate the billing database to postgres")
	assert.False(t, wc.DetectDrift("continuing the postgres billing database migration now"))
}

func TestDetectDriftTrueWhenOffTopic(t *testing.T) {
	wc := exec.NewContext(&ir.Program{}, nil, nil, nil, nil)
	wc.SetGoal("migrate the billing database to postgres")
	assert.True(t, wc.DetectDrift("let's talk about the weather forecast this weekend"))
}
