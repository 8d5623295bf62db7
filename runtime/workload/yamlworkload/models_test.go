package yamlworkload

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test_value")
	assert.Equal(t, "test_value", expandEnvVars("${TEST_VAR}"))
	assert.Equal(t, "default_value", expandEnvVars("${NONEXISTENT_VAR:-default_value}"))
	assert.Equal(t, "plain text", expandEnvVars("plain text"))
}

func TestExpandEnvVarsExistingTakesPrecedenceOverDefault(t *testing.T) {
	t.Setenv("EXISTING_VAR", "existing_value")
	assert.Equal(t, "existing_value", expandEnvVars("${EXISTING_VAR:-default_value}"))
}

func TestExpandEnvVarsMultiple(t *testing.T) {
	t.Setenv("VAR1", "value1")
	t.Setenv("VAR2", "value2")
	assert.Equal(t, "value1 and value2", expandEnvVars("${VAR1} and ${VAR2}"))
}

func TestParseMinimalSpec(t *testing.T) {
	spec, err := parseYamlAgentSpec([]byte(`
name: test_agent
description: A test agent
`))
	require.NoError(t, err)
	assert.Equal(t, 1, spec.Version)
	assert.Equal(t, "agent", spec.Kind)
	assert.Equal(t, "test_agent", spec.Name)
	assert.Empty(t, spec.Model)
	assert.Empty(t, spec.Tools)
	assert.Empty(t, spec.SubAgents)
}

func TestParseFullSpec(t *testing.T) {
	spec, err := parseYamlAgentSpec([]byte(`
name: complex_agent
description: A complex agent
model: gpt-4
instruction: You are a helpful assistant
global_instruction: Global system message
prompt: Default user prompt for this agent
tools:
  - streetrace:
      module: fs_tool
      function: read_file
`))
	require.NoError(t, err)
	assert.Equal(t, "complex_agent", spec.Name)
	assert.Equal(t, "gpt-4", spec.Model)
	assert.Equal(t, "You are a helpful assistant", spec.Instruction)
	assert.Equal(t, "Global system message", spec.GlobalInstruction)
	assert.Equal(t, "Default user prompt for this agent", spec.Prompt)
	require.Len(t, spec.Tools, 1)
}

func TestNameValidationValid(t *testing.T) {
	for _, name := range []string{"agent", "my_agent", "Agent123", "_agent", "a"} {
		_, err := parseYamlAgentSpec([]byte("name: " + name + "\ndescription: test\n"))
		assert.NoError(t, err, name)
	}
}

func TestNameValidationInvalid(t *testing.T) {
	for _, name := range []string{"123agent", "my-agent", "my.agent", "my agent"} {
		_, err := parseYamlAgentSpec([]byte("name: \"" + name + "\"\ndescription: test\n"))
		assert.Error(t, err, name)
	}
}

func TestInstructionEnvExpansion(t *testing.T) {
	t.Setenv("SYSTEM_MSG", "Be helpful")
	t.Setenv("USER_PROMPT", "Analyze this code")

	spec, err := parseYamlAgentSpec([]byte(`
name: test
description: test
instruction: "You are an assistant. ${SYSTEM_MSG:-Be nice}"
global_instruction: "${SYSTEM_MSG}"
prompt: "${USER_PROMPT:-Review the code}"
`))
	require.NoError(t, err)
	assert.Contains(t, spec.Instruction, "Be helpful")
	assert.Equal(t, "Be helpful", spec.GlobalInstruction)
	assert.Equal(t, "Analyze this code", spec.Prompt)

	require.NoError(t, os.Unsetenv("USER_PROMPT"))
	spec2, err := parseYamlAgentSpec([]byte(`
name: test2
description: test
prompt: "${USER_PROMPT:-Review the code}"
`))
	require.NoError(t, err)
	assert.Equal(t, "Review the code", spec2.Prompt)
}

func TestOutputSchemaWithToolsRejected(t *testing.T) {
	_, err := parseYamlAgentSpec([]byte(`
name: test
description: test
adk:
  output_schema: TestSchema
tools:
  - streetrace:
      module: test
      function: test
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output_schema")
	assert.Contains(t, err.Error(), "tools")
}

func TestOutputSchemaWithSubAgentsRejected(t *testing.T) {
	_, err := parseYamlAgentSpec([]byte(`
name: test
description: test
adk:
  output_schema: TestSchema
sub_agents:
  - agent:
      name: sub
      description: sub
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output_schema")
	assert.Contains(t, err.Error(), "sub_agents")
}

func TestToolSpecValidation(t *testing.T) {
	both := ToolSpec{
		Streetrace: &StreetraceToolSpec{Module: "m", Function: "f"},
		MCP:        &McpToolSpec{Name: "n", Tools: []string{"t"}},
	}
	assert.Error(t, both.validate())

	neither := ToolSpec{}
	assert.Error(t, neither.validate())
}
