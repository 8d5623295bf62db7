package exec

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/streetrace-ai/streetrace-go/runtime/apperrors"
)

// fencedBlockPattern matches a triple-backtick fenced code block, with or
// without a language label on the opening fence.
var fencedBlockPattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\n?(.*?)```")

// extractJSON applies spec.md §4.5's "JSON parsing rules (schema-validated
// Call)": strip whitespace; if the content contains exactly one fenced
// code block, extract its body; more than one fenced block is an error;
// parse the result as JSON.
func extractJSON(content string) (any, error) {
	trimmed := strings.TrimSpace(content)

	matches := fencedBlockPattern.FindAllStringSubmatch(trimmed, -1)
	switch len(matches) {
	case 0:
		// no fenced block: parse the trimmed content directly
	case 1:
		trimmed = strings.TrimSpace(matches[0][1])
	default:
		return nil, apperrors.NewJSONParseError("multiple code blocks", content)
	}

	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, apperrors.NewJSONParseError(err.Error(), content)
	}
	return parsed, nil
}
