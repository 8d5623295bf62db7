// Package exec implements the DSL Workflow Runtime (C7): a WorkflowContext
// carrying a Program's vars/models/prompts/schemas/agents/tools tables, and
// an Interpreter executing a compiled ir.Flow's statements against it.
//
// Grounded on original_source/.../dsl/runtime/context.py's GuardrailProvider
// and WorkflowContext classes for behavior, and on
// original_source/.../dsl/runtime/compacting_runner.py's (already ported as
// runtime/compaction) channel-based event streaming for RunAgent.
package exec

import (
	"regexp"
	"strings"
)

// GuardrailProvider exposes the two guardrail operations spec.md §4.5's
// Context section requires: PII masking and jailbreak detection. Unknown
// kinds log a warning; Mask returns its input unchanged and Check returns
// false, per spec.
type GuardrailProvider interface {
	Mask(kind, text string) string
	Check(kind, text string) bool
}

// regexGuardrails is the default GuardrailProvider: regex-only PII masking
// and jailbreak detection, matching
// original_source/.../dsl/runtime/context.py's GuardrailProvider exactly.
// Swappable for an LLM-backed provider per spec.md §9's design note.
type regexGuardrails struct {
	warn func(kind string)
}

// NewGuardrailProvider builds the default regex-based GuardrailProvider.
// warn, if non-nil, is called with the unrecognized kind whenever Mask or
// Check is asked to handle one; it may be nil to discard the warning.
func NewGuardrailProvider(warn func(kind string)) GuardrailProvider {
	return &regexGuardrails{warn: warn}
}

// Credit-card pattern must run before the SSN/phone/email patterns: a
// 16-digit card number (possibly grouped in 4s) would otherwise be
// partially matched by the shorter SSN/phone patterns first, per spec.md
// §4.5's explicit ordering note.
var (
	creditCardPattern = regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)
	ssnPattern        = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	phonePattern      = regexp.MustCompile(`\b(?:\+?1[-. ]?)?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`)
	emailPattern      = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
)

var jailbreakPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+instructions`),
	regexp.MustCompile(`(?i)act\s+as\s+dan\b`),
	regexp.MustCompile(`(?i)pretend\s+(that\s+)?you\s+(have\s+no|have no)\s+restrictions`),
	regexp.MustCompile(`(?i)(show|reveal)\s+(me\s+)?(your\s+)?system\s+prompt`),
	regexp.MustCompile(`(?i)bypass\s+(your\s+)?safety`),
	regexp.MustCompile(`(?i)jailbreak`),
	regexp.MustCompile(`(?i)ignore\s+(your\s+)?(ethics|guidelines)`),
}

// Mask applies regex-based redaction for kind "pii": credit card, then
// SSN, then phone, then email. Unknown kinds return text unchanged.
func (g *regexGuardrails) Mask(kind, text string) string {
	if !strings.EqualFold(kind, "pii") {
		g.warnUnknown(kind)
		return text
	}
	text = creditCardPattern.ReplaceAllString(text, "[CREDIT_CARD]")
	text = ssnPattern.ReplaceAllString(text, "[SSN]")
	text = phonePattern.ReplaceAllString(text, "[PHONE]")
	text = emailPattern.ReplaceAllString(text, "[EMAIL]")
	return text
}

// Check matches text against the jailbreak pattern list for kind
// "jailbreak". Unknown kinds return false.
func (g *regexGuardrails) Check(kind, text string) bool {
	if !strings.EqualFold(kind, "jailbreak") {
		g.warnUnknown(kind)
		return false
	}
	for _, p := range jailbreakPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func (g *regexGuardrails) warnUnknown(kind string) {
	if g.warn != nil {
		g.warn(kind)
	}
}
