package exec

import "strings"

// driftStopwords is a large common-English stopword set excluded from the
// keyword-overlap comparison, so DetectDrift doesn't flag drift merely
// because two sentences share "the", "a", "and", etc. Grounded on
// original_source/.../dsl/runtime/context.py's detect_drift stopword list.
var driftStopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "if": {},
	"then": {}, "else": {}, "for": {}, "to": {}, "of": {}, "in": {}, "on": {},
	"at": {}, "by": {}, "with": {}, "from": {}, "is": {}, "are": {}, "was": {},
	"were": {}, "be": {}, "been": {}, "being": {}, "it": {}, "its": {}, "this": {},
	"that": {}, "these": {}, "those": {}, "i": {}, "you": {}, "he": {}, "she": {},
	"we": {}, "they": {}, "them": {}, "their": {}, "as": {}, "do": {}, "does": {},
	"did": {}, "have": {}, "has": {}, "had": {}, "will": {}, "would": {}, "can": {},
	"could": {}, "should": {}, "may": {}, "might": {}, "must": {}, "not": {},
	"no": {}, "so": {}, "than": {}, "too": {}, "very": {}, "just": {}, "about": {},
	"into": {}, "over": {}, "after": {}, "before": {}, "up": {}, "down": {},
	"out": {}, "off": {}, "again": {}, "further": {}, "once": {}, "here": {},
	"there": {}, "when": {}, "where": {}, "why": {}, "how": {}, "all": {},
	"any": {}, "both": {}, "each": {}, "few": {}, "more": {}, "most": {},
	"other": {}, "some": {}, "such": {}, "only": {}, "own": {}, "same": {},
	"what": {}, "which": {}, "who": {}, "whom": {}, "my": {}, "your": {},
	"his": {}, "her": {}, "our": {}, "us": {}, "am": {}, "let": {},
}

// driftOverlapThreshold is the minimum keyword-overlap ratio between the
// workflow's goal and the given text for DetectDrift to report no drift.
// Below this ratio, the text is considered to have drifted from the goal.
const driftOverlapThreshold = 0.2

// DetectDrift reports whether text has drifted from the context's Goal: true
// when the keyword-overlap ratio is below driftOverlapThreshold, false when
// the text is on-track. Returns false (no drift) if no
// Goal has been set — there's nothing to drift from. Grounded on
// original_source/.../dsl/runtime/context.py's detect_drift: a
// stopword-filtered keyword-overlap heuristic, not a semantic comparison.
func (c *WorkflowContext) DetectDrift(text string) bool {
	if c.Goal == "" {
		return false
	}
	goalWords := keywordSet(c.Goal)
	if len(goalWords) == 0 {
		return false
	}
	textWords := keywordSet(text)

	overlap := 0
	for w := range goalWords {
		if _, ok := textWords[w]; ok {
			overlap++
		}
	}
	ratio := float64(overlap) / float64(len(goalWords))
	return ratio < driftOverlapThreshold
}

func keywordSet(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, raw := range strings.Fields(strings.ToLower(text)) {
		word := strings.Trim(raw, ".,!?;:\"'()[]{}")
		if word == "" {
			continue
		}
		if _, stop := driftStopwords[word]; stop {
			continue
		}
		out[word] = struct{}{}
	}
	return out
}
