// Package tokencount is the opaque text -> count capability (spec.md §7).
// No tokenizer library appears anywhere in the corpus; a heuristic
// stdlib-only counter is the justified default (see DESIGN.md).
package tokencount

// Counter estimates the number of tokens a text would consume in a
// language-model context window.
type Counter interface {
	Count(text string) int
}

// Heuristic approximates token count as ceil(len(text) / charsPerToken),
// the common rule-of-thumb ratio for English text on BPE-style
// tokenizers (~4 characters per token).
type Heuristic struct {
	charsPerToken int
}

// NewHeuristic constructs a Heuristic counter. charsPerToken <= 0 falls
// back to 4.
func NewHeuristic(charsPerToken int) *Heuristic {
	if charsPerToken <= 0 {
		charsPerToken = 4
	}
	return &Heuristic{charsPerToken: charsPerToken}
}

func (h *Heuristic) Count(text string) int {
	if text == "" {
		return 0
	}
	n := len(text)
	return (n + h.charsPerToken - 1) / h.charsPerToken
}
