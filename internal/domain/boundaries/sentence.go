package boundaries

import (
	"strings"

	"github.com/t114/support-clip/internal/types"
)

// Rules decides whether a segment's text ends a sentence. Implementations
// carry locale-specific punctuation; the detector itself assumes nothing
// about script.
type Rules interface {
	EndsSentence(text string) bool
}

// PunctuationRules ends a sentence on any trailing rune from Terminators,
// after stripping trailing quotes/brackets, or on an embedded line break.
type PunctuationRules struct {
	Terminators string
	trimTail    string
}

// DefaultRules covers Japanese and Latin sentence-final punctuation, matching
// the streams this engine was built for.
func DefaultRules() PunctuationRules {
	return PunctuationRules{
		Terminators: "。！？.!?",
		trimTail:    "\"'`」』)]}",
	}
}

func (r PunctuationRules) EndsSentence(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	if strings.Contains(text, "\n") {
		return true
	}
	trimTail := r.trimTail
	if trimTail == "" {
		trimTail = "\"'`」』)]}"
	}
	runes := []rune(t)
	for len(runes) > 0 && strings.ContainsRune(trimTail, runes[len(runes)-1]) {
		runes = runes[:len(runes)-1]
	}
	if len(runes) == 0 {
		return false
	}
	return strings.ContainsRune(r.Terminators, runes[len(runes)-1])
}

// DetectSentences emits a boundary at the end of every segment whose text
// matches the rules. These are candidates only; false positives are
// reconciled by the merger.
func DetectSentences(segments []types.Segment, rules Rules) []types.Boundary {
	if rules == nil {
		rules = DefaultRules()
	}
	var out []types.Boundary
	for _, seg := range segments {
		if rules.EndsSentence(seg.Text) {
			out = append(out, types.Boundary{Time: seg.End, Source: types.SourceSentence})
		}
	}
	return out
}
