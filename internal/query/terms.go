package query

import (
	"strings"
	"unicode"
)

// negationWindow is how many words before a term a negation cue may sit.
const negationWindow = 3

var negationCues = map[string]bool{
	"no":      true,
	"not":     true,
	"non":     true,
	"without": true,
	"never":   true,
	"nor":     true,
	"denies":  true,
	"isn":     true,
	"wasn":    true,
}

// clauseBreaks end the reach of a negation cue within a clause.
var clauseBreaks = map[string]bool{
	"but":      true,
	"however":  true,
	"although": true,
	"though":   true,
	"yet":      true,
}

// MentionsAny reports whether text mentions any of terms as whole words.
// Matching is case-insensitive and the last word of a term may take a
// plural "s" or "es", so "hip" matches "hips" but not "membership".
func MentionsAny(text string, terms []string) bool {
	return mentions(text, terms, false)
}

// MentionsAffirmed is MentionsAny ignoring negated mentions: a term
// preceded within the same clause by "not", "no", "non-", "without" or a
// similar cue does not count.
func MentionsAffirmed(text string, terms []string) bool {
	return mentions(text, terms, true)
}

func mentions(text string, terms []string, skipNegated bool) bool {
	clauses := splitClauses(text)
	for _, term := range terms {
		tw := tokens(term)
		if len(tw) == 0 {
			continue
		}
		for _, cw := range clauses {
			for i := 0; i+len(tw) <= len(cw); i++ {
				if !matchAt(cw, i, tw) {
					continue
				}
				if skipNegated && negated(cw, i) {
					continue
				}
				return true
			}
		}
	}
	return false
}

func matchAt(words []string, at int, term []string) bool {
	last := len(term) - 1
	for j, t := range term {
		w := words[at+j]
		if w == t {
			continue
		}
		if j == last && (w == t+"s" || w == t+"es") {
			continue
		}
		return false
	}
	return true
}

func negated(words []string, at int) bool {
	for i := at - 1; i >= 0 && i >= at-negationWindow; i-- {
		if clauseBreaks[words[i]] {
			return false
		}
		if negationCues[words[i]] {
			return true
		}
	}
	return false
}

// splitClauses lowercases text and splits it into clauses of words at
// sentence and clause punctuation.
func splitClauses(text string) [][]string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return strings.ContainsRune(".,;:!?()\n", r)
	})
	out := make([][]string, 0, len(parts))
	for _, p := range parts {
		if w := tokens(p); len(w) > 0 {
			out = append(out, w)
		}
	}
	return out
}

func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
