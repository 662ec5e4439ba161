// Package scoring turns a (reference, candidate) pair of answers into a
// similarity score and maps scores to marks, feedback and letter grades.
package scoring

import (
	"strings"
	"unicode"
)

// Normalize lower-cases text, collapses whitespace runs to one space, drops
// everything except ASCII letters, digits and spaces, and trims the result.
//
// Whitespace is collapsed before punctuation is dropped, so "a - b" becomes
// "a  b". Tokenizers downstream split on runs of spaces.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	var collapsed strings.Builder
	collapsed.Grow(len(text))
	inSpace := false
	for _, r := range strings.ToLower(text) {
		if unicode.IsSpace(r) {
			if !inSpace {
				collapsed.WriteByte(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		collapsed.WriteRune(r)
	}

	var out strings.Builder
	out.Grow(collapsed.Len())
	for _, r := range collapsed.String() {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			out.WriteRune(r)
		}
	}
	return strings.TrimSpace(out.String())
}

// tokenSet returns the distinct whitespace-delimited tokens of s.
func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
