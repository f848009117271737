package index

import (
	"strings"
	"unicode"
)

// tokenize lowercases text and splits it into maximal runs of word
// characters — letters, digits, and underscore — discarding everything
// else. Tokens preserve their order of appearance and may repeat; both
// properties matter for term-frequency counting downstream.
func tokenize(text string) []string {
	lower := strings.ToLower(text)

	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	for _, r := range lower {
		if isWordRune(r) {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
