package search

import (
	"unicode"
	"unicode/utf8"
)

// Highlight returns a window of at most maxLen bytes of content, starting a little
// before the first query token it contains. Truncated ends are marked with "...".
// The window never splits a rune.
func Highlight(content, query string, maxLen int) string {
	if maxLen <= 0 || len(content) <= maxLen {
		return content
	}
	start := -1
	for tok := range Tokenize(query) {
		if i := indexFold(content, tok); i >= 0 && (start < 0 || i < start) {
			start = i
		}
	}
	if start < 0 {
		return content[:runeFloor(content, maxLen)] + "..."
	}
	start -= maxLen / 4
	if start < 0 {
		start = 0
	}
	if start+maxLen > len(content) {
		start = len(content) - maxLen
	}
	start = runeCeil(content, start)
	end := runeFloor(content, start+maxLen)
	out := content[start:end]
	if start > 0 {
		out = "..." + out
	}
	if end < len(content) {
		out += "..."
	}
	return out
}

// indexFold returns the byte offset in s of the first case-insensitive match of
// the lowercase token tok, or -1.
func indexFold(s, tok string) int {
	if tok == "" {
		return -1
	}
	for i := 0; i < len(s); {
		if hasPrefixFold(s[i:], tok) {
			return i
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return -1
}

func hasPrefixFold(s, tok string) bool {
	for _, want := range tok {
		if s == "" {
			return false
		}
		r, size := utf8.DecodeRuneInString(s)
		if unicode.ToLower(r) != want {
			return false
		}
		s = s[size:]
	}
	return true
}

// runeFloor moves i back to the start of the rune containing it.
func runeFloor(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// runeCeil moves i forward to the next rune start.
func runeCeil(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}
