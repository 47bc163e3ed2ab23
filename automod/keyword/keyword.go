package keyword

import (
	"slices"
	"strings"
	"unicode"
)

// Helper to check a single token against a list of tokens
func TokenInSet(tok string, set []string) bool {
	return slices.Contains(set, tok)
}

// MatchWholeToken reports whether token occurs in text bounded by
// non-word characters (or string edges) on both sides. "spam" matches
// "spam deals" but not "spammer only".
func MatchWholeToken(text, token string, caseSensitive bool) bool {
	if token == "" {
		return false
	}
	if !caseSensitive {
		return TokenInSet(Slugify(token), TokenizeText(text))
	}
	for i := 0; i+len(token) <= len(text); {
		j := strings.Index(text[i:], token)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(token)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		i = start + 1
	}
	return false
}

// MatchSubstring reports simple containment, honoring case sensitivity.
func MatchSubstring(text, token string, caseSensitive bool) bool {
	if token == "" {
		return false
	}
	if caseSensitive {
		return strings.Contains(text, token)
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(token))
}

func boundaryBefore(text string, idx int) bool {
	if idx == 0 {
		return true
	}
	r := []rune(text[:idx])
	return !isWordRune(r[len(r)-1])
}

func boundaryAfter(text string, idx int) bool {
	if idx >= len(text) {
		return true
	}
	r := []rune(text[idx:])
	return !isWordRune(r[0])
}

func isWordRune(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsNumber(c)
}
