package keyword

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonTokenChars = regexp.MustCompile(`[^\pL\pN\s]+`)
	nonSlugChars  = regexp.MustCompile(`[^\pL\pN]+`)
)

// Slugify lower-cases a string and strips everything that is not a
// letter or digit, giving a bare comparable token.
func Slugify(orig string) string {
	return strings.ToLower(nonSlugChars.ReplaceAllString(orig, ""))
}

// Splits free-form text in to tokens, including lower-case, unicode normalization, and some unicode folding.
//
// The intent is for this to work similarly to an NLP tokenizer, as might be used in a fulltext search engine, and enable fast matching to a list of known tokens.
func TokenizeText(text string) []string {
	// the transform chain needs to be re-created on every call to prevent a race condition
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	split := strings.ToLower(nonTokenChars.ReplaceAllString(text, " "))
	bare := strings.ToLower(nonTokenChars.ReplaceAllString(split, ""))
	out, _, err := transform.String(normFunc, bare)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		out = bare
	}
	return strings.Fields(out)
}

func splitIdentRune(c rune) bool {
	return !unicode.IsLetter(c) && !unicode.IsNumber(c)
}

// Splits an identifier in to tokens. Removes any single-character tokens.
//
// For example, spam-bot.example.com would be split in to ["spam", "bot", "example", "com"]
func TokenizeIdentifier(orig string) []string {
	fields := strings.FieldsFunc(orig, splitIdentRune)
	out := make([]string, 0, len(fields))
	for _, v := range fields {
		tok := Slugify(v)
		if len(tok) > 1 {
			out = append(out, tok)
		}
	}
	return out
}
