package detector

import (
	"context"
	"strings"

	"github.com/mastowatch/mastowatch/automod/event"
	"github.com/mastowatch/mastowatch/automod/keyword"
	"github.com/mastowatch/mastowatch/automod/rules"
)

// evaluateKeyword matches a comma-separated token set against the rule's
// target fields. A pattern element of the form "set:<name>" matches any
// token from the named word list. The first matching field/token wins.
func (d *Set) evaluateKeyword(ctx context.Context, sub *event.Subject, rule *rules.Rule, pattern string) (*event.Evidence, error) {
	terms := splitPattern(pattern)
	if len(terms) == 0 {
		return nil, nil
	}

	for _, field := range rule.TargetFields {
		if field == event.FieldContent {
			for _, st := range sub.Statuses {
				tok, err := d.matchTerms(ctx, st.Content, terms, rule.MatchOptions)
				if err != nil {
					return nil, &Error{RuleID: rule.ID, RuleName: rule.Name, Err: err}
				}
				if tok != "" {
					return &event.Evidence{
						MatchedField: field,
						Snippet:      tok,
						StatusID:     st.ID,
					}, nil
				}
			}
			continue
		}
		tok, err := d.matchTerms(ctx, sub.FieldText(field), terms, rule.MatchOptions)
		if err != nil {
			return nil, &Error{RuleID: rule.ID, RuleName: rule.Name, Err: err}
		}
		if tok != "" {
			return &event.Evidence{
				MatchedField: field,
				Snippet:      tok,
			}, nil
		}
	}
	return nil, nil
}

// matchTerms returns the first term matching the text, or "".
func (d *Set) matchTerms(ctx context.Context, text string, terms []string, opts rules.MatchOptions) (string, error) {
	if text == "" {
		return "", nil
	}
	for _, term := range terms {
		if name, ok := strings.CutPrefix(term, "set:"); ok {
			tok, err := d.matchSet(ctx, text, name)
			if err != nil || tok != "" {
				return tok, err
			}
			continue
		}
		if opts.WordBoundaries {
			if keyword.MatchWholeToken(text, term, opts.CaseSensitive) {
				return term, nil
			}
		} else if keyword.MatchSubstring(text, term, opts.CaseSensitive) {
			return term, nil
		}
	}
	return "", nil
}

// matchSet checks every token of the text against a named word list.
func (d *Set) matchSet(ctx context.Context, text, setName string) (string, error) {
	for _, tok := range keyword.TokenizeText(text) {
		hit, err := d.Sets.InSet(ctx, setName, tok)
		if err != nil {
			return "", err
		}
		if hit {
			return tok, nil
		}
	}
	return "", nil
}

func splitPattern(pattern string) []string {
	var out []string
	for _, t := range strings.Split(pattern, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
