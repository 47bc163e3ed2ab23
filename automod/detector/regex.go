package detector

import (
	"context"
	"fmt"
	"regexp"

	"github.com/mastowatch/mastowatch/automod/event"
	"github.com/mastowatch/mastowatch/automod/rules"

	"github.com/puzpuzpuz/xsync/v3"
)

// Bounds on user-supplied expressions. Go's regexp is RE2 and therefore
// evaluates in time linear in the input, but a huge pattern or input can
// still stall a cycle, so both are capped and a violation is treated as
// a detector error (rule skipped).
const (
	maxRegexPatternLen = 1024
	maxRegexInputLen   = 1 << 14
)

var regexCache = xsync.NewMapOf[string, *regexp.Regexp]()

func compileBounded(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	if len(pattern) > maxRegexPatternLen {
		return nil, fmt.Errorf("regex pattern exceeds %d bytes", maxRegexPatternLen)
	}
	expr := pattern
	if !caseSensitive {
		expr = "(?i)" + pattern
	}
	if re, ok := regexCache.Load(expr); ok {
		return re, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	regexCache.Store(expr, re)
	return re, nil
}

func clampInput(text string) string {
	if len(text) > maxRegexInputLen {
		return text[:maxRegexInputLen]
	}
	return text
}

// evaluateRegex applies a user-supplied expression over the rule's target
// fields with the same field scoping as the keyword detector.
func (d *Set) evaluateRegex(ctx context.Context, sub *event.Subject, rule *rules.Rule, pattern string) (*event.Evidence, error) {
	re, err := compileBounded(pattern, rule.MatchOptions.CaseSensitive)
	if err != nil {
		return nil, &Error{RuleID: rule.ID, RuleName: rule.Name, Err: err}
	}

	for _, field := range rule.TargetFields {
		if field == event.FieldContent {
			for _, st := range sub.Statuses {
				text := clampInput(st.Content)
				if re.MatchString(text) {
					return &event.Evidence{
						MatchedField: field,
						Snippet:      re.FindString(text),
						StatusID:     st.ID,
					}, nil
				}
			}
			continue
		}
		text := clampInput(sub.FieldText(field))
		if text != "" && re.MatchString(text) {
			return &event.Evidence{
				MatchedField: field,
				Snippet:      re.FindString(text),
			}, nil
		}
	}
	return nil, nil
}
