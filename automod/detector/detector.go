// Package detector implements the closed set of rule evaluators:
// keyword, regex, behavioral, and media. Dispatch is an exhaustive
// switch over the detector type; there is no open-ended registration.
package detector

import (
	"context"
	"fmt"

	"github.com/mastowatch/mastowatch/automod/countstore"
	"github.com/mastowatch/mastowatch/automod/event"
	"github.com/mastowatch/mastowatch/automod/rules"
	"github.com/mastowatch/mastowatch/automod/setstore"
)

// Error marks a rule as unevaluable (bad pattern, malformed params).
// The evaluator skips the offending rule and continues; it is never
// process-fatal.
type Error struct {
	RuleID   uint
	RuleName string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("detector error in rule %q (%d): %v", e.RuleName, e.RuleID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Set bundles the external state detectors read: activity counters for
// behavioral metrics and named word lists for set-driven keyword rules.
type Set struct {
	Counters countstore.CountStore
	Sets     setstore.SetStore
}

// Evaluate runs one detector invocation for the given pattern. The
// pattern is passed explicitly so the evaluator can re-invoke the same
// detector with a rule's secondary_pattern for boolean composition.
// Returns nil Evidence when the rule did not match.
func (d *Set) Evaluate(ctx context.Context, sub *event.Subject, rule *rules.Rule, pattern string) (*event.Evidence, error) {
	var ev *event.Evidence
	var err error
	switch rule.DetectorType {
	case rules.DetectorKeyword:
		ev, err = d.evaluateKeyword(ctx, sub, rule, pattern)
	case rules.DetectorRegex:
		ev, err = d.evaluateRegex(ctx, sub, rule, pattern)
	case rules.DetectorBehavioral:
		ev, err = d.evaluateBehavioral(ctx, sub, rule, pattern)
	case rules.DetectorMedia:
		ev, err = d.evaluateMedia(ctx, sub, rule)
	default:
		return nil, &Error{RuleID: rule.ID, RuleName: rule.Name, Err: fmt.Errorf("unknown detector type %q", rule.DetectorType)}
	}
	if err != nil {
		return nil, err
	}
	if ev != nil {
		ev.RuleID = rule.ID
		ev.RuleName = rule.Name
		if ev.MatchStrength == 0 {
			ev.MatchStrength = 1.0
		}
	}
	return ev, nil
}
