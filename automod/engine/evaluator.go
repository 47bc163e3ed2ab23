package engine

import (
	"context"
	"errors"

	"github.com/mastowatch/mastowatch/automod/detector"
	"github.com/mastowatch/mastowatch/automod/event"
	"github.com/mastowatch/mastowatch/automod/rules"
)

// EvaluateSubject scores a subject against the current cached rule
// snapshot and returns the total score, the evidence list in rule
// evaluation order, and the ruleset version hash. Deterministic for a
// fixed rule set and subject snapshot.
func (eng *Engine) EvaluateSubject(ctx context.Context, sub *event.Subject) (float64, []event.Evidence, string, error) {
	active, hash, err := eng.Rules.ListActiveRules(ctx)
	if err != nil {
		return 0, nil, "", err
	}
	score, evidence := eng.evaluateRules(ctx, sub, active)
	return score, evidence, hash, nil
}

func (eng *Engine) evaluateRules(ctx context.Context, sub *event.Subject, active []rules.Rule) (float64, []event.Evidence) {
	var total float64
	var out []event.Evidence

	for i := range active {
		rule := &active[i]
		// database sources pre-filter on enabled, static sources do not
		if !rule.Enabled {
			continue
		}
		ev := eng.evaluateRule(ctx, sub, rule)
		if ev == nil {
			continue
		}
		ev.ScoreContribution = rule.Weight * ev.MatchStrength
		total += ev.ScoreContribution
		out = append(out, *ev)
		evidenceProduced.WithLabelValues(rule.Name).Inc()
	}
	return total, out
}

// evaluateRule runs the rule's detector(s), combining the primary and
// secondary results per the rule's boolean operator. A detector error
// skips this rule only; the remaining rules still evaluate.
func (eng *Engine) evaluateRule(ctx context.Context, sub *event.Subject, rule *rules.Rule) *event.Evidence {
	primary, err := eng.Detectors.Evaluate(ctx, sub, rule, rule.Pattern)
	if err != nil {
		eng.logDetectorError(rule, err)
		return nil
	}
	if rule.SecondaryPattern == "" {
		return primary
	}

	secondary, err := eng.Detectors.Evaluate(ctx, sub, rule, rule.SecondaryPattern)
	if err != nil {
		eng.logDetectorError(rule, err)
		return nil
	}

	switch rule.BooleanOperator {
	case rules.OperatorAnd:
		if primary == nil || secondary == nil {
			return nil
		}
		return primary
	case rules.OperatorOr:
		if primary != nil {
			return primary
		}
		return secondary
	default:
		return primary
	}
}

func (eng *Engine) logDetectorError(rule *rules.Rule, err error) {
	detectorErrors.WithLabelValues(rule.DetectorType).Inc()
	var derr *detector.Error
	if errors.As(err, &derr) {
		eng.Logger.Warn("detector failed, skipping rule", "rule", derr.RuleName, "ruleID", derr.RuleID, "err", derr.Err)
		return
	}
	eng.Logger.Warn("detector failed, skipping rule", "rule", rule.Name, "ruleID", rule.ID, "err", err)
}
