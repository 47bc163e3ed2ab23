package detector

import (
	"context"
	"fmt"

	"github.com/mastowatch/mastowatch/automod/countstore"
	"github.com/mastowatch/mastowatch/automod/event"
	"github.com/mastowatch/mastowatch/automod/rules"
)

// Counter namespaces maintained by the engine as subjects pass through
// it, read back here as behavioral metrics.
const (
	CounterSubjectPosts   = "subject-posts"
	CounterSubjectTargets = "subject-targets"
)

// Behavioral metric selectors; the rule pattern picks one.
const (
	BehaviorRapidPosting    = "rapid_posting"
	BehaviorDailyPosting    = "daily_posting"
	BehaviorInteractionSpam = "interaction_spam"
	BehaviorFollowRatio     = "follow_ratio"
)

// evaluateBehavioral computes a continuous metric over the rule's time
// window and compares it to the configured threshold. Unlike the boolean
// detectors, the resulting match strength is the metric/threshold ratio
// and feeds directly into the score contribution.
func (d *Set) evaluateBehavioral(ctx context.Context, sub *event.Subject, rule *rules.Rule, pattern string) (*event.Evidence, error) {
	var metric float64
	var threshold float64
	var err error

	period := countstore.PeriodDay
	if rule.Behavioral.TimeWindowHours <= 1 {
		period = countstore.PeriodHour
	}

	switch pattern {
	case BehaviorRapidPosting, BehaviorDailyPosting:
		var c int
		if pattern == BehaviorRapidPosting {
			period = countstore.PeriodHour
		}
		c, err = d.Counters.GetCountDistinct(ctx, CounterSubjectPosts, sub.ID, period)
		metric = float64(c)
		threshold = float64(rule.Behavioral.PostThreshold)
	case BehaviorInteractionSpam:
		var c int
		c, err = d.Counters.GetCountDistinct(ctx, CounterSubjectTargets, sub.ID, period)
		metric = float64(c)
		threshold = float64(rule.Behavioral.TargetThreshold)
		if threshold == 0 {
			threshold = float64(rule.Behavioral.PostThreshold)
		}
	case BehaviorFollowRatio:
		followers := sub.FollowersCount
		if followers < 1 {
			followers = 1
		}
		metric = float64(sub.FollowingCount) / float64(followers)
		threshold = float64(rule.Behavioral.PostThreshold)
	default:
		return nil, &Error{RuleID: rule.ID, RuleName: rule.Name, Err: fmt.Errorf("unknown behavioral metric %q", pattern)}
	}
	if err != nil {
		return nil, &Error{RuleID: rule.ID, RuleName: rule.Name, Err: err}
	}
	if threshold <= 0 {
		return nil, &Error{RuleID: rule.ID, RuleName: rule.Name, Err: fmt.Errorf("behavioral threshold not configured")}
	}

	if metric < threshold {
		return nil, nil
	}
	return &event.Evidence{
		MatchedField:  pattern,
		MetricValue:   metric,
		MatchStrength: metric / threshold,
	}, nil
}
