// Package engine ties rule evaluation, dedupe gating, safety interlocks,
// and action dispatch together. Subjects enter through ProcessSubject
// regardless of origin: the scan orchestrator feeds it page by page and
// webhook ingress feeds it one subject at a time, both through the same
// decision path.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mastowatch/mastowatch/automod/auditstore"
	"github.com/mastowatch/mastowatch/automod/countstore"
	"github.com/mastowatch/mastowatch/automod/dedupestore"
	"github.com/mastowatch/mastowatch/automod/detector"
	"github.com/mastowatch/mastowatch/automod/event"
	"github.com/mastowatch/mastowatch/automod/flagstore"
	"github.com/mastowatch/mastowatch/automod/rules"
)

const (
	defaultDedupeRetention = 24 * time.Hour
	defaultActionTimeout   = 30 * time.Second
)

// ActionRequest is what gets handed to the platform collaborator when a
// decision survives dedupe and the safety gate.
type ActionRequest struct {
	SubjectID  string
	ActionType string
	Comment    string
	RuleIDs    []uint
	StatusIDs  []string
	// Forward asks the platform to forward a report to the subject's
	// origin instance, for remote accounts.
	Forward bool
}

// PlatformClient is the external moderation API binding.
type PlatformClient interface {
	// ApplyAction dispatches an enforcement action and returns an
	// external reference (eg, a report ID) when the platform provides one.
	ApplyAction(ctx context.Context, req *ActionRequest) (string, error)
	// UndoAction reverses a previously applied timed action.
	UndoAction(ctx context.Context, subjectID, actionType string) error
}

type Engine struct {
	Logger *slog.Logger

	Rules     rules.Source
	Detectors *detector.Set
	Dedupe    dedupestore.DedupeStore
	Flags     flagstore.FlagStore
	Counters  countstore.CountStore
	Platform  PlatformClient
	Audit     auditstore.AuditStore
	Actions   EnforcementStore
	Reversals ReversalStore

	// DedupeRetention is how long a violation fingerprint blocks repeat
	// enforcement. ActionTimeout bounds a single dispatch attempt.
	DedupeRetention time.Duration
	ActionTimeout   time.Duration
	// SilenceDuration, when positive, schedules automatic reversal of
	// silence actions after this long.
	SilenceDuration time.Duration
	// DailyActionQuota bounds total dispatched actions per day across
	// all subjects (0 = unlimited).
	DailyActionQuota int
	// ForwardRemoteReports forwards reports on remote accounts to their
	// origin instance.
	ForwardRemoteReports bool
}

func (eng *Engine) dedupeRetention() time.Duration {
	if eng.DedupeRetention > 0 {
		return eng.DedupeRetention
	}
	return defaultDedupeRetention
}

func (eng *Engine) actionTimeout() time.Duration {
	if eng.ActionTimeout > 0 {
		return eng.ActionTimeout
	}
	return defaultActionTimeout
}

// ProcessSubject runs one subject through evaluation, tier selection,
// dedupe, the safety gate, and (when all of those pass) action dispatch.
// The returned Outcome describes what happened; a non-nil error means the
// subject could not be evaluated at all.
func (eng *Engine) ProcessSubject(ctx context.Context, sub *event.Subject, safety SafetySnapshot) (*Outcome, error) {
	if sub.ID == "" {
		return nil, fmt.Errorf("subject missing ID")
	}
	eng.trackActivity(ctx, sub)

	active, hash, err := eng.Rules.ListActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading active rules: %w", err)
	}
	score, evidence := eng.evaluateRules(ctx, sub, active)
	subjectsScanned.Inc()
	if len(evidence) == 0 {
		return &Outcome{SubjectID: sub.ID, RulesetHash: hash}, nil
	}
	return eng.decide(ctx, sub, active, score, evidence, hash, safety)
}

// trackActivity feeds the behavioral counters as subjects flow through,
// so post-frequency rules see activity accumulated across cycles.
func (eng *Engine) trackActivity(ctx context.Context, sub *event.Subject) {
	for _, st := range sub.Statuses {
		if err := eng.Counters.IncrementDistinct(ctx, detector.CounterSubjectPosts, sub.ID, st.ID); err != nil {
			eng.Logger.Warn("activity counter update failed", "subject", sub.ID, "err", err)
			return
		}
	}
}

// RecordInterlock audits a safety flag change. Flag flips come from the
// admin API or operator tooling; both funnel through here.
func (eng *Engine) RecordInterlock(ctx context.Context, flag string, val bool) {
	result := "disabled"
	if val {
		result = "enabled"
	}
	err := eng.Audit.Record(ctx, &auditstore.Entry{
		EventType:  auditstore.EventInterlock,
		Suppressed: flag,
		Result:     result,
	})
	if err != nil {
		eng.Logger.Error("interlock audit write failed", "flag", flag, "err", err)
	}
	eng.Logger.Warn("safety interlock changed", "flag", flag, "enabled", val)
}
