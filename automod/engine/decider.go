package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/mastowatch/mastowatch/automod/auditstore"
	"github.com/mastowatch/mastowatch/automod/countstore"
	"github.com/mastowatch/mastowatch/automod/event"
	"github.com/mastowatch/mastowatch/automod/rules"
)

// Suppression reasons recorded on outcomes and audit rows.
const (
	SuppressDuplicate   = "duplicate"
	SuppressDedupeError = "dedupe-error"
	SuppressDryRun      = "dry-run"
	SuppressQuota       = "quota"
)

// Counter tracking enforcement volume, for the daily action quota.
const counterActionsTaken = "actions-taken"

// Outcome is the full decision record for one subject pass.
type Outcome struct {
	SubjectID   string
	Score       float64
	Evidence    []event.Evidence
	RulesetHash string
	ActionType  string
	Fingerprint string
	Suppressed  string
	Result      string
	ExternalRef string
}

// decide selects an action tier, gates it through dedupe and the safety
// snapshot, and dispatches it when everything passes. Every path through
// here writes an audit entry.
func (eng *Engine) decide(ctx context.Context, sub *event.Subject, active []rules.Rule, score float64, evidence []event.Evidence, hash string, safety SafetySnapshot) (*Outcome, error) {
	out := &Outcome{
		SubjectID:   sub.ID,
		Score:       score,
		Evidence:    evidence,
		RulesetHash: hash,
	}

	out.ActionType = selectAction(active, evidence, score)
	if out.ActionType == "" {
		// matched rules exist but none reached its trigger threshold
		eng.audit(ctx, out, auditstore.EventDecision, safety.DryRun)
		return out, nil
	}

	ruleIDs := make([]uint, 0, len(evidence))
	for _, ev := range evidence {
		ruleIDs = append(ruleIDs, ev.RuleID)
	}
	out.Fingerprint = Fingerprint(sub.ID, ruleIDs, out.ActionType)

	fresh, err := eng.Dedupe.CheckAndRecord(ctx, out.Fingerprint, sub.ID, out.ActionType, eng.dedupeRetention())
	if err != nil {
		// fail-closed: suppressing is always safer than a duplicate action
		eng.Logger.Error("dedupe store error, suppressing action", "subject", sub.ID, "err", err)
		out.Suppressed = SuppressDedupeError
		suppressedActions.WithLabelValues(SuppressDedupeError).Inc()
		eng.audit(ctx, out, auditstore.EventDecision, safety.DryRun)
		return out, nil
	}
	if !fresh {
		out.Suppressed = SuppressDuplicate
		suppressedActions.WithLabelValues(SuppressDuplicate).Inc()
		eng.audit(ctx, out, auditstore.EventDecision, safety.DryRun)
		return out, nil
	}

	if safety.DryRun {
		out.Suppressed = SuppressDryRun
		out.Result = "dry-run"
		eng.recordEnforcement(ctx, out, true)
		eng.audit(ctx, out, auditstore.EventAction, true)
		return out, nil
	}

	if eng.overQuota(ctx) {
		eng.Logger.Warn("daily action quota reached, suppressing", "subject", sub.ID, "action", out.ActionType)
		out.Suppressed = SuppressQuota
		suppressedActions.WithLabelValues(SuppressQuota).Inc()
		eng.audit(ctx, out, auditstore.EventDecision, false)
		return out, nil
	}

	eng.dispatch(ctx, sub, out)
	eng.audit(ctx, out, auditstore.EventAction, false)
	return out, nil
}

// selectAction returns the highest action tier among rules that matched
// and whose trigger threshold is met by the total score. Rules without a
// satisfied threshold contribute score but never escalate.
func selectAction(active []rules.Rule, evidence []event.Evidence, score float64) string {
	byID := make(map[uint]*rules.Rule, len(active))
	for i := range active {
		byID[active[i].ID] = &active[i]
	}
	var action string
	for _, ev := range evidence {
		rule := byID[ev.RuleID]
		if rule == nil || score < rule.TriggerThreshold {
			continue
		}
		if rules.ActionTier(rule.ActionType) > rules.ActionTier(action) {
			action = rule.ActionType
		}
	}
	return action
}

// overQuota checks the daily enforcement quota. Acts as a volume circuit
// breaker: a runaway rule set stops taking actions instead of flooding
// the moderation queue. Counter errors do not block dispatch; dedupe is
// the correctness gate, the quota is a volume bound.
func (eng *Engine) overQuota(ctx context.Context) bool {
	if eng.DailyActionQuota <= 0 {
		return false
	}
	count, err := eng.Counters.GetCount(ctx, counterActionsTaken, "global", countstore.PeriodDay)
	if err != nil {
		eng.Logger.Warn("reading action quota counter failed", "err", err)
		return false
	}
	return count >= eng.DailyActionQuota
}

// dispatch performs the external action with a per-attempt timeout. The
// HTTP layer underneath retries with backoff and jitter; a final failure
// marks the enforcement record Failed but is never silently dropped.
func (eng *Engine) dispatch(ctx context.Context, sub *event.Subject, out *Outcome) {
	enfID := eng.recordEnforcement(ctx, out, false)

	req := &ActionRequest{
		SubjectID:  sub.ID,
		ActionType: out.ActionType,
		Comment:    actionComment(out),
		Forward:    eng.ForwardRemoteReports && sub.IsRemote(),
	}
	for _, ev := range out.Evidence {
		req.RuleIDs = append(req.RuleIDs, ev.RuleID)
		if ev.StatusID != "" {
			req.StatusIDs = append(req.StatusIDs, ev.StatusID)
		}
	}

	actx, cancel := context.WithTimeout(ctx, eng.actionTimeout())
	defer cancel()
	ref, err := eng.Platform.ApplyAction(actx, req)
	if err != nil {
		eng.Logger.Error("action dispatch failed", "subject", sub.ID, "action", out.ActionType, "err", err)
		out.Result = "failed"
		actionsDispatched.WithLabelValues(out.ActionType, "failed").Inc()
	} else {
		out.Result = "success"
		out.ExternalRef = ref
		actionsDispatched.WithLabelValues(out.ActionType, "success").Inc()
		if err := eng.Counters.Increment(ctx, counterActionsTaken, "global"); err != nil {
			eng.Logger.Warn("incrementing action quota counter failed", "err", err)
		}
		eng.scheduleReversal(ctx, sub.ID, out.ActionType, enfID)
	}
	eng.markEnforcement(ctx, enfID, out)
}

// actionComment builds the report/action comment visible to moderators.
func actionComment(out *Outcome) string {
	names := make([]string, 0, len(out.Evidence))
	for _, ev := range out.Evidence {
		names = append(names, ev.RuleName)
	}
	return fmt.Sprintf("[AUTO] score=%.2f; hits=%s", out.Score, strings.Join(names, ","))
}

func (eng *Engine) audit(ctx context.Context, out *Outcome, eventType string, dryRun bool) {
	err := eng.Audit.Record(ctx, &auditstore.Entry{
		SubjectID:   out.SubjectID,
		EventType:   eventType,
		ActionType:  out.ActionType,
		Score:       out.Score,
		RuleHits:    out.Evidence,
		RulesetHash: out.RulesetHash,
		DryRun:      dryRun,
		Suppressed:  out.Suppressed,
		Result:      out.Result,
	})
	if err != nil {
		// never gates the decision
		eng.Logger.Error("audit write failed", "subject", out.SubjectID, "err", err)
	}
}
