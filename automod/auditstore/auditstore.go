// Package auditstore is the append-only record of every decision
// outcome, action attempt, and interlock state change. Recording never
// gates enforcement; callers log write failures and move on.
package auditstore

import (
	"context"
	"time"

	"github.com/mastowatch/mastowatch/automod/event"
)

const (
	EventDecision  = "decision"
	EventAction    = "action"
	EventInterlock = "interlock"
)

type Entry struct {
	SubjectID   string
	EventType   string
	ActionType  string
	Score       float64
	RuleHits    []event.Evidence
	RulesetHash string
	DryRun      bool
	// Suppressed carries the suppression reason, empty when the action
	// was (or would have been) dispatched.
	Suppressed string
	Result     string
	CreatedAt  time.Time
}

type AuditStore interface {
	Record(ctx context.Context, e *Entry) error
}
