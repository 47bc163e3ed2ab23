package models

import (
	"time"

	"gorm.io/gorm"
)

// Rule is a single detection rule, managed externally (rule-management API)
// and only read by the scanning core.
type Rule struct {
	gorm.Model
	Name         string `gorm:"uniqueindex"`
	Enabled      bool   `gorm:"index"`
	DetectorType string
	Pattern      string
	// optional second pattern; always paired with BooleanOperator
	SecondaryPattern string
	BooleanOperator  string
	// JSON-encoded detector parameter blobs; decoded into typed structs by
	// automod/rules before the evaluator ever sees them
	TargetFields     string
	MatchOptions     string
	BehavioralParams string
	MediaParams      string
	Weight           float64
	TriggerThreshold float64
	ActionType       string
	TriggerCount     int64
	LastTriggeredAt  *time.Time
	CreatedBy        string
}

// Account mirrors the subset of account info the scanner persists as it
// walks admin listing pages.
type Account struct {
	gorm.Model
	PlatformAccountID string `gorm:"uniqueindex"`
	Acct              string
	Domain            string `gorm:"index"`
	LastCheckedAt     time.Time
}

// ScanSession holds durable pagination state, one row per session type.
type ScanSession struct {
	gorm.Model
	SessionType    string `gorm:"uniqueindex"`
	Cursor         string
	TotalProcessed int64
	State          string
	StartedAt      *time.Time
	FinishedAt     *time.Time
	LastError      string
}

// DedupeRecord blocks repeat enforcement for the same violation
// fingerprint while inside the retention window.
type DedupeRecord struct {
	ID          uint   `gorm:"primarykey"`
	Fingerprint string `gorm:"uniqueindex"`
	SubjectID   string `gorm:"index"`
	ActionType  string
	CreatedAt   time.Time
	ExpiresAt   time.Time `gorm:"index"`
}

// EnforcementAction is created once per decision and immutable after the
// result is recorded.
type EnforcementAction struct {
	ID          string `gorm:"primarykey"`
	SubjectID   string `gorm:"index"`
	ActionType  string
	RuleHits    string
	DryRun      bool
	Result      string
	ExternalRef string
	CreatedAt   time.Time
}

// AuditLog rows are append-only; one row per decision outcome or interlock
// state change.
type AuditLog struct {
	ID          uint   `gorm:"primarykey"`
	SubjectID   string `gorm:"index"`
	EventType   string `gorm:"index"`
	ActionType  string
	Score       float64
	RuleHits    string
	RulesetHash string
	DryRun      bool
	Suppressed  string
	Result      string
	CreatedAt   time.Time `gorm:"index"`
}

// ScheduledReversal undoes a timed action (eg, silence with a duration)
// after it expires.
type ScheduledReversal struct {
	gorm.Model
	SubjectID     string `gorm:"index"`
	ActionToUndo  string
	ExpiresAt     time.Time `gorm:"index"`
	Completed     bool      `gorm:"index"`
	EnforcementID string
}
