// Package event defines the subject and evidence types which flow through
// the moderation engine, independent of where a subject came from (admin
// listing poll or webhook delivery).
package event

import (
	"strings"
	"time"
)

// Field names that detection rules can target.
const (
	FieldUsername    = "username"
	FieldDisplayName = "display_name"
	FieldBio         = "bio"
	FieldContent     = "content"
)

// AllTargetFields is the default scope for rules which do not restrict
// target_fields.
func AllTargetFields() []string {
	return []string{FieldUsername, FieldDisplayName, FieldBio, FieldContent}
}

// Subject is an account under evaluation, together with its recent
// statuses. Subjects sourced from admin listings always carry the admin
// metadata fields; the evaluator must never receive a stripped-down view.
type Subject struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Acct        string    `json:"acct"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio"`
	CreatedAt   time.Time `json:"created_at"`

	FollowersCount int64 `json:"followers_count"`
	FollowingCount int64 `json:"following_count"`
	StatusesCount  int64 `json:"statuses_count"`

	// admin metadata (present when sourced from admin listings)
	Email     string `json:"email,omitempty"`
	IP        string `json:"ip,omitempty"`
	Confirmed bool   `json:"confirmed,omitempty"`
	Suspended bool   `json:"suspended,omitempty"`

	Statuses []Status `json:"statuses,omitempty"`
}

// Domain returns the instance domain for the account, or "local" for
// accounts without a domain part.
func (s *Subject) Domain() string {
	if idx := strings.LastIndex(s.Acct, "@"); idx >= 0 {
		return s.Acct[idx+1:]
	}
	return "local"
}

func (s *Subject) IsRemote() bool {
	return strings.Contains(s.Acct, "@")
}

// FieldText returns the text for a rule-targetable account-level field.
// Status content is handled separately (one status at a time).
func (s *Subject) FieldText(field string) string {
	switch field {
	case FieldUsername:
		return s.Username
	case FieldDisplayName:
		return s.DisplayName
	case FieldBio:
		return s.Bio
	default:
		return ""
	}
}

type Status struct {
	ID          string       `json:"id"`
	Content     string       `json:"content"`
	CreatedAt   time.Time    `json:"created_at"`
	Attachments []Attachment `json:"media_attachments,omitempty"`
}

type Attachment struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	MimeType    string `json:"mime_type"`
	Description string `json:"description"`
}

// Evidence is proof that a rule matched a subject. At most one Evidence
// is produced per rule per subject per evaluation pass.
type Evidence struct {
	RuleID       uint    `json:"rule_id"`
	RuleName     string  `json:"rule_name"`
	MatchedField string  `json:"matched_field"`
	Snippet      string  `json:"snippet,omitempty"`
	StatusID     string  `json:"status_id,omitempty"`
	MetricValue  float64 `json:"metric_value,omitempty"`
	// MatchStrength is 1.0 for boolean detectors and a computed ratio for
	// behavioral detectors.
	MatchStrength     float64 `json:"match_strength"`
	ScoreContribution float64 `json:"score_contribution"`
}
