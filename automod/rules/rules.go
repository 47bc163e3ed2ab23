// Package rules defines the typed rule model consumed by the evaluator,
// plus loading and caching of the active rule set. Rules are created and
// edited by an external rule-management API; this package only reads them.
package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mastowatch/mastowatch/automod/event"
	"github.com/mastowatch/mastowatch/models"
)

const (
	DetectorKeyword    = "keyword"
	DetectorRegex      = "regex"
	DetectorBehavioral = "behavioral"
	DetectorMedia      = "media"
)

const (
	OperatorAnd = "AND"
	OperatorOr  = "OR"
)

// Enforcement tiers, lowest to highest.
const (
	ActionReport  = "report"
	ActionSilence = "silence"
	ActionSuspend = "suspend"
)

// ActionTier orders action types for tier selection; unknown actions rank
// lowest so a malformed rule can never escalate enforcement.
func ActionTier(action string) int {
	switch action {
	case ActionReport:
		return 1
	case ActionSilence:
		return 2
	case ActionSuspend:
		return 3
	default:
		return 0
	}
}

type MatchOptions struct {
	CaseSensitive  bool `json:"case_sensitive"`
	WordBoundaries bool `json:"word_boundaries"`
}

type BehavioralParams struct {
	TimeWindowHours int `json:"time_window_hours"`
	PostThreshold   int `json:"post_threshold"`
	// distinct interaction targets before the interaction-spam metric trips
	TargetThreshold int `json:"target_threshold"`
}

type MediaParams struct {
	RequireAltText   bool     `json:"require_alt_text"`
	AllowedMimeTypes []string `json:"allowed_mime_types"`
}

// Rule is the typed, validated form of a detection rule. The external
// rule-management boundary validates shapes at creation time, so the
// evaluator never handles malformed parameter blobs.
type Rule struct {
	ID               uint
	Name             string
	Enabled          bool
	DetectorType     string
	Pattern          string
	SecondaryPattern string
	BooleanOperator  string
	TargetFields     []string
	MatchOptions     MatchOptions
	Behavioral       BehavioralParams
	Media            MediaParams
	Weight           float64
	TriggerThreshold float64
	ActionType       string
}

func (r *Rule) Validate() error {
	switch r.DetectorType {
	case DetectorKeyword, DetectorRegex, DetectorBehavioral, DetectorMedia:
	default:
		return fmt.Errorf("unknown detector type: %q", r.DetectorType)
	}
	// secondary pattern and boolean operator are both present or both absent
	if (r.SecondaryPattern == "") != (r.BooleanOperator == "") {
		return fmt.Errorf("rule %q: secondary_pattern and boolean_operator must be paired", r.Name)
	}
	if r.BooleanOperator != "" && r.BooleanOperator != OperatorAnd && r.BooleanOperator != OperatorOr {
		return fmt.Errorf("rule %q: unknown boolean operator %q", r.Name, r.BooleanOperator)
	}
	if r.Weight < 0 {
		return fmt.Errorf("rule %q: negative weight", r.Name)
	}
	if r.ActionType != "" && ActionTier(r.ActionType) == 0 {
		return fmt.Errorf("rule %q: unknown action type %q", r.Name, r.ActionType)
	}
	return nil
}

// FromModel decodes a stored rule row into the typed form, applying
// defaults for optional parameter blobs.
func FromModel(m *models.Rule) (Rule, error) {
	r := Rule{
		ID:               m.ID,
		Name:             m.Name,
		Enabled:          m.Enabled,
		DetectorType:     m.DetectorType,
		Pattern:          m.Pattern,
		SecondaryPattern: m.SecondaryPattern,
		BooleanOperator:  m.BooleanOperator,
		Weight:           m.Weight,
		TriggerThreshold: m.TriggerThreshold,
		ActionType:       m.ActionType,
	}
	if r.ActionType == "" {
		r.ActionType = ActionReport
	}
	if m.TargetFields != "" {
		if err := json.Unmarshal([]byte(m.TargetFields), &r.TargetFields); err != nil {
			return r, fmt.Errorf("rule %q: decoding target_fields: %w", m.Name, err)
		}
	}
	if len(r.TargetFields) == 0 {
		r.TargetFields = event.AllTargetFields()
	}
	if m.MatchOptions != "" {
		if err := json.Unmarshal([]byte(m.MatchOptions), &r.MatchOptions); err != nil {
			return r, fmt.Errorf("rule %q: decoding match_options: %w", m.Name, err)
		}
	}
	if m.BehavioralParams != "" {
		if err := json.Unmarshal([]byte(m.BehavioralParams), &r.Behavioral); err != nil {
			return r, fmt.Errorf("rule %q: decoding behavioral_params: %w", m.Name, err)
		}
	}
	if m.MediaParams != "" {
		if err := json.Unmarshal([]byte(m.MediaParams), &r.Media); err != nil {
			return r, fmt.Errorf("rule %q: decoding media_params: %w", m.Name, err)
		}
	}
	if err := r.Validate(); err != nil {
		return r, err
	}
	return r, nil
}

// RulesetHash produces a stable version identifier for a rule set, so
// audit entries can pin the exact rules that produced them.
func RulesetHash(ruleset []Rule) string {
	lines := make([]string, 0, len(ruleset))
	for _, r := range ruleset {
		lines = append(lines, fmt.Sprintf("%d:%s:%f:%t", r.ID, r.Pattern, r.Weight, r.Enabled))
	}
	sort.Strings(lines)
	sum := sha256.Sum256([]byte(strings.Join(lines, "|")))
	return hex.EncodeToString(sum[:])
}
