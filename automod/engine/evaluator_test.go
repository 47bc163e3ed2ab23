package engine

import (
	"context"
	"testing"

	"github.com/mastowatch/mastowatch/automod/event"
	"github.com/mastowatch/mastowatch/automod/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateSubjectDeterministic(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	ruleSet := []rules.Rule{
		bioSpamRule(),
		{
			ID:           2,
			Name:         "bot-name",
			Enabled:      true,
			DetectorType: rules.DetectorRegex,
			Pattern:      `bot\d+$`,
			TargetFields: []string{event.FieldUsername},
			Weight:       1.5,
			ActionType:   rules.ActionReport,
		},
	}
	eng := EngineTestFixture(ruleSet)
	sub := &event.Subject{ID: "1", Username: "helperbot99", Bio: "spam for sale"}

	score1, ev1, hash1, err := eng.EvaluateSubject(ctx, sub)
	require.NoError(t, err)
	score2, ev2, hash2, err := eng.EvaluateSubject(ctx, sub)
	require.NoError(t, err)

	assert.Equal(score1, score2)
	assert.Equal(ev1, ev2)
	assert.Equal(hash1, hash2)
	assert.Equal(3.5, score1)
	require.Len(t, ev1, 2)
	// evidence ordered by rule evaluation order
	assert.Equal(uint(1), ev1[0].RuleID)
	assert.Equal(uint(2), ev1[1].RuleID)
}

func TestCompositeRuleAnd(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	composite := rules.Rule{
		ID:               3,
		Name:             "bot-with-spam-bio",
		Enabled:          true,
		DetectorType:     rules.DetectorRegex,
		Pattern:          `bot\d+$`,
		SecondaryPattern: "spam",
		BooleanOperator:  rules.OperatorAnd,
		TargetFields:     []string{event.FieldUsername, event.FieldBio},
		Weight:           3.0,
		TriggerThreshold: 2.0,
		ActionType:       rules.ActionSilence,
	}
	eng := EngineTestFixture([]rules.Rule{composite})

	// both match
	score, ev, _, err := eng.EvaluateSubject(ctx, &event.Subject{ID: "1", Username: "sellbot42", Bio: "spam here"})
	require.NoError(t, err)
	assert.Equal(3.0, score)
	require.Len(t, ev, 1)

	// primary only
	score, ev, _, err = eng.EvaluateSubject(ctx, &event.Subject{ID: "2", Username: "sellbot42", Bio: "legit"})
	require.NoError(t, err)
	assert.Zero(score)
	assert.Empty(ev)

	// secondary only
	score, ev, _, err = eng.EvaluateSubject(ctx, &event.Subject{ID: "3", Username: "normal", Bio: "spam here"})
	require.NoError(t, err)
	assert.Zero(score)
	assert.Empty(ev)
}

func TestCompositeRuleOr(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	composite := rules.Rule{
		ID:               4,
		Name:             "either",
		Enabled:          true,
		DetectorType:     rules.DetectorKeyword,
		Pattern:          "viagra",
		SecondaryPattern: "casino",
		BooleanOperator:  rules.OperatorOr,
		TargetFields:     []string{event.FieldBio},
		Weight:           1.0,
		ActionType:       rules.ActionReport,
	}
	eng := EngineTestFixture([]rules.Rule{composite})

	score, ev, _, err := eng.EvaluateSubject(ctx, &event.Subject{ID: "1", Bio: "visit my casino"})
	require.NoError(t, err)
	assert.Equal(1.0, score)
	require.Len(t, ev, 1)
	assert.Equal("casino", ev[0].Snippet)
}

func TestDisabledRuleNotEvaluated(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	disabled := bioSpamRule()
	disabled.ID = 9
	disabled.Name = "bio-spam-disabled"
	disabled.Enabled = false
	eng := EngineTestFixture([]rules.Rule{disabled, bioSpamRule()})

	score, ev, _, err := eng.EvaluateSubject(ctx, spammySubject("1"))
	require.NoError(t, err)
	assert.Equal(2.0, score)
	require.Len(t, ev, 1)
	assert.Equal(uint(1), ev[0].RuleID)
}

func TestDetectorErrorSkipsRuleOnly(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	ruleSet := []rules.Rule{
		{
			ID:           5,
			Name:         "broken-regex",
			Enabled:      true,
			DetectorType: rules.DetectorRegex,
			Pattern:      `([`,
			TargetFields: []string{event.FieldBio},
			Weight:       9.0,
			ActionType:   rules.ActionSuspend,
		},
		bioSpamRule(),
	}
	eng := EngineTestFixture(ruleSet)

	score, ev, _, err := eng.EvaluateSubject(ctx, spammySubject("1"))
	require.NoError(t, err)
	assert.Equal(2.0, score)
	require.Len(t, ev, 1)
	assert.Equal(uint(1), ev[0].RuleID)
}

func TestSelectActionHighestTier(t *testing.T) {
	assert := assert.New(t)
	active := []rules.Rule{
		{ID: 1, TriggerThreshold: 1.0, ActionType: rules.ActionReport},
		{ID: 2, TriggerThreshold: 3.0, ActionType: rules.ActionSuspend},
		{ID: 3, TriggerThreshold: 2.0, ActionType: rules.ActionSilence},
	}
	evidence := []event.Evidence{{RuleID: 1}, {RuleID: 2}, {RuleID: 3}}

	assert.Equal(rules.ActionSuspend, selectAction(active, evidence, 5.0))
	// suspend threshold unmet, silence wins
	assert.Equal(rules.ActionSilence, selectAction(active, evidence, 2.5))
	assert.Equal(rules.ActionReport, selectAction(active, evidence, 1.0))
	assert.Empty(selectAction(active, evidence, 0.5))
}

func TestFingerprintStable(t *testing.T) {
	assert := assert.New(t)
	a := Fingerprint("42", []uint{3, 1, 2}, "report")
	b := Fingerprint("42", []uint{1, 2, 3}, "report")
	assert.Equal(a, b)
	assert.NotEqual(a, Fingerprint("42", []uint{1, 2, 3}, "suspend"))
	assert.NotEqual(a, Fingerprint("43", []uint{1, 2, 3}, "report"))
}
