package engine

import (
	"context"
	"testing"

	"github.com/mastowatch/mastowatch/automod/auditstore"
	"github.com/mastowatch/mastowatch/automod/event"
	"github.com/mastowatch/mastowatch/automod/flagstore"
	"github.com/mastowatch/mastowatch/automod/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bioSpamRule() rules.Rule {
	return rules.Rule{
		ID:               1,
		Name:             "bio-spam",
		Enabled:          true,
		DetectorType:     rules.DetectorKeyword,
		Pattern:          "spam,scam",
		TargetFields:     []string{event.FieldBio},
		MatchOptions:     rules.MatchOptions{WordBoundaries: true},
		Weight:           2.0,
		TriggerThreshold: 1.5,
		ActionType:       rules.ActionReport,
	}
}

func spammySubject(id string) *event.Subject {
	return &event.Subject{
		ID:       id,
		Username: "baduser",
		Acct:     "baduser@evil.example",
		Bio:      "contact me for spam deals",
	}
}

func TestProcessSubjectDispatchesOnce(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture([]rules.Rule{bioSpamRule()})
	platform := eng.Platform.(*FakePlatform)

	out, err := eng.ProcessSubject(ctx, spammySubject("101"), SafetySnapshot{})
	require.NoError(t, err)
	assert.Equal(rules.ActionReport, out.ActionType)
	assert.Equal("success", out.Result)
	assert.Equal("ext-ref-1", out.ExternalRef)
	assert.Empty(out.Suppressed)
	require.Len(t, platform.Applied(), 1)
	assert.Equal("101", platform.Applied()[0].SubjectID)

	// same subject, same rules: second pass is suppressed as a duplicate
	out, err = eng.ProcessSubject(ctx, spammySubject("101"), SafetySnapshot{})
	require.NoError(t, err)
	assert.Equal(SuppressDuplicate, out.Suppressed)
	assert.Len(platform.Applied(), 1)

	// audit saw both passes
	audit := eng.Audit.(*auditstore.MemAuditStore).Entries()
	require.Len(t, audit, 2)
	assert.Equal(auditstore.EventAction, audit[0].EventType)
	assert.Equal(auditstore.EventDecision, audit[1].EventType)
	assert.Equal(SuppressDuplicate, audit[1].Suppressed)
}

func TestProcessSubjectDryRun(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture([]rules.Rule{bioSpamRule()})
	platform := eng.Platform.(*FakePlatform)

	out, err := eng.ProcessSubject(ctx, spammySubject("102"), SafetySnapshot{DryRun: true})
	require.NoError(t, err)
	assert.Equal(rules.ActionReport, out.ActionType)
	assert.Equal(SuppressDryRun, out.Suppressed)
	assert.Empty(platform.Applied())

	// decision and fingerprint still computed, enforcement row recorded
	assert.NotEmpty(out.Fingerprint)
	actions := eng.Actions.(*MemEnforcementStore).ActionList()
	require.Len(t, actions, 1)
	assert.True(actions[0].DryRun)

	audit := eng.Audit.(*auditstore.MemAuditStore).Entries()
	require.Len(t, audit, 1)
	assert.True(audit[0].DryRun)
}

func TestProcessSubjectBelowThreshold(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	rule := bioSpamRule()
	rule.TriggerThreshold = 10.0
	eng := EngineTestFixture([]rules.Rule{rule})
	platform := eng.Platform.(*FakePlatform)

	out, err := eng.ProcessSubject(ctx, spammySubject("103"), SafetySnapshot{})
	require.NoError(t, err)
	assert.Equal(2.0, out.Score)
	require.Len(t, out.Evidence, 1)
	assert.Empty(out.ActionType)
	assert.Empty(platform.Applied())

	// evidence without a triggered action is still audited
	audit := eng.Audit.(*auditstore.MemAuditStore).Entries()
	require.Len(t, audit, 1)
	assert.Equal(auditstore.EventDecision, audit[0].EventType)
}

func TestProcessSubjectCleanSubject(t *testing.T) {
	ctx := context.Background()
	eng := EngineTestFixture([]rules.Rule{bioSpamRule()})

	out, err := eng.ProcessSubject(ctx, &event.Subject{ID: "104", Bio: "nothing wrong here"}, SafetySnapshot{})
	require.NoError(t, err)
	require.Empty(t, out.Evidence)
	require.Empty(t, eng.Audit.(*auditstore.MemAuditStore).Entries())
}

func TestActionFailureMarked(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture([]rules.Rule{bioSpamRule()})
	eng.Platform.(*FakePlatform).Err = context.DeadlineExceeded

	out, err := eng.ProcessSubject(ctx, spammySubject("105"), SafetySnapshot{})
	require.NoError(t, err)
	assert.Equal("failed", out.Result)

	actions := eng.Actions.(*MemEnforcementStore).ActionList()
	require.Len(t, actions, 1)
	assert.Equal("failed", actions[0].Result)
}

func TestReadSafetyFailsTowardDryRun(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture(nil)

	snap := eng.ReadSafety(ctx)
	assert.False(snap.DryRun)
	assert.False(snap.PanicStop)

	require.NoError(t, eng.Flags.Set(ctx, flagstore.FlagDryRun, true))
	require.NoError(t, eng.Flags.Set(ctx, flagstore.FlagPanicStop, true))
	snap = eng.ReadSafety(ctx)
	assert.True(snap.DryRun)
	assert.True(snap.PanicStop)
}

func TestSetFlagAudited(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture(nil)

	require.NoError(t, eng.SetFlag(ctx, flagstore.FlagPanicStop, true))
	audit := eng.Audit.(*auditstore.MemAuditStore).Entries()
	require.Len(t, audit, 1)
	assert.Equal(auditstore.EventInterlock, audit[0].EventType)
	assert.Equal("enabled", audit[0].Result)
}
