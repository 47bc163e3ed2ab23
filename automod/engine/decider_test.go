package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mastowatch/mastowatch/automod/event"
	"github.com/mastowatch/mastowatch/automod/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingDedupe struct{}

func (failingDedupe) CheckAndRecord(ctx context.Context, fingerprint, subjectID, actionType string, retention time.Duration) (bool, error) {
	return false, errors.New("store unavailable")
}

func TestDedupeErrorFailsClosed(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture([]rules.Rule{bioSpamRule()})
	eng.Dedupe = failingDedupe{}
	platform := eng.Platform.(*FakePlatform)

	out, err := eng.ProcessSubject(ctx, spammySubject("201"), SafetySnapshot{})
	require.NoError(t, err)
	assert.Equal(SuppressDedupeError, out.Suppressed)
	assert.Empty(platform.Applied())
}

func TestDailyActionQuota(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture([]rules.Rule{bioSpamRule()})
	eng.DailyActionQuota = 2
	platform := eng.Platform.(*FakePlatform)

	for i := 0; i < 2; i++ {
		out, err := eng.ProcessSubject(ctx, spammySubject(fmt.Sprintf("21%d", i)), SafetySnapshot{})
		require.NoError(t, err)
		require.Equal(t, "success", out.Result)
	}

	out, err := eng.ProcessSubject(ctx, spammySubject("219"), SafetySnapshot{})
	require.NoError(t, err)
	assert.Equal(SuppressQuota, out.Suppressed)
	assert.Len(platform.Applied(), 2)
}

func TestForwardRemoteReports(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture([]rules.Rule{bioSpamRule()})
	eng.ForwardRemoteReports = true
	platform := eng.Platform.(*FakePlatform)

	_, err := eng.ProcessSubject(ctx, spammySubject("202"), SafetySnapshot{})
	require.NoError(t, err)
	require.Len(t, platform.Applied(), 1)
	assert.True(platform.Applied()[0].Forward)

	local := spammySubject("203")
	local.Acct = "baduser"
	_, err = eng.ProcessSubject(ctx, local, SafetySnapshot{})
	require.NoError(t, err)
	require.Len(t, platform.Applied(), 2)
	assert.False(platform.Applied()[1].Forward)
}

func TestActionCommentFormat(t *testing.T) {
	out := &Outcome{
		Score: 3.25,
		Evidence: []event.Evidence{
			{RuleName: "bio-spam"},
			{RuleName: "bot-name"},
		},
	}
	require.Equal(t, "[AUTO] score=3.25; hits=bio-spam,bot-name", actionComment(out))
}
