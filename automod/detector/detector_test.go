package detector

import (
	"context"
	"testing"

	"github.com/mastowatch/mastowatch/automod/countstore"
	"github.com/mastowatch/mastowatch/automod/event"
	"github.com/mastowatch/mastowatch/automod/rules"
	"github.com/mastowatch/mastowatch/automod/setstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSet() *Set {
	sets := setstore.NewMemSetStore()
	sets.AddToSet("spam-words", []string{"lottery", "viagra"})
	return &Set{
		Counters: countstore.NewMemCountStore(),
		Sets:     sets,
	}
}

func TestKeywordWordBoundaries(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d := testSet()

	rule := rules.Rule{
		ID:           1,
		Name:         "bio-spam",
		DetectorType: rules.DetectorKeyword,
		Pattern:      "spam,scam",
		TargetFields: []string{event.FieldBio},
		MatchOptions: rules.MatchOptions{WordBoundaries: true},
	}

	sub := &event.Subject{ID: "1", Username: "someone", Bio: "contact me for spam deals"}
	ev, err := d.Evaluate(ctx, sub, &rule, rule.Pattern)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(event.FieldBio, ev.MatchedField)
	assert.Equal("spam", ev.Snippet)
	assert.Equal(1.0, ev.MatchStrength)

	// whole-token matching must not hit inside "spammer"
	sub = &event.Subject{ID: "2", Bio: "spammer only"}
	ev, err = d.Evaluate(ctx, sub, &rule, rule.Pattern)
	require.NoError(t, err)
	assert.Nil(ev)

	// without word boundaries, substring containment suffices
	rule.MatchOptions.WordBoundaries = false
	ev, err = d.Evaluate(ctx, sub, &rule, rule.Pattern)
	require.NoError(t, err)
	require.NotNil(t, ev)
}

func TestKeywordTargetFieldScoping(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d := testSet()

	rule := rules.Rule{
		ID:           2,
		Name:         "content-spam",
		DetectorType: rules.DetectorKeyword,
		Pattern:      "buy now",
		TargetFields: []string{event.FieldContent},
	}
	sub := &event.Subject{
		ID:  "1",
		Bio: "buy now", // out of scope for this rule
		Statuses: []event.Status{
			{ID: "s1", Content: "hello world"},
			{ID: "s2", Content: "BUY NOW and save"},
		},
	}
	ev, err := d.Evaluate(ctx, sub, &rule, rule.Pattern)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal("s2", ev.StatusID)
	assert.Equal(event.FieldContent, ev.MatchedField)
}

func TestKeywordNamedSet(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d := testSet()

	rule := rules.Rule{
		ID:           3,
		Name:         "wordlist",
		DetectorType: rules.DetectorKeyword,
		Pattern:      "set:spam-words",
		TargetFields: []string{event.FieldBio},
	}
	sub := &event.Subject{ID: "1", Bio: "win the LOTTERY today"}
	ev, err := d.Evaluate(ctx, sub, &rule, rule.Pattern)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal("lottery", ev.Snippet)

	sub = &event.Subject{ID: "2", Bio: "nothing to see"}
	ev, err = d.Evaluate(ctx, sub, &rule, rule.Pattern)
	require.NoError(t, err)
	assert.Nil(ev)
}

func TestRegexDetector(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d := testSet()

	rule := rules.Rule{
		ID:           4,
		Name:         "bot-username",
		DetectorType: rules.DetectorRegex,
		Pattern:      `bot\d{3,}$`,
		TargetFields: []string{event.FieldUsername},
	}
	sub := &event.Subject{ID: "1", Username: "FriendlyBot12345"}
	ev, err := d.Evaluate(ctx, sub, &rule, rule.Pattern)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(event.FieldUsername, ev.MatchedField)

	// case sensitivity honored
	rule.MatchOptions.CaseSensitive = true
	ev, err = d.Evaluate(ctx, sub, &rule, rule.Pattern)
	require.NoError(t, err)
	assert.Nil(ev)
}

func TestRegexDetectorBadPattern(t *testing.T) {
	ctx := context.Background()
	d := testSet()

	rule := rules.Rule{
		ID:           5,
		Name:         "broken",
		DetectorType: rules.DetectorRegex,
		Pattern:      `([`,
		TargetFields: []string{event.FieldBio},
	}
	sub := &event.Subject{ID: "1", Bio: "anything"}
	_, err := d.Evaluate(ctx, sub, &rule, rule.Pattern)
	require.Error(t, err)
	var derr *Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, uint(5), derr.RuleID)
}

func TestBehavioralPostFrequency(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d := testSet()

	rule := rules.Rule{
		ID:           6,
		Name:         "too-many-posts",
		DetectorType: rules.DetectorBehavioral,
		Pattern:      BehaviorDailyPosting,
		Behavioral:   rules.BehavioralParams{TimeWindowHours: 24, PostThreshold: 20},
	}

	sub := &event.Subject{ID: "acct-busy"}
	for i := 0; i < 25; i++ {
		require.NoError(t, d.Counters.IncrementDistinct(ctx, CounterSubjectPosts, sub.ID, statusID(i)))
	}
	ev, err := d.Evaluate(ctx, sub, &rule, rule.Pattern)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(25.0, ev.MetricValue)
	assert.InDelta(1.25, ev.MatchStrength, 0.001)

	quiet := &event.Subject{ID: "acct-quiet"}
	for i := 0; i < 10; i++ {
		require.NoError(t, d.Counters.IncrementDistinct(ctx, CounterSubjectPosts, quiet.ID, statusID(i)))
	}
	ev, err = d.Evaluate(ctx, quiet, &rule, rule.Pattern)
	require.NoError(t, err)
	assert.Nil(ev)
}

func TestBehavioralFollowRatio(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d := testSet()

	rule := rules.Rule{
		ID:           7,
		Name:         "follow-spam",
		DetectorType: rules.DetectorBehavioral,
		Pattern:      BehaviorFollowRatio,
		Behavioral:   rules.BehavioralParams{TimeWindowHours: 24, PostThreshold: 50},
	}
	sub := &event.Subject{ID: "1", FollowersCount: 2, FollowingCount: 5000}
	ev, err := d.Evaluate(ctx, sub, &rule, rule.Pattern)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(2500.0, ev.MetricValue)

	sub = &event.Subject{ID: "2", FollowersCount: 100, FollowingCount: 100}
	ev, err = d.Evaluate(ctx, sub, &rule, rule.Pattern)
	require.NoError(t, err)
	assert.Nil(ev)
}

func TestMediaAltText(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d := testSet()

	rule := rules.Rule{
		ID:           8,
		Name:         "alt-text",
		DetectorType: rules.DetectorMedia,
		Media:        rules.MediaParams{RequireAltText: true},
	}
	sub := &event.Subject{
		ID: "1",
		Statuses: []event.Status{
			{ID: "s1", Attachments: []event.Attachment{
				{ID: "a1", MimeType: "image/png", Description: "a cat"},
				{ID: "a2", MimeType: "image/png"},
			}},
		},
	}
	ev, err := d.Evaluate(ctx, sub, &rule, rule.Pattern)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal("s1", ev.StatusID)
	assert.Equal(1.0, ev.MetricValue)

	// all attachments described: no evidence
	sub.Statuses[0].Attachments[1].Description = "a dog"
	ev, err = d.Evaluate(ctx, sub, &rule, rule.Pattern)
	require.NoError(t, err)
	assert.Nil(ev)
}

func TestMediaMimeTypes(t *testing.T) {
	ctx := context.Background()
	d := testSet()

	rule := rules.Rule{
		ID:           9,
		Name:         "mime",
		DetectorType: rules.DetectorMedia,
		Media:        rules.MediaParams{AllowedMimeTypes: []string{"image/png", "image/jpeg"}},
	}
	sub := &event.Subject{
		ID: "1",
		Statuses: []event.Status{
			{ID: "s1", Attachments: []event.Attachment{{ID: "a1", MimeType: "video/mp4", Description: "x"}}},
		},
	}
	ev, err := d.Evaluate(ctx, sub, &rule, rule.Pattern)
	require.NoError(t, err)
	require.NotNil(t, ev)
}

func statusID(i int) string {
	return string(rune('a'+i%26)) + string(rune('0'+i/26))
}
