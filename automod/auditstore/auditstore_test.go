package auditstore

import (
	"context"
	"testing"

	"github.com/mastowatch/mastowatch/automod/event"
	"github.com/mastowatch/mastowatch/models"
	"github.com/mastowatch/mastowatch/util/cliutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemAuditStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemAuditStore()

	require.NoError(t, s.Record(ctx, &Entry{
		SubjectID:  "1",
		EventType:  EventDecision,
		ActionType: "report",
		Score:      2.5,
		RuleHits:   []event.Evidence{{RuleID: 7, RuleName: "bio-spam"}},
	}))
	require.NoError(t, s.Record(ctx, &Entry{
		EventType:  EventInterlock,
		Suppressed: "panic-stop",
	}))

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal("1", entries[0].SubjectID)
	assert.Equal(EventInterlock, entries[1].EventType)
	assert.False(entries[0].CreatedAt.IsZero())
}

func TestGormAuditStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	db, err := cliutil.SetupDatabase("sqlite://:memory:", 1)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AuditLog{}))

	s := NewGormAuditStore(db)
	require.NoError(t, s.Record(ctx, &Entry{
		SubjectID:  "42",
		EventType:  EventAction,
		ActionType: "silence",
		Score:      3.0,
		RuleHits:   []event.Evidence{{RuleID: 1}, {RuleID: 2}},
		Result:     "success",
	}))

	var rows []models.AuditLog
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal("42", rows[0].SubjectID)
	assert.Contains(rows[0].RuleHits, `"rule_id":1`)
}
