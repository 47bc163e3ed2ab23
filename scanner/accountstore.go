package scanner

import (
	"context"
	"time"

	"github.com/mastowatch/mastowatch/automod/event"
	"github.com/mastowatch/mastowatch/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountStore records which accounts have been seen and when they were
// last checked, for operator queries and scan-coverage reporting.
type AccountStore interface {
	UpsertSeen(ctx context.Context, sub *event.Subject, at time.Time) error
}

type GormAccountStore struct {
	DB *gorm.DB
}

var _ AccountStore = (*GormAccountStore)(nil)

func NewGormAccountStore(db *gorm.DB) *GormAccountStore {
	return &GormAccountStore{DB: db}
}

func (s *GormAccountStore) UpsertSeen(ctx context.Context, sub *event.Subject, at time.Time) error {
	row := models.Account{
		PlatformAccountID: sub.ID,
		Acct:              sub.Acct,
		Domain:            sub.Domain(),
		LastCheckedAt:     at,
	}
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform_account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"acct", "domain", "last_checked_at"}),
		}).
		Create(&row).Error
}
