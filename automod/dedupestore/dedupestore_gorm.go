package dedupestore

import (
	"context"
	"time"

	"github.com/mastowatch/mastowatch/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormDedupeStore struct {
	DB *gorm.DB
}

var _ DedupeStore = (*GormDedupeStore)(nil)

func NewGormDedupeStore(db *gorm.DB) *GormDedupeStore {
	return &GormDedupeStore{DB: db}
}

func (s *GormDedupeStore) CheckAndRecord(ctx context.Context, fingerprint, subjectID, actionType string, retention time.Duration) (bool, error) {
	now := time.Now()
	rec := models.DedupeRecord{
		Fingerprint: fingerprint,
		SubjectID:   subjectID,
		ActionType:  actionType,
		CreatedAt:   now,
		ExpiresAt:   now.Add(retention),
	}
	// conditional insert; the unique index on fingerprint is the atomic unit
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fingerprint"}},
		DoNothing: true,
	}).Create(&rec)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	// a record exists; it only blocks enforcement while inside the
	// retention window. Reclaim expired rows with a conditional update so
	// concurrent reclaims can not both win.
	res = s.DB.WithContext(ctx).Model(&models.DedupeRecord{}).
		Where("fingerprint = ? AND expires_at <= ?", fingerprint, now).
		Updates(map[string]interface{}{
			"subject_id":  subjectID,
			"action_type": actionType,
			"created_at":  now,
			"expires_at":  now.Add(retention),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
