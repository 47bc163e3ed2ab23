package auditstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mastowatch/mastowatch/models"

	"gorm.io/gorm"
)

type GormAuditStore struct {
	DB *gorm.DB
}

var _ AuditStore = (*GormAuditStore)(nil)

func NewGormAuditStore(db *gorm.DB) *GormAuditStore {
	return &GormAuditStore{DB: db}
}

func (s *GormAuditStore) Record(ctx context.Context, e *Entry) error {
	var hits []byte
	if len(e.RuleHits) > 0 {
		var err error
		hits, err = json.Marshal(e.RuleHits)
		if err != nil {
			return fmt.Errorf("encoding rule hits: %w", err)
		}
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	row := models.AuditLog{
		SubjectID:   e.SubjectID,
		EventType:   e.EventType,
		ActionType:  e.ActionType,
		Score:       e.Score,
		RuleHits:    string(hits),
		RulesetHash: e.RulesetHash,
		DryRun:      e.DryRun,
		Suppressed:  e.Suppressed,
		Result:      e.Result,
		CreatedAt:   createdAt,
	}
	if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}
	return nil
}
