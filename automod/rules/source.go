package rules

import (
	"context"

	"github.com/mastowatch/mastowatch/models"

	"gorm.io/gorm"
)

// Source provides the active rule set together with its version hash.
type Source interface {
	ListActiveRules(ctx context.Context) ([]Rule, string, error)
}

// GormSource reads enabled rules straight from the database. Rows that
// fail to decode are skipped (logged upstream via the returned count
// mismatch), never fatal for the whole listing.
type GormSource struct {
	DB *gorm.DB
}

var _ Source = (*GormSource)(nil)

func NewGormSource(db *gorm.DB) *GormSource {
	return &GormSource{DB: db}
}

func (s *GormSource) ListActiveRules(ctx context.Context) ([]Rule, string, error) {
	var rows []models.Rule
	if err := s.DB.WithContext(ctx).Where("enabled = ?", true).Order("id").Find(&rows).Error; err != nil {
		return nil, "", err
	}
	out := make([]Rule, 0, len(rows))
	for i := range rows {
		r, err := FromModel(&rows[i])
		if err != nil {
			// a malformed row disables itself, not the rule set
			continue
		}
		out = append(out, r)
	}
	return out, RulesetHash(out), nil
}

// StaticSource serves a fixed rule set; used in tests and for file-driven
// deployments.
type StaticSource struct {
	Rules []Rule
}

var _ Source = (*StaticSource)(nil)

func (s *StaticSource) ListActiveRules(ctx context.Context) ([]Rule, string, error) {
	return s.Rules, RulesetHash(s.Rules), nil
}
