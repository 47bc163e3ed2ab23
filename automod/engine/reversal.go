package engine

import (
	"context"
	"time"

	"github.com/mastowatch/mastowatch/automod/rules"
	"github.com/mastowatch/mastowatch/models"

	"gorm.io/gorm"
)

// ReversalStore tracks timed actions awaiting automatic reversal.
type ReversalStore interface {
	Schedule(ctx context.Context, rec *models.ScheduledReversal) error
	Due(ctx context.Context, now time.Time) ([]models.ScheduledReversal, error)
	MarkCompleted(ctx context.Context, id uint) error
}

type GormReversalStore struct {
	DB *gorm.DB
}

var _ ReversalStore = (*GormReversalStore)(nil)

func NewGormReversalStore(db *gorm.DB) *GormReversalStore {
	return &GormReversalStore{DB: db}
}

func (s *GormReversalStore) Schedule(ctx context.Context, rec *models.ScheduledReversal) error {
	return s.DB.WithContext(ctx).Create(rec).Error
}

func (s *GormReversalStore) Due(ctx context.Context, now time.Time) ([]models.ScheduledReversal, error) {
	var out []models.ScheduledReversal
	err := s.DB.WithContext(ctx).
		Where("completed = ? AND expires_at <= ?", false, now).
		Order("expires_at").
		Find(&out).Error
	return out, err
}

func (s *GormReversalStore) MarkCompleted(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Model(&models.ScheduledReversal{}).
		Where("id = ?", id).
		Update("completed", true).Error
}

// scheduleReversal queues automatic un-silencing for timed actions.
// Suspensions and reports are never auto-reversed.
func (eng *Engine) scheduleReversal(ctx context.Context, subjectID, actionType, enforcementID string) {
	if eng.Reversals == nil || actionType != rules.ActionSilence || eng.SilenceDuration <= 0 {
		return
	}
	rec := &models.ScheduledReversal{
		SubjectID:     subjectID,
		ActionToUndo:  actionType,
		ExpiresAt:     time.Now().Add(eng.SilenceDuration),
		EnforcementID: enforcementID,
	}
	if err := eng.Reversals.Schedule(ctx, rec); err != nil {
		eng.Logger.Error("scheduling reversal failed", "subject", subjectID, "err", err)
	}
}

// SweepReversals undoes every expired timed action. Runs on a scheduler
// tick; a failed undo stays queued for the next sweep.
func (eng *Engine) SweepReversals(ctx context.Context) error {
	if eng.Reversals == nil {
		return nil
	}
	due, err := eng.Reversals.Due(ctx, time.Now())
	if err != nil {
		return err
	}
	for _, rec := range due {
		actx, cancel := context.WithTimeout(ctx, eng.actionTimeout())
		err := eng.Platform.UndoAction(actx, rec.SubjectID, rec.ActionToUndo)
		cancel()
		if err != nil {
			eng.Logger.Error("action reversal failed", "subject", rec.SubjectID, "action", rec.ActionToUndo, "err", err)
			continue
		}
		if err := eng.Reversals.MarkCompleted(ctx, rec.ID); err != nil {
			eng.Logger.Error("marking reversal complete failed", "reversal", rec.ID, "err", err)
			continue
		}
		eng.Logger.Info("reversed expired action", "subject", rec.SubjectID, "action", rec.ActionToUndo)
	}
	return nil
}
