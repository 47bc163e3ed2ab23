package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/mastowatch/mastowatch/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EnforcementStore persists enforcement action records. A record is
// created when a decision survives dedupe, then its result is written
// exactly once; rows are immutable afterwards.
type EnforcementStore interface {
	CreateAction(ctx context.Context, rec *models.EnforcementAction) error
	MarkResult(ctx context.Context, id, result, externalRef string) error
}

type GormEnforcementStore struct {
	DB *gorm.DB
}

var _ EnforcementStore = (*GormEnforcementStore)(nil)

func NewGormEnforcementStore(db *gorm.DB) *GormEnforcementStore {
	return &GormEnforcementStore{DB: db}
}

func (s *GormEnforcementStore) CreateAction(ctx context.Context, rec *models.EnforcementAction) error {
	return s.DB.WithContext(ctx).Create(rec).Error
}

func (s *GormEnforcementStore) MarkResult(ctx context.Context, id, result, externalRef string) error {
	return s.DB.WithContext(ctx).Model(&models.EnforcementAction{}).
		Where("id = ?", id).
		Updates(map[string]any{"result": result, "external_ref": externalRef}).Error
}

// MemEnforcementStore is the in-memory variant for tests.
type MemEnforcementStore struct {
	mu   sync.Mutex
	rows map[string]*models.EnforcementAction
}

var _ EnforcementStore = (*MemEnforcementStore)(nil)

func NewMemEnforcementStore() *MemEnforcementStore {
	return &MemEnforcementStore{rows: make(map[string]*models.EnforcementAction)}
}

func (s *MemEnforcementStore) CreateAction(ctx context.Context, rec *models.EnforcementAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.rows[rec.ID] = &cp
	return nil
}

func (s *MemEnforcementStore) MarkResult(ctx context.Context, id, result, externalRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.rows[id]; ok {
		rec.Result = result
		rec.ExternalRef = externalRef
	}
	return nil
}

// ActionList returns a snapshot of all recorded actions.
func (s *MemEnforcementStore) ActionList() []models.EnforcementAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.EnforcementAction, 0, len(s.rows))
	for _, rec := range s.rows {
		out = append(out, *rec)
	}
	return out
}

// recordEnforcement writes the pending enforcement row and returns its ID.
func (eng *Engine) recordEnforcement(ctx context.Context, out *Outcome, dryRun bool) string {
	hits, err := json.Marshal(out.Evidence)
	if err != nil {
		hits = nil
	}
	rec := &models.EnforcementAction{
		ID:         uuid.NewString(),
		SubjectID:  out.SubjectID,
		ActionType: out.ActionType,
		RuleHits:   string(hits),
		DryRun:     dryRun,
		Result:     out.Result,
		CreatedAt:  time.Now(),
	}
	if rec.Result == "" {
		rec.Result = "pending"
	}
	if err := eng.Actions.CreateAction(ctx, rec); err != nil {
		eng.Logger.Error("enforcement record write failed", "subject", out.SubjectID, "err", err)
	}
	return rec.ID
}

func (eng *Engine) markEnforcement(ctx context.Context, id string, out *Outcome) {
	if err := eng.Actions.MarkResult(ctx, id, out.Result, out.ExternalRef); err != nil {
		eng.Logger.Error("enforcement result write failed", "enforcement", id, "err", err)
	}
}
