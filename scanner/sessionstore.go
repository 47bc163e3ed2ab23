package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mastowatch/mastowatch/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Scan session states. The per-session-type lifecycle is
// Idle -> Running -> {Completed, Failed} -> Idle.
const (
	StateIdle      = "idle"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// SessionStore persists pagination state, one row per session type. Only
// the orchestrator mutates it.
type SessionStore interface {
	GetOrCreate(ctx context.Context, sessionType string) (*models.ScanSession, error)
	// AdvancePage writes the new cursor and the processed-count delta as
	// one atomic update, so a crash can never persist one without the
	// other.
	AdvancePage(ctx context.Context, sessionType, cursor string, processedDelta int64) error
	SetState(ctx context.Context, sessionType, state, lastError string) error
}

type GormSessionStore struct {
	DB *gorm.DB
}

var _ SessionStore = (*GormSessionStore)(nil)

func NewGormSessionStore(db *gorm.DB) *GormSessionStore {
	return &GormSessionStore{DB: db}
}

func (s *GormSessionStore) GetOrCreate(ctx context.Context, sessionType string) (*models.ScanSession, error) {
	sess := models.ScanSession{SessionType: sessionType, State: StateIdle}
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "session_type"}}, DoNothing: true}).
		Create(&sess).Error
	if err != nil {
		return nil, fmt.Errorf("creating scan session: %w", err)
	}
	var out models.ScanSession
	if err := s.DB.WithContext(ctx).Where("session_type = ?", sessionType).First(&out).Error; err != nil {
		return nil, fmt.Errorf("loading scan session: %w", err)
	}
	return &out, nil
}

func (s *GormSessionStore) AdvancePage(ctx context.Context, sessionType, cursor string, processedDelta int64) error {
	return s.DB.WithContext(ctx).Model(&models.ScanSession{}).
		Where("session_type = ?", sessionType).
		Updates(map[string]any{
			"cursor":          cursor,
			"total_processed": gorm.Expr("total_processed + ?", processedDelta),
		}).Error
}

func (s *GormSessionStore) SetState(ctx context.Context, sessionType, state, lastError string) error {
	updates := map[string]any{"state": state, "last_error": lastError}
	now := time.Now()
	switch state {
	case StateRunning:
		updates["started_at"] = &now
	case StateCompleted, StateFailed:
		updates["finished_at"] = &now
	}
	return s.DB.WithContext(ctx).Model(&models.ScanSession{}).
		Where("session_type = ?", sessionType).
		Updates(updates).Error
}

// MemSessionStore is the in-memory variant for tests.
type MemSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.ScanSession
}

var _ SessionStore = (*MemSessionStore)(nil)

func NewMemSessionStore() *MemSessionStore {
	return &MemSessionStore{sessions: make(map[string]*models.ScanSession)}
}

func (s *MemSessionStore) GetOrCreate(ctx context.Context, sessionType string) (*models.ScanSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionType]; ok {
		cp := *sess
		return &cp, nil
	}
	sess := &models.ScanSession{SessionType: sessionType, State: StateIdle}
	s.sessions[sessionType] = sess
	cp := *sess
	return &cp, nil
}

func (s *MemSessionStore) AdvancePage(ctx context.Context, sessionType, cursor string, processedDelta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionType]; ok {
		sess.Cursor = cursor
		sess.TotalProcessed += processedDelta
	}
	return nil
}

func (s *MemSessionStore) SetState(ctx context.Context, sessionType, state, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionType]; ok {
		sess.State = state
		sess.LastError = lastError
		now := time.Now()
		switch state {
		case StateRunning:
			sess.StartedAt = &now
		case StateCompleted, StateFailed:
			sess.FinishedAt = &now
		}
	}
	return nil
}
