// Package scanner is the cursor-based scan orchestrator. It walks the
// platform's admin account listings page by page, feeds every subject
// through the moderation engine, and persists pagination state durably
// so a restart resumes exactly where the previous process stopped.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mastowatch/mastowatch/automod/engine"
	"github.com/mastowatch/mastowatch/automod/event"

	"golang.org/x/sync/errgroup"
)

// Session types. Remote scans walk federated accounts, local scans walk
// accounts registered on this instance.
const (
	SessionRemote = "remote"
	SessionLocal  = "local"
)

const (
	defaultPageSize    = 40
	defaultMaxPages    = 10
	defaultConcurrency = 4
)

// SubjectSource fetches one page of subjects. An empty next cursor means
// end of stream. Implementations must return fully hydrated subjects,
// admin metadata included.
type SubjectSource interface {
	FetchSubjects(ctx context.Context, sessionType, cursor string, limit int) ([]*event.Subject, string, error)
}

type Scanner struct {
	Logger   *slog.Logger
	Engine   *engine.Engine
	Source   SubjectSource
	Sessions SessionStore
	// Accounts, when set, records scan coverage per account.
	Accounts AccountStore

	PageSize         int
	MaxPagesPerCycle int
	// Concurrency bounds the worker pool evaluating subjects within a
	// page. Cursor advancement stays single-writer per session type.
	Concurrency int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (s *Scanner) pageSize() int {
	if s.PageSize > 0 {
		return s.PageSize
	}
	return defaultPageSize
}

func (s *Scanner) maxPages() int {
	if s.MaxPagesPerCycle > 0 {
		return s.MaxPagesPerCycle
	}
	return defaultMaxPages
}

func (s *Scanner) concurrency() int {
	if s.Concurrency > 0 {
		return s.Concurrency
	}
	return defaultConcurrency
}

// sessionLock serializes cycles per session type, so an overlapping
// scheduler tick can never race cursor updates.
func (s *Scanner) sessionLock(sessionType string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	if _, ok := s.locks[sessionType]; !ok {
		s.locks[sessionType] = &sync.Mutex{}
	}
	return s.locks[sessionType]
}

// RunCycle performs one bounded scan cycle for a session type: check the
// safety gate, fetch up to MaxPagesPerCycle pages from the persisted
// cursor, evaluate every subject, and persist progress after each page.
func (s *Scanner) RunCycle(ctx context.Context, sessionType string) error {
	lock := s.sessionLock(sessionType)
	if !lock.TryLock() {
		s.Logger.Info("scan cycle already running, skipping tick", "session", sessionType)
		return nil
	}
	defer lock.Unlock()

	safety := s.Engine.ReadSafety(ctx)
	if safety.PanicStop {
		s.Logger.Warn("panic-stop engaged, skipping scan cycle", "session", sessionType)
		cyclesRun.WithLabelValues(sessionType, "panic-stop").Inc()
		return nil
	}

	sess, err := s.Sessions.GetOrCreate(ctx, sessionType)
	if err != nil {
		return err
	}
	if err := s.Sessions.SetState(ctx, sessionType, StateRunning, ""); err != nil {
		return err
	}

	cursor := sess.Cursor
	for page := 0; page < s.maxPages(); page++ {
		// re-read the gate before every page fetch; a panic-stop engaged
		// mid-cycle forbids new fetches but lets the finished pages stand
		safety = s.Engine.ReadSafety(ctx)
		if safety.PanicStop {
			s.Logger.Warn("panic-stop engaged mid-cycle, stopping", "session", sessionType, "pages", page)
			cyclesRun.WithLabelValues(sessionType, "panic-stop").Inc()
			return s.Sessions.SetState(ctx, sessionType, StateIdle, "")
		}

		subjects, next, err := s.Source.FetchSubjects(ctx, sessionType, cursor, s.pageSize())
		if err != nil {
			if errors.Is(err, engine.ErrPermanentFetch) {
				s.Logger.Error("permanent fetch failure, operator attention needed", "session", sessionType, "err", err)
			} else {
				s.Logger.Warn("page fetch failed, will retry from same cursor", "session", sessionType, "err", err)
			}
			cyclesRun.WithLabelValues(sessionType, "failed").Inc()
			if serr := s.Sessions.SetState(ctx, sessionType, StateFailed, err.Error()); serr != nil {
				s.Logger.Error("recording failed state", "session", sessionType, "err", serr)
			}
			return fmt.Errorf("fetching page for %s scan: %w", sessionType, err)
		}

		s.evaluatePage(ctx, subjects, safety)
		pagesScanned.WithLabelValues(sessionType).Inc()

		// cursor and processed count move together or not at all
		if err := s.Sessions.AdvancePage(ctx, sessionType, next, int64(len(subjects))); err != nil {
			return fmt.Errorf("persisting scan progress for %s: %w", sessionType, err)
		}
		cursor = next

		if next == "" {
			cyclesRun.WithLabelValues(sessionType, "completed").Inc()
			return s.Sessions.SetState(ctx, sessionType, StateCompleted, "")
		}
	}

	// page budget exhausted with more stream remaining; next tick resumes
	s.Logger.Info("page budget reached, pausing until next tick", "session", sessionType, "cursor", cursor)
	cyclesRun.WithLabelValues(sessionType, "paused").Inc()
	return s.Sessions.SetState(ctx, sessionType, StateIdle, "")
}

// evaluatePage runs one page of subjects through the engine across a
// bounded worker pool. Per-subject failures are logged and skipped, they
// never abort the page.
func (s *Scanner) evaluatePage(ctx context.Context, subjects []*event.Subject, safety engine.SafetySnapshot) {
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.concurrency())
	now := time.Now()
	for _, sub := range subjects {
		eg.Go(func() error {
			if _, err := s.Engine.ProcessSubject(gctx, sub, safety); err != nil {
				s.Logger.Warn("subject evaluation failed", "subject", sub.ID, "err", err)
				return nil
			}
			if s.Accounts != nil {
				if err := s.Accounts.UpsertSeen(gctx, sub, now); err != nil {
					s.Logger.Warn("recording scanned account failed", "subject", sub.ID, "err", err)
				}
			}
			return nil
		})
	}
	_ = eg.Wait()
}
