package auditstore

import (
	"context"
	"sync"
	"time"
)

// MemAuditStore keeps entries in memory; used in tests and for ephemeral
// deployments without a database.
type MemAuditStore struct {
	mu      sync.Mutex
	entries []Entry
}

var _ AuditStore = (*MemAuditStore)(nil)

func NewMemAuditStore() *MemAuditStore {
	return &MemAuditStore{}
}

func (s *MemAuditStore) Record(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.entries = append(s.entries, cp)
	return nil
}

// Entries returns a snapshot of everything recorded so far.
func (s *MemAuditStore) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
