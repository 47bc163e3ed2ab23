package dedupestore

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type MemDedupeStore struct {
	data *xsync.MapOf[string, time.Time]
}

var _ DedupeStore = (*MemDedupeStore)(nil)

func NewMemDedupeStore() *MemDedupeStore {
	return &MemDedupeStore{
		data: xsync.NewMapOf[string, time.Time](),
	}
}

func (s *MemDedupeStore) CheckAndRecord(ctx context.Context, fingerprint, subjectID, actionType string, retention time.Duration) (bool, error) {
	fresh := false
	now := time.Now()
	// Compute serializes per key, which makes the check-and-insert atomic
	s.data.Compute(fingerprint, func(expiresAt time.Time, loaded bool) (time.Time, bool) {
		if loaded && expiresAt.After(now) {
			return expiresAt, false
		}
		fresh = true
		return now.Add(retention), false
	})
	return fresh, nil
}
