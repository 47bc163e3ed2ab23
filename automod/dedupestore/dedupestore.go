// Package dedupestore gates enforcement on violation fingerprints. The
// check-and-insert is a single atomic unit per fingerprint, so two
// concurrent evaluations of the same subject can not both pass the
// suppression check.
package dedupestore

import (
	"context"
	"time"
)

type DedupeStore interface {
	// CheckAndRecord records the fingerprint unless a live record already
	// exists, and reports whether the fingerprint was fresh. A false
	// return means enforcement for this violation must be suppressed.
	CheckAndRecord(ctx context.Context, fingerprint, subjectID, actionType string, retention time.Duration) (bool, error)
}
