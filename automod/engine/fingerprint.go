package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
)

// Fingerprint derives the stable violation identity used for dedupe:
// the same subject, the same set of matched rules, and the same action
// always hash to the same value regardless of evaluation order.
func Fingerprint(subjectID string, ruleIDs []uint, actionType string) string {
	sorted := slices.Clone(ruleIDs)
	slices.Sort(sorted)
	parts := make([]string, 0, len(sorted))
	for _, id := range sorted {
		parts = append(parts, fmt.Sprintf("%d", id))
	}
	h := sha256.Sum256([]byte(subjectID + "\n" + strings.Join(parts, ",") + "\n" + actionType))
	return hex.EncodeToString(h[:])
}
