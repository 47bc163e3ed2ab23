package engine

import "errors"

// Fetch error classes for the platform collaborator. The scan
// orchestrator keys its retry behavior off these: transient failures
// retry from the same cursor, permanent failures abort the cycle for
// operator attention.
var (
	ErrTransientFetch = errors.New("transient fetch failure")
	ErrPermanentFetch = errors.New("permanent fetch failure")
)
