package model

import "errors"

// Sentinel errors for the search core. Callers classify failures with
// errors.Is and map them to HTTP responses or fallback behavior.
var (
	// ErrValidation covers caller mistakes that should surface as a
	// user-facing message, such as an empty saved-search name.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRankingUnavailable wraps every ranking-gateway failure: network
	// errors, timeouts, non-success statuses and unparsable payloads.
	// It is never fatal; the caller falls back to deterministic results.
	ErrRankingUnavailable = errors.New("ranking service unavailable")
)
