// Package apperror defines the small sentinel-error vocabulary shared across
// the storage, memory, and orchestrator layers so callers can classify a
// failure with errors.Is instead of string matching.
package apperror

import "errors"

var (
	// ErrConfiguration marks a misconfiguration (missing env var, bad JSON,
	// unreachable database at startup) — not retryable.
	ErrConfiguration = errors.New("configuration error")

	// ErrTransient marks a failure worth retrying (connection reset, timeout,
	// a provider's 5xx/429). The Turn Orchestrator wraps an LLM provider's
	// capacity failure with it; StatusHint maps it to 503.
	ErrTransient = errors.New("transient error")

	// ErrIntegrity marks a violated invariant in stored state (a core-memory
	// block with no rows, a cron job referencing a missing schedule) that
	// indicates corrupted or unexpected persisted data.
	ErrIntegrity = errors.New("integrity error")

	// ErrInvalidInput marks a caller-supplied value that fails validation
	// (unknown block type, malformed cron schedule, empty required field).
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks a lookup that found no matching row.
	ErrNotFound = errors.New("not found")
)

// StatusHint maps one of the sentinel errors above to an HTTP status code,
// used by the HTTP ingress adapter (pkg/channels/http) to pick a response
// code without every handler re-deriving the mapping.
func StatusHint(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return 400
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrConfiguration):
		return 500
	case errors.Is(err, ErrTransient):
		return 503
	case errors.Is(err, ErrIntegrity):
		return 500
	default:
		return 500
	}
}
