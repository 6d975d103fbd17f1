/*
errors.go - Centralized error types for the sync engine

PURPOSE:
  All engine error types in one place. Callers use errors.Is with the
  sentinels; structured errors wrap a sentinel and carry context.

ERROR CATEGORIES:
  1. Credential errors - missing connection, failed refresh
  2. Remote errors     - the catalog API is unreachable or rejecting calls
  3. Row errors        - one mutation failed, the batch continues
  4. Webhook errors    - inbound signature mismatch

SURFACING RULES:
  ErrReauthRequired is shown to the end user as "reconnect required",
  never as a stack trace. ErrRemoteUnavailable aborts the whole run when
  it occurs during pagination (a partial index would mismatch rows) but is
  per-row during mutation. Unknown failures are caught at the run boundary
  and reported generically.

SEE ALSO:
  - token.go:  produces ErrReauthRequired
  - apply.go:  produces RowError
  - disconnect.go: produces ErrVerificationFailed
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotConnected is returned when no TenantConnection exists for the
	// account. The user must complete the OAuth flow first.
	ErrNotConnected = errors.New("account not connected")

	// ErrReauthRequired is returned when the stored credentials can no longer
	// produce a usable access token (refresh rejected, or a second
	// unauthorized response after one refresh+retry).
	ErrReauthRequired = errors.New("reauthorization required")

	// ErrUnauthorized is the transport-level signal for a single 401 from the
	// remote API. The retry policy refreshes once and retries; it never
	// reaches callers of RunSync.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRemoteUnavailable is returned for timeouts and 5xx responses from
	// the catalog API.
	ErrRemoteUnavailable = errors.New("remote catalog unavailable")

	// ErrVerificationFailed is returned when an inbound webhook signature
	// does not match. No state is changed.
	ErrVerificationFailed = errors.New("webhook verification failed")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// RowError records a remote-side failure for a single mutation. The run
// continues past it; the outcome carries all row errors.
type RowError struct {
	Identifier string  `json:"identifier"`
	EntryID    EntryID `json:"entry_id"`
	Message    string  `json:"message"`
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %q (entry %s): %s", e.Identifier, e.EntryID, e.Message)
}

// ReauthError wraps ErrReauthRequired with the cause, which is logged but
// never shown to the end user.
type ReauthError struct {
	AccountID AccountID
	Cause     error
}

func (e *ReauthError) Error() string {
	return fmt.Sprintf("account %s requires reauthorization: %v", e.AccountID, e.Cause)
}

func (e *ReauthError) Unwrap() error { return ErrReauthRequired }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsReauthRequired reports whether err means the user must reconnect.
func IsReauthRequired(err error) bool {
	return errors.Is(err, ErrReauthRequired) || errors.Is(err, ErrNotConnected)
}

// IsRemoteUnavailable reports whether err is a transient remote failure.
func IsRemoteUnavailable(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable)
}
