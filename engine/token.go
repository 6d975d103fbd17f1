/*
token.go - Token lifecycle management

PURPOSE:
  Produces a usable access token for a tenant, refreshing via the remote
  OAuth token endpoint when the stored token is expired (or its expiry is
  unknown), and persisting rotated refresh tokens atomically.

REFRESH POLICY:
  - Expiry known and more than ExpiryBuffer away: return the stored token.
  - Expiry known and within ExpiryBuffer, or expiry unknown: refresh first.
  - A call site that still receives 401 refreshes once and retries once;
    a second 401 is terminal for the run and surfaces ErrReauthRequired.

ROTATION:
  Each refresh invalidates the old refresh token. The new access+refresh
  pair is written in one atomic store update, so a crash mid-refresh never
  leaves a record holding neither a usable old nor new token.

FAILURE SAFETY:
  Refresh failures (network or explicit rejection) clear no state. The
  existing record stays intact so the user can retry later.

SEE ALSO:
  - store.go:  Atomicity contract for UpdateTokens
  - engine.go: Wraps remote calls in the refresh-retry policy
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// ExpiryBuffer is how close to expiry a token may be before it is refreshed
// proactively instead of used optimistically.
const ExpiryBuffer = 60 * time.Second

// TokenManager implements the token lifecycle for all tenants.
type TokenManager struct {
	Store ConnectionStore
	OAuth OAuthClient

	// Now is injectable for tests; nil means time.Now.
	Now func() time.Time
}

func NewTokenManager(store ConnectionStore, oauth OAuthClient) *TokenManager {
	return &TokenManager{Store: store, OAuth: oauth}
}

func (m *TokenManager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// ValidAccessToken returns an access token usable right now. It refreshes
// when the stored token is expired, near expiry, or of unknown expiry.
func (m *TokenManager) ValidAccessToken(ctx context.Context, accountID AccountID) (string, error) {
	conn, err := m.Store.Get(ctx, accountID)
	if err != nil {
		return "", err
	}

	if conn.ExpiresAt != nil && conn.ExpiresAt.After(m.now().Add(ExpiryBuffer)) {
		return conn.AccessToken, nil
	}

	return m.Refresh(ctx, accountID)
}

// Refresh performs the refresh-grant exchange and persists the rotated
// tokens. The stored record is left untouched on failure.
func (m *TokenManager) Refresh(ctx context.Context, accountID AccountID) (string, error) {
	conn, err := m.Store.Get(ctx, accountID)
	if err != nil {
		return "", err
	}

	grant, err := m.OAuth.RefreshToken(ctx, conn.RefreshToken)
	if err != nil {
		return "", &ReauthError{AccountID: accountID, Cause: err}
	}

	var expiresAt *time.Time
	if grant.ExpiresIn != nil {
		t := m.now().Add(time.Duration(*grant.ExpiresIn) * time.Second).UTC()
		expiresAt = &t
	}

	if err := m.Store.UpdateTokens(ctx, accountID, grant.AccessToken, grant.RefreshToken, expiresAt); err != nil {
		return "", fmt.Errorf("persisting rotated tokens: %w", err)
	}

	return grant.AccessToken, nil
}

// =============================================================================
// RETRY POLICY - refresh-on-401-then-retry-once
// =============================================================================

// retryPolicy wraps a remote call with bounded unauthorized retries. It is
// a policy value rather than per-call-site branching so every remote call
// behaves identically.
type retryPolicy struct {
	maxAttempts int
	retryable   func(error) bool
}

func unauthorizedRetry() retryPolicy {
	return retryPolicy{
		maxAttempts: 2,
		retryable:   func(err error) bool { return errors.Is(err, ErrUnauthorized) },
	}
}

// Do obtains a valid access token and invokes call with it. When call fails
// the retryable predicate, the token is refreshed and the call retried, up
// to maxAttempts total attempts. Exhausting attempts on an unauthorized
// response surfaces ErrReauthRequired.
func (p retryPolicy) Do(ctx context.Context, tokens *TokenManager, accountID AccountID, call func(accessToken string) error) error {
	token, err := tokens.ValidAccessToken(ctx, accountID)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		lastErr = call(token)
		if lastErr == nil || !p.retryable(lastErr) {
			return lastErr
		}
		if attempt == p.maxAttempts {
			break
		}

		log.Printf("engine: unauthorized response for account %s, refreshing (attempt %d/%d)", accountID, attempt, p.maxAttempts)
		token, err = tokens.Refresh(ctx, accountID)
		if err != nil {
			return err
		}
	}

	return &ReauthError{AccountID: accountID, Cause: lastErr}
}
