/*
store.go - Persistence interface for tenant credentials

PURPOSE:
  Defines the narrow contract between the engine and credential storage.
  The engine never touches the storage mechanics; it reads one record per
  tenant and rewrites it atomically on every token refresh.

ATOMICITY CONTRACT:
  UpdateTokens is a single row-level write: access token, refresh token and
  expiry land together or not at all. Two concurrent refreshes for the same
  account may race; last-writer-wins is acceptable, a record holding half of
  each write is not. This preserves the rotation invariant - the stored
  refresh token is always the most recently issued one.

IMPLEMENTATIONS:
  - engine/store/memory.go: In-memory, for tests and dev
  - store/sqlite:           Production default (single-file database)
  - store/postgres:         For deployments with a shared database

SEE ALSO:
  - token.go: The only engine component that writes through this interface
  - disconnect.go: Deletes records on teardown
*/
package engine

import (
	"context"
	"time"
)

// ConnectionStore persists one TenantConnection per account.
type ConnectionStore interface {
	// Get returns the connection for an account, or ErrNotConnected.
	Get(ctx context.Context, accountID AccountID) (*TenantConnection, error)

	// Save inserts or replaces the connection for conn.AccountID.
	Save(ctx context.Context, conn TenantConnection) error

	// UpdateTokens atomically rewrites the token fields of an existing
	// record. The previous refresh token is gone the instant this returns.
	// Returns ErrNotConnected when no record exists.
	UpdateTokens(ctx context.Context, accountID AccountID, accessToken, refreshToken string, expiresAt *time.Time) error

	// Delete removes the connection. Deleting a missing record is a no-op.
	Delete(ctx context.Context, accountID AccountID) error
}
