package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsync/pricesync/engine"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleConnection(expiresAt *time.Time) engine.TenantConnection {
	return engine.TenantConnection{
		AccountID:    "acct-1",
		AccountName:  "Test Plumbing Ltd",
		AccessToken:  "access-0",
		RefreshToken: "refresh-0",
		ExpiresAt:    expiresAt,
	}
}

// =============================================================================
// GET / SAVE
// =============================================================================

func TestStore_GetMissingAccount(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Get(context.Background(), "ghost")

	assert.ErrorIs(t, err, engine.ErrNotConnected)
}

func TestStore_SaveAndGetRoundTrip(t *testing.T) {
	st := newTestStore(t)
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, st.Save(context.Background(), sampleConnection(&expires)))

	conn, err := st.Get(context.Background(), "acct-1")

	require.NoError(t, err)
	assert.Equal(t, engine.AccountID("acct-1"), conn.AccountID)
	assert.Equal(t, "Test Plumbing Ltd", conn.AccountName)
	assert.Equal(t, "access-0", conn.AccessToken)
	assert.Equal(t, "refresh-0", conn.RefreshToken)
	require.NotNil(t, conn.ExpiresAt)
	assert.True(t, conn.ExpiresAt.Equal(expires))
	assert.False(t, conn.CreatedAt.IsZero())
	assert.False(t, conn.UpdatedAt.IsZero())
}

func TestStore_NilExpiryRoundTrips(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Save(context.Background(), sampleConnection(nil)))

	conn, err := st.Get(context.Background(), "acct-1")

	require.NoError(t, err)
	assert.Nil(t, conn.ExpiresAt)
}

func TestStore_SaveIsAnUpsert(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Save(context.Background(), sampleConnection(nil)))

	replacement := sampleConnection(nil)
	replacement.AccountName = "Renamed Ltd"
	replacement.AccessToken = "access-9"
	require.NoError(t, st.Save(context.Background(), replacement))

	conn, err := st.Get(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed Ltd", conn.AccountName)
	assert.Equal(t, "access-9", conn.AccessToken)
}

// =============================================================================
// TOKEN ROTATION
// =============================================================================

func TestStore_UpdateTokensRewritesAllTokenFields(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Save(context.Background(), sampleConnection(nil)))
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	err := st.UpdateTokens(context.Background(), "acct-1", "access-1", "refresh-1", &expires)

	require.NoError(t, err)
	conn, err := st.Get(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "access-1", conn.AccessToken)
	assert.Equal(t, "refresh-1", conn.RefreshToken)
	require.NotNil(t, conn.ExpiresAt)
	assert.True(t, conn.ExpiresAt.Equal(expires))
	assert.Equal(t, "Test Plumbing Ltd", conn.AccountName, "non-token fields are untouched")
}

func TestStore_UpdateTokensCanClearExpiry(t *testing.T) {
	st := newTestStore(t)
	expires := time.Now().Add(time.Hour)
	require.NoError(t, st.Save(context.Background(), sampleConnection(&expires)))

	require.NoError(t, st.UpdateTokens(context.Background(), "acct-1", "access-1", "refresh-1", nil))

	conn, err := st.Get(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Nil(t, conn.ExpiresAt)
}

func TestStore_UpdateTokensForMissingAccount(t *testing.T) {
	st := newTestStore(t)

	err := st.UpdateTokens(context.Background(), "ghost", "a", "r", nil)

	assert.ErrorIs(t, err, engine.ErrNotConnected)
}

// =============================================================================
// DELETE
// =============================================================================

func TestStore_DeleteRemovesRecord(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Save(context.Background(), sampleConnection(nil)))

	require.NoError(t, st.Delete(context.Background(), "acct-1"))

	_, err := st.Get(context.Background(), "acct-1")
	assert.ErrorIs(t, err, engine.ErrNotConnected)
}

func TestStore_DeleteMissingAccountIsANoOp(t *testing.T) {
	st := newTestStore(t)

	assert.NoError(t, st.Delete(context.Background(), "ghost"))
}
