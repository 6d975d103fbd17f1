package engine_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsync/pricesync/engine"
	"github.com/partsync/pricesync/engine/store"
)

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func disconnectBody(accountID string) []byte {
	return []byte(fmt.Sprintf(`{"data":{"webHookEvent":{"topic":"APP_DISCONNECT","accountId":%q}}}`, accountID))
}

// =============================================================================
// USER-INITIATED DISCONNECT
// =============================================================================

func TestDisconnectUser_NotifiesRemoteThenDeletesRecord(t *testing.T) {
	st := store.NewMemory()
	seedConnection(t, st)
	fc := newFakeCatalog(false, 100)
	eng := newTestEngine(st, fc, &fakeOAuth{})

	err := eng.DisconnectUser(context.Background(), testAccount)

	require.NoError(t, err)
	assert.Equal(t, 1, fc.disconnects)
	_, getErr := st.Get(context.Background(), testAccount)
	assert.ErrorIs(t, getErr, engine.ErrNotConnected)
}

func TestDisconnectUser_AlreadyDisconnectedIsANoOp(t *testing.T) {
	st := store.NewMemory()
	fc := newFakeCatalog(false, 100)
	eng := newTestEngine(st, fc, &fakeOAuth{})

	require.NoError(t, eng.DisconnectUser(context.Background(), "gone"))
	assert.Zero(t, fc.disconnects, "no remote call for an account that was never connected")
}

func TestDisconnectUser_RemoteNotificationFailureStillDeletes(t *testing.T) {
	// GIVEN: The remote disconnect call fails
	// WHEN: Disconnecting
	// THEN: The local record is deleted anyway - the notification is
	//       best-effort only

	st := store.NewMemory()
	seedConnection(t, st)
	fc := newFakeCatalog(false, 100)
	fc.disconnectErr = errors.New("remote said no")
	eng := newTestEngine(st, fc, &fakeOAuth{})

	err := eng.DisconnectUser(context.Background(), testAccount)

	require.NoError(t, err)
	_, getErr := st.Get(context.Background(), testAccount)
	assert.ErrorIs(t, getErr, engine.ErrNotConnected)
}

func TestDisconnectUser_UnrefreshableTokenStillDeletes(t *testing.T) {
	st := store.NewMemory()
	saveConnection(t, st, nil) // unknown expiry forces a refresh attempt
	fc := newFakeCatalog(false, 100)
	oa := &fakeOAuth{err: errors.New("invalid_grant")}
	eng := newTestEngine(st, fc, oa)

	err := eng.DisconnectUser(context.Background(), testAccount)

	require.NoError(t, err)
	assert.Zero(t, fc.disconnects, "no token, no notification")
	_, getErr := st.Get(context.Background(), testAccount)
	assert.ErrorIs(t, getErr, engine.ErrNotConnected)
}

func TestDisconnectUser_RepeatCallsAreIdempotent(t *testing.T) {
	st := store.NewMemory()
	seedConnection(t, st)
	eng := newTestEngine(st, newFakeCatalog(false, 100), &fakeOAuth{})

	require.NoError(t, eng.DisconnectUser(context.Background(), testAccount))
	require.NoError(t, eng.DisconnectUser(context.Background(), testAccount))
}

// =============================================================================
// SIGNATURE VERIFICATION
// =============================================================================

func TestVerifyWebhookSignature(t *testing.T) {
	body := []byte(`{"hello":"world"}`)

	assert.True(t, engine.VerifyWebhookSignature(testSecret, body, signBody(testSecret, body)))
	assert.False(t, engine.VerifyWebhookSignature(testSecret, body, signBody("other-secret", body)))
	assert.False(t, engine.VerifyWebhookSignature(testSecret, []byte(`{"hello":"tampered"}`), signBody(testSecret, body)))
	assert.False(t, engine.VerifyWebhookSignature(testSecret, body, ""))
	assert.False(t, engine.VerifyWebhookSignature("", body, signBody("", body)), "empty secret never verifies")
}

// =============================================================================
// WEBHOOK-INITIATED DISCONNECT
// =============================================================================

func TestHandleWebhook_DisconnectTopicDeletesRecordWithoutNotifying(t *testing.T) {
	st := store.NewMemory()
	seedConnection(t, st)
	fc := newFakeCatalog(false, 100)
	eng := newTestEngine(st, fc, &fakeOAuth{})
	body := disconnectBody(string(testAccount))

	err := eng.HandleWebhook(context.Background(), body, signBody(testSecret, body))

	require.NoError(t, err)
	assert.Zero(t, fc.disconnects, "the remote initiated this; no outbound notification")
	_, getErr := st.Get(context.Background(), testAccount)
	assert.ErrorIs(t, getErr, engine.ErrNotConnected)
}

func TestHandleWebhook_BadSignatureChangesNothing(t *testing.T) {
	st := store.NewMemory()
	seedConnection(t, st)
	eng := newTestEngine(st, newFakeCatalog(false, 100), &fakeOAuth{})
	body := disconnectBody(string(testAccount))

	err := eng.HandleWebhook(context.Background(), body, signBody("wrong-secret", body))

	assert.ErrorIs(t, err, engine.ErrVerificationFailed)
	_, getErr := st.Get(context.Background(), testAccount)
	assert.NoError(t, getErr, "record must survive an unverified request")
}

func TestHandleWebhook_UnknownTopicIsAcknowledgedWithoutAction(t *testing.T) {
	st := store.NewMemory()
	seedConnection(t, st)
	eng := newTestEngine(st, newFakeCatalog(false, 100), &fakeOAuth{})
	body := []byte(`{"data":{"webHookEvent":{"topic":"INVOICE_CREATED","accountId":"acct-1"}}}`)

	err := eng.HandleWebhook(context.Background(), body, signBody(testSecret, body))

	require.NoError(t, err)
	_, getErr := st.Get(context.Background(), testAccount)
	assert.NoError(t, getErr)
}

func TestHandleWebhook_MalformedPayloadIsAnError(t *testing.T) {
	eng := newTestEngine(store.NewMemory(), newFakeCatalog(false, 100), &fakeOAuth{})
	body := []byte(`{not json`)

	err := eng.HandleWebhook(context.Background(), body, signBody(testSecret, body))

	assert.Error(t, err)
	assert.NotErrorIs(t, err, engine.ErrVerificationFailed)
}

func TestHandleWebhook_DisconnectWithoutAccountIDIsAnError(t *testing.T) {
	eng := newTestEngine(store.NewMemory(), newFakeCatalog(false, 100), &fakeOAuth{})
	body := disconnectBody("")

	err := eng.HandleWebhook(context.Background(), body, signBody(testSecret, body))

	assert.Error(t, err)
}

func TestHandleWebhook_UnknownAccountIsIdempotent(t *testing.T) {
	eng := newTestEngine(store.NewMemory(), newFakeCatalog(false, 100), &fakeOAuth{})
	body := disconnectBody("never-connected")

	err := eng.HandleWebhook(context.Background(), body, signBody(testSecret, body))

	assert.NoError(t, err)
}
