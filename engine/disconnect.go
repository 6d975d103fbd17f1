/*
disconnect.go - Credential teardown, user- and webhook-initiated

PURPOSE:
  Two idempotent entry points delete a tenant's credential record:

  User-initiated:
    Best-effort notify the remote platform (failure is logged and ignored;
    the remote side may already consider the app disconnected), then
    unconditionally delete the local record.

  Webhook-initiated:
    The remote platform signs the raw payload with HMAC-SHA256 over the
    shared secret. Verification failures are rejected without acting. On
    the disconnect topic the record is deleted; no outbound notification
    is made - the remote side already knows. All other topics are ignored
    and acknowledged.

IDEMPOTENCE:
  Repeating either path for an already-disconnected account is a no-op,
  never an error.
*/
package engine

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
)

// TopicAppDisconnect is the webhook topic that triggers credential teardown.
const TopicAppDisconnect = "APP_DISCONNECT"

// DisconnectUser tears down the account's connection at the user's request.
func (e *Engine) DisconnectUser(ctx context.Context, accountID AccountID) error {
	token, err := e.tokens.ValidAccessToken(ctx, accountID)
	switch {
	case errors.Is(err, ErrNotConnected):
		// Already disconnected.
		return nil
	case err != nil:
		// No usable token; skip the notification but still tear down.
		log.Printf("engine: disconnect for account %s without remote notification: %v", accountID, err)
	default:
		if notifyErr := e.client.MarkDisconnected(ctx, token); notifyErr != nil {
			log.Printf("engine: remote disconnect notification failed for account %s: %v", accountID, notifyErr)
		}
	}

	return e.store.Delete(ctx, accountID)
}

// =============================================================================
// WEBHOOK VERIFICATION AND DISPATCH
// =============================================================================

// webhookPayload mirrors the remote platform's event envelope.
type webhookPayload struct {
	Data struct {
		WebHookEvent struct {
			Topic     string `json:"topic"`
			AccountID string `json:"accountId"`
		} `json:"webHookEvent"`
	} `json:"data"`
}

// VerifyWebhookSignature checks the base64 HMAC-SHA256 of the raw body
// against the shared secret, in constant time.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// HandleWebhook verifies and dispatches one inbound notification. Unknown
// topics are acknowledged without action.
func (e *Engine) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !VerifyWebhookSignature(e.webhookSecret, body, signature) {
		return ErrVerificationFailed
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("decoding webhook payload: %w", err)
	}

	event := payload.Data.WebHookEvent
	if event.Topic != TopicAppDisconnect {
		log.Printf("engine: ignoring webhook topic %q", event.Topic)
		return nil
	}
	if event.AccountID == "" {
		return fmt.Errorf("webhook %s event missing account id", TopicAppDisconnect)
	}

	log.Printf("engine: remote-initiated disconnect for account %s", event.AccountID)
	return e.store.Delete(ctx, AccountID(event.AccountID))
}
