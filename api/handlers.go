/*
handlers.go - HTTP handlers for connect, sync and webhook endpoints

PURPOSE:
  The thin HTTP skin over the sync engine. Handles OAuth redirects, the
  session cookie, CSV upload limits and JSON serialization; every decision
  that matters is delegated to the engine.

ENDPOINTS:
  GET  /connect          Redirect to the platform authorize URL
  GET  /oauth/callback   Code exchange, account lookup, store connection
  GET  /dashboard        Connection status for the current session
  POST /sync             Upload CSV, run apply mode
  POST /sync/preview     Upload CSV, run preview mode (no mutations)
  GET  /disconnect       User-initiated disconnect
  POST /webhooks/jobber  Signed platform notifications
  GET  /health           Liveness

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Bad upload, invalid CSV, invalid webhook payload
  - 401: No session, webhook signature mismatch
  - 502: Remote platform failures during the OAuth callback

SEE ALSO:
  - server.go:  Router setup and middleware
  - engine/engine.go: RunSync contract
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/partsync/pricesync/config"
	"github.com/partsync/pricesync/csvsource"
	"github.com/partsync/pricesync/engine"
	"github.com/partsync/pricesync/jobber"
)

const webhookSignatureHeader = "X-Jobber-Hmac-SHA256"

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *engine.Engine
	Store  engine.ConnectionStore
	OAuth  *jobber.OAuth

	cfg config.Config
}

// NewHandler creates a handler wired to the engine and its collaborators.
func NewHandler(eng *engine.Engine, store engine.ConnectionStore, oauth *jobber.OAuth, cfg config.Config) *Handler {
	return &Handler{Engine: eng, Store: store, OAuth: oauth, cfg: cfg}
}

func (h *Handler) callbackURI() string {
	return h.cfg.Server.BaseURL + "/oauth/callback"
}

// =============================================================================
// OAUTH CONNECT FLOW
// =============================================================================

// Connect redirects the user to the platform authorize URL with a one-shot
// state value stored in a cookie.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Jobber.ClientID == "" {
		redirectDashboard(w, r, "missing_client_id", "")
		return
	}

	state := newState()
	h.setStateCookie(w, state)
	http.Redirect(w, r, h.OAuth.BuildAuthorizeURL(h.callbackURI(), state), http.StatusFound)
}

// OAuthCallback exchanges the authorization code, identifies the account
// and stores the connection.
func (h *Handler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	stateParam := r.URL.Query().Get("state")
	stateCookie, _ := r.Cookie(cookieOAuthState)

	if code == "" {
		redirectDashboard(w, r, "no_code", "")
		return
	}
	// Both the cookie and the parameter must be present and equal.
	if stateCookie == nil || stateCookie.Value == "" || stateParam == "" || stateCookie.Value != stateParam {
		redirectDashboard(w, r, "invalid_state", "")
		return
	}

	ctx := r.Context()
	grant, err := h.OAuth.ExchangeCode(ctx, code, h.callbackURI())
	if err != nil {
		redirectDashboard(w, r, "token_exchange", err.Error())
		return
	}

	account, err := h.OAuth.AccountInfo(ctx, grant.AccessToken)
	if err != nil {
		redirectDashboard(w, r, "account_query", err.Error())
		return
	}

	conn := engine.TenantConnection{
		AccountID:    engine.AccountID(account.ID),
		AccountName:  account.Name,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
	}
	if grant.ExpiresIn != nil {
		t := time.Now().Add(time.Duration(*grant.ExpiresIn) * time.Second).UTC()
		conn.ExpiresAt = &t
	}
	if err := h.Store.Save(ctx, conn); err != nil {
		log.Printf("api: saving connection for account %s: %v", account.ID, err)
		redirectDashboard(w, r, "store_failure", "")
		return
	}

	h.clearStateCookie(w)
	h.setSessionCookie(w, account.ID)
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// Dashboard reports the connection state for the current session.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	resp := dashboardResponse{
		Error:        r.URL.Query().Get("error"),
		ErrorMessage: r.URL.Query().Get("message"),
	}

	if accountID := h.accountFromSession(r); accountID != "" {
		conn, err := h.Store.Get(r.Context(), engine.AccountID(accountID))
		if err == nil {
			resp.Connected = true
			resp.AccountName = conn.AccountName
		} else if !errors.Is(err, engine.ErrNotConnected) {
			log.Printf("api: loading connection for dashboard: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Disconnect tears down the current session's connection. Repeating it is
// a no-op.
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if accountID := h.accountFromSession(r); accountID != "" {
		if err := h.Engine.DisconnectUser(r.Context(), engine.AccountID(accountID)); err != nil {
			log.Printf("api: disconnect for account %s: %v", accountID, err)
		}
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// =============================================================================
// SYNC ENDPOINTS
// =============================================================================

// Sync runs apply mode against the uploaded CSV.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	h.runSync(w, r, engine.ModeApply)
}

// Preview runs preview mode: same matching, no mutations.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	h.runSync(w, r, engine.ModePreview)
}

func (h *Handler) runSync(w http.ResponseWriter, r *http.Request, mode engine.Mode) {
	accountID := h.accountFromSession(r)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "not connected")
		return
	}

	rows, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	outcome := h.Engine.RunSync(r.Context(), engine.AccountID(accountID), rows, mode, h.parseOptions(r))
	writeJSON(w, http.StatusOK, outcome)
}

// readUpload enforces the size limit and parses the CSV file field.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) ([]engine.SourceRow, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Sync.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.cfg.Sync.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "upload too large or malformed")
		return nil, false
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return nil, false
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading upload failed")
		return nil, false
	}

	rows, err := csvsource.ParseRows(content)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return rows, true
}

// parseOptions reads run policy from form fields, falling back to
// configured defaults.
func (h *Handler) parseOptions(r *http.Request) engine.Options {
	opts := engine.Options{
		PriceProtection: formBool(r, "price_protection"),
		FuzzyMatch:      formBool(r, "fuzzy_match"),
		FuzzyThreshold:  h.cfg.Sync.FuzzyThreshold,
	}
	if raw := r.FormValue("fuzzy_threshold"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 && v <= 1 {
			opts.FuzzyThreshold = v
		}
	}
	if raw := r.FormValue("markup_percent"); raw != "" {
		if v, err := decimal.NewFromString(raw); err == nil && v.IsPositive() {
			opts.MarkupPercent = v
		}
	}
	return opts
}

// =============================================================================
// WEBHOOK RECEIVER
// =============================================================================

// Webhook verifies and dispatches inbound platform notifications.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body failed")
		return
	}

	err = h.Engine.HandleWebhook(r.Context(), body, r.Header.Get(webhookSignatureHeader))
	switch {
	case errors.Is(err, engine.ErrVerificationFailed):
		writeError(w, http.StatusUnauthorized, "invalid signature")
	case err != nil:
		writeError(w, http.StatusBadRequest, "invalid payload")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Health is the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

type dashboardResponse struct {
	Connected    bool   `json:"connected"`
	AccountName  string `json:"account_name,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func redirectDashboard(w http.ResponseWriter, r *http.Request, errCode, message string) {
	target := "/dashboard?error=" + url.QueryEscape(errCode)
	if message != "" {
		if len(message) > 80 {
			message = message[:80]
		}
		target += "&message=" + url.QueryEscape(message)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func formBool(r *http.Request, field string) bool {
	switch r.FormValue(field) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
