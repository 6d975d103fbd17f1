package jobber

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenServer(t *testing.T, status int, body string) (*httptest.Server, *url.Values) {
	t.Helper()
	var seen url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		seen = r.PostForm
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func testOAuth(srv *httptest.Server) *OAuth {
	return &OAuth{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     srv.URL,
		AuthorizeURL: DefaultAuthorizeURL,
		HTTPClient:   srv.Client(),
	}
}

// =============================================================================
// TOKEN GRANTS
// =============================================================================

func TestRefreshToken_SendsGrantAndReturnsRotatedPair(t *testing.T) {
	srv, form := newTokenServer(t, http.StatusOK,
		`{"access_token":"new-access","refresh_token":"new-refresh","expires_in":3600}`)

	grant, err := testOAuth(srv).RefreshToken(context.Background(), "old-refresh")

	require.NoError(t, err)
	assert.Equal(t, "new-access", grant.AccessToken)
	assert.Equal(t, "new-refresh", grant.RefreshToken)
	require.NotNil(t, grant.ExpiresIn)
	assert.Equal(t, 3600, *grant.ExpiresIn)

	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "old-refresh", form.Get("refresh_token"))
	assert.Equal(t, "client-id", form.Get("client_id"))
	assert.Equal(t, "client-secret", form.Get("client_secret"))
}

func TestRefreshToken_OmittedExpiryStaysNil(t *testing.T) {
	srv, _ := newTokenServer(t, http.StatusOK,
		`{"access_token":"a","refresh_token":"r"}`)

	grant, err := testOAuth(srv).RefreshToken(context.Background(), "old")

	require.NoError(t, err)
	assert.Nil(t, grant.ExpiresIn)
}

func TestRefreshToken_RejectionIsAnError(t *testing.T) {
	srv, _ := newTokenServer(t, http.StatusBadRequest, `{"error":"invalid_grant"}`)

	_, err := testOAuth(srv).RefreshToken(context.Background(), "dead")

	assert.Error(t, err)
}

func TestRefreshToken_IncompletePairIsAnError(t *testing.T) {
	srv, _ := newTokenServer(t, http.StatusOK, `{"access_token":"a"}`)

	_, err := testOAuth(srv).RefreshToken(context.Background(), "old")

	assert.Error(t, err, "a grant without a refresh token would break rotation")
}

func TestExchangeCode_SendsAuthorizationCodeGrant(t *testing.T) {
	srv, form := newTokenServer(t, http.StatusOK,
		`{"access_token":"a","refresh_token":"r"}`)

	_, err := testOAuth(srv).ExchangeCode(context.Background(), "auth-code", "https://app.example.com/oauth/callback")

	require.NoError(t, err)
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "auth-code", form.Get("code"))
	assert.Equal(t, "https://app.example.com/oauth/callback", form.Get("redirect_uri"))
}

// =============================================================================
// AUTHORIZE URL
// =============================================================================

func TestBuildAuthorizeURL(t *testing.T) {
	o := &OAuth{ClientID: "client-id", AuthorizeURL: DefaultAuthorizeURL}

	raw := o.BuildAuthorizeURL("https://app.example.com/oauth/callback", "state-123")

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "code", parsed.Query().Get("response_type"))
	assert.Equal(t, "client-id", parsed.Query().Get("client_id"))
	assert.Equal(t, "https://app.example.com/oauth/callback", parsed.Query().Get("redirect_uri"))
	assert.Equal(t, "state-123", parsed.Query().Get("state"))
}

// =============================================================================
// ACCOUNT QUERY
// =============================================================================

func TestAccountInfo(t *testing.T) {
	srv := newGraphQLServer(t, func(w http.ResponseWriter, _ recordedRequest) {
		respondJSON(w, `{"data":{"account":{"id":"acct-1","name":"  Test Plumbing Ltd  "}}}`)
	})
	o := &OAuth{GraphQL: testClient(srv)}

	account, err := o.AccountInfo(context.Background(), "token")

	require.NoError(t, err)
	assert.Equal(t, "acct-1", account.ID)
	assert.Equal(t, "Test Plumbing Ltd", account.Name, "display name is trimmed")
}

func TestAccountInfo_MissingIDIsAnError(t *testing.T) {
	srv := newGraphQLServer(t, func(w http.ResponseWriter, _ recordedRequest) {
		respondJSON(w, `{"data":{"account":{"id":"","name":""}}}`)
	})
	o := &OAuth{GraphQL: testClient(srv)}

	_, err := o.AccountInfo(context.Background(), "token")

	assert.Error(t, err)
}
