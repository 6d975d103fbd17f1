/*
oauth.go - Jobber OAuth token endpoint operations

PURPOSE:
  The three token-endpoint interactions the system needs:
  - Authorization-code exchange on OAuth completion
  - Refresh-grant exchange when an access token expires (engine.OAuthClient)
  - Authorize-URL construction for the connect redirect

  Plus the one GraphQL call outside the catalog: the account query that
  identifies which tenant just connected.

ROTATION:
  Jobber rotates refresh tokens on every grant. Callers must persist the
  returned refresh token immediately; the one they sent is already dead.

SEE ALSO:
  - engine/token.go: Drives RefreshToken and owns persistence
  - api/handlers.go: Drives the code exchange during the callback
*/
package jobber

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/partsync/pricesync/engine"
)

const (
	DefaultTokenURL     = "https://api.getjobber.com/api/oauth/token"
	DefaultAuthorizeURL = "https://api.getjobber.com/api/oauth/authorize"

	tokenHTTPTimeout = 15 * time.Second
)

const queryAccount = `query { account { id name } }`

// OAuth performs token-endpoint operations with one app's credentials.
type OAuth struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	AuthorizeURL string
	HTTPClient   *http.Client

	// GraphQL is used for the account query after a code exchange.
	GraphQL *Client
}

// NewOAuth returns an OAuth client against the production endpoints.
func NewOAuth(clientID, clientSecret string) *OAuth {
	return &OAuth{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     DefaultTokenURL,
		AuthorizeURL: DefaultAuthorizeURL,
		HTTPClient:   &http.Client{Timeout: tokenHTTPTimeout},
		GraphQL:      NewClient(),
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    *int   `json:"expires_in"`
}

// grant posts one form-encoded request to the token endpoint.
func (o *OAuth) grant(ctx context.Context, form url.Values) (*engine.TokenGrant, error) {
	form.Set("client_id", o.ClientID)
	form.Set("client_secret", o.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned %s", resp.Status)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	if tr.AccessToken == "" || tr.RefreshToken == "" {
		return nil, fmt.Errorf("token response missing access_token or refresh_token")
	}

	return &engine.TokenGrant{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    tr.ExpiresIn,
	}, nil
}

// RefreshToken exchanges a refresh token for a rotated token pair.
func (o *OAuth) RefreshToken(ctx context.Context, refreshToken string) (*engine.TokenGrant, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return o.grant(ctx, form)
}

// ExchangeCode exchanges an authorization code for the initial token pair.
func (o *OAuth) ExchangeCode(ctx context.Context, code, redirectURI string) (*engine.TokenGrant, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	return o.grant(ctx, form)
}

// BuildAuthorizeURL is the URL the user visits to connect their account.
func (o *OAuth) BuildAuthorizeURL(redirectURI, state string) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", o.ClientID)
	params.Set("redirect_uri", redirectURI)
	params.Set("state", state)
	return o.AuthorizeURL + "?" + params.Encode()
}

// =============================================================================
// ACCOUNT QUERY
// =============================================================================

// Account identifies the tenant behind an access token.
type Account struct {
	ID   string
	Name string
}

type accountData struct {
	Account struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"account"`
}

// AccountInfo runs the account query with a fresh access token.
func (o *OAuth) AccountInfo(ctx context.Context, accessToken string) (*Account, error) {
	var data accountData
	if err := o.GraphQL.do(ctx, accessToken, queryAccount, nil, &data); err != nil {
		return nil, err
	}
	if data.Account.ID == "" {
		return nil, fmt.Errorf("account query returned no id")
	}
	return &Account{
		ID:   data.Account.ID,
		Name: strings.TrimSpace(data.Account.Name),
	}, nil
}
