/*
client.go - Remote platform interfaces consumed by the engine

PURPOSE:
  The engine depends on exactly two remote catalog operations (page fetch,
  entry mutation) plus the OAuth refresh grant and the outbound disconnect
  notification. These interfaces keep the engine testable against fakes and
  independent of the wire protocol.

ERROR CONTRACT:
  Implementations must return engine.ErrUnauthorized (possibly wrapped) for
  a 401 so the retry policy can refresh and retry, and wrap
  engine.ErrRemoteUnavailable for timeouts and 5xx responses.

SEE ALSO:
  - jobber/client.go: Production GraphQL implementation
  - jobber/oauth.go:  Production OAuth implementation
*/
package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// CatalogPage is one page of the remote catalog.
type CatalogPage struct {
	Entries []CatalogEntry

	// NextCursor is empty when the server signals no further page.
	NextCursor string
	HasNext    bool
}

// CatalogClient performs the two catalog operations the engine needs, plus
// the outbound disconnect notification.
type CatalogClient interface {
	// ProbeCodeField reports whether the remote schema exposes a code (SKU)
	// field. Decided once per run; when false the code tier is skipped.
	ProbeCodeField(ctx context.Context, accessToken string) (bool, error)

	// FetchPage returns one catalog page. An empty cursor fetches the first.
	FetchPage(ctx context.Context, accessToken, cursor string, withCodes bool) (*CatalogPage, error)

	// MutateEntry sets the entry's cost, and its selling price when price is
	// non-nil, in a single call. Remote field validation failures come back
	// as a *RowError.
	MutateEntry(ctx context.Context, accessToken string, entryID EntryID, cost decimal.Decimal, price *decimal.Decimal) error

	// MarkDisconnected tells the remote platform the app was disconnected.
	// Best-effort: callers log and ignore failures.
	MarkDisconnected(ctx context.Context, accessToken string) error
}

// TokenGrant is the result of a refresh-grant exchange.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string

	// ExpiresIn is the token lifetime in seconds; nil when not reported.
	ExpiresIn *int
}

// OAuthClient performs the refresh-grant exchange against the remote token
// endpoint.
type OAuthClient interface {
	RefreshToken(ctx context.Context, refreshToken string) (*TokenGrant, error)
}
