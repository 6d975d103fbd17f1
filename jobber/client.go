/*
Package jobber is the remote platform client.

PURPOSE:
  Implements the engine's CatalogClient against Jobber's GraphQL API. Only
  the operations the engine needs exist here: the catalog page query (with
  and without the code field), the cost/price mutation, and the outbound
  app-disconnect notification. This is deliberately not a generic GraphQL
  client.

WIRE CONTRACT:
  Every request carries a bearer access token, a Content-Type of JSON and
  the pinned X-JOBBER-GRAPHQL-VERSION header, and runs under the client's
  HTTP timeout. Status mapping:
    401        -> engine.ErrUnauthorized (retry policy refreshes once)
    5xx        -> engine.ErrRemoteUnavailable
    userErrors -> *engine.RowError (mutation only; batch continues)

SEE ALSO:
  - oauth.go: Token endpoint operations
  - engine/client.go: The interfaces implemented here
*/
package jobber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/partsync/pricesync/engine"
)

const (
	DefaultGraphQLURL = "https://api.getjobber.com/api/graphql"
	GraphQLVersion    = "2026-02-17"

	defaultHTTPTimeout = 30 * time.Second
	pageSize           = 100
)

// =============================================================================
// QUERY DOCUMENTS
// =============================================================================

const queryProductsPage = `
query ProductsPage($first: Int!, $after: String) {
  productOrServices(first: $first, after: $after) {
    nodes { id name internalUnitCost }
    pageInfo { hasNextPage endCursor }
  }
}`

const queryProductsPageWithCode = `
query ProductsPageWithCode($first: Int!, $after: String) {
  productOrServices(first: $first, after: $after) {
    nodes { id name code internalUnitCost }
    pageInfo { hasNextPage endCursor }
  }
}`

const mutationUpdateCost = `
mutation UpdateProductCost($productOrServiceId: EncodedId!, $internalUnitCost: Float!) {
  productsAndServicesEdit(productOrServiceId: $productOrServiceId, input: { internalUnitCost: $internalUnitCost }) {
    productOrService { id }
    userErrors { message path }
  }
}`

const mutationUpdateCostAndPrice = `
mutation UpdateProductCostAndPrice($productOrServiceId: EncodedId!, $internalUnitCost: Float!, $unitPrice: Float!) {
  productsAndServicesEdit(productOrServiceId: $productOrServiceId, input: { internalUnitCost: $internalUnitCost, unitPrice: $unitPrice }) {
    productOrService { id }
    userErrors { message path }
  }
}`

const mutationAppDisconnect = `
mutation AppDisconnect {
  appDisconnect {
    app { name }
    userErrors { message }
  }
}`

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the Jobber GraphQL API.
type Client struct {
	URL        string
	HTTPClient *http.Client
}

// NewClient returns a client against the production API with the default
// timeout.
func NewClient() *Client {
	return &Client{
		URL:        DefaultGraphQLURL,
		HTTPClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// do posts one GraphQL request and decodes the data payload into out.
// GraphQL-level errors are returned as-is; the caller decides whether they
// are fatal (queries) or probe signals (code probe).
func (c *Client) do(ctx context.Context, accessToken, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-JOBBER-GRAPHQL-VERSION", GraphQLVersion)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return engine.ErrUnauthorized
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %s", engine.ErrRemoteUnavailable, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	var envelope graphqlEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return &queryError{message: envelope.Errors[0].Message}
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decoding data: %w", err)
		}
	}
	return nil
}

// queryError is a GraphQL-level error (HTTP 200 with an errors array).
type queryError struct {
	message string
}

func (e *queryError) Error() string { return "graphql: " + e.message }

// =============================================================================
// CATALOG OPERATIONS (engine.CatalogClient)
// =============================================================================

type productNode struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Code             string   `json:"code"`
	InternalUnitCost *float64 `json:"internalUnitCost"`
}

type productsPageData struct {
	ProductOrServices struct {
		Nodes    []productNode `json:"nodes"`
		PageInfo struct {
			HasNextPage bool   `json:"hasNextPage"`
			EndCursor   string `json:"endCursor"`
		} `json:"pageInfo"`
	} `json:"productOrServices"`
}

// ProbeCodeField issues a one-entry query including the code field. A
// GraphQL error means the schema does not expose it; transport errors
// propagate.
func (c *Client) ProbeCodeField(ctx context.Context, accessToken string) (bool, error) {
	var data productsPageData
	err := c.do(ctx, accessToken, queryProductsPageWithCode, map[string]any{"first": 1, "after": nil}, &data)
	if err != nil {
		var qe *queryError
		if errors.As(err, &qe) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FetchPage returns one catalog page. An empty cursor fetches the first.
func (c *Client) FetchPage(ctx context.Context, accessToken, cursor string, withCodes bool) (*engine.CatalogPage, error) {
	query := queryProductsPage
	if withCodes {
		query = queryProductsPageWithCode
	}
	variables := map[string]any{"first": pageSize, "after": nil}
	if cursor != "" {
		variables["after"] = cursor
	}

	var data productsPageData
	if err := c.do(ctx, accessToken, query, variables, &data); err != nil {
		return nil, err
	}

	conn := data.ProductOrServices
	page := &engine.CatalogPage{
		NextCursor: conn.PageInfo.EndCursor,
		HasNext:    conn.PageInfo.HasNextPage,
	}
	for _, node := range conn.Nodes {
		if node.ID == "" {
			continue
		}
		entry := engine.CatalogEntry{
			ID:          engine.EntryID(node.ID),
			DisplayName: node.Name,
			Code:        node.Code,
		}
		if node.InternalUnitCost != nil {
			entry.CurrentCost = decimal.NewFromFloat(*node.InternalUnitCost)
			entry.CostKnown = true
		}
		page.Entries = append(page.Entries, entry)
	}
	return page, nil
}

type editData struct {
	ProductsAndServicesEdit struct {
		ProductOrService struct {
			ID string `json:"id"`
		} `json:"productOrService"`
		UserErrors []struct {
			Message string   `json:"message"`
			Path    []string `json:"path"`
		} `json:"userErrors"`
	} `json:"productsAndServicesEdit"`
}

// MutateEntry sets the entry's cost, and its selling price when price is
// non-nil, in a single mutation.
func (c *Client) MutateEntry(ctx context.Context, accessToken string, entryID engine.EntryID, cost decimal.Decimal, price *decimal.Decimal) error {
	query := mutationUpdateCost
	variables := map[string]any{
		"productOrServiceId": string(entryID),
		"internalUnitCost":   cost.InexactFloat64(),
	}
	if price != nil {
		query = mutationUpdateCostAndPrice
		variables["unitPrice"] = price.InexactFloat64()
	}

	var data editData
	if err := c.do(ctx, accessToken, query, variables, &data); err != nil {
		return err
	}
	if userErrors := data.ProductsAndServicesEdit.UserErrors; len(userErrors) > 0 {
		return &engine.RowError{EntryID: entryID, Message: userErrors[0].Message}
	}
	return nil
}

// MarkDisconnected notifies Jobber the app was disconnected. Failures are
// returned for the caller to log; they never block teardown.
func (c *Client) MarkDisconnected(ctx context.Context, accessToken string) error {
	return c.do(ctx, accessToken, mutationAppDisconnect, nil, nil)
}
