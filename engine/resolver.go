/*
resolver.go - Paginated catalog resolution

PURPOSE:
  Pulls the full remote catalog page by page into a run-local index, then
  matches every source row against it through the tier list in match.go.

PAGINATION:
  Cursor-based: fetch, follow NextCursor, stop when the server signals no
  further page. The shared Pacer is acquired before every page fetch. A
  failure mid-pagination aborts the whole run with ErrRemoteUnavailable -
  matching rows against a partial catalog would produce wrong results.

CODE PROBE:
  One cheap probe request decides per run whether the remote schema exposes
  a code (SKU) field. When it does not, pages are fetched without the code
  field and the code tier is disabled run-wide.

SEE ALSO:
  - match.go:  Index structure and tier strategies
  - engine.go: Calls ResolveAll at the start of every run
*/
package engine

import (
	"context"
	"fmt"
)

// DefaultPageSize is how many catalog entries one page fetch requests.
const DefaultPageSize = 100

// Resolver paginates the remote catalog and matches rows to entries.
type Resolver struct {
	Client CatalogClient
	Tokens *TokenManager
	Pacer  Pacer
}

// ResolveAll fetches the complete catalog for the account and resolves each
// row to a MatchResult, preserving row order.
func (r *Resolver) ResolveAll(ctx context.Context, accountID AccountID, rows []SourceRow, opts Options) ([]MatchResult, error) {
	idx, err := r.buildIndex(ctx, accountID)
	if err != nil {
		return nil, err
	}

	tiers := matchTiers(opts)
	results := make([]MatchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, matchRow(row, idx, tiers))
	}
	return results, nil
}

// buildIndex probes for code support, then accumulates every page into a
// fresh index. Nothing survives the run.
func (r *Resolver) buildIndex(ctx context.Context, accountID AccountID) (*catalogIndex, error) {
	policy := unauthorizedRetry()

	var withCodes bool
	if err := r.Pacer.Wait(ctx); err != nil {
		return nil, err
	}
	err := policy.Do(ctx, r.Tokens, accountID, func(token string) error {
		available, probeErr := r.Client.ProbeCodeField(ctx, token)
		if probeErr != nil {
			return probeErr
		}
		withCodes = available
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("probing catalog schema: %w", err)
	}

	idx := newCatalogIndex(withCodes)
	cursor := ""
	for {
		if err := r.Pacer.Wait(ctx); err != nil {
			return nil, err
		}

		var page *CatalogPage
		err := policy.Do(ctx, r.Tokens, accountID, func(token string) error {
			var fetchErr error
			page, fetchErr = r.Client.FetchPage(ctx, token, cursor, withCodes)
			return fetchErr
		})
		if err != nil {
			return nil, fmt.Errorf("fetching catalog page: %w", err)
		}

		for _, entry := range page.Entries {
			idx.add(entry)
		}

		if !page.HasNext || page.NextCursor == "" {
			return idx, nil
		}
		cursor = page.NextCursor
	}
}
