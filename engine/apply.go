/*
apply.go - Rate-limited mutation loop

PURPOSE:
  Issues one mutation call per matched, non-protected row: set the cost,
  and the selling price too when a markup is configured. Partial-failure
  semantics: one bad entry or remote validation error is recorded as a row
  error and the batch continues.

TERMINAL CONDITIONS:
  ErrReauthRequired (a second unauthorized response after one refresh and
  retry) stops the batch - every further call would fail the same way.
  Anything else is per-row.

COUNTING:
  Updated counts only mutations the remote platform acknowledged.
  SkippedProtected counts rows blocked by the protection gate. NotFound
  preserves original CSV order.

SEE ALSO:
  - diff.go:    Protection gate semantics
  - limiter.go: Shared pacing with catalog pagination
*/
package engine

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// markupPrice computes the selling price for a cost under a percentage
// markup, rounded to two decimal places.
func markupPrice(cost, markupPercent decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(markupPercent.Div(hundred))
	return cost.Mul(factor).Round(2)
}

// Applier issues the mutation calls for an apply run.
type Applier struct {
	Client CatalogClient
	Tokens *TokenManager
	Pacer  Pacer
}

// Apply walks the match results in order and mutates each matched,
// non-protected entry. The returned outcome is complete even when the run
// ends early on ErrReauthRequired.
func (a *Applier) Apply(ctx context.Context, accountID AccountID, matches []MatchResult, opts Options) SyncOutcome {
	out := SyncOutcome{Mode: ModeApply, NotFound: []string{}}
	applyMarkup := opts.MarkupPercent.IsPositive()
	policy := unauthorizedRetry()

	for _, m := range matches {
		if !m.Found() {
			out.NotFound = append(out.NotFound, m.Row.Identifier)
			continue
		}
		if m.Kind == MatchFuzzy {
			out.FuzzyMatched++
		}
		if opts.PriceProtection && protectedSkip(m) {
			out.SkippedProtected++
			continue
		}

		cost := m.Row.ProposedCost
		var price *decimal.Decimal
		if applyMarkup {
			p := markupPrice(cost, opts.MarkupPercent)
			price = &p
		}

		if err := a.Pacer.Wait(ctx); err != nil {
			out.Err = err.Error()
			return out
		}

		entryID := m.Entry.ID
		err := policy.Do(ctx, a.Tokens, accountID, func(token string) error {
			return a.Client.MutateEntry(ctx, token, entryID, cost, price)
		})
		switch {
		case err == nil:
			out.Updated++
		case IsReauthRequired(err):
			// Terminal: no further call can succeed without reconnecting.
			out.Err = reauthMessage
			return out
		default:
			var rowErr *RowError
			if !errors.As(err, &rowErr) {
				rowErr = &RowError{Identifier: m.Row.Identifier, EntryID: entryID, Message: err.Error()}
			}
			out.RowErrors = append(out.RowErrors, *rowErr)
		}
	}

	return out
}
