/*
diff.go - Change classification for matched rows

PURPOSE:
  Compares each matched entry's current cost to the row's proposed cost and
  classifies it as increase, decrease or unchanged. Preview runs tally the
  classifications; apply runs reuse the same comparison for the
  price-protection gate.

COMPARISON:
  Decimal comparison of values as stored. The CSV value was rounded to two
  decimal places once at parse time; no further rounding happens here. An
  entry whose cost the remote platform did not report compares as zero for
  classification, matching what the user sees on the dashboard.
*/
package engine

import "github.com/shopspring/decimal"

// effectiveCurrentCost is the entry cost used for comparison; unknown costs
// count as zero.
func effectiveCurrentCost(entry *CatalogEntry) decimal.Decimal {
	if entry == nil || !entry.CostKnown {
		return decimal.Zero
	}
	return entry.CurrentCost
}

// Classify compares a matched row's proposed cost against the entry's
// current cost. Callers must not pass unmatched results; those are tallied
// separately and never classified.
func Classify(m MatchResult) Change {
	current := effectiveCurrentCost(m.Entry)
	switch m.Row.ProposedCost.Cmp(current) {
	case 1:
		return ChangeIncrease
	case -1:
		return ChangeDecrease
	default:
		return ChangeUnchanged
	}
}

// protectedSkip reports whether price protection blocks this row: only
// strictly-greater proposed costs pass, equality is a skip. A row whose
// current cost is unknown is never protected - there is nothing to guard.
func protectedSkip(m MatchResult) bool {
	if m.Entry == nil || !m.Entry.CostKnown {
		return false
	}
	return m.Row.ProposedCost.Cmp(m.Entry.CurrentCost) <= 0
}
