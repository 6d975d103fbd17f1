/*
Package engine implements the CSV-to-catalog cost sync engine.

PURPOSE:
  Given a tenant's stored OAuth credentials and a parsed wholesaler CSV,
  the engine resolves each row to an entry in the remote product catalog,
  decides whether and how to mutate it, and applies the mutation under a
  shared rate limit with refresh-on-expiry token handling.

KEY CONCEPTS IN THIS FILE (types.go):
  - TenantConnection: Per-tenant OAuth credential record
  - CatalogEntry:     One remote product, held only for a single run
  - SourceRow:        One validated CSV line (identifier + proposed cost)
  - MatchResult:      Row resolved to an entry (or not found)
  - SyncOutcome:      Aggregated result of one preview or apply run

DESIGN PRINCIPLES:
  1. Precision: costs and prices use decimal.Decimal, never float math
  2. Run-local state: the catalog index is rebuilt every run, never cached
  3. Absolute writes: costs are set, not incremented - reruns are idempotent

SEE ALSO:
  - engine.go:   RunSync orchestration
  - resolver.go: Catalog pagination and tiered matching
  - apply.go:    Mutation loop and price protection
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// AccountID is the opaque tenant identifier issued by the remote platform.
type AccountID string

// EntryID is the opaque identifier of one remote catalog entry.
type EntryID string

// =============================================================================
// TENANT CONNECTION - OAuth credential record, owned by the ConnectionStore
// =============================================================================

// TenantConnection holds the OAuth tokens for one connected account.
// At most one record exists per AccountID. RefreshToken is always the most
// recently issued one: rotation invalidates the previous token the moment
// the new one is stored.
type TenantConnection struct {
	AccountID    AccountID
	AccountName  string
	AccessToken  string
	RefreshToken string

	// ExpiresAt is nil when the token endpoint did not report a lifetime.
	ExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// CATALOG ENTRY - Transient, rebuilt from pagination every run
// =============================================================================

// CatalogEntry is one product in the remote catalog as seen during a run.
type CatalogEntry struct {
	ID          EntryID
	DisplayName string

	// Code is the remote SKU field. Empty when the entry has no code or the
	// remote schema does not expose one.
	Code string

	// CurrentCost is only meaningful when CostKnown is true; the remote
	// platform may omit the cost field entirely.
	CurrentCost decimal.Decimal
	CostKnown   bool
}

// =============================================================================
// SOURCE ROW - One validated CSV line
// =============================================================================

// SourceRow is a validated (identifier, cost) pair from the uploaded CSV.
// Rows failing validation never reach the engine.
type SourceRow struct {
	Identifier   string
	ProposedCost decimal.Decimal
	Description  string
}

// =============================================================================
// MATCH RESULT
// =============================================================================

// MatchKind records which matching tier resolved a row.
type MatchKind string

const (
	MatchCode           MatchKind = "code"
	MatchExactName      MatchKind = "exact-name"
	MatchNormalizedName MatchKind = "normalized-name"
	MatchFuzzy          MatchKind = "fuzzy"
	MatchNone           MatchKind = "not-found"
)

// MatchResult pairs a source row with the catalog entry it resolved to.
// Entry is nil when no tier matched.
type MatchResult struct {
	Row   SourceRow
	Entry *CatalogEntry
	Kind  MatchKind
}

// Found reports whether the row resolved to a catalog entry.
func (m MatchResult) Found() bool { return m.Entry != nil }

// =============================================================================
// RUN MODE AND OPTIONS
// =============================================================================

// Mode selects between a read-only preview and a mutating apply run.
type Mode string

const (
	ModePreview Mode = "preview"
	ModeApply   Mode = "apply"
)

// DefaultFuzzyThreshold is the minimum similarity ratio for a fuzzy match.
const DefaultFuzzyThreshold = 0.85

// Options control matching and mutation policy for one run.
type Options struct {
	// PriceProtection skips rows whose proposed cost is not strictly greater
	// than the current cost. Equality is a skip, never an update.
	PriceProtection bool

	// FuzzyMatch enables the similarity tier after code/name tiers miss.
	FuzzyMatch bool

	// FuzzyThreshold is the minimum similarity ratio (0..1). Zero means
	// DefaultFuzzyThreshold.
	FuzzyThreshold float64

	// MarkupPercent, when positive, also writes a selling price of
	// round(cost * (1 + markup/100), 2) in the same mutation call.
	MarkupPercent decimal.Decimal
}

func (o Options) fuzzyThreshold() float64 {
	if o.FuzzyThreshold <= 0 {
		return DefaultFuzzyThreshold
	}
	if o.FuzzyThreshold > 1 {
		return 1
	}
	return o.FuzzyThreshold
}

// =============================================================================
// SYNC OUTCOME - Aggregated per-run result, never persisted
// =============================================================================

// Change classifies one matched row against its current catalog cost.
type Change string

const (
	ChangeIncrease  Change = "increase"
	ChangeDecrease  Change = "decrease"
	ChangeUnchanged Change = "unchanged"
)

// ChangeDetail describes one classified row in a preview run.
type ChangeDetail struct {
	Identifier  string          `json:"identifier"`
	EntryName   string          `json:"entry_name"`
	CurrentCost decimal.Decimal `json:"current_cost"`
	NewCost     decimal.Decimal `json:"new_cost"`
	Change      Change          `json:"change"`
}

// SyncOutcome is the result of one run. Apply mode populates Updated,
// SkippedProtected and RowErrors; preview mode populates the change counts
// and Details. NotFound preserves original CSV order in both modes.
type SyncOutcome struct {
	Mode Mode `json:"mode"`

	// Apply mode.
	Updated          int        `json:"updated"`
	SkippedProtected int        `json:"skipped_protected"`
	RowErrors        []RowError `json:"row_errors,omitempty"`

	// Preview mode.
	Increases int            `json:"increases"`
	Decreases int            `json:"decreases"`
	Unchanged int            `json:"unchanged"`
	Details   []ChangeDetail `json:"details,omitempty"`

	// Both modes.
	NotFound     []string `json:"not_found"`
	FuzzyMatched int      `json:"fuzzy_matched"`
	Err          string   `json:"error,omitempty"`
}
