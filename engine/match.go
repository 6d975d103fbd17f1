/*
match.go - Tiered row-to-entry matching

PURPOSE:
  Resolves a CSV row identifier to a catalog entry using an ordered list of
  matcher strategies, short-circuiting on the first hit:

    1. Code:            exact, case-sensitive after trim (skipped run-wide
                        when the remote schema has no code field)
    2. Exact name:      trimmed comparison
    3. Normalized name: NFKC fold, lowercase, whitespace collapsed
    4. Fuzzy:           levenshtein similarity ratio at or above threshold,
                        single strict maximum required (opt-in)

TIE-BREAK:
  Duplicate names or codes in the catalog are not an error: the first entry
  encountered during pagination wins. The index maps keep only the first
  occurrence per key, which makes the tie-break deterministic against a
  fixed page order.

FUZZY TIES:
  Multiple entries sharing the best score, or none clearing the threshold,
  leave the row unmatched.

SEE ALSO:
  - resolver.go: Builds the index and runs the tier list per row
*/
package engine

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/unicode/norm"
)

// normalizeName lowercases, applies NFKC normalization and collapses all
// internal whitespace to single spaces. Used by the normalized-name and
// fuzzy tiers.
func normalizeName(s string) string {
	folded := norm.NFKC.String(strings.TrimSpace(s))
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// similarity returns a levenshtein-based ratio in [0,1] between the
// normalized forms of a and b.
func similarity(a, b string) float64 {
	na, nb := normalizeName(a), normalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	dist := levenshtein.ComputeDistance(na, nb)
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	return 1 - float64(dist)/float64(longest)
}

// =============================================================================
// CATALOG INDEX - Run-local, first occurrence wins
// =============================================================================

// catalogIndex holds all entries from one run's pagination, in page order,
// with lookup maps keyed by code, trimmed name and normalized name.
type catalogIndex struct {
	entries []*CatalogEntry

	byCode       map[string]*CatalogEntry
	byName       map[string]*CatalogEntry
	byNormalized map[string]*CatalogEntry

	// codesAvailable is false when the remote schema exposes no code field;
	// the code tier is then skipped for the whole run.
	codesAvailable bool
}

func newCatalogIndex(codesAvailable bool) *catalogIndex {
	return &catalogIndex{
		byCode:         make(map[string]*CatalogEntry),
		byName:         make(map[string]*CatalogEntry),
		byNormalized:   make(map[string]*CatalogEntry),
		codesAvailable: codesAvailable,
	}
}

// add indexes one entry. Keys already present are left alone so the first
// entry in pagination order stays the winner.
func (idx *catalogIndex) add(e CatalogEntry) {
	entry := &e
	idx.entries = append(idx.entries, entry)

	if idx.codesAvailable {
		if code := strings.TrimSpace(entry.Code); code != "" {
			if _, dup := idx.byCode[code]; !dup {
				idx.byCode[code] = entry
			}
		}
	}
	name := strings.TrimSpace(entry.DisplayName)
	if name != "" {
		if _, dup := idx.byName[name]; !dup {
			idx.byName[name] = entry
		}
	}
	if normalized := normalizeName(entry.DisplayName); normalized != "" {
		if _, dup := idx.byNormalized[normalized]; !dup {
			idx.byNormalized[normalized] = entry
		}
	}
}

// =============================================================================
// MATCHER STRATEGIES
// =============================================================================

// matcher is one tier of the matching strategy. Returning (nil, false)
// means not applicable; the next tier runs.
type matcher interface {
	kind() MatchKind
	match(identifier string, idx *catalogIndex) (*CatalogEntry, bool)
}

type codeMatcher struct{}

func (codeMatcher) kind() MatchKind { return MatchCode }

func (codeMatcher) match(identifier string, idx *catalogIndex) (*CatalogEntry, bool) {
	if !idx.codesAvailable {
		return nil, false
	}
	entry, ok := idx.byCode[strings.TrimSpace(identifier)]
	return entry, ok
}

type exactNameMatcher struct{}

func (exactNameMatcher) kind() MatchKind { return MatchExactName }

func (exactNameMatcher) match(identifier string, idx *catalogIndex) (*CatalogEntry, bool) {
	entry, ok := idx.byName[strings.TrimSpace(identifier)]
	return entry, ok
}

type normalizedNameMatcher struct{}

func (normalizedNameMatcher) kind() MatchKind { return MatchNormalizedName }

func (normalizedNameMatcher) match(identifier string, idx *catalogIndex) (*CatalogEntry, bool) {
	normalized := normalizeName(identifier)
	if normalized == "" {
		return nil, false
	}
	entry, ok := idx.byNormalized[normalized]
	return entry, ok
}

// fuzzyMatcher accepts the single entry scoring strictly highest at or
// above the threshold. Ties at the maximum leave the row unmatched.
type fuzzyMatcher struct {
	threshold float64
}

func (fuzzyMatcher) kind() MatchKind { return MatchFuzzy }

func (f fuzzyMatcher) match(identifier string, idx *catalogIndex) (*CatalogEntry, bool) {
	var best *CatalogEntry
	bestScore := -1.0
	tie := false

	for _, entry := range idx.entries {
		score := similarity(identifier, entry.DisplayName)
		if score < f.threshold {
			continue
		}
		switch {
		case score > bestScore:
			bestScore = score
			best = entry
			tie = false
		case score == bestScore:
			tie = true
		}
	}

	if best == nil || tie {
		return nil, false
	}
	return best, true
}

// matchTiers returns the ordered strategy list for one run.
func matchTiers(opts Options) []matcher {
	tiers := []matcher{
		codeMatcher{},
		exactNameMatcher{},
		normalizedNameMatcher{},
	}
	if opts.FuzzyMatch {
		tiers = append(tiers, fuzzyMatcher{threshold: opts.fuzzyThreshold()})
	}
	return tiers
}

// matchRow runs the tiers in order, first hit wins. A row exhausting all
// enabled tiers is not found.
func matchRow(row SourceRow, idx *catalogIndex, tiers []matcher) MatchResult {
	for _, tier := range tiers {
		if entry, ok := tier.match(row.Identifier, idx); ok {
			return MatchResult{Row: row, Entry: entry, Kind: tier.kind()}
		}
	}
	return MatchResult{Row: row, Kind: MatchNone}
}
