package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func entry(id, name, code string) CatalogEntry {
	return CatalogEntry{ID: EntryID(id), DisplayName: name, Code: code}
}

func indexOf(codesAvailable bool, entries ...CatalogEntry) *catalogIndex {
	idx := newCatalogIndex(codesAvailable)
	for _, e := range entries {
		idx.add(e)
	}
	return idx
}

// =============================================================================
// NORMALIZATION
// =============================================================================

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Widget", "widget"},
		{"  Widget  ", "widget"},
		{"COPPER   PIPE\t15mm", "copper pipe 15mm"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, normalizeName(tc.in), "input %q", tc.in)
	}
}

func TestSimilarity_IdenticalAndDisjoint(t *testing.T) {
	assert.Equal(t, 1.0, similarity("Copper Pipe", "copper   pipe"), "normalized-equal strings score 1")
	assert.Equal(t, 0.0, similarity("", "anything"), "empty side scores 0")
	assert.Less(t, similarity("zzzz", "aaaa"), 0.5, "disjoint strings score low")
}

// =============================================================================
// TIER PRECEDENCE
// =============================================================================

func TestMatch_CodeOutranksName(t *testing.T) {
	// GIVEN: One entry whose code equals the identifier, another whose name does
	// WHEN: Matching with codes available
	// THEN: The code match wins even though a name match also exists

	idx := indexOf(true,
		entry("p1", "BOLT-M8", ""), // name collides with the identifier
		entry("p2", "Hex Bolt 8mm", "BOLT-M8"),
	)
	tiers := matchTiers(Options{})

	m := matchRow(SourceRow{Identifier: "BOLT-M8"}, idx, tiers)
	require.True(t, m.Found())
	assert.Equal(t, EntryID("p2"), m.Entry.ID)
	assert.Equal(t, MatchCode, m.Kind)
}

func TestMatch_CodeTierSkippedWhenSchemaHasNoCodes(t *testing.T) {
	// GIVEN: The same catalog but the remote schema exposes no code field
	// WHEN: Matching the identifier
	// THEN: The name tier resolves it instead

	idx := indexOf(false,
		entry("p1", "BOLT-M8", ""),
		entry("p2", "Hex Bolt 8mm", "BOLT-M8"),
	)
	m := matchRow(SourceRow{Identifier: "BOLT-M8"}, idx, matchTiers(Options{}))
	require.True(t, m.Found())
	assert.Equal(t, EntryID("p1"), m.Entry.ID)
	assert.Equal(t, MatchExactName, m.Kind)
}

func TestMatch_CodeIsCaseSensitiveAfterTrim(t *testing.T) {
	idx := indexOf(true, entry("p1", "Bolt", "ABC-1"))
	tiers := matchTiers(Options{})

	m := matchRow(SourceRow{Identifier: "  ABC-1  "}, idx, tiers)
	assert.True(t, m.Found(), "trimmed identifier matches the code")

	m = matchRow(SourceRow{Identifier: "abc-1"}, idx, tiers)
	assert.False(t, m.Found(), "codes compare case-sensitively")
}

func TestMatch_NormalizedSucceedsWhereExactFailsOnWhitespaceAndCase(t *testing.T) {
	// GIVEN: A catalog name differing from the identifier only in case and spacing
	// WHEN: Matching
	// THEN: The normalized tier resolves it and fuzzy is never needed

	idx := indexOf(false, entry("p1", "Copper  Pipe 15mm", ""))
	m := matchRow(SourceRow{Identifier: "copper pipe 15MM"}, idx, matchTiers(Options{FuzzyMatch: true}))
	require.True(t, m.Found())
	assert.Equal(t, MatchNormalizedName, m.Kind, "fuzzy must not be attempted when normalized already succeeded")
}

// =============================================================================
// DUPLICATES - first entry in pagination order wins
// =============================================================================

func TestMatch_DuplicateNames_FirstPaginatedEntryWins(t *testing.T) {
	idx := indexOf(false,
		entry("first", "Widget", ""),
		entry("second", "Widget", ""),
	)
	m := matchRow(SourceRow{Identifier: "Widget"}, idx, matchTiers(Options{}))
	require.True(t, m.Found())
	assert.Equal(t, EntryID("first"), m.Entry.ID)
}

func TestMatch_DuplicateCodes_FirstPaginatedEntryWins(t *testing.T) {
	idx := indexOf(true,
		entry("first", "A", "DUP"),
		entry("second", "B", "DUP"),
	)
	m := matchRow(SourceRow{Identifier: "DUP"}, idx, matchTiers(Options{}))
	require.True(t, m.Found())
	assert.Equal(t, EntryID("first"), m.Entry.ID)
}

// =============================================================================
// FUZZY TIER
// =============================================================================

func TestMatch_FuzzyDisabledByDefault(t *testing.T) {
	idx := indexOf(false, entry("p1", "Copper Pipe 15mm", ""))
	m := matchRow(SourceRow{Identifier: "Coper Pipe 15mm"}, idx, matchTiers(Options{}))
	assert.False(t, m.Found(), "near-miss stays unmatched without the fuzzy tier")
}

func TestMatch_FuzzyAcceptsSingleCandidateAboveThreshold(t *testing.T) {
	idx := indexOf(false,
		entry("p1", "Copper Pipe 15mm", ""),
		entry("p2", "Completely Different Product", ""),
	)
	m := matchRow(SourceRow{Identifier: "Coper Pipe 15mm"}, idx, matchTiers(Options{FuzzyMatch: true}))
	require.True(t, m.Found())
	assert.Equal(t, EntryID("p1"), m.Entry.ID)
	assert.Equal(t, MatchFuzzy, m.Kind)
}

func TestMatch_FuzzyTieAtMaximumIsNotFound(t *testing.T) {
	// GIVEN: Two entries equally similar to the identifier
	// WHEN: Fuzzy matching
	// THEN: The tie leaves the row unmatched rather than guessing

	idx := indexOf(false,
		entry("p1", "Widget Alpha", ""),
		entry("p2", "Widget Alphb", ""),
	)
	m := matchRow(SourceRow{Identifier: "Widget Alphx"}, idx, matchTiers(Options{FuzzyMatch: true}))
	assert.False(t, m.Found())
	assert.Equal(t, MatchNone, m.Kind)
}

func TestMatch_FuzzyBelowThresholdIsNotFound(t *testing.T) {
	idx := indexOf(false, entry("p1", "Copper Pipe 15mm", ""))
	m := matchRow(SourceRow{Identifier: "Brass Elbow"}, idx, matchTiers(Options{FuzzyMatch: true, FuzzyThreshold: 0.85}))
	assert.False(t, m.Found())
}

func TestOptions_FuzzyThresholdDefaultsAndClamps(t *testing.T) {
	assert.Equal(t, DefaultFuzzyThreshold, Options{}.fuzzyThreshold())
	assert.Equal(t, 0.5, Options{FuzzyThreshold: 0.5}.fuzzyThreshold())
	assert.Equal(t, 1.0, Options{FuzzyThreshold: 3}.fuzzyThreshold())
}
