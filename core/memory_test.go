package core

import "testing"

func TestMemoryMatchesQueryCaseInsensitive(t *testing.T) {
	m := Memory{Title: "Use Pebble", Body: "embedded KV store", Tags: []string{"Storage"}}
	for _, q := range []string{"", "pebble", "PEBBLE", "kv", "storage"} {
		if !m.MatchesQuery(q) {
			t.Errorf("expected query %q to match", q)
		}
	}
	if m.MatchesQuery("postgres") {
		t.Error("did not expect unrelated query to match")
	}
}

func TestSearchFiltersMatches(t *testing.T) {
	room := "general"
	kind := "decision"
	m := Memory{Room: "general", Kind: MemoryDecision, Tags: []string{"storage", "infra"}}

	cases := []struct {
		name    string
		filters SearchFilters
		want    bool
	}{
		{"no filters", SearchFilters{}, true},
		{"matching room", SearchFilters{Room: &room}, true},
		{"wrong room", SearchFilters{Room: strPtr("other")}, false},
		{"matching kind", SearchFilters{Kind: &kind}, true},
		{"wrong kind", SearchFilters{Kind: strPtr("status")}, false},
		{"matching tag", SearchFilters{Tags: []string{"infra"}}, true},
		{"no matching tag", SearchFilters{Tags: []string{"unrelated"}}, false},
	}

	for _, tc := range cases {
		if got := tc.filters.Matches(m); got != tc.want {
			t.Errorf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func strPtr(s string) *string { return &s }
