package search

import (
	"reflect"
	"testing"

	"vodstream/searchservice/internal/domain"
)

func makeResult(source, title, year string, episodes int) domain.SearchResult {
	eps := make([]string, episodes)
	for i := range eps {
		eps[i] = "https://cdn.example/ep"
	}
	return domain.SearchResult{
		ID:         title + "-" + source,
		Title:      title,
		Year:       year,
		Episodes:   eps,
		Source:     source,
		SourceName: source,
	}
}

func TestAggregateGroupsIgnoreWhitespace(t *testing.T) {
	results := []domain.SearchResult{
		makeResult("a", "The Matrix", "1999", 1),
		makeResult("b", "The  Matrix", "1999", 1),
	}

	groups := Aggregate(results, "matrix")
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if len(groups[0].Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(groups[0].Members))
	}
	if groups[0].Key != "TheMatrix-1999-movie" {
		t.Fatalf("unexpected group key %q", groups[0].Key)
	}
}

func TestAggregateSeparatesMovieFromSeries(t *testing.T) {
	results := []domain.SearchResult{
		makeResult("a", "Dune", "2021", 1),
		makeResult("b", "Dune", "2021", 8),
	}

	groups := Aggregate(results, "dune")
	if len(groups) != 2 {
		t.Fatalf("expected movie and series to stay apart, got %d groups", len(groups))
	}
}

func TestAggregateSeparatesYears(t *testing.T) {
	results := []domain.SearchResult{
		makeResult("a", "Dune", "1984", 1),
		makeResult("b", "Dune", "2021", 1),
	}

	groups := Aggregate(results, "dune")
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Year != "2021" || groups[1].Year != "1984" {
		t.Fatalf("expected newer year first, got %q then %q", groups[0].Year, groups[1].Year)
	}
}

func TestAggregateQueryMatchesFirst(t *testing.T) {
	results := []domain.SearchResult{
		makeResult("a", "Unrelated Epic", "2024", 1),
		makeResult("b", "Matrix", "1999", 1),
	}

	groups := Aggregate(results, "matrix")
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Title != "Matrix" {
		t.Fatalf("expected query match first, got %q", groups[0].Title)
	}
}

func TestAggregateUnknownYearLast(t *testing.T) {
	results := []domain.SearchResult{
		makeResult("a", "Matrix Origins", "", 1),
		makeResult("b", "Matrix", "1999", 1),
		makeResult("c", "Matrix Reborn", "2003", 1),
	}

	groups := Aggregate(results, "matrix")
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	if groups[0].Year != "2003" || groups[1].Year != "1999" {
		t.Fatalf("expected known years first by recency, got %q then %q", groups[0].Year, groups[1].Year)
	}
	if groups[2].Year != domain.YearUnknown {
		t.Fatalf("expected unknown year last, got %q", groups[2].Year)
	}
}

func TestAggregateDeterministicOrder(t *testing.T) {
	results := []domain.SearchResult{
		makeResult("a", "Matrix", "1999", 1),
		makeResult("b", "Matrix Reloaded", "2003", 1),
		makeResult("c", "Matrix", "1999", 8),
		makeResult("d", "Animatrix", "2003", 1),
	}

	first := Aggregate(results, "matrix")
	second := Aggregate(results, "matrix")
	if !reflect.DeepEqual(first, second) {
		t.Fatal("aggregation order must be deterministic for identical input")
	}
}

func TestAggregateMembersKeepMergeOrder(t *testing.T) {
	results := []domain.SearchResult{
		makeResult("high", "Matrix", "1999", 1),
		makeResult("medium", "Matrix", "1999", 1),
		makeResult("low", "Matrix", "1999", 1),
	}

	groups := Aggregate(results, "matrix")
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	sources := make([]string, 0, 3)
	for _, member := range groups[0].Members {
		sources = append(sources, member.Source)
	}
	if !reflect.DeepEqual(sources, []string{"high", "medium", "low"}) {
		t.Fatalf("unexpected member order: %v", sources)
	}
}

func TestCountBySourceOrdersByCount(t *testing.T) {
	results := []domain.SearchResult{
		makeResult("beta", "A", "2020", 1),
		makeResult("alpha", "B", "2020", 1),
		makeResult("beta", "C", "2020", 1),
		makeResult("gamma", "D", "2020", 1),
	}

	counts := CountBySource(results)
	if len(counts) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(counts))
	}
	if counts[0].Key != "beta" || counts[0].Count != 2 {
		t.Fatalf("expected beta first with 2, got %+v", counts[0])
	}
	// alpha and gamma tie on count, key breaks the tie
	if counts[1].Key != "alpha" || counts[2].Key != "gamma" {
		t.Fatalf("unexpected tie order: %+v", counts[1:])
	}
}

func TestGroupKeyEmptyYearUsesSentinel(t *testing.T) {
	key := groupKey(makeResult("a", "No Year Show", "", 5))
	if key != "NoYearShow-unknown-tv" {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestNormalizeQueryCollapsesWhitespace(t *testing.T) {
	if got := normalizeQuery("  The   MATRIX  "); got != "the matrix" {
		t.Fatalf("unexpected normalized query %q", got)
	}
}
