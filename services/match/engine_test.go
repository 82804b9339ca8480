package match

import (
	"context"
	"errors"
	"testing"

	"flixrank/services/tmdb"
)

type fakeSearcher struct {
	results []tmdb.SearchResult
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, _, query string, _ int) ([]tmdb.SearchResult, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

func TestScoreExactTitleAndYear(t *testing.T) {
	if got := Score("The Matrix", 1999, "the matrix", 1999); got != 100 {
		t.Errorf("exact title + exact year must score 100, got %d", got)
	}
}

func TestScoreTrimsBeforeComparing(t *testing.T) {
	if got := Score("  Heat  ", 1995, "Heat", 1995); got != 100 {
		t.Errorf("trimmed exact match must score 100, got %d", got)
	}
}

func TestScoreContainment(t *testing.T) {
	// 50 containment + 30 exact year
	if got := Score("Dune", 2021, "Dune: Part One", 2021); got != 80 {
		t.Errorf("expected 80, got %d", got)
	}
}

func TestScoreYearProximity(t *testing.T) {
	cases := []struct {
		rawYear, candYear, want int
	}{
		{2020, 2020, 100}, // 70 + 30
		{2020, 2021, 90},  // 70 + 20
		{2020, 2018, 80},  // 70 + 10
		{2020, 2015, 70},  // 70 + 0
	}
	for _, c := range cases {
		if got := Score("Same", c.rawYear, "Same", c.candYear); got != c.want {
			t.Errorf("years %d/%d: expected %d, got %d", c.rawYear, c.candYear, c.want, got)
		}
	}
}

func TestScoreNeutralYearCredit(t *testing.T) {
	// Missing year on either side gives a flat 15, not a penalty.
	if got := Score("Same", 0, "Same", 2020); got != 85 {
		t.Errorf("expected 85 with missing raw year, got %d", got)
	}
	if got := Score("Same", 2020, "Same", 0); got != 85 {
		t.Errorf("expected 85 with missing candidate year, got %d", got)
	}
}

func TestScoreDissimilarBound(t *testing.T) {
	// Completely dissimilar titles with no year info may never exceed
	// 40*ratio + 15.
	raw, cand := "xyzq", "abcdefgh"
	ratio := float64(len(raw)) / float64(len(cand))
	bound := int(40*ratio) + 15
	if got := Score(raw, 0, cand, 0); got > bound {
		t.Errorf("score %d exceeds bound %d", got, bound)
	}
}

func TestScoreAlwaysInRange(t *testing.T) {
	cases := []struct {
		rawTitle string
		rawYear  int
		cand     string
		candYear int
	}{
		{"", 0, "", 0},
		{"a", 2020, "a", 2020},
		{"Förlåt", 2023, "Foerlaat", 2023},
		{"very long title with many words", 1900, "x", 2100},
	}
	for _, c := range cases {
		got := Score(c.rawTitle, c.rawYear, c.cand, c.candYear)
		if got < 0 || got > 100 {
			t.Errorf("Score(%q, %d, %q, %d) = %d out of range", c.rawTitle, c.rawYear, c.cand, c.candYear, got)
		}
	}
}

func TestMatchScoresOnlyTopResult(t *testing.T) {
	// The second result would score higher, but the engine deliberately
	// trusts the index ranking and scores only the first entry.
	s := &fakeSearcher{results: []tmdb.SearchResult{
		{ID: 1, Title: "Wednesday Addams Special", Year: 2019},
		{ID: 2, Title: "Wednesday", Year: 2022},
	}}
	engine := NewEngine(s)

	cand := engine.Match(context.Background(), "series", "Wednesday", 2022)
	if cand == nil {
		t.Fatal("expected a candidate")
	}
	if cand.ExternalID != "tmdb:1" {
		t.Errorf("expected top search result, got %s", cand.ExternalID)
	}
	if cand.Confidence >= 100 {
		t.Errorf("top result is not an exact match, confidence %d", cand.Confidence)
	}
}

func TestMatchNoResults(t *testing.T) {
	engine := NewEngine(&fakeSearcher{})
	if cand := engine.Match(context.Background(), "movie", "Nonexistent", 0); cand != nil {
		t.Errorf("expected nil for empty result set, got %+v", cand)
	}
}

func TestMatchSearchErrorIsUnmatched(t *testing.T) {
	engine := NewEngine(&fakeSearcher{err: errors.New("upstream down")})
	if cand := engine.Match(context.Background(), "movie", "Heat", 1995); cand != nil {
		t.Errorf("network failure must yield nil candidate, got %+v", cand)
	}
}

func TestMatchEmptyTitle(t *testing.T) {
	s := &fakeSearcher{}
	engine := NewEngine(s)
	if cand := engine.Match(context.Background(), "movie", "   ", 0); cand != nil {
		t.Error("blank title must not match")
	}
	if len(s.queries) != 0 {
		t.Error("blank title must not hit the search index")
	}
}
