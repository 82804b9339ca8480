package match

import (
	"context"
	"log"
	"strconv"
	"strings"

	"flixrank/models"
	"flixrank/services/tmdb"
)

// Searcher is the slice of the TMDB client the engine needs.
type Searcher interface {
	Search(ctx context.Context, mediaType, query string, year int) ([]tmdb.SearchResult, error)
}

// Engine maps a free-text title (optionally with a year hint) to the
// best-matching record from the search index.
//
// The engine scores only the index's top result rather than re-ranking the
// full candidate set. Scoring every candidate would multiply detail lookups
// against a rate-limited API for marginal gain, so the index's own ranking is
// trusted and annotated with a confidence score.
type Engine struct {
	searcher Searcher
}

// NewEngine creates an engine over the given search index.
func NewEngine(searcher Searcher) *Engine {
	return &Engine{searcher: searcher}
}

// Match queries the search index with the raw title and scores the top
// result. It returns nil for "unmatched": zero results, a network failure or
// a non-success response. Callers must treat nil as unmatched, never fatal.
// Spelling normalization is the caller's job; the engine scores the query it
// is given.
func (e *Engine) Match(ctx context.Context, mediaType, title string, year int) *models.MatchCandidate {
	if strings.TrimSpace(title) == "" {
		return nil
	}

	results, err := e.searcher.Search(ctx, mediaType, title, year)
	if err != nil {
		log.Printf("[match] search failed title=%q: %v", title, err)
		return nil
	}
	if len(results) == 0 {
		return nil
	}

	top := results[0]
	return &models.MatchCandidate{
		ExternalID:     "tmdb:" + strconv.FormatInt(top.ID, 10),
		CanonicalTitle: top.Title,
		MediaType:      mediaType,
		Year:           top.Year,
		Confidence:     Score(title, year, top.Title, top.Year),
	}
}

const (
	maxTitleScore = 70
	maxYearScore  = 30

	containmentScore = 50
	ratioScale       = 40
	neutralYearScore = 15
)

// Score computes the deterministic 0..100 confidence between a raw title
// (with optional year) and a candidate record.
//
// Title component (max 70): exact case-insensitive match after trimming
// scores 70, one string containing the other scores 50, otherwise the
// length-ratio heuristic shorter/longer scaled to 40. Year component
// (max 30): exact 30, within one year 20, within two 10; when either side
// has no year the component is a flat neutral 15 rather than a penalty.
func Score(rawTitle string, rawYear int, candTitle string, candYear int) int {
	score := titleScore(rawTitle, candTitle) + yearScore(rawYear, candYear)
	if score > 100 {
		score = 100
	}
	return score
}

func titleScore(raw, cand string) int {
	a := strings.ToLower(strings.TrimSpace(raw))
	b := strings.ToLower(strings.TrimSpace(cand))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return maxTitleScore
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return containmentScore
	}

	shorter, longer := len([]rune(a)), len([]rune(b))
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	return int(float64(ratioScale) * float64(shorter) / float64(longer))
}

func yearScore(rawYear, candYear int) int {
	if rawYear <= 0 || candYear <= 0 {
		return neutralYearScore
	}
	diff := rawYear - candYear
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff == 0:
		return maxYearScore
	case diff == 1:
		return 20
	case diff == 2:
		return 10
	default:
		return 0
	}
}

