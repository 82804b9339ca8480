package models

// Media types used throughout the catalog layer.
const (
	TypeMovie  = "movie"
	TypeSeries = "series"
)

// IsValidMediaType reports whether t is a media type this add-on serves.
func IsValidMediaType(t string) bool {
	return t == TypeMovie || t == TypeSeries
}

// CatalogItem is the canonical output unit produced by every provider.
// The ID prefers a stable external identifier (IMDB "tt...") over a
// provider-local one ("tmdb:603", "trakt:42", "nflx:movie:wednesday").
type CatalogItem struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"` // "movie" or "series"
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	ReleaseYear   int      `json:"releaseYear,omitempty"`
	PosterURL     string   `json:"posterUrl,omitempty"`
	BackgroundURL string   `json:"backgroundUrl,omitempty"`
	Rating        float64  `json:"rating,omitempty"`
	Genres        []string `json:"genres,omitempty"`
	Cast          []string `json:"cast,omitempty"`
}

// RawRankEntry is a scraper-internal (rank, title) pair extracted from the
// ranking page. It is consumed immediately by enrichment and never cached.
type RawRankEntry struct {
	Rank         int
	RawTitle     string
	WeeksInTop10 string
}

// MatchCandidate is a scored search result from the title-match engine.
type MatchCandidate struct {
	ExternalID     string `json:"externalId"`
	CanonicalTitle string `json:"canonicalTitle"`
	MediaType      string `json:"mediaType"`
	Year           int    `json:"year,omitempty"`
	Confidence     int    `json:"confidenceScore"` // 0..100
}
