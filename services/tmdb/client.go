package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"flixrank/models"
	"flixrank/services/cache"
)

var (
	tmdbAPIBaseURL   = "https://api.themoviedb.org/3"
	tmdbImageBaseURL = "https://image.tmdb.org/t/p"
)

// setBaseURL overrides the API base URL; used by tests.
func setBaseURL(u string) {
	tmdbAPIBaseURL = u
}

const listCacheTTL = 6 * time.Hour

// stableIDCacheTTL covers TMDB↔IMDB mappings, which essentially never change.
const stableIDCacheTTL = 7 * 24 * time.Hour

// Client is a minimal TMDB v3 client (api-key query auth, the search,
// trending, now-playing and external-id endpoints we need).
type Client struct {
	apiKey   string
	language string
	httpc    *http.Client
	cache    cache.Store
}

// NewClient creates a TMDB client. The cache backs all list endpoints.
func NewClient(apiKey, language string, httpc *http.Client, store cache.Store) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	if language == "" {
		language = "en-US"
	}
	if store == nil {
		store = cache.NewMemory()
	}
	return &Client{apiKey: apiKey, language: language, httpc: httpc, cache: store}
}

// IsConfigured reports whether an API key is present.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// SearchResult is one entry from the TMDB search index, in index order.
type SearchResult struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Year      int    `json:"year"`
	MediaType string `json:"mediaType"`
}

type searchResponse struct {
	Results []struct {
		ID           int64  `json:"id"`
		Title        string `json:"title"`          // movies
		Name         string `json:"name"`           // tv
		ReleaseDate  string `json:"release_date"`   // movies
		FirstAirDate string `json:"first_air_date"` // tv
	} `json:"results"`
}

// Search queries the TMDB search index for the given media type, preserving
// the index's own ranking. year of 0 means no year filter.
func (c *Client) Search(ctx context.Context, mediaType, query string, year int) ([]SearchResult, error) {
	if query == "" {
		return nil, errors.New("empty query")
	}

	q := url.Values{}
	q.Set("query", query)
	endpoint := "/search/movie"
	if mediaType == models.TypeSeries {
		endpoint = "/search/tv"
		if year > 0 {
			q.Set("first_air_date_year", strconv.Itoa(year))
		}
	} else if year > 0 {
		q.Set("year", strconv.Itoa(year))
	}

	var resp searchResponse
	if err := c.getJSON(ctx, endpoint, q, &resp); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		title := r.Title
		date := r.ReleaseDate
		if mediaType == models.TypeSeries {
			title = r.Name
			date = r.FirstAirDate
		}
		results = append(results, SearchResult{
			ID:        r.ID,
			Title:     title,
			Year:      yearFromDate(date),
			MediaType: mediaType,
		})
	}
	return results, nil
}

type listResponse struct {
	Results []listEntry `json:"results"`
}

type listEntry struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	VoteAverage  float64 `json:"vote_average"`
}

// trending fetches this week's trending list for the media type.
func (c *Client) trending(ctx context.Context, mediaType string) ([]listEntry, error) {
	endpoint := "/trending/movie/week"
	if mediaType == models.TypeSeries {
		endpoint = "/trending/tv/week"
	}
	return c.fetchList(ctx, endpoint, mediaType)
}

// nowPlaying fetches the currently-in-cinemas (movie) or currently-airing
// (series) list.
func (c *Client) nowPlaying(ctx context.Context, mediaType string) ([]listEntry, error) {
	endpoint := "/movie/now_playing"
	if mediaType == models.TypeSeries {
		endpoint = "/tv/on_the_air"
	}
	return c.fetchList(ctx, endpoint, mediaType)
}

func (c *Client) fetchList(ctx context.Context, endpoint, mediaType string) ([]listEntry, error) {
	key := cache.Key("tmdb", "list", endpoint, mediaType)
	var cached []listEntry
	if cache.GetJSON(c.cache, key, &cached) {
		return cached, nil
	}

	var resp listResponse
	if err := c.getJSON(ctx, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	cache.SetJSON(c.cache, key, resp.Results, listCacheTTL)
	return resp.Results, nil
}

// NewAndPopular is the deduplicated union (by TMDB id) of the trending and
// now-playing lists, preserving first-seen order.
func (c *Client) NewAndPopular(ctx context.Context, mediaType string) ([]models.CatalogItem, error) {
	trending, err := c.trending(ctx, mediaType)
	if err != nil {
		return nil, err
	}
	nowPlaying, err := c.nowPlaying(ctx, mediaType)
	if err != nil {
		// Partial data beats none; the union degrades to trending alone.
		nowPlaying = nil
	}

	seen := make(map[int64]bool)
	items := make([]models.CatalogItem, 0, len(trending)+len(nowPlaying))
	for _, e := range append(trending, nowPlaying...) {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		items = append(items, c.catalogItem(ctx, mediaType, e))
	}
	return items, nil
}

// catalogItem maps a list entry to the canonical shape, preferring the IMDB
// cross-reference id when the secondary lookup resolves one.
func (c *Client) catalogItem(ctx context.Context, mediaType string, e listEntry) models.CatalogItem {
	title := e.Title
	date := e.ReleaseDate
	if mediaType == models.TypeSeries {
		title = e.Name
		date = e.FirstAirDate
	}

	id := "tmdb:" + strconv.FormatInt(e.ID, 10)
	if imdbID, err := c.ExternalIMDBID(ctx, mediaType, e.ID); err == nil && imdbID != "" {
		id = imdbID
	}

	return models.CatalogItem{
		ID:            id,
		Type:          mediaType,
		Title:         title,
		Description:   e.Overview,
		ReleaseYear:   yearFromDate(date),
		PosterURL:     ImageURL(e.PosterPath, "w342"),
		BackgroundURL: ImageURL(e.BackdropPath, "w1280"),
		Rating:        e.VoteAverage,
	}
}

// ExternalIMDBID resolves the IMDB id for a TMDB id via the external_ids
// endpoint, cached with a long TTL since the mapping is stable.
func (c *Client) ExternalIMDBID(ctx context.Context, mediaType string, tmdbID int64) (string, error) {
	key := cache.Key("tmdb", "imdb-id", mediaType, strconv.FormatInt(tmdbID, 10))
	if b, ok := c.cache.Get(key); ok {
		return string(b), nil
	}

	endpoint := fmt.Sprintf("/movie/%d/external_ids", tmdbID)
	if mediaType == models.TypeSeries {
		endpoint = fmt.Sprintf("/tv/%d/external_ids", tmdbID)
	}

	var resp struct {
		IMDBID string `json:"imdb_id"`
	}
	if err := c.getJSON(ctx, endpoint, nil, &resp); err != nil {
		return "", err
	}

	c.cache.Set(key, []byte(resp.IMDBID), stableIDCacheTTL)
	return resp.IMDBID, nil
}

// FindByIMDB resolves an IMDB id back to a TMDB id and media type.
func (c *Client) FindByIMDB(ctx context.Context, imdbID string) (string, int64, error) {
	key := cache.Key("tmdb", "find", imdbID)
	type found struct {
		MediaType string `json:"mediaType"`
		ID        int64  `json:"id"`
	}
	var cached found
	if cache.GetJSON(c.cache, key, &cached) {
		return cached.MediaType, cached.ID, nil
	}

	q := url.Values{}
	q.Set("external_source", "imdb_id")

	var resp struct {
		MovieResults []struct {
			ID int64 `json:"id"`
		} `json:"movie_results"`
		TVResults []struct {
			ID int64 `json:"id"`
		} `json:"tv_results"`
	}
	if err := c.getJSON(ctx, "/find/"+url.PathEscape(imdbID), q, &resp); err != nil {
		return "", 0, err
	}

	var f found
	switch {
	case len(resp.MovieResults) > 0:
		f = found{MediaType: models.TypeMovie, ID: resp.MovieResults[0].ID}
	case len(resp.TVResults) > 0:
		f = found{MediaType: models.TypeSeries, ID: resp.TVResults[0].ID}
	default:
		return "", 0, fmt.Errorf("no tmdb record for %s", imdbID)
	}

	cache.SetJSON(c.cache, key, f, stableIDCacheTTL)
	return f.MediaType, f.ID, nil
}

// Details holds the per-title fields we enrich catalog entries with.
type Details struct {
	Title        string
	Year         int
	Overview     string
	PosterPath   string
	BackdropPath string
	Rating       float64
	Genres       []string
}

// GetDetails fetches a single title's detail record, cache-aside.
func (c *Client) GetDetails(ctx context.Context, mediaType string, tmdbID int64) (*Details, error) {
	key := cache.Key("tmdb", "details", mediaType, strconv.FormatInt(tmdbID, 10))
	var cached Details
	if cache.GetJSON(c.cache, key, &cached) {
		return &cached, nil
	}

	endpoint := fmt.Sprintf("/movie/%d", tmdbID)
	if mediaType == models.TypeSeries {
		endpoint = fmt.Sprintf("/tv/%d", tmdbID)
	}

	var resp struct {
		Title        string `json:"title"`
		Name         string `json:"name"`
		Overview     string `json:"overview"`
		PosterPath   string `json:"poster_path"`
		BackdropPath string `json:"backdrop_path"`
		ReleaseDate  string `json:"release_date"`
		FirstAirDate string `json:"first_air_date"`
		VoteAverage  float64 `json:"vote_average"`
		Genres       []struct {
			Name string `json:"name"`
		} `json:"genres"`
	}
	if err := c.getJSON(ctx, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	title := resp.Title
	date := resp.ReleaseDate
	if mediaType == models.TypeSeries {
		title = resp.Name
		date = resp.FirstAirDate
	}
	d := Details{
		Title:        title,
		Year:         yearFromDate(date),
		Overview:     resp.Overview,
		PosterPath:   resp.PosterPath,
		BackdropPath: resp.BackdropPath,
		Rating:       resp.VoteAverage,
	}
	for _, g := range resp.Genres {
		d.Genres = append(d.Genres, g.Name)
	}

	cache.SetJSON(c.cache, key, d, listCacheTTL)
	return &d, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, q url.Values, v any) error {
	if q == nil {
		q = url.Values{}
	}
	q.Set("api_key", c.apiKey)
	q.Set("language", c.language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tmdbAPIBaseURL+endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("tmdb api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("tmdb request failed: %s - %s", resp.Status, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ImageURL builds a full poster/backdrop URL from a TMDB image path.
func ImageURL(path, size string) string {
	if path == "" {
		return ""
	}
	return tmdbImageBaseURL + "/" + size + path
}

func yearFromDate(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}
