package tmdb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"flixrank/models"
	"flixrank/services/cache"
)

func TestSearchMovie(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/movie" {
			t.Errorf("expected /search/movie, got %s", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "test-key" {
			t.Errorf("expected api_key query param")
		}
		if r.URL.Query().Get("query") != "Heat" {
			t.Errorf("expected query param, got %s", r.URL.Query().Get("query"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"id": 949, "title": "Heat", "release_date": "1995-12-15"},
				{"id": 950, "title": "Heat 2", "release_date": ""},
			},
		})
	}))
	defer server.Close()

	origURL := tmdbAPIBaseURL
	defer func() { setBaseURL(origURL) }()
	setBaseURL(server.URL)

	client := NewClient("test-key", "en-US", nil, cache.NewMemory())
	results, err := client.Search(context.Background(), models.TypeMovie, "Heat", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Title != "Heat" || results[0].Year != 1995 {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if results[1].Year != 0 {
		t.Errorf("empty release date should map to year 0, got %d", results[1].Year)
	}
}

func TestSearchSeriesUsesNameField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/tv" {
			t.Errorf("expected /search/tv, got %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"id": 1, "name": "Severance", "first_air_date": "2022-02-18"},
			},
		})
	}))
	defer server.Close()

	origURL := tmdbAPIBaseURL
	defer func() { setBaseURL(origURL) }()
	setBaseURL(server.URL)

	client := NewClient("k", "en-US", nil, cache.NewMemory())
	results, err := client.Search(context.Background(), models.TypeSeries, "Severance", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Title != "Severance" || results[0].Year != 2022 {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestNewAndPopularDedup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/trending/movie"):
			json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{"id": 1, "title": "Alpha", "release_date": "2026-01-01"},
					{"id": 2, "title": "Beta", "release_date": "2026-02-01"},
				},
			})
		case r.URL.Path == "/movie/now_playing":
			json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{"id": 2, "title": "Beta", "release_date": "2026-02-01"},
					{"id": 3, "title": "Gamma", "release_date": "2026-03-01"},
				},
			})
		case strings.HasSuffix(r.URL.Path, "/external_ids"):
			json.NewEncoder(w).Encode(map[string]any{"imdb_id": ""})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	origURL := tmdbAPIBaseURL
	defer func() { setBaseURL(origURL) }()
	setBaseURL(server.URL)

	client := NewClient("k", "en-US", nil, cache.NewMemory())
	items, err := client.NewAndPopular(context.Background(), models.TypeMovie)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(items) != 3 {
		t.Fatalf("expected 3 deduplicated items, got %d", len(items))
	}
	// First-seen order: trending first, then the now-playing tail.
	want := []string{"Alpha", "Beta", "Gamma"}
	for i, title := range want {
		if items[i].Title != title {
			t.Errorf("position %d: expected %s, got %s", i, title, items[i].Title)
		}
	}
}

func TestCatalogItemPrefersIMDBID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/trending/movie"):
			json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{"id": 603, "title": "The Matrix", "release_date": "1999-03-31", "poster_path": "/matrix.jpg"},
				},
			})
		case r.URL.Path == "/movie/now_playing":
			json.NewEncoder(w).Encode(map[string]any{"results": []map[string]any{}})
		case r.URL.Path == "/movie/603/external_ids":
			json.NewEncoder(w).Encode(map[string]any{"imdb_id": "tt0133093"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	origURL := tmdbAPIBaseURL
	defer func() { setBaseURL(origURL) }()
	setBaseURL(server.URL)

	client := NewClient("k", "en-US", nil, cache.NewMemory())
	items, err := client.NewAndPopular(context.Background(), models.TypeMovie)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].ID != "tt0133093" {
		t.Errorf("id must prefer the IMDB cross-reference, got %s", items[0].ID)
	}
	if items[0].PosterURL != "https://image.tmdb.org/t/p/w342/matrix.jpg" {
		t.Errorf("unexpected poster url %s", items[0].PosterURL)
	}
}

func TestCatalogItemFallsBackToLocalID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/trending/movie"):
			json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{"id": 42, "title": "Unknown", "release_date": "2026-01-01"},
				},
			})
		case r.URL.Path == "/movie/now_playing":
			json.NewEncoder(w).Encode(map[string]any{"results": []map[string]any{}})
		case strings.HasSuffix(r.URL.Path, "/external_ids"):
			w.WriteHeader(http.StatusNotFound)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	origURL := tmdbAPIBaseURL
	defer func() { setBaseURL(origURL) }()
	setBaseURL(server.URL)

	client := NewClient("k", "en-US", nil, cache.NewMemory())
	items, err := client.NewAndPopular(context.Background(), models.TypeMovie)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items[0].ID != "tmdb:42" {
		t.Errorf("expected provider-local fallback id, got %s", items[0].ID)
	}
}

func TestFindByIMDB(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/find/tt0133093" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"movie_results": []map[string]any{{"id": 603}},
			"tv_results":    []map[string]any{},
		})
	}))
	defer server.Close()

	origURL := tmdbAPIBaseURL
	defer func() { setBaseURL(origURL) }()
	setBaseURL(server.URL)

	client := NewClient("k", "en-US", nil, cache.NewMemory())
	mediaType, id, err := client.FindByIMDB(context.Background(), "tt0133093")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mediaType != models.TypeMovie || id != 603 {
		t.Errorf("unexpected result: %s %d", mediaType, id)
	}
}

func TestListCacheAvoidsSecondFetch(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"id": 1, "title": "Alpha"}},
		})
	}))
	defer server.Close()

	origURL := tmdbAPIBaseURL
	defer func() { setBaseURL(origURL) }()
	setBaseURL(server.URL)

	client := NewClient("k", "en-US", nil, cache.NewMemory())
	if _, err := client.trending(context.Background(), models.TypeMovie); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.trending(context.Background(), models.TypeMovie); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", calls)
	}
}
