package trakt

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"flixrank/models"
)

func TestExchangeCode(t *testing.T) {
	var receivedBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			t.Errorf("expected path /oauth/token, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("trakt-api-key") != "test-client-id" {
			t.Errorf("expected trakt-api-key header")
		}

		json.NewDecoder(r.Body).Decode(&receivedBody)

		json.NewEncoder(w).Encode(TokenResponse{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresIn:    7200,
			CreatedAt:    1700000000,
		})
	}))
	defer server.Close()

	origURL := traktAPIBaseURL
	defer func() { setBaseURL(origURL) }()
	setBaseURL(server.URL)

	client := NewClient("test-client-id", "test-secret")
	token, err := client.ExchangeCode("the-code", "http://localhost:7000/callback")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if token.AccessToken != "access-1" {
		t.Errorf("expected access-1, got %s", token.AccessToken)
	}
	if receivedBody["grant_type"] != "authorization_code" {
		t.Errorf("expected authorization_code grant, got %s", receivedBody["grant_type"])
	}
	if receivedBody["code"] != "the-code" {
		t.Errorf("expected code in body, got %s", receivedBody["code"])
	}
	if receivedBody["redirect_uri"] != "http://localhost:7000/callback" {
		t.Errorf("redirect_uri must match exactly, got %s", receivedBody["redirect_uri"])
	}
}

func TestRefreshAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["grant_type"] != "refresh_token" {
			t.Errorf("expected refresh_token grant, got %s", body["grant_type"])
		}
		json.NewEncoder(w).Encode(TokenResponse{AccessToken: "access-2", RefreshToken: "refresh-2", ExpiresIn: 7200})
	}))
	defer server.Close()

	origURL := traktAPIBaseURL
	defer func() { setBaseURL(origURL) }()
	setBaseURL(server.URL)

	client := NewClient("id", "secret")
	token, err := client.RefreshAccessToken("refresh-1", "http://localhost:7000/callback")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token.AccessToken != "access-2" {
		t.Errorf("expected access-2, got %s", token.AccessToken)
	}
}

func TestRefreshUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	origURL := traktAPIBaseURL
	defer func() { setBaseURL(origURL) }()
	setBaseURL(server.URL)

	client := NewClient("id", "secret")
	_, err := client.RefreshAccessToken("stale", "http://localhost:7000/callback")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthorizeURL(t *testing.T) {
	client := NewClient("abc", "secret")
	u := client.AuthorizeURL("http://localhost:7000/callback", "state-1")

	if !strings.Contains(u, "client_id=abc") {
		t.Errorf("missing client_id: %s", u)
	}
	if !strings.Contains(u, "response_type=code") {
		t.Errorf("missing response_type: %s", u)
	}
	if !strings.Contains(u, "state=state-1") {
		t.Errorf("missing state: %s", u)
	}
}

func TestRecommendationsUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	origURL := traktAPIBaseURL
	defer func() { setBaseURL(origURL) }()
	setBaseURL(server.URL)

	client := NewClient("id", "secret")
	_, err := client.Recommendations("bad-token", models.TypeMovie, 20)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRecommendationsMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/recommendations/movies") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("expected bearer token")
		}
		json.NewEncoder(w).Encode([]Movie{
			{Title: "Heat", Year: 1995, IDs: IDs{Trakt: 1, IMDB: "tt0113277", TMDB: 949}},
			{Title: "Obscure", Year: 2001, IDs: IDs{Trakt: 2, TMDB: 777}},
		})
	}))
	defer server.Close()

	origURL := traktAPIBaseURL
	defer func() { setBaseURL(origURL) }()
	setBaseURL(server.URL)

	client := NewClient("id", "secret")
	items, err := client.Recommendations("tok", models.TypeMovie, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != "tt0113277" {
		t.Errorf("id must prefer IMDB over trakt id, got %s", items[0].ID)
	}
	if items[1].ID != "tmdb:777" {
		t.Errorf("expected tmdb fallback id, got %s", items[1].ID)
	}
}

func TestTrendingMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/shows/trending") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("trending must not send auth")
		}
		json.NewEncoder(w).Encode([]trendingEntry{
			{Watchers: 100, Show: &Show{Title: "Severance", Year: 2022, IDs: IDs{IMDB: "tt11280740"}}},
		})
	}))
	defer server.Close()

	origURL := traktAPIBaseURL
	defer func() { setBaseURL(origURL) }()
	setBaseURL(server.URL)

	client := NewClient("id", "secret")
	items, err := client.Trending(models.TypeSeries, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Type != models.TypeSeries {
		t.Fatalf("unexpected items: %+v", items)
	}
	if items[0].ID != "tt11280740" {
		t.Errorf("expected imdb id, got %s", items[0].ID)
	}
}

func TestAddToHistory(t *testing.T) {
	var received SyncHistoryRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sync/history" {
			t.Errorf("expected /sync/history, got %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(SyncHistoryResponse{})
	}))
	defer server.Close()

	origURL := traktAPIBaseURL
	defer func() { setBaseURL(origURL) }()
	setBaseURL(server.URL)

	client := NewClient("id", "secret")
	_, err := client.AddToHistory("tok", SyncHistoryRequest{
		Movies: []SyncMovie{{IDs: SyncIDs{IMDB: "tt0113277"}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(received.Movies) != 1 || received.Movies[0].IDs.IMDB != "tt0113277" {
		t.Errorf("unexpected request body: %+v", received)
	}
}
