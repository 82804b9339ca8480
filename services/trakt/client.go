package trakt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"flixrank/models"
)

var (
	traktAPIBaseURL = "https://api.trakt.tv"
	traktAuthURL    = "https://trakt.tv/oauth/authorize"
)

const traktAPIVersion = "2"

// ErrUnauthorized is returned when Trakt rejects the access token. Callers
// substitute public data instead of surfacing this to the catalog layer.
var ErrUnauthorized = errors.New("trakt: unauthorized")

// setBaseURL overrides the API base URL; used by tests.
func setBaseURL(u string) {
	traktAPIBaseURL = u
}

// Client handles Trakt API interactions for OAuth, catalogs and history sync
type Client struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string
}

// TokenResponse represents the response from /oauth/token
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	CreatedAt    int64  `json:"created_at"`
}

// ExpiryTime returns the absolute expiry of the issued access token.
func (t *TokenResponse) ExpiryTime() time.Time {
	created := t.CreatedAt
	if created == 0 {
		created = time.Now().Unix()
	}
	return time.Unix(created+int64(t.ExpiresIn), 0)
}

// UserProfile represents basic Trakt user information
type UserProfile struct {
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	Private  bool   `json:"private"`
	IDs      struct {
		Slug string `json:"slug"`
	} `json:"ids"`
}

// IDs holds external identifiers for a media item
type IDs struct {
	Trakt int    `json:"trakt,omitempty"`
	Slug  string `json:"slug,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int    `json:"tmdb,omitempty"`
	TVDB  int    `json:"tvdb,omitempty"`
}

// Movie represents a Trakt movie (extended=full fields included)
type Movie struct {
	Title    string   `json:"title"`
	Year     int      `json:"year"`
	IDs      IDs      `json:"ids"`
	Overview string   `json:"overview,omitempty"`
	Rating   float64  `json:"rating,omitempty"`
	Genres   []string `json:"genres,omitempty"`
}

// Show represents a Trakt TV show (extended=full fields included)
type Show struct {
	Title    string   `json:"title"`
	Year     int      `json:"year"`
	IDs      IDs      `json:"ids"`
	Overview string   `json:"overview,omitempty"`
	Rating   float64  `json:"rating,omitempty"`
	Genres   []string `json:"genres,omitempty"`
}

// trendingEntry wraps movies/shows in the /trending responses
type trendingEntry struct {
	Watchers int    `json:"watchers"`
	Movie    *Movie `json:"movie,omitempty"`
	Show     *Show  `json:"show,omitempty"`
}

// NewClient creates a new Trakt API client
func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// HasCredentials checks if the client has credentials configured
func (c *Client) HasCredentials() bool {
	return c.clientID != "" && c.clientSecret != ""
}

// ClientID returns the configured application client id.
func (c *Client) ClientID() string { return c.clientID }

// ClientSecret returns the configured application client secret.
func (c *Client) ClientSecret() string { return c.clientSecret }

// setTraktHeaders adds required Trakt API headers to a request
func (c *Client) setTraktHeaders(req *http.Request, accessToken string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("trakt-api-version", traktAPIVersion)
	req.Header.Set("trakt-api-key", c.clientID)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
}

// AuthorizeURL builds the browser URL for the authorization-code flow. The
// redirect URI must exactly match the value registered with Trakt.
func (c *Client) AuthorizeURL(redirectURI, state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.clientID)
	q.Set("redirect_uri", redirectURI)
	if state != "" {
		q.Set("state", state)
	}
	return traktAuthURL + "?" + q.Encode()
}

// ExchangeCode exchanges an authorization code for access/refresh tokens.
func (c *Client) ExchangeCode(code, redirectURI string) (*TokenResponse, error) {
	payload := map[string]string{
		"code":          code,
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"redirect_uri":  redirectURI,
		"grant_type":    "authorization_code",
	}
	return c.tokenRequest(payload)
}

// RefreshAccessToken refreshes an expired access token
func (c *Client) RefreshAccessToken(refreshToken, redirectURI string) (*TokenResponse, error) {
	payload := map[string]string{
		"refresh_token": refreshToken,
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"redirect_uri":  redirectURI,
		"grant_type":    "refresh_token",
	}
	return c.tokenRequest(payload)
}

func (c *Client) tokenRequest(payload map[string]string) (*TokenResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, traktAPIBaseURL+"/oauth/token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setTraktHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("trakt token request failed: %s - %s", resp.Status, string(respBody))
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &token, nil
}

// GetUserProfile retrieves information about the authenticated user
func (c *Client) GetUserProfile(accessToken string) (*UserProfile, error) {
	var profile UserProfile
	if err := c.getJSON("/users/me", accessToken, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Recommendations retrieves personalized recommendations for the user.
// mediaType is "movie" or "series".
func (c *Client) Recommendations(accessToken, mediaType string, limit int) ([]models.CatalogItem, error) {
	path := "/recommendations/" + traktPath(mediaType) +
		"?extended=full&ignore_collected=true&limit=" + strconv.Itoa(limit)

	if mediaType == models.TypeMovie {
		var movies []Movie
		if err := c.getJSON(path, accessToken, &movies); err != nil {
			return nil, err
		}
		items := make([]models.CatalogItem, 0, len(movies))
		for i := range movies {
			items = append(items, movies[i].CatalogItem())
		}
		return items, nil
	}

	var shows []Show
	if err := c.getJSON(path, accessToken, &shows); err != nil {
		return nil, err
	}
	items := make([]models.CatalogItem, 0, len(shows))
	for i := range shows {
		items = append(items, shows[i].CatalogItem())
	}
	return items, nil
}

// Trending retrieves the public trending list. No auth required.
func (c *Client) Trending(mediaType string, limit int) ([]models.CatalogItem, error) {
	path := "/" + traktPath(mediaType) + "/trending?extended=full&limit=" + strconv.Itoa(limit)

	var entries []trendingEntry
	if err := c.getJSON(path, "", &entries); err != nil {
		return nil, err
	}

	items := make([]models.CatalogItem, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.Movie != nil:
			items = append(items, e.Movie.CatalogItem())
		case e.Show != nil:
			items = append(items, e.Show.CatalogItem())
		}
	}
	return items, nil
}

// Popular retrieves the public popular list. No auth required.
func (c *Client) Popular(mediaType string, limit int) ([]models.CatalogItem, error) {
	path := "/" + traktPath(mediaType) + "/popular?extended=full&limit=" + strconv.Itoa(limit)

	if mediaType == models.TypeMovie {
		var movies []Movie
		if err := c.getJSON(path, "", &movies); err != nil {
			return nil, err
		}
		items := make([]models.CatalogItem, 0, len(movies))
		for i := range movies {
			items = append(items, movies[i].CatalogItem())
		}
		return items, nil
	}

	var shows []Show
	if err := c.getJSON(path, "", &shows); err != nil {
		return nil, err
	}
	items := make([]models.CatalogItem, 0, len(shows))
	for i := range shows {
		items = append(items, shows[i].CatalogItem())
	}
	return items, nil
}

func (c *Client) getJSON(path, accessToken string, v any) error {
	req, err := http.NewRequest(http.MethodGet, traktAPIBaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	c.setTraktHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("trakt request failed: %s - %s", resp.Status, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// traktPath converts our media type to Trakt's URL segment
func traktPath(mediaType string) string {
	if mediaType == models.TypeSeries {
		return "shows"
	}
	return "movies"
}

// CatalogItem maps a Trakt movie to the canonical catalog shape. The id
// prefers the IMDB identifier over the Trakt-local one.
func (m *Movie) CatalogItem() models.CatalogItem {
	return models.CatalogItem{
		ID:          preferredID(m.IDs),
		Type:        models.TypeMovie,
		Title:       m.Title,
		Description: m.Overview,
		ReleaseYear: m.Year,
		Rating:      m.Rating,
		Genres:      m.Genres,
	}
}

// CatalogItem maps a Trakt show to the canonical catalog shape.
func (s *Show) CatalogItem() models.CatalogItem {
	return models.CatalogItem{
		ID:          preferredID(s.IDs),
		Type:        models.TypeSeries,
		Title:       s.Title,
		Description: s.Overview,
		ReleaseYear: s.Year,
		Rating:      s.Rating,
		Genres:      s.Genres,
	}
}

func preferredID(ids IDs) string {
	if ids.IMDB != "" {
		return ids.IMDB
	}
	if ids.TMDB != 0 {
		return "tmdb:" + strconv.Itoa(ids.TMDB)
	}
	return "trakt:" + strconv.Itoa(ids.Trakt)
}

// TMDBID extracts the TMDB id from either a Movie or Show, 0 if absent.
func (m *Movie) TMDBID() int { return m.IDs.TMDB }

// TMDBID extracts the TMDB id, 0 if absent.
func (s *Show) TMDBID() int { return s.IDs.TMDB }
