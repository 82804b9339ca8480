package trakt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SyncHistoryRequest represents the request body for /sync/history
type SyncHistoryRequest struct {
	Movies []SyncMovie `json:"movies,omitempty"`
	Shows  []SyncShow  `json:"shows,omitempty"`
}

// SyncMovie represents a movie to add to history
type SyncMovie struct {
	WatchedAt string  `json:"watched_at,omitempty"` // ISO 8601 format
	IDs       SyncIDs `json:"ids"`
}

// SyncShow represents a show to add to history
type SyncShow struct {
	WatchedAt string  `json:"watched_at,omitempty"`
	IDs       SyncIDs `json:"ids"`
}

// SyncIDs holds IDs for sync operations
type SyncIDs struct {
	Trakt int    `json:"trakt,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int    `json:"tmdb,omitempty"`
}

// SyncHistoryResponse represents the response from /sync/history
type SyncHistoryResponse struct {
	Added struct {
		Movies   int `json:"movies"`
		Episodes int `json:"episodes"`
	} `json:"added"`
	NotFound struct {
		Movies []SyncMovie `json:"movies"`
		Shows  []SyncShow  `json:"shows"`
	} `json:"not_found"`
}

// HistoryItem represents an item from the user's watch history
type HistoryItem struct {
	ID        int64     `json:"id"`
	WatchedAt time.Time `json:"watched_at"`
	Type      string    `json:"type"` // "movie" or "episode"
	Movie     *Movie    `json:"movie,omitempty"`
	Show      *Show     `json:"show,omitempty"`
}

// AddToHistory marks movies and/or shows as watched on Trakt
func (c *Client) AddToHistory(accessToken string, request SyncHistoryRequest) (*SyncHistoryResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, traktAPIBaseURL+"/sync/history", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setTraktHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("trakt sync history failed: %s - %s", resp.Status, string(respBody))
	}

	var syncResp SyncHistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&syncResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &syncResp, nil
}

// WatchedIMDBIDs returns the set of IMDB ids already in the user's history,
// used to skip duplicates during bulk import.
func (c *Client) WatchedIMDBIDs(accessToken string) (map[string]bool, error) {
	watched := make(map[string]bool)
	page := 1
	limit := 100

	for {
		path := fmt.Sprintf("/users/me/history?page=%d&limit=%d", page, limit)
		req, err := http.NewRequest(http.MethodGet, traktAPIBaseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		c.setTraktHeaders(req, accessToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("trakt api request: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			return nil, ErrUnauthorized
		}
		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("trakt history failed: %s - %s", resp.Status, string(respBody))
		}

		var items []HistoryItem
		err = json.NewDecoder(resp.Body).Decode(&items)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}

		for _, item := range items {
			switch {
			case item.Movie != nil && item.Movie.IDs.IMDB != "":
				watched[item.Movie.IDs.IMDB] = true
			case item.Show != nil && item.Show.IDs.IMDB != "":
				watched[item.Show.IDs.IMDB] = true
			}
		}

		if len(items) < limit {
			break
		}
		page++
	}

	return watched, nil
}
