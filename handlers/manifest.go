package handlers

import (
	"encoding/json"
	"net/http"

	"flixrank/models"
	"flixrank/services/catalog"
)

const (
	addonID      = "net.flixrank.addon"
	addonVersion = "1.3.0"
)

// Manifest is the add-on descriptor Stremio fetches before installing.
type Manifest struct {
	ID          string            `json:"id"`
	Version     string            `json:"version"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Resources   []string          `json:"resources"`
	Types       []string          `json:"types"`
	Catalogs    []ManifestCatalog `json:"catalogs"`
	IDPrefixes  []string          `json:"idPrefixes"`
	Behavior    BehaviorHints     `json:"behaviorHints"`
}

type ManifestCatalog struct {
	Type  string         `json:"type"`
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Extra []CatalogExtra `json:"extra,omitempty"`
}

type CatalogExtra struct {
	Name       string `json:"name"`
	IsRequired bool   `json:"isRequired"`
}

type BehaviorHints struct {
	Configurable          bool `json:"configurable"`
	ConfigurationRequired bool `json:"configurationRequired"`
}

type ManifestHandler struct{}

func NewManifestHandler() *ManifestHandler {
	return &ManifestHandler{}
}

// Get serves the manifest. The same document is served with and without a
// session prefix; personalization happens inside the catalog rows.
func (h *ManifestHandler) Get(w http.ResponseWriter, r *http.Request) {
	skipExtra := []CatalogExtra{{Name: "skip"}}

	var catalogs []ManifestCatalog
	for _, mediaType := range []string{models.TypeMovie, models.TypeSeries} {
		catalogs = append(catalogs,
			ManifestCatalog{Type: mediaType, ID: catalog.TraktRecs, Name: "Recommended for You", Extra: skipExtra},
			ManifestCatalog{Type: mediaType, ID: catalog.TMDBNewPopular, Name: "New & Popular", Extra: skipExtra},
			ManifestCatalog{Type: mediaType, ID: catalog.NetflixTop10, Name: "Netflix Top 10"},
		)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Manifest{
		ID:          addonID,
		Version:     addonVersion,
		Name:        "FlixRank",
		Description: "Personal catalogs: Trakt recommendations, new & popular, and the weekly Netflix Top 10 with rank badges.",
		Resources:   []string{"catalog", "stream"},
		Types:       []string{models.TypeMovie, models.TypeSeries},
		Catalogs:    catalogs,
		IDPrefixes:  []string{"tt", "tmdb:", "nflx:"},
		Behavior:    BehaviorHints{Configurable: true},
	})
}
