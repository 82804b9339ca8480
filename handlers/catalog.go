package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	"flixrank/models"
	"flixrank/services/catalog"
)

// metaItem is a CatalogItem in the wire shape Stremio expects.
type metaItem struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	ReleaseInfo string   `json:"releaseInfo,omitempty"`
	Poster      string   `json:"poster,omitempty"`
	Background  string   `json:"background,omitempty"`
	IMDBRating  string   `json:"imdbRating,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Cast        []string `json:"cast,omitempty"`
}

type CatalogHandler struct {
	catalogs *catalog.Service
}

func NewCatalogHandler(catalogs *catalog.Service) *CatalogHandler {
	return &CatalogHandler{catalogs: catalogs}
}

// Get serves /catalog/{type}/{id}.json and the /{extra} variant, with or
// without a leading session segment.
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	mediaType := vars["type"]
	catalogID := vars["id"]
	sessionID := vars["session"]

	if !models.IsValidMediaType(mediaType) {
		writeError(w, http.StatusBadRequest, "unsupported type")
		return
	}

	skip := parseSkip(vars["extra"])

	items, err := h.catalogs.Get(r.Context(), sessionID, mediaType, catalogID, skip)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownCatalog) {
			writeError(w, http.StatusNotFound, "unknown catalog")
			return
		}
		// Upstream trouble never reaches the client as an error. Stremio
		// gets an empty row and retries on its own schedule.
		log.Printf("[handlers] catalog %s/%s degraded to empty: %v", mediaType, catalogID, err)
		items = nil
	}

	metas := make([]metaItem, 0, len(items))
	for _, item := range items {
		metas = append(metas, toMeta(item))
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=600")
	json.NewEncoder(w).Encode(map[string][]metaItem{"metas": metas})
}

func toMeta(item models.CatalogItem) metaItem {
	meta := metaItem{
		ID:          item.ID,
		Type:        item.Type,
		Name:        item.Title,
		Description: item.Description,
		Poster:      item.PosterURL,
		Background:  item.BackgroundURL,
		Genres:      item.Genres,
		Cast:        item.Cast,
	}
	if item.ReleaseYear > 0 {
		meta.ReleaseInfo = strconv.Itoa(item.ReleaseYear)
	}
	if item.Rating > 0 {
		meta.IMDBRating = strconv.FormatFloat(item.Rating, 'f', 1, 64)
	}
	return meta
}

// parseSkip reads the skip value from a catalog extra segment like
// "skip=20". Anything unparseable means page one.
func parseSkip(extra string) int {
	if extra == "" {
		return 0
	}
	unescaped, err := url.PathUnescape(extra)
	if err != nil {
		return 0
	}
	values, err := url.ParseQuery(unescaped)
	if err != nil {
		return 0
	}
	skip, err := strconv.Atoi(values.Get("skip"))
	if err != nil || skip < 0 {
		return 0
	}
	return skip
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
