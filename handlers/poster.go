package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"flixrank/models"
	"flixrank/services/poster"
)

type PosterHandler struct {
	compositor *poster.Compositor
}

func NewPosterHandler(compositor *poster.Compositor) *PosterHandler {
	return &PosterHandler{compositor: compositor}
}

// Get serves /poster/{type}/{rank}/{id}.jpg: the title's poster with the
// rank badge composited on.
func (h *PosterHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	mediaType := vars["type"]
	id := strings.TrimSuffix(vars["id"], ".jpg")

	if !models.IsValidMediaType(mediaType) {
		writeError(w, http.StatusBadRequest, "unsupported type")
		return
	}
	rank, err := strconv.Atoi(vars["rank"])
	if err != nil || rank < 1 || rank > 10 {
		writeError(w, http.StatusBadRequest, "rank must be 1..10")
		return
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}

	data, err := h.compositor.Render(r.Context(), mediaType, rank, id)
	if err != nil {
		if errors.Is(err, poster.ErrNoPoster) {
			writeError(w, http.StatusNotFound, "no poster for id")
			return
		}
		log.Printf("[handlers] poster %s/%d/%s failed: %v", mediaType, rank, id, err)
		writeError(w, http.StatusBadGateway, "poster unavailable")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(data)
}
