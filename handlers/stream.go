package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"flixrank/internal/tasks"
	"flixrank/models"
)

type watchSyncer interface {
	WatchedNow(sessionID, mediaType, id string) error
}

// StreamHandler answers the stream resource. The add-on never serves video;
// the endpoint exists as a watch signal. Opening a stream marks the title
// watched on Trakt, detached from the response.
type StreamHandler struct {
	syncer watchSyncer
	runner *tasks.Runner
}

func NewStreamHandler(syncer watchSyncer, runner *tasks.Runner) *StreamHandler {
	return &StreamHandler{syncer: syncer, runner: runner}
}

func (h *StreamHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["session"]
	mediaType := vars["type"]
	id := vars["id"]

	if sessionID != "" && models.IsValidMediaType(mediaType) {
		h.runner.Go("scrobble", func() {
			if err := h.syncer.WatchedNow(sessionID, mediaType, id); err != nil {
				log.Printf("[handlers] scrobble %s/%s failed: %v", mediaType, id, err)
			}
		})
	}

	// Always empty, always immediate. The scrobble must never delay or
	// fail the response.
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"streams":[]}`))
}
