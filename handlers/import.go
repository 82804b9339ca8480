package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"flixrank/services/scrobble"
	"flixrank/services/sessions"
)

// maxImportSize bounds uploaded CSV files (4 MiB is years of viewing).
const maxImportSize = 4 << 20

type csvImporter interface {
	ImportCSV(ctx context.Context, sessionID string, r io.Reader) (*scrobble.ImportSummary, error)
}

type ImportHandler struct {
	syncer csvImporter
}

func NewImportHandler(syncer csvImporter) *ImportHandler {
	return &ImportHandler{syncer: syncer}
}

// Post handles POST /api/import/{session} with a CSV body (or multipart
// "file" field) of viewing history.
func (h *ImportHandler) Post(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session"]

	body, err := importBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer body.Close()

	summary, err := h.syncer.ImportCSV(r.Context(), sessionID, body)
	if err != nil {
		switch {
		case errors.Is(err, sessions.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "session not found")
		case errors.Is(err, sessions.ErrReauthRequired):
			writeError(w, http.StatusUnauthorized, "account must be re-linked")
		default:
			log.Printf("[handlers] import failed: %v", err)
			writeError(w, http.StatusBadGateway, "import failed")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

func importBody(r *http.Request) (io.ReadCloser, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxImportSize)

	if file, _, err := r.FormFile("file"); err == nil {
		return file, nil
	}
	if r.Body == nil {
		return nil, errors.New("empty request body")
	}
	return r.Body, nil
}
