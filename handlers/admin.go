package handlers

import (
	"encoding/json"
	"net/http"

	"flixrank/api"
	"flixrank/services/cache"
	"flixrank/utils"
)

// AdminHandler exposes cache maintenance. Routes answer only to private
// clients, optionally gated by a shared token, and sit behind the per-IP
// rate limiter at the router.
type AdminHandler struct {
	store cache.Store
	token string
}

func NewAdminHandler(store cache.Store, token string) *AdminHandler {
	return &AdminHandler{store: store, token: token}
}

func (h *AdminHandler) authorized(r *http.Request) bool {
	// Resolve the caller through the proxy headers the rate limiter trusts;
	// behind a reverse proxy RemoteAddr is always the proxy itself.
	if !utils.IsPrivateClient(api.ClientIP(r)) {
		return false
	}
	if h.token != "" && r.Header.Get("X-Admin-Token") != h.token {
		return false
	}
	return true
}

type clearRequest struct {
	Keys     []string `json:"keys,omitempty"`
	Prefixes []string `json:"prefixes,omitempty"`
	All      bool     `json:"all,omitempty"`
}

type clearResponse struct {
	Cleared   int `json:"cleared"`
	Remaining int `json:"remaining"`
}

// ClearCache drops named keys, prefixes, or everything, and reports counts.
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusForbidden, "admin access denied")
		return
	}

	var req clearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if !req.All && len(req.Keys) == 0 && len(req.Prefixes) == 0 {
		writeError(w, http.StatusBadRequest, "nothing to clear")
		return
	}

	cleared := 0
	if req.All {
		cleared = h.store.Clear("")
	} else {
		for _, key := range req.Keys {
			if _, ok := h.store.Get(key); ok {
				h.store.Delete(key)
				cleared++
			}
		}
		for _, prefix := range req.Prefixes {
			if prefix == "" {
				continue
			}
			cleared += h.store.Clear(prefix)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(clearResponse{Cleared: cleared, Remaining: h.store.Len()})
}
