package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"flixrank/models"
	"flixrank/services/cache"
	"flixrank/services/sessions"
	"flixrank/services/trakt"
)

// stateTTL bounds how long an OAuth round-trip may take.
const stateTTL = 10 * time.Minute

type oauthClient interface {
	AuthorizeURL(redirectURI, state string) string
	ExchangeCode(code, redirectURI string) (*trakt.TokenResponse, error)
	GetUserProfile(accessToken string) (*trakt.UserProfile, error)
}

// AuthHandler runs the Trakt account-linking flow and hands the user their
// session-scoped install URL.
type AuthHandler struct {
	trakt       oauthClient
	sessions    *sessions.Service
	store       cache.Store
	baseURL     string
	redirectURI string
}

func NewAuthHandler(traktClient oauthClient, sessionsSvc *sessions.Service, store cache.Store, baseURL, redirectURI string) *AuthHandler {
	return &AuthHandler{
		trakt:       traktClient,
		sessions:    sessionsSvc,
		store:       store,
		baseURL:     baseURL,
		redirectURI: redirectURI,
	}
}

// Login starts the flow: mint a state nonce and bounce to Trakt.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	h.store.Set(cache.Key("oauth", "state", state), []byte("1"), stateTTL)

	http.Redirect(w, r, h.trakt.AuthorizeURL(h.redirectURI, state), http.StatusFound)
}

var callbackPage = template.Must(template.New("callback").Parse(`<!doctype html>
<html>
<head><title>FlixRank — account linked</title></head>
<body style="font-family: sans-serif; max-width: 40em; margin: 4em auto;">
<h1>Account linked{{if .Username}} for {{.Username}}{{end}}</h1>
<p>Install the add-on with your personal URL:</p>
<p><code>{{.ManifestURL}}</code></p>
<p><a href="{{.DeepLink}}">Open in Stremio</a></p>
<p>Keep this URL private. Anyone holding it sees your recommendations.</p>
</body>
</html>`))

// Callback finishes the flow: verify state, exchange the code, create the
// session and show the install URL.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	state := query.Get("state")
	code := query.Get("code")

	if state == "" || code == "" {
		writeError(w, http.StatusBadRequest, "missing code or state")
		return
	}
	stateKey := cache.Key("oauth", "state", state)
	if _, ok := h.store.Get(stateKey); !ok {
		writeError(w, http.StatusBadRequest, "unknown or expired state")
		return
	}
	h.store.Delete(stateKey)

	token, err := h.trakt.ExchangeCode(code, h.redirectURI)
	if err != nil {
		log.Printf("[handlers] code exchange failed: %v", err)
		writeError(w, http.StatusBadGateway, "token exchange failed")
		return
	}

	username := ""
	if profile, err := h.trakt.GetUserProfile(token.AccessToken); err == nil {
		username = profile.Username
	}

	session, err := h.sessions.Create(models.TokenRecord{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.ExpiryTime(),
	}, username)
	if err != nil {
		log.Printf("[handlers] session create failed: %v", err)
		writeError(w, http.StatusInternalServerError, "could not store session")
		return
	}

	manifestURL := fmt.Sprintf("%s/%s/manifest.json", h.baseURL, session.ID)
	deepLink := "stremio://" + strings.TrimPrefix(strings.TrimPrefix(manifestURL, "https://"), "http://")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	callbackPage.Execute(w, map[string]string{
		"Username":    username,
		"ManifestURL": manifestURL,
		"DeepLink":    deepLink,
	})
}

// Logout deletes the session behind /logout/{session}.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session"]
	if err := h.sessions.Delete(sessionID); err != nil {
		if errors.Is(err, sessions.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not delete session")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"logged out"}`))
}
