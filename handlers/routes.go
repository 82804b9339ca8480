package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"flixrank/api"
)

// Deps carries the constructed handlers into route registration.
type Deps struct {
	Manifest *ManifestHandler
	Catalog  *CatalogHandler
	Stream   *StreamHandler
	Poster   *PosterHandler
	Auth     *AuthHandler
	Admin    *AdminHandler
	Import   *ImportHandler
}

// Register wires every route onto the router. Add-on resources are
// registered twice: bare, and under a /{session} prefix so each linked
// account gets its own install URL.
func Register(r *mux.Router, deps Deps) {
	// OAuth and admin get per-IP limits; catalog traffic does not, the
	// Stremio client polls catalogs aggressively.
	authLimiter := api.NewIPRateLimiter(rate.Every(2*time.Second), 10)
	adminLimiter := api.NewIPRateLimiter(rate.Every(time.Second), 5)

	r.HandleFunc("/manifest.json", deps.Manifest.Get).Methods(http.MethodGet)
	r.HandleFunc("/{session}/manifest.json", deps.Manifest.Get).Methods(http.MethodGet)

	r.HandleFunc("/catalog/{type}/{id}.json", deps.Catalog.Get).Methods(http.MethodGet)
	r.HandleFunc("/catalog/{type}/{id}/{extra}.json", deps.Catalog.Get).Methods(http.MethodGet)
	r.HandleFunc("/{session}/catalog/{type}/{id}.json", deps.Catalog.Get).Methods(http.MethodGet)
	r.HandleFunc("/{session}/catalog/{type}/{id}/{extra}.json", deps.Catalog.Get).Methods(http.MethodGet)

	r.HandleFunc("/stream/{type}/{id}.json", deps.Stream.Get).Methods(http.MethodGet)
	r.HandleFunc("/{session}/stream/{type}/{id}.json", deps.Stream.Get).Methods(http.MethodGet)

	r.HandleFunc("/poster/{type}/{rank}/{id}", deps.Poster.Get).Methods(http.MethodGet)

	r.Handle("/login", api.RateLimitHandler(authLimiter, http.HandlerFunc(deps.Auth.Login))).Methods(http.MethodGet)
	r.Handle("/callback", api.RateLimitHandler(authLimiter, http.HandlerFunc(deps.Auth.Callback))).Methods(http.MethodGet)
	r.Handle("/logout/{session}", api.RateLimitHandler(authLimiter, http.HandlerFunc(deps.Auth.Logout))).Methods(http.MethodGet)

	r.Handle("/api/cache/clear", api.RateLimitHandler(adminLimiter, http.HandlerFunc(deps.Admin.ClearCache))).Methods(http.MethodPost)
	r.Handle("/api/import/{session}", api.RateLimitHandler(adminLimiter, http.HandlerFunc(deps.Import.Post))).Methods(http.MethodPost)
}
