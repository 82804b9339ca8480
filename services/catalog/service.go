package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"flixrank/models"
	"flixrank/services/cache"
)

// Catalog ids as they appear in the add-on manifest and catalog URLs.
const (
	TraktRecs      = "trakt-recs"
	TMDBNewPopular = "tmdb-new-popular"
	NetflixTop10   = "netflix-top10"
)

var ErrUnknownCatalog = errors.New("unknown catalog")

const (
	recsCacheTTL     = 3 * time.Hour
	trendingCacheTTL = 3 * time.Hour

	listLimit = 40
)

type traktAPI interface {
	Recommendations(accessToken, mediaType string, limit int) ([]models.CatalogItem, error)
	Trending(mediaType string, limit int) ([]models.CatalogItem, error)
}

type tokenSource interface {
	AccessToken(sessionID string) (string, error)
}

type discoverAPI interface {
	NewAndPopular(ctx context.Context, mediaType string) ([]models.CatalogItem, error)
}

type rankingSource interface {
	Top10(ctx context.Context, mediaType string) []models.CatalogItem
}

// Source is one strategy in a catalog's fallback chain. A source that
// cannot serve (missing auth, upstream rejection, nothing to show) returns
// an error or an empty slice; either moves the chain to the next entry.
type Source struct {
	Name  string
	Fetch func(ctx context.Context) ([]models.CatalogItem, error)
}

// Service aggregates the providers behind the manifest's catalog rows.
type Service struct {
	trakt   traktAPI
	tokens  tokenSource
	tmdb    discoverAPI
	netflix rankingSource
	store   cache.Store
}

func NewService(trakt traktAPI, tokens tokenSource, tmdb discoverAPI, netflix rankingSource, store cache.Store) *Service {
	return &Service{
		trakt:   trakt,
		tokens:  tokens,
		tmdb:    tmdb,
		netflix: netflix,
		store:   store,
	}
}

// Get serves one page of a catalog. sessionID may be empty (anonymous
// install); catalogs that want personalization degrade on their own, an
// unlinked or broken session never turns into an HTTP error.
func (s *Service) Get(ctx context.Context, sessionID, mediaType, catalogID string, skip int) ([]models.CatalogItem, error) {
	var (
		items []models.CatalogItem
		err   error
	)
	switch catalogID {
	case TraktRecs:
		items, err = s.runChain(ctx, s.traktChain(sessionID, mediaType))
	case TMDBNewPopular:
		items, err = s.tmdb.NewAndPopular(ctx, mediaType)
	case NetflixTop10:
		// The reconciler owns its fallback; this never fails.
		items = s.netflix.Top10(ctx, mediaType)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCatalog, catalogID)
	}
	if err != nil {
		return nil, err
	}
	return page(items, skip), nil
}

// traktChain is the personalized catalog's strategy list: the user's
// recommendations first, public trending when recommendations can't serve.
func (s *Service) traktChain(sessionID, mediaType string) []Source {
	return []Source{
		{
			Name: "trakt-recommendations",
			Fetch: func(ctx context.Context) ([]models.CatalogItem, error) {
				if sessionID == "" {
					return nil, errors.New("no session")
				}
				token, err := s.tokens.AccessToken(sessionID)
				if err != nil {
					return nil, err
				}

				key := cache.Key("catalog", "recs", sessionID, mediaType)
				var cached []models.CatalogItem
				if cache.GetJSON(s.store, key, &cached) {
					return cached, nil
				}
				items, err := s.trakt.Recommendations(token, mediaType, listLimit)
				if err != nil {
					return nil, err
				}
				if len(items) > 0 {
					cache.SetJSON(s.store, key, items, recsCacheTTL)
				}
				return items, nil
			},
		},
		{
			Name: "trakt-trending",
			Fetch: func(ctx context.Context) ([]models.CatalogItem, error) {
				key := cache.Key("catalog", "trending", mediaType)
				var cached []models.CatalogItem
				if cache.GetJSON(s.store, key, &cached) {
					return cached, nil
				}
				items, err := s.trakt.Trending(mediaType, listLimit)
				if err != nil {
					return nil, err
				}
				if len(items) > 0 {
					cache.SetJSON(s.store, key, items, trendingCacheTTL)
				}
				return items, nil
			},
		},
	}
}

// runChain tries each source in order and returns the first non-empty
// result. Errors along the way are logged and swallowed; only a chain where
// every source errored surfaces a failure.
func (s *Service) runChain(ctx context.Context, sources []Source) ([]models.CatalogItem, error) {
	var lastErr error
	failed := 0
	for _, src := range sources {
		items, err := src.Fetch(ctx)
		if err != nil {
			log.Printf("[catalog] source %s unavailable: %v", src.Name, err)
			lastErr = err
			failed++
			continue
		}
		if len(items) == 0 {
			continue
		}
		return items, nil
	}
	if failed == len(sources) && lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

// page applies the skip extra. Lists here are small, so a page is simply
// the remainder after skip; an out-of-range skip yields an empty page, not
// an error.
func page(items []models.CatalogItem, skip int) []models.CatalogItem {
	if skip <= 0 {
		return items
	}
	if skip >= len(items) {
		return []models.CatalogItem{}
	}
	return items[skip:]
}
