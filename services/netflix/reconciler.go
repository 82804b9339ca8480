package netflix

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"

	"flixrank/models"
	"flixrank/services/cache"
	"flixrank/services/match"
	"flixrank/services/tmdb"
)

var top10BaseURL = "https://www.netflix.com/tudum/top10"

// setBaseURL swaps the ranking page origin for tests.
func setBaseURL(u string) {
	top10BaseURL = u
}

const (
	listCacheTTL = 24 * time.Hour
	maxRanks     = 10

	// Desktop UA; the ranking site serves a bot-detection page to default
	// Go client strings.
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// Resolver is the slice of the TMDB client used to upgrade a matched entry
// to a stable external id and enrich it with detail metadata.
type Resolver interface {
	ExternalIMDBID(ctx context.Context, mediaType string, tmdbID int64) (string, error)
	GetDetails(ctx context.Context, mediaType string, tmdbID int64) (*tmdb.Details, error)
}

// Service scrapes the weekly Netflix Top 10 page and reconciles each raw row
// against the TMDB search index, producing addressable catalog items.
type Service struct {
	httpc    *http.Client
	engine   *match.Engine
	resolver Resolver
	store    cache.Store
	limiter  *rate.Limiter
	baseURL  string
}

// NewService creates a reconciler. baseURL is this server's public origin,
// used to build the badge poster URLs the catalog hands out.
func NewService(httpc *http.Client, engine *match.Engine, resolver Resolver, store cache.Store, baseURL string) *Service {
	if httpc == nil {
		httpc = &http.Client{Timeout: 20 * time.Second}
	}
	return &Service{
		httpc:    httpc,
		engine:   engine,
		resolver: resolver,
		store:    store,
		// Reconciliation fans out one search per title variant; pace them
		// so a cold cache doesn't burst the index API.
		limiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 1),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Top10 returns the current ranking for the media type. The whole
// reconciled list is cached as one unit so the expensive scrape-and-match
// pass runs at most once per day. Scrape failure degrades to a static
// placeholder list; the result is never empty.
func (s *Service) Top10(ctx context.Context, mediaType string) []models.CatalogItem {
	key := cache.Key("netflix", "top10", mediaType)
	var cached []models.CatalogItem
	if cache.GetJSON(s.store, key, &cached) && len(cached) > 0 {
		return cached
	}

	body, err := s.fetchPage(ctx, mediaType)
	if err != nil {
		log.Printf("[netflix] scrape failed for %s: %v", mediaType, err)
		return fallbackList(mediaType)
	}

	entries := parseRanking(body)
	if len(entries) == 0 {
		log.Printf("[netflix] ranking page for %s yielded no rows", mediaType)
		return fallbackList(mediaType)
	}

	items := s.reconcile(ctx, mediaType, entries)
	cache.SetJSON(s.store, key, items, listCacheTTL)
	return items
}

func (s *Service) fetchPage(ctx context.Context, mediaType string) ([]byte, error) {
	pageURL := top10BaseURL
	if mediaType == models.TypeSeries {
		pageURL += "/tv"
	}

	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("User-Agent", browserUserAgent)
			req.Header.Set("Accept-Language", "en")

			resp, err := s.httpc.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("ranking page returned status %d", resp.StatusCode)
			}
			body, err = io.ReadAll(resp.Body)
			return err
		},
		retry.Attempts(3),
		retry.Delay(300*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	return body, nil
}

var (
	ordinalPrefix = regexp.MustCompile(`^\s*\d{1,2}\s*[.):\-]\s*`)
	numericCell   = regexp.MustCompile(`^\d{1,4}$`)
	nonSlugChars  = regexp.MustCompile(`[^a-z0-9]+`)
)

// parseRanking extracts the ranked rows from the page's ranking table.
// The markup shifts between site revisions, so extraction is heuristic:
// prefer the artwork's alt/title text, fall back to the first cell that
// reads like a title, and take the rank from the first numeric cell.
func parseRanking(body []byte) []models.RawRankEntry {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil
	}

	var entries []models.RawRankEntry
	doc.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		var cells []string
		row.Find("td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		if len(cells) == 0 {
			// Header row, or not part of the ranking table.
			return true
		}

		title := imageText(row)
		if title == "" {
			title = firstTitleCell(cells)
		}
		title = strings.TrimSpace(ordinalPrefix.ReplaceAllString(title, ""))
		if title == "" {
			return true
		}

		rank := len(entries) + 1
		var weeks string
		sawRank := false
		for _, c := range cells {
			if !numericCell.MatchString(c) {
				continue
			}
			if !sawRank {
				if n, err := strconv.Atoi(c); err == nil && n >= 1 && n <= 99 {
					rank = n
				}
				sawRank = true
				continue
			}
			weeks = c
			break
		}

		entries = append(entries, models.RawRankEntry{
			Rank:         rank,
			RawTitle:     title,
			WeeksInTop10: weeks,
		})
		return len(entries) < maxRanks
	})
	return entries
}

func imageText(row *goquery.Selection) string {
	img := row.Find("img").First()
	if img.Length() == 0 {
		return ""
	}
	if alt, ok := img.Attr("alt"); ok && strings.TrimSpace(alt) != "" {
		return strings.TrimSpace(alt)
	}
	if t, ok := img.Attr("title"); ok && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}
	return ""
}

func firstTitleCell(cells []string) string {
	for _, c := range cells {
		if len([]rune(c)) >= 3 && !numericCell.MatchString(c) {
			return c
		}
	}
	return ""
}

// reconcile matches each scraped row against the search index, trying
// spelling variants in order until one returns results. Rows that no variant
// can match still make the list under a synthetic id so the ranking stays
// complete.
func (s *Service) reconcile(ctx context.Context, mediaType string, entries []models.RawRankEntry) []models.CatalogItem {
	items := make([]models.CatalogItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, s.reconcileEntry(ctx, mediaType, entry))
	}
	return items
}

func (s *Service) reconcileEntry(ctx context.Context, mediaType string, entry models.RawRankEntry) models.CatalogItem {
	var cand *models.MatchCandidate
	for _, variant := range TitleVariants(entry.RawTitle) {
		if err := s.limiter.Wait(ctx); err != nil {
			break
		}
		if c := s.engine.Match(ctx, mediaType, variant, 0); c != nil {
			cand = c
			break
		}
	}

	if cand == nil {
		log.Printf("[netflix] no index match for %q (%s), keeping synthetic entry", entry.RawTitle, mediaType)
		return models.CatalogItem{
			ID:          syntheticID(mediaType, entry.RawTitle),
			Type:        mediaType,
			Title:       entry.RawTitle,
			Description: rankDescription(entry),
		}
	}

	item := models.CatalogItem{
		ID:          cand.ExternalID,
		Type:        mediaType,
		Title:       cand.CanonicalTitle,
		ReleaseYear: cand.Year,
		Description: rankDescription(entry),
	}

	if tmdbID, ok := strings.CutPrefix(cand.ExternalID, "tmdb:"); ok {
		if id, err := strconv.ParseInt(tmdbID, 10, 64); err == nil {
			if imdbID, err := s.resolver.ExternalIMDBID(ctx, mediaType, id); err == nil && imdbID != "" {
				item.ID = imdbID
			}
			if d, err := s.resolver.GetDetails(ctx, mediaType, id); err == nil {
				item.BackgroundURL = tmdb.ImageURL(d.BackdropPath, "w1280")
				item.Rating = d.Rating
				item.Genres = d.Genres
				if d.Overview != "" {
					item.Description = rankDescription(entry) + "\n\n" + d.Overview
				}
			}
		}
	}

	item.PosterURL = fmt.Sprintf("%s/poster/%s/%d/%s.jpg", s.baseURL, mediaType, entry.Rank, item.ID)
	return item
}

func rankDescription(entry models.RawRankEntry) string {
	desc := fmt.Sprintf("#%d on the Netflix Top 10 this week.", entry.Rank)
	if entry.WeeksInTop10 != "" {
		desc += fmt.Sprintf(" %s weeks in the top 10.", entry.WeeksInTop10)
	}
	return desc
}

func syntheticID(mediaType, title string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(stripMarks(title)), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "untitled"
	}
	return fmt.Sprintf("nflx:%s:%s", mediaType, slug)
}
