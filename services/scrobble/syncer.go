package scrobble

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"flixrank/models"
	"flixrank/services/trakt"
)

// ErrUnsyncable marks ids that cannot be expressed to the history API,
// like the synthetic ids of unmatched ranking entries.
var ErrUnsyncable = errors.New("id cannot be synced to history")

const importBatchSize = 100

type tokenSource interface {
	AccessToken(sessionID string) (string, error)
}

type historyAPI interface {
	AddToHistory(accessToken string, req trakt.SyncHistoryRequest) (*trakt.SyncHistoryResponse, error)
	WatchedIMDBIDs(accessToken string) (map[string]bool, error)
}

type titleMatcher interface {
	Match(ctx context.Context, mediaType, title string, year int) *models.MatchCandidate
}

type idResolver interface {
	ExternalIMDBID(ctx context.Context, mediaType string, tmdbID int64) (string, error)
}

// Syncer posts watched events to the Trakt history. Single events come from
// the stream hook; batches come from CSV viewing-history imports.
type Syncer struct {
	tokens  tokenSource
	history historyAPI
	matcher titleMatcher
	ids     idResolver
}

func NewSyncer(tokens tokenSource, history historyAPI, matcher titleMatcher, ids idResolver) *Syncer {
	return &Syncer{tokens: tokens, history: history, matcher: matcher, ids: ids}
}

// WatchedNow marks a single title watched, timestamped now. Called off the
// request path; the caller only logs the error.
func (s *Syncer) WatchedNow(sessionID, mediaType, id string) error {
	token, err := s.tokens.AccessToken(sessionID)
	if err != nil {
		return fmt.Errorf("resolving session: %w", err)
	}

	ids, err := syncIDs(id)
	if err != nil {
		return err
	}

	req := historyRequest(mediaType, []entry{{ids: ids, watchedAt: time.Now().UTC()}})
	if _, err := s.history.AddToHistory(token, req); err != nil {
		return fmt.Errorf("adding to history: %w", err)
	}
	return nil
}

// ImportSummary reports what a CSV import did.
type ImportSummary struct {
	Rows      int `json:"rows"`
	Imported  int `json:"imported"`
	Skipped   int `json:"skipped"`
	Unmatched int `json:"unmatched"`
}

// ImportCSV bulk-imports a viewing-history CSV. Rows carrying an IMDB id
// are used directly; otherwise the title (and year, when present) goes
// through the title matcher. Titles already in the account's watched
// history are skipped, and uploads go out in batches of 100.
//
// Recognized header columns: title, year, type, imdb (any order). A file
// without a recognizable header is treated as title-first rows.
func (s *Syncer) ImportCSV(ctx context.Context, sessionID string, r io.Reader) (*ImportSummary, error) {
	token, err := s.tokens.AccessToken(sessionID)
	if err != nil {
		return nil, fmt.Errorf("resolving session: %w", err)
	}

	watched, err := s.history.WatchedIMDBIDs(token)
	if err != nil {
		return nil, fmt.Errorf("loading watched history: %w", err)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}
	if len(records) == 0 {
		return &ImportSummary{}, nil
	}

	cols, body := detectColumns(records)

	summary := &ImportSummary{}
	var movies, shows []entry
	flush := func() error {
		if len(movies) == 0 && len(shows) == 0 {
			return nil
		}
		req := trakt.SyncHistoryRequest{}
		for _, e := range movies {
			req.Movies = append(req.Movies, trakt.SyncMovie{WatchedAt: e.watchedAt.Format(time.RFC3339), IDs: e.ids})
		}
		for _, e := range shows {
			req.Shows = append(req.Shows, trakt.SyncShow{WatchedAt: e.watchedAt.Format(time.RFC3339), IDs: e.ids})
		}
		if _, err := s.history.AddToHistory(token, req); err != nil {
			return fmt.Errorf("uploading batch: %w", err)
		}
		summary.Imported += len(movies) + len(shows)
		movies, shows = movies[:0], shows[:0]
		return nil
	}

	for _, record := range body {
		row := cols.read(record)
		if row.title == "" && row.imdb == "" {
			continue
		}
		summary.Rows++

		imdbID := row.imdb
		if imdbID == "" {
			imdbID = s.resolveIMDB(ctx, row)
		}
		if imdbID == "" {
			summary.Unmatched++
			continue
		}
		if watched[imdbID] {
			summary.Skipped++
			continue
		}
		watched[imdbID] = true

		e := entry{ids: trakt.SyncIDs{IMDB: imdbID}, watchedAt: row.watchedAt()}
		if row.mediaType == models.TypeSeries {
			shows = append(shows, e)
		} else {
			movies = append(movies, e)
		}

		if len(movies)+len(shows) >= importBatchSize {
			if err := flush(); err != nil {
				return summary, err
			}
		}
	}
	if err := flush(); err != nil {
		return summary, err
	}

	log.Printf("[scrobble] import finished: %d rows, %d imported, %d skipped, %d unmatched",
		summary.Rows, summary.Imported, summary.Skipped, summary.Unmatched)
	return summary, nil
}

func (s *Syncer) resolveIMDB(ctx context.Context, row importRow) string {
	cand := s.matcher.Match(ctx, row.mediaType, row.title, row.year)
	if cand == nil {
		return ""
	}
	if strings.HasPrefix(cand.ExternalID, "tt") {
		return cand.ExternalID
	}
	raw, ok := strings.CutPrefix(cand.ExternalID, "tmdb:")
	if !ok {
		return ""
	}
	tmdbID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return ""
	}
	imdbID, err := s.ids.ExternalIMDBID(ctx, row.mediaType, tmdbID)
	if err != nil {
		return ""
	}
	return imdbID
}

type entry struct {
	ids       trakt.SyncIDs
	watchedAt time.Time
}

func historyRequest(mediaType string, entries []entry) trakt.SyncHistoryRequest {
	req := trakt.SyncHistoryRequest{}
	for _, e := range entries {
		ts := e.watchedAt.Format(time.RFC3339)
		if mediaType == models.TypeSeries {
			req.Shows = append(req.Shows, trakt.SyncShow{WatchedAt: ts, IDs: e.ids})
		} else {
			req.Movies = append(req.Movies, trakt.SyncMovie{WatchedAt: ts, IDs: e.ids})
		}
	}
	return req
}

var imdbIDPattern = regexp.MustCompile(`^tt\d+$`)

// syncIDs converts a catalog id into the history API's id object.
func syncIDs(id string) (trakt.SyncIDs, error) {
	switch {
	case imdbIDPattern.MatchString(id):
		return trakt.SyncIDs{IMDB: id}, nil
	case strings.HasPrefix(id, "tmdb:"):
		n, err := strconv.Atoi(strings.TrimPrefix(id, "tmdb:"))
		if err != nil {
			return trakt.SyncIDs{}, fmt.Errorf("%w: %s", ErrUnsyncable, id)
		}
		return trakt.SyncIDs{TMDB: n}, nil
	default:
		return trakt.SyncIDs{}, fmt.Errorf("%w: %s", ErrUnsyncable, id)
	}
}

// columns maps header names to positions in each record.
type columns struct {
	title, year, mediaType, imdb, date int
}

type importRow struct {
	title     string
	year      int
	mediaType string
	imdb      string
	date      string
}

func (r importRow) watchedAt() time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02", "1/2/06", "01/02/2006"} {
		if t, err := time.Parse(layout, r.date); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

func detectColumns(records [][]string) (columns, [][]string) {
	cols := columns{title: 0, year: -1, mediaType: -1, imdb: -1, date: 1}
	header := records[0]

	known := false
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "title", "name":
			cols.title = i
			known = true
		case "year":
			cols.year = i
			known = true
		case "type", "media_type":
			cols.mediaType = i
			known = true
		case "imdb", "imdb_id", "imdbid", "const":
			cols.imdb = i
			known = true
		case "date", "watched_at", "watched":
			cols.date = i
			known = true
		}
	}
	if known {
		return cols, records[1:]
	}
	return cols, records
}

func (c columns) read(record []string) importRow {
	get := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	row := importRow{
		title:     get(c.title),
		imdb:      get(c.imdb),
		date:      get(c.date),
		mediaType: models.TypeMovie,
	}
	if y, err := strconv.Atoi(get(c.year)); err == nil {
		row.year = y
	}
	switch strings.ToLower(get(c.mediaType)) {
	case "series", "show", "tv":
		row.mediaType = models.TypeSeries
	}
	if row.imdb != "" && !imdbIDPattern.MatchString(row.imdb) {
		row.imdb = ""
	}
	return row
}
