package sessions

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"flixrank/models"
	"flixrank/services/trakt"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrReauthRequired  = errors.New("session requires re-authentication")
)

// refreshWindow is how much access-token lifetime may remain before an
// access triggers a refresh. Refresh happens lazily on use; there is no
// background refresh timer.
const refreshWindow = time.Hour

// Refresher is the slice of the Trakt client the service uses to renew
// access tokens.
type Refresher interface {
	RefreshAccessToken(refreshToken, redirectURI string) (*trakt.TokenResponse, error)
}

// Service manages linked Trakt accounts, keyed by opaque session ids that
// end up embedded in the add-on's install URL.
type Service struct {
	mu          sync.Mutex
	path        string
	sessions    map[string]models.Session
	refresher   Refresher
	redirectURI string
}

// NewService creates a session store with JSON-file persistence.
// storageDir is the directory where sessions.json is kept; if empty,
// sessions live only in memory and are lost on restart.
func NewService(storageDir string, refresher Refresher, redirectURI string) (*Service, error) {
	svc := &Service{
		sessions:    make(map[string]models.Session),
		refresher:   refresher,
		redirectURI: redirectURI,
	}

	if strings.TrimSpace(storageDir) != "" {
		if err := os.MkdirAll(storageDir, 0o755); err != nil {
			return nil, fmt.Errorf("create sessions dir: %w", err)
		}
		svc.path = filepath.Join(storageDir, "sessions.json")

		if err := svc.load(); err != nil {
			return nil, err
		}
	}

	return svc, nil
}

// Create stores a freshly exchanged token under a new session id.
func (s *Service) Create(token models.TokenRecord, username string) (models.Session, error) {
	session := models.Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Username:  username,
		Token:     token,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = session
	if err := s.saveLocked(); err != nil {
		delete(s.sessions, session.ID)
		return models.Session{}, err
	}
	return session, nil
}

// Get returns the session for an id without touching its token.
func (s *Service) Get(id string) (models.Session, error) {
	if id == "" {
		return models.Session{}, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return models.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// AccessToken returns a usable access token for the session, refreshing it
// first when less than an hour of lifetime remains. A failed refresh
// invalidates the stored token: the account must be linked again, and every
// subsequent call reports ErrReauthRequired without hitting the network.
func (s *Service) AccessToken(id string) (string, error) {
	s.mu.Lock()

	session, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return "", ErrSessionNotFound
	}
	if session.Token.IsZero() {
		s.mu.Unlock()
		return "", ErrReauthRequired
	}

	if !session.Token.ExpiresSoon(refreshWindow) {
		token := session.Token.AccessToken
		s.mu.Unlock()
		return token, nil
	}

	if session.Token.RefreshToken == "" {
		if !session.Token.IsExpired() {
			// Still valid for a little while; let it ride.
			token := session.Token.AccessToken
			s.mu.Unlock()
			return token, nil
		}
		s.invalidateLocked(session)
		s.mu.Unlock()
		return "", ErrReauthRequired
	}

	// The token endpoint call happens without the lock so one slow refresh
	// cannot stall every other session.
	refreshToken := session.Token.RefreshToken
	s.mu.Unlock()

	resp, err := s.refresher.RefreshAccessToken(refreshToken, s.redirectURI)

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok = s.sessions[id]
	if !ok {
		return "", ErrSessionNotFound
	}
	if err != nil {
		log.Printf("[sessions] token refresh failed for session %s: %v", id, err)
		s.invalidateLocked(session)
		return "", fmt.Errorf("%w: %v", ErrReauthRequired, err)
	}

	// A concurrent call may have rotated the token while we were on the
	// wire; its result is fresher than our request was.
	if !session.Token.IsZero() && session.Token.RefreshToken != refreshToken {
		return session.Token.AccessToken, nil
	}

	session.Token.AccessToken = resp.AccessToken
	session.Token.RefreshToken = resp.RefreshToken
	session.Token.ExpiresAt = resp.ExpiryTime()
	s.sessions[id] = session
	if err := s.saveLocked(); err != nil {
		log.Printf("[sessions] persisting refreshed token failed: %v", err)
	}

	return session.Token.AccessToken, nil
}

// invalidateLocked clears the session's token but keeps the session row so
// the install URL keeps resolving (as unauthenticated). Must be called with
// mu held.
func (s *Service) invalidateLocked(session models.Session) {
	session.Token = models.TokenRecord{}
	s.sessions[session.ID] = session
	_ = s.saveLocked()
}

// Delete removes a session entirely (logout).
func (s *Service) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return s.saveLocked()
}

// Count returns the number of stored sessions.
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions whose tokens can no longer be used or refreshed.
// Freshly invalidated sessions are kept for a day so the user sees a
// "re-link your account" state instead of a dead URL.
func (s *Service) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	cutoff := time.Now().Add(-24 * time.Hour)
	for id, session := range s.sessions {
		if !session.Authenticated() && session.CreatedAt.Before(cutoff) {
			delete(s.sessions, id)
			count++
		}
	}
	if count > 0 {
		_ = s.saveLocked()
	}
	return count
}

// StartSweeper runs Sweep on the given interval until stop is closed.
func (s *Service) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					log.Printf("[sessions] swept %d dead sessions", n)
				}
			case <-stop:
				return
			}
		}
	}()
}

// load reads sessions from the JSON file on disk.
func (s *Service) load() error {
	if s.path == "" {
		return nil
	}

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open sessions file: %w", err)
	}
	defer file.Close()

	var stored []models.Session
	if err := json.NewDecoder(file).Decode(&stored); err != nil {
		return fmt.Errorf("decode sessions: %w", err)
	}

	s.sessions = make(map[string]models.Session, len(stored))
	for _, session := range stored {
		if strings.TrimSpace(session.ID) == "" {
			continue
		}
		s.sessions[session.ID] = session
	}
	return nil
}

// saveLocked writes sessions to the JSON file. Must be called with mu held.
func (s *Service) saveLocked() error {
	if s.path == "" {
		return nil
	}

	sessions := make([]models.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}

	// Write to temp file first, then rename (atomic write)
	tmp := s.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create sessions temp file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sessions); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode sessions: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync sessions: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close sessions temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace sessions file: %w", err)
	}

	return nil
}
