package cache

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Store is a key/value cache with per-entry TTL. It is injected into every
// consumer so tests can instantiate isolated instances; there is no
// package-level singleton.
type Store interface {
	// Get returns the value for key, or ok=false if absent or expired.
	// Entries past their expiry are treated as missing and evicted lazily.
	Get(key string) ([]byte, bool)

	// Set stores value under key for the given TTL. Set always succeeds
	// locally even if a backing store write fails.
	Set(key string, value []byte, ttl time.Duration)

	// Delete removes a single key.
	Delete(key string)

	// Clear removes all keys with the given prefix (empty prefix clears
	// everything) and returns the number of entries removed.
	Clear(prefix string) int

	// Len returns the number of live entries.
	Len() int
}

// GetJSON reads key from s and unmarshals it into v.
func GetJSON(s Store, key string, v any) bool {
	b, ok := s.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, v); err != nil {
		s.Delete(key)
		return false
	}
	return true
}

// SetJSON marshals v and stores it under key. Marshal failures are dropped;
// the cache is best-effort by design.
func SetJSON(s Store, key string, v any, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.Set(key, b, ttl)
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is the process-local Store backend.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// replaced the entry since the read.
		if cur, ok := m.entries[key]; ok && time.Now().After(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Set(key string, value []byte, ttl time.Duration) {
	if key == "" || ttl <= 0 {
		return
	}
	m.mu.Lock()
	m.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	m.mu.Unlock()
}

func (m *Memory) Delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

func (m *Memory) Clear(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key := range m.entries {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Sweep removes all expired entries and returns the number removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	now := time.Now()
	for key, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on the given interval until stop is closed.
func (m *Memory) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sweep()
			case <-stop:
				return
			}
		}
	}()
}

// Key joins parts into a colon-separated cache key: "tmdb:trending:movie".
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
