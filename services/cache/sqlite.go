package cache

import (
	"database/sql"
	"log"
	"strings"
	"time"
)

// SQLite is a Store backed by a SQLite database, with an in-process memory
// layer in front of it. Writes go through to the database best-effort: a
// failed database write degrades to the memory layer silently rather than
// surfacing an error, so callers never see the backing store at all.
type SQLite struct {
	db  *sql.DB
	mem *Memory
}

// NewSQLite wraps the given database (already migrated, see
// internal/database.Open) behind the Store interface.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, mem: NewMemory()}
}

func (s *SQLite) Get(key string) ([]byte, bool) {
	if v, ok := s.mem.Get(key); ok {
		return v, true
	}

	var value []byte
	var expiresAt int64
	err := s.db.QueryRow(
		"SELECT value, expires_at FROM cache_entries WHERE key = ?", key,
	).Scan(&value, &expiresAt)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("[cache] sqlite read failed key=%s: %v", key, err)
		}
		return nil, false
	}

	expiry := time.UnixMilli(expiresAt)
	if time.Now().After(expiry) {
		// Lazy eviction: a past-expiry row is identical to a missing one.
		if _, err := s.db.Exec("DELETE FROM cache_entries WHERE key = ?", key); err != nil {
			log.Printf("[cache] sqlite evict failed key=%s: %v", key, err)
		}
		return nil, false
	}

	s.mem.Set(key, value, time.Until(expiry))
	return value, true
}

func (s *SQLite) Set(key string, value []byte, ttl time.Duration) {
	if key == "" || ttl <= 0 {
		return
	}
	// The local layer always succeeds, even when the database write below
	// does not.
	s.mem.Set(key, value, ttl)

	expiresAt := time.Now().Add(ttl).UnixMilli()
	_, err := s.db.Exec(
		`INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	if err != nil {
		log.Printf("[cache] sqlite write failed key=%s: %v", key, err)
	}
}

func (s *SQLite) Delete(key string) {
	s.mem.Delete(key)
	if _, err := s.db.Exec("DELETE FROM cache_entries WHERE key = ?", key); err != nil {
		log.Printf("[cache] sqlite delete failed key=%s: %v", key, err)
	}
}

func (s *SQLite) Clear(prefix string) int {
	removed := s.mem.Clear(prefix)

	var res sql.Result
	var err error
	if prefix == "" {
		res, err = s.db.Exec("DELETE FROM cache_entries")
	} else {
		res, err = s.db.Exec("DELETE FROM cache_entries WHERE key LIKE ? ESCAPE '\\'", likePrefix(prefix))
	}
	if err != nil {
		log.Printf("[cache] sqlite clear failed prefix=%s: %v", prefix, err)
		return removed
	}
	if n, err := res.RowsAffected(); err == nil && int(n) > removed {
		removed = int(n)
	}
	return removed
}

func (s *SQLite) Len() int {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM cache_entries WHERE expires_at > ?", time.Now().UnixMilli()).Scan(&n); err != nil {
		return s.mem.Len()
	}
	return n
}

// Sweep removes expired rows from the database and the memory layer.
func (s *SQLite) Sweep() int {
	removed := s.mem.Sweep()
	res, err := s.db.Exec("DELETE FROM cache_entries WHERE expires_at <= ?", time.Now().UnixMilli())
	if err != nil {
		log.Printf("[cache] sqlite sweep failed: %v", err)
		return removed
	}
	if n, err := res.RowsAffected(); err == nil {
		removed += int(n)
	}
	return removed
}

// likePrefix escapes LIKE metacharacters in prefix and appends the wildcard.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
