// Package store caches compiled program artifacts in SQLite, keyed by a
// digest of the source and the options that shaped the compilation.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	driverName    = "sqlite"
	maxAttempts   = 5
	schemaVersion = 1

	// Fixed width so stored times compare in SQL as strings.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// Entry is one cached artifact.
type Entry struct {
	Key       string
	ProgramID string
	Artifact  []byte // Encoded program
	CreatedAt time.Time
	Hits      int
}

// Store is an artifact cache backed by a SQLite file.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

// Open opens (creating if needed) the cache at path.
func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("cache path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("cache path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite cache %q: %w", cleanPath, err)
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}
	return &Store{path: cleanPath, db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS artifacts (
  cache_key  TEXT PRIMARY KEY,
  program_id TEXT NOT NULL,
  artifact   BLOB NOT NULL,
  created_utc TEXT NOT NULL,
  hits       INTEGER NOT NULL DEFAULT 0
);
`); err != nil {
		return fmt.Errorf("create artifacts table: %w", err)
	}
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", version, schemaVersion)
	}
	if version < schemaVersion {
		if _, err := db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
	}
	return nil
}

// Path returns the cache file path.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Key returns the cache key of src compiled under the given option
// values.
func Key(src []byte, options ...string) string {
	h := sha256.New()
	for _, o := range options {
		h.Write([]byte(o))
		h.Write([]byte{0})
	}
	h.Write(src)
	return hex.EncodeToString(h.Sum(nil))
}

// Put stores an artifact under key, replacing any previous entry.
func (s *Store) Put(key, programID string, artifact []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
INSERT INTO artifacts (cache_key, program_id, artifact, created_utc, hits)
VALUES (?, ?, ?, ?, 0)
ON CONFLICT(cache_key) DO UPDATE SET
  program_id=excluded.program_id,
  artifact=excluded.artifact,
  created_utc=excluded.created_utc,
  hits=0
`
	created := time.Now().UTC().Format(timeLayout)
	return s.withRetry("put artifact", func() error {
		_, err := s.db.Exec(query, key, programID, artifact, created)
		return err
	})
}

// Get returns the entry stored under key and counts the hit.
func (s *Store) Get(key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		e       Entry
		created string
	)
	err := s.withRetry("get artifact", func() error {
		row := s.db.QueryRow(`
UPDATE artifacts SET hits = hits + 1 WHERE cache_key = ?
RETURNING cache_key, program_id, artifact, created_utc, hits`, key)
		return row.Scan(&e.Key, &e.ProgramID, &e.Artifact, &created, &e.Hits)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	if e.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return Entry{}, false, fmt.Errorf("parse created time of %s: %w", key, err)
	}
	return e, true, nil
}

// Len returns the number of cached artifacts.
func (s *Store) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.withRetry("count artifacts", func() error {
		return s.db.QueryRow(`SELECT COUNT(*) FROM artifacts`).Scan(&n)
	})
	return n, err
}

// Prune deletes entries created before cutoff and returns how many were
// removed.
func (s *Store) Prune(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	err := s.withRetry("prune artifacts", func() error {
		res, err := s.db.Exec(`DELETE FROM artifacts WHERE created_utc < ?`, cutoff.UTC().Format(timeLayout))
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
