// Package cookiecache persists WAF clearance cookies between runs so that a
// short-lived process does not have to launch a browser on every invocation.
package cookiecache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Store is a SQLite-backed cache of WAF cookies, one row per provider domain.
type Store struct {
	db       *sql.DB
	ttl      time.Duration
	logger   *slog.Logger
	isMemory bool
}

// NewStore opens (or creates) the cache database at dbPath. Entries older
// than ttl are treated as expired on read.
func NewStore(dbPath string, ttl time.Duration, logger *slog.Logger) (*Store, error) {
	var connStr string
	isMemory := dbPath == ":memory:"

	if isMemory {
		connStr = "file::memory:?cache=shared&_timeout=5000&_busy_timeout=5000"
	} else {
		dir := filepath.Dir(dbPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}
		}
		connStr = dbPath + "?_journal=WAL&_timeout=5000&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{
		db:       db,
		ttl:      ttl,
		logger:   logger,
		isMemory: isMemory,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("WAF cookie cache opened", "path", dbPath, "ttl", ttl)
	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS waf_cookies (
		domain TEXT PRIMARY KEY,
		cookies_json TEXT NOT NULL DEFAULT '{}',
		fetched_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns the cached cookies for a domain, or nil when absent or
// expired. Expired rows are deleted on read.
func (s *Store) Load(domain string) (map[string]string, error) {
	var cookiesJSON, fetchedAtStr string
	err := s.db.QueryRow(
		"SELECT cookies_json, fetched_at FROM waf_cookies WHERE domain = ?",
		domain,
	).Scan(&cookiesJSON, &fetchedAtStr)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cookies: %w", err)
	}

	fetchedAt, err := time.Parse(time.RFC3339, fetchedAtStr)
	if err != nil || time.Since(fetchedAt) > s.ttl {
		s.logger.Debug("cached WAF cookies expired", "domain", domain)
		if delErr := s.Invalidate(domain); delErr != nil {
			s.logger.Warn("failed to delete expired cookies", "domain", domain, "error", delErr)
		}
		return nil, nil
	}

	var cookies map[string]string
	if err := json.Unmarshal([]byte(cookiesJSON), &cookies); err != nil {
		s.logger.Warn("failed to unmarshal cached cookies", "domain", domain, "error", err)
		return nil, nil
	}
	return cookies, nil
}

// Save stores the cookies for a domain, replacing any previous row.
func (s *Store) Save(domain string, cookies map[string]string) error {
	cookiesJSON, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}

	query := `
	INSERT INTO waf_cookies (domain, cookies_json, fetched_at)
	VALUES (?, ?, ?)
	ON CONFLICT(domain) DO UPDATE SET
		cookies_json = excluded.cookies_json,
		fetched_at = excluded.fetched_at
	`
	if _, err := s.db.Exec(query, domain, string(cookiesJSON), time.Now().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}

	s.logger.Debug("WAF cookies cached", "domain", domain, "count", len(cookies))
	return nil
}

// Invalidate removes the cached row for a domain.
func (s *Store) Invalidate(domain string) error {
	if _, err := s.db.Exec("DELETE FROM waf_cookies WHERE domain = ?", domain); err != nil {
		return fmt.Errorf("failed to delete cookies: %w", err)
	}
	return nil
}

// Close closes the database connection, checkpointing WAL first so the main
// database file is complete on disk.
func (s *Store) Close() error {
	if !s.isMemory {
		if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			s.logger.Warn("failed to checkpoint WAL before close", "error", err)
		}
	}
	return s.db.Close()
}
