// Package store is kigen's key-value local store. Values are JSON documents
// kept in a single SQLite table, standing in for browser local storage.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	// DefaultPath is the default location for the store file.
	DefaultPath = "~/.kigen/kigen.db"
)

// Store wraps a sql.DB connection with key-value operations.
type Store struct {
	*sql.DB
	path string
	now  func() time.Time
}

// Open opens or creates a store at the specified path.
// If path is empty, it uses DefaultPath. Open does not run migrations.
func Open(path string) (*Store, error) {
	path = resolvePath(path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}

	return &Store{DB: db, path: path, now: time.Now}, nil
}

// OpenAndMigrate opens the store and brings its schema up to date.
func OpenAndMigrate(path string) (*Store, error) {
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the file path of the store.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// resolvePath applies the default and expands ~.
func resolvePath(path string) string {
	if path == "" {
		path = DefaultPath
	}
	return expandPath(path)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) == 0 {
		return path
	}

	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}

	return path
}

// Exists checks if the store file exists at the given path.
func Exists(path string) bool {
	_, err := os.Stat(resolvePath(path))
	return err == nil
}

// Delete removes the store file at the given path, including WAL and SHM files.
func Delete(path string) error {
	path = resolvePath(path)

	os.Remove(path + "-wal")
	os.Remove(path + "-shm")

	return os.Remove(path)
}

// FormatTime formats a time.Time as an RFC 3339 UTC string for SQLite.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
