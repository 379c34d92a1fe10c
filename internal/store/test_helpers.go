package store

import (
	"database/sql"
	"testing"
	"time"
)

// NewTestStore creates a migrated in-memory store for testing.
//
// IMPORTANT: Always use this function in tests, never a file under ~/.kigen.
func NewTestStore(t *testing.T) *Store {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	// Each connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(sqlDB); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to migrate test store: %v", err)
	}

	s := &Store{DB: sqlDB, path: ":memory:", now: time.Now}
	t.Cleanup(func() { s.Close() })
	return s
}
