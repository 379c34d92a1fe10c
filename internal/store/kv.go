package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spetersoncode/kigen/internal/logger"
)

var (
	// ErrNotFound is returned when a key has no stored value.
	ErrNotFound = errors.New("key not found")
	// ErrEmptyKey is returned for operations on the empty key.
	ErrEmptyKey = errors.New("key must not be empty")
)

// codec is stdlib-compatible so stored documents have sorted keys.
var codec = sonic.ConfigStd

// Entry is one stored key with its raw JSON value.
type Entry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Save JSON-encodes value and stores it under key, replacing any previous value.
func (s *Store) Save(ctx context.Context, key string, value any) error {
	if key == "" {
		return ErrEmptyKey
	}

	data, err := codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for %q: %w", key, err)
	}

	now := FormatTime(s.now())
	_, err = s.ExecContext(ctx, `
		INSERT INTO kv (key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(data), now, now)
	if err != nil {
		return fmt.Errorf("failed to save %q: %w", key, err)
	}

	return nil
}

// SaveRaw stores a JSON document given as text. The document is validated and
// normalized before it is stored.
func (s *Store) SaveRaw(ctx context.Context, key, raw string) error {
	var v any
	if err := codec.UnmarshalFromString(raw, &v); err != nil {
		return fmt.Errorf("value for %q is not valid JSON: %w", key, err)
	}
	return s.Save(ctx, key, v)
}

// LoadRaw returns the stored JSON text for key.
func (s *Store) LoadRaw(ctx context.Context, key string) (string, error) {
	e, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return e.Value, nil
}

// Get returns the entry stored under key.
func (s *Store) Get(ctx context.Context, key string) (*Entry, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	row := s.QueryRowContext(ctx, `SELECT key, value, created_at, updated_at FROM kv WHERE key = ?`, key)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %q: %w", key, err)
	}
	return e, nil
}

// LoadInto decodes the value stored under key into dst.
func (s *Store) LoadInto(ctx context.Context, key string, dst any) error {
	raw, err := s.LoadRaw(ctx, key)
	if err != nil {
		return err
	}
	if err := codec.UnmarshalFromString(raw, dst); err != nil {
		return fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return nil
}

// Load returns the value stored under key, or def when the key is missing or
// the stored value cannot be decoded as T. Failures other than a missing key
// are logged, not returned.
func Load[T any](ctx context.Context, s *Store, key string, def T) T {
	var v T
	err := s.LoadInto(ctx, key, &v)
	switch {
	case err == nil:
		return v
	case errors.Is(err, ErrNotFound):
		return def
	default:
		logger.Warn("failed to load from store", "key", key, "error", err)
		return def
	}
}

// Remove deletes key. It returns ErrNotFound if nothing was stored.
func (s *Store) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	res, err := s.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to remove %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to remove %q: %w", key, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns entries whose key starts with prefix, ordered by key.
func (s *Store) List(ctx context.Context, prefix string) ([]Entry, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT key, value, created_at, updated_at FROM kv
		WHERE substr(key, 1, length(?)) = ?
		ORDER BY key
	`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Keys returns the keys starting with prefix, ordered.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	entries, err := s.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	return keys, nil
}

// Clear removes every key and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.ExecContext(ctx, `DELETE FROM kv`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear store: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var e Entry
	var created, updated string
	if err := row.Scan(&e.Key, &e.Value, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if e.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return nil, fmt.Errorf("bad created_at for %q: %w", e.Key, err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339, updated); err != nil {
		return nil, fmt.Errorf("bad updated_at for %q: %w", e.Key, err)
	}
	return &e, nil
}
