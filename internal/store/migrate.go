package store

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/spetersoncode/kigen/internal/logger"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// gooseLogger routes goose's progress lines to the debug log instead of stdout.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...any) {
	logger.Debug(fmt.Sprintf(format, v...), "component", "migrate")
}

func (gooseLogger) Fatalf(format string, v ...any) {
	logger.Error(fmt.Sprintf(format, v...), "component", "migrate")
}

func init() {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(gooseLogger{})
}

// migrationsDir is the embedded directory goose reads.
const migrationsDir = "migrations"

func sqliteDialect() error {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return nil
}

// Migrate brings the store schema up to date.
func (s *Store) Migrate() error {
	return Migrate(s.DB)
}

// Migrate applies pending kv migrations to db.
func Migrate(db *sql.DB) error {
	if err := sqliteDialect(); err != nil {
		return err
	}
	if err := goose.Up(db, migrationsDir); err != nil {
		return fmt.Errorf("failed to migrate store: %w", err)
	}
	return nil
}

// MigrateReset drops the kv schema by rolling back every migration.
func (s *Store) MigrateReset() error {
	if err := sqliteDialect(); err != nil {
		return err
	}
	if err := goose.Reset(s.DB, migrationsDir); err != nil {
		return fmt.Errorf("failed to reset store schema: %w", err)
	}
	return nil
}

// MigrationStatus returns the schema version, 0 for a store that was never
// migrated.
func (s *Store) MigrationStatus() (int64, error) {
	if err := sqliteDialect(); err != nil {
		return 0, err
	}
	version, err := goose.GetDBVersion(s.DB)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
