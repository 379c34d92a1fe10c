// Package backup keeps rotating snapshots of the kigen store.
//
// Snapshots are written with SQLite's VACUUM INTO, so they are consistent
// even while the store is open in WAL mode. They are named after the store
// file: kigen.db.bak.1, kigen.db.bak.2, and so on, where 1 is the newest.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spetersoncode/kigen/internal/config"
	"github.com/spetersoncode/kigen/internal/logger"
	"github.com/spetersoncode/kigen/internal/store"
)

// Snapshot is one snapshot file on disk.
type Snapshot struct {
	Path    string    `json:"path"`
	Number  int       `json:"number"`
	ModTime time.Time `json:"mod_time"`
}

// Manager takes and rotates snapshots of one store.
type Manager struct {
	store  *store.Store
	dir    string
	prefix string
	cfg    config.BackupConfig
	now    func() time.Time
}

// NewManager returns a manager for s. Snapshots go to cfg.Path, or next to
// the store file when cfg.Path is empty.
func NewManager(s *store.Store, cfg config.BackupConfig) *Manager {
	dir := cfg.Path
	if dir == "" {
		dir = filepath.Dir(s.Path())
	}
	if cfg.MaxCount < 1 {
		cfg.MaxCount = 1
	}
	return &Manager{
		store:  s,
		dir:    dir,
		prefix: filepath.Base(s.Path()) + ".bak.",
		cfg:    cfg,
		now:    time.Now,
	}
}

// Dir returns the snapshot directory.
func (m *Manager) Dir() string {
	return m.dir
}

// SnapshotIfDue takes a snapshot when backups are enabled and the newest one
// is older than the configured interval. It returns the new snapshot path,
// or "" when none was taken.
func (m *Manager) SnapshotIfDue(ctx context.Context) (string, error) {
	if !m.cfg.Enabled {
		return "", nil
	}

	snaps, err := m.List()
	if err != nil {
		return "", err
	}
	if len(snaps) > 0 {
		interval := time.Duration(m.cfg.IntervalHours) * time.Hour
		if m.now().Sub(snaps[0].ModTime) <= interval {
			return "", nil
		}
	}

	return m.Snapshot(ctx)
}

// Snapshot writes a new snapshot as number 1, shifting older ones up and
// removing those beyond the configured count.
func (m *Manager) Snapshot(ctx context.Context) (string, error) {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}

	// VACUUM INTO refuses to overwrite, so write to a scratch name first.
	tmp := filepath.Join(m.dir, m.prefix+"tmp")
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("removing stale snapshot: %w", err)
	}
	if _, err := m.store.ExecContext(ctx, `VACUUM INTO ?`, tmp); err != nil {
		return "", fmt.Errorf("writing snapshot: %w", err)
	}

	if err := m.rotate(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rotating snapshots: %w", err)
	}

	path := m.path(1)
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("renaming snapshot: %w", err)
	}

	logger.Info("store snapshot written", "path", path)
	return path, nil
}

// List returns existing snapshots, newest first.
func (m *Manager) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var snaps []Snapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), m.prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(entry.Name(), m.prefix))
		if err != nil || n < 1 {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat snapshot: %w", err)
		}
		snaps = append(snaps, Snapshot{
			Path:    filepath.Join(m.dir, entry.Name()),
			Number:  n,
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Number < snaps[j].Number
	})
	return snaps, nil
}

// rotate renames bak.N to bak.N+1, oldest first, deleting any that would
// pass MaxCount.
func (m *Manager) rotate() error {
	snaps, err := m.List()
	if err != nil {
		return err
	}

	for i := len(snaps) - 1; i >= 0; i-- {
		next := snaps[i].Number + 1
		if next > m.cfg.MaxCount {
			if err := os.Remove(snaps[i].Path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("deleting old snapshot %s: %w", snaps[i].Path, err)
			}
			continue
		}
		if err := os.Rename(snaps[i].Path, m.path(next)); err != nil {
			return fmt.Errorf("renaming snapshot %s: %w", snaps[i].Path, err)
		}
	}
	return nil
}

func (m *Manager) path(n int) string {
	return filepath.Join(m.dir, m.prefix+strconv.Itoa(n))
}
