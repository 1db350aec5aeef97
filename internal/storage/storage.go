package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"meal-planner/internal/inventory"
)

const (
	snapshotPrefix = "inventory-"
	snapshotSuffix = ".json"
	latestPointer  = "LATEST"
)

// SnapshotStore provides a file-based, versioned store for inventory snapshots.
//
// Each version lives in its own file and a LATEST pointer file names the
// committed version. Both are replaced atomically, so readers never observe a
// half-written snapshot. One process is expected to own a store directory.
type SnapshotStore struct {
	basePath  string
	retention int

	// commitMu serializes the compare-and-commit of the latest pointer.
	commitMu sync.Mutex
	latest   atomic.Pointer[inventory.Snapshot]
}

// NewSnapshotStore opens the store under basePath, creating the directory if
// needed and recovering the latest committed version. retention is the number
// of versions kept after each commit; zero keeps every version.
func NewSnapshotStore(basePath string, retention int) (*SnapshotStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	if retention < 0 {
		retention = 0
	}

	s := &SnapshotStore{basePath: basePath, retention: retention}
	s.removeTempFiles()
	if err := s.recover(); err != nil {
		return nil, err
	}
	return s, nil
}

// getVersionedPath returns the full path for a given snapshot version.
func (s *SnapshotStore) getVersionedPath(version int64) string {
	filename := fmt.Sprintf("%s%020d%s", snapshotPrefix, version, snapshotSuffix)
	return filepath.Join(s.basePath, filename)
}

func (s *SnapshotStore) pointerPath() string {
	return filepath.Join(s.basePath, latestPointer)
}

// Put durably stores snap and makes it the latest version. It fails with a
// *StaleVersionError if snap.Version is not strictly greater than the
// currently stored version.
func (s *SnapshotStore) Put(ctx context.Context, snap inventory.Snapshot) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if snap.Version <= 0 {
		return 0, fmt.Errorf("snapshot version must be positive, got %d", snap.Version)
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	current := s.currentVersion()
	if snap.Version <= current {
		return 0, &StaleVersionError{Attempted: snap.Version, Current: current}
	}

	stored := snap.Clone()
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := writeFileAtomic(s.getVersionedPath(stored.Version), data, 0644); err != nil {
		return 0, fmt.Errorf("failed to write snapshot %d: %w", stored.Version, err)
	}
	if err := writeFileAtomic(s.pointerPath(), []byte(strconv.FormatInt(stored.Version, 10)+"\n"), 0644); err != nil {
		return 0, fmt.Errorf("failed to commit latest pointer: %w", err)
	}
	s.latest.Store(&stored)

	if s.retention > 0 {
		if _, err := s.prune(s.retention, stored.Version); err != nil {
			slog.Warn("snapshot retention failed", "error", err)
		}
	}
	return stored.Version, nil
}

// Latest returns the most recent snapshot, or ErrEmptyStore if no snapshot
// was ever committed.
func (s *SnapshotStore) Latest(ctx context.Context) (inventory.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return inventory.Snapshot{}, err
	}
	p := s.latest.Load()
	if p == nil {
		return inventory.Snapshot{}, ErrEmptyStore
	}
	return p.Clone(), nil
}

// Get returns the snapshot stored under version, or ErrNotFound.
func (s *SnapshotStore) Get(ctx context.Context, version int64) (inventory.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return inventory.Snapshot{}, err
	}
	if p := s.latest.Load(); p != nil && p.Version == version {
		return p.Clone(), nil
	}
	if version <= 0 || version > s.currentVersion() {
		return inventory.Snapshot{}, fmt.Errorf("snapshot %d: %w", version, ErrNotFound)
	}
	return s.load(version)
}

// Versions lists the stored versions in ascending order.
func (s *SnapshotStore) Versions(ctx context.Context) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.listVersions()
}

// Prune removes all but the newest keep versions. The latest version is never
// removed. It returns the number of files deleted.
func (s *SnapshotStore) Prune(ctx context.Context, keep int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if keep < 1 {
		keep = 1
	}
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	return s.prune(keep, s.currentVersion())
}

func (s *SnapshotStore) currentVersion() int64 {
	if p := s.latest.Load(); p != nil {
		return p.Version
	}
	return 0
}

// load reads a version file from disk.
func (s *SnapshotStore) load(version int64) (inventory.Snapshot, error) {
	data, err := os.ReadFile(s.getVersionedPath(version))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return inventory.Snapshot{}, fmt.Errorf("snapshot %d: %w", version, ErrNotFound)
		}
		return inventory.Snapshot{}, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var snap inventory.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return inventory.Snapshot{}, fmt.Errorf("failed to unmarshal snapshot %d: %w", version, err)
	}
	if snap.Version != version {
		return inventory.Snapshot{}, fmt.Errorf("snapshot file %d carries version %d", version, snap.Version)
	}
	if snap.Items == nil {
		snap.Items = map[string]inventory.Item{}
	}
	return snap, nil
}

func (s *SnapshotStore) listVersions() ([]int64, error) {
	pattern := filepath.Join(s.basePath, snapshotPrefix+"*"+snapshotSuffix)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob snapshot files: %w", err)
	}

	versions := make([]int64, 0, len(matches))
	for _, match := range matches {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(match), snapshotPrefix), snapshotSuffix)
		v, err := strconv.ParseInt(name, 10, 64)
		if err != nil || v <= 0 {
			continue
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// prune must be called with commitMu held.
func (s *SnapshotStore) prune(keep int, latest int64) (int, error) {
	versions, err := s.listVersions()
	if err != nil {
		return 0, err
	}
	if len(versions) <= keep {
		return 0, nil
	}

	removed := 0
	for _, v := range versions[:len(versions)-keep] {
		if v == latest {
			continue
		}
		if err := os.Remove(s.getVersionedPath(v)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("failed to remove stale snapshot %d: %w", v, err)
		}
		removed++
	}
	return removed, nil
}

// recover loads the committed latest version. If the pointer is missing or
// unreadable, the highest readable version file is adopted and the pointer
// is rewritten.
func (s *SnapshotStore) recover() error {
	data, err := os.ReadFile(s.pointerPath())
	if err == nil {
		v, perr := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if perr == nil && v > 0 {
			snap, lerr := s.load(v)
			if lerr == nil {
				s.latest.Store(&snap)
				return nil
			}
			slog.Warn("latest snapshot pointer is dangling, scanning versions", "version", v, "error", lerr)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read latest pointer: %w", err)
	}

	versions, err := s.listVersions()
	if err != nil {
		return err
	}
	for i := len(versions) - 1; i >= 0; i-- {
		snap, err := s.load(versions[i])
		if err != nil {
			slog.Warn("skipping unreadable snapshot", "version", versions[i], "error", err)
			continue
		}
		if err := writeFileAtomic(s.pointerPath(), []byte(strconv.FormatInt(snap.Version, 10)+"\n"), 0644); err != nil {
			return fmt.Errorf("failed to rewrite latest pointer: %w", err)
		}
		s.latest.Store(&snap)
		return nil
	}
	return nil
}

func (s *SnapshotStore) removeTempFiles() {
	matches, _ := filepath.Glob(filepath.Join(s.basePath, tempPattern))
	for _, m := range matches {
		_ = os.Remove(m)
	}
}
