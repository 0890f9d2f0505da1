package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quantfeed/pulse/internal/contracts"
)

// LocalStore persists snapshots as files in a data directory,
// one JSON file per UTC day.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the data directory if needed
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Name identifies the backend in logs
func (s *LocalStore) Name() string {
	return "local"
}

// List scans the data directory for snapshot files. Ids that fail to
// parse are skipped rather than failing the listing.
func (s *LocalStore) List(_ context.Context) ([]contracts.SnapshotInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var infos []contracts.SnapshotInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotSuffix) {
			continue
		}

		id := strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotSuffix)
		millis, err := ParseID(id)
		if err != nil {
			continue
		}

		infos = append(infos, contracts.SnapshotInfo{
			ID:        id,
			Label:     Label(millis),
			Timestamp: millis,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp > infos[j].Timestamp
	})

	return infos, nil
}

// Read loads one snapshot file
func (s *LocalStore) Read(_ context.Context, id string) (contracts.Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, snapshotFilename(id)))
	if err != nil {
		if os.IsNotExist(err) {
			return contracts.Snapshot{}, contracts.ErrSnapshotNotFound
		}
		return contracts.Snapshot{}, fmt.Errorf("read snapshot %s: %w", id, err)
	}

	var snap contracts.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return contracts.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", id, err)
	}

	return snap, nil
}

// Write stores the snapshot under its date-derived id. The write goes
// through a temp file plus rename so a concurrent reader never sees a
// partial snapshot.
func (s *LocalStore) Write(_ context.Context, snap contracts.Snapshot) (string, error) {
	id := IDForTime(snap.ComputedAt())

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot %s: %w", id, err)
	}

	if err := s.writeAtomic(snapshotFilename(id), data); err != nil {
		return "", fmt.Errorf("write snapshot %s: %w", id, err)
	}

	return id, nil
}

// ReadExport loads full-export CSV bytes
func (s *LocalStore) ReadExport(_ context.Context, id string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, exportFilename(id)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, contracts.ErrExportNotFound
		}
		return nil, fmt.Errorf("read export %s: %w", id, err)
	}
	return data, nil
}

// WriteExport stores full-export CSV bytes
func (s *LocalStore) WriteExport(_ context.Context, id string, data []byte) error {
	if err := s.writeAtomic(exportFilename(id), data); err != nil {
		return fmt.Errorf("write export %s: %w", id, err)
	}
	return nil
}

func (s *LocalStore) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), filepath.Join(s.dir, name))
}
