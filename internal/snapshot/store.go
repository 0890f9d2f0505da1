// Package snapshot persists aggregation results keyed by UTC calendar
// date, across a ranked list of storage backends.
package snapshot

import (
	"context"

	"github.com/quantfeed/pulse/internal/contracts"
)

// Store is one storage backend for snapshots and full exports.
//
// Write derives the id from the snapshot timestamp and overwrites any
// snapshot already stored under the same UTC day (last writer wins).
// Read and ReadExport return contracts.ErrSnapshotNotFound /
// contracts.ErrExportNotFound for absent ids.
type Store interface {
	// Name identifies the backend in logs
	Name() string

	// List returns stored snapshots sorted by timestamp descending
	List(ctx context.Context) ([]contracts.SnapshotInfo, error)

	// Read loads the snapshot stored under id
	Read(ctx context.Context, id string) (contracts.Snapshot, error)

	// Write stores the snapshot atomically and returns its derived id
	Write(ctx context.Context, snap contracts.Snapshot) (string, error)

	// ReadExport loads the full-export CSV bytes stored under id
	ReadExport(ctx context.Context, id string) ([]byte, error)

	// WriteExport stores the full-export CSV bytes under id
	WriteExport(ctx context.Context, id string, data []byte) error
}
