package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/quantfeed/pulse/internal/contracts"
	"github.com/quantfeed/pulse/pkg/logger"
)

// Fallback composes a ranked list of backends into one Store.
//
// Reads try each backend in rank order and take the first usable
// answer; a reachable-but-empty primary also falls through. Writes go
// to every backend: a failure on the first (primary) backend is
// returned, failures on the rest are logged only.
type Fallback struct {
	stores []Store
	logger *logger.Logger
}

// NewFallback builds a composite store. Backends are ranked in the
// order given; the first is the primary.
func NewFallback(log *logger.Logger, stores ...Store) *Fallback {
	return &Fallback{stores: stores, logger: log}
}

// Name identifies the composite in logs
func (f *Fallback) Name() string {
	return "fallback"
}

// List returns the first non-empty listing in rank order. A backend
// that answers with an empty listing still counts as a success: when
// every reachable backend is empty the result is an empty listing,
// not an error.
func (f *Fallback) List(ctx context.Context) ([]contracts.SnapshotInfo, error) {
	var lastErr error
	succeeded := false

	for _, store := range f.stores {
		infos, err := store.List(ctx)
		if err != nil {
			f.logger.WithError(err).WithField("backend", store.Name()).Warn("Snapshot list failed, trying next backend")
			lastErr = err
			continue
		}
		if len(infos) > 0 {
			return infos, nil
		}
		succeeded = true
	}

	if !succeeded && lastErr != nil {
		return nil, fmt.Errorf("all snapshot backends failed: %w", lastErr)
	}
	return nil, nil
}

// Read returns the first backend's copy of the snapshot. Not-found
// is only reported when no backend failed for another reason: with
// the primary unreachable the snapshot may well exist there, so the
// infrastructure error wins over a later backend's not-found.
func (f *Fallback) Read(ctx context.Context, id string) (contracts.Snapshot, error) {
	var infraErr error
	for _, store := range f.stores {
		snap, err := store.Read(ctx, id)
		if err == nil {
			return snap, nil
		}
		if errors.Is(err, contracts.ErrSnapshotNotFound) {
			continue
		}
		f.logger.WithError(err).WithFields(map[string]interface{}{
			"backend": store.Name(),
			"id":      id,
		}).Warn("Snapshot read failed, trying next backend")
		if infraErr == nil {
			infraErr = err
		}
	}

	if infraErr != nil {
		return contracts.Snapshot{}, fmt.Errorf("read snapshot %s: %w", id, infraErr)
	}
	return contracts.Snapshot{}, contracts.ErrSnapshotNotFound
}

// Write commits to every backend. The derived id comes from the first
// backend that succeeds; only a primary failure is fatal.
func (f *Fallback) Write(ctx context.Context, snap contracts.Snapshot) (string, error) {
	var id string
	var primaryErr error

	for i, store := range f.stores {
		storeID, err := store.Write(ctx, snap)
		if err != nil {
			if i == 0 {
				primaryErr = err
			}
			f.logger.WithError(err).WithField("backend", store.Name()).Error("Snapshot write failed")
			continue
		}
		if id == "" {
			id = storeID
		}
	}

	if id == "" && primaryErr != nil {
		return "", fmt.Errorf("snapshot write failed on all backends: %w", primaryErr)
	}
	if primaryErr != nil {
		return id, fmt.Errorf("snapshot write failed on primary backend: %w", primaryErr)
	}
	return id, nil
}

// ReadExport returns the first backend's copy of the export, with
// the same error precedence as Read.
func (f *Fallback) ReadExport(ctx context.Context, id string) ([]byte, error) {
	var infraErr error
	for _, store := range f.stores {
		data, err := store.ReadExport(ctx, id)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, contracts.ErrExportNotFound) {
			continue
		}
		f.logger.WithError(err).WithFields(map[string]interface{}{
			"backend": store.Name(),
			"id":      id,
		}).Warn("Export read failed, trying next backend")
		if infraErr == nil {
			infraErr = err
		}
	}

	if infraErr != nil {
		return nil, fmt.Errorf("read export %s: %w", id, infraErr)
	}
	return nil, contracts.ErrExportNotFound
}

// WriteExport commits to every backend, best-effort beyond the primary
func (f *Fallback) WriteExport(ctx context.Context, id string, data []byte) error {
	var primaryErr error

	for i, store := range f.stores {
		if err := store.WriteExport(ctx, id, data); err != nil {
			if i == 0 {
				primaryErr = err
			}
			f.logger.WithError(err).WithField("backend", store.Name()).Error("Export write failed")
		}
	}

	if primaryErr != nil {
		return fmt.Errorf("export write failed on primary backend: %w", primaryErr)
	}
	return nil
}
