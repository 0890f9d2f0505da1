package contracts

import "errors"

var (
	// ErrSnapshotNotFound means the requested snapshot id is absent
	// from every configured storage backend.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrExportNotFound means the requested full export is absent
	// from every configured storage backend.
	ErrExportNotFound = errors.New("export not found")

	// ErrTooManyPoints means a multi-point request exceeded MaxPoints.
	// Raised before any fetch is attempted.
	ErrTooManyPoints = errors.New("too many snapshot points requested")

	// ErrUpstreamFetch wraps data-provider failures (network, auth,
	// rate limit). An aggregation run that hits one aborts without
	// persisting anything.
	ErrUpstreamFetch = errors.New("upstream fetch failed")
)
