package snapshot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Filename patterns for the local backend and download ids
const (
	snapshotPrefix = "snapshot_"
	snapshotSuffix = ".json"
	exportPrefix   = "full_export_"
	exportSuffix   = ".csv"
)

// IDForTime derives the canonical snapshot id from a timestamp: the
// UTC calendar date. At most one snapshot is retained per UTC day.
func IDForTime(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ParseID resolves a snapshot id to an epoch-millis timestamp. Two
// historical formats exist: the canonical ISO date, and legacy numeric
// ids from before date-keyed snapshots (a compact yyyymmddhhmmss stamp,
// or a raw epoch-millis value).
func ParseID(id string) (int64, error) {
	if strings.Contains(id, "-") {
		t, err := time.Parse("2006-01-02", id)
		if err != nil {
			return 0, fmt.Errorf("invalid snapshot id %q: %w", id, err)
		}
		return t.UnixMilli(), nil
	}

	if len(id) == 14 {
		if t, err := time.ParseInLocation("20060102150405", id, time.UTC); err == nil {
			return t.UnixMilli(), nil
		}
	}

	millis, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid snapshot id %q: %w", id, err)
	}
	return millis, nil
}

// Label renders a human-readable label for a snapshot timestamp
func Label(millis int64) string {
	return time.UnixMilli(millis).UTC().Format("Jan 2, 2006")
}

// snapshotFilename returns the blob name for a snapshot id
func snapshotFilename(id string) string {
	return snapshotPrefix + id + snapshotSuffix
}

// exportFilename returns the blob name for a full export id
func exportFilename(id string) string {
	return exportPrefix + id + exportSuffix
}
