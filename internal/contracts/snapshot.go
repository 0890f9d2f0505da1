package contracts

import "time"

// RawRow is one raw provider record: column name to unparsed string
// value. Column sets vary per view; rows stay generic until the
// normalization step.
type RawRow map[string]string

// Table is one raw view table with its column order preserved as
// delivered by the provider.
type Table struct {
	Columns []string
	Rows    []RawRow
}

// RawViews bundles the raw view tables of one full provider fetch
type RawViews struct {
	Overview    Table
	Valuation   Table
	Financial   Table
	Performance Table
	Technical   Table
	Custom      Table
}

// Tables returns all views in merge precedence order: later tables
// overwrite earlier ones on column collision.
func (v RawViews) Tables() []Table {
	return []Table{v.Overview, v.Valuation, v.Financial, v.Performance, v.Technical, v.Custom}
}

// RawBundle is the subset of raw view tables optionally embedded in a
// persisted snapshot (legacy export-included variant).
type RawBundle struct {
	Overview    []RawRow `json:"overview"`
	Performance []RawRow `json:"performance"`
	Valuation   []RawRow `json:"valuation"`
}

// Snapshot is the immutable result of one aggregation run.
// LastUpdated == 0 is the "no data" sentinel returned on total
// aggregation failure; such snapshots are never persisted.
type Snapshot struct {
	Data        []GroupAggregate `json:"data"`
	LastUpdated int64            `json:"lastUpdated"` // epoch millis
	Raw         *RawBundle       `json:"raw,omitempty"`
}

// ComputedAt returns the snapshot timestamp as a time.Time
func (s Snapshot) ComputedAt() time.Time {
	return time.UnixMilli(s.LastUpdated).UTC()
}

// Empty reports whether this is the failure sentinel
func (s Snapshot) Empty() bool {
	return s.LastUpdated == 0 && len(s.Data) == 0
}

// SnapshotInfo describes one stored snapshot for listing
type SnapshotInfo struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Timestamp int64  `json:"timestamp"` // epoch millis
}
