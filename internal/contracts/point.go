package contracts

import "strings"

// MaxPoints caps the number of simultaneously requested time points.
// Enforced before any fetch is attempted.
const MaxPoints = 5

// livePointID is the wire representation of the live point
const livePointID = "live"

// PointRef identifies either the live (freshly computed) result or a
// stored snapshot. The zero value is the live point.
type PointRef struct {
	id string
}

// LivePoint returns the reference to the live result
func LivePoint() PointRef {
	return PointRef{}
}

// HistoricalPoint returns a reference to the stored snapshot with the given id
func HistoricalPoint(id string) PointRef {
	return PointRef{id: id}
}

// IsLive reports whether this reference means a fresh computation
func (p PointRef) IsLive() bool {
	return p.id == ""
}

// ID returns the snapshot id; empty for the live point
func (p PointRef) ID() string {
	return p.id
}

// String returns the wire representation
func (p PointRef) String() string {
	if p.IsLive() {
		return livePointID
	}
	return p.id
}

// ParsePointRef parses one point id. "live" (or empty) maps to the
// live point; anything else is a snapshot id.
func ParsePointRef(s string) PointRef {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, livePointID) {
		return LivePoint()
	}
	return HistoricalPoint(s)
}

// ParsePointRefs parses a comma-separated list of point ids,
// deduplicating and enforcing MaxPoints. An empty list defaults to the
// live point alone.
func ParsePointRefs(s string) ([]PointRef, error) {
	if strings.TrimSpace(s) == "" {
		return []PointRef{LivePoint()}, nil
	}

	seen := make(map[PointRef]bool)
	var refs []PointRef
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		ref := ParsePointRef(part)
		if seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}

	if len(refs) == 0 {
		return []PointRef{LivePoint()}, nil
	}
	if len(refs) > MaxPoints {
		return nil, ErrTooManyPoints
	}
	return refs, nil
}
