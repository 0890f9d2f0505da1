package market

import (
	"sort"

	"github.com/quantfeed/pulse/internal/contracts"
)

// TrajectoryPoint is one group's position at one snapshot
type TrajectoryPoint struct {
	Momentum      float64 `json:"momentum"`
	YValue        float64 `json:"yValue"`
	SnapshotIndex int     `json:"snapshotIndex"`
	Timestamp     int64   `json:"timestamp"`
}

// SortByTime orders snapshots oldest to newest. Callers reconstruct
// temporal order explicitly before building trajectories, since
// concurrent point resolution gives no ordering guarantee.
func SortByTime(snaps []contracts.Snapshot) []contracts.Snapshot {
	sorted := make([]contracts.Snapshot, len(snaps))
	copy(sorted, snaps)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastUpdated < sorted[j].LastUpdated
	})
	return sorted
}

// BuildTrajectories assembles per-group movement across snapshots
// given oldest to newest. Only groups present in the most recent
// snapshot get a trajectory, and only when at least two points exist.
// Axis and weighting selection is a pure projection of already
// computed values.
func BuildTrajectories(snaps []contracts.Snapshot, axis contracts.YAxis, w contracts.Weighting) map[string][]TrajectoryPoint {
	trajectories := make(map[string][]TrajectoryPoint)
	if len(snaps) < 2 {
		return trajectories
	}

	latest := snaps[len(snaps)-1]
	active := make(map[string]bool, len(latest.Data))
	for _, g := range latest.Data {
		active[g.Name] = true
	}

	points := make(map[string][]TrajectoryPoint)
	for idx, snap := range snaps {
		for _, g := range snap.Data {
			if !active[g.Name] {
				continue
			}
			y, ok := g.YValueFor(axis, w)
			if !ok {
				continue
			}
			points[g.Name] = append(points[g.Name], TrajectoryPoint{
				Momentum:      g.MomentumFor(w),
				YValue:        y,
				SnapshotIndex: idx,
				Timestamp:     snap.LastUpdated,
			})
		}
	}

	for name, pts := range points {
		if len(pts) >= 2 {
			trajectories[name] = pts
		}
	}

	return trajectories
}
