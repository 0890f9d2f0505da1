// Package market orchestrates the refresh pipeline and resolves
// requested time points into concrete snapshots.
package market

import (
	"context"
	"sync"
	"time"

	"github.com/quantfeed/pulse/internal/aggregate"
	"github.com/quantfeed/pulse/internal/contracts"
	"github.com/quantfeed/pulse/internal/export"
	"github.com/quantfeed/pulse/internal/normalize"
	"github.com/quantfeed/pulse/internal/snapshot"
	"github.com/quantfeed/pulse/pkg/logger"
)

// RowSource provides the raw per-instrument view tables for the
// current point in time.
type RowSource interface {
	FetchAll(ctx context.Context) (contracts.RawViews, error)
}

// Recorder receives each successfully persisted run for history
// accumulation. Failures are logged, never fatal to the run.
type Recorder interface {
	Record(ctx context.Context, snapshotID string, snap contracts.Snapshot) error
}

// Notifier is told when a fresh snapshot has been persisted
type Notifier interface {
	NotifySnapshot(id string)
}

// defaultOptions is the aggregation the persisted snapshot is computed
// under: the industry dimension, unfiltered.
var defaultOptions = aggregate.Options{GroupBy: contracts.GroupByIndustry}

// Service owns the in-process computation: fetching rows, aggregating,
// persisting snapshots and serving point resolution.
type Service struct {
	source     RowSource
	store      snapshot.Store
	cache      Cache
	recorder   Recorder
	notifier   Notifier
	logger     *logger.Logger
	includeRaw bool

	// serializes full provider fetches; point resolution stays concurrent
	fetchMu sync.Mutex
}

// NewService creates a market service
func NewService(source RowSource, store snapshot.Store, cache Cache, log *logger.Logger, includeRaw bool) *Service {
	return &Service{
		source:     source,
		store:      store,
		cache:      cache,
		logger:     log,
		includeRaw: includeRaw,
	}
}

// WithRecorder attaches a history recorder
func (s *Service) WithRecorder(r Recorder) *Service {
	s.recorder = r
	return s
}

// WithNotifier attaches a refresh notifier
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// Refresh fetches fresh rows from the provider, aggregates them,
// persists the snapshot plus the full CSV export, and updates the
// memo. On total failure it returns the empty "no data" snapshot and
// the error; nothing partial is ever persisted.
func (s *Service) Refresh(ctx context.Context) (contracts.Snapshot, error) {
	run, err := s.refresh(ctx)
	if err != nil {
		return contracts.Snapshot{Data: []contracts.GroupAggregate{}}, err
	}
	return run.Snapshot, nil
}

// refresh runs the full pipeline and memoizes the result
func (s *Service) refresh(ctx context.Context) (CachedRun, error) {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	start := time.Now()

	views, err := s.source.FetchAll(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Provider fetch failed, aborting refresh")
		return CachedRun{}, err
	}

	rows, stats := normalize.Rows(views)
	if stats.MissingTicker > 0 || stats.MissingPerformance > 0 {
		s.logger.WithFields(map[string]interface{}{
			"total":               stats.Total,
			"missing_ticker":      stats.MissingTicker,
			"missing_performance": stats.MissingPerformance,
		}).Warn("Excluded malformed rows during normalization")
	}

	now := time.Now()
	snap := contracts.Snapshot{
		Data:        aggregate.Aggregate(rows, defaultOptions),
		LastUpdated: now.UnixMilli(),
	}
	if s.includeRaw {
		snap.Raw = &contracts.RawBundle{
			Overview:    views.Overview.Rows,
			Performance: views.Performance.Rows,
			Valuation:   views.Valuation.Rows,
		}
	}

	id, err := s.store.Write(ctx, snap)
	if err != nil {
		return CachedRun{}, err
	}

	columns, merged := export.Merge(views.Tables())
	if len(merged) > 0 {
		if err := s.store.WriteExport(ctx, id, export.WriteCSV(columns, merged)); err != nil {
			// The snapshot is already committed; a failed export does
			// not fail the run.
			s.logger.WithError(err).WithField("id", id).Error("Full export write failed")
		}
	}

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, id, snap); err != nil {
			s.logger.WithError(err).WithField("id", id).Error("History record failed")
		}
	}

	run := CachedRun{Views: views, Snapshot: snap}
	s.cache.Set(ctx, run)

	if s.notifier != nil {
		s.notifier.NotifySnapshot(id)
	}

	s.logger.WithFields(map[string]interface{}{
		"id":       id,
		"groups":   len(snap.Data),
		"stocks":   len(rows),
		"duration": time.Since(start),
	}).Info("Refresh completed")

	return run, nil
}

// Live resolves the live point: the memoized run when present,
// otherwise a full refresh. The requested grouping is projected from
// the run's raw views without refetching.
func (s *Service) Live(ctx context.Context, opts aggregate.Options) (contracts.Snapshot, error) {
	run, ok := s.cache.Get(ctx)
	if !ok {
		var err error
		run, err = s.refresh(ctx)
		if err != nil {
			return contracts.Snapshot{Data: []contracts.GroupAggregate{}}, err
		}
	}

	if isDefault(opts) {
		return stripRaw(run.Snapshot), nil
	}

	rows, _ := normalize.Rows(run.Views)
	return contracts.Snapshot{
		Data:        aggregate.Aggregate(rows, opts),
		LastUpdated: run.Snapshot.LastUpdated,
	}, nil
}

// Historical resolves a stored point. Non-default groupings are
// re-aggregated from the snapshot's embedded raw views when available;
// a snapshot stored without them is returned as persisted.
func (s *Service) Historical(ctx context.Context, id string, opts aggregate.Options) (contracts.Snapshot, error) {
	snap, err := s.store.Read(ctx, id)
	if err != nil {
		return contracts.Snapshot{}, err
	}

	if isDefault(opts) || snap.Raw == nil {
		return stripRaw(snap), nil
	}

	views := contracts.RawViews{
		Overview:    contracts.Table{Rows: snap.Raw.Overview},
		Performance: contracts.Table{Rows: snap.Raw.Performance},
		Valuation:   contracts.Table{Rows: snap.Raw.Valuation},
	}
	rows, _ := normalize.Rows(views)

	return contracts.Snapshot{
		Data:        aggregate.Aggregate(rows, opts),
		LastUpdated: snap.LastUpdated,
	}, nil
}

// Resolve fetches every requested point, concurrently and
// independently: one missing snapshot fails that point alone. The
// point count is capped before any fetch happens.
func (s *Service) Resolve(ctx context.Context, refs []contracts.PointRef, opts aggregate.Options) (map[string]contracts.Snapshot, map[string]error) {
	results := make(map[string]contracts.Snapshot, len(refs))
	failures := make(map[string]error)

	if len(refs) > contracts.MaxPoints {
		for _, ref := range refs {
			failures[ref.String()] = contracts.ErrTooManyPoints
		}
		return results, failures
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, ref := range refs {
		wg.Add(1)
		go func(ref contracts.PointRef) {
			defer wg.Done()

			var snap contracts.Snapshot
			var err error
			if ref.IsLive() {
				snap, err = s.Live(ctx, opts)
			} else {
				snap, err = s.Historical(ctx, ref.ID(), opts)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[ref.String()] = err
				return
			}
			results[ref.String()] = snap
		}(ref)
	}

	wg.Wait()
	return results, failures
}

// List enumerates stored snapshots, newest first
func (s *Service) List(ctx context.Context) ([]contracts.SnapshotInfo, error) {
	return s.store.List(ctx)
}

// Export returns the full-export CSV bytes for a date id
func (s *Service) Export(ctx context.Context, id string) ([]byte, error) {
	return s.store.ReadExport(ctx, id)
}

// Sectors returns the distinct sector names of the resolved point,
// sorted by sector momentum, for filter dropdowns.
func (s *Service) Sectors(ctx context.Context, ref contracts.PointRef) ([]string, error) {
	opts := aggregate.Options{GroupBy: contracts.GroupBySector}

	var snap contracts.Snapshot
	var err error
	if ref.IsLive() {
		snap, err = s.Live(ctx, opts)
	} else {
		snap, err = s.Historical(ctx, ref.ID(), opts)
	}
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(snap.Data))
	for _, g := range snap.Data {
		names = append(names, g.Name)
	}
	return names, nil
}

// isDefault reports whether opts matches the persisted aggregation
func isDefault(opts aggregate.Options) bool {
	return (opts.GroupBy == contracts.GroupByIndustry || opts.GroupBy == "") &&
		opts.SectorFilter == "" && opts.IndustryFilter == "" &&
		(opts.TopN == 0 || opts.TopN == aggregate.DefaultTopN)
}

// stripRaw drops the embedded raw views from an outgoing snapshot
func stripRaw(snap contracts.Snapshot) contracts.Snapshot {
	snap.Raw = nil
	return snap
}
