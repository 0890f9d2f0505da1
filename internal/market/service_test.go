package market

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfeed/pulse/internal/aggregate"
	"github.com/quantfeed/pulse/internal/contracts"
	"github.com/quantfeed/pulse/internal/snapshot"
	"github.com/quantfeed/pulse/pkg/logger"
)

// fakeSource returns canned view tables or a fixed error
type fakeSource struct {
	views   contracts.RawViews
	err     error
	fetches int
	mu      sync.Mutex
}

func (f *fakeSource) FetchAll(_ context.Context) (contracts.RawViews, error) {
	f.mu.Lock()
	f.fetches++
	f.mu.Unlock()
	if f.err != nil {
		return contracts.RawViews{}, f.err
	}
	return f.views, nil
}

// fakeStore is an in-memory snapshot.Store
type fakeStore struct {
	mu        sync.Mutex
	snapshots map[string]contracts.Snapshot
	exports   map[string][]byte
	writeErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		snapshots: make(map[string]contracts.Snapshot),
		exports:   make(map[string][]byte),
	}
}

func (f *fakeStore) Name() string { return "fake" }

func (f *fakeStore) List(_ context.Context) ([]contracts.SnapshotInfo, error) {
	return nil, nil
}

func (f *fakeStore) Read(_ context.Context, id string) (contracts.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.snapshots[id]
	if !ok {
		return contracts.Snapshot{}, contracts.ErrSnapshotNotFound
	}
	return snap, nil
}

func (f *fakeStore) Write(_ context.Context, snap contracts.Snapshot) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return "", f.writeErr
	}
	id := snapshot.IDForTime(snap.ComputedAt())
	f.snapshots[id] = snap
	return id, nil
}

func (f *fakeStore) ReadExport(_ context.Context, id string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.exports[id]
	if !ok {
		return nil, contracts.ErrExportNotFound
	}
	return data, nil
}

func (f *fakeStore) WriteExport(_ context.Context, id string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exports[id] = data
	return nil
}

func fakeViews() contracts.RawViews {
	return contracts.RawViews{
		Overview: contracts.Table{
			Columns: []string{"Ticker", "Sector", "Industry", "Market Cap"},
			Rows: []contracts.RawRow{
				{"Ticker": "XOM", "Sector": "Energy", "Industry": "Oil & Gas Integrated", "Market Cap": "450B"},
				{"Ticker": "MSFT", "Sector": "Technology", "Industry": "Software", "Market Cap": "2800B"},
			},
		},
		Performance: contracts.Table{
			Columns: []string{"Ticker", "Performance (Week)", "Performance (Month)"},
			Rows: []contracts.RawRow{
				{"Ticker": "XOM", "Performance (Week)": "2.50%", "Performance (Month)": "1.00%"},
				{"Ticker": "MSFT", "Performance (Week)": "1.00%", "Performance (Month)": "3.00%"},
			},
		},
		Technical: contracts.Table{
			Columns: []string{"Ticker", "RSI"},
			Rows: []contracts.RawRow{
				{"Ticker": "XOM", "RSI": "61.0"},
				{"Ticker": "MSFT", "RSI": "49.0"},
			},
		},
	}
}

func newTestService(source *fakeSource, store *fakeStore) *Service {
	return NewService(source, store, NewMemoryCache(), logger.NewNop(), false)
}

func TestRefreshPersistsSnapshotAndExport(t *testing.T) {
	source := &fakeSource{views: fakeViews()}
	store := newFakeStore()
	svc := newTestService(source, store)

	snap, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.Len(t, snap.Data, 2)
	assert.Greater(t, snap.LastUpdated, int64(0))
	assert.Nil(t, snap.Raw)

	require.Len(t, store.snapshots, 1)
	require.Len(t, store.exports, 1)
}

func TestRefreshFailureReturnsEmptySentinelAndPersistsNothing(t *testing.T) {
	source := &fakeSource{err: contracts.ErrUpstreamFetch}
	store := newFakeStore()
	svc := newTestService(source, store)

	snap, err := svc.Refresh(context.Background())
	assert.ErrorIs(t, err, contracts.ErrUpstreamFetch)

	// The "no data" sentinel: empty groups, zero timestamp
	assert.Empty(t, snap.Data)
	assert.Equal(t, int64(0), snap.LastUpdated)

	assert.Empty(t, store.snapshots, "partial snapshots must never be persisted")
	assert.Empty(t, store.exports)
}

func TestRefreshStoreFailureIsNotMemoized(t *testing.T) {
	source := &fakeSource{views: fakeViews()}
	store := newFakeStore()
	store.writeErr = errors.New("connection refused")
	svc := newTestService(source, store)

	_, err := svc.Refresh(context.Background())
	assert.Error(t, err)

	// The next live read must recompute, not serve the failed run
	store.writeErr = nil
	snap, err := svc.Live(context.Background(), aggregate.Options{})
	require.NoError(t, err)
	assert.Len(t, snap.Data, 2)
	assert.Equal(t, 2, source.fetches)
}

func TestLiveServesMemoWithoutRefetch(t *testing.T) {
	source := &fakeSource{views: fakeViews()}
	store := newFakeStore()
	svc := newTestService(source, store)

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	snap, err := svc.Live(context.Background(), aggregate.Options{})
	require.NoError(t, err)
	assert.Len(t, snap.Data, 2)
	assert.Equal(t, 1, source.fetches, "memoized live read must not refetch")
}

func TestLiveProjectsNonDefaultGroupingFromMemo(t *testing.T) {
	source := &fakeSource{views: fakeViews()}
	store := newFakeStore()
	svc := newTestService(source, store)

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	snap, err := svc.Live(context.Background(), aggregate.Options{GroupBy: contracts.GroupBySector})
	require.NoError(t, err)
	assert.Equal(t, 1, source.fetches)

	names := make([]string, 0, len(snap.Data))
	for _, g := range snap.Data {
		names = append(names, g.Name)
	}
	assert.ElementsMatch(t, []string{"Energy", "Technology"}, names)
}

func TestHistoricalReadsStore(t *testing.T) {
	source := &fakeSource{views: fakeViews()}
	store := newFakeStore()
	svc := newTestService(source, store)

	persisted, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	infos := make([]string, 0, 1)
	for id := range store.snapshots {
		infos = append(infos, id)
	}
	require.Len(t, infos, 1)

	snap, err := svc.Historical(context.Background(), infos[0], aggregate.Options{})
	require.NoError(t, err)
	assert.Equal(t, persisted.LastUpdated, snap.LastUpdated)

	_, err = svc.Historical(context.Background(), "1999-12-31", aggregate.Options{})
	assert.ErrorIs(t, err, contracts.ErrSnapshotNotFound)
}

func TestResolveMixedPoints(t *testing.T) {
	source := &fakeSource{views: fakeViews()}
	store := newFakeStore()
	svc := newTestService(source, store)

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	var storedID string
	for id := range store.snapshots {
		storedID = id
	}

	refs := []contracts.PointRef{
		contracts.LivePoint(),
		contracts.HistoricalPoint(storedID),
		contracts.HistoricalPoint("1999-12-31"),
	}

	results, failures := svc.Resolve(context.Background(), refs, aggregate.Options{})

	assert.Len(t, results, 2)
	assert.Contains(t, results, "live")
	assert.Contains(t, results, storedID)

	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures["1999-12-31"], contracts.ErrSnapshotNotFound)
}

func TestResolveRejectsTooManyPoints(t *testing.T) {
	source := &fakeSource{views: fakeViews()}
	svc := newTestService(source, newFakeStore())

	refs := make([]contracts.PointRef, 0, contracts.MaxPoints+1)
	refs = append(refs, contracts.LivePoint())
	for _, id := range []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"} {
		refs = append(refs, contracts.HistoricalPoint(id))
	}

	results, failures := svc.Resolve(context.Background(), refs, aggregate.Options{})

	assert.Empty(t, results)
	assert.Len(t, failures, contracts.MaxPoints+1)
	for _, err := range failures {
		assert.ErrorIs(t, err, contracts.ErrTooManyPoints)
	}
	assert.Equal(t, 0, source.fetches, "rejection must happen before any fetch")
}

func TestRefreshIncludesRawWhenConfigured(t *testing.T) {
	source := &fakeSource{views: fakeViews()}
	store := newFakeStore()
	svc := NewService(source, store, NewMemoryCache(), logger.NewNop(), true)

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	for _, snap := range store.snapshots {
		require.NotNil(t, snap.Raw)
		assert.Len(t, snap.Raw.Overview, 2)
	}
}

func TestSectors(t *testing.T) {
	source := &fakeSource{views: fakeViews()}
	svc := newTestService(source, newFakeStore())

	sectors, err := svc.Sectors(context.Background(), contracts.LivePoint())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Energy", "Technology"}, sectors)
}
