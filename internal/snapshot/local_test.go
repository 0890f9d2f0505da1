package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfeed/pulse/internal/contracts"
)

func testSnapshot(at time.Time) contracts.Snapshot {
	rsi := 58.5
	return contracts.Snapshot{
		Data: []contracts.GroupAggregate{
			{
				Name:          "Software",
				Week:          2.5,
				Month:         1.0,
				Momentum:      1.5,
				RSI:           &rsi,
				WeekEqual:     2.0,
				MonthEqual:    0.5,
				MomentumEqual: 1.5,
				MarketCap:     3e12,
				StockCount:    42,
				TopContributors: []contracts.Contributor{
					{Ticker: "MSFT", Week: 4.2},
					{Ticker: "ORCL", Week: 3.1},
				},
			},
		},
		LastUpdated: at.UnixMilli(),
	}
}

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	at := time.Date(2024, 1, 5, 21, 30, 0, 0, time.UTC)
	snap := testSnapshot(at)

	id, err := store.Write(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05", id)

	got, err := store.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestLocalStoreOverwritesSameDay(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	morning := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 1, 5, 21, 30, 0, 0, time.UTC)

	_, err = store.Write(ctx, testSnapshot(morning))
	require.NoError(t, err)
	id, err := store.Write(ctx, testSnapshot(evening))
	require.NoError(t, err)

	got, err := store.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, evening.UnixMilli(), got.LastUpdated)

	infos, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

func TestLocalStoreReadMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Read(context.Background(), "2020-01-01")
	assert.ErrorIs(t, err, contracts.ErrSnapshotNotFound)
}

func TestLocalStoreListSortedWithLegacyIDs(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	// One canonical file, one legacy compact-timestamp file, one junk file
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapshot_2024-01-05.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapshot_20240101000000.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapshot_garbage.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	infos, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)

	// Newest first
	assert.Equal(t, "2024-01-05", infos[0].ID)
	assert.Equal(t, "20240101000000", infos[1].ID)
	assert.Greater(t, infos[0].Timestamp, infos[1].Timestamp)
	assert.Equal(t, "Jan 5, 2024", infos[0].Label)
}

func TestLocalStoreExportRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	content := []byte("\"Ticker\"\n\"AAPL\"")

	require.NoError(t, store.WriteExport(ctx, "2024-01-05", content))

	got, err := store.ReadExport(ctx, "2024-01-05")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = store.ReadExport(ctx, "2020-01-01")
	assert.ErrorIs(t, err, contracts.ErrExportNotFound)
}
