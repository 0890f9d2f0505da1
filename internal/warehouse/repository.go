// Package warehouse accumulates per-run group aggregates in Postgres
// for analytical queries across the whole snapshot history.
package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfeed/pulse/internal/contracts"
)

// Repository appends group aggregates to the history table.
// Each recorded run flips the is_current flag: only the most recent
// run's rows carry it.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the history table when it does not exist yet
func (r *Repository) EnsureSchema(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS group_aggregate_history (
			snapshot_id    TEXT NOT NULL,
			processed_at   TIMESTAMPTZ NOT NULL,
			is_current     BOOLEAN NOT NULL DEFAULT TRUE,
			name           TEXT NOT NULL,
			week           DOUBLE PRECISION NOT NULL,
			month          DOUBLE PRECISION NOT NULL,
			momentum       DOUBLE PRECISION NOT NULL,
			rsi            DOUBLE PRECISION,
			week_equal     DOUBLE PRECISION NOT NULL,
			month_equal    DOUBLE PRECISION NOT NULL,
			momentum_equal DOUBLE PRECISION NOT NULL,
			rsi_equal      DOUBLE PRECISION,
			market_cap     DOUBLE PRECISION NOT NULL,
			stock_count    INTEGER NOT NULL,
			PRIMARY KEY (snapshot_id, name)
		);

		CREATE INDEX IF NOT EXISTS idx_group_aggregate_history_name
			ON group_aggregate_history (name, processed_at);
	`

	if _, err := r.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure warehouse schema: %w", err)
	}
	return nil
}

// Record appends one run's aggregates and marks them current. The flag
// flip and the insert run in one transaction, so readers never see a
// run that is half current.
func (r *Repository) Record(ctx context.Context, snapshotID string, snap contracts.Snapshot) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE group_aggregate_history SET is_current = FALSE WHERE is_current`); err != nil {
		return fmt.Errorf("clear current flag: %w", err)
	}

	// Re-recording the same day replaces that day's rows
	if _, err := tx.Exec(ctx, `DELETE FROM group_aggregate_history WHERE snapshot_id = $1`, snapshotID); err != nil {
		return fmt.Errorf("delete stale history rows: %w", err)
	}

	query := `
		INSERT INTO group_aggregate_history (
			snapshot_id, processed_at, is_current, name,
			week, month, momentum, rsi,
			week_equal, month_equal, momentum_equal, rsi_equal,
			market_cap, stock_count
		) VALUES ($1, $2, TRUE, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	processedAt := snap.ComputedAt()
	for _, g := range snap.Data {
		_, err := tx.Exec(ctx, query,
			snapshotID,
			processedAt,
			g.Name,
			g.Week,
			g.Month,
			g.Momentum,
			g.RSI,
			g.WeekEqual,
			g.MonthEqual,
			g.MomentumEqual,
			g.RSIEqual,
			g.MarketCap,
			g.StockCount,
		)
		if err != nil {
			return fmt.Errorf("insert history row %s/%s: %w", snapshotID, g.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit history transaction: %w", err)
	}

	return nil
}

// HistoryPoint is one group's aggregate at one recorded run
type HistoryPoint struct {
	SnapshotID  string    `json:"snapshotId"`
	ProcessedAt time.Time `json:"processedAt"`
	IsCurrent   bool      `json:"isCurrent"`
	Week        float64   `json:"week"`
	Month       float64   `json:"month"`
	Momentum    float64   `json:"momentum"`
	RSI         *float64  `json:"rsi,omitempty"`
	MarketCap   float64   `json:"marketCap"`
	StockCount  int       `json:"stockCount"`
}

// History returns a group's recorded aggregates, oldest first
func (r *Repository) History(ctx context.Context, name string, limit int) ([]HistoryPoint, error) {
	if limit <= 0 {
		limit = 90
	}

	query := `
		SELECT snapshot_id, processed_at, is_current,
			week, month, momentum, rsi, market_cap, stock_count
		FROM group_aggregate_history
		WHERE name = $1
		ORDER BY processed_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, name, limit)
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", name, err)
	}
	defer rows.Close()

	points, err := pgx.CollectRows(rows, pgx.RowToStructByPos[HistoryPoint])
	if err != nil {
		return nil, fmt.Errorf("scan history rows: %w", err)
	}

	// Query returns newest first; flip to oldest first for charting
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}

	return points, nil
}
