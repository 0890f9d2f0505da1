package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfeed/pulse/internal/contracts"
)

// PostgresStore persists snapshots in Postgres. It is the primary
// backend; local storage serves as fallback when the database is
// unreachable.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new Postgres-backed store
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Name identifies the backend in logs
func (s *PostgresStore) Name() string {
	return "postgres"
}

// EnsureSchema creates the backing tables when they do not exist yet
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS snapshots (
			id           TEXT PRIMARY KEY,
			last_updated BIGINT NOT NULL,
			payload      JSONB NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS full_exports (
			id         TEXT PRIMARY KEY,
			content    TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`

	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure snapshot schema: %w", err)
	}
	return nil
}

// List returns stored snapshots sorted by timestamp descending
func (s *PostgresStore) List(ctx context.Context) ([]contracts.SnapshotInfo, error) {
	query := `
		SELECT id, last_updated
		FROM snapshots
		ORDER BY last_updated DESC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var infos []contracts.SnapshotInfo
	for rows.Next() {
		var id string
		var lastUpdated int64
		if err := rows.Scan(&id, &lastUpdated); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		// Ids predating date-keyed snapshots resolve through ParseID;
		// their stored last_updated may be zero.
		millis := lastUpdated
		if millis == 0 {
			if parsed, err := ParseID(id); err == nil {
				millis = parsed
			}
		}

		infos = append(infos, contracts.SnapshotInfo{
			ID:        id,
			Label:     Label(millis),
			Timestamp: millis,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return infos, nil
}

// Read loads the snapshot stored under id
func (s *PostgresStore) Read(ctx context.Context, id string) (contracts.Snapshot, error) {
	query := `SELECT payload FROM snapshots WHERE id = $1`

	var payload []byte
	err := s.db.QueryRow(ctx, query, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return contracts.Snapshot{}, contracts.ErrSnapshotNotFound
		}
		return contracts.Snapshot{}, fmt.Errorf("query snapshot %s: %w", id, err)
	}

	var snap contracts.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return contracts.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", id, err)
	}

	return snap, nil
}

// Write upserts the snapshot under its date-derived id. Concurrent
// writers for the same day are last-writer-wins.
func (s *PostgresStore) Write(ctx context.Context, snap contracts.Snapshot) (string, error) {
	id := IDForTime(snap.ComputedAt())

	payload, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot %s: %w", id, err)
	}

	query := `
		INSERT INTO snapshots (id, last_updated, payload, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			last_updated = EXCLUDED.last_updated,
			payload = EXCLUDED.payload,
			created_at = NOW()
	`

	if _, err := s.db.Exec(ctx, query, id, snap.LastUpdated, payload); err != nil {
		return "", fmt.Errorf("insert snapshot %s: %w", id, err)
	}

	return id, nil
}

// ReadExport loads full-export CSV bytes
func (s *PostgresStore) ReadExport(ctx context.Context, id string) ([]byte, error) {
	query := `SELECT content FROM full_exports WHERE id = $1`

	var content string
	err := s.db.QueryRow(ctx, query, id).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, contracts.ErrExportNotFound
		}
		return nil, fmt.Errorf("query export %s: %w", id, err)
	}

	return []byte(content), nil
}

// WriteExport upserts full-export CSV bytes
func (s *PostgresStore) WriteExport(ctx context.Context, id string, data []byte) error {
	query := `
		INSERT INTO full_exports (id, content, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			created_at = NOW()
	`

	if _, err := s.db.Exec(ctx, query, id, string(data)); err != nil {
		return fmt.Errorf("insert export %s: %w", id, err)
	}
	return nil
}
