package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists session snapshots to PostgreSQL using an
// externally-owned connection pool. The caller creates and closes the
// pool; PostgresStore.Close is a no-op.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool. Call Init once per deployment
// to create the backing table.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Init creates the session_checkpoints table if it doesn't already exist.
// Safe to call multiple times.
func (s *PostgresStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS session_checkpoints (
			session_id TEXT PRIMARY KEY,
			data       BYTEA NOT NULL,
			timestamp  TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("postgres checkpoint: init: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, snapshot Snapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO session_checkpoints (session_id, data, timestamp)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO UPDATE SET
			data = EXCLUDED.data,
			timestamp = EXCLUDED.timestamp
	`, snapshot.SessionID, snapshot.Data, snapshot.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres checkpoint: save: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, sessionID string) (Snapshot, error) {
	var snapshot Snapshot
	snapshot.SessionID = sessionID
	err := s.pool.QueryRow(ctx, `
		SELECT data, timestamp FROM session_checkpoints WHERE session_id = $1
	`, sessionID).Scan(&snapshot.Data, &snapshot.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("postgres checkpoint: load: %w", err)
	}
	return snapshot, nil
}

func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM session_checkpoints WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("postgres checkpoint: delete: %w", err)
	}
	return nil
}

// Close is a no-op: the caller owns the pool and manages its lifecycle.
func (s *PostgresStore) Close() error { return nil }
