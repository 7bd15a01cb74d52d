package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidtube-org/vidtube/backend/internal/audit"
)

// AuditStore persists the auth event trail in PostgreSQL.
type AuditStore struct {
	pool *pgxpool.Pool
}

func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Migrate creates the auth_events table if it doesn't exist.
func (s *AuditStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS auth_events (
			id         BIGSERIAL PRIMARY KEY,
			user_id    TEXT,
			event      TEXT NOT NULL,
			detail     TEXT,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}

// WriteEvent implements audit.Sink.
func (s *AuditStore) WriteEvent(ctx context.Context, ev audit.Event) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO auth_events (user_id, event, detail, created_at)
		 VALUES ($1, $2, $3, $4)`,
		ev.UserID, ev.Name, ev.Detail, ev.At,
	)
	if err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}
