package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlFaces = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS faces (
    id          TEXT         PRIMARY KEY,
    name        TEXT         NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    source      TEXT         NOT NULL,
    style_mode  TEXT         NOT NULL,
    record      JSONB        NOT NULL,
    proportions vector(4)    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_faces_created_at
    ON faces (created_at DESC);`

// Migrate creates the faces table and the pgvector extension when missing.
// It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlFaces); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
