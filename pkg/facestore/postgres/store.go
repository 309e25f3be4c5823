// Package postgres stores face records in PostgreSQL. Each record's
// proportion vector lives in a pgvector column so similar faces can be
// found with the database's nearest-neighbour operators.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/teslashibe/facewave/pkg/facestore"
	"github.com/teslashibe/facewave/pkg/landmark"
)

var _ facestore.SimilarityStore = (*Store)(nil)

// Store is a PostgreSQL-backed facestore.SimilarityStore. It is safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn, registers pgvector types on every connection
// and runs Migrate.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Save upserts r.
func (s *Store) Save(ctx context.Context, r *facestore.Record) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("postgres store: marshal record: %w", err)
	}

	const q = `
		INSERT INTO faces (id, name, created_at, source, style_mode, record, proportions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
		    name        = EXCLUDED.name,
		    source      = EXCLUDED.source,
		    style_mode  = EXCLUDED.style_mode,
		    record      = EXCLUDED.record,
		    proportions = EXCLUDED.proportions`

	_, err = s.pool.Exec(ctx, q,
		r.ID,
		r.Name,
		r.CreatedAt,
		string(r.Source),
		r.StyleMode.String(),
		body,
		pgvector.NewVector(facestore.Vector(r.Measurements)),
	)
	if err != nil {
		return fmt.Errorf("postgres store: save %s: %w", r.ID, err)
	}
	return nil
}

// Get retrieves a record by ID.
func (s *Store) Get(ctx context.Context, id string) (*facestore.Record, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT record FROM faces WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", facestore.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get %s: %w", id, err)
	}
	return decode(body)
}

// List returns all records, newest first.
func (s *Store) List(ctx context.Context) ([]*facestore.Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT record FROM faces ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*facestore.Record, error) {
		var body []byte
		if err := row.Scan(&body); err != nil {
			return nil, err
		}
		return decode(body)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan rows: %w", err)
	}
	if records == nil {
		records = []*facestore.Record{}
	}
	return records, nil
}

// Delete removes a record by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM faces WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres store: delete %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", facestore.ErrNotFound, id)
	}
	return nil
}

// Count returns the number of records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM faces`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres store: count: %w", err)
	}
	return n, nil
}

// Similar returns the k records nearest to m by Euclidean distance.
func (s *Store) Similar(ctx context.Context, m landmark.Measurements, k int) ([]facestore.Match, error) {
	if k <= 0 {
		k = 10
	}
	const q = `
		SELECT record, proportions <-> $1 AS distance
		FROM   faces
		ORDER  BY distance, id
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(facestore.Vector(m)), k)
	if err != nil {
		return nil, fmt.Errorf("postgres store: similar: %w", err)
	}
	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (facestore.Match, error) {
		var (
			body []byte
			dist float64
		)
		if err := row.Scan(&body, &dist); err != nil {
			return facestore.Match{}, err
		}
		r, err := decode(body)
		if err != nil {
			return facestore.Match{}, err
		}
		return facestore.Match{Record: r, Distance: dist}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan rows: %w", err)
	}
	if matches == nil {
		matches = []facestore.Match{}
	}
	return matches, nil
}

// Close releases all pooled connections.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func decode(body []byte) (*facestore.Record, error) {
	var r facestore.Record
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &r, nil
}
