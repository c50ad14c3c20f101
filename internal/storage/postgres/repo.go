// Package postgres implements a relational point sink using pgx v5. Matched
// records are streamed into the destination table with COPY, the fastest
// append path Postgres offers. There is no upsert or delete semantics; the
// pipeline is append-only.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"laspipe/internal/las"
)

// Columns is the fixed destination column order used for COPY.
var Columns = []string{"x", "y", "z", "intensity", "classification", "gps_time"}

// Config holds Postgres sink configuration.
type Config struct {
	DSN   string // connection string for pgxpool
	Table string // fully qualified destination table, e.g. "public.points"
}

// Repository is a Postgres-backed point sink.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a close function for
// cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, nil, fmt.Errorf("postgres: table must not be empty")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	return &Repository{pool: pool, cfg: cfg}, func() { pool.Close() }, nil
}

// EnsureTable creates the destination table if it does not exist.
func (r *Repository) EnsureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		x double precision NOT NULL,
		y double precision NOT NULL,
		z double precision NOT NULL,
		intensity integer NOT NULL,
		classification smallint NOT NULL,
		gps_time double precision
	)`, pgFQN(r.cfg.Table))
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure table %s: %w", r.cfg.Table, err)
	}
	return nil
}

// CopyPoints appends pts to the destination table using COPY and returns the
// number of rows written.
func (r *Repository) CopyPoints(ctx context.Context, pts []las.Point) (int64, error) {
	if len(pts) == 0 {
		return 0, nil
	}
	n, err := r.pool.CopyFrom(
		ctx,
		fqnIdentifier(r.cfg.Table),
		Columns,
		pgx.CopyFromSlice(len(pts), func(i int) ([]any, error) {
			p := &pts[i]
			return []any{p.X, p.Y, p.Z, int32(p.Intensity), int16(p.Classification), p.GPSTime}, nil
		}),
	)
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", r.cfg.Table, err)
	}
	return n, nil
}

// fqnIdentifier splits a dotted table name into a pgx.Identifier.
func fqnIdentifier(table string) pgx.Identifier {
	parts := strings.Split(table, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		id = append(id, p)
	}
	return id
}

// pgFQN quotes a possibly schema-qualified table name.
func pgFQN(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

// pgIdent double-quotes a single identifier.
func pgIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
