// Package catalog persists a history of pipeline runs in a local SQLite
// database: one row per run with totals, duration, per-sink outcomes, and
// the terminal status. It is an operational convenience; the pipeline does
// not read the catalog and never depends on it succeeding.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	// SQLite driver; registered under the name "sqlite".
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	job         TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	sources     INTEGER NOT NULL,
	points_read INTEGER NOT NULL,
	points_written INTEGER NOT NULL,
	sinks       TEXT NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT
)`

// Run is one catalog row.
type Run struct {
	Job      string
	Started  time.Time
	Duration time.Duration
	Sources  int
	Read     int64
	Written  int64
	Sinks    []SinkResult
	Err      error
}

// SinkResult is the per-sink portion of a catalog row, stored as JSON.
type SinkResult struct {
	Name    string `json:"name"`
	Written int64  `json:"written"`
	Digest  string `json:"digest"`
}

// Catalog is an open run-history database.
type Catalog struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalog at path.
func Open(ctx context.Context, path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("catalog: path must not be empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: create schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// RecordRun appends one run to the history.
func (c *Catalog) RecordRun(ctx context.Context, r Run) error {
	sinks, err := json.Marshal(r.Sinks)
	if err != nil {
		return fmt.Errorf("catalog: marshal sinks: %w", err)
	}
	status := "success"
	var errText any
	if r.Err != nil {
		status = "failure"
		errText = r.Err.Error()
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO runs (job, started_at, duration_ms, sources, points_read, points_written, sinks, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Job,
		r.Started.UTC().Format(time.RFC3339),
		r.Duration.Milliseconds(),
		r.Sources,
		r.Read,
		r.Written,
		string(sinks),
		status,
		errText,
	)
	if err != nil {
		return fmt.Errorf("catalog: insert run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (c *Catalog) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT job, started_at, duration_ms, sources, points_read, points_written, sinks, status, COALESCE(error, '')
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r          Run
			started    string
			durationMS int64
			sinksJSON  string
			status     string
			errText    string
		)
		if err := rows.Scan(&r.Job, &started, &durationMS, &r.Sources, &r.Read, &r.Written, &sinksJSON, &status, &errText); err != nil {
			return nil, fmt.Errorf("catalog: scan run: %w", err)
		}
		r.Started, _ = time.Parse(time.RFC3339, started)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal([]byte(sinksJSON), &r.Sinks); err != nil {
			return nil, fmt.Errorf("catalog: decode sinks: %w", err)
		}
		if status == "failure" {
			r.Err = fmt.Errorf("%s", errText)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (c *Catalog) Close() error { return c.db.Close() }
