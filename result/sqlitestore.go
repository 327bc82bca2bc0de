package result

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a Store backed by a single SQLite file, the local-dev
// fallback for MongoStore. Every write is an INSERT ... ON CONFLICT DO
// UPDATE that overwrites every column, giving the same whole-record-upsert
// semantics over a single table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at path in WAL
// mode and migrates the results table.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("result: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("result: %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS results (
			task_id         TEXT NOT NULL PRIMARY KEY,
			title           TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL DEFAULT '',
			payload         BLOB,
			created_at      TIMESTAMP NOT NULL,
			reference_count INTEGER NOT NULL DEFAULT 0,
			cite_ratio      REAL NOT NULL DEFAULT 0
		)
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("result: migrate results table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, rec Record) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (task_id, title, status, payload, created_at, reference_count, cite_ratio)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(task_id) DO UPDATE SET
		   title = excluded.title,
		   status = excluded.status,
		   payload = excluded.payload,
		   created_at = excluded.created_at,
		   reference_count = excluded.reference_count,
		   cite_ratio = excluded.cite_ratio`,
		rec.TaskID, rec.Title, rec.Status, rec.Payload, createdAt, rec.ReferenceCount, rec.CiteRatio,
	)
	if err != nil {
		return fmt.Errorf("result: upsert %s: %w", rec.TaskID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, taskID string) (Record, error) {
	var rec Record
	err := s.db.QueryRowContext(ctx,
		`SELECT task_id, title, status, payload, created_at, reference_count, cite_ratio
		 FROM results WHERE task_id = ?`, taskID,
	).Scan(&rec.TaskID, &rec.Title, &rec.Status, &rec.Payload, &rec.CreatedAt, &rec.ReferenceCount, &rec.CiteRatio)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("result: get %s: %w", taskID, err)
	}
	return rec, nil
}

func (s *SQLiteStore) Exists(ctx context.Context, taskID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM results WHERE task_id = ?", taskID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("result: exists %s: %w", taskID, err)
	}
	return true, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, taskID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM results WHERE task_id = ?", taskID)
	if err != nil {
		return fmt.Errorf("result: delete %s: %w", taskID, err)
	}
	return nil
}

// HealthCheck pings the underlying database connection.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("result: health check: %w", err)
	}
	return nil
}
