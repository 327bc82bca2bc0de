package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// SQLRegistry is a Registry backed by database/sql, usable over either
// SQLite (local development, single-writer WAL mode) or MySQL
// (production, connection-pooled). Unlike the Python original's
// with_app_context decorator working around Flask-SQLAlchemy's
// context-bound sessions, *sql.DB is already safe for concurrent use from
// any goroutine, so no equivalent wrapper is needed here.
type SQLRegistry struct {
	db     *sql.DB
	driver string
}

// NewSQLiteRegistry opens (or creates) a SQLite database at path, enables
// WAL mode, and migrates the tasks table.
func NewSQLiteRegistry(path string) (*SQLRegistry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("task: open sqlite: %w", err)
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
			return nil, fmt.Errorf("task: %s: %w", pragma, err)
		}
	}

	r := &SQLRegistry{db: db, driver: "sqlite"}
	if err := r.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// NewMySQLRegistry opens a connection pool against dsn and migrates the
// tasks table.
func NewMySQLRegistry(dsn string) (*SQLRegistry, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("task: open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	r := &SQLRegistry{db: db, driver: "mysql"}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLRegistry) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT NOT NULL PRIMARY KEY,
			status TEXT NOT NULL,
			params TEXT NOT NULL DEFAULT '{}',
			topic TEXT NOT NULL DEFAULT '',
			result_key TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			execution_seconds REAL NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			started_at TIMESTAMP NULL,
			ended_at TIMESTAMP NULL,
			expires_at TIMESTAMP NULL
		)
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("task: migrate tasks table: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)"); err != nil {
		return fmt.Errorf("task: migrate idx_tasks_status: %w", err)
	}
	return nil
}

func (r *SQLRegistry) Create(ctx context.Context, id string, params map[string]any, topic string, ttl time.Duration) (*Record, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("task: marshal params: %w", err)
	}
	now := time.Now().UTC()
	// A zero ttl means the record never expires; a negative ttl stores an
	// expiration that has already passed.
	var expiresAt any
	if ttl != 0 {
		expiresAt = now.Add(ttl)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, status, params, topic, created_at, updated_at, expires_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, string(StatusPending), string(paramsJSON), topic, now, now, expiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrTaskExists
		}
		return nil, fmt.Errorf("task: create %s: %w", id, err)
	}
	return r.Get(ctx, id)
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}

func (r *SQLRegistry) Get(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, status, params, topic, result_key, user_id, error_message, execution_seconds,
		        created_at, updated_at, started_at, ended_at, expires_at
		 FROM tasks WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("task: get %s: %w", id, err)
	}
	return rec, nil
}

func (r *SQLRegistry) UpdateStatus(ctx context.Context, id string, status Status, errMsg string) error {
	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(current.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}
	now := time.Now().UTC()

	set := []string{"status = ?", "updated_at = ?"}
	args := []any{string(status), now}
	if errMsg != "" {
		set = append(set, "error_message = ?")
		args = append(args, errMsg)
	}
	if status == StatusPreparing {
		set = append(set, "started_at = ?")
		args = append(args, now)
	}
	if status.IsTerminal() {
		set = append(set, "ended_at = ?")
		args = append(args, now)
		if !current.StartedAt.IsZero() {
			set = append(set, "execution_seconds = ?")
			args = append(args, now.Sub(current.StartedAt).Seconds())
		}
	}
	args = append(args, id)

	_, err = r.db.ExecContext(ctx, fmt.Sprintf("UPDATE tasks SET %s WHERE id = ?", strings.Join(set, ", ")), args...)
	if err != nil {
		return fmt.Errorf("task: update status %s: %w", id, err)
	}
	return nil
}

func (r *SQLRegistry) UpdateField(ctx context.Context, id string, field string, value any) error {
	allowed := map[string]bool{"result_key": true, "user_id": true, "topic": true}
	if !allowed[field] {
		return fmt.Errorf("task: field %q is not updatable by name", field)
	}
	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE tasks SET %s = ?, updated_at = ? WHERE id = ?", field),
		value, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("task: update field %s.%s: %w", id, field, err)
	}
	return nil
}

func (r *SQLRegistry) List(ctx context.Context, status Status, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, status, params, topic, result_key, user_id, error_message, execution_seconds,
	                  created_at, updated_at, started_at, ended_at, expires_at FROM tasks`
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("task: list: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("task: list scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLRegistry) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("task: delete %s: %w", id, err)
	}
	return nil
}

func (r *SQLRegistry) ActiveCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tasks WHERE status NOT IN (?, ?, ?)",
		string(StatusCompleted), string(StatusFailed), string(StatusTimeout),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("task: active count: %w", err)
	}
	return count, nil
}

func (r *SQLRegistry) CleanupExpired(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM tasks WHERE expires_at IS NOT NULL AND expires_at < ?", time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("task: cleanup expired: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *SQLRegistry) HealthCheck(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var paramsJSON string
	var startedAt, endedAt, expiresAt sql.NullTime

	err := row.Scan(
		&rec.ID, &rec.Status, &paramsJSON, &rec.Topic, &rec.ResultKey, &rec.UserID,
		&rec.ErrorMessage, &rec.ExecutionSeconds,
		&rec.CreatedAt, &rec.UpdatedAt, &startedAt, &endedAt, &expiresAt,
	)
	if err != nil {
		return nil, err
	}
	if paramsJSON != "" {
		_ = json.Unmarshal([]byte(paramsJSON), &rec.Params)
	}
	rec.StartedAt = startedAt.Time
	rec.EndedAt = endedAt.Time
	rec.ExpiresAt = expiresAt.Time
	return &rec, nil
}
