package task

import (
	"context"
	"time"
)

// Registry is the durable task-lifecycle store. Two backends satisfy it:
// KVRegistry (Redis, TTL-based expiry) and SQLRegistry (database/sql over
// SQLite or MySQL, sweep-based expiry). Both guarantee single-flight
// create and last-writer-wins field updates.
type Registry interface {
	// Create inserts a new record with StatusPending. It returns
	// ErrTaskExists if id is already registered, atomically: concurrent
	// Create calls for the same id must result in exactly one winner.
	Create(ctx context.Context, id string, params map[string]any, topic string, ttl time.Duration) (*Record, error)

	// Get returns the current record for id.
	Get(ctx context.Context, id string) (*Record, error)

	// UpdateStatus moves id's status forward. It returns
	// ErrInvalidTransition if the move isn't legal from the task's current
	// status (see CanTransition), and never regresses a terminal status.
	UpdateStatus(ctx context.Context, id string, status Status, errMsg string) error

	// UpdateField sets a single field on id's record (last-writer-wins).
	UpdateField(ctx context.Context, id string, field string, value any) error

	// List returns up to limit records, optionally filtered by status.
	List(ctx context.Context, status Status, limit int) ([]*Record, error)

	// Delete removes id's record.
	Delete(ctx context.Context, id string) error

	// ActiveCount returns the number of records not in a terminal status.
	ActiveCount(ctx context.Context) (int, error)

	// CleanupExpired deletes every record whose expiration instant has
	// passed and returns the count removed.
	CleanupExpired(ctx context.Context) (int, error)

	// HealthCheck reports whether the backing store is reachable.
	HealthCheck(ctx context.Context) error
}
