package result

import (
	"context"
	"time"
)

// Record is the durable, upserted outcome of a completed task: the
// serialised survey payload plus enough denormalised metadata for a
// status listing to avoid round-tripping through the task registry.
type Record struct {
	TaskID    string
	Title     string
	Status    string
	Payload   []byte
	CreatedAt time.Time

	ReferenceCount int
	CiteRatio      float64
}

// Store is the result-record document store: Mongo in production,
// SQLite as a local-dev fallback. A record is created at most once per
// task id; every later write is a whole-record upsert.
type Store interface {
	// Upsert replaces whatever record exists for rec.TaskID, or inserts a
	// new one if none does.
	Upsert(ctx context.Context, rec Record) error

	// Get returns the current record for taskID.
	Get(ctx context.Context, taskID string) (Record, error)

	// Exists reports whether a record has been written for taskID, the
	// signal the task watcher polls for completion.
	Exists(ctx context.Context, taskID string) (bool, error)

	// Delete removes the record for taskID.
	Delete(ctx context.Context, taskID string) error

	// HealthCheck reports whether the backing store is reachable.
	HealthCheck(ctx context.Context) error
}
