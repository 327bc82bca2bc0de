package task

import "time"

// Record is a task's durable state: identity, lifecycle status, the
// submission parameters, and the timestamps/derived metrics a watcher and
// API clients need to report on progress. Updates to individual fields
// are last-writer-wins; the registry enforces at most one concurrent
// writer for the status field via CAS-style compare-and-swap semantics
// (see Registry.UpdateStatus).
type Record struct {
	ID     string
	Status Status

	Params        map[string]any
	Topic         string
	ResultKey     string
	UserID        string

	CreatedAt time.Time
	UpdatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time

	ExecutionSeconds float64
	ErrorMessage     string
	ExpiresAt        time.Time
}

// Expired reports whether the record's expiration instant has passed as
// of now. A zero ExpiresAt means the record never expires.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}
