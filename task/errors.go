package task

import "errors"

// ErrTaskExists is returned by Registry.Create when a task with the given
// id is already present (single-flight create).
var ErrTaskExists = errors.New("task: task already exists")

// ErrTaskNotFound is returned when a lookup or update addresses an id the
// registry has no record for.
var ErrTaskNotFound = errors.New("task: task not found")

// ErrInvalidTransition is returned by UpdateStatus when the requested
// status change is not a legal transition from the task's current status.
var ErrInvalidTransition = errors.New("task: invalid status transition")
