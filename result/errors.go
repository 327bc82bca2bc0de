package result

import "errors"

// ErrNotFound is returned by Get when no record exists for the given task id.
var ErrNotFound = errors.New("result: record not found")
