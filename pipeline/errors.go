// Package pipeline implements the generic dataflow engine: bounded queues,
// worker-pool nodes, and the composite that strings them into a chain.
package pipeline

import (
	"errors"
	"fmt"
)

// ErrEmptyTopology is returned by Node.Start when a node declared with
// output enabled has zero downstream nodes, or a node declared no-input
// has at least one upstream node.
var ErrEmptyTopology = errors.New("pipeline: invalid node topology")

// ErrQueueStopped reports that a queue has stopped accepting payloads.
// Queue does not count the stop sentinels it has received, and Queue.Put
// does not return this error.
var ErrQueueStopped = errors.New("pipeline: queue stopped")

// ErrNotRunning reports that a node or pipeline is not running. Node.Put
// and Sequential.Put do not check whether the node is running and do not
// return this error.
var ErrNotRunning = errors.New("pipeline: not running")

// ProcessingError is the typed error value a Node produces when its
// processing function exhausts its retry budget. It is forwarded
// downstream unchanged by nodes configured with SkipErrors, so that a
// later stage can observe and react to the failure instead of the
// pipeline crashing.
type ProcessingError struct {
	// Input is the value that was being processed when the error occurred.
	Input any
	// Node is the name of the node that produced the error.
	Node string
	// Cause is the underlying error returned by the processing function.
	Cause error
	// Stack is a snapshot of the stack trace captured at the final
	// failing attempt.
	Stack string
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("pipeline: node %q failed processing input %v: %v", e.Node, e.Input, e.Cause)
}

func (e *ProcessingError) Unwrap() error { return e.Cause }

// IsProcessingError reports whether err is (or wraps) a *ProcessingError.
func IsProcessingError(err error) bool {
	var pe *ProcessingError
	return errors.As(err, &pe)
}
