// Package emit provides pluggable observability for pipeline node
// lifecycle events: start, stop, error, and successful production.
package emit

import "context"

// Emitter receives node lifecycle events. Implementations must not block
// the pipeline and must not panic; a slow or failing observability
// backend should never stall processing.
type Emitter interface {
	// Emit records a single event.
	Emit(event Event)

	// EmitBatch records multiple events in one call, in order.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush delivers any buffered events. Safe to call more than once.
	Flush(ctx context.Context) error
}
