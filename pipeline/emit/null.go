package emit

import "context"

// NullEmitter discards every event. It is the default for a Node that
// isn't configured with an explicit Emitter.
type NullEmitter struct{}

func (NullEmitter) Emit(Event) {}

func (NullEmitter) EmitBatch(context.Context, []Event) error { return nil }

func (NullEmitter) Flush(context.Context) error { return nil }
