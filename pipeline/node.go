package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"reflect"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/surveyforge/surveyforge/pipeline/emit"
	"golang.org/x/xerrors"
)

// ProcFunc is the user-supplied processing function a Node wraps. It
// receives one work unit and returns the value to forward downstream, or
// an error if processing failed. A nil result with a nil error is a valid,
// intentional "produced nothing" outcome (see DiscardNilOutput).
type ProcFunc func(ctx context.Context, in any) (any, error)

// Predicate decides whether a produced value should be routed to a
// particular downstream node. A nil predicate accepts everything.
type Predicate func(out any) bool

// Node is a worker-pool stage in a pipeline. Workers pull from a single
// shared input queue under a get-lock (preserving pop order across the
// pool), run the processing function with retries, and fan the result out
// to every downstream whose predicate accepts it.
type Node struct {
	name     string
	proc     ProcFunc
	workers  int
	input    *Queue[any]
	retry    *RetryPolicy

	noInput         bool
	noOutput        bool
	inputIsIterable bool
	discardNilOut   bool
	skipErrors      bool
	putDeepCopy     bool

	stopped      atomic.Bool
	endOnce      sync.Once
	upstreamDone atomic.Int32

	getLock sync.Mutex

	mu          sync.Mutex
	upstream    map[string]*Node
	downstream  map[string]*Node
	predicates  map[string]Predicate
	running     bool
	runCtx      context.Context
	wg          sync.WaitGroup
	emitter     emit.Emitter
	procChain   procFunc
	deepCopyFn  func(any) any
	executing   atomic.Int32
}

// NodeOption configures a Node at construction time.
type NodeOption func(*Node)

// WithWorkers sets the worker-pool size. Default 1.
func WithWorkers(n int) NodeOption {
	return func(nd *Node) {
		if n > 0 {
			nd.workers = n
		}
	}
}

// WithQueueCapacity sets the input queue's payload capacity. Default 1.
func WithQueueCapacity(n int) NodeOption {
	return func(nd *Node) {
		if n >= 0 {
			nd.input = NewQueue[any](n)
		}
	}
}

// WithNoInput declares a node with zero upstream nodes (a source). Each
// worker invokes the processing function with a nil input over and over
// until the node is stopped externally via End.
func WithNoInput() NodeOption {
	return func(nd *Node) { nd.noInput = true }
}

// WithNoOutput declares a node with zero downstream nodes (a sink).
func WithNoOutput() NodeOption {
	return func(nd *Node) { nd.noOutput = true }
}

// WithInputIsIterable declares that each value pulled from the input queue
// should be unpacked into its elements, each processed as its own work
// unit, rather than processed as a single opaque value.
func WithInputIsIterable() NodeOption {
	return func(nd *Node) { nd.inputIsIterable = true }
}

// WithDiscardNilOutput drops a nil processing result instead of routing it
// downstream.
func WithDiscardNilOutput() NodeOption {
	return func(nd *Node) { nd.discardNilOut = true }
}

// WithSkipErrors wraps the processing function so that a *ProcessingError
// arriving as input is forwarded unchanged instead of being re-processed.
func WithSkipErrors() NodeOption {
	return func(nd *Node) { nd.skipErrors = true }
}

// WithPutDeepCopy has the node deep-copy its result once per downstream
// edge before enqueuing it, using the supplied copy function. Required
// whenever more than one downstream may concurrently mutate what would
// otherwise be a shared value.
func WithPutDeepCopy(copyFn func(any) any) NodeOption {
	return func(nd *Node) {
		nd.putDeepCopy = true
		nd.deepCopyFn = copyFn
	}
}

// WithRetryPolicy overrides the default five-attempt retry policy.
func WithRetryPolicy(p *RetryPolicy) NodeOption {
	return func(nd *Node) { nd.retry = p }
}

// WithEmitter attaches an Emitter that observes this node's lifecycle
// events (start, stop, error, produced). Defaults to a NullEmitter.
func WithEmitter(e emit.Emitter) NodeOption {
	return func(nd *Node) { nd.emitter = e }
}

// NewNode constructs a Node named name around proc. Options configure
// worker count, queue capacity, and the node's flags.
func NewNode(name string, proc ProcFunc, opts ...NodeOption) *Node {
	nd := &Node{
		name:       name,
		proc:       proc,
		workers:    1,
		input:      NewQueue[any](1),
		retry:      DefaultRetryPolicy(),
		upstream:   make(map[string]*Node),
		downstream: make(map[string]*Node),
		predicates: make(map[string]Predicate),
		emitter:    emit.NullEmitter{},
	}
	for _, opt := range opts {
		opt(nd)
	}
	return nd
}

// Name returns the node's identity.
func (n *Node) Name() string { return n.name }

// Connect links src (n) to dst: dst becomes a downstream of n and n becomes
// an upstream of dst. pred may be nil to accept every produced value.
func (n *Node) Connect(dst *Node, pred Predicate) *Node {
	n.mu.Lock()
	n.downstream[dst.name] = dst
	if pred != nil {
		n.predicates[dst.name] = pred
	}
	n.mu.Unlock()

	dst.mu.Lock()
	dst.upstream[n.name] = n
	dst.mu.Unlock()
	return dst
}

// Put enqueues value onto the node's input queue, blocking until there is
// room or ctx is cancelled.
func (n *Node) Put(ctx context.Context, value any) error {
	return n.input.Put(ctx, value)
}

// End stops the node. A no-input (source) node has no input queue a stop
// sentinel could travel through, so End instead flips a stopped flag its
// workers poll directly. Every other node gets one stop sentinel per
// worker enqueued onto its own input queue, signalling each worker to
// exit once it has drained whatever precedes the stops.
//
// End is idempotent: it may be called once by the owner that submits work
// to a source node, and again automatically once every upstream neighbor
// has finished (see notifyUpstreamDone) — only the first call takes
// effect, so a node already mid-shutdown never has stop sentinels pushed
// onto it twice.
func (n *Node) End(ctx context.Context) error {
	var err error
	n.endOnce.Do(func() {
		if n.noInput {
			n.stopped.Store(true)
			return
		}
		for i := 0; i < n.workers; i++ {
			if e := n.input.PutStop(ctx); e != nil {
				err = e
				return
			}
		}
	})
	return err
}

// notifyUpstreamDone is called by an upstream neighbor once every one of
// its own workers has exited. Once every upstream neighbor has reported
// in, nothing can ever Put to this node's queue again, so it is safe to
// End the node right away instead of waiting for some later poll to
// notice. A node with no upstream (fed directly by an external caller, or
// declared no-input) is never ended this way.
func (n *Node) notifyUpstreamDone(ctx context.Context) {
	n.mu.Lock()
	total := len(n.upstream)
	n.mu.Unlock()
	if total == 0 {
		return
	}
	if int(n.upstreamDone.Add(1)) >= total {
		_ = n.End(ctx)
	}
}

// Start validates the node's topology, builds its decorator chain, and
// spawns its worker pool. It returns ErrEmptyTopology if the node's
// no-input/no-output flags are inconsistent with its connected edges.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.noOutput && len(n.downstream) != 0 {
		n.mu.Unlock()
		return fmt.Errorf("%w: node %q declared no-output but has %d downstream", ErrEmptyTopology, n.name, len(n.downstream))
	}
	if !n.noOutput && len(n.downstream) == 0 {
		n.mu.Unlock()
		return fmt.Errorf("%w: node %q has no downstream", ErrEmptyTopology, n.name)
	}
	if n.noInput && len(n.upstream) != 0 {
		n.mu.Unlock()
		return fmt.Errorf("%w: node %q declared no-input but has %d upstream", ErrEmptyTopology, n.name, len(n.upstream))
	}
	n.running = true
	n.runCtx = ctx
	n.mu.Unlock()

	decorators := []procDecorator{labelDecorator(n.name, n.emitter)}
	if n.skipErrors {
		decorators = append(decorators, skipErrorsDecorator())
	}
	n.procChain = buildProcChain(n.wrapProc(), decorators)

	for i := 0; i < n.workers; i++ {
		n.wg.Add(1)
		go n.runWorker(ctx, i)
	}
	go func() {
		n.wg.Wait()
		n.mu.Lock()
		n.running = false
		downstream := make([]*Node, 0, len(n.downstream))
		for _, d := range n.downstream {
			downstream = append(downstream, d)
		}
		n.mu.Unlock()
		// Once every worker of this node has exited, nothing will ever Put
		// to a downstream node's queue again. Tell each downstream now
		// rather than leaving it to poll this node's liveness: a stop
		// sentinel travels over the same channel a blocked Get is waiting
		// on, so it unblocks that worker immediately regardless of what
		// else is contending for the queue's getLock.
		for _, d := range downstream {
			d.notifyUpstreamDone(ctx)
		}
	}()
	return nil
}

// Wait blocks until every worker in the node's pool has exited.
func (n *Node) Wait() { n.wg.Wait() }

// IsRunning reports whether the node currently has live workers.
func (n *Node) IsRunning() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

// Workers returns the node's configured worker-pool size.
func (n *Node) Workers() int { return n.workers }

// QueueSize returns the number of live payloads currently queued at the
// node's input.
func (n *Node) QueueSize() int { return n.input.Size() }

// QueueCapacity returns the node's input queue capacity.
func (n *Node) QueueCapacity() int { return n.input.Capacity() }

// ExecutingCount returns how many workers are mid-call into the
// processing function right now.
func (n *Node) ExecutingCount() int { return int(n.executing.Load()) }

// wrapProc wraps the user's ProcFunc with the bounded-retry error
// handling every node applies, independent of the optional decorator
// stack.
func (n *Node) wrapProc() procFunc {
	return func(in any) (any, error) {
		ctx := n.runCtx
		if ctx == nil {
			ctx = context.Background()
		}
		var lastErr error
		rng := rand.New(rand.NewSource(rand.Int63()))
		for attempt := 0; attempt < n.retry.MaxAttempts; attempt++ {
			out, err := n.proc(ctx, in)
			if err == nil {
				return out, nil
			}
			lastErr = err
			if attempt < n.retry.MaxAttempts-1 {
				delay := computeBackoff(attempt, n.retry.BaseDelay, n.retry.MaxDelay, rng)
				if delay > 0 {
					select {
					case <-ctx.Done():
						return nil, ctx.Err()
					case <-time.After(delay):
					}
				}
			}
		}
		n.emitter.Emit(emit.Event{Type: emit.EventError, Node: n.name, Err: lastErr})
		return &ProcessingError{
			Input: in,
			Node:  n.name,
			Cause: xerrors.Errorf("node %s: %w", n.name, lastErr),
			Stack: string(debug.Stack()),
		}, nil
	}
}

func (n *Node) runWorker(ctx context.Context, workerID int) {
	defer n.wg.Done()
	n.emitter.Emit(emit.Event{Type: emit.EventStart, Node: n.name})
	for {
		if n.noInput {
			if n.stopped.Load() {
				n.emitter.Emit(emit.Event{Type: emit.EventStop, Node: n.name})
				return
			}
			n.processAndPut(ctx, nil)
			continue
		}

		n.getLock.Lock()
		value, stopped, err := n.input.Get(ctx)
		n.getLock.Unlock()
		if err != nil {
			return
		}
		if stopped {
			n.emitter.Emit(emit.Event{Type: emit.EventStop, Node: n.name})
			return
		}

		n.dispatch(ctx, value)
	}
}

// dispatch runs one popped value through the node's processing chain,
// unpacking it first if the node is declared input-is-iterable.
func (n *Node) dispatch(ctx context.Context, value any) {
	if n.inputIsIterable {
		for _, item := range unpackIterable(value) {
			n.processAndPut(ctx, item)
		}
		return
	}
	n.processAndPut(ctx, value)
}

func (n *Node) processAndPut(ctx context.Context, in any) {
	n.executing.Add(1)
	out, _ := n.procChain(in)
	n.executing.Add(-1)
	n.putResult(ctx, out)
}

func (n *Node) putResult(ctx context.Context, out any) {
	if out == nil && n.discardNilOut {
		return
	}
	n.mu.Lock()
	downstream := make([]*Node, 0, len(n.downstream))
	for _, d := range n.downstream {
		downstream = append(downstream, d)
	}
	predicates := n.predicates
	n.mu.Unlock()

	for _, d := range downstream {
		if pred, ok := predicates[d.name]; ok && pred != nil && !pred(out) {
			continue
		}
		value := out
		if n.putDeepCopy && n.deepCopyFn != nil {
			value = n.deepCopyFn(out)
		}
		_ = d.Put(ctx, value)
	}
}

// unpackIterable yields the elements of an iterable value (slice or array)
// as individual work units. A non-iterable value panics, matching the
// processing-function-level assertion the spec requires for misuse of
// input-is-iterable.
func unpackIterable(value any) []any {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out
	default:
		panic(fmt.Sprintf("pipeline: input-is-iterable node received non-iterable value %T", value))
	}
}
