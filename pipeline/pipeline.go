package pipeline

import "context"

// Sequential is an ordered list of already-connected nodes with an
// explicit head and tail. It exposes the composite-level lifecycle
// operations a caller needs without reaching into individual nodes:
// Start, End, Put, and iteration for monitoring.
type Sequential struct {
	nodes []*Node
	head  *Node
	tail  *Node
}

// NewSequential builds a composite over nodes, which must already be
// connected head-to-tail via Connect in the given order. It panics if
// nodes is empty.
func NewSequential(nodes ...*Node) *Sequential {
	if len(nodes) == 0 {
		panic("pipeline: NewSequential requires at least one node")
	}
	return &Sequential{
		nodes: nodes,
		head:  nodes[0],
		tail:  nodes[len(nodes)-1],
	}
}

// Start starts every internal node, tail first so that downstream
// consumers are ready before any upstream node can produce into them.
func (s *Sequential) Start(ctx context.Context) error {
	for i := len(s.nodes) - 1; i >= 0; i-- {
		if err := s.nodes[i].Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// End signals end-of-stream by ending the head node; each node in turn
// notifies its downstream once its own workers have exited, so the stop
// propagates node-to-node down the chain.
func (s *Sequential) End(ctx context.Context) error {
	return s.head.End(ctx)
}

// Put delegates to the head node's input queue.
func (s *Sequential) Put(ctx context.Context, value any) error {
	return s.head.Put(ctx, value)
}

// Wait blocks until every internal node has stopped.
func (s *Sequential) Wait() {
	for _, n := range s.nodes {
		n.Wait()
	}
}

// Nodes returns the composite's internal nodes in pipeline order, for
// monitoring (e.g. reporting per-node queue depth).
func (s *Sequential) Nodes() []*Node {
	out := make([]*Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// Head returns the first node in the pipeline.
func (s *Sequential) Head() *Node { return s.head }

// Tail returns the last node in the pipeline.
func (s *Sequential) Tail() *Node { return s.tail }
