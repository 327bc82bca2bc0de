// Package decode implements the final streaming sub-pipeline: a
// sub-iterator that harvests qualified leaf blocks out of in-flight
// surveys and feeds them to a downstream queue as they become ready, plus
// the citation-rewriting pass that runs at the tail.
package decode

import (
	"context"
	"sync"
	"time"

	"github.com/surveyforge/surveyforge/survey"
)

// Downstream is whatever accepts harvested blocks next in the pipeline.
// *pipeline.Node and *pipeline.Sequential both satisfy this.
type Downstream interface {
	Put(ctx context.Context, value any) error
}

// SubIterator holds a coarse lock over its registry of in-flight surveys
// while scanning: simple, and correct as long as a scan pass stays cheap
// relative to the poll interval.
type SubIterator struct {
	mu         sync.Mutex
	inFlight   map[string]*entry
	downstream Downstream
}

type entry struct {
	survey  *survey.Survey
	emitted map[int]bool
}

// NewSubIterator returns a SubIterator pushing harvested blocks to
// downstream.
func NewSubIterator(downstream Downstream) *SubIterator {
	return &SubIterator{
		inFlight:   make(map[string]*entry),
		downstream: downstream,
	}
}

// Register adds s to the registry of in-flight surveys. Registering the
// same task id twice replaces the previous entry.
func (si *SubIterator) Register(s *survey.Survey) {
	si.mu.Lock()
	defer si.mu.Unlock()
	si.inFlight[s.TaskID] = &entry{survey: s, emitted: make(map[int]bool)}
}

// InFlightCount reports how many surveys are currently registered.
func (si *SubIterator) InFlightCount() int {
	si.mu.Lock()
	defer si.mu.Unlock()
	return len(si.inFlight)
}

// Run scans the registry every interval until ctx is cancelled.
func (si *SubIterator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			si.scanOnce(ctx)
		}
	}
}

// scanOnce harvests every newly-qualified leaf from every in-flight survey
// and pushes it downstream, then drops any survey whose top-level children
// are all qualified.
func (si *SubIterator) scanOnce(ctx context.Context) {
	si.mu.Lock()
	defer si.mu.Unlock()

	for taskID, e := range si.inFlight {
		s := e.survey
		for _, idx := range s.Leaves() {
			b := &s.Blocks[idx]
			if !b.Qualified || e.emitted[idx] {
				continue
			}
			e.emitted[idx] = true
			_ = si.downstream.Put(ctx, b)
		}
		if finished(s) {
			delete(si.inFlight, taskID)
		}
	}
}

// finished reports whether every top-level child of the root is qualified.
// A survey with no children yet is never finished.
func finished(s *survey.Survey) bool {
	root := s.Root()
	if len(root.Children) == 0 {
		return false
	}
	for _, idx := range root.Children {
		if !s.Blocks[idx].Qualified {
			return false
		}
	}
	return true
}
