// Package search defines the contract the task manager calls to turn a
// submitted topic into pipeline input. No crawler is implemented here:
// the query-generation, web-search, and crawl steps behind a real
// Processor are an external collaborator's concern.
package search

import "context"

// Processor turns a topic into a payload ready for the pipeline head.
// A real implementation drives the SEARCHING -> SEARCHING_WEB -> CRAWLING
// sequence internally; from the task manager's point of view it is a
// single blocking call.
type Processor interface {
	Process(ctx context.Context, topic string) (payload []byte, err error)
}

// NullProcessor always fails. It exists so tests can construct a
// task.Manager without a real crawler wired in.
type NullProcessor struct{}

func (NullProcessor) Process(ctx context.Context, topic string) ([]byte, error) {
	return nil, errNoProcessor
}
