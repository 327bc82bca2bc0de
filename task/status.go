package task

// Status is a task's position in its lifecycle state machine.
type Status string

const (
	StatusPending      Status = "pending"
	StatusPreparing    Status = "preparing"
	StatusSearching    Status = "searching"
	StatusSearchingWeb Status = "searching_web"
	StatusCrawling     Status = "crawling"
	StatusProcessing   Status = "processing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusTimeout      Status = "timeout"
)

// terminal holds the statuses a task never transitions out of once
// reached.
var terminal = map[Status]bool{
	StatusCompleted: true,
	StatusFailed:    true,
	StatusTimeout:   true,
}

// IsTerminal reports whether s is a terminal status.
func (s Status) IsTerminal() bool { return terminal[s] }

// validNext holds the allowed forward transitions. FAILED and TIMEOUT are
// reachable from every non-terminal status (an aborted crawl, a watcher
// deadline, or an unexpected processing error can all strike at any
// point), so they are checked separately in CanTransition rather than
// listed here.
var validNext = map[Status][]Status{
	StatusPending:      {StatusPreparing},
	StatusPreparing:     {StatusSearching, StatusProcessing},
	StatusSearching:    {StatusSearchingWeb},
	StatusSearchingWeb: {StatusCrawling},
	StatusCrawling:     {StatusProcessing},
	StatusProcessing:   {StatusCompleted},
}

// CanTransition reports whether a task may move from 'from' to 'to'.
// Terminal statuses never transition further; FAILED and TIMEOUT are
// reachable from any other non-terminal status.
func CanTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusFailed || to == StatusTimeout {
		return true
	}
	for _, next := range validNext[from] {
		if next == to {
			return true
		}
	}
	return false
}
