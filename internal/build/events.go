package build

import (
	"github.com/felixgeelhaar/afterpkg/internal/exec"
	"github.com/felixgeelhaar/afterpkg/internal/graph"
)

// EventKind is what happened to a node.
type EventKind int

const (
	EventStarted EventKind = iota
	EventDone
	EventFailed
	EventSkipped
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventDone:
		return "done"
	case EventFailed:
		return "failed"
	case EventSkipped:
		return "skipped"
	}
	return "unknown"
}

// Event reports a node state change. Observers are called from the
// coordinator goroutine, one event at a time.
type Event struct {
	Kind   EventKind
	Node   *graph.Node
	Slot   int
	Result exec.Result
	Err    error
	// Reason is set on skip events.
	Reason string
}

// Observer receives scheduler events.
type Observer func(Event)
