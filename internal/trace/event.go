// Package trace records scheduler events as JSON lines, one file per run,
// so a build can be inspected after the terminal output is gone.
package trace

import (
	"time"

	"github.com/felixgeelhaar/afterpkg/internal/build"
)

// Event is one line of a trace file.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Kind      string         `json:"kind"`
	Package   string         `json:"package"`
	Category  string         `json:"category,omitempty"`
	Slot      int            `json:"slot,omitempty"`
	Step      string         `json:"step,omitempty"`
	ExitCode  int            `json:"exit_code,omitempty"`
	Duration  *time.Duration `json:"duration,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Error     string         `json:"error,omitempty"`
	Level     string         `json:"level"`
}

// FromBuild converts a scheduler event.
func FromBuild(e build.Event, at time.Time) *Event {
	ev := &Event{
		Timestamp: at,
		Kind:      e.Kind.String(),
		Package:   e.Node.Name(),
		Category:  e.Node.Category(),
		Slot:      e.Slot,
		Reason:    e.Reason,
		Level:     "info",
	}

	switch e.Kind {
	case build.EventDone:
		d := e.Result.Duration
		ev.Duration = &d
		ev.Step = string(e.Result.Step)
	case build.EventFailed:
		d := e.Result.Duration
		ev.Duration = &d
		ev.Step = string(e.Result.Step)
		ev.ExitCode = e.Result.ExitCode
		ev.Level = "error"
	case build.EventSkipped:
		ev.Level = "warning"
	}
	if e.Err != nil {
		ev.Error = e.Err.Error()
	}
	return ev
}
