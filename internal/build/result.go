package build

import (
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/afterpkg/internal/exec"
	"github.com/felixgeelhaar/afterpkg/internal/graph"
)

// Status is the outcome of a run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
)

// NodeResult is what executing one node produced.
type NodeResult struct {
	ExitCode int
	Step     exec.Step
	Duration time.Duration
	// Digest is the blake3 digest of the composed script.
	Digest string
	Err    error
}

// RunResult reports the terminal state of every node of a run.
type RunResult struct {
	ID        uuid.UUID
	Status    Status
	Completed []string
	Failed    []string
	Skipped   []string
	// Results holds an entry per executed node.
	Results  map[graph.ID]NodeResult
	Started  time.Time
	Finished time.Time

	graph *graph.Graph
}

func newRunResult(g *graph.Graph) *RunResult {
	return &RunResult{
		ID:      newRunID(),
		Results: make(map[graph.ID]NodeResult),
		Started: time.Now(),
		graph:   g,
	}
}

func (r *RunResult) record(c completion) {
	r.Results[c.id] = NodeResult{
		ExitCode: c.result.ExitCode,
		Step:     c.result.Step,
		Duration: c.result.Duration,
		Digest:   c.digest,
		Err:      c.err,
	}
}

// finish fills the name lists in topological order. Virtual nodes count
// as completed.
func (r *RunResult) finish(g *graph.Graph, aborted bool) {
	r.Finished = time.Now()
	for _, id := range g.TopoOrder() {
		name := g.Node(id).Name()
		switch g.State(id) {
		case graph.Done:
			r.Completed = append(r.Completed, name)
		case graph.Failed:
			r.Failed = append(r.Failed, name)
		case graph.Skipped:
			r.Skipped = append(r.Skipped, name)
		}
	}
	r.Status = StatusCompleted
	if aborted || len(r.Failed) > 0 {
		r.Status = StatusAborted
	}
}

// Graph is the graph the run executed.
func (r *RunResult) Graph() *graph.Graph { return r.graph }

// OK reports whether the run completed.
func (r *RunResult) OK() bool { return r.Status == StatusCompleted }
