// Package build runs a resolved dependency graph with a bounded pool of
// workers. A single coordinator owns dispatch; workers only execute and
// report back over a channel.
package build

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/afterpkg/internal/exec"
	"github.com/felixgeelhaar/afterpkg/internal/graph"
	"github.com/felixgeelhaar/afterpkg/internal/log"
	"github.com/felixgeelhaar/afterpkg/internal/scripts"
)

// ReasonAborted is recorded on nodes left unbuilt by an aborted run.
const ReasonAborted = "run aborted"

// ErrInvalidConcurrency is returned for a worker count below one.
var ErrInvalidConcurrency = errors.New("concurrency must be at least 1")

// Composer produces the script a node is built with.
type Composer interface {
	Compose(g *graph.Graph, id graph.ID) (string, error)
}

// Scheduler drives executors over a graph.
type Scheduler struct {
	Composer  Composer
	Observers []Observer
	Logger    *log.Logger
}

// NewScheduler creates a scheduler composing scripts with c.
func NewScheduler(c Composer, logger *log.Logger, observers ...Observer) *Scheduler {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &Scheduler{Composer: c, Observers: observers, Logger: logger}
}

type completion struct {
	id     graph.ID
	slot   int
	digest string
	result exec.Result
	err    error
}

// Run executes every Real node of g once its dependencies are satisfied,
// with at most concurrency jobs in flight. The first failure stops further
// dispatch; jobs already running finish and are recorded. Cancelling ctx
// has the same effect as a failure, and is also passed to the executor.
func (s *Scheduler) Run(ctx context.Context, g *graph.Graph, concurrency int, executor exec.Executor) (*RunResult, error) {
	if concurrency < 1 {
		return nil, ErrInvalidConcurrency
	}

	run := newRunResult(g)
	logger := s.Logger.With("run_id", run.ID.String())
	logger.Info("run started", "nodes", g.Len(), "jobs", concurrency)

	var aborted atomic.Bool
	done := make(chan completion, concurrency)
	eg := new(errgroup.Group)
	eg.SetLimit(concurrency)

	free := make([]int, 0, concurrency)
	for slot := concurrency; slot >= 1; slot-- {
		free = append(free, slot)
	}
	running := 0

	dispatch := func(id graph.ID, slot int) {
		n := g.Node(id)
		script, err := s.Composer.Compose(g, id)
		if err != nil {
			done <- completion{id: id, slot: slot, err: fmt.Errorf("compose script: %w", err), result: exec.Result{ExitCode: -1}}
			return
		}
		s.emit(Event{Kind: EventStarted, Node: n, Slot: slot})
		eg.Go(func() error {
			res, err := executor.Execute(ctx, exec.Job{Node: n, Slot: slot, Script: script})
			done <- completion{id: id, slot: slot, digest: scripts.Digest(script), result: res, err: err}
			return nil
		})
	}

	for {
		if ctx.Err() != nil && !aborted.Swap(true) {
			logger.Warn("run cancelled, waiting for running jobs", "running", running)
		}
		if !aborted.Load() {
			for _, id := range g.ReadySet() {
				if len(free) == 0 {
					break
				}
				if err := g.MarkRunning(id); err != nil {
					return nil, err
				}
				slot := free[len(free)-1]
				free = free[:len(free)-1]
				running++
				dispatch(id, slot)
			}
		}
		if running == 0 {
			break
		}

		c := <-done
		running--
		free = append(free, c.slot)
		s.complete(g, run, logger, c, &aborted)
	}
	_ = eg.Wait()

	if aborted.Load() {
		for _, id := range g.SkipRemaining(ReasonAborted) {
			s.emit(Event{Kind: EventSkipped, Node: g.Node(id), Reason: ReasonAborted})
		}
	} else if !g.Settled() {
		return nil, fmt.Errorf("scheduler stalled with unsettled nodes")
	}

	run.finish(g, aborted.Load())
	logger.Info("run finished", "status", run.Status,
		"completed", len(run.Completed), "failed", len(run.Failed), "skipped", len(run.Skipped),
		"duration", run.Finished.Sub(run.Started).Round(time.Millisecond))
	return run, nil
}

func (s *Scheduler) complete(g *graph.Graph, run *RunResult, logger *log.Logger, c completion, aborted *atomic.Bool) {
	n := g.Node(c.id)
	run.record(c)

	if c.err == nil && c.result.OK() {
		if err := g.MarkDone(c.id); err != nil {
			logger.Error("state transition", "package", n.Name(), "error", err.Error())
		}
		s.emit(Event{Kind: EventDone, Node: n, Slot: c.slot, Result: c.result})
		return
	}

	if errors.Is(c.err, exec.ErrUnavailable) {
		logger.WithError(c.err).Error("executor unavailable", "package", n.Name())
	} else {
		logger.Error("build failed", "package", n.Name(), "exit_code", c.result.ExitCode, "step", string(c.result.Step))
	}
	aborted.Store(true)

	skipped, err := g.MarkFailed(c.id)
	if err != nil {
		logger.Error("state transition", "package", n.Name(), "error", err.Error())
	}
	s.emit(Event{Kind: EventFailed, Node: n, Slot: c.slot, Result: c.result, Err: c.err})
	for _, id := range skipped {
		s.emit(Event{Kind: EventSkipped, Node: g.Node(id), Reason: g.Reason(id)})
	}
}

func (s *Scheduler) emit(e Event) {
	for _, o := range s.Observers {
		o(e)
	}
}

// newRunID is swapped in tests.
var newRunID = uuid.New
