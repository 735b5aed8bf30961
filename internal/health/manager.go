package health

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds a single check when the manager is given none.
const DefaultTimeout = 5 * time.Second

// Manager runs a fixed set of checks concurrently.
type Manager struct {
	checkers []Checker
	timeout  time.Duration
}

// NewManager returns a manager that gives each check at most timeout.
// A non-positive timeout means DefaultTimeout.
func NewManager(timeout time.Duration, checkers ...Checker) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{checkers: checkers, timeout: timeout}
}

// Add appends a checker; reports list checks in the order they were added.
func (m *Manager) Add(c Checker) {
	m.checkers = append(m.checkers, c)
}

// Entry is one named check outcome.
type Entry struct {
	Name string
	*Result
}

// Report holds outcomes in registration order.
type Report struct {
	Entries []Entry
}

// Run executes every check and waits for all of them.
func (m *Manager) Run(ctx context.Context) *Report {
	entries := make([]Entry, len(m.checkers))

	var g errgroup.Group
	for i, c := range m.checkers {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()

			start := time.Now()
			res := c.Check(checkCtx)
			if res == nil {
				res = Unhealthy("check returned no result")
			}
			if res.Latency == 0 {
				res.Latency = time.Since(start)
			}
			entries[i] = Entry{Name: c.Name(), Result: res}
			return nil
		})
	}
	_ = g.Wait()

	return &Report{Entries: entries}
}

// Get returns the outcome of the named check, or nil.
func (r *Report) Get(name string) *Result {
	for _, e := range r.Entries {
		if e.Name == name {
			return e.Result
		}
	}
	return nil
}

// Overall is the worst status in the report. An empty report is healthy.
func (r *Report) Overall() Status {
	overall := StatusHealthy
	for _, e := range r.Entries {
		switch e.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}
