// Package exec runs the per-package work of a build: staging the SBo
// directory, fetching sources, running the composed script and installing
// the result, locally or on a remote host.
package exec

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/afterpkg/internal/graph"
)

// ErrUnavailable marks failures of the execution transport itself, as
// opposed to a script exiting non-zero.
var ErrUnavailable = errors.New("executor unavailable")

// Job is one node handed to an Executor.
type Job struct {
	Node *graph.Node
	// Slot is the worker slot running the job, used for console prefixes.
	Slot   int
	Script string
}

// Step names the phase a Result refers to.
type Step string

const (
	StepStage    Step = "stage"
	StepDownload Step = "download"
	StepBuild    Step = "build"
	StepInstall  Step = "install"
	StepPip      Step = "pip"
)

// Result is the outcome of a job. A zero ExitCode means success.
type Result struct {
	ExitCode int
	// Step is the last step attempted.
	Step     Step
	Duration time.Duration
}

// OK reports whether the job succeeded.
func (r Result) OK() bool { return r.ExitCode == 0 }

// Executor runs one job. A non-nil error means the job could not be
// carried out at all; the scheduler treats it like a non-zero exit.
type Executor interface {
	Execute(ctx context.Context, job Job) (Result, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, job Job) (Result, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, job Job) (Result, error) {
	return f(ctx, job)
}
