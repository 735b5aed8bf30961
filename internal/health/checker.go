// Package health checks that the host is ready to build: the repository is
// readable, working directories are writable, the tools a build shells out
// to exist and optional collaborators (pip, the remote builder) respond.
//
//	manager := health.NewManager(0,
//		&health.RepositoryChecker{Root: cfg.Paths.SlackBuilds},
//		&health.ToolChecker{Tool: "upgradepkg"},
//	)
//	report := manager.Run(ctx)
package health

import (
	"context"
	"time"
)

// Checker verifies one prerequisite.
type Checker interface {
	// Name is lowercase with hyphens, e.g. "slackbuilds-repository".
	Name() string
	// Check should respect the context deadline.
	Check(ctx context.Context) *Result
}

// Status is the outcome of a check.
type Status string

const (
	// StatusHealthy means the prerequisite is fully available.
	StatusHealthy Status = "healthy"
	// StatusDegraded means builds work with reduced functionality,
	// e.g. no pip equivalents or no installs.
	StatusDegraded Status = "degraded"
	// StatusUnhealthy means builds will fail.
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) String() string {
	return string(s)
}

// Result of a single check.
type Result struct {
	Status  Status
	Message string
	Details map[string]any
	Latency time.Duration
}

// NewResult creates a result with an empty detail map.
func NewResult(status Status, message string) *Result {
	return &Result{
		Status:  status,
		Message: message,
		Details: make(map[string]any),
	}
}

// WithDetail adds a detail and returns r for chaining.
func (r *Result) WithDetail(key string, value any) *Result {
	r.Details[key] = value
	return r
}

// Healthy creates a healthy result.
func Healthy(message string) *Result {
	return NewResult(StatusHealthy, message)
}

// Degraded creates a degraded result.
func Degraded(message string) *Result {
	return NewResult(StatusDegraded, message)
}

// Unhealthy creates an unhealthy result.
func Unhealthy(message string) *Result {
	return NewResult(StatusUnhealthy, message)
}
