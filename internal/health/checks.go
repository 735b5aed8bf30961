package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	osexec "os/exec"

	"github.com/felixgeelhaar/afterpkg/internal/equiv"
	"github.com/felixgeelhaar/afterpkg/internal/exec"
	"github.com/felixgeelhaar/afterpkg/internal/repo"
)

// RepositoryChecker opens the SlackBuilds tree.
type RepositoryChecker struct {
	Root string
}

func (c *RepositoryChecker) Name() string { return "slackbuilds-repository" }

// Check is unhealthy when the tree cannot be read and degraded when it
// holds no packages.
func (c *RepositoryChecker) Check(_ context.Context) *Result {
	r, err := repo.Open(c.Root)
	if err != nil {
		return Unhealthy("repository cannot be read").
			WithDetail("root", c.Root).
			WithDetail("error", err.Error())
	}
	if r.Len() == 0 {
		return Degraded("repository contains no packages").WithDetail("root", c.Root)
	}
	return Healthy(fmt.Sprintf("%d packages", r.Len())).WithDetail("root", c.Root)
}

// DirChecker verifies that a directory exists, or can be created, and
// accepts new files.
type DirChecker struct {
	Label string
	Path  string
}

func (c *DirChecker) Name() string { return c.Label + "-dir" }

func (c *DirChecker) Check(_ context.Context) *Result {
	if err := os.MkdirAll(c.Path, 0o755); err != nil {
		return Unhealthy("directory cannot be created").
			WithDetail("path", c.Path).
			WithDetail("error", err.Error())
	}
	f, err := os.CreateTemp(c.Path, ".afterpkg-doctor-*")
	if err != nil {
		return Unhealthy("directory is not writable").
			WithDetail("path", c.Path).
			WithDetail("error", err.Error())
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return Healthy(c.Path)
}

// ToolChecker looks a command up on PATH. A missing optional tool only
// degrades builds.
type ToolChecker struct {
	Tool       string
	Required   bool
	Suggestion string
}

func (c *ToolChecker) Name() string { return c.Tool + "-binary" }

func (c *ToolChecker) Check(_ context.Context) *Result {
	path, err := osexec.LookPath(c.Tool)
	if err == nil {
		return Healthy(path)
	}
	res := Degraded(c.Tool + " not found in PATH")
	if c.Required {
		res = Unhealthy(c.Tool + " not found in PATH")
	}
	if c.Suggestion != "" {
		res.WithDetail("suggestion", c.Suggestion)
	}
	return res
}

// IndexChecker loads a virtual-package index. Failures degrade: packages
// it would have matched get built instead.
type IndexChecker struct {
	Index equiv.Index
}

func (c *IndexChecker) Name() string { return "index-" + c.Index.Name() }

func (c *IndexChecker) Check(ctx context.Context) *Result {
	if _, err := c.Index.Has(ctx, "pip"); err != nil {
		return Degraded("index unavailable, matching packages will be built").
			WithDetail("error", err.Error())
	}
	return Healthy("index loaded")
}

// RemoteChecker runs a no-op command on the build host.
type RemoteChecker struct {
	Addr   string
	Runner exec.Runner
}

func (c *RemoteChecker) Name() string { return "remote-host" }

func (c *RemoteChecker) Check(ctx context.Context) *Result {
	code, err := c.Runner.Run(ctx, exec.Command{Line: "true", Stdout: io.Discard, Stderr: io.Discard})
	switch {
	case errors.Is(err, exec.ErrUnavailable):
		return Unhealthy("remote host unreachable").
			WithDetail("addr", c.Addr).
			WithDetail("error", err.Error())
	case err != nil:
		return Unhealthy("remote check failed").WithDetail("error", err.Error())
	case code != 0:
		return Degraded(fmt.Sprintf("remote shell exited with %d", code)).WithDetail("addr", c.Addr)
	}
	return Healthy(c.Addr)
}
