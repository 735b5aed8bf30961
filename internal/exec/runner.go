package exec

import (
	"context"
	"errors"
	"fmt"
	"io"
	osexec "os/exec"
)

// Command is a shell command line run in Dir.
type Command struct {
	Line   string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// Runner executes shell command lines and reports their exit code. An
// error means the command could not be run at all.
type Runner interface {
	Run(ctx context.Context, cmd Command) (exitCode int, err error)
}

// LocalRunner runs commands with /bin/sh on this host.
type LocalRunner struct {
	Shell string
}

// Run implements Runner.
func (r LocalRunner) Run(ctx context.Context, cmd Command) (int, error) {
	shell := r.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	c := osexec.CommandContext(ctx, shell, "-c", cmd.Line)
	c.Dir = cmd.Dir
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr

	err := c.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *osexec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
		// killed by a signal
		return -1, nil
	}
	return -1, fmt.Errorf("start %s: %w: %w", shell, ErrUnavailable, err)
}
