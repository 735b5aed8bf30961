package exec

import (
	"context"
	"time"

	"github.com/felixgeelhaar/afterpkg/internal/log"
	"github.com/felixgeelhaar/afterpkg/internal/scripts"
)

// PipInstall installs python packages with pip instead of building them,
// delegating everything else to Next.
type PipInstall struct {
	Next Executor
	// IsPython selects the packages handled here.
	IsPython func(name string) bool
	// Published maps an SBo name to its PyPI project name.
	Published func(ctx context.Context, name string) (string, error)
	// Pip returns the pip command for name.
	Pip     func(name string) string
	Runner  Runner
	Console *Console
	Lock    *InstallLock
	DryRun  bool
	Logger  *log.Logger
}

// Execute implements Executor.
func (p *PipInstall) Execute(ctx context.Context, job Job) (Result, error) {
	name := job.Node.Name()
	if !p.IsPython(name) {
		return p.Next.Execute(ctx, job)
	}

	project, err := p.Published(ctx, name)
	if err != nil {
		p.Logger.Info("no pip equivalent, building from SlackBuild", "package", name, "error", err.Error())
		return p.Next.Execute(ctx, job)
	}

	start := time.Now()
	line := p.Pip(name) + " install " + scripts.ShellQuote(project)
	if p.DryRun {
		p.Console.Printf(job.Slot, name, "would run %s", line)
		return Result{Step: StepPip}, nil
	}

	p.Lock.Lock()
	defer p.Lock.Unlock()

	out := p.Console.Writer(job.Slot, name)
	defer out.Close()
	code, err := p.Runner.Run(ctx, Command{Line: line, Stdout: out, Stderr: out})
	return Result{ExitCode: code, Step: StepPip, Duration: time.Since(start)}, err
}
