package exec

import (
	"context"
	"strings"
	"time"

	"github.com/felixgeelhaar/afterpkg/internal/fetch"
	"github.com/felixgeelhaar/afterpkg/internal/scripts"
)

// DryRun reports what a Builder would do without touching anything.
type DryRun struct {
	Console   *Console
	OutputDir string
	Arch      string
	Install   bool
}

// Execute implements Executor.
func (d *DryRun) Execute(_ context.Context, job Job) (Result, error) {
	n := job.Node
	if n.Info != nil {
		urls, _ := n.Info.Sources(d.Arch)
		d.Console.Printf(job.Slot, n.Name(), "would stage %s", n.Info.Dir)
		if len(urls) > 0 {
			d.Console.Printf(job.Slot, n.Name(), "would download %s", strings.Join(urls, " "))
		}
	}
	d.Console.Printf(job.Slot, n.Name(), "would run build script (%d lines, blake3 %s)",
		strings.Count(job.Script, "\n"), scripts.Digest(job.Script)[:16])
	if d.Install {
		d.Console.Printf(job.Slot, n.Name(), "would run %s", InstallCommand(d.OutputDir, n))
	}
	return Result{Step: StepBuild}, nil
}

// DownloadOnly fetches sources into the cache and stops there.
type DownloadOnly struct {
	Fetcher Fetcher
	Console *Console
	Arch    string
}

// Execute implements Executor.
func (d *DownloadOnly) Execute(ctx context.Context, job Job) (Result, error) {
	start := time.Now()
	n := job.Node
	res := Result{Step: StepDownload}
	if n.Info == nil {
		return res, nil
	}

	urls, sums := n.Info.Sources(d.Arch)
	if err := d.Fetcher.Fetch(ctx, n.Category(), n.Name(), fetch.Sources(urls, sums), ""); err != nil {
		res.ExitCode = -1
		res.Duration = time.Since(start)
		return res, err
	}
	d.Console.Printf(job.Slot, n.Name(), "%d source(s) cached", len(urls))
	res.Duration = time.Since(start)
	return res, nil
}
