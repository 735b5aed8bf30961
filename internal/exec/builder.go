package exec

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/felixgeelhaar/afterpkg/internal/fetch"
	"github.com/felixgeelhaar/afterpkg/internal/graph"
	"github.com/felixgeelhaar/afterpkg/internal/log"
	"github.com/felixgeelhaar/afterpkg/internal/scripts"
)

// Fetcher makes a package's sources available in a work directory.
type Fetcher interface {
	Fetch(ctx context.Context, category, name string, sources []fetch.Source, workDir string) error
}

// InstallLock serializes package installs across workers; the package
// database does not tolerate concurrent writers.
type InstallLock struct {
	sync.Mutex
}

// Builder is the real executor: it stages the SBo directory into
// <WorkRoot>/<name>, fetches sources, runs the composed script and, when
// Install is set, installs the resulting package.
type Builder struct {
	Runner    Runner
	Console   *Console
	Fetcher   Fetcher
	WorkRoot  string
	OutputDir string
	Arch      string
	Install   bool
	// MinimalInstall installs only packages other packages depend on.
	MinimalInstall bool
	Lock           *InstallLock
	Logger         *log.Logger
}

// WorkDir is where node is staged.
func (b *Builder) WorkDir(n *graph.Node) string {
	return filepath.Join(b.WorkRoot, n.Name())
}

// Execute implements Executor.
func (b *Builder) Execute(ctx context.Context, job Job) (Result, error) {
	start := time.Now()
	n := job.Node
	res := Result{Step: StepStage}
	finish := func(err error) (Result, error) {
		res.Duration = time.Since(start)
		if err != nil && res.ExitCode == 0 {
			res.ExitCode = -1
		}
		return res, err
	}

	if n.Info == nil {
		return finish(fmt.Errorf("%s: no repository metadata to build from", n.Name()))
	}

	workDir := b.WorkDir(n)
	if err := stage(n.Info.Dir, workDir); err != nil {
		return finish(fmt.Errorf("stage %s: %w", n.Name(), err))
	}

	res.Step = StepDownload
	if b.Fetcher != nil {
		urls, sums := n.Info.Sources(b.Arch)
		if err := b.Fetcher.Fetch(ctx, n.Category(), n.Name(), fetch.Sources(urls, sums), workDir); err != nil {
			return finish(fmt.Errorf("fetch sources for %s: %w", n.Name(), err))
		}
	}

	res.Step = StepBuild
	if _, err := scripts.Write(workDir, job.Script); err != nil {
		return finish(err)
	}
	code, err := b.run(ctx, job, workDir, "sh ./"+scripts.ScriptName)
	res.ExitCode = code
	if err != nil || code != 0 {
		return finish(err)
	}

	if !b.Install || (b.MinimalInstall && len(n.Dependents) == 0) {
		return finish(nil)
	}

	res.Step = StepInstall
	b.Lock.Lock()
	defer b.Lock.Unlock()
	code, err = b.run(ctx, job, workDir, InstallCommand(b.OutputDir, n))
	res.ExitCode = code
	return finish(err)
}

func (b *Builder) run(ctx context.Context, job Job, dir, line string) (int, error) {
	out := b.Console.Writer(job.Slot, job.Node.Name())
	defer out.Close()
	b.Logger.Debug("running", "package", job.Node.Name(), "dir", dir, "command", line)
	return b.Runner.Run(ctx, Command{Line: line, Dir: dir, Stdout: out, Stderr: out})
}

// InstallCommand installs (or upgrades to) the package a SlackBuild left
// in outputDir. Only the directory is quoted; the glob must still expand.
func InstallCommand(outputDir string, n *graph.Node) string {
	dir := scripts.ShellQuote(filepath.Clean(outputDir))
	return fmt.Sprintf("upgradepkg --install-new %s/%s-%s-*.t?z", dir, n.Name(), n.Version)
}

// stage replaces dst with a copy of src.
func stage(src, dst string) error {
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return copyRegular(path, target, info.Mode().Perm())
	})
}

func copyRegular(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
