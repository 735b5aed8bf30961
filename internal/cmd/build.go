package cmd

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/afterpkg/internal/build"
	"github.com/felixgeelhaar/afterpkg/internal/config"
	"github.com/felixgeelhaar/afterpkg/internal/equiv"
	aerrors "github.com/felixgeelhaar/afterpkg/internal/errors"
	"github.com/felixgeelhaar/afterpkg/internal/exec"
	"github.com/felixgeelhaar/afterpkg/internal/fetch"
	"github.com/felixgeelhaar/afterpkg/internal/progress"
	"github.com/felixgeelhaar/afterpkg/internal/report"
	"github.com/felixgeelhaar/afterpkg/internal/trace"
)

type buildOptions struct {
	dryRun       bool
	downloadOnly bool
	pipInstall   bool
	noInstall    bool
	installMin   bool
	progress     bool
	report       string
	trace        string
	arch         string
}

func newBuildCmd(cc *CommandContext) *cobra.Command {
	opts := &buildOptions{}
	cmd := &cobra.Command{
		Use:   "build <package>...",
		Short: "Build packages and their dependencies",
		Long: `Resolve the requested packages, then stage, download, build and install
every package that is not already provided, dependencies first.

Examples:
  # Build docker and everything it needs, four packages at a time
  afterpkg build -j 4 docker

  # Show what would happen without running anything
  afterpkg build --dry-run python3-django

  # Only fill the source cache
  afterpkg build --download-only ffmpeg

  # Build on a remote host sharing the same paths
  afterpkg build --remote builder.lan docker`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, cc, opts, args)
		},
	}

	f := cmd.Flags()
	config.RegisterFlags(f)
	f.BoolVarP(&opts.dryRun, "dry-run", "n", false, "print what would be done without doing it")
	f.BoolVar(&opts.downloadOnly, "download-only", false, "only download sources into the cache")
	f.BoolVar(&opts.pipInstall, "pipinstall", false, "install python packages with pip instead of building them")
	f.BoolVar(&opts.noInstall, "no-install", false, "build packages without installing them")
	f.BoolVar(&opts.installMin, "install-min", false, "install only packages other packages depend on")
	f.BoolVar(&opts.progress, "progress", false, "print a status line per package event")
	f.StringVar(&opts.report, "report", "", "also write the run manifest to this file (.json, .yaml)")
	f.StringVar(&opts.trace, "trace", "", "append every scheduler event to this JSON lines file")
	f.StringVar(&opts.arch, "arch", "", "architecture used to pick sources (default: host)")
	cmd.MarkFlagsMutuallyExclusive("dry-run", "download-only")
	return cmd
}

func runBuild(cmd *cobra.Command, cc *CommandContext, opts *buildOptions, args []string) error {
	ctx := cmd.Context()
	cfg, err := cc.loadConfig(cmd)
	if err != nil {
		return err
	}

	tc, err := newToolchain(cfg, cc.Logger)
	if err != nil {
		return err
	}
	defer tc.Close()
	defer tc.writeMetrics()

	g, err := tc.resolve(ctx, args)
	if err != nil {
		tc.metrics.RecordError(err, "resolve")
		return err
	}
	inj, err := tc.injector()
	if err != nil {
		return err
	}

	if opts.arch == "" {
		opts.arch = hostArch()
	}
	executor, cleanup, err := newExecutor(tc, cc, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	observers := []build.Observer{tc.metrics.Observe}
	if opts.progress {
		ind := progress.NewIndicator(progress.Config{Writer: cc.Stderr, IsCI: true})
		ind.SetTotal(len(g.BuildOrder()))
		ind.Start()
		defer ind.Stop()
		observers = append(observers, ind.Observe)
	}
	if opts.trace != "" {
		tl, err := trace.Open(opts.trace, cc.Logger)
		if err != nil {
			return aerrors.NewFileWriteError(opts.trace, err)
		}
		defer tl.Close()
		observers = append(observers, tl.Observe)
	}

	scheduler := build.NewScheduler(inj, cc.Logger, observers...)
	run, err := scheduler.Run(ctx, g, cfg.Build.Jobs, executor)
	if err != nil {
		return err
	}
	tc.metrics.RecordRun(run)

	report.PrintSummary(cc.Stdout, run)
	saveManifests(cc, cfg, run, opts.report)

	if run.OK() {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if unavailable := unavailableCause(run); unavailable != nil {
		target := "local shell"
		if cfg.Remote.Enabled() {
			target = cfg.Remote.Address()
		}
		err = aerrors.NewExecutorUnavailableError(target, unavailable)
	} else {
		err = aerrors.NewBuildAbortedError(run.Failed)
	}
	tc.metrics.RecordError(err, "build")
	return err
}

// newExecutor picks the executor for the requested mode.
func newExecutor(tc *toolchain, cc *CommandContext, opts *buildOptions) (exec.Executor, func(), error) {
	cfg := tc.cfg
	console := exec.NewConsole(cc.Stdout, cfg.Build.Jobs, !cc.NoColor)
	downloader := fetch.NewDownloader(tc.client, cfg.Paths.Downloads, !cfg.Build.ParallelDownloads, cc.Logger)
	lock := &exec.InstallLock{}
	cleanup := func() {}

	var executor exec.Executor
	var runner exec.Runner = exec.LocalRunner{}
	switch {
	case opts.dryRun:
		executor = &exec.DryRun{Console: console, OutputDir: cfg.Build.OutputDir, Arch: opts.arch, Install: !opts.noInstall}
	case opts.downloadOnly:
		return &exec.DownloadOnly{Fetcher: downloader, Console: console, Arch: opts.arch}, cleanup, nil
	default:
		if cfg.Remote.Enabled() {
			ssh := exec.NewSSHRunner(exec.SSHConfig{
				Addr:       cfg.Remote.Address(),
				User:       cfg.Remote.User,
				KeyFile:    cfg.Remote.KeyFile,
				KnownHosts: cfg.Remote.KnownHosts,
			})
			runner = ssh
			cleanup = func() { _ = ssh.Close() }
			cc.Logger.Info("building on remote host", "host", cfg.Remote.Address())
		}
		executor = &exec.Builder{
			Runner:         runner,
			Console:        console,
			Fetcher:        downloader,
			WorkRoot:       cfg.Paths.Work,
			OutputDir:      cfg.Build.OutputDir,
			Arch:           opts.arch,
			Install:        !opts.noInstall,
			MinimalInstall: opts.installMin,
			Lock:           lock,
			Logger:         cc.Logger,
		}
	}

	if opts.pipInstall {
		executor = &exec.PipInstall{
			Next:     executor,
			IsPython: tc.repo.IsPython,
			Published: func(ctx context.Context, name string) (string, error) {
				return equiv.PublishedName(ctx, tc.normalizer, tc.pypi, name)
			},
			Pip: func(name string) string {
				return equiv.PipFor(tc.pipIndices, name)
			},
			Runner:  runner,
			Console: console,
			Lock:    lock,
			DryRun:  opts.dryRun,
			Logger:  cc.Logger,
		}
	}
	return executor, cleanup, nil
}

// saveManifests keeps every run under paths.runs and, if asked, at path.
func saveManifests(cc *CommandContext, cfg *config.Config, run *build.RunResult, path string) {
	m := report.NewManifest(run)
	targets := []string{report.RunPath(cfg.Paths.Runs, run)}
	if path != "" {
		targets = append(targets, path)
	}
	for _, target := range targets {
		if err := m.Write(target); err != nil {
			cc.Logger.WithError(aerrors.NewFileWriteError(target, err)).Warn("run manifest not saved")
			continue
		}
		cc.Logger.Debug("run manifest saved", "path", filepath.Clean(target))
	}
}

// unavailableCause returns the transport error behind a failure, if any.
func unavailableCause(run *build.RunResult) error {
	g := run.Graph()
	for _, name := range run.Failed {
		n, ok := g.FindName(name)
		if !ok {
			continue
		}
		if err := run.Results[n.ID].Err; errors.Is(err, exec.ErrUnavailable) {
			return err
		}
	}
	return nil
}
