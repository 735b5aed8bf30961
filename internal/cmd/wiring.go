package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/felixgeelhaar/afterpkg/internal/config"
	"github.com/felixgeelhaar/afterpkg/internal/equiv"
	aerrors "github.com/felixgeelhaar/afterpkg/internal/errors"
	"github.com/felixgeelhaar/afterpkg/internal/fetch"
	"github.com/felixgeelhaar/afterpkg/internal/graph"
	"github.com/felixgeelhaar/afterpkg/internal/log"
	"github.com/felixgeelhaar/afterpkg/internal/metrics"
	"github.com/felixgeelhaar/afterpkg/internal/repo"
	"github.com/felixgeelhaar/afterpkg/internal/scripts"
	"github.com/felixgeelhaar/afterpkg/internal/version"
)

// toolchain holds the collaborators built from one configuration.
type toolchain struct {
	cfg    *config.Config
	logger *log.Logger

	repo       *repo.Repository
	installed  *repo.InstalledDB
	client     *fetch.Client
	pypi       *fetch.PyPIClient
	normalizer equiv.Normalizer
	pipIndices []*equiv.PipIndex
	resolver   *equiv.Resolver

	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// pipRunner runs pip; replaced in tests.
var pipRunner equiv.CommandRunner = equiv.ExecRunner

func newToolchain(cfg *config.Config, logger *log.Logger) (*toolchain, error) {
	r, err := repo.Open(cfg.Paths.SlackBuilds)
	if err != nil {
		return nil, aerrors.Wrap(aerrors.ErrCodeFileNotFound, "cannot open SlackBuilds repository "+cfg.Paths.SlackBuilds, err).
			WithSuggestion("Clone a SlackBuilds.org tree and point paths.slackbuilds at it")
	}

	t := &toolchain{
		cfg:        cfg,
		logger:     logger,
		repo:       r,
		normalizer: equiv.NewPythonNormalizer(nil),
	}
	t.registry, t.metrics = metrics.NewRegistry()

	if cfg.SkipInstalled() {
		db, err := repo.OpenInstalled(cfg.Paths.InstalledDB)
		if err != nil {
			return nil, aerrors.Wrap(aerrors.ErrCodeFileReadFailed, "cannot read installed package database", err)
		}
		t.installed = db
	}

	t.client = fetch.NewClient(
		fetch.WithUserAgent(version.GetInfo().UserAgent()),
		fetch.WithLogger(logger),
	)
	t.pypi = fetch.NewPyPIClient(t.client, cfg.Virtual.PyPIURL)

	var indices []equiv.Index
	for _, ic := range cfg.EnabledIndices() {
		idx := equiv.NewPipIndex(ic.Name, ic.Pip, ic.Prefixes, pipRunner)
		t.pipIndices = append(t.pipIndices, idx)
		indices = append(indices, idx)
	}

	opts := equiv.Options{
		Normalizer:    t.normalizer,
		Indices:       indices,
		RootsEligible: cfg.Virtual.RootsEligible,
		Observer:      t.metrics.ObserveProbe,
		Logger:        logger,
	}
	if t.installed != nil {
		opts.Installed = t.installed
	}
	t.resolver = equiv.NewResolver(opts)

	logger.Debug("repository opened", "root", r.Root(), "packages", r.Len(), "indices", len(indices))
	return t, nil
}

func (t *toolchain) Close() {
	t.client.Close()
}

// resolve builds the graph for roots, translating failures into coded errors.
func (t *toolchain) resolve(ctx context.Context, roots []string) (*graph.Graph, error) {
	if len(roots) == 0 {
		return nil, aerrors.New(aerrors.ErrCodeResolveNoPackage, "no packages requested").
			WithSuggestion("Pass one or more package names, e.g. 'afterpkg build docker'")
	}

	g, err := graph.Resolve(ctx, t.repo, t.resolver, roots)
	if err != nil {
		return nil, resolveError(err)
	}
	t.metrics.RecordGraph(g)
	t.logger.Info("dependencies resolved", "roots", roots, "nodes", g.Len(), "to_build", len(g.BuildOrder()))
	return g, nil
}

func resolveError(err error) error {
	var cycle *graph.CycleError
	if errors.As(err, &cycle) {
		return aerrors.NewCyclicDependencyError(cycle.Members, err)
	}
	var missing *graph.NotFoundError
	if errors.As(err, &missing) {
		return aerrors.NewPackageNotFoundError(missing.Name, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return aerrors.Wrap(aerrors.ErrCodeResolveMetadata, "dependency resolution failed", err)
}

// injector builds the script composer honouring the enabled roles.
func (t *toolchain) injector() (*scripts.Injector, error) {
	src, err := scripts.NewDirSource(t.cfg.Paths.Scripts)
	if err != nil {
		return nil, aerrors.Wrap(aerrors.ErrCodeFileReadFailed, "cannot read script fragments", err)
	}
	inj := scripts.NewInjector(src, scripts.SlackBuildStep(t.cfg.Build.OutputDir, t.cfg.Build.PkgType))
	if !t.cfg.Scripts.Before {
		inj.Disable(scripts.Before)
	}
	if !t.cfg.Scripts.After {
		inj.Disable(scripts.After)
	}
	if !t.cfg.Scripts.Requires {
		inj.Disable(scripts.Requires)
	}
	return inj, nil
}

// writeMetrics exports the registry when a textfile is configured.
func (t *toolchain) writeMetrics() {
	path := t.cfg.Metrics.Textfile
	if path == "" {
		return
	}
	if err := metrics.WriteTextfile(path, t.registry); err != nil {
		t.logger.Warn("failed to write metrics textfile", "path", path, "error", err.Error())
	}
}

// hostArch maps the Go architecture onto Slackware's naming. $ARCH wins,
// as it does for SlackBuilds themselves.
func hostArch() string {
	if arch := os.Getenv("ARCH"); arch != "" {
		return arch
	}
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "386":
		return "i586"
	case "arm64":
		return "aarch64"
	default:
		return runtime.GOARCH
	}
}

func pluralize(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
