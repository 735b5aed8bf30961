package equiv

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/afterpkg/internal/log"
	"github.com/felixgeelhaar/afterpkg/internal/repo"
)

// Reasons recorded on virtual verdicts.
const (
	ReasonInstalled = "installed"
	ReasonPip       = "pip"
)

// Verdict is the outcome of classifying one package.
type Verdict struct {
	Virtual bool
	// Reason is ReasonInstalled or ReasonPip for virtual verdicts.
	Reason string
	// Index names the index that matched, for pip verdicts.
	Index string
	// Equivalent is the matching name in the other ecosystem, or the
	// installed version for ReasonInstalled.
	Equivalent string
}

// String renders the verdict for humans, e.g. "pip:py3 (Django)".
func (v Verdict) String() string {
	switch {
	case !v.Virtual:
		return "real"
	case v.Reason == ReasonPip:
		return fmt.Sprintf("pip:%s (%s)", v.Index, v.Equivalent)
	default:
		return fmt.Sprintf("%s (%s)", v.Reason, v.Equivalent)
	}
}

// InstalledSet reports packages present in the local package database.
type InstalledSet interface {
	Installed(name string) (repo.InstalledPackage, bool)
}

// ProbeObserver is told about every index lookup.
type ProbeObserver func(index string, hit bool)

// Options configures a Resolver.
type Options struct {
	Normalizer Normalizer
	// Indices are probed in order. None means virtual matching is off.
	Indices []Index
	// Installed, when set, turns installed packages virtual.
	Installed InstalledSet
	// RootsEligible lets requested packages be classified virtual.
	RootsEligible bool
	Observer      ProbeObserver
	Logger        *log.Logger
}

// Resolver classifies packages as real (to be built) or virtual.
// It is safe for concurrent use if its indices are.
type Resolver struct {
	opts Options
}

// NewResolver creates a Resolver. A nil Normalizer uses the Python heuristic.
func NewResolver(opts Options) *Resolver {
	if opts.Normalizer == nil {
		opts.Normalizer = NewPythonNormalizer(nil)
	}
	if opts.Logger == nil {
		opts.Logger = log.DefaultLogger()
	}
	return &Resolver{opts: opts}
}

// Classify applies the policy: requested packages stay real unless roots
// are eligible; installed packages are virtual; otherwise the first index
// holding any candidate name wins. Probe errors count as misses.
func (r *Resolver) Classify(ctx context.Context, name string, requested bool) Verdict {
	if requested && !r.opts.RootsEligible {
		return Verdict{}
	}

	if r.opts.Installed != nil {
		if p, ok := r.opts.Installed.Installed(name); ok {
			return Verdict{Virtual: true, Reason: ReasonInstalled, Equivalent: p.Version}
		}
	}

	if len(r.opts.Indices) == 0 {
		return Verdict{}
	}

	candidates := r.opts.Normalizer.Candidates(name)
	for _, idx := range r.opts.Indices {
		if !idx.Applies(name) {
			continue
		}
		for _, c := range candidates {
			hit, err := idx.Has(ctx, c)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					r.opts.Logger.Warn("index probe failed", "index", idx.Name(), "package", name, "error", err.Error())
				}
				break
			}
			if r.opts.Observer != nil {
				r.opts.Observer(idx.Name(), hit)
			}
			if hit {
				return Verdict{Virtual: true, Reason: ReasonPip, Index: idx.Name(), Equivalent: c}
			}
		}
	}
	return Verdict{}
}

// Catalog confirms that a project is published upstream.
type Catalog interface {
	Exists(ctx context.Context, name string) (bool, error)
}

// ErrNoEquivalent is returned when no candidate name is published.
var ErrNoEquivalent = errors.New("no published equivalent")

// PublishedName returns the first candidate for name that cat knows about.
func PublishedName(ctx context.Context, n Normalizer, cat Catalog, name string) (string, error) {
	for _, c := range n.Candidates(name) {
		ok, err := cat.Exists(ctx, c)
		if err != nil {
			return "", fmt.Errorf("checking %s: %w", c, err)
		}
		if ok {
			return c, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, ErrNoEquivalent)
}

// PipFor returns the pip command of the first index that applies to name,
// falling back to "pip".
func PipFor(indices []*PipIndex, name string) string {
	for _, idx := range indices {
		if idx.Applies(name) {
			return idx.pip
		}
	}
	return "pip"
}
