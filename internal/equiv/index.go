package equiv

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Index is one secondary-ecosystem package index that can be probed.
type Index interface {
	// Name identifies the index in logs and reports.
	Name() string
	// Applies reports whether packages called name are looked up here.
	Applies(name string) bool
	// Has reports whether candidate is present in the index.
	Has(ctx context.Context, candidate string) (bool, error)
}

// CommandRunner runs a command and returns its standard output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands on the local host.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// PipIndex is the set of projects reported by `<pip> list --format json`.
// The listing is taken on first use and kept, unless the attempt was cut
// short by the caller's context.
type PipIndex struct {
	name     string
	pip      string
	prefixes []string
	run      CommandRunner

	mu     sync.Mutex
	loaded bool
	set    map[string]bool
	err    error
}

// NewPipIndex creates an index over the packages installed for pip. A nil
// runner uses ExecRunner.
func NewPipIndex(name, pip string, prefixes []string, run CommandRunner) *PipIndex {
	if run == nil {
		run = ExecRunner
	}
	return &PipIndex{name: name, pip: pip, prefixes: prefixes, run: run}
}

// Name returns the configured index name.
func (p *PipIndex) Name() string { return p.name }

// Applies matches name against the configured prefixes. No prefixes means
// every package is looked up.
func (p *PipIndex) Applies(name string) bool {
	if len(p.prefixes) == 0 {
		return true
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// Has compares candidate with installed projects after canonicalization.
func (p *PipIndex) Has(ctx context.Context, candidate string) (bool, error) {
	set, err := p.listing(ctx)
	if err != nil {
		return false, err
	}
	return set[Canonical(candidate)], nil
}

func (p *PipIndex) listing(ctx context.Context) (map[string]bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded {
		return p.set, p.err
	}
	set, err := p.load(ctx)
	if err != nil && ctx.Err() != nil {
		return nil, err
	}
	p.set, p.err, p.loaded = set, err, true
	return set, err
}

func (p *PipIndex) load(ctx context.Context) (map[string]bool, error) {
	out, err := p.run(ctx, p.pip, "list", "--format", "json")
	if err != nil {
		return nil, fmt.Errorf("%s list: %w", p.pip, err)
	}

	var entries []struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(out, &entries); err != nil {
		return nil, fmt.Errorf("parsing %s list output: %w", p.pip, err)
	}

	set := make(map[string]bool, len(entries))
	for _, e := range entries {
		// editable installs may be reported with a leading dash
		set[Canonical(strings.TrimPrefix(e.Name, "-"))] = true
	}
	return set, nil
}

// StaticIndex is an in-memory Index, used when the listing comes from
// elsewhere (tests, a remote host).
type StaticIndex struct {
	IndexName string
	Prefixes  []string
	Names     []string
}

func (s *StaticIndex) Name() string { return s.IndexName }

func (s *StaticIndex) Applies(name string) bool {
	if len(s.Prefixes) == 0 {
		return true
	}
	for _, prefix := range s.Prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func (s *StaticIndex) Has(_ context.Context, candidate string) (bool, error) {
	want := Canonical(candidate)
	for _, n := range s.Names {
		if Canonical(n) == want {
			return true, nil
		}
	}
	return false, nil
}
