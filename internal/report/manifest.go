package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/afterpkg/internal/build"
	"github.com/felixgeelhaar/afterpkg/internal/version"
)

// Manifest is the persisted record of a run.
type Manifest struct {
	RunID    string      `json:"run_id" yaml:"run_id"`
	Status   string      `json:"status" yaml:"status"`
	Started  time.Time   `json:"started" yaml:"started"`
	Finished time.Time   `json:"finished" yaml:"finished"`
	Tool     string      `json:"tool" yaml:"tool"`
	Roots    []string    `json:"roots" yaml:"roots"`
	Totals   Totals      `json:"totals" yaml:"totals"`
	Nodes    []NodeEntry `json:"nodes" yaml:"nodes"`
}

// Totals counts nodes per terminal outcome.
type Totals struct {
	Completed int `json:"completed" yaml:"completed"`
	Failed    int `json:"failed" yaml:"failed"`
	Skipped   int `json:"skipped" yaml:"skipped"`
}

// NodeEntry describes one node in build order.
type NodeEntry struct {
	Name     string   `json:"name" yaml:"name"`
	Category string   `json:"category,omitempty" yaml:"category,omitempty"`
	Version  string   `json:"version,omitempty" yaml:"version,omitempty"`
	Kind     string   `json:"kind" yaml:"kind"`
	Reason   string   `json:"reason,omitempty" yaml:"reason,omitempty"`
	PURL     string   `json:"purl" yaml:"purl"`
	Deps     []string `json:"deps,omitempty" yaml:"deps,omitempty"`
	State    string   `json:"state" yaml:"state"`
	ExitCode *int     `json:"exit_code,omitempty" yaml:"exit_code,omitempty"`
	Step     string   `json:"step,omitempty" yaml:"step,omitempty"`
	Duration string   `json:"duration,omitempty" yaml:"duration,omitempty"`
	Digest   string   `json:"script_blake3,omitempty" yaml:"script_blake3,omitempty"`
	Error    string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewManifest captures run.
func NewManifest(run *build.RunResult) *Manifest {
	g := run.Graph()
	m := &Manifest{
		RunID:    run.ID.String(),
		Status:   string(run.Status),
		Started:  run.Started.UTC(),
		Finished: run.Finished.UTC(),
		Tool:     version.GetInfo().UserAgent(),
		Totals: Totals{
			Completed: len(run.Completed),
			Failed:    len(run.Failed),
			Skipped:   len(run.Skipped),
		},
	}
	for _, id := range g.Roots() {
		m.Roots = append(m.Roots, g.Node(id).Name())
	}

	for _, id := range g.TopoOrder() {
		n := g.Node(id)
		entry := NodeEntry{
			Name:     n.Name(),
			Category: n.Category(),
			Version:  n.Version,
			Kind:     n.Kind.String(),
			Reason:   g.Reason(id),
			PURL:     n.PackageURL(),
			State:    g.State(id).String(),
		}
		for _, dep := range n.Deps {
			entry.Deps = append(entry.Deps, g.Node(dep).Name())
		}
		if res, ok := run.Results[id]; ok {
			code := res.ExitCode
			entry.ExitCode = &code
			entry.Step = string(res.Step)
			entry.Duration = res.Duration.Round(time.Millisecond).String()
			entry.Digest = res.Digest
			if res.Err != nil {
				entry.Error = res.Err.Error()
			}
		}
		m.Nodes = append(m.Nodes, entry)
	}
	return m
}

// Node returns the entry for name.
func (m *Manifest) Node(name string) (NodeEntry, bool) {
	for _, n := range m.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return NodeEntry{}, false
}

// Marshal encodes m as YAML for .yaml/.yml paths and JSON otherwise.
func (m *Manifest) Marshal(path string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Marshal(m)
	default:
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
}

// Write saves m to path, creating parent directories.
func (m *Manifest) Write(path string) error {
	data, err := m.Marshal(path)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads a manifest written by Write.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	default:
		err = json.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return &m, nil
}

// RunPath is where a run's manifest is kept under dir.
func RunPath(dir string, run *build.RunResult) string {
	return filepath.Join(dir, run.ID.String()+".json")
}
