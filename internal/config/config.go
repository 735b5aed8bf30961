// Package config loads the afterpkg configuration file (~/.afterpkg/config.yaml)
// and overlays command line flags onto it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultDirName is the directory under $HOME holding config and state.
const DefaultDirName = ".afterpkg"

// Config is the complete afterpkg configuration.
type Config struct {
	Paths   PathsConfig   `yaml:"paths"`
	Build   BuildConfig   `yaml:"build"`
	Scripts ScriptsConfig `yaml:"scripts"`
	Virtual VirtualConfig `yaml:"virtual"`
	Remote  RemoteConfig  `yaml:"remote,omitempty"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// PathsConfig locates the repository, fragments and working areas.
type PathsConfig struct {
	Home        string `yaml:"home"`
	SlackBuilds string `yaml:"slackbuilds"`
	Scripts     string `yaml:"scripts"`
	Downloads   string `yaml:"downloads"`
	Work        string `yaml:"work"`
	Runs        string `yaml:"runs"`
	InstalledDB string `yaml:"installed_db"`
}

// BuildConfig controls scheduling and packaging.
type BuildConfig struct {
	Jobs              int    `yaml:"jobs"`
	ParallelDownloads bool   `yaml:"parallel_downloads"`
	OutputDir         string `yaml:"output_dir"`
	PkgType           string `yaml:"pkgtype,omitempty"`
}

// ScriptsConfig toggles each fragment role.
type ScriptsConfig struct {
	Before   bool `yaml:"before"`
	After    bool `yaml:"after"`
	Requires bool `yaml:"requires"`
}

// IndexConfig describes one secondary-ecosystem index.
type IndexConfig struct {
	Name     string   `yaml:"name"`
	Pip      string   `yaml:"pip"`
	Prefixes []string `yaml:"prefixes"`
	Enabled  bool     `yaml:"enabled"`
}

// VirtualConfig drives equivalence classification.
type VirtualConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Indices       []IndexConfig `yaml:"indices"`
	PyPIURL       string        `yaml:"pypi_url"`
	RootsEligible bool          `yaml:"roots_eligible"`
	SkipInstalled bool          `yaml:"skip_installed"`
}

// RemoteConfig selects the SSH executor when Host is set.
type RemoteConfig struct {
	Host       string `yaml:"host,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	User       string `yaml:"user,omitempty"`
	KeyFile    string `yaml:"key_file,omitempty"`
	KnownHosts string `yaml:"known_hosts,omitempty"`
}

// Enabled reports whether builds run on a remote host.
func (r RemoteConfig) Enabled() bool {
	return r.Host != ""
}

// Address returns host:port for dialing.
func (r RemoteConfig) Address() string {
	port := r.Port
	if port == 0 {
		port = 22
	}
	return fmt.Sprintf("%s:%d", r.Host, port)
}

// LoggingConfig mirrors log.Config in textual form.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures the prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	home := defaultHome()
	return &Config{
		Paths: PathsConfig{
			Home:        home,
			SlackBuilds: filepath.Join(home, "slackbuilds"),
			Scripts:     filepath.Join(home, "scripts"),
			Downloads:   filepath.Join(home, "downloads"),
			Work:        filepath.Join(home, "work"),
			Runs:        filepath.Join(home, "runs"),
			InstalledDB: "/var/lib/pkgtools/packages",
		},
		Build: BuildConfig{
			Jobs:      1,
			OutputDir: "/tmp",
		},
		Scripts: ScriptsConfig{
			Before:   true,
			After:    true,
			Requires: true,
		},
		Virtual: VirtualConfig{
			Enabled: true,
			Indices: []IndexConfig{
				{Name: "py2", Pip: "pip", Prefixes: []string{"python-"}, Enabled: true},
				{Name: "py3", Pip: "pip3", Prefixes: []string{"python3-"}, Enabled: true},
			},
			PyPIURL:       "https://pypi.org",
			SkipInstalled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDirName
	}
	return filepath.Join(home, DefaultDirName)
}

// DefaultPath returns ~/.afterpkg/config.yaml.
func DefaultPath() string {
	return filepath.Join(defaultHome(), "config.yaml")
}

// Load reads path on top of Default. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating the parent directory.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPaths resolves a leading ~ in every path field.
func (c *Config) expandPaths() {
	for _, p := range []*string{
		&c.Paths.Home, &c.Paths.SlackBuilds, &c.Paths.Scripts, &c.Paths.Downloads,
		&c.Paths.Work, &c.Paths.Runs, &c.Paths.InstalledDB, &c.Build.OutputDir,
		&c.Remote.KeyFile, &c.Remote.KnownHosts, &c.Metrics.Textfile,
	} {
		*p = expandHome(*p)
	}
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// Validate checks the fields the scheduler and resolver depend on.
func (c *Config) Validate() error {
	var problems []string

	if c.Build.Jobs < 1 {
		problems = append(problems, fmt.Sprintf("build.jobs must be at least 1 (got %d)", c.Build.Jobs))
	}
	if c.Paths.SlackBuilds == "" {
		problems = append(problems, "paths.slackbuilds is required")
	}

	seen := make(map[string]bool)
	for i, idx := range c.Virtual.Indices {
		if idx.Name == "" {
			problems = append(problems, fmt.Sprintf("virtual.indices[%d].name is required", i))
			continue
		}
		if seen[idx.Name] {
			problems = append(problems, fmt.Sprintf("virtual.indices[%d]: duplicate name %q", i, idx.Name))
		}
		seen[idx.Name] = true
		if idx.Pip == "" {
			problems = append(problems, fmt.Sprintf("virtual.indices[%d] (%s): pip command is required", i, idx.Name))
		}
	}

	if c.Remote.Enabled() && c.Remote.User == "" {
		problems = append(problems, "remote.user is required when remote.host is set")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ValidationError lists every problem found by Validate.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Index returns the named index configuration.
func (c *Config) Index(name string) (IndexConfig, bool) {
	for _, idx := range c.Virtual.Indices {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexConfig{}, false
}
