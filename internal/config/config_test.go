package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 1, cfg.Build.Jobs)
	assert.True(t, cfg.Virtual.Enabled)
	assert.False(t, cfg.Virtual.RootsEligible)
	assert.True(t, cfg.Virtual.SkipInstalled)
	assert.True(t, cfg.SkipInstalled())
	assert.True(t, cfg.Scripts.Before && cfg.Scripts.After && cfg.Scripts.Requires)
	require.Len(t, cfg.Virtual.Indices, 2)
	assert.Equal(t, "py2", cfg.Virtual.Indices[0].Name)
	assert.Equal(t, []string{"python3-"}, cfg.Virtual.Indices[1].Prefixes)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
paths:
  slackbuilds: /srv/sbo
build:
  jobs: 4
  parallel_downloads: true
virtual:
  enabled: true
  roots_eligible: true
  indices:
    - name: py3
      pip: pip3
      prefixes: [python3-]
      enabled: true
remote:
  host: builder
  user: root
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/sbo", cfg.Paths.SlackBuilds)
	assert.Equal(t, 4, cfg.Build.Jobs)
	assert.True(t, cfg.Build.ParallelDownloads)
	assert.True(t, cfg.Virtual.RootsEligible)
	require.Len(t, cfg.Virtual.Indices, 1)
	assert.Equal(t, "builder:22", cfg.Remote.Address())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/tmp", cfg.Build.OutputDir, "unset fields keep defaults")
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "build: [unterminated"},
		{"zero jobs", "build:\n  jobs: 0\n"},
		{"index without pip", "virtual:\n  indices:\n    - name: py3\n"},
		{"remote without user", "remote:\n  host: builder\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Default()
	cfg.Build.Jobs = 0
	cfg.Virtual.Indices = append(cfg.Virtual.Indices, IndexConfig{Name: "py2", Pip: "pip"})

	err := cfg.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 2)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Build.Jobs = 3

	require.NoError(t, Save(cfg, path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Build.Jobs)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "no flags leaves config alone",
			args: nil,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, Default(), cfg)
			},
		},
		{
			name: "jobs and downloads",
			args: []string{"-j", "8", "--parallel-downloads"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8, cfg.Build.Jobs)
				assert.True(t, cfg.Build.ParallelDownloads)
			},
		},
		{
			name: "novirtual disables indices and installed matching",
			args: []string{"--novirtual"},
			check: func(t *testing.T, cfg *Config) {
				assert.Empty(t, cfg.EnabledIndices())
				assert.True(t, cfg.Virtual.SkipInstalled)
				assert.False(t, cfg.SkipInstalled())
			},
		},
		{
			name: "nopy2 keeps py3",
			args: []string{"--nopy2"},
			check: func(t *testing.T, cfg *Config) {
				enabled := cfg.EnabledIndices()
				require.Len(t, enabled, 1)
				assert.Equal(t, "py3", enabled[0].Name)
			},
		},
		{
			name: "script toggles",
			args: []string{"--nobefore", "--norequires"},
			check: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Scripts.Before)
				assert.True(t, cfg.Scripts.After)
				assert.False(t, cfg.Scripts.Requires)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			RegisterFlags(fs)
			require.NoError(t, fs.Parse(tt.args))

			cfg := Default()
			require.NoError(t, cfg.ApplyFlags(fs))
			tt.check(t, cfg)
		})
	}
}

func TestApplyFlagsRejectsZeroJobs(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--jobs", "0"}))

	assert.Error(t, Default().ApplyFlags(fs))
}
