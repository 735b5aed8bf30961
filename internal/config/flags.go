package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Flag names shared between the CLI and ApplyFlags.
const (
	FlagJobs              = "jobs"
	FlagParallelDownloads = "parallel-downloads"
	FlagOutputDir         = "output-dir"
	FlagNoVirtual         = "novirtual"
	FlagNoPy2             = "nopy2"
	FlagNoPy3             = "nopy3"
	FlagRootsEligible     = "roots-virtual"
	FlagNoBefore          = "nobefore"
	FlagNoAfter           = "noafter"
	FlagNoRequires        = "norequires"
	FlagRemoteHost        = "remote"
	FlagLogLevel          = "log-level"
	FlagLogFormat         = "log-format"
	FlagMetricsTextfile   = "metrics-textfile"
)

// RegisterFlags adds the overlay flags to fs. Defaults are zero values;
// only flags the user actually set are applied.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.IntP(FlagJobs, "j", 0, "number of packages built in parallel")
	fs.Bool(FlagParallelDownloads, false, "download sources in parallel")
	fs.String(FlagOutputDir, "", "directory receiving built packages")
	fs.Bool(FlagNoVirtual, false, "treat every package as real: no pip indices, no installed-package matching")
	fs.Bool(FlagNoPy2, false, "disable the py2 virtual index")
	fs.Bool(FlagNoPy3, false, "disable the py3 virtual index")
	fs.Bool(FlagRootsEligible, false, "allow requested packages to be satisfied virtually")
	fs.Bool(FlagNoBefore, false, "do not inject before scripts")
	fs.Bool(FlagNoAfter, false, "do not inject after scripts")
	fs.Bool(FlagNoRequires, false, "do not inject requires scripts")
	fs.String(FlagRemoteHost, "", "build on this host over SSH")
	fs.String(FlagMetricsTextfile, "", "write prometheus metrics to this textfile")
}

// ApplyFlags overlays flags changed on the command line onto c and validates the result.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	var err error
	changed := func(name string) bool {
		f := fs.Lookup(name)
		return err == nil && f != nil && f.Changed
	}
	boolFlag := func(name string) bool {
		v, e := fs.GetBool(name)
		if e != nil {
			err = e
		}
		return v
	}
	stringFlag := func(name string) string {
		v, e := fs.GetString(name)
		if e != nil {
			err = e
		}
		return v
	}

	if changed(FlagJobs) {
		jobs, e := fs.GetInt(FlagJobs)
		if e != nil {
			err = e
		}
		c.Build.Jobs = jobs
	}
	if changed(FlagParallelDownloads) {
		c.Build.ParallelDownloads = boolFlag(FlagParallelDownloads)
	}
	if changed(FlagOutputDir) {
		c.Build.OutputDir = stringFlag(FlagOutputDir)
	}
	if changed(FlagNoVirtual) && boolFlag(FlagNoVirtual) {
		c.Virtual.Enabled = false
	}
	if changed(FlagNoPy2) && boolFlag(FlagNoPy2) {
		c.disableIndex("py2")
	}
	if changed(FlagNoPy3) && boolFlag(FlagNoPy3) {
		c.disableIndex("py3")
	}
	if changed(FlagRootsEligible) {
		c.Virtual.RootsEligible = boolFlag(FlagRootsEligible)
	}
	if changed(FlagNoBefore) && boolFlag(FlagNoBefore) {
		c.Scripts.Before = false
	}
	if changed(FlagNoAfter) && boolFlag(FlagNoAfter) {
		c.Scripts.After = false
	}
	if changed(FlagNoRequires) && boolFlag(FlagNoRequires) {
		c.Scripts.Requires = false
	}
	if changed(FlagRemoteHost) {
		c.Remote.Host = stringFlag(FlagRemoteHost)
	}
	if changed(FlagLogLevel) {
		c.Logging.Level = stringFlag(FlagLogLevel)
	}
	if changed(FlagLogFormat) {
		c.Logging.Format = stringFlag(FlagLogFormat)
	}
	if changed(FlagMetricsTextfile) {
		c.Metrics.Textfile = stringFlag(FlagMetricsTextfile)
	}

	if err != nil {
		return fmt.Errorf("failed to read flags: %w", err)
	}
	return c.Validate()
}

func (c *Config) disableIndex(name string) {
	for i := range c.Virtual.Indices {
		if c.Virtual.Indices[i].Name == name {
			c.Virtual.Indices[i].Enabled = false
		}
	}
}

// SkipInstalled reports whether installed packages are classified
// virtual. Turning virtual classification off disables this as well.
func (c *Config) SkipInstalled() bool {
	return c.Virtual.Enabled && c.Virtual.SkipInstalled
}

// EnabledIndices returns the indices in effect, or none when virtual
// classification is globally off.
func (c *Config) EnabledIndices() []IndexConfig {
	if !c.Virtual.Enabled {
		return nil
	}
	var out []IndexConfig
	for _, idx := range c.Virtual.Indices {
		if idx.Enabled {
			out = append(out, idx)
		}
	}
	return out
}
