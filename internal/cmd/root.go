package cmd

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/afterpkg/internal/config"
	"github.com/felixgeelhaar/afterpkg/internal/log"
	"github.com/felixgeelhaar/afterpkg/internal/version"
)

// NewRootCmd assembles the command tree writing to stdout and stderr.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cc := &CommandContext{Stdout: stdout, Stderr: stderr}

	root := &cobra.Command{
		Use:   "afterpkg",
		Short: "Build SlackBuilds together with their dependencies",
		Long: `afterpkg resolves the dependency closure of SlackBuilds.org packages,
skips the ones already satisfied by installed packages or pip, injects
per-package setup scripts and builds the rest in dependency order, optionally
in parallel or on a remote build host.

Packages can also be emitted as a plain build queue for other tools.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cc.setupLogging(cc.LogLevel, cc.LogFormat)
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&cc.ConfigPath, "config", "c", config.DefaultPath(), "configuration file")
	pf.StringVar(&cc.LogLevel, config.FlagLogLevel, "", "log level (debug, info, warn, error)")
	pf.StringVar(&cc.LogFormat, config.FlagLogFormat, "", "log format (text, json)")
	pf.BoolVar(&cc.NoColor, "no-color", false, "disable coloured build output")

	root.AddCommand(
		newBuildCmd(cc),
		newQueueCmd(cc),
		newInfoCmd(cc),
		newConfigCmd(cc),
		newDoctorCmd(cc),
		newVersionCmd(cc),
	)
	return root
}

// Execute runs the CLI.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the CLI; cancelling ctx stops resolution and
// running builds.
func ExecuteContext(ctx context.Context) error {
	return NewRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
}

func (cc *CommandContext) setupLogging(level, format string) {
	if level == "" {
		level = "info"
	}
	lc := log.FromStrings(level, format)
	lc.Output = cc.Stderr
	lc.Version = version.Version
	cc.Logger = log.New(lc)
	log.SetDefaultLogger(cc.Logger)
}
