package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/afterpkg/internal/config"
	"github.com/felixgeelhaar/afterpkg/internal/equiv"
	aerrors "github.com/felixgeelhaar/afterpkg/internal/errors"
	"github.com/felixgeelhaar/afterpkg/internal/exec"
	"github.com/felixgeelhaar/afterpkg/internal/health"
)

func newDoctorCmd(cc *CommandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that this host is ready to build",
		Long: `Check the repository, the working directories, the tools builds shell out
to, every enabled pip index and, when configured, the remote build host.

Degraded checks leave builds working with less: without upgradepkg nothing
can be installed, without a pip index its packages are built instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.loadConfig(cmd)
			if err != nil {
				return err
			}

			m, cleanup := doctorChecks(cfg)
			defer cleanup()
			report := m.Run(cmd.Context())
			printChecks(cc, report)

			overall := report.Overall()
			fmt.Fprintf(cc.Stdout, "\nOverall: %s\n", overall)
			if overall == health.StatusUnhealthy {
				return aerrors.New(aerrors.ErrCodeConfigInvalid, "host is not ready to build").
					WithSuggestion("Fix the checks marked ✗ above")
			}
			return nil
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func doctorChecks(cfg *config.Config) (*health.Manager, func()) {
	m := health.NewManager(health.DefaultTimeout)
	cleanup := func() {}

	m.Add(&health.RepositoryChecker{Root: cfg.Paths.SlackBuilds})
	m.Add(&health.DirChecker{Label: "downloads", Path: cfg.Paths.Downloads})
	m.Add(&health.DirChecker{Label: "work", Path: cfg.Paths.Work})
	m.Add(&health.DirChecker{Label: "runs", Path: cfg.Paths.Runs})
	m.Add(&health.ToolChecker{Tool: "sh", Required: true})
	m.Add(&health.ToolChecker{Tool: "upgradepkg", Suggestion: "Run on Slackware, or build with --no-install"})

	for _, ic := range cfg.EnabledIndices() {
		m.Add(&health.IndexChecker{Index: equiv.NewPipIndex(ic.Name, ic.Pip, ic.Prefixes, pipRunner)})
	}

	if cfg.Remote.Enabled() {
		ssh := exec.NewSSHRunner(exec.SSHConfig{
			Addr:       cfg.Remote.Address(),
			User:       cfg.Remote.User,
			KeyFile:    cfg.Remote.KeyFile,
			KnownHosts: cfg.Remote.KnownHosts,
		})
		m.Add(&health.RemoteChecker{Addr: cfg.Remote.Address(), Runner: ssh})
		cleanup = func() { _ = ssh.Close() }
	}
	return m, cleanup
}

func printChecks(cc *CommandContext, report *health.Report) {
	for _, res := range report.Entries {
		symbol := "✓"
		switch res.Status {
		case health.StatusDegraded:
			symbol = "!"
		case health.StatusUnhealthy:
			symbol = "✗"
		}
		fmt.Fprintf(cc.Stdout, "%s %-24s %s\n", symbol, res.Name, res.Message)

		keys := make([]string, 0, len(res.Details))
		for k := range res.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(cc.Stdout, "    %s: %v\n", k, res.Details[k])
		}
	}
}
