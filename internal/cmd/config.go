package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/afterpkg/internal/config"
	aerrors "github.com/felixgeelhaar/afterpkg/internal/errors"
)

func newConfigCmd(cc *CommandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View or create the afterpkg configuration",
		Long: `Manage the afterpkg configuration stored at ~/.afterpkg/config.yaml

Configuration includes:
  • Repository, script fragment and cache locations
  • Parallelism and package output settings
  • Virtual package indices (pip) and installed package handling
  • Remote build host
  • Logging and metrics settings

Examples:
  # View the effective configuration
  afterpkg config view

  # Write a configuration file with the defaults
  afterpkg config init

  # Show configuration file path
  afterpkg config path
`,
	}

	var format string
	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "Display the effective configuration",
		Long:  `Display the configuration after defaults, the configuration file and flags are merged.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.loadConfig(cmd)
			if err != nil {
				return err
			}
			return printConfig(cc, cfg, format)
		},
	}
	viewCmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format (yaml, json)")

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(cc.ConfigPath); err == nil && !force {
				return aerrors.New(aerrors.ErrCodeConfigInvalid, "configuration already exists: "+cc.ConfigPath).
					WithSuggestion("Use --force to overwrite it")
			}
			if err := config.Save(config.Default(), cc.ConfigPath); err != nil {
				return aerrors.NewFileWriteError(cc.ConfigPath, err)
			}
			fmt.Fprintf(cc.Stdout, "✓ Configuration written to %s\n", cc.ConfigPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file and whether it exists.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cc.Stdout, cc.ConfigPath)
			if _, err := os.Stat(cc.ConfigPath); os.IsNotExist(err) {
				fmt.Fprintln(cc.Stderr, "(not created yet, defaults in effect; run 'afterpkg config init')")
			}
			return nil
		},
	}

	cmd.AddCommand(viewCmd, initCmd, pathCmd)
	return cmd
}

func printConfig(cc *CommandContext, cfg *config.Config, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprintln(cc.Stdout, string(data))
	case "yaml", "":
		enc := yaml.NewEncoder(cc.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("invalid flag value for --format: %q (use yaml or json)", format)
	}
	return nil
}
