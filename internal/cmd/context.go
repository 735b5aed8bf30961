package cmd

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/afterpkg/internal/config"
	aerrors "github.com/felixgeelhaar/afterpkg/internal/errors"
	"github.com/felixgeelhaar/afterpkg/internal/log"
)

// CommandContext holds the persistent flags and the state shared by all
// commands of one invocation, instead of package globals.
type CommandContext struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	NoColor    bool

	Stdout io.Writer
	Stderr io.Writer
	Logger *log.Logger
}

// loadConfig reads the configuration file, overlays the flags set on cmd
// and reconfigures logging from the result.
func (cc *CommandContext) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cc.ConfigPath)
	if err == nil {
		err = cfg.ApplyFlags(cmd.Flags())
	}
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			return nil, aerrors.Wrap(aerrors.ErrCodeConfigInvalid, "invalid configuration", err).
				WithSuggestion("Run 'afterpkg config view' to inspect the effective configuration")
		}
		return nil, aerrors.Wrap(aerrors.ErrCodeFileReadFailed, "failed to load configuration", err)
	}

	cc.setupLogging(cfg.Logging.Level, cfg.Logging.Format)
	cc.Logger.Debug("configuration loaded", "path", cc.ConfigPath, "slackbuilds", cfg.Paths.SlackBuilds, "jobs", cfg.Build.Jobs)
	return cfg, nil
}
