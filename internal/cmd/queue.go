package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/afterpkg/internal/config"
	aerrors "github.com/felixgeelhaar/afterpkg/internal/errors"
	"github.com/felixgeelhaar/afterpkg/internal/queue"
)

func newQueueCmd(cc *CommandContext) *cobra.Command {
	var (
		comments bool
		output   string
	)
	cmd := &cobra.Command{
		Use:   "queue <package>...",
		Short: "Print the build order without building",
		Long: `Resolve the requested packages and print the ones that need building, one
per line, dependencies first. The output is a queue file usable by sbopkg and
similar tools.

Examples:
  afterpkg queue docker > docker.sqf
  afterpkg queue --comments -o docker.sqf docker`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.loadConfig(cmd)
			if err != nil {
				return err
			}
			tc, err := newToolchain(cfg, cc.Logger)
			if err != nil {
				return err
			}
			defer tc.Close()
			defer tc.writeMetrics()

			g, err := tc.resolve(cmd.Context(), args)
			if err != nil {
				return err
			}

			var w io.Writer = cc.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return aerrors.NewFileWriteError(output, err)
				}
				defer f.Close()
				w = f
			}
			if err := queue.Emit(w, g, queue.Options{Comments: comments}); err != nil {
				return aerrors.NewFileWriteError(output, err)
			}
			if output != "" {
				cc.Logger.Info("queue written", "path", output, "packages", len(g.BuildOrder()))
			}
			return nil
		},
	}

	config.RegisterFlags(cmd.Flags())
	cmd.Flags().BoolVar(&comments, "comments", false, "list packages provided elsewhere as comments")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the queue to this file instead of stdout")
	return cmd
}
