package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/afterpkg/internal/config"
	"github.com/felixgeelhaar/afterpkg/internal/graph"
)

func newInfoCmd(cc *CommandContext) *cobra.Command {
	var purl bool
	cmd := &cobra.Command{
		Use:   "info <package>...",
		Short: "Show the resolved dependency graph",
		Long: `Resolve the requested packages and list every node of the graph in build
order: whether it will be built or is provided elsewhere, and its direct
dependencies.`,
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

			g, err := tc.resolve(cmd.Context(), args)
			if err != nil {
				return err
			}
			printGraph(cc, g, purl)
			return nil
		},
	}
	config.RegisterFlags(cmd.Flags())
	cmd.Flags().BoolVar(&purl, "purl", false, "show package URLs")
	return cmd
}

func printGraph(cc *CommandContext, g *graph.Graph, purl bool) {
	toBuild := 0
	for _, id := range g.TopoOrder() {
		n := g.Node(id)
		if n.Kind == graph.Real {
			toBuild++
		}
		fmt.Fprintln(cc.Stdout, describeNode(n))
		if purl {
			fmt.Fprintf(cc.Stdout, "    purl: %s\n", n.PackageURL())
		}
		if len(n.Deps) > 0 {
			deps := make([]string, len(n.Deps))
			for i, dep := range n.Deps {
				deps[i] = g.Node(dep).Name()
			}
			fmt.Fprintf(cc.Stdout, "    requires: %s\n", strings.Join(deps, ", "))
		}
	}
	fmt.Fprintf(cc.Stdout, "\n%s to build, %d provided elsewhere\n",
		pluralize(toBuild, "package"), g.Len()-toBuild)
}

// describeNode renders a node as "category/name version [verdict]".
func describeNode(n *graph.Node) string {
	s := n.Key.String()
	if n.Version != "" {
		s += " " + n.Version
	}
	if n.Kind == graph.Virtual {
		s += fmt.Sprintf(" [%s]", n.Verdict)
	}
	if n.Requested {
		s += " (requested)"
	}
	return s
}
