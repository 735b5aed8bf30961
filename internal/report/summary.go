// Package report renders the outcome of a build run, for people on the
// terminal and as a machine-readable manifest.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/felixgeelhaar/afterpkg/internal/build"
	"github.com/felixgeelhaar/afterpkg/internal/graph"
)

const rule = "═══════════════════════════════════════════════════════════"

// PrintSummary prints totals and the packages that did not build.
func PrintSummary(w io.Writer, run *build.RunResult) {
	g := run.Graph()
	virtual := 0
	for _, n := range g.Nodes() {
		if n.Kind == graph.Virtual {
			virtual++
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Build Summary (%s)\n", run.ID)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Status:          %s\n", run.Status)
	fmt.Fprintf(w, "Packages:        %d (%d virtual)\n", g.Len(), virtual)
	fmt.Fprintf(w, "Completed:       %d ✓\n", len(run.Completed))
	fmt.Fprintf(w, "Failed:          %d ✗\n", len(run.Failed))
	fmt.Fprintf(w, "Skipped:         %d ⊘\n", len(run.Skipped))
	fmt.Fprintf(w, "Total Time:      %s\n", run.Finished.Sub(run.Started).Round(time.Second))
	fmt.Fprintln(w, rule)

	if len(run.Failed) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Failed Packages:")
		for _, name := range run.Failed {
			n, _ := g.FindName(name)
			res := run.Results[n.ID]
			fmt.Fprintf(w, "  ✗ %s (step %s, exit %d)", name, res.Step, res.ExitCode)
			if res.Err != nil {
				fmt.Fprintf(w, " - %v", res.Err)
			}
			fmt.Fprintln(w)
		}
	}

	if len(run.Skipped) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Skipped Packages:")
		for _, name := range run.Skipped {
			n, _ := g.FindName(name)
			fmt.Fprintf(w, "  ⊘ %s - %s\n", name, g.Reason(n.ID))
		}
	}

	if virtual > 0 {
		var lines []string
		for _, id := range g.TopoOrder() {
			if n := g.Node(id); n.Kind == graph.Virtual {
				lines = append(lines, fmt.Sprintf("  ~ %s - %s", n.Name(), n.Verdict))
			}
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Provided Elsewhere:")
		fmt.Fprintln(w, strings.Join(lines, "\n"))
	}
}
