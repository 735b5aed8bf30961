// Package queue writes a build order for external queue tools: one
// package name per line, dependencies first.
package queue

import (
	"bufio"
	"fmt"
	"io"

	"github.com/felixgeelhaar/afterpkg/internal/graph"
)

// Options tune the emitted queue.
type Options struct {
	// Comments lists virtual nodes as "# name (reason)" lines where they
	// would have been built.
	Comments bool
}

// Emit writes the Real nodes of g in build order.
func Emit(w io.Writer, g *graph.Graph, opts Options) error {
	bw := bufio.NewWriter(w)
	for _, id := range g.TopoOrder() {
		n := g.Node(id)
		var err error
		switch {
		case n.Kind == graph.Real:
			_, err = fmt.Fprintln(bw, n.Name())
		case opts.Comments:
			_, err = fmt.Fprintf(bw, "# %s (%s)\n", n.Name(), n.Verdict)
		}
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Names returns the queue entries without writing them.
func Names(g *graph.Graph) []string {
	ids := g.BuildOrder()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = g.Node(id).Name()
	}
	return out
}
