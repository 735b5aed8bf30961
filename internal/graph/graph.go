package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrInvalidTransition is returned for a state change the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid state transition")

// Graph is the arena of nodes for one run. Transition methods are safe for
// concurrent use; each one updates the ready view atomically.
type Graph struct {
	nodes  []*Node
	byKey  map[Key]ID
	byName map[string]ID
	roots  []ID
	// order is the post-order in which resolution finished nodes.
	order []ID

	mu      sync.Mutex
	states  []State
	reasons []string
}

func newGraph() *Graph {
	return &Graph{
		byKey:  make(map[Key]ID),
		byName: make(map[string]ID),
	}
}

func (g *Graph) add(n *Node) ID {
	n.ID = ID(len(g.nodes))
	g.nodes = append(g.nodes, n)
	g.byKey[n.Key] = n.ID
	g.byName[n.Key.Name] = n.ID
	g.states = append(g.states, Pending)
	g.reasons = append(g.reasons, "")
	return n.ID
}

// seal computes dependents and initial states once edges are final.
func (g *Graph) seal() {
	for _, n := range g.nodes {
		for _, dep := range n.Deps {
			d := g.nodes[dep]
			d.Dependents = append(d.Dependents, n.ID)
		}
	}
	for _, n := range g.nodes {
		if n.Kind == Virtual {
			g.states[n.ID] = Done
			g.reasons[n.ID] = n.Verdict.String()
		}
	}
	for _, n := range g.nodes {
		g.promote(n.ID)
	}
}

// Len is the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the node with id.
func (g *Graph) Node(id ID) *Node { return g.nodes[id] }

// Nodes returns every node in resolution order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Roots returns the requested nodes in request order.
func (g *Graph) Roots() []ID {
	out := make([]ID, len(g.roots))
	copy(out, g.roots)
	return out
}

// Find looks a node up by its unique key.
func (g *Graph) Find(k Key) (*Node, bool) {
	id, ok := g.byKey[k]
	if !ok {
		return nil, false
	}
	return g.nodes[id], true
}

// FindName looks a node up by package name.
func (g *Graph) FindName(name string) (*Node, bool) {
	id, ok := g.byName[name]
	if !ok {
		return nil, false
	}
	return g.nodes[id], true
}

// State returns the current state of id.
func (g *Graph) State(id ID) State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.states[id]
}

// Reason explains a Skipped or virtual Done state.
func (g *Graph) Reason(id ID) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reasons[id]
}

// promote moves a Pending node to Ready when all its deps are satisfied.
// Callers hold mu.
func (g *Graph) promote(id ID) {
	if g.states[id] != Pending {
		return
	}
	for _, dep := range g.nodes[id].Deps {
		if !g.states[dep].Satisfied() {
			return
		}
	}
	g.states[id] = Ready
}

// ReadySet returns the Ready nodes in resolution order.
func (g *Graph) ReadySet() []ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []ID
	for id, s := range g.states {
		if s == Ready {
			out = append(out, ID(id))
		}
	}
	return out
}

func (g *Graph) transition(id ID, from []State, to State) error {
	cur := g.states[id]
	for _, f := range from {
		if cur == f {
			g.states[id] = to
			return nil
		}
	}
	return fmt.Errorf("%s: %s -> %s: %w", g.nodes[id].Key, cur, to, ErrInvalidTransition)
}

// MarkRunning claims a Ready node for execution.
func (g *Graph) MarkRunning(id ID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.transition(id, []State{Ready}, Running)
}

// MarkDone records success and promotes dependents that became ready.
func (g *Graph) MarkDone(id ID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.transition(id, []State{Running}, Done); err != nil {
		return err
	}
	for _, dep := range g.nodes[id].Dependents {
		g.promote(dep)
	}
	return nil
}

// MarkFailed records failure and skips every transitive dependent that has
// not started. It returns the nodes it skipped.
func (g *Graph) MarkFailed(id ID) ([]ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.transition(id, []State{Running}, Failed); err != nil {
		return nil, err
	}

	var skipped []ID
	reason := "dependency failed: " + g.nodes[id].Key.Name
	queue := append([]ID(nil), g.nodes[id].Dependents...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if s := g.states[cur]; s != Pending && s != Ready {
			continue
		}
		g.states[cur] = Skipped
		g.reasons[cur] = reason
		skipped = append(skipped, cur)
		queue = append(queue, g.nodes[cur].Dependents...)
	}
	sort.Slice(skipped, func(i, j int) bool { return skipped[i] < skipped[j] })
	return skipped, nil
}

// MarkSkipped skips a node that has not started.
func (g *Graph) MarkSkipped(id ID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.transition(id, []State{Pending, Ready}, Skipped); err != nil {
		return err
	}
	g.reasons[id] = reason
	for _, dep := range g.nodes[id].Dependents {
		g.promote(dep)
	}
	return nil
}

// SkipRemaining skips every node that has not started, returning them.
func (g *Graph) SkipRemaining(reason string) []ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	var skipped []ID
	for id, s := range g.states {
		if s == Pending || s == Ready {
			g.states[id] = Skipped
			g.reasons[id] = reason
			skipped = append(skipped, ID(id))
		}
	}
	return skipped
}

// Counts tallies nodes per state.
func (g *Graph) Counts() map[State]int {
	g.mu.Lock()
	defer g.mu.Unlock()

	counts := make(map[State]int)
	for _, s := range g.states {
		counts[s]++
	}
	return counts
}

// Settled reports whether no node is Pending, Ready or Running.
func (g *Graph) Settled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, s := range g.states {
		if !s.Terminal() {
			return false
		}
	}
	return true
}
