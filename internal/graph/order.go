package graph

// TopoOrder returns every node with dependencies before dependents. Ties
// follow the order in which resolution met the nodes, roots in request
// order and dependencies in declared order.
func (g *Graph) TopoOrder() []ID {
	out := make([]ID, len(g.order))
	copy(out, g.order)
	return out
}

// BuildOrder is TopoOrder without virtual nodes.
func (g *Graph) BuildOrder() []ID {
	var out []ID
	for _, id := range g.order {
		if g.nodes[id].Kind == Real {
			out = append(out, id)
		}
	}
	return out
}

// Closure returns id and everything it transitively depends on.
func (g *Graph) Closure(id ID) []ID {
	seen := make(map[ID]bool)
	var walk func(ID)
	var out []ID
	walk = func(cur ID) {
		if seen[cur] {
			return
		}
		seen[cur] = true
		for _, dep := range g.nodes[cur].Deps {
			walk(dep)
		}
		out = append(out, cur)
	}
	walk(id)
	return out
}
