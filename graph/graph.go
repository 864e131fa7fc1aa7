package graph

// Graph is a simple directed attributed graph: at most one edge per ordered
// pair of nodes. Nodes iterate in insertion order and each node's outgoing
// edges iterate in the order they were added. It is not safe for concurrent
// use.
type Graph struct {
	// Meta is the graph-level attribute bag persisted as "graph".
	Meta Attrs

	nodes map[string]Attrs
	order []string
	out   map[string][]*edge
	in    map[string][]*edge
	edges int
}

type edge struct {
	source string
	target string
	attrs  Attrs
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Meta:  Attrs{},
		nodes: make(map[string]Attrs),
		out:   make(map[string][]*edge),
		in:    make(map[string][]*edge),
	}
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return g.edges }

// HasNode reports whether id is present.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns the live attribute bag of a node.
func (g *Graph) Node(id string) (Attrs, bool) {
	a, ok := g.nodes[id]
	return a, ok
}

// NodeIDs returns node ids in insertion order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, len(g.order))
	copy(ids, g.order)
	return ids
}

// HasEdge reports whether the directed edge source->target exists.
func (g *Graph) HasEdge(source, target string) bool {
	return g.findEdge(source, target) != nil
}

// EdgeAttrs returns the live attribute bag of an edge.
func (g *Graph) EdgeAttrs(source, target string) (Attrs, bool) {
	e := g.findEdge(source, target)
	if e == nil {
		return nil, false
	}
	return e.attrs, true
}

// Edges returns every edge, grouped by source in node order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, g.edges)
	for _, id := range g.order {
		for _, e := range g.out[id] {
			out = append(out, Edge{Source: e.source, Target: e.target, Attrs: e.attrs})
		}
	}
	return out
}

// Successors returns the targets of id's outgoing edges.
func (g *Graph) Successors(id string) []string {
	var ids []string
	for _, e := range g.out[id] {
		ids = append(ids, e.target)
	}
	return ids
}

// Predecessors returns the sources of id's incoming edges.
func (g *Graph) Predecessors(id string) []string {
	var ids []string
	for _, e := range g.in[id] {
		ids = append(ids, e.source)
	}
	return ids
}

// neighbors returns successors and predecessors without duplicates.
func (g *Graph) neighbors(id string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, n := range g.Successors(id) {
		if !seen[n] {
			seen[n] = true
			ids = append(ids, n)
		}
	}
	for _, n := range g.Predecessors(id) {
		if !seen[n] {
			seen[n] = true
			ids = append(ids, n)
		}
	}
	return ids
}

// TypeCounts counts nodes per "type" attribute; untyped nodes count as "unknown".
func (g *Graph) TypeCounts() map[string]int {
	counts := make(map[string]int)
	for _, id := range g.order {
		t := g.nodes[id].String(AttrType)
		if t == "" {
			t = "unknown"
		}
		counts[t]++
	}
	return counts
}

// setNode merges attrs into the node, creating it when absent. It reports
// whether the node was created.
func (g *Graph) setNode(id string, attrs Attrs) bool {
	cur, ok := g.nodes[id]
	if !ok {
		cur = make(Attrs, len(attrs))
		g.nodes[id] = cur
		g.order = append(g.order, id)
	}
	for k, v := range attrs {
		cur[k] = v
	}
	return !ok
}

// setEdge merges attrs into the edge, creating it when absent. Both
// endpoints must exist. It reports whether the edge was created.
func (g *Graph) setEdge(source, target string, attrs Attrs) bool {
	if e := g.findEdge(source, target); e != nil {
		for k, v := range attrs {
			e.attrs[k] = v
		}
		return false
	}
	e := &edge{source: source, target: target, attrs: make(Attrs, len(attrs))}
	for k, v := range attrs {
		e.attrs[k] = v
	}
	g.out[source] = append(g.out[source], e)
	g.in[target] = append(g.in[target], e)
	g.edges++
	return true
}

func (g *Graph) removeNode(id string) bool {
	if _, ok := g.nodes[id]; !ok {
		return false
	}
	for _, e := range append([]*edge(nil), g.out[id]...) {
		g.removeEdge(e.source, e.target)
	}
	for _, e := range append([]*edge(nil), g.in[id]...) {
		g.removeEdge(e.source, e.target)
	}
	delete(g.nodes, id)
	delete(g.out, id)
	delete(g.in, id)
	for i, n := range g.order {
		if n == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return true
}

func (g *Graph) removeEdge(source, target string) bool {
	e := g.findEdge(source, target)
	if e == nil {
		return false
	}
	g.out[source] = dropEdge(g.out[source], e)
	g.in[target] = dropEdge(g.in[target], e)
	g.edges--
	return true
}

func (g *Graph) findEdge(source, target string) *edge {
	for _, e := range g.out[source] {
		if e.target == target {
			return e
		}
	}
	return nil
}

func dropEdge(list []*edge, e *edge) []*edge {
	for i, x := range list {
		if x == e {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
