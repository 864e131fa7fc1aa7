package graph

// maxDiameterNodes bounds the all-pairs search used for the diameter.
const maxDiameterNodes = 1000

// Analysis summarises the shape of a graph.
type Analysis struct {
	Nodes            int            `json:"nodes"`
	Edges            int            `json:"edges"`
	Density          float64        `json:"density"`
	Connected        bool           `json:"connected"`
	Components       int            `json:"components"`
	LargestComponent int            `json:"largest_component"`
	AvgInDegree      float64        `json:"avg_in_degree"`
	AvgOutDegree     float64        `json:"avg_out_degree"`
	Diameter         int            `json:"diameter"`
	Types            map[string]int `json:"types"`
}

// Analyze computes an Analysis. Diameter is measured on the undirected
// graph and is -1 when the graph is disconnected, empty or too large.
func (g *Graph) Analyze() Analysis {
	a := Analysis{
		Nodes:    g.NodeCount(),
		Edges:    g.EdgeCount(),
		Diameter: -1,
		Types:    g.TypeCounts(),
	}
	if a.Nodes == 0 {
		return a
	}
	if a.Nodes > 1 {
		a.Density = float64(a.Edges) / float64(a.Nodes*(a.Nodes-1))
	}
	a.AvgInDegree = float64(a.Edges) / float64(a.Nodes)
	a.AvgOutDegree = a.AvgInDegree

	comps := g.Components()
	a.Components = len(comps)
	a.LargestComponent = len(comps[0])
	a.Connected = len(comps) == 1

	if a.Connected && a.Nodes < maxDiameterNodes {
		a.Diameter = g.diameter()
	}
	return a
}

func (g *Graph) diameter() int {
	best := 0
	for _, src := range g.order {
		dist := map[string]int{src: 0}
		queue := []string{src}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, n := range g.neighbors(cur) {
				if _, ok := dist[n]; !ok {
					dist[n] = dist[cur] + 1
					if dist[n] > best {
						best = dist[n]
					}
					queue = append(queue, n)
				}
			}
		}
	}
	return best
}

// Merge copies other into g. Missing nodes and edges are added; for nodes
// and edges present in both, only attributes g lacks are filled in.
func (g *Graph) Merge(other *Graph) {
	for _, id := range other.order {
		src := other.nodes[id]
		cur, ok := g.nodes[id]
		if !ok {
			g.setNode(id, src)
			continue
		}
		for k, v := range src {
			if _, has := cur[k]; !has {
				cur[k] = v
			}
		}
	}
	for _, e := range other.Edges() {
		cur, ok := g.EdgeAttrs(e.Source, e.Target)
		if !ok {
			g.setEdge(e.Source, e.Target, e.Attrs)
			continue
		}
		for k, v := range e.Attrs {
			if _, has := cur[k]; !has {
				cur[k] = v
			}
		}
	}
}

// Merge folds another graph into the store's graph. The result is not saved.
func (s *Store) Merge(other *Graph) {
	s.g.Merge(other)
}
