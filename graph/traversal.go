package graph

import "go.uber.org/zap"

// GetRelatedNodes walks outgoing edges depth-first from id, up to maxDepth
// hops (1 when maxDepth <= 0). When relationType is non-empty only edges of
// that type are followed. Each reachable node is reported once, with the
// attributes of the edge that first reached it.
func (s *Store) GetRelatedNodes(id, relationType string, maxDepth int) []Related {
	if !s.g.HasNode(id) {
		s.logger.Warn("related nodes of missing node", zap.String("id", id))
		return nil
	}
	if maxDepth <= 0 {
		maxDepth = 1
	}

	var related []Related
	visited := map[string]bool{}
	reported := map[string]bool{id: true}

	var explore func(cur string, depth int)
	explore = func(cur string, depth int) {
		if depth >= maxDepth || visited[cur] {
			return
		}
		visited[cur] = true

		for _, e := range s.g.out[cur] {
			if relationType != "" && e.attrs.String(AttrRelationType) != relationType {
				continue
			}
			if reported[e.target] {
				continue
			}
			reported[e.target] = true
			related = append(related, Related{
				ID:    e.target,
				Attrs: s.g.nodes[e.target].Clone(),
				Edge:  e.attrs.Clone(),
			})
			if depth+1 < maxDepth {
				explore(e.target, depth+1)
			}
		}
	}
	explore(id, 0)
	return related
}

// Subgraph returns the nodes within maxDepth hops of any seed, following
// edges in both directions, together with every edge among them.
func (g *Graph) Subgraph(seeds []string, maxDepth int) *Graph {
	keep := make(map[string]bool)
	var queue []string
	for _, id := range seeds {
		if g.HasNode(id) && !keep[id] {
			keep[id] = true
			queue = append(queue, id)
		}
	}

	for depth := 0; depth < maxDepth && len(queue) > 0; depth++ {
		var next []string
		for _, id := range queue {
			for _, n := range g.neighbors(id) {
				if !keep[n] {
					keep[n] = true
					next = append(next, n)
				}
			}
		}
		queue = next
	}

	sub := NewGraph()
	for k, v := range g.Meta {
		sub.Meta[k] = v
	}
	for _, id := range g.order {
		if keep[id] {
			sub.setNode(id, g.nodes[id])
		}
	}
	for _, e := range g.Edges() {
		if keep[e.Source] && keep[e.Target] {
			sub.setEdge(e.Source, e.Target, e.Attrs)
		}
	}
	return sub
}

// FindPaths returns every simple directed path from start to end with at
// most maxLen edges.
func (g *Graph) FindPaths(start, end string, maxLen int) [][]string {
	if !g.HasNode(start) || !g.HasNode(end) || maxLen <= 0 {
		return nil
	}

	var paths [][]string
	onPath := map[string]bool{start: true}
	path := []string{start}

	var walk func(cur string)
	walk = func(cur string) {
		if len(path)-1 >= maxLen {
			return
		}
		for _, next := range g.Successors(cur) {
			if onPath[next] {
				continue
			}
			path = append(path, next)
			if next == end {
				paths = append(paths, append([]string(nil), path...))
			} else {
				onPath[next] = true
				walk(next)
				onPath[next] = false
			}
			path = path[:len(path)-1]
		}
	}
	walk(start)
	return paths
}
