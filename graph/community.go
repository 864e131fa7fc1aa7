package graph

import (
	"math"
	"sort"
)

// PageRank parameters.
const (
	pageRankDamping    = 0.85
	pageRankIterations = 100
	pageRankTolerance  = 1e-6
)

// Ranked is a node with its centrality score.
type Ranked struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Components returns the weakly connected components, largest first. Nodes
// inside a component keep insertion order.
func (g *Graph) Components() [][]string {
	seen := make(map[string]bool, len(g.nodes))
	var comps [][]string

	for _, id := range g.order {
		if seen[id] {
			continue
		}
		members := map[string]bool{id: true}
		seen[id] = true
		queue := []string{id}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, n := range g.neighbors(cur) {
				if !seen[n] {
					seen[n] = true
					members[n] = true
					queue = append(queue, n)
				}
			}
		}

		comp := make([]string, 0, len(members))
		for _, n := range g.order {
			if members[n] {
				comp = append(comp, n)
			}
		}
		comps = append(comps, comp)
	}

	sort.SliceStable(comps, func(i, j int) bool { return len(comps[i]) > len(comps[j]) })
	return comps
}

// PageRank computes PageRank over the directed graph. Dangling nodes spread
// their rank uniformly.
func (g *Graph) PageRank() map[string]float64 {
	n := len(g.order)
	rank := make(map[string]float64, n)
	if n == 0 {
		return rank
	}
	for _, id := range g.order {
		rank[id] = 1 / float64(n)
	}

	for iter := 0; iter < pageRankIterations; iter++ {
		dangling := 0.0
		for _, id := range g.order {
			if len(g.out[id]) == 0 {
				dangling += rank[id]
			}
		}

		next := make(map[string]float64, n)
		base := (1-pageRankDamping)/float64(n) + pageRankDamping*dangling/float64(n)
		for _, id := range g.order {
			next[id] = base
		}
		for _, id := range g.order {
			outs := g.out[id]
			if len(outs) == 0 {
				continue
			}
			share := pageRankDamping * rank[id] / float64(len(outs))
			for _, e := range outs {
				next[e.target] += share
			}
		}

		delta := 0.0
		for _, id := range g.order {
			delta += math.Abs(next[id] - rank[id])
		}
		rank = next
		if delta < float64(n)*pageRankTolerance {
			break
		}
	}
	return rank
}

// Centrality returns the topN nodes by PageRank (all nodes when topN <= 0).
func (g *Graph) Centrality(topN int) []Ranked {
	rank := g.PageRank()
	out := make([]Ranked, 0, len(rank))
	for _, id := range g.order {
		out = append(out, Ranked{ID: id, Name: g.nodes[id].String(AttrName), Score: rank[id]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if topN > 0 && topN < len(out) {
		out = out[:topN]
	}
	return out
}
