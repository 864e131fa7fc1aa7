package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// nodeLinkDoc is the node-link serialization of a graph: nodes carry their
// attributes plus "id", links carry their attributes plus "source" and
// "target".
type nodeLinkDoc struct {
	Directed   bool             `json:"directed"`
	Multigraph bool             `json:"multigraph"`
	Graph      Attrs            `json:"graph"`
	Nodes      []map[string]any `json:"nodes"`
	Links      []map[string]any `json:"links"`
	// Edges is the key newer writers use instead of "links".
	Edges []map[string]any `json:"edges,omitempty"`
}

// EncodeNodeLink writes g as pretty-printed node-link JSON. Non-ASCII text is
// written verbatim.
func EncodeNodeLink(w io.Writer, g *Graph) error {
	doc := nodeLinkDoc{
		Directed:   true,
		Multigraph: false,
		Graph:      g.Meta,
		Nodes:      make([]map[string]any, 0, g.NodeCount()),
		Links:      make([]map[string]any, 0, g.EdgeCount()),
	}
	if doc.Graph == nil {
		doc.Graph = Attrs{}
	}
	for _, id := range g.order {
		n := make(map[string]any, len(g.nodes[id])+1)
		for k, v := range g.nodes[id] {
			n[k] = v
		}
		n["id"] = id
		doc.Nodes = append(doc.Nodes, n)
	}
	for _, e := range g.Edges() {
		l := make(map[string]any, len(e.Attrs)+2)
		for k, v := range e.Attrs {
			l[k] = v
		}
		l["source"] = e.Source
		l["target"] = e.Target
		doc.Links = append(doc.Links, l)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// DecodeNodeLink parses node-link JSON. Links whose endpoints are not listed
// as nodes get those nodes created with no attributes.
func DecodeNodeLink(data []byte) (*Graph, error) {
	var doc nodeLinkDoc
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding node-link graph: %w", err)
	}
	if !doc.Directed && len(doc.Links)+len(doc.Edges) > 0 {
		return nil, fmt.Errorf("decoding node-link graph: undirected graphs are not supported")
	}

	g := NewGraph()
	if doc.Graph != nil {
		g.Meta = doc.Graph
	}
	for i, n := range doc.Nodes {
		raw, ok := n["id"]
		if !ok {
			return nil, fmt.Errorf("decoding node-link graph: node %d has no id", i)
		}
		attrs := make(Attrs, len(n))
		for k, v := range n {
			if k != "id" {
				attrs[k] = v
			}
		}
		g.setNode(idString(raw), attrs)
	}

	links := doc.Links
	if len(links) == 0 {
		links = doc.Edges
	}
	for i, l := range links {
		src, okS := l["source"]
		dst, okT := l["target"]
		if !okS || !okT {
			return nil, fmt.Errorf("decoding node-link graph: link %d is missing an endpoint", i)
		}
		s, t := idString(src), idString(dst)
		if !g.HasNode(s) {
			g.setNode(s, Attrs{})
		}
		if !g.HasNode(t) {
			g.setNode(t, Attrs{})
		}
		attrs := make(Attrs, len(l))
		for k, v := range l {
			if k != "source" && k != "target" && k != "key" {
				attrs[k] = v
			}
		}
		g.setEdge(s, t, attrs)
	}
	return g, nil
}

func idString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(v)
}
