package graph

import (
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/brunobiangulo/goknow/nlp"
)

// minRelevance is the attribute-match ratio a node must exceed to be
// returned by Query.
const minRelevance = 0.3

// Query scores every node against the keywords of text. A keyword found in
// the node id scores 1.0 outright; otherwise the score is the fraction of
// keywords found in the node's string and numeric attribute values. Results
// are ordered by relevance, then by id.
func (s *Store) Query(text string) []Result {
	keywords := s.keywords.Keywords(text)
	if len(keywords) == 0 {
		s.logger.Warn("no keywords in query", zap.String("query", text))
		return nil
	}
	s.logger.Debug("querying knowledge graph", zap.String("query", text), zap.Strings("keywords", keywords))

	var results []Result
	for _, id := range s.g.order {
		attrs := s.g.nodes[id]

		lowerID := nlp.Fold(id)
		if containsAny(lowerID, keywords) {
			results = append(results, Result{ID: id, Attrs: attrs.Clone(), Relevance: 1.0})
			continue
		}

		blob := attrText(attrs)
		matches := 0
		for _, kw := range keywords {
			if strings.Contains(blob, kw) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		relevance := float64(matches) / float64(len(keywords))
		if relevance > minRelevance {
			results = append(results, Result{ID: id, Attrs: attrs.Clone(), Relevance: relevance})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Relevance != results[j].Relevance {
			return results[i].Relevance > results[j].Relevance
		}
		return results[i].ID < results[j].ID
	})

	s.logger.Info("knowledge graph query", zap.String("query", text), zap.Int("results", len(results)))
	return results
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// attrText joins string and numeric attribute values into one folded
// blob. Keys are visited in sorted order so the blob is stable.
func attrText(attrs Attrs) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := attrs[k].(type) {
		case string:
			parts = append(parts, v)
		case float64:
			parts = append(parts, strconv.FormatFloat(v, 'f', -1, 64))
		case float32:
			parts = append(parts, strconv.FormatFloat(float64(v), 'f', -1, 32))
		case int:
			parts = append(parts, strconv.Itoa(v))
		case int64:
			parts = append(parts, strconv.FormatInt(v, 10))
		}
	}
	return nlp.Fold(strings.Join(parts, " "))
}
