package graph

// Node type tags used by the learner and the collectors.
const (
	TypeEntity    = "entity"
	TypeConcept   = "concept"
	TypeContext   = "context"
	TypeSubject   = "subject"
	TypeKnowledge = "knowledge"
)

// Relation type tags.
const (
	RelRelatedTo   = "related_to"
	RelRelatesTo   = "relates_to"
	RelContains    = "contains"
	RelGeneralizes = "generalizes"
	RelHasProperty = "has_property"
	RelReferences  = "references"
	RelDefines     = "defines"
	RelRequires    = "requires"
	RelContradicts = "contradicts"
)

// Well-known attribute keys.
const (
	AttrName         = "name"
	AttrType         = "type"
	AttrDescription  = "description"
	AttrSource       = "source"
	AttrConfidence   = "confidence"
	AttrCreatedAt    = "created_at"
	AttrUpdatedAt    = "updated_at"
	AttrRelationType = "relation_type"

	// PropPrefix marks flattened structured properties.
	PropPrefix = "prop_"
)

// Attrs is the attribute bag carried by nodes and edges.
type Attrs map[string]any

// String returns the attribute as a string, or "" when absent or not a string.
func (a Attrs) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// Float returns the numeric attribute and whether it was present.
func (a Attrs) Float(key string) (float64, bool) {
	switch v := a[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Clone returns a shallow copy of the bag.
func (a Attrs) Clone() Attrs {
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Result is one query hit.
type Result struct {
	ID        string  `json:"id"`
	Attrs     Attrs   `json:"attributes"`
	Relevance float64 `json:"relevance"`
}

// Related is one node reached by GetRelatedNodes together with the edge
// that led to it.
type Related struct {
	ID    string `json:"id"`
	Attrs Attrs  `json:"attributes"`
	Edge  Attrs  `json:"edge"`
}

// Edge is a directed relation between two node ids.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Attrs  Attrs  `json:"attributes"`
}
