package learner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Entity is a named thing described by a record.
type Entity struct {
	Name        string         `json:"name" validate:"required"`
	Type        string         `json:"type,omitempty"`
	Description string         `json:"description,omitempty"`
	Confidence  *float64       `json:"confidence,omitempty" validate:"omitempty,min=0,max=1"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// Relation is a directed, typed link between two entities named by a record.
// Endpoints are entity names; SourceType and TargetType default to "entity".
type Relation struct {
	Source       string         `json:"source" validate:"required"`
	Target       string         `json:"target" validate:"required"`
	RelationType string         `json:"relation_type" validate:"required"`
	SourceType   string         `json:"source_type,omitempty"`
	TargetType   string         `json:"target_type,omitempty"`
	Description  string         `json:"description,omitempty"`
	Confidence   *float64       `json:"confidence,omitempty" validate:"omitempty,min=0,max=1"`
	Properties   map[string]any `json:"properties,omitempty"`
}

// Record is one unit of collected information.
type Record struct {
	Title      string     `json:"title,omitempty"`
	Content    string     `json:"content,omitempty"`
	URL        string     `json:"url,omitempty"`
	Source     string     `json:"source,omitempty"`
	Confidence *float64   `json:"confidence,omitempty"`
	Entities   []Entity   `json:"entities,omitempty"`
	Relations  []Relation `json:"relations,omitempty"`

	// dropped counts entities and relations discarded while decoding
	// because they were not objects or had wrongly typed fields.
	dropped int
}

// Float returns a pointer to v, for filling optional confidences.
func Float(v float64) *float64 { return &v }

// ErrNotObject is returned when a record is not a JSON object.
var ErrNotObject = errors.New("learner: record is not an object")

// UnmarshalJSON decodes a record leniently: a malformed entity or relation is
// dropped on its own instead of failing the whole record.
func (r *Record) UnmarshalJSON(data []byte) error {
	if !isObject(data) {
		return ErrNotObject
	}

	var raw struct {
		Title      string            `json:"title"`
		Content    string            `json:"content"`
		URL        string            `json:"url"`
		Source     string            `json:"source"`
		Confidence *float64          `json:"confidence"`
		Entities   []json.RawMessage `json:"entities"`
		Relations  []json.RawMessage `json:"relations"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding record: %w", err)
	}

	*r = Record{
		Title:      raw.Title,
		Content:    raw.Content,
		URL:        raw.URL,
		Source:     raw.Source,
		Confidence: raw.Confidence,
	}
	for _, item := range raw.Entities {
		var e Entity
		if !isObject(item) || json.Unmarshal(item, &e) != nil {
			r.dropped++
			continue
		}
		r.Entities = append(r.Entities, e)
	}
	for _, item := range raw.Relations {
		var rel Relation
		if !isObject(item) || json.Unmarshal(item, &rel) != nil {
			r.dropped++
			continue
		}
		r.Relations = append(r.Relations, rel)
	}
	return nil
}

// Dropped reports how many entities and relations were discarded while
// decoding the record.
func (r Record) Dropped() int { return r.dropped }

// DecodeRecords decodes a JSON document holding either one record or an
// array of records. Array items that are not valid records are skipped and
// reported in the returned error slice; only a document that is neither an
// object nor an array fails outright.
func DecodeRecords(data []byte) ([]Record, []error, error) {
	data = bytes.TrimSpace(data)
	if isObject(data) {
		var r Record
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, []error{err}, nil
		}
		return []Record{r}, nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, nil, fmt.Errorf("decoding records: %w", err)
	}
	records := make([]Record, 0, len(items))
	var skipped []error
	for i, item := range items {
		var r Record
		if err := json.Unmarshal(item, &r); err != nil {
			skipped = append(skipped, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		records = append(records, r)
	}
	return records, skipped, nil
}

func isObject(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '{'
}
