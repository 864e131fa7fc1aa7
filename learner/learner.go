// Package learner integrates collected fact records into the knowledge graph.
package learner

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/brunobiangulo/goknow/graph"
	"github.com/brunobiangulo/goknow/nlp"
)

// DefaultMinConfidence is the record confidence below which records are
// rejected, and the confidence given to facts that state none.
const DefaultMinConfidence = 0.6

// fallbackDescriptionRunes bounds the description derived from content when
// a record carries a title but no entities.
const fallbackDescriptionRunes = 200

// Contradiction describes existing knowledge that conflicts with a record.
type Contradiction struct {
	NodeID     string
	Confidence float64
	Reason     string
}

// ContradictionChecker inspects a record against the store before it is
// integrated. A nil result means no conflict.
type ContradictionChecker interface {
	Check(ctx context.Context, store *graph.Store, rec Record) *Contradiction
}

// NoContradictions never reports a conflict.
type NoContradictions struct{}

// Check implements ContradictionChecker.
func (NoContradictions) Check(context.Context, *graph.Store, Record) *Contradiction { return nil }

// Stats counts what one Learn call did.
type Stats struct {
	Records          int `json:"records"`
	Rejected         int `json:"rejected"`
	Contradictions   int `json:"contradictions"`
	EntitiesCreated  int `json:"entities_created"`
	EntitiesMerged   int `json:"entities_merged"`
	EntitiesInvalid  int `json:"entities_invalid"`
	RelationsAdded   int `json:"relations_added"`
	RelationsSkipped int `json:"relations_skipped"`
	ContextLinks     int `json:"context_links"`
	Malformed        int `json:"malformed"`
}

// Entities returns the number of entities written to the store.
func (s Stats) Entities() int { return s.EntitiesCreated + s.EntitiesMerged }

// Learner writes records into a graph.Store. Like the store it is not safe
// for concurrent use.
type Learner struct {
	store         *graph.Store
	logger        *zap.Logger
	validate      *validator.Validate
	checker       ContradictionChecker
	minConfidence float64
	last          Stats
}

// Option configures a Learner.
type Option func(*Learner)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(ln *Learner) {
		if l != nil {
			ln.logger = l
		}
	}
}

// WithMinConfidence overrides DefaultMinConfidence.
func WithMinConfidence(c float64) Option {
	return func(ln *Learner) { ln.minConfidence = c }
}

// WithContradictionChecker installs a contradiction hook.
func WithContradictionChecker(c ContradictionChecker) Option {
	return func(ln *Learner) {
		if c != nil {
			ln.checker = c
		}
	}
}

// New returns a Learner writing into store.
func New(store *graph.Store, opts ...Option) *Learner {
	ln := &Learner{
		store:         store,
		logger:        zap.NewNop(),
		validate:      newValidator(),
		checker:       NoContradictions{},
		minConfidence: DefaultMinConfidence,
	}
	for _, o := range opts {
		o(ln)
	}
	return ln
}

// SetMinConfidence changes the confidence threshold for later calls.
func (ln *Learner) SetMinConfidence(c float64) { ln.minConfidence = c }

// LastStats returns the counters of the most recent Learn call.
func (ln *Learner) LastStats() Stats { return ln.last }

// LearnOne integrates a single record.
func (ln *Learner) LearnOne(ctx context.Context, rec Record, queryContext string) bool {
	return ln.Learn(ctx, []Record{rec}, queryContext)
}

// Learn integrates records in order and saves the store once at the end.
// The batch always runs to completion; ctx is only handed to the
// contradiction checker. Invalid records, entities and relations are
// skipped and logged. It
// returns false only when there is nothing to learn or processing panicked;
// a failed save is logged and does not change the result.
func (ln *Learner) Learn(ctx context.Context, records []Record, queryContext string) (ok bool) {
	ln.last = Stats{}
	if len(records) == 0 {
		ln.logger.Warn("no information to learn")
		return false
	}
	ln.logger.Info("learning", zap.Int("records", len(records)), zap.String("context", queryContext))

	defer func() {
		if r := recover(); r != nil {
			ln.logger.Error("learning failed", zap.Any("panic", r), zap.Stack("stack"))
			ok = false
		}
	}()

	for i := range records {
		ln.process(ctx, records[i], queryContext)
	}

	if err := ln.store.Save(); err != nil {
		ln.logger.Error("saving after learning", zap.Error(err))
	}
	ln.logger.Info("learning done",
		zap.Int("entities_created", ln.last.EntitiesCreated),
		zap.Int("entities_merged", ln.last.EntitiesMerged),
		zap.Int("relations_added", ln.last.RelationsAdded),
		zap.Int("rejected", ln.last.Rejected))
	return true
}

func (ln *Learner) process(ctx context.Context, rec Record, queryContext string) {
	ln.last.Records++
	ln.last.Malformed += rec.dropped
	if err := ln.validateRecord(rec); err != nil {
		ln.last.Rejected++
		ln.logger.Warn("invalid record, skipping", zap.String("title", rec.Title), zap.Error(err))
		return
	}

	if c := ln.checker.Check(ctx, ln.store, rec); c != nil {
		ln.last.Contradictions++
		ln.resolve(rec, c)
		return
	}

	entities, relations := extract(rec)
	source := rec.Source
	if source == "" {
		source = "unknown"
	}

	var linked []string
	for _, e := range entities {
		if err := ln.validate.Struct(e); err != nil {
			ln.last.EntitiesInvalid++
			ln.logger.Warn("invalid entity, skipping",
				zap.String("name", e.Name), zap.Error(formatValidationError(err)))
			continue
		}
		linked = append(linked, ln.upsertEntity(e, rec, source))
	}

	for _, r := range relations {
		if err := ln.validate.Struct(r); err != nil {
			ln.last.RelationsSkipped++
			ln.logger.Warn("invalid relation, skipping",
				zap.String("source", r.Source), zap.String("target", r.Target),
				zap.Error(formatValidationError(err)))
			continue
		}
		ln.addRelation(r, rec, source)
	}

	if queryContext != "" && len(linked) > 0 {
		ln.linkContext(queryContext, linked)
	}
}

func (ln *Learner) validateRecord(rec Record) error {
	if rec.Confidence != nil && *rec.Confidence < ln.minConfidence {
		return fmt.Errorf("confidence %.2f below %.2f", *rec.Confidence, ln.minConfidence)
	}
	if len(rec.Entities) == 0 && len(rec.Relations) == 0 && rec.Content == "" {
		return fmt.Errorf("record has no entities, relations or content")
	}
	return nil
}

// resolve keeps whichever side is more confident. Either way the record is
// not integrated.
func (ln *Learner) resolve(rec Record, c *Contradiction) {
	incoming := 0.0
	if rec.Confidence != nil {
		incoming = *rec.Confidence
	}
	if incoming > c.Confidence {
		ln.logger.Info("contradiction: incoming record is more confident",
			zap.String("node", c.NodeID), zap.String("reason", c.Reason))
		return
	}
	ln.logger.Info("contradiction: keeping existing knowledge",
		zap.String("node", c.NodeID), zap.String("reason", c.Reason))
}

// extract returns the record's entities and relations. A record with
// neither falls back to one concept named after its title.
func extract(rec Record) ([]Entity, []Relation) {
	if len(rec.Entities) > 0 || len(rec.Relations) > 0 {
		return rec.Entities, rec.Relations
	}
	if rec.Content == "" || rec.Title == "" {
		return nil, nil
	}
	return []Entity{{
		Name:        rec.Title,
		Type:        graph.TypeConcept,
		Description: nlp.Truncate(rec.Content, fallbackDescriptionRunes),
	}}, nil
}

func (ln *Learner) upsertEntity(e Entity, rec Record, source string) string {
	typ := e.Type
	if typ == "" {
		typ = graph.TypeEntity
	}
	id := graph.MakeID(e.Name, typ)

	if current, ok := ln.store.GetNode(id); ok {
		ln.mergeEntity(id, current, e)
		ln.last.EntitiesMerged++
		return id
	}

	attrs := graph.Attrs{
		graph.AttrName:        e.Name,
		graph.AttrType:        typ,
		graph.AttrDescription: e.Description,
		graph.AttrSource:      source,
		graph.AttrConfidence:  ln.confidence(e.Confidence, rec),
	}
	for k, v := range e.Properties {
		attrs[graph.PropPrefix+k] = v
	}
	ln.store.AddNode(id, attrs)
	ln.last.EntitiesCreated++
	ln.logger.Debug("entity added", zap.String("name", e.Name), zap.String("id", id))
	return id
}

// mergeEntity refreshes an existing node: a longer description replaces
// the old one, properties are overlaid and confidence only ever rises.
func (ln *Learner) mergeEntity(id string, current graph.Attrs, e Entity) {
	update := graph.Attrs{}
	if e.Description != "" {
		old := current.String(graph.AttrDescription)
		if _, has := current[graph.AttrDescription]; !has ||
			utf8.RuneCountInString(e.Description) > utf8.RuneCountInString(old) {
			update[graph.AttrDescription] = e.Description
		}
	}
	for k, v := range e.Properties {
		update[graph.PropPrefix+k] = v
	}
	if e.Confidence != nil {
		cur, _ := current.Float(graph.AttrConfidence)
		if *e.Confidence > cur {
			update[graph.AttrConfidence] = *e.Confidence
		}
	}
	ln.store.AddNode(id, update)
	ln.logger.Debug("entity merged", zap.String("id", id), zap.Int("attributes", len(update)))
}

func (ln *Learner) addRelation(r Relation, rec Record, source string) {
	srcType, dstType := r.SourceType, r.TargetType
	if srcType == "" {
		srcType = graph.TypeEntity
	}
	if dstType == "" {
		dstType = graph.TypeEntity
	}
	srcID := graph.MakeID(r.Source, srcType)
	dstID := graph.MakeID(r.Target, dstType)

	if !ln.store.HasNode(srcID) || !ln.store.HasNode(dstID) {
		ln.last.RelationsSkipped++
		ln.logger.Warn("relation endpoints missing",
			zap.String("source", srcID), zap.String("target", dstID))
		return
	}

	attrs := graph.Attrs{
		graph.AttrDescription: r.Description,
		graph.AttrSource:      source,
		graph.AttrConfidence:  ln.confidence(r.Confidence, rec),
	}
	for k, v := range r.Properties {
		attrs[graph.PropPrefix+k] = v
	}
	if ln.store.AddEdge(srcID, dstID, r.RelationType, attrs) {
		ln.last.RelationsAdded++
		ln.logger.Debug("relation added",
			zap.String("source", r.Source), zap.String("target", r.Target),
			zap.String("relation_type", r.RelationType))
	}
}

func (ln *Learner) linkContext(queryContext string, entityIDs []string) {
	ctxID := graph.MakeID(queryContext, graph.TypeContext)
	if !ln.store.HasNode(ctxID) {
		ln.store.AddNode(ctxID, graph.Attrs{
			graph.AttrName: queryContext,
			graph.AttrType: graph.TypeContext,
		})
		ln.logger.Debug("context node created", zap.String("id", ctxID))
	}
	for _, id := range entityIDs {
		if ln.store.AddEdge(ctxID, id, graph.RelRelatedTo, graph.Attrs{graph.AttrConfidence: 1.0}) {
			ln.last.ContextLinks++
		}
	}
}

// confidence applies the fallback chain: the fact's own value, then the
// record's, then the minimum threshold.
func (ln *Learner) confidence(own *float64, rec Record) float64 {
	if own != nil {
		return *own
	}
	if rec.Confidence != nil {
		return *rec.Confidence
	}
	return ln.minConfidence
}

