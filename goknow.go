// Package goknow answers questions from a persisted knowledge graph and
// learns new facts from the web, local documents and LLM APIs when the graph
// does not know enough.
package goknow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/brunobiangulo/goknow/collector"
	"github.com/brunobiangulo/goknow/graph"
	"github.com/brunobiangulo/goknow/learner"
	"github.com/brunobiangulo/goknow/llm"
	"github.com/brunobiangulo/goknow/metrics"
	"github.com/brunobiangulo/goknow/nlp"
	"github.com/brunobiangulo/goknow/parser"
	"github.com/brunobiangulo/goknow/reasoning"
	"github.com/brunobiangulo/goknow/store"
)

var tracer = otel.Tracer("github.com/brunobiangulo/goknow")

// centralNodes is how many PageRank leaders Stats reports.
const centralNodes = 10

// Engine is the question answering assistant.
type Engine interface {
	// Ask answers a question, collecting and learning new information first
	// when the graph's answer would not be relevant enough.
	Ask(ctx context.Context, question string) (*Answer, error)

	// Learn integrates records into the graph with queryContext as the
	// question they were gathered for. It reports false when there was
	// nothing to learn or learning failed.
	Learn(ctx context.Context, records []learner.Record, queryContext string) bool

	// LastLearn returns the counters of the most recent learn cycle.
	LastLearn() learner.Stats

	// Stats reports graph and journal sizes.
	Stats(ctx context.Context) (*Stats, error)

	// History returns the most recently answered questions.
	History(ctx context.Context, limit int) ([]store.QueryLog, error)

	// SearchHistory returns answered questions containing substr.
	SearchHistory(ctx context.Context, substr string, limit int) ([]store.QueryLog, error)

	// SimilarQuestions returns past questions nearest to question by
	// embedding.
	SimilarQuestions(ctx context.Context, question string, k int) ([]store.SimilarQuestion, error)

	// Graph returns the knowledge store for diagnostics and export. Callers
	// must not use it concurrently with Ask or Learn.
	Graph() *graph.Store

	// Config returns the active configuration.
	Config() Config

	// Reload applies thresholds and collector settings from cfg.
	Reload(cfg Config) error

	// Metrics returns the engine's Prometheus collector.
	Metrics() *metrics.Collector

	// Close releases the journal and the fetch cache.
	Close() error
}

// Answer is the engine's reply to a question.
type Answer struct {
	reasoning.Answer

	// ID is the journal id of the question, empty when history is off.
	ID       string `json:"id,omitempty"`
	Question string `json:"question"`

	// Collected reports whether new information was gathered and learned
	// before answering.
	Collected bool `json:"new_information_collected"`

	// Relevance is the graph's relevance score before collection.
	Relevance   float64 `json:"relevance"`
	ProcessTime float64 `json:"process_time"`
}

// Stats summarises the knowledge graph and the journal.
type Stats struct {
	Nodes      int              `json:"nodes"`
	Edges      int              `json:"edges"`
	Types      map[string]int   `json:"types"`
	Components int              `json:"components"`
	Density    float64          `json:"density"`
	Central    []graph.Ranked   `json:"central"`
	GraphFile  string           `json:"graph_file"`
	GraphBytes int64            `json:"graph_bytes"`
	Backups    int              `json:"backups"`
	History    *store.Stats     `json:"history,omitempty"`
	Sources    []string         `json:"sources"`
	Providers  []llm.Capability `json:"providers"`
	LastLearn  learner.Stats    `json:"last_learn"`
}

// Option configures New.
type Option func(*options)

type options struct {
	logger   *zap.Logger
	level    *zap.AtomicLevel
	sources  []collector.Source
	metrics  *metrics.Collector
	embedder llm.Provider
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLogLevel hands the engine the level of its logger so that Reload can
// apply Config.LogLevel. A nil level leaves verbosity alone.
func WithLogLevel(l *zap.AtomicLevel) Option {
	return func(o *options) { o.level = l }
}

// WithSources replaces the sources built from configuration.
func WithSources(sources ...collector.Source) Option {
	return func(o *options) { o.sources = sources }
}

// WithMetrics shares an existing metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(o *options) { o.metrics = m }
}

// WithEmbedder sets the provider used to embed questions, overriding
// Config.Embedding.
func WithEmbedder(p llm.Provider) Option {
	return func(o *options) { o.embedder = p }
}

// engine is the concrete implementation of Engine.
type engine struct {
	// mu serialises every access to graph, learner and cfg. It is released
	// while sources are being consulted.
	mu        sync.Mutex
	cfg       Config
	graph     *graph.Store
	learner   *learner.Learner
	reasoner  *reasoning.Engine
	collector *collector.Collector
	sources   []collector.Source
	providers []llm.Capability
	journal   *store.Store
	embedder  llm.Provider
	cache     *collector.Cache
	metrics   *metrics.Collector
	logger    *zap.Logger
	level     *zap.AtomicLevel
	closed    bool
}

// New creates an engine from cfg.
func New(cfg Config, opts ...Option) (Engine, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	cfg.resolvePaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if o.metrics == nil {
		o.metrics = metrics.NewCollector(cfg.MetricsNamespace)
	}

	e := &engine{
		cfg:     cfg,
		metrics: o.metrics,
		logger:  o.logger,
		level:   o.level,
	}

	e.graph = graph.Open(cfg.GraphFile, graph.WithLogger(o.logger.Named("graph")))
	e.learner = learner.New(e.graph,
		learner.WithLogger(o.logger.Named("learner")),
		learner.WithMinConfidence(cfg.MinConfidence))
	e.reasoner = reasoning.New(reasoning.WithLogger(o.logger.Named("reasoning")))

	e.embedder = o.embedder
	if e.embedder == nil && cfg.Embedding.Provider != "" {
		e.embedder = e.newProvider(cfg.Embedding, "embedding")
	}

	if !cfg.DisableHistory {
		dim := 0
		if e.embedder != nil {
			dim = cfg.EmbeddingDim
		}
		journal, err := store.New(cfg.HistoryDB, dim, o.logger)
		if err != nil {
			return nil, fmt.Errorf("opening history journal: %w", err)
		}
		e.journal = journal
	}

	e.sources = o.sources
	if e.sources == nil {
		if err := e.buildSources(); err != nil {
			e.Close()
			return nil, err
		}
	}
	e.collector = collector.New(cfg.Collector, e.sources, e.metrics, o.logger.Named("collector"))
	e.metrics.SetGraphSize(e.graph.NodeCount(), e.graph.EdgeCount())

	e.logger.Info("goknow engine ready",
		zap.String("graph", cfg.GraphFile),
		zap.Strings("sources", e.collector.Sources()),
		zap.Bool("history", e.journal != nil),
		zap.Bool("embeddings", e.embedder != nil))
	return e, nil
}

// buildSources creates the sources named in the configuration, in order.
func (e *engine) buildSources() error {
	for _, name := range e.cfg.Sources {
		switch name {
		case SourceWeb:
			if e.cache == nil {
				dir := e.cfg.CacheDir
				if dir == MemoryCache {
					dir = ""
				}
				cache, err := collector.OpenCache(dir, e.cfg.CacheTTL, e.metrics, e.logger.Named("cache"))
				if err != nil {
					return fmt.Errorf("opening fetch cache: %w", err)
				}
				e.cache = cache
			}
			e.sources = append(e.sources, collector.NewWebSource(e.cfg.Web, e.cache, e.logger.Named("web")))

		case SourceAPI:
			var named []collector.NamedProvider
			for _, pc := range e.cfg.LLM {
				p := e.newProvider(pc, "api")
				if p == nil {
					continue
				}
				named = append(named, collector.NamedProvider{Name: pc.Provider, Model: pc.Model, Provider: p})
			}
			if len(named) == 0 {
				e.logger.Warn("api source enabled but no provider is available")
				continue
			}
			e.sources = append(e.sources, collector.NewAPISource(named, e.logger.Named("api")))

		case SourceDocuments:
			registry := parser.NewRegistry(e.logger.Named("parser"))
			e.sources = append(e.sources, collector.NewDocumentSource(e.cfg.DocumentDirs, registry, nil, e.logger.Named("documents")))
		}
	}
	return nil
}

// newProvider resolves the capability of pc and returns the provider behind
// a circuit breaker, or nil when it is unavailable.
func (e *engine) newProvider(pc llm.Config, role string) llm.Provider {
	capability := llm.ResolveCapability(pc)
	e.providers = append(e.providers, capability)
	if !capability.Available {
		e.logger.Info("llm provider unavailable",
			zap.String("role", role),
			zap.String("provider", pc.Provider),
			zap.String("reason", capability.Reason))
		return nil
	}
	pc.Logger = e.logger.Named("llm")
	p, err := llm.NewProvider(pc)
	if err != nil {
		e.logger.Warn("creating llm provider", zap.String("provider", pc.Provider), zap.Error(err))
		return nil
	}
	return llm.NewBreaker(p, llm.DefaultBreakerConfig(role+":"+pc.Provider), e.logger)
}

func (e *engine) Ask(ctx context.Context, question string) (*Answer, error) {
	start := time.Now()
	question = nlp.SanitizeInput(question)
	if !nlp.ValidQuery(question) {
		return nil, ErrEmptyQuestion
	}

	ctx, span := tracer.Start(ctx, "goknow.Ask")
	defer span.End()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	threshold := e.cfg.RelevanceThreshold
	coll := e.collector
	results := e.graph.Query(question)
	e.mu.Unlock()

	relevance := reasoning.EvaluateRelevance(results, question)
	e.logger.Info("question received",
		zap.String("question", question),
		zap.Int("results", len(results)),
		zap.Float64("relevance", relevance))

	collected := false
	if len(results) == 0 || relevance < threshold {
		records := coll.Gather(ctx, question)
		span.SetAttributes(attribute.Int("goknow.collected_records", len(records)))
		if len(records) > 0 {
			e.mu.Lock()
			if e.closed {
				e.mu.Unlock()
				return nil, ErrClosed
			}
			// Collected records are learned even when the caller has
			// gone away.
			learnCtx := context.WithoutCancel(ctx)
			stats, ok := e.learnLocked(learnCtx, records, question)
			if ok {
				collected = true
				results = e.graph.Query(question)
			}
			e.mu.Unlock()
			if ok {
				e.journalLearn(learnCtx, question, stats)
			}
		}
	}

	ra := e.reasoner.Reason(question, results)
	ans := &Answer{
		Answer:      *ra,
		Question:    question,
		Collected:   collected,
		Relevance:   relevance,
		ProcessTime: time.Since(start).Seconds(),
	}
	ans.ID = e.journalQuery(ctx, ans)

	span.SetAttributes(
		attribute.String("goknow.question_type", string(ans.QuestionType)),
		attribute.Bool("goknow.collected", collected),
		attribute.Float64("goknow.confidence", ans.Confidence))
	if !ans.Success {
		span.SetStatus(codes.Error, "no answer")
	}
	e.metrics.ObserveQuery(string(ans.QuestionType), collected, time.Since(start))
	return ans, nil
}

func (e *engine) Learn(ctx context.Context, records []learner.Record, queryContext string) bool {
	ctx, span := tracer.Start(ctx, "goknow.Learn")
	defer span.End()
	span.SetAttributes(attribute.Int("goknow.records", len(records)))

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.logger.Warn("learn on closed engine")
		return false
	}
	stats, ok := e.learnLocked(ctx, records, queryContext)
	e.mu.Unlock()

	if ok {
		e.journalLearn(ctx, queryContext, stats)
	}
	return ok
}

// learnLocked runs one learn cycle. e.mu must be held.
func (e *engine) learnLocked(ctx context.Context, records []learner.Record, queryContext string) (learner.Stats, bool) {
	ok := e.learner.Learn(ctx, records, queryContext)
	stats := e.learner.LastStats()
	if ok {
		e.metrics.ObserveLearn(stats.Records-stats.Rejected-stats.Contradictions, stats.Entities(), stats.RelationsAdded)
	}
	e.metrics.SetGraphSize(e.graph.NodeCount(), e.graph.EdgeCount())
	return stats, ok
}

func (e *engine) LastLearn() learner.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.learner.LastStats()
}

func (e *engine) journalLearn(ctx context.Context, queryContext string, stats learner.Stats) {
	if e.journal == nil {
		return
	}
	_, err := e.journal.LogLearn(ctx, store.LearnLog{
		Context:   queryContext,
		Records:   stats.Records,
		Entities:  stats.Entities(),
		Relations: stats.RelationsAdded,
	})
	if err != nil {
		e.logger.Warn("journaling learn cycle", zap.Error(err))
	}
}

// journalQuery records the answer and the question's embedding. Failures
// are logged and never fail the question.
func (e *engine) journalQuery(ctx context.Context, ans *Answer) string {
	if e.journal == nil {
		return ""
	}
	id, err := e.journal.LogQuery(ctx, store.QueryLog{
		Question:     ans.Question,
		Answer:       ans.Text,
		Confidence:   ans.Confidence,
		QuestionType: string(ans.QuestionType),
		Sources:      ans.Sources,
		Collected:    ans.Collected,
		ProcessMS:    int64(ans.ProcessTime * 1000),
	})
	if err != nil {
		e.logger.Warn("journaling question", zap.Error(err))
		return ""
	}

	if e.embedder != nil && e.journal.EmbeddingDim() > 0 {
		vec, err := e.embed(ctx, ans.Question)
		if err == nil {
			err = e.journal.InsertQuestionEmbedding(ctx, id, vec)
		}
		if err != nil {
			e.logger.Warn("indexing question embedding", zap.String("id", id), zap.Error(err))
		}
	}
	return id
}

func (e *engine) embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, errors.New("embedding provider returned no vectors")
	}
	return vecs[0], nil
}

func (e *engine) Stats(ctx context.Context) (*Stats, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	analysis := e.graph.Graph().Analyze()
	stats := &Stats{
		Nodes:      analysis.Nodes,
		Edges:      analysis.Edges,
		Types:      analysis.Types,
		Components: analysis.Components,
		Density:    analysis.Density,
		Central:    e.graph.Graph().Centrality(centralNodes),
		GraphFile:  e.graph.Path(),
		Sources:    e.collector.Sources(),
		Providers:  e.providers,
		LastLearn:  e.learner.LastStats(),
	}
	backups, err := e.graph.Backups()
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn("listing graph backups", zap.Error(err))
	}
	stats.Backups = len(backups)
	if fi, err := os.Stat(stats.GraphFile); err == nil {
		stats.GraphBytes = fi.Size()
	}

	if e.journal != nil {
		h, err := e.journal.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading history stats: %w", err)
		}
		stats.History = h
	}
	return stats, nil
}

func (e *engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *engine) History(ctx context.Context, limit int) ([]store.QueryLog, error) {
	if e.isClosed() {
		return nil, ErrClosed
	}
	if e.journal == nil {
		return nil, ErrHistoryDisabled
	}
	return e.journal.RecentQueries(ctx, limit)
}

func (e *engine) SearchHistory(ctx context.Context, substr string, limit int) ([]store.QueryLog, error) {
	if e.isClosed() {
		return nil, ErrClosed
	}
	if e.journal == nil {
		return nil, ErrHistoryDisabled
	}
	return e.journal.SearchQueries(ctx, substr, limit)
}

func (e *engine) SimilarQuestions(ctx context.Context, question string, k int) ([]store.SimilarQuestion, error) {
	if e.isClosed() {
		return nil, ErrClosed
	}
	if e.journal == nil {
		return nil, ErrHistoryDisabled
	}
	if e.embedder == nil || e.journal.EmbeddingDim() == 0 {
		return nil, ErrNoEmbeddings
	}
	question = nlp.SanitizeInput(question)
	if !nlp.ValidQuery(question) {
		return nil, ErrEmptyQuestion
	}
	vec, err := e.embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}
	return e.journal.SimilarQuestions(ctx, vec, k)
}

func (e *engine) Graph() *graph.Store { return e.graph }

func (e *engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Reload applies the thresholds, collector settings and log level of cfg.
// Storage paths, sources and providers keep their startup values.
func (e *engine) Reload(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.cfg.RelevanceThreshold = cfg.RelevanceThreshold
	e.cfg.MinConfidence = cfg.MinConfidence
	e.cfg.Collector = cfg.Collector
	e.cfg.LogLevel = cfg.LogLevel
	if e.level != nil {
		if lvl, err := parseLevel(cfg.LogLevel); err == nil {
			e.level.SetLevel(lvl)
		}
	}
	e.learner.SetMinConfidence(cfg.MinConfidence)
	e.collector = collector.New(cfg.Collector, e.sources, e.metrics, e.logger.Named("collector"))
	e.logger.Info("configuration reloaded",
		zap.Float64("relevance_threshold", cfg.RelevanceThreshold),
		zap.Float64("min_confidence", cfg.MinConfidence),
		zap.Int("min_results", cfg.Collector.MinResults),
		zap.Bool("parallel", cfg.Collector.Parallel))
	return nil
}

func (e *engine) Metrics() *metrics.Collector { return e.metrics }

func (e *engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	if e.journal != nil {
		if err := e.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing journal: %w", err))
		}
	}
	if err := e.cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing cache: %w", err))
	}
	return errors.Join(errs...)
}
