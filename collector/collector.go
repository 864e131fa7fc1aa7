package collector

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/goknow/learner"
	"github.com/brunobiangulo/goknow/metrics"
)

// Defaults for Config.
const (
	DefaultMinResults = 2
	DefaultTimeout    = 30 * time.Second
)

var tracer = otel.Tracer("github.com/brunobiangulo/goknow/collector")

// Config controls how much the collector gathers per question.
type Config struct {
	MinResults int           `json:"min_results" yaml:"min_results"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
	Parallel   bool          `json:"parallel" yaml:"parallel"`
}

// Collector fans a question out to its sources in priority order.
type Collector struct {
	cfg     Config
	sources []Source
	metrics *metrics.Collector
	logger  *zap.Logger
}

// New creates a collector. Sources are consulted in the given order.
func New(cfg Config, sources []Source, m *metrics.Collector, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinResults <= 0 {
		cfg.MinResults = DefaultMinResults
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Collector{cfg: cfg, sources: sources, metrics: m, logger: logger}
}

// Sources returns the source names in priority order.
func (c *Collector) Sources() []string {
	names := make([]string, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.Name()
	}
	return names
}

// Gather collects with the configured strategy and minimum.
func (c *Collector) Gather(ctx context.Context, query string) []learner.Record {
	if c.cfg.Parallel {
		return c.CollectParallel(ctx, query, c.cfg.MinResults)
	}
	return c.Collect(ctx, query, c.cfg.MinResults)
}

// Collect asks the sources one after another. The first source is always
// consulted; later ones only while fewer than minResults records exist.
func (c *Collector) Collect(ctx context.Context, query string, minResults int) []learner.Record {
	if minResults <= 0 {
		minResults = c.cfg.MinResults
	}
	ctx, span := tracer.Start(ctx, "collector.Collect")
	defer span.End()

	start := time.Now()
	var records []learner.Record
	for i, src := range c.sources {
		if i > 0 && len(records) >= minResults {
			break
		}
		if ctx.Err() != nil {
			break
		}
		need := max(1, minResults-len(records))
		records = append(records, c.run(ctx, src, query, need)...)
	}

	span.SetAttributes(attribute.Int("collector.records", len(records)))
	c.logger.Info("collection finished",
		zap.String("query", query),
		zap.Int("records", len(records)),
		zap.Duration("elapsed", time.Since(start)))
	return records
}

// CollectParallel asks every source at once and keeps whatever arrives
// before the timeout, at most 2*minResults records.
func (c *Collector) CollectParallel(ctx context.Context, query string, minResults int) []learner.Record {
	if minResults <= 0 {
		minResults = c.cfg.MinResults
	}
	ctx, span := tracer.Start(ctx, "collector.CollectParallel")
	defer span.End()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	limit := 2 * minResults
	results := make(chan learner.Record, limit)

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range c.sources {
		g.Go(func() error {
			for _, r := range c.run(gctx, src, query, minResults) {
				select {
				case results <- r:
				default:
					// channel full: limit already reached
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	records := make([]learner.Record, 0, limit)
	for r := range results {
		records = append(records, r)
	}

	span.SetAttributes(attribute.Int("collector.records", len(records)))
	c.logger.Info("parallel collection finished",
		zap.String("query", query),
		zap.Int("records", len(records)),
		zap.Duration("elapsed", time.Since(start)))
	return records
}

// run calls one source, recording metrics and absorbing its failures.
func (c *Collector) run(ctx context.Context, src Source, query string, max int) (records []learner.Record) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			records = nil
		}
		if err != nil {
			c.logger.Error("source failed", zap.String("source", src.Name()), zap.Error(err))
		}
		c.metrics.ObserveCollection(src.Name(), len(records), err)
	}()

	records, err = src.Collect(ctx, query, max)
	return records
}
