// Package metrics exposes Prometheus instrumentation on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric of the assistant. A nil *Collector is valid
// and records nothing.
type Collector struct {
	registry *prometheus.Registry

	Queries       *prometheus.CounterVec
	AnswerLatency *prometheus.HistogramVec
	Collections   *prometheus.CounterVec
	Collected     *prometheus.CounterVec
	Learned       *prometheus.CounterVec
	GraphNodes    prometheus.Gauge
	GraphEdges    prometheus.Gauge
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
}

// NewCollector creates the metrics under namespace and registers them on a
// fresh registry.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Questions answered, by question type and whether collection ran.",
		}, []string{"question_type", "collected"}),
		AnswerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "answer_duration_seconds",
			Help:      "End-to-end time to answer a question.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 3, 10),
		}, []string{"collected"}),
		Collections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collections_total",
			Help:      "Collection attempts per source and outcome.",
		}, []string{"source", "status"}),
		Collected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collected_records_total",
			Help:      "Records returned by each source.",
		}, []string{"source"}),
		Learned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "learned_total",
			Help:      "Records, entities and relations integrated into the graph.",
		}, []string{"kind"}),
		GraphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_nodes",
			Help:      "Nodes in the knowledge graph.",
		}),
		GraphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_edges",
			Help:      "Edges in the knowledge graph.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_cache_hits_total",
			Help:      "Fetches served from the page cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_cache_misses_total",
			Help:      "Fetches that went to the network.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	c.registry.MustRegister(
		c.Queries, c.AnswerLatency, c.Collections, c.Collected, c.Learned,
		c.GraphNodes, c.GraphEdges, c.CacheHits, c.CacheMisses,
		c.HTTPRequests, c.HTTPDuration,
	)
	return c
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveQuery records one answered question.
func (c *Collector) ObserveQuery(questionType string, collected bool, d time.Duration) {
	if c == nil {
		return
	}
	if questionType == "" {
		questionType = "none"
	}
	col := strconv.FormatBool(collected)
	c.Queries.WithLabelValues(questionType, col).Inc()
	c.AnswerLatency.WithLabelValues(col).Observe(d.Seconds())
}

// ObserveCollection records one call to a source.
func (c *Collector) ObserveCollection(source string, records int, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.Collections.WithLabelValues(source, status).Inc()
	c.Collected.WithLabelValues(source).Add(float64(records))
}

// ObserveLearn records the outcome of one learn cycle.
func (c *Collector) ObserveLearn(records, entities, relations int) {
	if c == nil {
		return
	}
	c.Learned.WithLabelValues("records").Add(float64(records))
	c.Learned.WithLabelValues("entities").Add(float64(entities))
	c.Learned.WithLabelValues("relations").Add(float64(relations))
}

// SetGraphSize publishes the current graph size.
func (c *Collector) SetGraphSize(nodes, edges int) {
	if c == nil {
		return
	}
	c.GraphNodes.Set(float64(nodes))
	c.GraphEdges.Set(float64(edges))
}

// CacheHit counts a page cache hit.
func (c *Collector) CacheHit() {
	if c != nil {
		c.CacheHits.Inc()
	}
}

// CacheMiss counts a page cache miss.
func (c *Collector) CacheMiss() {
	if c != nil {
		c.CacheMisses.Inc()
	}
}

// ObserveHTTP records one served HTTP request.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
