package goknow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/goknow/collector"
	"github.com/brunobiangulo/goknow/export"
	"github.com/brunobiangulo/goknow/llm"
)

// MemoryCache as Config.CacheDir keeps fetched pages in memory only.
const MemoryCache = ":memory:"

// Source names accepted in Config.Sources.
const (
	SourceWeb       = "web"
	SourceAPI       = "api"
	SourceDocuments = "documents"
)

// Config holds all configuration for the goknow engine.
type Config struct {
	// DataDir is where the default graph, journal and cache paths live.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// GraphFile is the node-link JSON file backing the knowledge graph.
	GraphFile string `json:"graph_file" yaml:"graph_file" validate:"required"`

	// HistoryDB is the SQLite journal of questions and learn cycles.
	HistoryDB      string `json:"history_db" yaml:"history_db"`
	DisableHistory bool   `json:"disable_history" yaml:"disable_history"`

	// CacheDir holds fetched pages; MemoryCache keeps them in memory.
	CacheDir string        `json:"cache_dir" yaml:"cache_dir"`
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`

	// RelevanceThreshold is the score below which the engine collects new
	// information before answering.
	RelevanceThreshold float64 `json:"relevance_threshold" yaml:"relevance_threshold" validate:"gte=0,lte=1"`

	// MinConfidence is the record confidence below which learning rejects
	// a record; also the default entity confidence.
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence" validate:"gte=0,lte=1"`

	// Collection
	Sources      []string            `json:"sources" yaml:"sources" validate:"dive,oneof=web api documents"`
	Collector    collector.Config    `json:"collector" yaml:"collector"`
	Web          collector.WebConfig `json:"web" yaml:"web"`
	DocumentDirs []string            `json:"document_dirs" yaml:"document_dirs"`

	// LLM providers asked for facts by the api source, in priority order.
	LLM []llm.Config `json:"llm" yaml:"llm"`

	// Embedding provider for similar-question search; empty Provider
	// disables it.
	Embedding    llm.Config `json:"embedding" yaml:"embedding"`
	EmbeddingDim int        `json:"embedding_dim" yaml:"embedding_dim" validate:"gte=0"`

	Server ServerConfig       `json:"server" yaml:"server"`
	Neo4j  export.Neo4jConfig `json:"neo4j" yaml:"neo4j"`

	LogLevel         string `json:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	MetricsNamespace string `json:"metrics_namespace" yaml:"metrics_namespace"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr        string        `json:"addr" yaml:"addr"`
	APIKey      string        `json:"api_key" yaml:"api_key"`
	CORSOrigins []string      `json:"cors_origins" yaml:"cors_origins"`
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`
}

// DefaultConfig returns a Config with the data directory under ./data.
func DefaultConfig() Config {
	cfg := Config{
		DataDir:            "data",
		CacheTTL:           collector.DefaultCacheTTL,
		RelevanceThreshold: 0.6,
		MinConfidence:      0.6,
		Sources:            []string{SourceWeb, SourceAPI},
		Collector: collector.Config{
			MinResults: collector.DefaultMinResults,
			Timeout:    collector.DefaultTimeout,
		},
		Web: collector.DefaultWebConfig(),
		LLM: []llm.Config{
			{Provider: "gemini", Model: "gemini-2.0-flash"},
			{Provider: "openai", Model: "gpt-4o-mini"},
			{Provider: "anthropic", Model: "claude-3-5-haiku-latest"},
		},
		EmbeddingDim: 768,
		Server: ServerConfig{
			Addr:        ":8000",
			CORSOrigins: []string{"*"},
			ReadTimeout: 15 * time.Second,
		},
		Neo4j: export.Neo4jConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		LogLevel:         "info",
		MetricsNamespace: "goknow",
	}
	cfg.resolvePaths()
	return cfg
}

// resolvePaths fills empty file locations from DataDir.
func (c *Config) resolvePaths() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.GraphFile == "" {
		c.GraphFile = filepath.Join(c.DataDir, "knowledge_graph", "knowledge_graph.json")
	}
	if c.HistoryDB == "" {
		c.HistoryDB = filepath.Join(c.DataDir, "history.db")
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(c.DataDir, "cache")
	}
}

// LoadConfig reads a YAML (or .json) file over the defaults, then applies
// GOKNOW_* environment variables and provider API key fallbacks. An empty
// path loads defaults and environment only.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	// Paths derived from the default DataDir are recomputed after loading.
	cfg.GraphFile, cfg.HistoryDB, cfg.CacheDir = "", "", ""

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if strings.EqualFold(filepath.Ext(path), ".json") {
			err = json.Unmarshal(data, &cfg)
		} else {
			err = yaml.Unmarshal(data, &cfg)
		}
		if err != nil {
			return cfg, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, filepath.Base(path), err)
		}
	}

	cfg.applyEnv(os.Getenv)
	cfg.resolvePaths()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	float := func(key string, dst *float64) {
		if v := getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
	list := func(key string, dst *[]string) {
		if v := getenv(key); v != "" {
			*dst = splitList(v)
		}
	}

	str("GOKNOW_DATA_DIR", &c.DataDir)
	str("GOKNOW_GRAPH_FILE", &c.GraphFile)
	str("GOKNOW_HISTORY_DB", &c.HistoryDB)
	str("GOKNOW_CACHE_DIR", &c.CacheDir)
	str("GOKNOW_LOG_LEVEL", &c.LogLevel)
	str("GOKNOW_ADDR", &c.Server.Addr)
	str("GOKNOW_API_KEY", &c.Server.APIKey)
	str("GOKNOW_NEO4J_URI", &c.Neo4j.URI)
	str("GOKNOW_NEO4J_USER", &c.Neo4j.Username)
	str("GOKNOW_NEO4J_PASSWORD", &c.Neo4j.Password)
	float("GOKNOW_RELEVANCE_THRESHOLD", &c.RelevanceThreshold)
	float("GOKNOW_MIN_CONFIDENCE", &c.MinConfidence)
	list("GOKNOW_SOURCES", &c.Sources)
	list("GOKNOW_DOCUMENT_DIRS", &c.DocumentDirs)
	list("GOKNOW_SEED_URLS", &c.Web.SeedURLs)
	if v := getenv("GOKNOW_PARALLEL"); v != "" {
		c.Collector.Parallel, _ = strconv.ParseBool(v)
	}
	if v := getenv("GOKNOW_DISABLE_HISTORY"); v != "" {
		c.DisableHistory, _ = strconv.ParseBool(v)
	}

	for i := range c.LLM {
		fillAPIKey(&c.LLM[i], getenv)
	}
	fillAPIKey(&c.Embedding, getenv)
}

func fillAPIKey(cfg *llm.Config, getenv func(string) string) {
	if cfg.APIKey != "" {
		return
	}
	for _, key := range llm.KeyEnv(cfg.Provider) {
		if v := getenv(key); v != "" {
			cfg.APIKey = v
			return
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var configValidator = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// Validate reports the first configuration problems found, wrapped in
// ErrInvalidConfig.
func (c Config) Validate() error {
	var problems []string
	if err := configValidator.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, e := range verrs {
				problems = append(problems, fmt.Sprintf("%s failed %s", e.Namespace(), e.Tag()))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}
	known := llm.Providers()
	for i, p := range c.LLM {
		if p.Provider != "" && !slices.Contains(known, p.Provider) {
			problems = append(problems, fmt.Sprintf("llm[%d].provider %q is not one of %s", i, p.Provider, strings.Join(known, ", ")))
		}
	}
	if p := c.Embedding.Provider; p != "" && !slices.Contains(known, p) {
		problems = append(problems, fmt.Sprintf("embedding.provider %q is not one of %s", p, strings.Join(known, ", ")))
	}
	if c.Embedding.Provider != "" && c.EmbeddingDim <= 0 {
		problems = append(problems, "embedding_dim must be positive when an embedding provider is set")
	}
	if c.Collector.MinResults < 0 {
		problems = append(problems, "collector.min_results must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
