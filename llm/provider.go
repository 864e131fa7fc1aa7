package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Provider is the interface for LLM interactions.
type Provider interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Embed generates embeddings for a batch of texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

var (
	// ErrEmbeddingsUnsupported is returned by providers without an embedding API.
	ErrEmbeddingsUnsupported = errors.New("llm: provider does not support embeddings")
	// ErrNoProvider is returned when a Config names no provider.
	ErrNoProvider = errors.New("llm provider not specified")
	// ErrUnknownProvider is returned for a provider name outside Providers().
	ErrUnknownProvider = errors.New("unknown llm provider")
)

// ChatRequest is a chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	// "json_object" asks for a JSON reply where the backend supports it.
	ResponseFormat string `json:"response_format,omitempty"`
}

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// System returns a system-role message.
func System(content string) Message { return Message{Role: "system", Content: content} }

// User returns a user-role message.
func User(content string) Message { return Message{Role: "user", Content: content} }

// ChatResponse is the normalized reply of any backend.
type ChatResponse struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	FinishReason     string `json:"finish_reason"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// Config selects and configures one backend. Empty BaseURL and Model fall
// back to the backend's defaults.
type Config struct {
	Provider string        `json:"provider" yaml:"provider"`
	Model    string        `json:"model" yaml:"model"`
	BaseURL  string        `json:"base_url" yaml:"base_url"`
	APIKey   string        `json:"api_key" yaml:"api_key"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`

	Logger *zap.Logger `json:"-" yaml:"-"`
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// backend is one entry of the provider table.
type backend struct {
	baseURL string
	model   string
	keyEnv  []string // variables that may hold the API key
	local   bool     // runs on the user's machine; no key needed
	build   func(Config) Provider
}

func versioned(cfg Config) Provider { return &compatProvider{base: newCompatClient(cfg, "/v1")} }
func unversioned(cfg Config) Provider { return &compatProvider{base: newCompatClient(cfg, "")} }

var backends = map[string]backend{
	"ollama": {baseURL: "http://localhost:11434", local: true, build: NewOllama},
	"openai": {
		baseURL: "https://api.openai.com",
		model:   "gpt-4o-mini",
		keyEnv:  []string{"OPENAI_API_KEY"},
		build:   versioned,
	},
	// Gemini mounts its OpenAI-compatible API without the /v1 prefix.
	"gemini": {
		baseURL: "https://generativelanguage.googleapis.com/v1beta/openai",
		model:   "gemini-2.0-flash",
		keyEnv:  []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"},
		build:   unversioned,
	},
	"anthropic": {
		baseURL: anthropicBaseURL,
		model:   anthropicModel,
		keyEnv:  []string{"ANTHROPIC_API_KEY"},
		build:   NewAnthropic,
	},
	"lmstudio":   {baseURL: "http://localhost:1234", local: true, build: versioned},
	"openrouter": {baseURL: "https://openrouter.ai/api", keyEnv: []string{"OPENROUTER_API_KEY"}, build: versioned},
	"groq":       {baseURL: "https://api.groq.com/openai", keyEnv: []string{"GROQ_API_KEY"}, build: versioned},
	"xai":        {baseURL: "https://api.x.ai", keyEnv: []string{"XAI_API_KEY"}, build: versioned},
	"custom":     {local: true, build: versioned},
}

// Providers lists the supported provider names in sorted order.
func Providers() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KeyEnv returns the environment variables conventionally holding the API
// key of provider, most specific first.
func KeyEnv(provider string) []string {
	return backends[provider].keyEnv
}

// NewProvider creates an LLM provider from configuration.
func NewProvider(cfg Config) (Provider, error) {
	if cfg.Provider == "" {
		return nil, ErrNoProvider
	}
	b, ok := backends[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = b.baseURL
	}
	if cfg.Model == "" {
		cfg.Model = b.model
	}
	return b.build(cfg), nil
}

// NewOpenAICompat creates a provider for any server speaking the OpenAI
// chat and embeddings API under /v1.
func NewOpenAICompat(cfg Config) Provider { return versioned(cfg) }
