package llm

import (
	"context"
	"fmt"
	"net/http"
)

// ollamaProvider chats through Ollama's OpenAI-compatible endpoint and
// embeds through the native /api/embed, which batches inputs.
type ollamaProvider struct {
	base *compatClient
}

// NewOllama creates a provider for a local Ollama server.
func NewOllama(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	return &ollamaProvider{base: newCompatClient(cfg, "/v1")}
}

func (p *ollamaProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func (p *ollamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := call[ollamaEmbedResponse](ctx, p.base, "/api/embed",
		ollamaEmbedRequest{Model: p.base.cfg.Model, Input: texts}, func(*http.Request) {})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		out[i] = toFloat32(emb)
	}
	return out, nil
}

func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
