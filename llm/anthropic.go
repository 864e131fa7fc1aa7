package llm

import (
	"context"
	"net/http"
	"strings"
)

const (
	anthropicBaseURL   = "https://api.anthropic.com"
	anthropicVersion   = "2023-06-01"
	anthropicModel     = "claude-3-5-haiku-latest"
	anthropicMaxTokens = 1024
)

// anthropicProvider talks to the Anthropic Messages API. System messages are
// lifted into the top-level system field; the API has no embeddings.
type anthropicProvider struct {
	base *compatClient
}

// NewAnthropic creates a provider for Anthropic's Messages API.
func NewAnthropic(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = anthropicBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = anthropicModel
	}
	return &anthropicProvider{base: newCompatClient(cfg, "/v1")}
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
}

type messagesResponse struct {
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *anthropicProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body := messagesRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if body.Model == "" {
		body.Model = p.base.cfg.Model
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = anthropicMaxTokens
	}
	var system []string
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		body.Messages = append(body.Messages, m)
	}
	body.System = strings.Join(system, "\n\n")

	resp, err := call[messagesResponse](ctx, p.base, p.base.pathPrefix+"/messages", body, p.auth)
	if err != nil {
		return nil, err
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return &ChatResponse{
		Content:          text.String(),
		Model:            resp.Model,
		FinishReason:     resp.StopReason,
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

func (p *anthropicProvider) Embed(context.Context, []string) ([][]float32, error) {
	return nil, ErrEmbeddingsUnsupported
}

func (p *anthropicProvider) auth(req *http.Request) {
	req.Header.Set("x-api-key", p.base.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
}
