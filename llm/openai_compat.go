package llm

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	defaultTimeout    = 60 * time.Second
	maxRetries        = 6
	baseRetryDelay    = 2 * time.Second
	minRateLimitDelay = 5 * time.Second
)

// compatClient speaks the OpenAI chat/embeddings wire format. It is shared
// by every provider that exposes that API.
type compatClient struct {
	cfg        Config
	client     *http.Client
	logger     *zap.Logger
	pathPrefix string // "/v1" unless the host mounts the API elsewhere
	retries    int
	retryDelay time.Duration
	rateDelay  time.Duration
}

func newCompatClient(cfg Config, prefix string) *compatClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &compatClient{
		cfg:        cfg,
		client:     &http.Client{Timeout: timeout},
		logger:     cfg.logger().Named("llm"),
		pathPrefix: prefix,
		retries:    maxRetries,
		retryDelay: baseRetryDelay,
		rateDelay:  minRateLimitDelay,
	}
}

type compatProvider struct {
	base *compatClient
}

func (p *compatProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *compatProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return p.base.embed(ctx, texts)
}

// Wire types of the OpenAI chat and embeddings endpoints.
type (
	compatChatBody struct {
		Model          string      `json:"model"`
		Messages       []Message   `json:"messages"`
		Temperature    float64     `json:"temperature,omitempty"`
		MaxTokens      int         `json:"max_tokens,omitempty"`
		ResponseFormat *jsonFormat `json:"response_format,omitempty"`
	}
	jsonFormat struct {
		Type string `json:"type"`
	}
	compatChoice struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	}
	compatChatReply struct {
		Model   string         `json:"model"`
		Choices []compatChoice `json:"choices"`
		Usage   struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	compatEmbedBody struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}
	compatEmbedReply struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
)

// call posts body to path and decodes the JSON reply into a T.
func call[T any](ctx context.Context, c *compatClient, path string, body any, auth func(*http.Request)) (T, error) {
	var out T
	raw, err := c.post(ctx, path, body, auth)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decoding %s reply: %w", path, err)
	}
	return out, nil
}

func (c *compatClient) chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body := compatChatBody{
		Model:       cmp.Or(req.Model, c.cfg.Model),
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.ResponseFormat == "json_object" {
		body.ResponseFormat = &jsonFormat{Type: "json_object"}
	}

	reply, err := call[compatChatReply](ctx, c, c.pathPrefix+"/chat/completions", body, c.bearer)
	if err != nil {
		return nil, err
	}
	if len(reply.Choices) == 0 {
		return nil, errors.New("chat reply has no choices")
	}
	first := reply.Choices[0]
	return &ChatResponse{
		Content:          first.Message.Content,
		Model:            reply.Model,
		FinishReason:     first.FinishReason,
		PromptTokens:     reply.Usage.PromptTokens,
		CompletionTokens: reply.Usage.CompletionTokens,
		TotalTokens:      reply.Usage.TotalTokens,
	}, nil
}

// embed returns one vector per text, placed by the index the server
// reports. A reply that leaves any text without a vector is an error.
func (c *compatClient) embed(ctx context.Context, texts []string) ([][]float32, error) {
	reply, err := call[compatEmbedReply](ctx, c, c.pathPrefix+"/embeddings",
		compatEmbedBody{Model: c.cfg.Model, Input: texts}, c.bearer)
	if err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(texts))
	filled := 0
	for _, d := range reply.Data {
		if d.Index < 0 || d.Index >= len(vecs) || vecs[d.Index] != nil {
			continue
		}
		vecs[d.Index] = d.Embedding
		filled++
	}
	if filled != len(texts) {
		return nil, fmt.Errorf("embedding reply covers %d of %d inputs", filled, len(texts))
	}
	return vecs, nil
}

func (c *compatClient) bearer(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}

// APIError is a non-200 reply from a provider.
type APIError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration // from the Retry-After header, zero when absent
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm api: status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether repeating the request may succeed.
func (e *APIError) Temporary() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// post sends body as JSON to path and returns the body of the first 200
// reply. Transport failures and temporary API errors are retried up to
// c.retries times; anything else is returned at once.
func (c *compatClient) post(ctx context.Context, path string, body any, auth func(*http.Request)) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	url := c.cfg.BaseURL + path

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		auth(req)

		out, err := c.send(req)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return nil, err
		}
		if attempt == c.retries {
			return nil, fmt.Errorf("giving up after %d attempts: %w", attempt+1, err)
		}

		delay := c.backoff(attempt, apiErr)
		c.logger.Warn("retrying request",
			zap.String("url", url), zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay), zap.Error(err))
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// send performs one request. Any status but 200 comes back as *APIError.
func (c *compatClient) send(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return body, nil
}

// backoff doubles the base delay with every attempt. Rate limits start from
// the longer rateDelay and wait at least as long as the server asked.
func (c *compatClient) backoff(attempt int, apiErr *APIError) time.Duration {
	if apiErr == nil || apiErr.StatusCode != http.StatusTooManyRequests {
		return c.retryDelay << attempt
	}
	return max(c.rateDelay<<attempt, apiErr.RetryAfter)
}

func retryAfter(header string) time.Duration {
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
