package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/brunobiangulo/goknow/learner"
	"github.com/brunobiangulo/goknow/llm"
	"github.com/brunobiangulo/goknow/nlp"
)

const (
	apiConfidence      = 0.85
	apiTextConfidence  = 0.7
	apiTemperature     = 0.3
	apiMaxTokens       = 1000
	factSystemPrompt   = "Bạn là trợ lý AI đang thu thập thông tin. Hãy cung cấp thông tin chi tiết và chính xác về chủ đề được hỏi. Trả lời bằng JSON với các trường: title, content, entities (danh sách các thực thể), relations (danh sách các mối quan hệ)."
	factSchemaHint     = `Mỗi thực thể có dạng {"name", "type", "description"}; mỗi mối quan hệ có dạng {"source", "target", "relation_type", "description"}.`
	factUserPromptHead = "Cung cấp thông tin về: "
)

// NamedProvider is an LLM provider with the name recorded as the source
// of the facts it returns.
type NamedProvider struct {
	Name     string
	Model    string
	Provider llm.Provider
}

// APISource asks LLM providers for a structured fact record. Providers are
// tried in order until enough records are collected.
type APISource struct {
	providers []NamedProvider
	logger    *zap.Logger
}

// NewAPISource creates an API source over providers.
func NewAPISource(providers []NamedProvider, logger *zap.Logger) *APISource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(providers) == 0 {
		logger.Warn("no llm providers available, api collection disabled")
	}
	return &APISource{providers: providers, logger: logger}
}

func (a *APISource) Name() string { return "api" }

// Providers returns the names of the configured providers.
func (a *APISource) Providers() []string {
	names := make([]string, len(a.providers))
	for i, p := range a.providers {
		names[i] = p.Name
	}
	return names
}

func (a *APISource) Collect(ctx context.Context, query string, max int) ([]learner.Record, error) {
	if max <= 0 {
		max = 1
	}
	var records []learner.Record
	var errs []error
	for _, p := range a.providers {
		if len(records) >= max {
			break
		}
		rec, err := a.ask(ctx, p, query)
		if err != nil {
			if ctx.Err() != nil {
				return records, ctx.Err()
			}
			a.logger.Warn("llm collection failed", zap.String("provider", p.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
			continue
		}
		records = append(records, *rec)
	}
	if len(records) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return records, nil
}

func (a *APISource) ask(ctx context.Context, p NamedProvider, query string) (*learner.Record, error) {
	resp, err := p.Provider.Chat(ctx, llm.ChatRequest{
		Model: p.Model,
		Messages: []llm.Message{
			llm.System(factSystemPrompt + " " + factSchemaHint),
			llm.User(factUserPromptHead + query),
		},
		Temperature: apiTemperature,
		MaxTokens:   apiMaxTokens,
	})
	if err != nil {
		return nil, err
	}
	a.logger.Debug("llm fact response",
		zap.String("provider", p.Name),
		zap.Int("tokens", resp.TotalTokens))
	return parseFactRecord(resp.Content, query, p.Name), nil
}

// parseFactRecord turns a model reply into a record. A reply that is not a
// JSON object becomes a plain-text record about the query.
func parseFactRecord(reply, query, source string) *learner.Record {
	fallbackTitle := "Thông tin về " + query

	var rec learner.Record
	if raw := extractJSON(reply); raw != "" && json.Unmarshal([]byte(raw), &rec) == nil {
		if strings.TrimSpace(rec.Title) == "" {
			rec.Title = fallbackTitle
		}
		rec.Source = source
		rec.Confidence = learner.Float(apiConfidence)
		return &rec
	}

	content := strings.TrimSpace(reply)
	return &learner.Record{
		Title:      fallbackTitle,
		Content:    content,
		Source:     source,
		Confidence: learner.Float(apiTextConfidence),
		Entities: []learner.Entity{{
			Name:        query,
			Type:        "concept",
			Description: nlp.Truncate(content, descriptionRunes),
		}},
	}
}

// extractJSON returns the outermost JSON object in s, ignoring Markdown
// code fences and surrounding prose.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
