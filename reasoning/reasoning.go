// Package reasoning turns knowledge graph query results into answers.
package reasoning

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/brunobiangulo/goknow/graph"
	"github.com/brunobiangulo/goknow/nlp"
)

// Answer is the output of Reason.
type Answer struct {
	Text          string       `json:"answer"`
	Confidence    float64      `json:"confidence"`
	Sources       []string     `json:"sources"`
	QuestionType  QuestionType `json:"question_type,omitempty"`
	ReasoningTime float64      `json:"reasoning_time"`
	Success       bool         `json:"success"`
	Error         string       `json:"error,omitempty"`
}

// nodeContent is the slice of a node that the templates read.
type nodeContent struct {
	text      string
	name      string
	relevance float64
}

// Keywords extracts the lowercase keywords of a question.
type Keywords interface {
	Keywords(text string) []string
}

// Engine answers questions from query results with fixed templates.
type Engine struct {
	logger   *zap.Logger
	keywords Keywords
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithKeywords overrides the keyword extractor used to pick named nodes.
func WithKeywords(k Keywords) Option {
	return func(e *Engine) { e.keywords = k }
}

// New creates a reasoning engine.
func New(opts ...Option) *Engine {
	e := &Engine{logger: zap.NewNop(), keywords: nlp.NewExtractor()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Reason builds an answer to query from results. It never fails: empty
// results and internal errors produce an unsuccessful answer.
func (e *Engine) Reason(query string, results []graph.Result) (ans *Answer) {
	e.logger.Info("reasoning", zap.Int("results", len(results)))
	start := time.Now()

	if len(results) == 0 {
		return &Answer{Text: msgNoInformation, Sources: []string{}}
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("reasoning failed", zap.Any("panic", r), zap.Stack("stack"))
			ans = &Answer{Text: msgError, Sources: []string{}, Error: fmt.Sprint(r)}
		}
	}()

	qt := ClassifyQuestion(query)
	e.logger.Debug("question classified", zap.String("type", string(qt)))

	sources := []string{}
	seen := map[string]bool{}
	contents := make([]nodeContent, 0, len(results))
	for _, r := range results {
		if src := r.Attrs.String(graph.AttrSource); src != "" && src != "unknown" && !seen[src] {
			seen[src] = true
			sources = append(sources, src)
		}
		name := r.Attrs.String(graph.AttrName)
		if name == "" {
			name = r.ID
		}
		contents = append(contents, nodeContent{
			text:      r.Attrs.String(graph.AttrDescription),
			name:      name,
			relevance: r.Relevance,
		})
	}
	sort.SliceStable(contents, func(i, j int) bool { return contents[i].relevance > contents[j].relevance })

	text := e.answer(qt, query, contents)
	return &Answer{
		Text:          text,
		Confidence:    answerConfidence(contents[0].relevance),
		Sources:       sources,
		QuestionType:  qt,
		ReasoningTime: time.Since(start).Seconds(),
		Success:       true,
	}
}

func (e *Engine) answer(qt QuestionType, query string, nodes []nodeContent) string {
	switch qt {
	case Definition:
		return e.answerDefinition(query, nodes)
	case Explanation:
		return answerExplanation(nodes)
	case HowTo:
		return answerHowTo(nodes)
	case Example:
		return answerExample(nodes)
	case Comparison:
		return e.answerComparison(query, nodes)
	case List:
		return answerList(nodes)
	default:
		return answerInformation(nodes)
	}
}
