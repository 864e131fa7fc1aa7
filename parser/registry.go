package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Registry maps file extensions (without the dot, lower case) to parsers.
type Registry struct {
	parsers map[string]Parser
	logger  *zap.Logger
}

// NewRegistry returns a registry with the PDF, XLSX and text parsers.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{parsers: make(map[string]Parser), logger: logger}
	for _, p := range []Parser{&PDFParser{}, &XLSXParser{}, &TextParser{}} {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

// Get returns the parser registered for format.
func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("no parser for format: %s", format)
	}
	return p, nil
}

// Register adds or replaces the parser for format.
func (r *Registry) Register(format string, p Parser) {
	r.parsers[strings.ToLower(format)] = p
}

// Supports reports whether a parser exists for the extension of path.
func (r *Registry) Supports(path string) bool {
	_, ok := r.parsers[Format(path)]
	return ok
}

// Formats lists the registered formats in sorted order.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.parsers))
	for f := range r.parsers {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// ParseFile picks the parser by extension and parses path.
func (r *Registry) ParseFile(ctx context.Context, path string) (*ParseResult, error) {
	p, err := r.Get(Format(path))
	if err != nil {
		return nil, err
	}
	res, err := p.Parse(ctx, path)
	if err != nil {
		r.logger.Warn("parse failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	r.logger.Debug("parsed document",
		zap.String("path", path),
		zap.Int("sections", len(res.Sections)))
	return res, nil
}

// Format returns the lower-case extension of path without the dot.
func Format(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
