// Package parser extracts text from the document formats the document
// collector understands.
package parser

import (
	"context"
	"strings"
)

// ParseResult is what a parser produces from a document file.
type ParseResult struct {
	Sections []Section // Ordered sections extracted from the document
	Method   string    // always "native"
	Metadata map[string]string
}

// Section represents a logical section of a parsed document.
type Section struct {
	Heading    string
	Content    string
	Level      int // Heading level (1=top, 2=sub, etc.)
	PageNumber int
	Type       string // "section", "table", "definition", "example", "paragraph"
	Metadata   map[string]string
}

// Parser can parse a specific document format.
type Parser interface {
	Parse(ctx context.Context, path string) (*ParseResult, error)
	SupportedFormats() []string
}

// Text flattens the result into plain text, one block per section with the
// heading on its own line.
func (r *ParseResult) Text() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, s := range r.Sections {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		if s.Heading != "" {
			b.WriteString(s.Heading)
			b.WriteString("\n")
		}
		b.WriteString(s.Content)
	}
	return strings.TrimSpace(b.String())
}
