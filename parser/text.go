package parser

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// TextParser handles plain text (.txt) and Markdown (.md) files. Markdown
// is split on ATX headings; plain text becomes a single section.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"txt", "md", "markdown"} }

func (p *TextParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}

	content := strings.TrimSpace(strings.ReplaceAll(string(data), "\r\n", "\n"))
	if content == "" {
		return &ParseResult{Method: "native"}, nil
	}

	if Format(path) != "txt" {
		if sections := splitMarkdown(content); len(sections) > 0 {
			return &ParseResult{Sections: sections, Method: "native"}, nil
		}
	}

	return &ParseResult{
		Sections: []Section{{
			Content: content,
			Level:   1,
			Type:    "paragraph",
		}},
		Method: "native",
	}, nil
}

func splitMarkdown(text string) []Section {
	var sections []Section
	var body strings.Builder
	heading, level := "", 0

	flush := func() {
		c := strings.TrimSpace(body.String())
		body.Reset()
		if c == "" && heading == "" {
			return
		}
		sections = append(sections, Section{
			Heading: heading,
			Content: c,
			Level:   level,
			Type:    classifySectionType(heading, c),
		})
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if n := markdownLevel(trimmed); n > 0 {
			flush()
			heading = strings.TrimSpace(trimmed[n:])
			level = n
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()
	return sections
}

// markdownLevel returns the level of an ATX heading line, or 0.
func markdownLevel(line string) int {
	n := 0
	for n < len(line) && n < 6 && line[n] == '#' {
		n++
	}
	if n == 0 || n >= len(line) || line[n] != ' ' {
		return 0
	}
	return n
}
