package collector

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/brunobiangulo/goknow/chunker"
	"github.com/brunobiangulo/goknow/learner"
	"github.com/brunobiangulo/goknow/nlp"
	"github.com/brunobiangulo/goknow/parser"
)

const (
	documentConfidence   = 0.75
	documentOverlapRunes = 200
)

// Keywords extracts search keywords from a question.
type Keywords interface {
	Keywords(text string) []string
}

// DocumentSource searches local document directories for files whose name
// or text mentions a keyword of the question.
type DocumentSource struct {
	dirs     []string
	registry *parser.Registry
	keywords Keywords
	chunker  *chunker.Chunker
	logger   *zap.Logger
}

// NewDocumentSource creates a document source over dirs.
func NewDocumentSource(dirs []string, registry *parser.Registry, keywords Keywords, logger *zap.Logger) *DocumentSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = parser.NewRegistry(logger)
	}
	if keywords == nil {
		keywords = nlp.NewExtractor()
	}
	return &DocumentSource{
		dirs:     dirs,
		registry: registry,
		keywords: keywords,
		chunker:  chunker.New(chunker.Config{MaxRunes: maxContentRunes, Overlap: documentOverlapRunes}),
		logger:   logger,
	}
}

func (d *DocumentSource) Name() string { return "documents" }

type docMatch struct {
	path  string
	text  string
	score int
}

// Collect parses every supported document, ranks them by the number of
// question keywords they mention and returns the best max as records. A long
// document contributes the chunk mentioning the most keywords.
func (d *DocumentSource) Collect(ctx context.Context, query string, max int) ([]learner.Record, error) {
	if max <= 0 {
		max = 1
	}
	keywords := d.keywords.Keywords(query)
	if len(keywords) == 0 || len(d.dirs) == 0 {
		return nil, nil
	}

	var matches []docMatch
	for _, path := range d.Files() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := d.registry.ParseFile(ctx, path)
		if err != nil {
			continue
		}
		text := res.Text()
		if text == "" {
			continue
		}
		score := keywordHits(filepath.Base(path)+" "+text, keywords)
		if score == 0 {
			continue
		}
		best, bestHits := text, -1
		if parts := d.chunker.Split(text); len(parts) > 1 {
			for _, part := range parts {
				if hits := keywordHits(part, keywords); hits > bestHits {
					best, bestHits = part, hits
				}
			}
		}
		matches = append(matches, docMatch{path: path, text: best, score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	if len(matches) > max {
		matches = matches[:max]
	}

	records := make([]learner.Record, 0, len(matches))
	for _, m := range matches {
		records = append(records, documentRecord(m.path, m.text))
	}
	d.logger.Info("document collection finished", zap.String("query", query), zap.Int("records", len(records)))
	return records, nil
}

// All parses every supported document into records, skipping files that
// fail to parse or hold no text. Documents too long for one record are split
// into numbered parts.
func (d *DocumentSource) All(ctx context.Context) ([]learner.Record, error) {
	var records []learner.Record
	for _, path := range d.Files() {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		res, err := d.registry.ParseFile(ctx, path)
		if err != nil {
			continue
		}
		parts := d.chunker.Split(res.Text())
		if len(parts) == 1 {
			records = append(records, documentRecord(path, parts[0]))
			continue
		}
		for i, part := range parts {
			rec := documentRecord(path, part)
			rec.Title = fmt.Sprintf("%s (phần %d)", rec.Title, i+1)
			records = append(records, rec)
		}
	}
	return records, nil
}

func keywordHits(text string, keywords []string) int {
	haystack := nlp.Fold(text)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			hits++
		}
	}
	return hits
}

func documentRecord(path, text string) learner.Record {
	name := filepath.Base(path)
	return learner.Record{
		Title:      strings.TrimSuffix(name, filepath.Ext(name)),
		Content:    nlp.Truncate(text, maxContentRunes),
		URL:        "file://" + filepath.ToSlash(path),
		Source:     "file:" + name,
		Confidence: learner.Float(documentConfidence),
	}
}

// Files lists the supported documents under the configured directories in
// lexical order. Unreadable directories are logged and skipped.
func (d *DocumentSource) Files() []string {
	var files []string
	for _, dir := range d.dirs {
		err := filepath.WalkDir(dir, func(path string, e fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !e.IsDir() && d.registry.Supports(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			d.logger.Warn("scanning document dir failed", zap.String("dir", dir), zap.Error(err))
		}
	}
	sort.Strings(files)
	return files
}
