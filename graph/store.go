package graph

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/brunobiangulo/goknow/nlp"
)

// TimeLayout is the timestamp format stamped into created_at / updated_at.
const TimeLayout = "2006-01-02T15:04:05.000000"

// backupLayout names rotated graph files: <base>_backup_<YYYYMMDD_HHMMSS>.json
const backupLayout = "20060102_150405"

// KeywordExtractor turns free text into a set of lowercase keywords.
type KeywordExtractor interface {
	Keywords(text string) []string
}

// Store is the persisted knowledge graph. It owns one Graph loaded from a
// node-link JSON file and writes it back wholesale on Save.
//
// A Store has a single logical owner; callers sharing it across goroutines
// must serialise access themselves.
type Store struct {
	path     string
	g        *Graph
	logger   *zap.Logger
	keywords KeywordExtractor
	now      func() time.Time
	last     time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithKeywords overrides the keyword extractor used by Query.
func WithKeywords(k KeywordExtractor) Option {
	return func(s *Store) { s.keywords = k }
}

// WithClock overrides the time source used for timestamps and backup names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open creates a Store backed by path and loads it. A missing or unreadable
// file yields an empty graph; Open never fails.
func Open(path string, opts ...Option) *Store {
	s := &Store{
		path:     path,
		g:        NewGraph(),
		logger:   zap.NewNop(),
		keywords: nlp.NewExtractor(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	_ = s.Load()
	s.logger.Info("knowledge graph ready",
		zap.String("path", path),
		zap.Int("nodes", s.g.NodeCount()),
		zap.Int("edges", s.g.EdgeCount()))
	return s
}

// Path returns the graph file path.
func (s *Store) Path() string { return s.path }

// Graph exposes the in-memory graph for read-only inspection.
func (s *Store) Graph() *Graph { return s.g }

// Load replaces the in-memory graph with the file contents. On any failure
// the store is reset to an empty graph and the error is returned after
// being logged. A missing file is not an error.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("no knowledge graph file, starting empty", zap.String("path", s.path))
		s.g = NewGraph()
		return nil
	}
	if err != nil {
		s.logger.Error("reading knowledge graph", zap.String("path", s.path), zap.Error(err))
		s.g = NewGraph()
		return fmt.Errorf("reading knowledge graph: %w", err)
	}

	g, err := DecodeNodeLink(data)
	if err != nil {
		s.logger.Error("loading knowledge graph", zap.String("path", s.path), zap.Error(err))
		s.g = NewGraph()
		return err
	}
	s.g = g
	return nil
}

// Save rotates the existing file to a timestamped backup and writes the
// current graph. A failed backup is logged and the save goes ahead.
func (s *Store) Save() error {
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.logger.Error("creating knowledge graph directory", zap.String("dir", dir), zap.Error(err))
			return fmt.Errorf("creating knowledge graph directory: %w", err)
		}
	}

	if _, err := os.Stat(s.path); err == nil {
		backup := s.backupPath()
		if err := os.Rename(s.path, backup); err != nil {
			s.logger.Error("backing up knowledge graph", zap.String("backup", backup), zap.Error(err))
		} else {
			s.logger.Debug("knowledge graph backed up", zap.String("backup", backup))
		}
	}

	var buf bytes.Buffer
	if err := EncodeNodeLink(&buf, s.g); err != nil {
		s.logger.Error("encoding knowledge graph", zap.Error(err))
		return fmt.Errorf("encoding knowledge graph: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		s.logger.Error("writing knowledge graph", zap.String("path", tmp), zap.Error(err))
		return fmt.Errorf("writing knowledge graph: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		s.logger.Error("replacing knowledge graph", zap.String("path", s.path), zap.Error(err))
		return fmt.Errorf("replacing knowledge graph: %w", err)
	}

	s.logger.Info("knowledge graph saved",
		zap.Int("nodes", s.g.NodeCount()),
		zap.Int("edges", s.g.EdgeCount()))
	return nil
}

// Backups lists the rotated backup files of this store, oldest first.
func (s *Store) Backups() ([]string, error) {
	base := strings.TrimSuffix(s.path, filepath.Ext(s.path))
	return filepath.Glob(base + "_backup_*" + filepath.Ext(s.path))
}

func (s *Store) backupPath() string {
	ext := filepath.Ext(s.path)
	if ext == "" {
		ext = ".json"
	}
	base := strings.TrimSuffix(s.path, filepath.Ext(s.path))
	stamp := s.now().Format(backupLayout)

	name := fmt.Sprintf("%s_backup_%s%s", base, stamp, ext)
	for i := 1; ; i++ {
		if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
			return name
		}
		name = fmt.Sprintf("%s_backup_%s_%d%s", base, stamp, i, ext)
	}
}

// stamp returns the current timestamp, strictly later than any previously
// issued one.
func (s *Store) stamp() string {
	t := s.now()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t.Format(TimeLayout)
}

// AddNode upserts a node. New nodes get created_at; updated_at is refreshed
// on every call. It returns id.
func (s *Store) AddNode(id string, attrs Attrs) string {
	isNew := !s.g.HasNode(id)

	merged := make(Attrs, len(attrs)+2)
	for k, v := range attrs {
		merged[k] = v
	}
	ts := s.stamp()
	if isNew {
		merged[AttrCreatedAt] = ts
	}
	merged[AttrUpdatedAt] = ts
	s.g.setNode(id, merged)

	if isNew {
		s.logger.Debug("node added", zap.String("id", id))
	} else {
		s.logger.Debug("node updated", zap.String("id", id))
	}
	return id
}

// AddEdge upserts the edge source->target. It returns false when either
// endpoint is missing.
func (s *Store) AddEdge(source, target, relationType string, attrs Attrs) bool {
	if !s.g.HasNode(source) {
		s.logger.Warn("edge source does not exist", zap.String("source", source))
		return false
	}
	if !s.g.HasNode(target) {
		s.logger.Warn("edge target does not exist", zap.String("target", target))
		return false
	}

	merged := make(Attrs, len(attrs)+2)
	for k, v := range attrs {
		merged[k] = v
	}
	merged[AttrRelationType] = relationType
	if !s.g.HasEdge(source, target) {
		merged[AttrCreatedAt] = s.stamp()
		s.g.setEdge(source, target, merged)
		s.logger.Debug("edge added",
			zap.String("source", source), zap.String("target", target),
			zap.String("relation_type", relationType))
		return true
	}
	s.g.setEdge(source, target, merged)
	s.logger.Debug("edge updated",
		zap.String("source", source), zap.String("target", target),
		zap.String("relation_type", relationType))
	return true
}

// GetNode returns a copy of the node's attributes.
func (s *Store) GetNode(id string) (Attrs, bool) {
	a, ok := s.g.Node(id)
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// GetEdge returns a copy of the edge's attributes.
func (s *Store) GetEdge(source, target string) (Attrs, bool) {
	a, ok := s.g.EdgeAttrs(source, target)
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// HasNode reports whether id exists.
func (s *Store) HasNode(id string) bool { return s.g.HasNode(id) }

// HasEdge reports whether source->target exists.
func (s *Store) HasEdge(source, target string) bool { return s.g.HasEdge(source, target) }

// RemoveNode deletes a node and every incident edge.
func (s *Store) RemoveNode(id string) bool {
	if !s.g.removeNode(id) {
		s.logger.Warn("cannot remove missing node", zap.String("id", id))
		return false
	}
	s.logger.Info("node removed", zap.String("id", id))
	return true
}

// RemoveEdge deletes the edge source->target.
func (s *Store) RemoveEdge(source, target string) bool {
	if !s.g.removeEdge(source, target) {
		s.logger.Warn("cannot remove missing edge", zap.String("source", source), zap.String("target", target))
		return false
	}
	s.logger.Info("edge removed", zap.String("source", source), zap.String("target", target))
	return true
}

// NodeCount returns the number of nodes.
func (s *Store) NodeCount() int { return s.g.NodeCount() }

// EdgeCount returns the number of edges.
func (s *Store) EdgeCount() int { return s.g.EdgeCount() }

// TypeCounts counts nodes per type.
func (s *Store) TypeCounts() map[string]int { return s.g.TypeCounts() }

// Nodes returns every node with a copy of its attributes, in insertion order.
func (s *Store) Nodes() []Result {
	out := make([]Result, 0, s.g.NodeCount())
	for _, id := range s.g.order {
		out = append(out, Result{ID: id, Attrs: s.g.nodes[id].Clone()})
	}
	return out
}

// Edges returns every edge.
func (s *Store) Edges() []Edge { return s.g.Edges() }
