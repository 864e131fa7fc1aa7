// Package store journals questions, answers and learn cycles in SQLite and
// indexes question embeddings with sqlite-vec for similar-question lookup.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

func init() {
	sqlite_vec.Auto()
}

// ErrNoVectors is returned by vector operations when the store was opened
// without an embedding dimension.
var ErrNoVectors = errors.New("store: question embeddings are disabled")

// ErrNotFound is returned when a journal entry does not exist.
var ErrNotFound = errors.New("store: not found")

// QueryLog is one answered question.
type QueryLog struct {
	ID           string   `json:"id"`
	Question     string   `json:"question"`
	Answer       string   `json:"answer"`
	Confidence   float64  `json:"confidence"`
	QuestionType string   `json:"question_type"`
	Sources      []string `json:"sources"`
	Collected    bool     `json:"collected"`
	ProcessMS    int64    `json:"process_ms"`
	CreatedAt    string   `json:"created_at"`
}

// LearnLog is one learn cycle.
type LearnLog struct {
	ID        string `json:"id"`
	Context   string `json:"context"`
	Records   int    `json:"records"`
	Entities  int    `json:"entities"`
	Relations int    `json:"relations"`
	CreatedAt string `json:"created_at"`
}

// SimilarQuestion is a past question ranked by embedding similarity.
type SimilarQuestion struct {
	QueryLog
	Score float64 `json:"score"`
}

// Store wraps the SQLite journal database.
type Store struct {
	db           *sql.DB
	embeddingDim int
	logger       *zap.Logger
}

// New opens (or creates) the journal at dbPath. When embeddingDim is
// positive a vec0 table of that dimension indexes question embeddings.
func New(dbPath string, embeddingDim int, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	ddl := schemaSQL()
	if embeddingDim > 0 {
		ddl += vectorSQL(embeddingDim)
	}
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embeddingDim: embeddingDim, logger: logger.Named("journal")}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EmbeddingDim returns the configured embedding dimension (0 when disabled).
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// LogQuery records an answered question and returns its id.
func (s *Store) LogQuery(ctx context.Context, q QueryLog) (string, error) {
	id, err := newID()
	if err != nil {
		return "", err
	}
	sources, err := json.Marshal(nonNil(q.Sources))
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO query_log (id, question, answer, confidence, question_type, sources, collected, process_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, q.Question, q.Answer, q.Confidence, q.QuestionType, string(sources), q.Collected, q.ProcessMS)
	if err != nil {
		return "", fmt.Errorf("logging query: %w", err)
	}
	s.logger.Debug("query logged", zap.String("id", id))
	return id, nil
}

const queryColumns = `q.id, q.question, q.answer, q.confidence, q.question_type, q.sources, q.collected, q.process_ms, q.created_at`

// RecentQueries returns up to limit questions, newest first.
func (s *Store) RecentQueries(ctx context.Context, limit int) ([]QueryLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+queryColumns+` FROM query_log q ORDER BY q.seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQueries(rows)
}

// SearchQueries returns up to limit questions containing substr, newest first.
func (s *Store) SearchQueries(ctx context.Context, substr string, limit int) ([]QueryLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+queryColumns+` FROM query_log q WHERE q.question LIKE ? ORDER BY q.seq DESC LIMIT ?`,
		"%"+substr+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQueries(rows)
}

// GetQuery returns one question by id.
func (s *Store) GetQuery(ctx context.Context, id string) (*QueryLog, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+queryColumns+` FROM query_log q WHERE q.id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	logs, err := scanQueries(rows)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, ErrNotFound
	}
	return &logs[0], nil
}

func scanQueries(rows *sql.Rows) ([]QueryLog, error) {
	var logs []QueryLog
	for rows.Next() {
		q, err := scanQuery(rows, nil)
		if err != nil {
			return nil, err
		}
		logs = append(logs, q)
	}
	return logs, rows.Err()
}

// scanQuery scans queryColumns followed by any extra destinations.
func scanQuery(rows *sql.Rows, extra ...any) (QueryLog, error) {
	var q QueryLog
	var answer, qtype, sources sql.NullString
	var confidence sql.NullFloat64
	dest := []any{&q.ID, &q.Question, &answer, &confidence, &qtype, &sources, &q.Collected, &q.ProcessMS, &q.CreatedAt}
	for _, e := range extra {
		if e != nil {
			dest = append(dest, e)
		}
	}
	if err := rows.Scan(dest...); err != nil {
		return q, err
	}
	q.Answer = answer.String
	q.Confidence = confidence.Float64
	q.QuestionType = qtype.String
	q.Sources = []string{}
	if sources.Valid && sources.String != "" {
		if err := json.Unmarshal([]byte(sources.String), &q.Sources); err != nil {
			return q, fmt.Errorf("decoding sources of %s: %w", q.ID, err)
		}
	}
	return q, nil
}

// ---------------------------------------------------------------------------
// Learn cycles
// ---------------------------------------------------------------------------

// LogLearn records a learn cycle and returns its id.
func (s *Store) LogLearn(ctx context.Context, l LearnLog) (string, error) {
	id, err := newID()
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO learn_log (id, context, records, entities, relations)
		VALUES (?, ?, ?, ?, ?)
	`, id, l.Context, l.Records, l.Entities, l.Relations)
	if err != nil {
		return "", fmt.Errorf("logging learn cycle: %w", err)
	}
	return id, nil
}

// RecentLearns returns up to limit learn cycles, newest first.
func (s *Store) RecentLearns(ctx context.Context, limit int) ([]LearnLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, context, records, entities, relations, created_at
		FROM learn_log ORDER BY seq DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []LearnLog
	for rows.Next() {
		var l LearnLog
		var ctxText sql.NullString
		if err := rows.Scan(&l.ID, &ctxText, &l.Records, &l.Entities, &l.Relations, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Context = ctxText.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// ---------------------------------------------------------------------------
// Question embeddings
// ---------------------------------------------------------------------------

// InsertQuestionEmbedding indexes the embedding of a logged question.
func (s *Store) InsertQuestionEmbedding(ctx context.Context, queryID string, embedding []float32) error {
	if s.embeddingDim <= 0 {
		return ErrNoVectors
	}
	if len(embedding) != s.embeddingDim {
		return fmt.Errorf("embedding has %d dimensions, want %d", len(embedding), s.embeddingDim)
	}
	var seq int64
	if err := s.db.QueryRowContext(ctx, "SELECT seq FROM query_log WHERE id = ?", queryID).Scan(&seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO vec_questions (query_seq, embedding) VALUES (?, ?)",
		seq, serializeFloat32(embedding))
	return err
}

// SimilarQuestions returns the k logged questions nearest to embedding.
func (s *Store) SimilarQuestions(ctx context.Context, embedding []float32, k int) ([]SimilarQuestion, error) {
	if s.embeddingDim <= 0 {
		return nil, ErrNoVectors
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+queryColumns+`, v.distance
		FROM vec_questions v
		JOIN query_log q ON q.seq = v.query_seq
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(embedding), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SimilarQuestion
	for rows.Next() {
		var distance float64
		q, err := scanQuery(rows, &distance)
		if err != nil {
			return nil, err
		}
		out = append(out, SimilarQuestion{QueryLog: q, Score: 1.0 / (1.0 + distance)})
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats holds journal row counts.
type Stats struct {
	Queries    int `json:"queries"`
	Learns     int `json:"learns"`
	Embeddings int `json:"embeddings"`
}

// Stats returns the number of logged queries, learn cycles and embeddings.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM query_log", &stats.Queries},
		{"SELECT COUNT(*) FROM learn_log", &stats.Learns},
	}
	if s.embeddingDim > 0 {
		queries = append(queries, struct {
			query string
			dest  *int
		}{"SELECT COUNT(*) FROM vec_questions", &stats.Embeddings})
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	return stats, nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// newID returns a time-ordered UUIDv7.
func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating id: %w", err)
	}
	return id.String(), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
