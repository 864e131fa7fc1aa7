//go:build cgo

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T, dim int) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	s, err := New(dbPath, dim, nil)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// ---------------------------------------------------------------------------
// Schema / construction
// ---------------------------------------------------------------------------

func TestNewCreatesParentDir(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sub", "dir", "journal.db")
	s, err := New(dbPath, 4, nil)
	if err != nil {
		t.Fatalf("creating store in nested dir: %v", err)
	}
	s.Close()
}

func TestMigrationsApplied(t *testing.T) {
	s := newTestStore(t, 0)
	v, err := s.SchemaVersion(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if want := migrations[len(migrations)-1].version; v != want {
		t.Errorf("schema version = %d, want %d", v, want)
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	s, err := New(dbPath, 4, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.LogQuery(ctx, QueryLog{Question: "q"}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = New(dbPath, 4, nil)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer s.Close()
	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Queries != 1 {
		t.Errorf("queries after reopen = %d", stats.Queries)
	}
}

// ---------------------------------------------------------------------------
// Query log
// ---------------------------------------------------------------------------

func TestLogAndListQueries(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()

	for _, q := range []QueryLog{
		{Question: "Phép cộng là gì?", Answer: "Phép cộng là phép toán", Confidence: 0.9,
			QuestionType: "definition", Sources: []string{"sgk"}, Collected: true, ProcessMS: 12},
		{Question: "Hà Nội", Answer: "Thủ đô", Confidence: 0.5, QuestionType: "information"},
		{Question: "Phép nhân là gì?", QuestionType: "definition"},
	} {
		if _, err := s.LogQuery(ctx, q); err != nil {
			t.Fatalf("LogQuery: %v", err)
		}
	}

	recent, err := s.RecentQueries(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent queries, got %d", len(recent))
	}
	if recent[0].Question != "Phép nhân là gì?" || recent[1].Question != "Hà Nội" {
		t.Errorf("order = %q, %q", recent[0].Question, recent[1].Question)
	}
	if recent[0].Sources == nil || len(recent[0].Sources) != 0 {
		t.Errorf("sources = %#v, want empty slice", recent[0].Sources)
	}

	found, err := s.SearchQueries(ctx, "Phép", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 2 {
		t.Fatalf("search found %d", len(found))
	}
	first := found[1]
	if !first.Collected || first.ProcessMS != 12 || first.Confidence != 0.9 ||
		len(first.Sources) != 1 || first.Sources[0] != "sgk" {
		t.Errorf("round trip = %+v", first)
	}
	if first.CreatedAt == "" || first.ID == "" {
		t.Errorf("missing id or created_at: %+v", first)
	}
}

func TestGetQuery(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()
	id, err := s.LogQuery(ctx, QueryLog{Question: "q", Answer: "a"})
	if err != nil {
		t.Fatal(err)
	}
	q, err := s.GetQuery(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if q.Answer != "a" {
		t.Errorf("answer = %q", q.Answer)
	}
	if _, err := s.GetQuery(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing query error = %v", err)
	}
}

func TestQueryIDsAreUnique(t *testing.T) {
	s := newTestStore(t, 0)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		id, err := s.LogQuery(context.Background(), QueryLog{Question: "same"})
		if err != nil {
			t.Fatal(err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

// ---------------------------------------------------------------------------
// Learn log
// ---------------------------------------------------------------------------

func TestLogLearn(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()
	if _, err := s.LogLearn(ctx, LearnLog{Context: "q1", Records: 2, Entities: 3, Relations: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LogLearn(ctx, LearnLog{Records: 1}); err != nil {
		t.Fatal(err)
	}
	logs, err := s.RecentLearns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 {
		t.Fatalf("got %d learn logs", len(logs))
	}
	if logs[1].Context != "q1" || logs[1].Entities != 3 || logs[1].Relations != 1 {
		t.Errorf("learn log = %+v", logs[1])
	}
}

// ---------------------------------------------------------------------------
// Question embeddings
// ---------------------------------------------------------------------------

func TestSimilarQuestions(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()

	vectors := map[string][]float32{
		"Phép cộng là gì?": {1, 0, 0, 0},
		"Phép nhân là gì?": {0.9, 0.1, 0, 0},
		"Hà Nội ở đâu?":    {0, 0, 1, 0},
	}
	for _, q := range []string{"Phép cộng là gì?", "Phép nhân là gì?", "Hà Nội ở đâu?"} {
		id, err := s.LogQuery(ctx, QueryLog{Question: q})
		if err != nil {
			t.Fatal(err)
		}
		if err := s.InsertQuestionEmbedding(ctx, id, vectors[q]); err != nil {
			t.Fatalf("InsertQuestionEmbedding(%q): %v", q, err)
		}
	}

	similar, err := s.SimilarQuestions(ctx, []float32{1, 0, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(similar) != 2 {
		t.Fatalf("expected 2 similar questions, got %d", len(similar))
	}
	if similar[0].Question != "Phép cộng là gì?" || similar[1].Question != "Phép nhân là gì?" {
		t.Errorf("similar = %q, %q", similar[0].Question, similar[1].Question)
	}
	if similar[0].Score < similar[1].Score {
		t.Errorf("scores not descending: %v, %v", similar[0].Score, similar[1].Score)
	}

	stats, _ := s.Stats(ctx)
	if stats.Embeddings != 3 || stats.Queries != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestEmbeddingErrors(t *testing.T) {
	ctx := context.Background()

	disabled := newTestStore(t, 0)
	if err := disabled.InsertQuestionEmbedding(ctx, "x", []float32{1}); !errors.Is(err, ErrNoVectors) {
		t.Errorf("disabled insert error = %v", err)
	}
	if _, err := disabled.SimilarQuestions(ctx, []float32{1}, 1); !errors.Is(err, ErrNoVectors) {
		t.Errorf("disabled search error = %v", err)
	}

	s := newTestStore(t, 4)
	if err := s.InsertQuestionEmbedding(ctx, "missing", []float32{1, 0, 0, 0}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing query error = %v", err)
	}
	id, _ := s.LogQuery(ctx, QueryLog{Question: "q"})
	if err := s.InsertQuestionEmbedding(ctx, id, []float32{1, 0}); err == nil {
		t.Error("expected dimension mismatch error")
	}
}
