package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brunobiangulo/goknow"
	"github.com/brunobiangulo/goknow/learner"
)

type stubSource struct {
	records []learner.Record
	calls   int
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Collect(_ context.Context, _ string, max int) ([]learner.Record, error) {
	s.calls++
	return s.records[:min(max, len(s.records))], nil
}

func additionRecord() learner.Record {
	return learner.Record{
		Title:      "Phép cộng",
		Content:    "Phép cộng là phép toán gộp hai số.",
		Source:     "sgk.vn",
		Confidence: learner.Float(0.8),
		Entities: []learner.Entity{{
			Name:        "Phép cộng",
			Type:        "concept",
			Description: "phép toán gộp hai số",
		}},
	}
}

// harness runs commands against one data directory.
type harness struct {
	t      *testing.T
	config string
	src    *stubSource
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	config := filepath.Join(dir, "goknow.yaml")
	body := "data_dir: " + filepath.Join(dir, "data") + "\n" +
		"cache_dir: \":memory:\"\n" +
		"disable_history: true\n"
	require.NoError(t, os.WriteFile(config, []byte(body), 0o644))
	return &harness{
		t:      t,
		config: config,
		src:    &stubSource{records: []learner.Record{additionRecord()}},
	}
}

func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	opts := &Options{
		In:  strings.NewReader(stdin),
		Out: &out,
		NewEngine: func(cfg goknow.Config, logger *zap.Logger) (goknow.Engine, error) {
			return goknow.New(cfg, goknow.WithLogger(logger), goknow.WithSources(h.src))
		},
	}
	cmd := NewRootCommand(opts)
	cmd.SetArgs(append([]string{"--config", h.config}, args...))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAskCommand(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "ask", "phép", "cộng")
	require.NoError(t, err)
	assert.Contains(t, out, "Trả lời:")
	assert.Contains(t, out, "phép toán gộp hai số")
	assert.Equal(t, 1, h.src.calls)
}

func TestAskCommandJSON(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "ask", "--json", "phép cộng")
	require.NoError(t, err)

	var ans map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &ans))
	assert.Equal(t, "phép cộng", ans["question"])
	assert.Equal(t, true, ans["new_information_collected"])
	assert.Equal(t, true, ans["success"])
}

func TestAskCommandRejectsEmptyQuestion(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "ask", " ")
	assert.ErrorIs(t, err, goknow.ErrEmptyQuestion)
}

func TestLearnCommandThenStats(t *testing.T) {
	h := newHarness(t)

	good, err := json.Marshal(additionRecord())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(path, []byte("["+string(good)+", 42]"), 0o644))

	out, err := h.run("", "learn", path)
	require.NoError(t, err)
	assert.Contains(t, out, "bỏ qua: record 1")
	assert.Contains(t, out, "Đã học 1 bản ghi: 1 thực thể mới")

	out, err = h.run("", "stats", "--json")
	require.NoError(t, err)
	var stats goknow.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.Nodes)
	assert.Equal(t, map[string]int{"concept": 1}, stats.Types)

	out, err = h.run("", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Tổng số thực thể: 1")
	assert.Contains(t, out, "  - concept: 1")
	assert.NotContains(t, out, "Số lần tương tác")

	// The learned graph answers without collecting.
	_, err = h.run("", "ask", "phép cộng")
	require.NoError(t, err)
	assert.Equal(t, 0, h.src.calls)
}

func TestLearnCommandErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "learn", filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))
	_, err = h.run("", "learn", path)
	assert.ErrorIs(t, err, goknow.ErrNoRecords)

	require.NoError(t, os.WriteFile(path, []byte(`"text"`), 0o644))
	_, err = h.run("", "learn", path)
	assert.ErrorContains(t, err, "decoding")
}

func TestIngestCommand(t *testing.T) {
	h := newHarness(t)
	docs := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docs, "phep-cong.txt"), []byte("Phép cộng là phép toán gộp hai số."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "ignored.bin"), []byte{0, 1, 2}, 0o644))

	out, err := h.run("", "ingest", docs)
	require.NoError(t, err)
	assert.Contains(t, out, "Đã đọc 1 tài liệu")
	assert.Contains(t, out, "Đã học 1 bản ghi")
}

func TestHistoryCommandWhenDisabled(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "history")
	assert.ErrorIs(t, err, goknow.ErrHistoryDisabled)

	_, err = h.run("", "history", "--similar", "phép cộng")
	assert.ErrorIs(t, err, goknow.ErrHistoryDisabled)
}

func TestChatCommand(t *testing.T) {
	h := newHarness(t)
	input := strings.Join([]string{
		"/help",
		"phép cộng",
		"",
		"/history",
		"/stats",
		"/unknown",
		"exit",
		"never asked",
	}, "\n")

	out, err := h.run(input, "chat")
	require.NoError(t, err)

	assert.Contains(t, out, "goknow - Trợ lý tri thức tự học")
	assert.Contains(t, out, "=== Trợ giúp ===")
	assert.Contains(t, out, "phép toán gộp hai số")
	assert.Contains(t, out, "Q: phép cộng")
	assert.Contains(t, out, "A: phép toán gộp hai số")
	assert.Contains(t, out, "Số lần tương tác: 1")
	assert.Contains(t, out, "Lệnh không được hỗ trợ: /unknown")
	assert.Contains(t, out, "Cảm ơn bạn đã sử dụng. Tạm biệt!")
	assert.Equal(t, 1, h.src.calls)
}

func TestChatCommandEndsAtEOF(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("/history\n", "chat")
	require.NoError(t, err)
	assert.Contains(t, out, "Chưa có lịch sử tương tác")
	assert.Contains(t, out, "Thoát ứng dụng...")
	assert.NotContains(t, out, "Tạm biệt")
}

func TestInvalidConfig(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.config, []byte("relevance_threshold: 3\n"), 0o644))

	_, err := h.run("", "stats")
	assert.ErrorIs(t, err, goknow.ErrInvalidConfig)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "ngắn", preview("ngắn"))
	long := strings.Repeat("ă", historyPreviewRunes+5)
	assert.Equal(t, strings.Repeat("ă", historyPreviewRunes)+"...", preview(long))
}
