package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/goknow/llm"
	"github.com/brunobiangulo/goknow/metrics"
)

const articlePage = `<html><head><title>Phép cộng</title><style>.x{color:red}</style></head>
<body>
<div class="sidebar"><p>Menu</p></div>
<div class="mw-content-text">
<p>Phép cộng là một phép toán.</p>
<script>var x = 1;</script>
<p>Ví dụ: hai cộng ba bằng năm.</p>
</div>
</body></html>`

func TestExtractPage(t *testing.T) {
	p, err := extractPage([]byte(articlePage))
	require.NoError(t, err)
	assert.Equal(t, "Phép cộng", p.title)
	assert.Equal(t, "Phép cộng là một phép toán. Ví dụ: hai cộng ba bằng năm.", p.content)
}

func TestExtractPageParagraphFallback(t *testing.T) {
	p, err := extractPage([]byte(`<html><body><p>Một</p><p>Hai <b>ba</b></p></body></html>`))
	require.NoError(t, err)
	assert.Empty(t, p.title)
	assert.Equal(t, "Một Hai ba", p.content)
}

func TestExtractPageStripsMarkupInText(t *testing.T) {
	p, err := extractPage([]byte(`<html><body>
<div class="content"><p>Dùng thẻ &lt;b&gt;đậm&lt;/b&gt; để nhấn mạnh</p></div>
</body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Dùng thẻ đậm để nhấn mạnh", p.content)
}

func TestExtractPageTruncates(t *testing.T) {
	long := strings.Repeat("á", maxContentRunes+50)
	p, err := extractPage([]byte("<p>" + long + "</p>"))
	require.NoError(t, err)
	assert.Equal(t, maxContentRunes, len([]rune(p.content)))
}

func newPageServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/a":
			fmt.Fprint(w, articlePage)
		case "/wiki/phép cộng":
			fmt.Fprint(w, `<html><head><title>Phép cộng (toán học)</title></head><body><p>Tổng của hai số.</p></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebSourceCollect(t *testing.T) {
	var hits atomic.Int32
	srv := newPageServer(t, &hits)

	src := NewWebSource(WebConfig{
		SeedURLs:       []string{"https://example.com/x", srv.URL + "/a", srv.URL + "/missing", srv.URL + "/wiki/{query}"},
		TrustedDomains: []string{"127.0.0.1"},
	}, nil, nil)

	got, err := src.Collect(context.Background(), "phép cộng", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, "Phép cộng", first.Title)
	assert.Equal(t, srv.URL+"/a", first.URL)
	assert.Equal(t, strings.TrimPrefix(srv.URL, "http://"), first.Source)
	require.NotNil(t, first.Confidence)
	assert.Equal(t, 0.7, *first.Confidence)
	require.Len(t, first.Entities, 1)
	assert.Equal(t, "concept", first.Entities[0].Type)
	assert.Equal(t, first.Content, first.Entities[0].Description)

	assert.Equal(t, "Phép cộng (toán học)", got[1].Title)
	assert.EqualValues(t, 3, hits.Load())
}

func TestWebSourceNoTrustedCandidates(t *testing.T) {
	src := NewWebSource(WebConfig{
		SeedURLs:       []string{"https://example.com/x", "not a url"},
		TrustedDomains: []string{"wikipedia.org"},
	}, nil, nil)
	got, err := src.Collect(context.Background(), "q", 3)
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestWebSourceUsesCache(t *testing.T) {
	var hits atomic.Int32
	srv := newPageServer(t, &hits)
	m := metrics.NewCollector("test")

	cache, err := OpenCache("", 0, m, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	src := NewWebSource(WebConfig{SeedURLs: []string{srv.URL + "/a"}, TrustedDomains: []string{"127.0.0.1"}}, cache, nil)
	for i := 0; i < 2; i++ {
		got, err := src.Collect(context.Background(), "q", 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
	}

	assert.EqualValues(t, 1, hits.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses))
}

func TestCache(t *testing.T) {
	cache, err := OpenCache("", 0, nil, nil)
	require.NoError(t, err)
	defer cache.Close()

	_, ok := cache.Get("k")
	assert.False(t, ok)

	require.NoError(t, cache.Put("k", []byte("v")))
	got, ok := cache.Get("k")
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	var none *Cache
	_, ok = none.Get("k")
	assert.False(t, ok)
	assert.NoError(t, none.Put("k", nil))
	assert.NoError(t, none.Close())
}

func TestCachePersistsOnDisk(t *testing.T) {
	dir := t.TempDir()
	cache, err := OpenCache(dir, 0, nil, nil)
	require.NoError(t, err)
	require.NoError(t, cache.Put("https://vi.wikipedia.org/wiki/x", []byte("<p>x</p>")))
	require.NoError(t, cache.Close())

	cache, err = OpenCache(dir, 0, nil, nil)
	require.NoError(t, err)
	defer cache.Close()
	got, ok := cache.Get("https://vi.wikipedia.org/wiki/x")
	assert.True(t, ok)
	assert.Equal(t, "<p>x</p>", string(got))
}

type fakeProvider struct {
	reply string
	err   error
	last  llm.ChatRequest
	calls int
}

func (f *fakeProvider) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.reply}, nil
}

func (f *fakeProvider) Embed(context.Context, []string) ([][]float32, error) {
	return nil, llm.ErrEmbeddingsUnsupported
}

func TestAPISourceCollect(t *testing.T) {
	down := &fakeProvider{err: errors.New("503")}
	gemini := &fakeProvider{reply: "```json\n" + `{"title": "Phép cộng", "content": "Tổng hai số", "entities": [{"name": "Phép cộng", "type": "concept"}], "relations": []}` + "\n```"}
	unused := &fakeProvider{reply: "{}"}

	src := NewAPISource([]NamedProvider{
		{Name: "openai", Provider: down},
		{Name: "gemini", Model: "gemini-2.0-flash", Provider: gemini},
		{Name: "anthropic", Provider: unused},
	}, nil)

	got, err := src.Collect(context.Background(), "phép cộng", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "gemini", got[0].Source)
	assert.Equal(t, "Phép cộng", got[0].Title)
	assert.Equal(t, 0.85, *got[0].Confidence)
	require.Len(t, got[0].Entities, 1)
	assert.Zero(t, unused.calls)
	assert.Equal(t, []string{"openai", "gemini", "anthropic"}, src.Providers())

	req := gemini.last
	assert.Equal(t, "gemini-2.0-flash", req.Model)
	assert.Equal(t, 0.3, req.Temperature)
	assert.Equal(t, 1000, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.True(t, strings.HasPrefix(req.Messages[0].Content, factSystemPrompt))
	assert.Equal(t, "Cung cấp thông tin về: phép cộng", req.Messages[1].Content)
}

func TestAPISourceAllFailing(t *testing.T) {
	src := NewAPISource([]NamedProvider{{Name: "openai", Provider: &fakeProvider{err: errors.New("boom")}}}, nil)
	got, err := src.Collect(context.Background(), "q", 2)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "openai: boom")
	assert.Empty(t, got)

	got, err = NewAPISource(nil, nil).Collect(context.Background(), "q", 2)
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseFactRecord(t *testing.T) {
	t.Run("json with prose", func(t *testing.T) {
		rec := parseFactRecord(`Đây là kết quả: {"content": "Tổng", "relations": [{"source": "a", "target": "b", "relation_type": "is_a"}]} xong.`, "phép cộng", "openai")
		assert.Equal(t, "Thông tin về phép cộng", rec.Title)
		assert.Equal(t, "Tổng", rec.Content)
		assert.Equal(t, "openai", rec.Source)
		assert.Len(t, rec.Relations, 1)
	})

	t.Run("plain text", func(t *testing.T) {
		reply := strings.Repeat("x", 250)
		rec := parseFactRecord(reply, "phép cộng", "anthropic")
		assert.Equal(t, "Thông tin về phép cộng", rec.Title)
		assert.Equal(t, reply, rec.Content)
		assert.Equal(t, 0.7, *rec.Confidence)
		require.Len(t, rec.Entities, 1)
		assert.Equal(t, "phép cộng", rec.Entities[0].Name)
		assert.Len(t, rec.Entities[0].Description, 200)
	})

	t.Run("array of records falls back", func(t *testing.T) {
		rec := parseFactRecord(`[{"title": "x"}, {"title": "y"}]`, "q", "openai")
		assert.Equal(t, "Thông tin về q", rec.Title)
		assert.Len(t, rec.Entities, 1)
	})
}

func TestExtractJSON(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}\n```":     `{"a":1}`,
		`say {"a":{"b":2}} ok`:     `{"a":{"b":2}}`,
		"no json here":            "",
		"} backwards {":           "",
	}
	for in, want := range tests {
		assert.Equal(t, want, extractJSON(in), in)
	}
}

type fixedKeywords []string

func (k fixedKeywords) Keywords(string) []string { return k }

func TestDocumentSource(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "toan")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	write := func(path, content string) {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write(filepath.Join(dir, "phep-cong.txt"), "Phép cộng là phép toán cơ bản.")
	write(filepath.Join(sub, "so-hoc.md"), "# Số học\nPhép nhân và phép chia.")
	write(filepath.Join(dir, "hinh-hoc.md"), "# Hình học\nTam giác.")
	write(filepath.Join(dir, "bang.csv"), "phép,cộng")

	src := NewDocumentSource([]string{dir, filepath.Join(dir, "missing")}, nil, fixedKeywords{"phép", "cộng"}, nil)
	assert.Equal(t, []string{
		filepath.Join(dir, "hinh-hoc.md"),
		filepath.Join(dir, "phep-cong.txt"),
		filepath.Join(sub, "so-hoc.md"),
	}, src.Files())

	got, err := src.Collect(context.Background(), "phép cộng là gì", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "phep-cong", got[0].Title)
	assert.Equal(t, "file:phep-cong.txt", got[0].Source)
	assert.Equal(t, 0.75, *got[0].Confidence)
	assert.Equal(t, "Phép cộng là phép toán cơ bản.", got[0].Content)
	assert.Equal(t, "so-hoc", got[1].Title)

	got, err = src.Collect(context.Background(), "phép cộng", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	all, err := src.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"hinh-hoc", "phep-cong", "so-hoc"}, []string{all[0].Title, all[1].Title, all[2].Title})
	assert.Equal(t, "Số học\nPhép nhân và phép chia.", all[2].Content)
}

func TestDocumentSourceSplitsLongDocuments(t *testing.T) {
	dir := t.TempDir()
	multiply := strings.TrimSpace(strings.Repeat("phép nhân ", 300))
	add := strings.TrimSpace(strings.Repeat("phép cộng ", 300))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dai.txt"), []byte(multiply+"\n\n"+add), 0o644))

	src := NewDocumentSource([]string{dir}, nil, fixedKeywords{"cộng"}, nil)

	all, err := src.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "dai (phần 1)", all[0].Title)
	assert.Equal(t, "dai (phần 2)", all[1].Title)
	assert.Equal(t, multiply, all[0].Content)
	assert.True(t, strings.HasSuffix(all[1].Content, add))
	assert.True(t, strings.HasPrefix(all[1].Content, "phép nhân"), "second part starts with the overlap")

	got, err := src.Collect(context.Background(), "phép cộng", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "dai", got[0].Title)
	assert.Equal(t, all[1].Content, got[0].Content)
}
