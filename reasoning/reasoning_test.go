package reasoning

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/goknow/graph"
)

func node(id, name, desc, source string, relevance float64) graph.Result {
	attrs := graph.Attrs{}
	if name != "" {
		attrs[graph.AttrName] = name
	}
	if desc != "" {
		attrs[graph.AttrDescription] = desc
	}
	if source != "" {
		attrs[graph.AttrSource] = source
	}
	return graph.Result{ID: id, Attrs: attrs, Relevance: relevance}
}

func TestClassifyQuestion(t *testing.T) {
	tests := []struct {
		query string
		want  QuestionType
	}{
		{"Phép cộng là gì?", Definition},
		{"Định nghĩa của năng lượng", Definition},
		{"What is a goroutine?", Definition},
		{"Tại sao trời mưa?", Explanation},
		{"Why is the sky blue?", Explanation},
		{"Làm thế nào để nấu cơm?", HowTo},
		{"How to install Go", HowTo},
		{"Cho ví dụ về động vật có vú", Example},
		{"Give me an example of recursion", Example},
		{"So sánh Python và Go", Comparison},
		{"Difference between TCP and UDP", Comparison},
		{"Liệt kê các loại trái cây", List},
		{"List the planets", List},
		{"Hà Nội", Information},
		{"LÀ GÌ", Definition},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyQuestion(tt.query))
		})
	}
}

func TestEvaluateRelevance(t *testing.T) {
	assert.Equal(t, 0.0, EvaluateRelevance(nil, "q"))

	results := []graph.Result{{Relevance: 1.0}, {Relevance: 0.5}}
	assert.InDelta(t, 0.7*1.0+0.3*0.75, EvaluateRelevance(results, "q"), 1e-9)

	single := []graph.Result{{Relevance: 0.4}}
	assert.InDelta(t, 0.4, EvaluateRelevance(single, "q"), 1e-9)
}

func TestReasonNoResults(t *testing.T) {
	ans := New().Reason("anything", nil)
	assert.False(t, ans.Success)
	assert.Equal(t, "Tôi không có đủ thông tin để trả lời câu hỏi này.", ans.Text)
	assert.Equal(t, 0.0, ans.Confidence)
	assert.Empty(t, ans.Sources)
}

func TestReasonMetadata(t *testing.T) {
	results := []graph.Result{
		node("b", "B", "second", "unknown", 0.5),
		node("a", "A", "first", "wiki", 1.0),
		node("c", "", "third", "wiki", 0.4),
		node("d", "D", "", "docs", 0.35),
	}
	ans := New().Reason("Hà Nội", results)
	require.True(t, ans.Success)
	assert.Equal(t, Information, ans.QuestionType)
	assert.Equal(t, 0.9, ans.Confidence, "confidence is capped")
	assert.Equal(t, []string{"wiki", "docs"}, ans.Sources)
	assert.Equal(t, "first\n\nsecond\n\nthird", ans.Text)
	assert.GreaterOrEqual(t, ans.ReasoningTime, 0.0)

	low := New().Reason("Hà Nội", []graph.Result{node("x", "X", "text", "", 0.45)})
	assert.Equal(t, 0.45, low.Confidence)
}

func TestReasonTemplates(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		results []graph.Result
	}{
		{
			name:  "definition",
			query: "Phép cộng là gì?",
			results: []graph.Result{
				node("concept_a", "Số học", "ngành toán học", "", 0.9),
				node("concept_b", "Phép cộng", "phép toán gộp hai số", "sgk", 0.8),
			},
		},
		{
			name:  "definition_missing",
			query: "Phép chia là gì?",
			results: []graph.Result{
				node("concept_c", "Phép chia", "", "", 1.0),
			},
		},
		{
			name:  "explanation",
			query: "Tại sao trời mưa?",
			results: []graph.Result{
				node("r1", "Mây", "Hơi nước ngưng tụ thành mây.", "", 0.9),
				node("r2", "Gió", "", "", 0.8),
				node("r3", "Mưa", "Mây nặng thì rơi xuống thành mưa.", "", 0.7),
				node("r4", "Nắng", "Không dùng.", "", 0.6),
			},
		},
		{
			name:  "how_to",
			query: "Làm thế nào để nấu cơm?",
			results: []graph.Result{
				node("h1", "Nồi", "Dùng nồi.", "", 0.9),
				node("h2", "Vo gạo", "Vo gạo sạch, cho vào nồi với lượng nước vừa đủ rồi bật bếp nấu chín.", "", 0.8),
				node("h3", "Ủ cơm", "Sau khi cơm sôi, hạ nhỏ lửa và ủ thêm mười phút để hạt cơm chín đều.", "", 0.7),
			},
		},
		{
			name:  "example",
			query: "Cho ví dụ về động vật có vú",
			results: []graph.Result{
				node("e1", "Động vật có vú", "Động vật có vú nuôi con bằng sữa.", "", 0.9),
				node("e2", "Cá voi", "Ví dụ: cá voi, con người.", "", 0.6),
			},
		},
		{
			name:  "example_fallback",
			query: "Minh họa về mặt trời",
			results: []graph.Result{
				node("s1", "Mặt trời", "Ngôi sao gần Trái Đất nhất.", "", 1.0),
			},
		},
		{
			name:  "comparison",
			query: "So sánh Python và Go",
			results: []graph.Result{
				node("p", "Python", "Ngôn ngữ thông dịch.", "", 1.0),
				node("g", "Go", "Ngôn ngữ biên dịch.", "", 1.0),
				node("j", "Java", "Chạy trên JVM.", "", 0.5),
			},
		},
		{
			name:  "comparison_insufficient",
			query: "So sánh Python và Rust",
			results: []graph.Result{
				node("p", "Python", "Ngôn ngữ thông dịch.", "", 1.0),
			},
		},
		{
			name:  "list",
			query: "Liệt kê các loại trái cây",
			results: []graph.Result{
				node("f1", "Táo", "quả màu đỏ", "", 0.9),
				node("f2", "Cam", "quả nhiều vitamin C", "", 0.85),
				node("f3", "Chuối", "quả dài", "", 0.8),
				node("f4", "Xoài", "quả nhiệt đới", "", 0.75),
				node("f5", "Nho", "quả mọc thành chùm", "", 0.7),
				node("f6", "Dưa", "không được liệt kê", "", 0.65),
			},
		},
		{
			name:  "information",
			query: "Hà Nội",
			results: []graph.Result{
				node("i1", "Hà Nội", "Thủ đô của Việt Nam.", "", 1.0),
				node("i2", "Hồ Gươm", "Hồ nằm ở trung tâm Hà Nội.", "", 0.5),
			},
		},
		{
			name:  "information_empty",
			query: "Hà Nội",
			results: []graph.Result{
				node("i1", "Hà Nội", "", "", 1.0),
			},
		},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	engine := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ans := engine.Reason(tt.query, tt.results)
			require.True(t, ans.Success)
			g.Assert(t, tt.name, []byte(ans.Text))
		})
	}
}
