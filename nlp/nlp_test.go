package nlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywords(t *testing.T) {
	e := NewExtractor()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"vietnamese pair", "phép cộng", []string{"phép", "cộng"}},
		{"stop words dropped", "Phép cộng là gì và của ai", []string{"phép", "cộng", "gì"}},
		{"frequency first", "mạng nơ ron mạng học sâu mạng", []string{"mạng", "nơ", "ron", "học", "sâu"}},
		{"english stop words", "What is the Python language", []string{"python", "language"}},
		{"single characters dropped", "a b c go", []string{"go"}},
		{"empty", "", nil},
		{"only stop words", "là và của", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Keywords(tt.text))
		})
	}
}

func TestKeywordsCap(t *testing.T) {
	e := NewExtractor()
	got := e.Keywords("một hai ba bốn năm sáu bảy tám chín mười mười_một mười_hai")
	assert.Len(t, got, DefaultMaxKeywords)
}

func TestFoldNormalisesDecomposedText(t *testing.T) {
	decomposed := "Phe\u0301p co\u0323\u0302ng"
	assert.Equal(t, "phép cộng", Fold(decomposed))
	assert.Equal(t, []string{"phép", "cộng"}, NewExtractor().Keywords(decomposed))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Xin chào, thế giới!", CleanText("  Xin   chào,\n\tthế giới! ★ "))
	assert.Equal(t, "", CleanText(""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "phép", Truncate("phép cộng", 4))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "abc", Truncate("abc", -1))
}

func TestSimilarity(t *testing.T) {
	e := NewExtractor()
	assert.InDelta(t, 1.0, e.Similarity("phép cộng", "cộng phép"), 1e-9)
	assert.InDelta(t, 1.0/3.0, e.Similarity("phép cộng", "phép trừ"), 1e-9)
	assert.Zero(t, e.Similarity("", "phép cộng"))
	assert.Zero(t, e.Similarity("là và", "phép cộng"))
}

func TestFindEntities(t *testing.T) {
	e := NewExtractor()
	got := e.FindEntities("Python là ngôn ngữ")
	require.NotEmpty(t, got)
	assert.Equal(t, Mention{Name: "Python", Type: "MISC", Start: 0, End: 6}, got[0])

	names := make([]string, 0, len(got))
	for _, m := range got {
		names = append(names, m.Name)
	}
	assert.Contains(t, names, "ngôn")
}

func TestExpandQuery(t *testing.T) {
	e := NewExtractor()
	got := e.ExpandQuery("máy học nhanh")
	assert.Contains(t, got, "máy học nhanh")
	assert.Contains(t, got, "nghiên cứu")
	assert.Contains(t, got, "mau")
	assert.Equal(t, "", e.ExpandQuery(""))
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello  ", "hello"},
		{"<script>alert(1)</script>phép cộng", "phép cộng"},
		{"<b>bold</b> text", "bold text"},
		{"it's \"quoted\"; `x`", "its quoted x"},
		{"bell\x07char", "bellchar"},
		{"a & b", "a & b"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeInput(tt.in), "input %q", tt.in)
	}
}

func TestValidQuery(t *testing.T) {
	assert.True(t, ValidQuery("AI"))
	assert.False(t, ValidQuery(" a "))
	assert.False(t, ValidQuery(""))
}

func TestValidURL(t *testing.T) {
	assert.True(t, ValidURL("https://vi.wikipedia.org/wiki/Trí_tuệ_nhân_tạo"))
	assert.True(t, ValidURL("http://example.com"))
	assert.False(t, ValidURL("ftp://example.com"))
	assert.False(t, ValidURL("/relative/path"))
	assert.False(t, ValidURL(""))
}
