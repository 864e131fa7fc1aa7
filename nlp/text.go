package nlp

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// similarityKeywords is how many keywords of each text Similarity compares.
const similarityKeywords = 20

var (
	junkRe     = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s.,;:!?()"'-]`)
	spaceRe    = regexp.MustCompile(`\s+`)
	capitalRe  = regexp.MustCompile(`\b[A-Z][a-z]+\b`)
	longWordRe = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]{4,}`)
)

var synonyms = map[string][]string{
	"lớn":   {"to", "khổng lồ", "rộng", "đồ sộ"},
	"nhỏ":   {"bé", "nhỏ bé", "li ti", "tí hon"},
	"tốt":   {"hay", "tuyệt", "xuất sắc", "giỏi", "được"},
	"xấu":   {"dở", "kém", "tệ", "không tốt"},
	"nhanh": {"mau", "lẹ", "vội", "gấp"},
	"chậm":  {"từ từ", "thủng thẳng", "chầm chậm"},
	"đẹp":   {"xinh", "đáng yêu", "ưa nhìn"},
	"học":   {"nghiên cứu", "tìm hiểu", "đọc", "tìm tòi"},
}

// CleanText replaces characters other than letters, digits, whitespace and
// basic punctuation with spaces and collapses runs of whitespace.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = junkRe.ReplaceAllString(text, " ")
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Truncate cuts text to at most n runes.
func Truncate(text string, n int) string {
	if n < 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	r := []rune(text)
	return string(r[:n])
}

// Similarity is the Jaccard index of the keyword sets of a and b.
func (e *Extractor) Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	ka := e.Top(a, similarityKeywords)
	kb := e.Top(b, similarityKeywords)
	if len(ka) == 0 || len(kb) == 0 {
		return 0
	}

	set := make(map[string]bool, len(ka))
	for _, w := range ka {
		set[w] = true
	}
	inter := 0
	union := len(set)
	for _, w := range kb {
		if set[w] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

// Mention is a candidate entity found in free text.
type Mention struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// FindEntities returns capitalised words and long non-stop words as
// candidate entities of type MISC. Offsets are byte offsets of the first
// occurrence.
func (e *Extractor) FindEntities(text string) []Mention {
	seen := make(map[string]bool)
	var out []Mention
	add := func(w string) {
		if seen[w] {
			return
		}
		seen[w] = true
		start := strings.Index(text, w)
		out = append(out, Mention{Name: w, Type: "MISC", Start: start, End: start + len(w)})
	}

	for _, w := range capitalRe.FindAllString(text, -1) {
		add(w)
	}
	for _, w := range longWordRe.FindAllString(text, -1) {
		if !e.stop[Fold(w)] {
			add(w)
		}
	}
	return out
}

// ExpandQuery appends synonyms of the query's keywords that the query does
// not already contain.
func (e *Extractor) ExpandQuery(query string) string {
	if query == "" {
		return query
	}

	keywords := e.Keywords(query)
	expanded := query
	seen := make(map[string]bool)
	appendTerm := func(term string) {
		if seen[term] || strings.Contains(expanded, term) {
			return
		}
		seen[term] = true
		expanded += " " + term
	}
	for _, kw := range keywords {
		appendTerm(kw)
		for _, syn := range synonyms[kw] {
			appendTerm(syn)
		}
	}
	return expanded
}
