// Package nlp holds the light text processing used for retrieval: keyword
// extraction, cleaning, similarity and input sanitising. Vietnamese is the
// primary language; English stop words are filtered as well.
package nlp

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxKeywords is the number of keywords Keywords returns.
const DefaultMaxKeywords = 10

var wordRe = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+`)

var vietnameseStopwords = toSet(
	"là", "và", "của", "có", "trong", "cho", "với", "được", "không",
	"những", "các", "để", "một", "về", "từ", "khi", "đến", "tôi", "bạn",
	"chúng", "họ", "ở", "như", "đã", "sẽ", "cũng", "nhưng", "mà", "hay",
	"vì", "nếu", "này", "đó", "thì", "tại", "còn", "bởi", "theo", "rằng",
	"lại", "vậy", "nên", "dù", "tuy", "ai", "bằng", "vào", "ra", "nhiều",
	"ít", "rất", "đang", "nào", "làm", "biết", "phải", "hơn", "trên",
	"dưới", "chỉ", "rồi", "sau", "trước", "đầu", "cuối", "thôi", "lúc",
)

var englishStopwords = toSet(
	"a", "an", "and", "are", "as", "at", "be", "by", "do", "does", "for",
	"from", "how", "in", "is", "it", "of", "on", "or", "that", "the",
	"this", "to", "was", "what", "when", "where", "which", "who", "why",
	"with", "can", "you", "me", "about",
)

// Extractor pulls keywords out of text. The zero value is not usable; use
// NewExtractor.
type Extractor struct {
	max  int
	stop map[string]bool
}

// NewExtractor returns an Extractor with the built-in stop word lists.
func NewExtractor() *Extractor {
	stop := make(map[string]bool, len(vietnameseStopwords)+len(englishStopwords))
	for w := range vietnameseStopwords {
		stop[w] = true
	}
	for w := range englishStopwords {
		stop[w] = true
	}
	return &Extractor{max: DefaultMaxKeywords, stop: stop}
}

// Keywords returns up to DefaultMaxKeywords distinct keywords of text,
// most frequent first.
func (e *Extractor) Keywords(text string) []string {
	return e.Top(text, e.max)
}

// Top returns up to n distinct folded keywords ordered by frequency. Ties
// keep first-occurrence order. Stop words and one-character tokens are
// dropped.
func (e *Extractor) Top(text string, n int) []string {
	if text == "" || n <= 0 {
		return nil
	}

	freq := make(map[string]int)
	var order []string
	for _, w := range Tokens(text) {
		if e.stop[w] || len([]rune(w)) <= 1 {
			continue
		}
		if freq[w] == 0 {
			order = append(order, w)
		}
		freq[w]++
	}

	sort.SliceStable(order, func(i, j int) bool { return freq[order[i]] > freq[order[j]] })
	if len(order) > n {
		order = order[:n]
	}
	return order
}

// Tokens splits text into folded word tokens.
func Tokens(text string) []string {
	return wordRe.FindAllString(Fold(text), -1)
}

// Fold normalises text to NFC and lower case so that precomposed and
// decomposed Vietnamese diacritics compare equal.
func Fold(text string) string {
	return strings.ToLower(norm.NFC.String(text))
}

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
