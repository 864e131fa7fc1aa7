// Package chunker splits long document text into pieces small enough to be
// learned as separate records.
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Config controls the chunking behaviour.
type Config struct {
	MaxRunes int // Maximum runes per chunk.
	Overlap  int // Runes of trailing text repeated at the start of the next chunk.
}

// Chunker splits text at paragraph and then sentence boundaries.
type Chunker struct {
	cfg Config
}

// New returns a Chunker with the given configuration.
// Zero-value fields are replaced with defaults.
func New(cfg Config) *Chunker {
	if cfg.MaxRunes <= 0 {
		cfg.MaxRunes = 5000
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	if cfg.Overlap >= cfg.MaxRunes/2 {
		cfg.Overlap = cfg.MaxRunes / 4
	}
	return &Chunker{cfg: cfg}
}

// Split breaks text into chunks of at most MaxRunes runes. Text that already
// fits is returned whole. Consecutive chunks share up to Overlap runes of
// whole words.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if runes(text) <= c.cfg.MaxRunes {
		return []string{text}
	}

	b := &builder{max: c.cfg.MaxRunes, overlap: c.cfg.Overlap}
	for _, para := range splitParagraphs(text) {
		if runes(para) <= c.cfg.MaxRunes {
			b.add(para, "\n\n")
			continue
		}
		for _, sent := range splitSentences(para) {
			for _, piece := range hardSplit(sent, c.cfg.MaxRunes) {
				b.add(piece, " ")
			}
		}
	}
	return b.finish()
}

// builder accumulates pieces into chunks.
type builder struct {
	max     int
	overlap int

	chunks []string
	cur    strings.Builder
	n      int  // runes in cur
	fresh  bool // cur holds only overlap text
}

func (b *builder) add(piece, sep string) {
	size := runes(piece)
	if b.n > 0 && b.n+runes(sep)+size > b.max {
		if !b.fresh {
			b.flush()
		}
		// The overlap alone may leave no room for the piece.
		if b.n+runes(sep)+size > b.max {
			b.reset()
		}
	}
	if b.n > 0 {
		b.cur.WriteString(sep)
		b.n += runes(sep)
	}
	b.cur.WriteString(piece)
	b.n += size
	b.fresh = false
}

func (b *builder) reset() {
	b.cur.Reset()
	b.n = 0
	b.fresh = false
}

func (b *builder) flush() {
	chunk := strings.TrimSpace(b.cur.String())
	b.chunks = append(b.chunks, chunk)
	b.reset()
	if tail := overlapTail(chunk, b.overlap); tail != "" {
		b.cur.WriteString(tail)
		b.n = runes(tail)
		b.fresh = true
	}
}

func (b *builder) finish() []string {
	if b.n > 0 && !b.fresh {
		b.chunks = append(b.chunks, strings.TrimSpace(b.cur.String()))
	}
	return b.chunks
}

func runes(s string) int { return utf8.RuneCountInString(s) }

// splitParagraphs splits text on blank-line boundaries.
func splitParagraphs(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitSentences splits on '.', '?', '!' or '…' followed by whitespace or
// the end of the text.
func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder

	rs := []rune(text)
	for i, r := range rs {
		cur.WriteRune(r)
		switch r {
		case '.', '?', '!', '…':
			if i+1 == len(rs) || unicode.IsSpace(rs[i+1]) {
				if s := strings.TrimSpace(cur.String()); s != "" {
					sentences = append(sentences, s)
				}
				cur.Reset()
			}
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// hardSplit cuts a sentence longer than max at word boundaries, or at max
// runes when a single word is longer.
func hardSplit(s string, max int) []string {
	if runes(s) <= max {
		return []string{s}
	}
	var out []string
	var cur []rune
	for _, w := range strings.Fields(s) {
		wr := []rune(w)
		for len(wr) > max {
			if len(cur) > 0 {
				out = append(out, string(cur))
				cur = nil
			}
			out = append(out, string(wr[:max]))
			wr = wr[max:]
		}
		if len(cur) > 0 && len(cur)+1+len(wr) > max {
			out = append(out, string(cur))
			cur = nil
		}
		if len(cur) > 0 {
			cur = append(cur, ' ')
		}
		cur = append(cur, wr...)
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}

// overlapTail returns the longest run of trailing whole words of text that
// fits in max runes.
func overlapTail(text string, max int) string {
	if max <= 0 {
		return ""
	}
	words := strings.Fields(text)
	n := 0
	start := len(words)
	for i := len(words) - 1; i >= 0; i-- {
		size := runes(words[i])
		if n > 0 {
			size++
		}
		if n+size > max {
			break
		}
		n += size
		start = i
	}
	return strings.Join(words[start:], " ")
}
