package parser

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrNoTextLayer is returned for PDFs whose pages carry no extractable text,
// typically scans.
var ErrNoTextLayer = errors.New("parser: PDF has no text layer")

// PDFParser extracts the text layer of PDF files page by page. Lines that
// repeat on most pages (running headers, footers, page numbers) are dropped
// before the text is split into sections at heading lines.
type PDFParser struct{}

func (p *PDFParser) SupportedFormats() []string { return []string{"pdf"} }

func (p *PDFParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	total := reader.NumPage()
	pages := make([][]string, total)
	skipped := 0
	for i := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pg := reader.Page(i + 1)
		if pg.V.IsNull() {
			skipped++
			continue
		}
		text, err := pg.GetPlainText(nil)
		if err != nil {
			skipped++
			continue
		}
		pages[i] = strings.Split(text, "\n")
	}
	dropRunningLines(pages)

	var sections []Section
	for i, lines := range pages {
		sections = append(sections, sectionize(lines, i+1)...)
	}
	if len(sections) == 0 {
		return nil, ErrNoTextLayer
	}
	return &ParseResult{
		Sections: sections,
		Method:   "native",
		Metadata: map[string]string{
			"pages":         strconv.Itoa(total),
			"skipped_pages": strconv.Itoa(skipped),
		},
	}, nil
}

var digitsRe = regexp.MustCompile(`\d+`)

// dropRunningLines blanks lines that occur on at least half of the pages of
// a document with three or more pages. Digits are ignored when comparing so
// "Trang 3" and "Trang 4" count as the same line.
func dropRunningLines(pages [][]string) {
	if len(pages) < 3 {
		return
	}
	key := func(line string) string {
		return digitsRe.ReplaceAllString(strings.TrimSpace(line), "#")
	}

	seen := make(map[string]int)
	for _, lines := range pages {
		onPage := make(map[string]bool)
		for _, l := range lines {
			if k := key(l); k != "" && !onPage[k] {
				onPage[k] = true
				seen[k]++
			}
		}
	}
	limit := (len(pages) + 1) / 2
	for _, lines := range pages {
		for j, l := range lines {
			if seen[key(l)] >= limit {
				lines[j] = ""
			}
		}
	}
}

// splitPageIntoSections breaks the text of one page into sections.
func splitPageIntoSections(text string, pageNum int) []Section {
	return sectionize(strings.Split(text, "\n"), pageNum)
}

func sectionize(lines []string, pageNum int) []Section {
	var (
		sections []Section
		heading  string
		level    int
		body     []string
	)
	flush := func() {
		content := strings.TrimSpace(strings.Join(body, "\n"))
		body = body[:0]
		if content == "" {
			return
		}
		sections = append(sections, Section{
			Heading:    heading,
			Content:    content,
			Level:      level,
			PageNumber: pageNum,
			Type:       classifySectionType(heading, content),
		})
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if lv := headingLevel(line); lv > 0 {
			flush()
			heading, level = line, lv
			continue
		}
		// Blank lines survive as paragraph breaks, but never lead a body.
		if line != "" || len(body) > 0 {
			body = append(body, line)
		}
	}
	flush()
	return sections
}

// Structural words that open a heading when followed by a numeral, mapped to
// the level they introduce.
var headingCues = map[string]int{
	"phần": 1, "part": 1,
	"chương": 1, "chapter": 1,
	"bài": 2, "lesson": 2,
	"mục": 2, "section": 2,
	"điều": 3, "article": 3,
}

var (
	decimalNumRe = regexp.MustCompile(`^\d+(\.\d+)*\.?$`)
	romanNumRe   = regexp.MustCompile(`^[ivxlc]+$`)
	romanTitleRe = regexp.MustCompile(`^[IVXLC]+\.$`)
)

// headingLevel returns the level of line as a heading, or 0 for body text.
//
//	"Chương IV Hàm số", "Phần 2:"     cue word plus numeral, level per cue
//	"1. Mở đầu", "1.2.3 Chi tiết"     decimal numbering before a capital,
//	                                  one level per group
//	"II. Nội dung"                    roman numeral title, level 1
//	"GIỚI THIỆU"                      short all-caps line, level 1
func headingLevel(line string) int {
	n := utf8.RuneCountInString(line)
	if n < 3 || n >= 120 {
		return 0
	}

	first, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	if lv, ok := headingCues[strings.ToLower(first)]; ok && rest != "" {
		num, _, _ := strings.Cut(rest, " ")
		num = strings.ToLower(strings.TrimRight(num, ".:"))
		if decimalNumRe.MatchString(num) || romanNumRe.MatchString(num) {
			return lv
		}
	}
	if startsUpper(rest) && decimalNumRe.MatchString(first) {
		return len(strings.Split(strings.TrimSuffix(first, "."), "."))
	}
	if rest != "" && romanTitleRe.MatchString(first) {
		return 1
	}
	if n <= 100 && line == strings.ToUpper(line) && line != strings.ToLower(line) {
		return 1
	}
	return 0
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

func classifySectionType(heading, content string) string {
	h := strings.ToLower(heading)
	c := strings.ToLower(content)

	switch {
	case containsAny(h, "definition", "glossary", "định nghĩa", "khái niệm", "thuật ngữ"),
		containsAny(c, "is defined as", "được định nghĩa"):
		return "definition"
	case containsAny(h, "example", "ví dụ", "minh họa"):
		return "example"
	case containsAny(h, "table", "bảng"),
		strings.Count(content, "\t") > 3, strings.Count(content, "|") > 3:
		return "table"
	}
	return "section"
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
