package parser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// ---------------------------------------------------------------------------
// Registry tests
// ---------------------------------------------------------------------------

func TestRegistryBuiltInParsers(t *testing.T) {
	reg := NewRegistry(nil)

	formats := []string{"pdf", "xlsx", "txt", "md", "markdown"}
	for _, format := range formats {
		t.Run(format, func(t *testing.T) {
			p, err := reg.Get(format)
			if err != nil {
				t.Fatalf("Get(%q) returned error: %v", format, err)
			}
			found := false
			for _, f := range p.SupportedFormats() {
				if f == format {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("parser for %q does not list it in SupportedFormats(): %v", format, p.SupportedFormats())
			}
		})
	}
}

func TestRegistryUnknown(t *testing.T) {
	reg := NewRegistry(nil)

	for _, format := range []string{"docx", "pptx", "csv", "html", ""} {
		t.Run("format_"+format, func(t *testing.T) {
			p, err := reg.Get(format)
			if err == nil {
				t.Errorf("Get(%q) expected error, got parser: %v", format, p)
			}
		})
	}
}

func TestRegistryCustomParser(t *testing.T) {
	reg := NewRegistry(nil)

	if reg.Supports("notes.rst") {
		t.Fatal("rst should not be supported before Register")
	}
	reg.Register("RST", &TextParser{})
	if !reg.Supports("notes.rst") {
		t.Fatal("rst should be supported after Register")
	}
	if got := reg.Formats(); got[0] != "markdown" || got[len(got)-1] != "xlsx" {
		t.Errorf("Formats() = %v, want sorted list", got)
	}
}

func TestFormat(t *testing.T) {
	tests := map[string]string{
		"a/b/Report.PDF":   "pdf",
		"notes.md":         "md",
		"archive.tar.gz":   "gz",
		"README":           "",
		"dir.v2/notes.txt": "txt",
	}
	for in, want := range tests {
		if got := Format(in); got != want {
			t.Errorf("Format(%q) = %q, want %q", in, got, want)
		}
	}
}

// ---------------------------------------------------------------------------
// Text and Markdown
// ---------------------------------------------------------------------------

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseFilePlainText(t *testing.T) {
	path := writeFile(t, "phep-cong.txt", "Phép cộng là phép toán cơ bản.\r\n")

	res, err := NewRegistry(nil).ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(res.Sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(res.Sections))
	}
	if res.Sections[0].Heading != "" {
		t.Errorf("Heading = %q", res.Sections[0].Heading)
	}
	if res.Sections[0].Content != "Phép cộng là phép toán cơ bản." {
		t.Errorf("Content = %q", res.Sections[0].Content)
	}
}

func TestParseEmptyText(t *testing.T) {
	path := writeFile(t, "empty.txt", "  \n")

	res, err := (&TextParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Sections) != 0 || res.Text() != "" {
		t.Errorf("expected no sections, got %+v", res.Sections)
	}
}

func TestParseMarkdownHeadings(t *testing.T) {
	path := writeFile(t, "toan.md", "# Phép cộng\nPhép cộng là phép toán cơ bản.\n\n## Ví dụ\n1 + 1 = 2\n#hashtag stays text\n")

	res, err := (&TextParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d: %+v", len(res.Sections), res.Sections)
	}
	first, second := res.Sections[0], res.Sections[1]
	if first.Heading != "Phép cộng" || first.Level != 1 || first.Type != "section" {
		t.Errorf("first section = %+v", first)
	}
	if second.Heading != "Ví dụ" || second.Level != 2 || second.Type != "example" {
		t.Errorf("second section = %+v", second)
	}
	if second.Content != "1 + 1 = 2\n#hashtag stays text" {
		t.Errorf("second content = %q", second.Content)
	}
}

func TestParseResultText(t *testing.T) {
	res := &ParseResult{Sections: []Section{
		{Heading: "A", Content: "one"},
		{Content: "two"},
	}}
	if got := res.Text(); got != "A\none\n\ntwo" {
		t.Errorf("Text() = %q", got)
	}
	var nilRes *ParseResult
	if nilRes.Text() != "" {
		t.Error("nil result should flatten to empty text")
	}
}

// ---------------------------------------------------------------------------
// XLSX
// ---------------------------------------------------------------------------

func TestParseXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bang.xlsx")
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "Tên")
	f.SetCellValue("Sheet1", "B1", "Giá trị")
	f.SetCellValue("Sheet1", "A2", "Pi")
	f.SetCellValue("Sheet1", "B2", "3.14")
	f.SetCellValue("Sheet1", "A4", " e ")
	f.SetCellValue("Sheet1", "C4", "số Euler")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	res, err := NewRegistry(nil).ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(res.Sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(res.Sections))
	}
	sec := res.Sections[0]
	if sec.Heading != "Sheet1" || sec.Type != "table" {
		t.Errorf("section = %+v", sec)
	}
	if sec.Content != "Tên: Pi; Giá trị: 3.14\nTên: e; số Euler" {
		t.Errorf("Content = %q", sec.Content)
	}
	if sec.Metadata["row_count"] != "2" {
		t.Errorf("row_count = %q", sec.Metadata["row_count"])
	}
}

func TestSheetLines(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
		want []string
	}{
		{"empty", [][]string{{}, {" ", ""}}, nil},
		{"header only", [][]string{{"Tên", "", "Tuổi"}}, []string{"Tên; Tuổi"}},
		{"skips blank cells", [][]string{{"A", "B"}, {"", "2"}}, []string{"B: 2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sheetLines(tt.rows)
			if strings.Join(got, "\n") != strings.Join(tt.want, "\n") || len(got) != len(tt.want) {
				t.Errorf("sheetLines = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseMissingPDF(t *testing.T) {
	_, err := NewRegistry(nil).ParseFile(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	if err == nil || !strings.Contains(err.Error(), "missing.pdf") {
		t.Errorf("expected wrapped error naming the file, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// PDF sectioning tests
// ---------------------------------------------------------------------------

func TestSplitPageIntoSections(t *testing.T) {
	text := `GIỚI THIỆU
Phép cộng là phép toán cơ bản.

1.1 Định nghĩa
Phép cộng được định nghĩa là tổng của hai số.

Chương 2 Ví dụ
Hai cộng ba bằng năm.`

	sections := splitPageIntoSections(text, 4)
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d: %+v", len(sections), sections)
	}

	want := []struct {
		heading string
		level   int
		typ     string
	}{
		{"GIỚI THIỆU", 1, "section"},
		{"1.1 Định nghĩa", 2, "definition"},
		{"Chương 2 Ví dụ", 1, "example"},
	}
	for i, w := range want {
		s := sections[i]
		if s.Heading != w.heading || s.Level != w.level || s.Type != w.typ {
			t.Errorf("section[%d] = {%q %d %q}, want {%q %d %q}", i, s.Heading, s.Level, s.Type, w.heading, w.level, w.typ)
		}
		if s.PageNumber != 4 {
			t.Errorf("section[%d].PageNumber = %d, want 4", i, s.PageNumber)
		}
		if s.Content == "" {
			t.Errorf("section[%d].Content is empty", i)
		}
	}
}

func TestSplitPageIntoSectionsNoHeadings(t *testing.T) {
	sections := splitPageIntoSections("This is just a regular paragraph with no headings at all.", 5)
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	if sections[0].Heading != "" || sections[0].Type != "section" {
		t.Errorf("section = %+v", sections[0])
	}
}

func TestSplitPageIntoSectionsBlank(t *testing.T) {
	for _, text := range []string{"", "   \n\n   \n  "} {
		if sections := splitPageIntoSections(text, 1); len(sections) != 0 {
			t.Errorf("expected 0 sections for %q, got %d", text, len(sections))
		}
	}
}

func TestHeadingLevel(t *testing.T) {
	tests := []struct {
		line string
		want int
	}{
		{"INTRODUCTION", 1},
		{"GIỚI THIỆU", 1},
		{"AB", 0},
		{"2024", 0},
		{"1 + 1 = 2", 0},
		{"3.14 là số pi", 0},
		{"1. Introduction", 1},
		{"1.1 Scope", 2},
		{"1.2.3 Chi tiết", 3},
		{"Chương 3 Hàm số", 1},
		{"CHƯƠNG IV", 1},
		{"Chương trình học", 0},
		{"Phần 1", 1},
		{"Phần mềm máy tính", 0},
		{"Bài 5: Phép nhân", 2},
		{"Mục 2.1 Khái niệm", 2},
		{"Mục lục", 0},
		{"Điều 12. Phạm vi", 3},
		{"Điều kiện cần", 0},
		{"Section 5 General", 2},
		{"II. Nội dung chính", 1},
		{"Summary", 0},
		{"This is a regular sentence.", 0},
		{strings.Repeat("A", 101), 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := headingLevel(tt.line); got != tt.want {
			t.Errorf("headingLevel(%q) = %d, want %d", tt.line, got, tt.want)
		}
	}
}

func TestDropRunningLines(t *testing.T) {
	pages := [][]string{
		{"Giáo trình Toán 6", "Phép cộng là phép toán.", "Trang 1"},
		{"Giáo trình Toán 6", "Phép nhân lặp lại phép cộng.", "Trang 2"},
		{"Giáo trình Toán 6", "Phép chia ngược với phép nhân.", "Trang 3"},
	}
	dropRunningLines(pages)

	for i, lines := range pages {
		if lines[0] != "" || lines[2] != "" {
			t.Errorf("page %d kept running lines: %q", i+1, lines)
		}
		if lines[1] == "" {
			t.Errorf("page %d lost its body", i+1)
		}
	}

	short := [][]string{{"Tiêu đề", "a"}, {"Tiêu đề", "b"}}
	dropRunningLines(short)
	if short[0][0] != "Tiêu đề" {
		t.Error("two-page documents are left untouched")
	}
}

func TestSectionizeAfterRunningLines(t *testing.T) {
	pages := [][]string{
		{"Toán 6", "Chương 1 Số tự nhiên", "Số tự nhiên gồm 0, 1, 2."},
		{"Toán 6", "Điều 2. Phép cộng", "Phép cộng gộp hai số."},
		{"Toán 6", "Ví dụ: 2 + 3 = 5."},
	}
	dropRunningLines(pages)

	var sections []Section
	for i, lines := range pages {
		sections = append(sections, sectionize(lines, i+1)...)
	}
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d: %+v", len(sections), sections)
	}
	if sections[0].Heading != "Chương 1 Số tự nhiên" || sections[0].Level != 1 {
		t.Errorf("first section = %+v", sections[0])
	}
	if sections[1].Heading != "Điều 2. Phép cộng" || sections[1].Level != 3 || sections[1].PageNumber != 2 {
		t.Errorf("second section = %+v", sections[1])
	}
	if sections[2].Heading != "" || sections[2].Content != "Ví dụ: 2 + 3 = 5." {
		t.Errorf("third section = %+v", sections[2])
	}
}

func TestClassifySectionType(t *testing.T) {
	tests := []struct {
		heading string
		content string
		want    string
	}{
		{"Definitions", "Terms used below.", "definition"},
		{"Khái niệm", "Hàm số là gì.", "definition"},
		{"", "A vector is defined as an ordered list.", "definition"},
		{"Ví dụ minh họa", "2 + 2 = 4", "example"},
		{"Bảng 1", "Some content", "table"},
		{"Data", "A | B | C | D | E", "table"},
		{"Data", "A\tB\tC\tD\tE", "table"},
		{"Introduction", "An overview.", "section"},
	}
	for _, tt := range tests {
		if got := classifySectionType(tt.heading, tt.content); got != tt.want {
			t.Errorf("classifySectionType(%q, %q) = %q, want %q", tt.heading, tt.content, got, tt.want)
		}
	}
}
