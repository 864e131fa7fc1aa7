package parser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrEmptyWorkbook is returned for workbooks without any non-empty cell.
var ErrEmptyWorkbook = errors.New("parser: workbook has no data")

// XLSXParser reads each sheet as a table whose first non-empty row holds the
// column names. Every later row becomes one "name: value; ..." line so the
// facts stay readable once flattened to text.
type XLSXParser struct{}

func (p *XLSXParser) SupportedFormats() []string { return []string{"xlsx"} }

func (p *XLSXParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	var sections []Section
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		lines := sheetLines(rows)
		if len(lines) == 0 {
			continue
		}
		sections = append(sections, Section{
			Heading: sheet,
			Content: strings.Join(lines, "\n"),
			Type:    "table",
			Level:   1,
			Metadata: map[string]string{
				"sheet_name": sheet,
				"row_count":  strconv.Itoa(len(lines)),
			},
		})
	}

	if len(sections) == 0 {
		return nil, ErrEmptyWorkbook
	}
	return &ParseResult{Sections: sections, Method: "native"}, nil
}

// sheetLines renders data rows against the header row. A sheet with only a
// header yields the header itself.
func sheetLines(rows [][]string) []string {
	var header []string
	var lines []string
	for _, row := range rows {
		cells := trimCells(row)
		if len(cells) == 0 {
			continue
		}
		if header == nil {
			header = cells
			continue
		}
		var parts []string
		for i, v := range cells {
			if v == "" {
				continue
			}
			if i < len(header) && header[i] != "" {
				parts = append(parts, header[i]+": "+v)
			} else {
				parts = append(parts, v)
			}
		}
		lines = append(lines, strings.Join(parts, "; "))
	}
	if len(lines) == 0 && header != nil {
		lines = append(lines, strings.Join(nonEmpty(header), "; "))
	}
	return lines
}

// trimCells trims every cell and drops trailing empty cells.
func trimCells(row []string) []string {
	cells := make([]string, len(row))
	last := -1
	for i, c := range row {
		cells[i] = strings.TrimSpace(c)
		if cells[i] != "" {
			last = i
		}
	}
	return cells[:last+1]
}

func nonEmpty(cells []string) []string {
	var out []string
	for _, c := range cells {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}
