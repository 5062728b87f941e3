// Package bom reads bill-of-materials spreadsheets and yields the SFG
// sub-assembly rows that turn into process cards.
package bom

import (
	"bufio"
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/ashtavinayaka/tankflow/internal/tank/apperror"
	"github.com/xuri/excelize/v2"
)

// Options names the columns the parser looks at.
type Options struct {
	CodeColumn        string
	DescriptionColumn string
	CodePrefix        string
}

func DefaultOptions() Options {
	return Options{
		CodeColumn:        "No.",
		DescriptionColumn: "Description",
		CodePrefix:        "SFG",
	}
}

// LineItem is one SFG data row keyed by the header row.
type LineItem struct {
	Row         int               `json:"row"`
	Code        string            `json:"code"`
	Description string            `json:"description,omitempty"`
	Cells       map[string]string `json:"cells"`
}

// source produces raw records; ok=false means end of input.
type source interface {
	next() (record []string, ok bool, err error)
	close() error
}

// Rows is a forward-only cursor over the candidate line items of one sheet.
// It cannot be rewound; open the file again to re-read it.
type Rows struct {
	src     source
	opts    Options
	header  []string
	codeIdx int
	descIdx int

	row     int
	cur     LineItem
	err     error
	done    bool
	skipped int
}

// Open picks the reader from the file extension, sniffing the content when
// the name carries none.
func Open(r io.Reader, filename string, opts Options) (*Rows, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return OpenXLSX(r, opts)
	case ".csv", ".txt":
		return OpenCSV(r, opts)
	case ".xls":
		return nil, apperror.Parse(nil, "legacy .xls workbooks are not supported, save the BOM as .xlsx")
	}

	br := bufio.NewReader(r)
	magic, _ := br.Peek(4)
	if bytes.Equal(magic, []byte("PK\x03\x04")) {
		return OpenXLSX(br, opts)
	}
	return OpenCSV(br, opts)
}

// OpenXLSX streams the first worksheet of a workbook.
func OpenXLSX(r io.Reader, opts Options) (*Rows, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperror.Parse(err, "unable to read spreadsheet")
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, apperror.Parse(nil, "spreadsheet has no worksheet")
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, apperror.Parse(err, "unable to read worksheet %q", sheets[0])
	}

	return newRows(&xlsxSource{file: f, rows: rows}, opts)
}

func newRows(src source, opts Options) (*Rows, error) {
	if opts.CodeColumn == "" {
		opts.CodeColumn = DefaultOptions().CodeColumn
	}
	if opts.DescriptionColumn == "" {
		opts.DescriptionColumn = DefaultOptions().DescriptionColumn
	}
	if opts.CodePrefix == "" {
		opts.CodePrefix = DefaultOptions().CodePrefix
	}

	r := &Rows{src: src, opts: opts, codeIdx: -1, descIdx: -1}

	header, ok, err := src.next()
	if err != nil {
		src.close()
		return nil, apperror.Parse(err, "unable to read header row")
	}
	r.row = 1
	if !ok {
		r.done = true
		return r, nil
	}

	r.header = make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		r.header[i] = h
		switch {
		case r.codeIdx < 0 && strings.EqualFold(h, opts.CodeColumn):
			r.codeIdx = i
		case r.descIdx < 0 && strings.EqualFold(h, opts.DescriptionColumn):
			r.descIdx = i
		}
	}
	return r, nil
}

// Header returns the trimmed header row.
func (r *Rows) Header() []string {
	return r.header
}

// HasCodeColumn reports whether the header row contains the code column.
func (r *Rows) HasCodeColumn() bool {
	return r.codeIdx >= 0
}

// Next advances to the next row whose code carries the SFG prefix.
// Other data rows are dropped without error.
func (r *Rows) Next() bool {
	if r.done || r.err != nil {
		return false
	}
	for {
		record, ok, err := r.src.next()
		if err != nil {
			r.err = apperror.Parse(err, "unable to read row %d", r.row+1)
			return false
		}
		if !ok {
			r.done = true
			return false
		}
		r.row++

		if r.codeIdx < 0 {
			r.skipped++
			continue
		}
		code := cell(record, r.codeIdx)
		if !hasPrefixFold(code, r.opts.CodePrefix) {
			r.skipped++
			continue
		}

		cells := make(map[string]string, len(r.header))
		for i, h := range r.header {
			if h == "" {
				continue
			}
			if v := cell(record, i); v != "" {
				cells[h] = v
			}
		}
		r.cur = LineItem{
			Row:         r.row,
			Code:        code,
			Description: cell(record, r.descIdx),
			Cells:       cells,
		}
		return true
	}
}

// Item returns the line item Next stopped on.
func (r *Rows) Item() LineItem {
	return r.cur
}

func (r *Rows) Err() error {
	return r.err
}

// Skipped counts data rows dropped for not carrying the prefix.
func (r *Rows) Skipped() int {
	return r.skipped
}

func (r *Rows) Close() error {
	r.done = true
	return r.src.close()
}

// Collect drains rows and closes it.
func Collect(rows *Rows) ([]LineItem, error) {
	defer rows.Close()
	var items []LineItem
	for rows.Next() {
		items = append(items, rows.Item())
	}
	return items, rows.Err()
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

type xlsxSource struct {
	file *excelize.File
	rows *excelize.Rows
}

func (s *xlsxSource) next() ([]string, bool, error) {
	if !s.rows.Next() {
		return nil, false, s.rows.Error()
	}
	cols, err := s.rows.Columns()
	if err != nil {
		return nil, false, err
	}
	return cols, true, nil
}

func (s *xlsxSource) close() error {
	s.rows.Close()
	return s.file.Close()
}
