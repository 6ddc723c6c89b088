// Package tabular turns pasted spreadsheet text and uploaded CSV/TSV files
// into validated numeric tables.
package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	"curiesuite/domain/curve"
	"curiesuite/internal/errors"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Frame is a header row plus string cells, as read from a sheet
type Frame struct {
	Headers []string
	Rows    [][]string
}

// Width is the number of columns
func (f *Frame) Width() int { return len(f.Headers) }

// Index returns the position of the named column, -1 when absent
func (f *Frame) Index(name string) int {
	for i, h := range f.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// Cell returns the trimmed cell, empty when the row is short
func (f *Frame) Cell(row, col int) string {
	if row < 0 || row >= len(f.Rows) || col < 0 || col >= len(f.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(f.Rows[row][col])
}

// Decode wraps r so that UTF-8 and UTF-16 input (with or without a byte order
// mark, as Excel writes "Unicode text" exports) reads as UTF-8
func Decode(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// Parse reads delimited text. delim 0 picks tab when the header line has a
// tab, comma when it has a comma, and tab otherwise. The first non-blank line
// is the header.
func Parse(r io.Reader, delim rune) (*Frame, error) {
	data, err := io.ReadAll(Decode(r))
	if err != nil {
		return nil, errors.Wrap(errors.InvalidInput("unreadable table text"), err.Error())
	}
	data = bytes.TrimLeft(data, "\r\n")
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.InvalidInput("no table data supplied")
	}
	if delim == 0 {
		delim = sniffDelimiter(data)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if delim == '\t' {
		cr.LazyQuotes = true
	}
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.InvalidInputf("failed to parse data: %v", err)
	}
	return fromRecords(records)
}

// ParsePaste reads text pasted from a spreadsheet (tab delimited) or from a
// CSV file
func ParsePaste(text string) (*Frame, error) {
	return Parse(strings.NewReader(text), 0)
}

// FromRecords builds a frame from already split rows, first row as header
func FromRecords(records [][]string) (*Frame, error) {
	return fromRecords(records)
}

func fromRecords(records [][]string) (*Frame, error) {
	var rows [][]string
	for _, rec := range records {
		if blank(rec) {
			continue
		}
		rows = append(rows, rec)
	}
	if len(rows) < 2 {
		return nil, errors.InvalidInput("table needs a header row and at least one data row")
	}

	headers := make([]string, len(rows[0]))
	seen := make(map[string]bool, len(headers))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, errors.InvalidInputf("column %d has no header", i+1)
		}
		if seen[h] {
			return nil, errors.InvalidInputf("duplicate column name %q", h)
		}
		seen[h] = true
		headers[i] = h
	}
	return &Frame{Headers: headers, Rows: rows[1:]}, nil
}

// Transpose swaps rows and columns. The first column's cells become the new
// headers and the old headers after the first become the first column.
func (f *Frame) Transpose() (*Frame, error) {
	records := make([][]string, f.Width())
	records[0] = make([]string, 0, len(f.Rows)+1)
	records[0] = append(records[0], f.Headers[0])
	for r := range f.Rows {
		records[0] = append(records[0], f.Cell(r, 0))
	}
	for c := 1; c < f.Width(); c++ {
		rec := make([]string, 0, len(f.Rows)+1)
		rec = append(rec, f.Headers[c])
		for r := range f.Rows {
			rec = append(rec, f.Cell(r, c))
		}
		records[c] = rec
	}
	return fromRecords(records)
}

// Numeric converts the named column to floats. Empty and non-numeric cells
// are errors naming the cell.
func (f *Frame) Numeric(name string) ([]float64, error) {
	col := f.Index(name)
	if col < 0 {
		return nil, errors.InvalidInputf("column %q not found", name)
	}
	out := make([]float64, len(f.Rows))
	for r := range f.Rows {
		v, err := ParseNumber(f.Cell(r, col))
		if err != nil {
			return nil, errors.InvalidInputf("column %q row %d: %v", name, r+1, err)
		}
		out[r] = v
	}
	return out, nil
}

// ParseNumber accepts plain and thousands-separated numbers as spreadsheets
// display them
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.InvalidInput("empty cell")
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.InvalidInputf("%q is not a number", s)
	}
	return v, nil
}

// Observations selects the independent column x and the sample columns ys.
// An empty ys selects every column except x, in sheet order.
func (f *Frame) Observations(x string, ys []string) (curve.ObservationTable, error) {
	if x == "" {
		x = f.Headers[0]
	}
	if len(ys) == 0 {
		for _, h := range f.Headers {
			if h != x {
				ys = append(ys, h)
			}
		}
	}

	xs, err := f.Numeric(x)
	if err != nil {
		return curve.ObservationTable{}, err
	}
	table := curve.ObservationTable{XName: x, X: xs}
	for _, name := range ys {
		if name == x {
			return curve.ObservationTable{}, errors.InvalidInputf("column %q cannot be both X and Y", name)
		}
		vals, err := f.Numeric(name)
		if err != nil {
			return curve.ObservationTable{}, err
		}
		table.Samples = append(table.Samples, curve.Column{Name: name, Values: vals})
	}
	if err := table.Validate(); err != nil {
		return curve.ObservationTable{}, errors.InvalidInput(err.Error())
	}
	return table, nil
}

// Text renders the frame as tab separated text, the form spreadsheets paste
func (f *Frame) Text() string {
	var sb strings.Builder
	cw := csv.NewWriter(&sb)
	cw.Comma = '\t'
	_ = cw.Write(f.Headers)
	_ = cw.WriteAll(f.Rows)
	return sb.String()
}

// WriteCSV writes headers and rows as comma separated text
func WriteCSV(w io.Writer, headers []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func sniffDelimiter(data []byte) rune {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	if !sc.Scan() {
		return '\t'
	}
	header := sc.Text()
	if !strings.Contains(header, "\t") && strings.Contains(header, ",") {
		return ','
	}
	return '\t'
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
