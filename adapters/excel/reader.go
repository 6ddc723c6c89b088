package excel

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"curiesuite/internal/errors"
	"curiesuite/internal/tabular"

	"github.com/xuri/excelize/v2"
)

// DataReader reads uploaded spreadsheets and delimited text files into
// frames
type DataReader struct {
	maxBytes int64
}

// NewDataReader creates a reader refusing uploads above maxBytes (0 means no
// limit)
func NewDataReader(maxBytes int64) *DataReader {
	return &DataReader{maxBytes: maxBytes}
}

// Read dispatches on the file extension: .xlsx/.xlsm are workbooks, .csv is
// comma separated, .tsv/.txt are tab separated, anything else is sniffed
func (r *DataReader) Read(name string, src io.Reader) (*tabular.Frame, error) {
	data, err := r.readAll(src)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return ReadWorkbook(bytes.NewReader(data), "")
	case ".csv":
		return tabular.Parse(bytes.NewReader(data), ',')
	case ".tsv", ".txt", ".tab":
		return tabular.Parse(bytes.NewReader(data), '\t')
	default:
		if isZip(data) {
			return ReadWorkbook(bytes.NewReader(data), "")
		}
		return tabular.Parse(bytes.NewReader(data), 0)
	}
}

func (r *DataReader) readAll(src io.Reader) ([]byte, error) {
	if r.maxBytes <= 0 {
		return io.ReadAll(src)
	}
	data, err := io.ReadAll(io.LimitReader(src, r.maxBytes+1))
	if err != nil {
		return nil, errors.InvalidInputf("read upload: %v", err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, errors.InvalidInputf("upload exceeds %d bytes", r.maxBytes)
	}
	return data, nil
}

// ReadWorkbook reads one sheet of an xlsx workbook, the first sheet when
// sheet is empty. Formula cells yield their cached values.
func ReadWorkbook(src io.Reader, sheet string) (*tabular.Frame, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, errors.InvalidInputf("failed to open Excel file: %v", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.InvalidInput("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.InvalidInputf("failed to read sheet %q: %v", sheet, err)
	}
	frame, err := tabular.FromRecords(rows)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("sheet %q", sheet))
	}
	return frame, nil
}

func isZip(data []byte) bool {
	return len(data) >= 4 && data[0] == 'P' && data[1] == 'K' && data[2] == 3 && data[3] == 4
}
