package excel

import (
	"strconv"

	"curiesuite/internal/errors"

	"github.com/xuri/excelize/v2"
)

// Sheet is one worksheet to export. Cells that parse as numbers are written
// as numbers so the workbook stays usable for further analysis.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// WriteWorkbook renders the sheets into xlsx bytes
func WriteWorkbook(sheets ...Sheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, errors.InvalidInput("nothing to export")
	}
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, errors.Wrap(err, "create header style")
	}

	for i, s := range sheets {
		name := s.Name
		if name == "" {
			name = "Sheet" + strconv.Itoa(i+1)
		}
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, errors.Wrapf(err, "name sheet %q", name)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, errors.Wrapf(err, "add sheet %q", name)
		}
		if err := writeSheet(f, name, s, bold); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "write workbook")
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, name string, s Sheet, headerStyle int) error {
	header := make([]interface{}, len(s.Headers))
	for i, h := range s.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return errors.Wrapf(err, "write header of %q", name)
	}
	if len(s.Headers) > 0 {
		last, err := excelize.CoordinatesToCellName(len(s.Headers), 1)
		if err != nil {
			return errors.Wrap(err, "header range")
		}
		if err := f.SetCellStyle(name, "A1", last, headerStyle); err != nil {
			return errors.Wrap(err, "style header")
		}
	}

	for r, row := range s.Rows {
		cells := make([]interface{}, len(row))
		for i, v := range row {
			cells[i] = cellValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return errors.Wrap(err, "row address")
		}
		if err := f.SetSheetRow(name, cell, &cells); err != nil {
			return errors.Wrapf(err, "write row %d of %q", r+1, name)
		}
	}
	return nil
}

func cellValue(v string) interface{} {
	if v == "nan" || v == "NaN" {
		return v
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n
	}
	return v
}
