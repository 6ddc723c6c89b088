package app

import (
	"bytes"

	"curiesuite/adapters/excel"
	"curiesuite/domain/run"
	"curiesuite/internal/errors"
	"curiesuite/internal/tabular"
)

// tableArtifacts renders one table as both a CSV and an XLSX download
func tableArtifacts(stem string, sheet excel.Sheet) ([]run.Artifact, error) {
	var buf bytes.Buffer
	if err := tabular.WriteCSV(&buf, sheet.Headers, sheet.Rows); err != nil {
		return nil, errors.Wrap(err, "write csv export")
	}
	book, err := excel.WriteWorkbook(sheet)
	if err != nil {
		return nil, err
	}
	return []run.Artifact{
		run.NewArtifact(stem+".csv", run.MediaCSV, buf.Bytes()),
		run.NewArtifact(stem+".xlsx", run.MediaXLSX, book),
	}, nil
}
