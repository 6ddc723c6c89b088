package app

import (
	"context"
	"time"

	"curiesuite/adapters/excel"
	"curiesuite/domain/curve"
	"curiesuite/domain/run"
	"curiesuite/internal/errors"
	"curiesuite/internal/hill"
	"curiesuite/internal/tabular"
	"curiesuite/ports"

	"github.com/rs/zerolog"
)

// CurveRequest selects columns of an uploaded or pasted table to fit
type CurveRequest struct {
	Title     string         `json:"title"`
	Frame     *tabular.Frame `json:"-"`
	XColumn   string         `json:"x_column"`
	YColumns  []string       `json:"y_columns"`
	Transpose bool           `json:"transpose"`
	MinValue  *float64       `json:"min_value,omitempty"`
	MaxValue  float64        `json:"max_value"`
}

// CurveResult holds one fit per selected column
type CurveResult struct {
	Run      *run.Run
	Table    curve.ObservationTable
	Fits     []curve.FitResult
	MinValue float64
}

// CurveService fits the Hill model to tabular readings
type CurveService struct {
	fitter     *hill.Fitter
	runs       ports.RunRepository
	defaultMin float64
	log        zerolog.Logger
}

// NewCurveService creates a curve service. defaultMin is used when a request
// does not carry its own minimum value.
func NewCurveService(fitter *hill.Fitter, runs ports.RunRepository, defaultMin float64, log zerolog.Logger) *CurveService {
	return &CurveService{
		fitter:     fitter,
		runs:       runs,
		defaultMin: defaultMin,
		log:        log.With().Str("component", "curve_service").Logger(),
	}
}

// DefaultMin is the minimum value applied when a request omits one
func (s *CurveService) DefaultMin() float64 { return s.defaultMin }

// Fit validates the selection, fits every sample column and saves the run
func (s *CurveService) Fit(ctx context.Context, req CurveRequest) (*CurveResult, error) {
	if req.Frame == nil {
		return nil, errors.InvalidInput("no data supplied")
	}
	frame := req.Frame
	if req.Transpose {
		t, err := frame.Transpose()
		if err != nil {
			return nil, errors.Wrap(err, "transpose table")
		}
		frame = t
	}
	table, err := frame.Observations(req.XColumn, req.YColumns)
	if err != nil {
		return nil, err
	}

	minVal := s.defaultMin
	if req.MinValue != nil {
		minVal = *req.MinValue
	}
	maxVal := req.MaxValue
	if maxVal == 0 {
		maxVal = tableMax(table)
	}

	start := time.Now()
	fits, err := s.fitter.FitTable(table, minVal, maxVal)
	if err != nil {
		return nil, err
	}

	failed := 0
	for _, f := range fits {
		if !f.Converged {
			failed++
		}
	}
	s.log.Info().
		Int("columns", len(fits)).
		Int("failed", failed).
		Float64("min_value", minVal).
		Dur("elapsed", time.Since(start)).
		Msg("curves fitted")

	stem := FileStem(req.Title, "curve")
	req.MinValue = &minVal
	req.MaxValue = maxVal
	req.XColumn = table.XName
	r, err := run.New(run.KindCurve, stem, req)
	if err != nil {
		return nil, errors.Wrap(err, "record run")
	}

	rows := make([][]string, len(fits))
	for i, f := range fits {
		r.Summary = append(r.Summary, f.Line())
		rows[i] = f.Record()
	}
	artifacts, err := tableArtifacts(stem+"_fits", excel.Sheet{Name: "Fits", Headers: curve.FitHeaders, Rows: rows})
	if err != nil {
		return nil, err
	}
	for _, a := range artifacts {
		r.Attach(a)
	}
	r.Elapsed = time.Since(start)

	if err := s.runs.Save(ctx, r); err != nil {
		return nil, errors.Wrap(err, "save curve run")
	}
	return &CurveResult{Run: r, Table: table, Fits: fits, MinValue: minVal}, nil
}

// Columns lists the headers a request may select, after the optional
// transpose
func Columns(frame *tabular.Frame, transpose bool) ([]string, error) {
	if frame == nil {
		return nil, nil
	}
	if transpose {
		t, err := frame.Transpose()
		if err != nil {
			return nil, err
		}
		frame = t
	}
	return frame.Headers, nil
}

func tableMax(t curve.ObservationTable) float64 {
	var m float64
	for i, c := range t.Samples {
		if v := c.Max(); i == 0 || v > m {
			m = v
		}
	}
	return m
}
