package app

import (
	"context"
	"fmt"
	"time"

	"curiesuite/adapters/excel"
	"curiesuite/domain/curve"
	"curiesuite/domain/run"
	"curiesuite/internal/analysis"
	"curiesuite/internal/errors"
	"curiesuite/internal/tabular"
	"curiesuite/ports"

	"github.com/rs/zerolog"
)

// StatsRequest asks for descriptive statistics of columns and, when both A
// and B are set, a Welch t-test between them. An empty Columns selects every
// fully numeric column.
type StatsRequest struct {
	Title   string         `json:"title"`
	Frame   *tabular.Frame `json:"-"`
	Columns []string       `json:"columns"`
	A       string         `json:"a,omitempty"`
	B       string         `json:"b,omitempty"`
}

// StatsResult holds the summaries and the optional test
type StatsResult struct {
	Run       *run.Run
	Summaries []analysis.Summary
	TTest     *analysis.TTest
}

// StatsService runs the statistical analysis tab
type StatsService struct {
	runs ports.RunRepository
	log  zerolog.Logger
}

// NewStatsService creates a stats service
func NewStatsService(runs ports.RunRepository, log zerolog.Logger) *StatsService {
	return &StatsService{runs: runs, log: log.With().Str("component", "stats_service").Logger()}
}

// Analyze computes the statistics and saves the run
func (s *StatsService) Analyze(ctx context.Context, req StatsRequest) (*StatsResult, error) {
	if req.Frame == nil {
		return nil, errors.InvalidInput("no data supplied")
	}
	if (req.A == "") != (req.B == "") {
		return nil, errors.InvalidInput("choose two columns to compare")
	}
	if req.A != "" && req.A == req.B {
		return nil, errors.InvalidInput("compare two different columns")
	}

	start := time.Now()
	cols, err := numericColumns(req.Frame, req.Columns)
	if err != nil {
		return nil, err
	}

	res := &StatsResult{}
	rows := make([][]string, 0, len(cols))
	for _, c := range cols {
		sum, err := analysis.Describe(c)
		if err != nil {
			return nil, err
		}
		res.Summaries = append(res.Summaries, sum)
		rows = append(rows, sum.Record())
	}

	stem := FileStem(req.Title, "statistics")
	r, err := run.New(run.KindStats, stem, req)
	if err != nil {
		return nil, errors.Wrap(err, "record run")
	}
	for _, sum := range res.Summaries {
		r.Summary = append(r.Summary, fmt.Sprintf("%s: n=%d, mean=%s, sd=%s", sum.Column, sum.N, formatNumber(sum.Mean), formatNumber(sum.StdDev)))
	}

	if req.A != "" {
		a, err := req.Frame.Numeric(req.A)
		if err != nil {
			return nil, err
		}
		b, err := req.Frame.Numeric(req.B)
		if err != nil {
			return nil, err
		}
		tt, err := analysis.Welch(curve.Column{Name: req.A, Values: a}, curve.Column{Name: req.B, Values: b})
		if err != nil {
			return nil, err
		}
		res.TTest = &tt
		r.Summary = append(r.Summary, fmt.Sprintf("Welch t-test %s vs %s: t=%.4g, df=%.4g, p=%.4g (%s)", tt.A, tt.B, tt.T, tt.DF, tt.PValue, tt.Summary))
	}

	artifacts, err := tableArtifacts(stem, excel.Sheet{Name: "Summary", Headers: analysis.SummaryHeaders, Rows: rows})
	if err != nil {
		return nil, err
	}
	for _, a := range artifacts {
		r.Attach(a)
	}
	r.Elapsed = time.Since(start)
	res.Run = r

	if err := s.runs.Save(ctx, r); err != nil {
		return nil, errors.Wrap(err, "save stats run")
	}
	s.log.Info().Int("columns", len(res.Summaries)).Bool("t_test", res.TTest != nil).Msg("statistics computed")
	return res, nil
}

// numericColumns converts the requested columns, or with none requested
// every column whose cells all parse as numbers
func numericColumns(frame *tabular.Frame, names []string) ([]curve.Column, error) {
	explicit := len(names) > 0
	if !explicit {
		names = frame.Headers
	}
	var cols []curve.Column
	for _, name := range names {
		vals, err := frame.Numeric(name)
		if err != nil {
			if explicit {
				return nil, err
			}
			continue
		}
		cols = append(cols, curve.Column{Name: name, Values: vals})
	}
	if len(cols) == 0 {
		return nil, errors.InvalidInput("no numeric columns to analyse")
	}
	return cols, nil
}
