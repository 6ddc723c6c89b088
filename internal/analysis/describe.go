package analysis

import (
	"math"
	"strconv"

	"curiesuite/domain/curve"
	"curiesuite/internal/errors"

	"github.com/montanaflynn/stats"
)

// Summary holds descriptive statistics for one column. Quartiles are NaN when
// the column is too short to split.
type Summary struct {
	Column string  `json:"column"`
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"sd"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Q1     float64 `json:"q1"`
	Q3     float64 `json:"q3"`
}

// SummaryHeaders are the export columns for summaries
var SummaryHeaders = []string{"Column", "N", "Mean", "SD", "Median", "Min", "Max", "Q1", "Q3"}

// Describe summarises a column. StdDev is the sample standard deviation and
// is NaN for a single value.
func Describe(col curve.Column) (Summary, error) {
	data := stats.Float64Data(col.Values)
	if data.Len() == 0 {
		return Summary{}, errors.InvalidInputf("column %q has no values", col.Name)
	}

	s := Summary{Column: col.Name, N: data.Len(), StdDev: math.NaN(), Q1: math.NaN(), Q3: math.NaN()}
	var err error
	if s.Mean, err = data.Mean(); err != nil {
		return Summary{}, err
	}
	if s.Median, err = data.Median(); err != nil {
		return Summary{}, err
	}
	if s.Min, err = data.Min(); err != nil {
		return Summary{}, err
	}
	if s.Max, err = data.Max(); err != nil {
		return Summary{}, err
	}
	if s.N > 1 {
		if s.StdDev, err = stats.StandardDeviationSample(data); err != nil {
			return Summary{}, err
		}
	}
	if q, err := stats.Quartile(data); err == nil {
		s.Q1, s.Q3 = q.Q1, q.Q3
	}
	return s, nil
}

// DescribeTable summarises the independent column followed by every sample
func DescribeTable(table curve.ObservationTable) ([]Summary, error) {
	cols := append([]curve.Column{{Name: table.XName, Values: table.X}}, table.Samples...)
	out := make([]Summary, 0, len(cols))
	for _, c := range cols {
		s, err := Describe(c)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Record renders the summary as an export row
func (s Summary) Record() []string {
	return []string{
		s.Column,
		strconv.Itoa(s.N),
		formatFloat(s.Mean),
		formatFloat(s.StdDev),
		formatFloat(s.Median),
		formatFloat(s.Min),
		formatFloat(s.Max),
		formatFloat(s.Q1),
		formatFloat(s.Q3),
	}
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'g', 8, 64)
}
