package analysis

import (
	"math"

	"curiesuite/domain/curve"
	"curiesuite/internal/errors"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// TTest is the result of Welch's unequal-variance two-sample t-test
type TTest struct {
	A       string  `json:"a"`
	B       string  `json:"b"`
	MeanA   float64 `json:"mean_a"`
	MeanB   float64 `json:"mean_b"`
	T       float64 `json:"t"`
	DF      float64 `json:"df"`
	PValue  float64 `json:"p_value"`
	Summary string  `json:"summary"`
}

// Welch compares the means of two columns without assuming equal variances.
// The p-value is two-tailed.
func Welch(a, b curve.Column) (TTest, error) {
	if len(a.Values) < 2 || len(b.Values) < 2 {
		return TTest{}, errors.InvalidInput("t-test needs at least two values in each column")
	}

	ma, _ := stats.Mean(a.Values)
	mb, _ := stats.Mean(b.Values)
	va, _ := stats.VarS(a.Values)
	vb, _ := stats.VarS(b.Values)
	na, nb := float64(len(a.Values)), float64(len(b.Values))

	sa, sb := va/na, vb/nb
	se2 := sa + sb
	if se2 == 0 {
		return TTest{}, errors.InvalidInput("both columns are constant; t statistic is undefined")
	}

	t := (ma - mb) / math.Sqrt(se2)
	df := se2 * se2 / (sa*sa/(na-1) + sb*sb/(nb-1))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.Survival(math.Abs(t))

	res := TTest{A: a.Name, B: b.Name, MeanA: ma, MeanB: mb, T: t, DF: df, PValue: math.Min(p, 1)}
	res.Summary = verdict(res.PValue)
	return res, nil
}

func verdict(p float64) string {
	if p < 0.05 {
		return "means differ at the 5% level"
	}
	return "no significant difference at the 5% level"
}
