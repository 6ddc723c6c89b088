// Package hill fits the four-parameter logistic (Hill) curve used for
// thermal-shift and dose-response plates. Readings are rescaled to 0..1 so
// only the midpoint and steepness are free.
package hill

import (
	"fmt"
	"math"

	"curiesuite/domain/core"
	"curiesuite/domain/curve"
	"curiesuite/internal/errors"

	"github.com/rs/zerolog"
)

// Parameter box and starting point. The start is the feasible default of a
// bounded fit: the centre of the midpoint range and one below the steepness
// ceiling.
var (
	lowerBounds  = []float64{0, math.Inf(-1)}
	upperBounds  = []float64{100, 0}
	initialGuess = []float64{50, -1}
)

// Response is the model 1 / (1 + (midpoint/x)^steepness)
func Response(x, midpoint, steepness float64) float64 {
	return 1 / (1 + math.Pow(midpoint/x, steepness))
}

// Scale maps values onto 0..1 as (v - minVal) / (columnMax - minVal).
// columnMax is always taken from values; maxVal is accepted so callers can
// pass the assay range, but it does not take part in the scaling.
func Scale(values []float64, minVal, maxVal float64) []float64 {
	_ = maxVal
	colMax := curve.Column{Values: values}.Max()
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - minVal) / (colMax - minVal)
	}
	return out
}

// Fitter fits every sample column of an observation table
type Fitter struct {
	log  zerolog.Logger
	opts SolverOptions
}

// NewFitter creates a fitter with MINPACK default tolerances
func NewFitter(log zerolog.Logger) *Fitter {
	return &Fitter{
		log:  log.With().Str("component", "hill").Logger(),
		opts: DefaultSolverOptions(len(initialGuess)),
	}
}

// WithOptions overrides the solver stopping rules
func (f *Fitter) WithOptions(opts SolverOptions) *Fitter {
	f.opts = opts
	return f
}

// FitTable returns one result per sample column, in column order. A column
// the solver cannot fit gets NaN parameters and the remaining columns are
// still fitted. Only a malformed table is an error.
func (f *Fitter) FitTable(table curve.ObservationTable, minVal, maxVal float64) ([]curve.FitResult, error) {
	if err := table.Validate(); err != nil {
		return nil, errors.Wrap(errors.InvalidInput(err.Error()), "observation table rejected")
	}
	results := make([]curve.FitResult, 0, len(table.Samples))
	for _, col := range table.Samples {
		res := f.FitColumn(table.X, col, minVal, maxVal)
		if !res.Converged {
			f.log.Warn().Str("sample", col.Name).Str("reason", res.Message).Msg("curve fit failed")
		}
		results = append(results, res)
	}
	return results, nil
}

// FitColumn scales one column and fits the model against x
func (f *Fitter) FitColumn(x []float64, col curve.Column, minVal, maxVal float64) curve.FitResult {
	y := Scale(col.Values, minVal, maxVal)
	if !allFinite(y) {
		return curve.Failed(col.Name, fmt.Errorf("%w: scaled values are not finite (column maximum equals min value?)", core.ErrFitFailed))
	}

	residuals := func(p []float64, dst []float64) {
		for i := range x {
			dst[i] = Response(x[i], p[0], p[1]) - y[i]
		}
	}
	sol, err := leastSquares(residuals, len(x), initialGuess, lowerBounds, upperBounds, f.opts)
	if err != nil {
		return curve.Failed(col.Name, fmt.Errorf("%w: %v", core.ErrFitFailed, err))
	}
	if err := checkCurve(x, sol.Params); err != nil {
		return curve.Failed(col.Name, fmt.Errorf("%w: %v", core.ErrFitFailed, err))
	}

	f.log.Debug().
		Str("sample", col.Name).
		Float64("midpoint", sol.Params[0]).
		Float64("steepness", sol.Params[1]).
		Float64("cost", sol.Cost).
		Int("evaluations", sol.Evaluations).
		Str("stop", sol.Reason).
		Msg("curve fit converged")

	return curve.FitResult{
		Sample:      col.Name,
		Midpoint:    sol.Params[0],
		Steepness:   sol.Params[1],
		Converged:   true,
		Evaluations: sol.Evaluations,
		Message:     sol.Reason,
	}
}

// saturationTol is how close to 0 or 1 every fitted value must be for the
// curve to count as flat
const saturationTol = 1e-9

// checkCurve rejects parameters whose curve is not finite at every x or sits
// on one asymptote across all of them. Such a curve has no transition inside
// the data, so its midpoint and steepness say nothing about the sample.
func checkCurve(x, params []float64) error {
	low, high := true, true
	for _, xi := range x {
		v := Response(xi, params[0], params[1])
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("fitted curve is not finite at x=%g", xi)
		}
		low = low && v < saturationTol
		high = high && v > 1-saturationTol
	}
	if low || high {
		return fmt.Errorf("fitted curve is saturated across the data (midpoint %g, steepness %g)", params[0], params[1])
	}
	return nil
}

// Predict samples the fitted curve at n evenly spaced points on [from, to]
func Predict(res curve.FitResult, from, to float64, n int) [][2]float64 {
	if !res.Converged || n < 2 {
		return nil
	}
	pts := make([][2]float64, n)
	for i := 0; i < n; i++ {
		x := from + (to-from)*float64(i)/float64(n-1)
		pts[i] = [2]float64{x, Response(x, res.Midpoint, res.Steepness)}
	}
	return pts
}
