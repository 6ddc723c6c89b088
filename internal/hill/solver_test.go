package hill

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exactCurve(x []float64, m, h float64) []float64 {
	y := make([]float64, len(x))
	for i := range x {
		y[i] = Response(x[i], m, h)
	}
	return y
}

func grid(from, to, step float64) []float64 {
	var x []float64
	for v := from; v <= to+1e-9; v += step {
		x = append(x, v)
	}
	return x
}

func TestLeastSquaresRecoversExactCurve(t *testing.T) {
	x := grid(20, 70, 2.5)
	y := exactCurve(x, 45, -6)
	resid := func(p, dst []float64) {
		for i := range x {
			dst[i] = Response(x[i], p[0], p[1]) - y[i]
		}
	}

	sol, err := leastSquares(resid, len(x), initialGuess, lowerBounds, upperBounds, DefaultSolverOptions(2))
	require.NoError(t, err)
	assert.InDelta(t, 45, sol.Params[0], 1e-3)
	assert.InDelta(t, -6, sol.Params[1], 1e-3)
	assert.Less(t, sol.Cost, 1e-10)
	assert.LessOrEqual(t, sol.Evaluations, 50)
}

func TestLeastSquaresMidpointNearLowEndOfGrid(t *testing.T) {
	// the first Gauss-Newton step overshoots the midpoint below zero
	cases := []struct{ m, h float64 }{{30, -15}, {28, -10}, {30, -25}}
	x := grid(20, 70, 2)
	for _, tc := range cases {
		y := exactCurve(x, tc.m, tc.h)
		resid := func(p, dst []float64) {
			for i := range x {
				dst[i] = Response(x[i], p[0], p[1]) - y[i]
			}
		}

		sol, err := leastSquares(resid, len(x), initialGuess, lowerBounds, upperBounds, DefaultSolverOptions(2))
		require.NoError(t, err)
		assert.InDelta(t, tc.m, sol.Params[0], 1e-3, "midpoint %v", tc)
		assert.InDelta(t, tc.h, sol.Params[1], 1e-3, "steepness %v", tc)
		assert.Less(t, sol.Cost, 1e-10)
	}
}

func TestLeastSquaresStaysInBox(t *testing.T) {
	// a rising curve wants a positive exponent, which the box forbids
	x := grid(20, 70, 5)
	y := exactCurve(x, 45, 6)
	resid := func(p, dst []float64) {
		for i := range x {
			dst[i] = Response(x[i], p[0], p[1]) - y[i]
		}
	}

	sol, err := leastSquares(resid, len(x), initialGuess, lowerBounds, upperBounds, DefaultSolverOptions(2))
	require.NoError(t, err)
	assert.Greater(t, sol.Params[0], 0.0)
	assert.Less(t, sol.Params[0], 100.0)
	assert.Less(t, sol.Params[1], 0.0)
	// the best a falling curve can do is flatten out
	assert.InDelta(t, 0, sol.Params[1], 1e-3)
}

func TestLeastSquaresRejectsNonFiniteStart(t *testing.T) {
	resid := func(p, dst []float64) {
		for i := range dst {
			dst[i] = math.NaN()
		}
	}
	_, err := leastSquares(resid, 3, initialGuess, lowerBounds, upperBounds, DefaultSolverOptions(2))
	assert.Error(t, err)
}

func TestLeastSquaresEvaluationLimit(t *testing.T) {
	x := grid(20, 70, 2.5)
	y := exactCurve(x, 45, -6)
	resid := func(p, dst []float64) {
		for i := range x {
			dst[i] = Response(x[i], p[0], p[1]) - y[i]
		}
	}
	opts := DefaultSolverOptions(2)
	opts.MaxEvaluations = 3

	_, err := leastSquares(resid, len(x), initialGuess, lowerBounds, upperBounds, opts)
	assert.ErrorIs(t, err, errMaxEvaluations)
}

func TestReflectKeepsIteratesInsideBox(t *testing.T) {
	assert.Equal(t, 30.0, reflect(50, -20, 0, 100))
	assert.Equal(t, 10.0, reflect(20, -30, 0, 100))
	assert.Equal(t, 90.0, reflect(60, 50, 0, 100))
	assert.Equal(t, -2.0, reflect(-1, 3, math.Inf(-1), 0))

	// still outside after mirroring, or exactly on a bound
	assert.Equal(t, 10.0, reflect(20, -250, 0, 100))
	assert.Equal(t, 10.0, reflect(20, -20, 0, 100))
	assert.Equal(t, -0.5, reflect(-1, 1, math.Inf(-1), 0))
}

func TestMakeStrictlyFeasible(t *testing.T) {
	p := []float64{120, 3}
	makeStrictlyFeasible(p, lowerBounds, upperBounds)
	assert.Less(t, p[0], 100.0)
	assert.InDelta(t, 100, p[0], 1e-6)
	assert.Less(t, p[1], 0.0)

	p = []float64{-5, -40}
	makeStrictlyFeasible(p, lowerBounds, upperBounds)
	assert.Greater(t, p[0], 0.0)
	assert.Equal(t, -40.0, p[1])
}
