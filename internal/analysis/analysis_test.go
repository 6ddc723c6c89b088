package analysis

import (
	"math"
	"testing"

	"curiesuite/domain/curve"
	"curiesuite/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	s, err := Describe(curve.Column{Name: "A", Values: []float64{8, 1, 7, 2, 6, 3, 5, 4}})
	require.NoError(t, err)
	assert.Equal(t, 8, s.N)
	assert.Equal(t, 4.5, s.Mean)
	assert.Equal(t, 4.5, s.Median)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 8.0, s.Max)
	assert.Equal(t, 2.5, s.Q1)
	assert.Equal(t, 6.5, s.Q3)
	assert.InDelta(t, math.Sqrt(6), s.StdDev, 1e-12)
}

func TestDescribeSingleValue(t *testing.T) {
	s, err := Describe(curve.Column{Name: "A", Values: []float64{3}})
	require.NoError(t, err)
	assert.Equal(t, 3.0, s.Mean)
	assert.True(t, math.IsNaN(s.StdDev))
	assert.True(t, math.IsNaN(s.Q1))

	_, err = Describe(curve.Column{Name: "empty"})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestDescribeTableOrder(t *testing.T) {
	table := curve.ObservationTable{
		XName:   "Temp",
		X:       []float64{25, 35},
		Samples: []curve.Column{{Name: "A", Values: []float64{1, 2}}, {Name: "B", Values: []float64{3, 4}}},
	}
	got, err := DescribeTable(table)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Temp", got[0].Column)
	assert.Equal(t, "B", got[2].Column)
	assert.Equal(t, 3.5, got[2].Mean)
}

func TestWelch(t *testing.T) {
	res, err := Welch(
		curve.Column{Name: "A", Values: []float64{1, 2, 3, 4, 5}},
		curve.Column{Name: "B", Values: []float64{2, 4, 6, 8, 10}},
	)
	require.NoError(t, err)
	assert.InDelta(t, -1.8974, res.T, 1e-4)
	assert.InDelta(t, 5.882, res.DF, 1e-3)
	assert.InDelta(t, 0.107, res.PValue, 0.005)
	assert.Equal(t, "no significant difference at the 5% level", res.Summary)
}

func TestWelchClearDifference(t *testing.T) {
	res, err := Welch(
		curve.Column{Name: "ctrl", Values: []float64{10, 11, 9, 10, 10.5}},
		curve.Column{Name: "treated", Values: []float64{20, 21, 19, 20.5, 20}},
	)
	require.NoError(t, err)
	assert.Less(t, res.PValue, 0.001)
	assert.Equal(t, "means differ at the 5% level", res.Summary)
}

func TestWelchRejects(t *testing.T) {
	_, err := Welch(curve.Column{Values: []float64{1}}, curve.Column{Values: []float64{1, 2}})
	assert.Error(t, err)

	_, err = Welch(curve.Column{Values: []float64{1, 1}}, curve.Column{Values: []float64{2, 2}})
	assert.Error(t, err)
}
