package curve

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleTable() ObservationTable {
	return ObservationTable{
		XName: "Temp",
		X:     []float64{25, 35, 45, 55, 65},
		Samples: []Column{
			{Name: "SampleA", Values: []float64{1000, 5000, 70000, 130000, 138000}},
		},
	}
}

func TestObservationTableValidate(t *testing.T) {
	assert.NoError(t, sampleTable().Validate())

	short := sampleTable()
	short.Samples[0].Values = short.Samples[0].Values[:3]
	assert.Error(t, short.Validate())

	dup := sampleTable()
	dup.Samples = append(dup.Samples, Column{Name: "SampleA", Values: make([]float64, 5)})
	assert.Error(t, dup.Validate())

	nanX := sampleTable()
	nanX.X[2] = math.NaN()
	assert.Error(t, nanX.Validate())

	none := sampleTable()
	none.Samples = nil
	assert.Error(t, none.Validate())
}

func TestColumnMaxAndLookup(t *testing.T) {
	table := sampleTable()
	col, ok := table.Column("SampleA")
	assert.True(t, ok)
	assert.Equal(t, 138000.0, col.Max())
	_, ok = table.Column("Temp")
	assert.False(t, ok)
	assert.True(t, math.IsNaN(Column{}.Max()))
}

func TestFitResultLine(t *testing.T) {
	ok := FitResult{Sample: "A", Midpoint: 45.123456789, Steepness: -8}
	assert.Equal(t, "Sample: A, midpoint: 45.1235, hill coefficient: -8", ok.Line())

	failed := Failed("B", fmt.Errorf("no convergence"))
	assert.Equal(t, "Sample: B, midpoint: nan, hill coefficient: nan", failed.Line())
	assert.False(t, failed.Converged)
}
