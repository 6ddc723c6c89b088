package curve

import (
	"fmt"
	"math"
	"strconv"
)

// Column is one named sample column of an observation table
type Column struct {
	Name   string
	Values []float64
}

// Max returns the largest value of the column, NaN when empty
func (c Column) Max() float64 {
	if len(c.Values) == 0 {
		return math.NaN()
	}
	m := c.Values[0]
	for _, v := range c.Values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// ObservationTable holds readings indexed by an independent variable such as
// temperature or dilution, one column per sample
type ObservationTable struct {
	XName   string
	X       []float64
	Samples []Column
}

// Validate checks the shape invariants: a non-empty, finite independent
// column and sample columns of the same length with unique names
func (t ObservationTable) Validate() error {
	if t.XName == "" {
		return fmt.Errorf("independent column has no name")
	}
	if len(t.X) == 0 {
		return fmt.Errorf("independent column %q is empty", t.XName)
	}
	for i, x := range t.X {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("independent column %q row %d is not a finite number", t.XName, i+1)
		}
	}
	if len(t.Samples) == 0 {
		return fmt.Errorf("table has no sample columns")
	}
	seen := map[string]bool{t.XName: true}
	for _, c := range t.Samples {
		if seen[c.Name] {
			return fmt.Errorf("duplicate column name %q", c.Name)
		}
		seen[c.Name] = true
		if len(c.Values) != len(t.X) {
			return fmt.Errorf("column %q has %d rows, %q has %d", c.Name, len(c.Values), t.XName, len(t.X))
		}
	}
	return nil
}

// Column looks a sample column up by name
func (t ObservationTable) Column(name string) (Column, bool) {
	for _, c := range t.Samples {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// FitResult is the outcome of fitting one sample column. Midpoint and
// Steepness are NaN when the solver failed.
type FitResult struct {
	Sample      string
	Midpoint    float64
	Steepness   float64
	Converged   bool
	Evaluations int
	Message     string
}

// Failed builds the result recorded for a column that could not be fitted
func Failed(sample string, reason error) FitResult {
	return FitResult{
		Sample:    sample,
		Midpoint:  math.NaN(),
		Steepness: math.NaN(),
		Message:   reason.Error(),
	}
}

// Line renders the result the way the dashboard lists it
func (r FitResult) Line() string {
	return fmt.Sprintf("Sample: %s, midpoint: %s, hill coefficient: %s", r.Sample, formatFloat(r.Midpoint), formatFloat(r.Steepness))
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return fmt.Sprintf("%.6g", v)
}

// FitHeaders are the export columns for fit results
var FitHeaders = []string{"Sample", "Midpoint", "Hill Coefficient", "Converged"}

// Record renders the result as an export row
func (r FitResult) Record() []string {
	return []string{r.Sample, formatFloat(r.Midpoint), formatFloat(r.Steepness), strconv.FormatBool(r.Converged)}
}
