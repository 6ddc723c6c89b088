package ui

import (
	"fmt"
	"html/template"
	"math"
	"strings"

	"curiesuite/domain/curve"
	"curiesuite/internal/hill"
)

const (
	plotWidth  = 640
	plotHeight = 360
	plotMargin = 40
)

var plotColors = []string{"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd", "#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf"}

// curvePlot draws the scaled observations as points and each converged fit
// as a line, one color per sample
func curvePlot(table curve.ObservationTable, fits []curve.FitResult, minVal float64) template.HTML {
	if len(table.X) == 0 {
		return ""
	}
	xmin, xmax := table.X[0], table.X[0]
	for _, x := range table.X {
		xmin = math.Min(xmin, x)
		xmax = math.Max(xmax, x)
	}
	if xmax == xmin {
		xmax = xmin + 1
	}
	ymin, ymax := -0.05, 1.1
	px := func(x float64) float64 {
		return plotMargin + (x-xmin)/(xmax-xmin)*(plotWidth-2*plotMargin)
	}
	py := func(y float64) float64 {
		y = math.Max(ymin, math.Min(ymax, y))
		return plotHeight - plotMargin - (y-ymin)/(ymax-ymin)*(plotHeight-2*plotMargin)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg class="plot" viewBox="0 0 %d %d" xmlns="http://www.w3.org/2000/svg">`, plotWidth, plotHeight)
	fmt.Fprintf(&sb, `<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="#444"/>`, plotMargin, py(0), plotWidth-plotMargin, py(0))
	fmt.Fprintf(&sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#444"/>`, plotMargin, plotMargin, plotMargin, plotHeight-plotMargin)
	fmt.Fprintf(&sb, `<text x="%d" y="%d" font-size="11">%s</text>`, plotMargin, plotHeight-plotMargin+16, template.HTMLEscapeString(fmt.Sprintf("%g", xmin)))
	fmt.Fprintf(&sb, `<text x="%d" y="%d" font-size="11" text-anchor="end">%s</text>`, plotWidth-plotMargin, plotHeight-plotMargin+16, template.HTMLEscapeString(fmt.Sprintf("%g", xmax)))
	fmt.Fprintf(&sb, `<text x="%d" y="%d" font-size="11" text-anchor="middle">%s</text>`, plotWidth/2, plotHeight-8, template.HTMLEscapeString(table.XName))

	for i, col := range table.Samples {
		color := plotColors[i%len(plotColors)]
		for j, y := range hill.Scale(col.Values, minVal, 0) {
			if math.IsNaN(y) || math.IsInf(y, 0) {
				continue
			}
			fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="3" fill="%s"/>`, px(table.X[j]), py(y), color)
		}
		if i < len(fits) {
			pts := hill.Predict(fits[i], xmin, xmax, 120)
			if len(pts) > 0 {
				coords := make([]string, 0, len(pts))
				for _, p := range pts {
					coords = append(coords, fmt.Sprintf("%.1f,%.1f", px(p[0]), py(p[1])))
				}
				fmt.Fprintf(&sb, `<polyline fill="none" stroke="%s" stroke-width="1.5" points="%s"/>`, color, strings.Join(coords, " "))
			}
		}
		fmt.Fprintf(&sb, `<text x="%d" y="%d" font-size="11" fill="%s">%s</text>`, plotWidth-plotMargin-120, plotMargin+14*i, color, template.HTMLEscapeString(col.Name))
	}
	sb.WriteString(`</svg>`)
	return template.HTML(sb.String())
}
