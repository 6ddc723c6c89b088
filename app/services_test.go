package app

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"

	"curiesuite/adapters/memory"
	"curiesuite/domain/pixel"
	"curiesuite/internal/errors"
	"curiesuite/internal/hill"
	"curiesuite/internal/tabular"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func meltPaste(t *testing.T) *tabular.Frame {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("Temp\tSampleA\tBlank\n")
	xs := []float64{1}
	for x := 20.0; x <= 70; x += 2.5 {
		xs = append(xs, x)
	}
	for _, x := range xs {
		fmt.Fprintf(&sb, "%g\t%.6f\t0\n", x, 100000*hill.Response(x, 45, -6))
	}
	frame, err := tabular.ParsePaste(sb.String())
	require.NoError(t, err)
	return frame
}

func TestCurveServiceFit(t *testing.T) {
	runs := memory.NewRunRepository(0)
	svc := NewCurveService(hill.NewFitter(zerolog.Nop()), runs, 0, zerolog.Nop())

	res, err := svc.Fit(context.Background(), CurveRequest{Title: "plate 7", Frame: meltPaste(t)})
	require.NoError(t, err)
	require.Len(t, res.Fits, 2)

	assert.True(t, res.Fits[0].Converged)
	assert.InDelta(t, 45, res.Fits[0].Midpoint, 0.1)
	assert.InDelta(t, -6, res.Fits[0].Steepness, 0.1)
	assert.True(t, math.IsNaN(res.Fits[1].Midpoint))
	assert.Len(t, res.Run.Summary, 2)

	saved, err := runs.Get(context.Background(), res.Run.ID)
	require.NoError(t, err)
	csv, err := saved.Artifact("plate_7_fits.csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(csv.Data), "Sample,Midpoint,Hill Coefficient,Converged\n"))
	assert.Contains(t, string(csv.Data), "Blank,nan,nan,false")
	_, err = saved.Artifact("plate_7_fits.xlsx")
	require.NoError(t, err)

	var params CurveRequest
	require.NoError(t, saved.DecodeParams(&params))
	assert.Equal(t, "Temp", params.XColumn)
	require.NotNil(t, params.MinValue)
	assert.Equal(t, 0.0, *params.MinValue)
}

func TestCurveServiceSelection(t *testing.T) {
	svc := NewCurveService(hill.NewFitter(zerolog.Nop()), memory.NewRunRepository(0), 0, zerolog.Nop())

	res, err := svc.Fit(context.Background(), CurveRequest{Frame: meltPaste(t), XColumn: "Temp", YColumns: []string{"SampleA"}})
	require.NoError(t, err)
	assert.Len(t, res.Fits, 1)
	assert.Equal(t, "curve", res.Run.Title)

	_, err = svc.Fit(context.Background(), CurveRequest{Frame: meltPaste(t), YColumns: []string{"Missing"}})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	_, err = svc.Fit(context.Background(), CurveRequest{})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestColumnsAfterTranspose(t *testing.T) {
	frame, err := tabular.ParsePaste("Sample\t25\t35\nA\t1\t2\nB\t3\t4\n")
	require.NoError(t, err)

	cols, err := Columns(frame, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sample", "A", "B"}, cols)

	cols, err = Columns(frame, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sample", "25", "35"}, cols)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{255, 255, 255, 255})
	img.Set(1, 0, color.RGBA{0, 0, 0, 255})
	img.Set(0, 1, color.RGBA{255, 0, 0, 255})
	img.Set(1, 1, color.RGBA{0, 0, 255, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPixelServiceCount(t *testing.T) {
	runs := memory.NewRunRepository(0)
	svc := NewPixelService(runs, zerolog.Nop())

	data := pngBytes(t)
	res, err := svc.Count(context.Background(), PixelRequest{
		Images:    []Upload{{Name: "well A1.png", Data: data}, {Name: "b.png", Data: data}},
		Range:     pixel.Range{Lower: 0, Upper: 100},
		Highlight: true,
	})
	require.NoError(t, err)
	require.Len(t, res.Counts, 2)
	assert.Equal(t, 3, res.Counts[0].InRange)
	assert.Equal(t, 4, res.Counts[0].Total)
	assert.Equal(t, "well_A1_processed.png", res.Preview)

	saved, err := runs.Get(context.Background(), res.Run.ID)
	require.NoError(t, err)
	preview, err := saved.Artifact(res.Preview)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(preview.Data))
	require.NoError(t, err)

	csv, err := saved.Artifact("pixel_counts.csv")
	require.NoError(t, err)
	assert.Contains(t, string(csv.Data), "File Name,Pixel Count,Total Pixels,Percentage\n")
	assert.Contains(t, string(csv.Data), "b.png,3,4,75\n")
}

func TestPixelServiceRejects(t *testing.T) {
	svc := NewPixelService(memory.NewRunRepository(0), zerolog.Nop())

	_, err := svc.Count(context.Background(), PixelRequest{Range: pixel.FullRange()})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	_, err = svc.Count(context.Background(), PixelRequest{Images: []Upload{{Name: "a.png", Data: pngBytes(t)}}, Range: pixel.Range{Lower: 200, Upper: 100}})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	_, err = svc.Count(context.Background(), PixelRequest{Images: []Upload{{Name: "notes.txt", Data: []byte("hello")}}, Range: pixel.FullRange()})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestStatsServiceAnalyze(t *testing.T) {
	frame, err := tabular.ParsePaste("A\tB\tLabel\n1\t2\tx\n2\t4\ty\n3\t6\tz\n")
	require.NoError(t, err)
	runs := memory.NewRunRepository(0)
	svc := NewStatsService(runs, zerolog.Nop())

	res, err := svc.Analyze(context.Background(), StatsRequest{Frame: frame, A: "A", B: "B"})
	require.NoError(t, err)
	require.Len(t, res.Summaries, 2)
	assert.Equal(t, "A", res.Summaries[0].Column)
	assert.InDelta(t, 4, res.Summaries[1].Mean, 1e-12)
	require.NotNil(t, res.TTest)
	assert.Less(t, res.TTest.T, 0.0)
	assert.Len(t, res.Run.Summary, 3)

	saved, err := runs.Get(context.Background(), res.Run.ID)
	require.NoError(t, err)
	_, err = saved.Artifact("statistics.xlsx")
	require.NoError(t, err)
}

func TestStatsServiceRejects(t *testing.T) {
	frame, err := tabular.ParsePaste("A\tLabel\n1\tx\n2\ty\n")
	require.NoError(t, err)
	svc := NewStatsService(memory.NewRunRepository(0), zerolog.Nop())

	_, err = svc.Analyze(context.Background(), StatsRequest{Frame: frame, A: "A"})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	_, err = svc.Analyze(context.Background(), StatsRequest{Frame: frame, Columns: []string{"Label"}})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	_, err = svc.Analyze(context.Background(), StatsRequest{Frame: frame, A: "A", B: "A"})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestRunService(t *testing.T) {
	runs := memory.NewRunRepository(0)
	pixels := NewPixelService(runs, zerolog.Nop())
	res, err := pixels.Count(context.Background(), PixelRequest{Images: []Upload{{Name: "a.png", Data: pngBytes(t)}}, Range: pixel.FullRange()})
	require.NoError(t, err)

	svc := NewRunService(runs)
	recent, err := svc.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	a, err := svc.Artifact(context.Background(), res.Run.ID.String(), "pixel_counts.csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", a.MediaType)

	_, err = svc.Artifact(context.Background(), res.Run.ID.String(), "missing.csv")
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

	_, err = svc.Get(context.Background(), "not-a-uuid")
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

	require.NoError(t, svc.Delete(context.Background(), res.Run.ID.String()))
	_, err = svc.Get(context.Background(), res.Run.ID.String())
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}
