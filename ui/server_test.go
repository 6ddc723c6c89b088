package ui

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"curiesuite/adapters/excel"
	"curiesuite/adapters/memory"
	"curiesuite/app"
	"curiesuite/domain/sequence"
	"curiesuite/internal/hill"
	"curiesuite/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearch struct {
	hits []sequence.AlignmentHit
}

func (s stubSearch) Search(context.Context, string, ports.SearchOptions) (ports.HitStream, error) {
	return stubStream(s), nil
}

type stubStream struct {
	hits []sequence.AlignmentHit
}

func (s stubStream) Hits() iter.Seq2[sequence.AlignmentHit, error] {
	return func(yield func(sequence.AlignmentHit, error) bool) {
		for _, h := range s.hits {
			if !yield(h, nil) {
				return
			}
		}
	}
}

func (stubStream) QueryLength() int { return 8 }
func (stubStream) Close() error     { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	runs := memory.NewRunRepository(0)
	log := zerolog.Nop()
	search := stubSearch{hits: []sequence.AlignmentHit{
		{SubjectID: "hitA", Sequence: "MKTAYIAK", Identities: 8, AlignLength: 8, QueryLength: 8},
	}}
	s, err := NewServer(Services{
		Blast:  app.NewBlastService(search, runs, 1, ports.SearchOptions{}, log),
		Curve:  app.NewCurveService(hill.NewFitter(log), runs, 0, log),
		Pixels: app.NewPixelService(runs, log),
		Stats:  app.NewStatsService(runs, log),
		Runs:   app.NewRunService(runs),
		Reader: excel.NewDataReader(1 << 20),
	}, Options{GinMode: gin.TestMode}, log)
	require.NoError(t, err)
	return s
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func postForm(s *Server, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func meltData() string {
	var sb strings.Builder
	sb.WriteString("Temp\tSampleA\n")
	fmt.Fprintf(&sb, "1\t%.6f\n", 100000*hill.Response(1, 45, -6))
	for x := 20.0; x <= 70; x += 2.5 {
		fmt.Fprintf(&sb, "%g\t%.6f\n", x, 100000*hill.Response(x, 45, -6))
	}
	return sb.String()
}

func TestRootRedirectsToBlast(t *testing.T) {
	s := newTestServer(t)
	w := get(s, "/")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/blast", w.Header().Get("Location"))
}

func TestToolPagesRender(t *testing.T) {
	s := newTestServer(t)
	for path, want := range map[string]string{
		"/blast":  "Maximum number of results",
		"/data":   "Paste Excel data here",
		"/stats":  "Welch t-test",
		"/pixels": "Count Pixels in Range",
		"/runs":   "No runs recorded.",
	} {
		w := get(s, path)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), want, path)
		assert.Contains(t, w.Body.String(), "Curie Tools", path)
	}
}

func TestStylesheetServed(t *testing.T) {
	s := newTestServer(t)
	w := get(s, "/static/css/dashboard.css")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), ".sidebar")
}

func TestBlastRunRedirectsToRunPage(t *testing.T) {
	s := newTestServer(t)

	w := postForm(s, "/blast", url.Values{
		"name":         {"lyso"},
		"sequence":     {"MKTAYIAK"},
		"max_hits":     {"10"},
		"min_identity": {"0"},
		"max_identity": {"100"},
		"min_coverage": {"0"},
		"alignment":    {"none"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	loc := w.Header().Get("Location")
	require.True(t, strings.HasPrefix(loc, "/runs/"), loc)

	page := get(s, loc)
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "lyso_BLAST.fasta")

	art := get(s, loc+"/artifacts/lyso_BLAST.fasta")
	require.Equal(t, http.StatusOK, art.Code)
	assert.Equal(t, ">query\nMKTAYIAK\n>hitA\nMKTAYIAK\n", art.Body.String())
	assert.Contains(t, art.Header().Get("Content-Disposition"), "attachment")

	req := httptest.NewRequest(http.MethodGet, loc+"/artifacts/lyso_BLAST.fasta", nil)
	req.Header.Set("If-None-Match", art.Header().Get("ETag"))
	cached := httptest.NewRecorder()
	s.Handler().ServeHTTP(cached, req)
	assert.Equal(t, http.StatusNotModified, cached.Code)

	del := postForm(s, loc+"/delete", nil)
	assert.Equal(t, http.StatusSeeOther, del.Code)
	assert.Equal(t, http.StatusNotFound, get(s, loc).Code)
}

func TestBlastRunRejectsInvertedIdentity(t *testing.T) {
	s := newTestServer(t)
	w := postForm(s, "/blast", url.Values{
		"sequence":     {"MKTAYIAK"},
		"max_hits":     {"10"},
		"min_identity": {"90"},
		"max_identity": {"50"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `class="error"`)
}

func TestBlastRunNeedsSequence(t *testing.T) {
	s := newTestServer(t)
	w := postForm(s, "/blast", url.Values{"max_hits": {"10"}, "max_identity": {"100"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `class="error"`)
}

func TestDataLoadThenFit(t *testing.T) {
	s := newTestServer(t)

	load := postForm(s, "/data/load", url.Values{"title": {"plate"}, "data": {meltData()}})
	require.Equal(t, http.StatusOK, load.Code)
	body := load.Body.String()
	assert.Contains(t, body, `name="x_column"`)
	assert.Contains(t, body, `value="SampleA" checked`)

	fit := postForm(s, "/data/fit", url.Values{
		"title":     {"plate"},
		"data":      {meltData()},
		"x_column":  {"Temp"},
		"y_columns": {"SampleA"},
	})
	require.Equal(t, http.StatusOK, fit.Code, fit.Body.String())
	body = fit.Body.String()
	assert.Contains(t, body, "<svg")
	assert.Contains(t, body, "plate_fits.xlsx")
}

func TestDataFitRejectsBadMinValue(t *testing.T) {
	s := newTestServer(t)
	w := postForm(s, "/data/fit", url.Values{
		"data":      {meltData()},
		"x_column":  {"Temp"},
		"y_columns": {"SampleA"},
		"min_value": {"lots"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "min value")
}

func TestDataLoadFromUpload(t *testing.T) {
	s := newTestServer(t)

	book, err := excel.WriteWorkbook(excel.Sheet{
		Name:    "Sheet1",
		Headers: []string{"Temp", "Well"},
		Rows:    [][]string{{"25", "1"}, {"50", "2"}},
	})
	require.NoError(t, err)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "plate.xlsx")
	require.NoError(t, err)
	_, err = fw.Write(book)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/data/load", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `value="Well" checked`)
}

func TestStatsRun(t *testing.T) {
	s := newTestServer(t)
	w := postForm(s, "/stats", url.Values{
		"data": {"A,B\n1,4\n2,5\n3,7\n"},
		"a":    {"A"},
		"b":    {"B"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := w.Body.String()
	assert.Contains(t, body, "Descriptive statistics")
	assert.Contains(t, body, "Welch t-test: A vs B")
	assert.Contains(t, body, "statistics.csv")
}

func TestStatsRejectsSameColumns(t *testing.T) {
	s := newTestServer(t)
	w := postForm(s, "/stats", url.Values{"data": {"A,B\n1,4\n2,5\n"}, "a": {"A"}, "b": {"A"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHelpPages(t *testing.T) {
	s := newTestServer(t)

	w := get(s, "/help")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `href="/help/pixels"`)

	w = get(s, "/help/data")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<h1")
	assert.Contains(t, w.Body.String(), "Hill equation")

	assert.Equal(t, http.StatusNotFound, get(s, "/help/nope").Code)
}

func TestUnknownRunRendersErrorPage(t *testing.T) {
	s := newTestServer(t)
	w := get(s, "/runs/not-a-run")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Back to the tools")
}
