package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"iter"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"curiesuite/adapters/memory"
	"curiesuite/app"
	"curiesuite/domain/sequence"
	"curiesuite/internal/hill"
	"curiesuite/ports"

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

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerWithOptions(t, Options{MaxUploadBytes: 8 << 20})
}

func newTestServerWithOptions(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	runs := memory.NewRunRepository(0)
	log := zerolog.Nop()
	search := stubSearch{hits: []sequence.AlignmentHit{
		{SubjectID: "hitA", Sequence: "MKTAYIAK", Identities: 8, AlignLength: 8, QueryLength: 8},
	}}
	h := NewRouter(Services{
		Blast:  app.NewBlastService(search, runs, 1, ports.SearchOptions{}, log),
		Curve:  app.NewCurveService(hill.NewFitter(log), runs, 0, log),
		Pixels: app.NewPixelService(runs, log),
		Stats:  app.NewStatsService(runs, log),
		Runs:   app.NewRunService(runs),
	}, opts, log)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func meltData() string {
	var sb strings.Builder
	sb.WriteString("Temp\tSampleA\tBlank\n")
	xs := []float64{1}
	for x := 20.0; x <= 70; x += 2.5 {
		xs = append(xs, x)
	}
	for _, x := range xs {
		fmt.Fprintf(&sb, "%g\t%.6f\t0\n", x, 100000*hill.Response(x, 45, -6))
	}
	return sb.String()
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFitEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, out := postJSON(t, srv.URL+"/api/v1/fit", map[string]interface{}{"title": "plate", "data": meltData()})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Temp", out["x_column"])

	fits := out["fits"].([]interface{})
	require.Len(t, fits, 2)
	first := fits[0].(map[string]interface{})
	assert.InDelta(t, 45, first["midpoint"], 0.1)
	second := fits[1].(map[string]interface{})
	assert.Nil(t, second["midpoint"])
	assert.Equal(t, false, second["converged"])
	assert.ElementsMatch(t, []interface{}{"plate_fits.csv", "plate_fits.xlsx"}, out["artifacts"])
}

func TestFitEndpointRejects(t *testing.T) {
	srv := newTestServer(t)

	resp, out := postJSON(t, srv.URL+"/api/v1/fit", map[string]interface{}{"data": "Temp\tA\n25\tx\n"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_INPUT", out["code"])

	resp, out = postJSON(t, srv.URL+"/api/v1/fit", map[string]interface{}{"data": "Temp\tA\n25\t1\n", "bogus": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["message"], "bogus")
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, out := postJSON(t, srv.URL+"/api/v1/stats", map[string]interface{}{
		"data": "A,B\n1,2\n2,4\n3,6\n",
		"a":    "A",
		"b":    "B",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sums := out["summaries"].([]interface{})
	require.Len(t, sums, 2)
	assert.Equal(t, float64(2), sums[0].(map[string]interface{})["mean"])
	tt := out["t_test"].(map[string]interface{})
	assert.Less(t, tt["t"].(float64), 0.0)
}

func TestBlastEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, out := postJSON(t, srv.URL+"/api/v1/blast", map[string]interface{}{"name": "lyso", "sequence": "MKTAYIAK"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), out["accepted"])
	assert.Equal(t, ">query\nMKTAYIAK\n>hitA\nMKTAYIAK\n", out["fasta"])
	assert.Nil(t, out["alignment"])

	resp, out = postJSON(t, srv.URL+"/api/v1/blast", map[string]interface{}{"sequence": "MKT", "fasta": ">a\nMKT\n"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_INPUT", out["code"])
}

func pixelUpload(t *testing.T, url string) *http.Response {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 2, 1))
	img.SetGray(0, 0, color.Gray{Y: 10})
	img.SetGray(1, 0, color.Gray{Y: 200})
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, img))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("images", "gel.png")
	require.NoError(t, err)
	_, err = fw.Write(pngBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("lower", "0"))
	require.NoError(t, mw.WriteField("upper", "100"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func TestPixelsEndpointAndRuns(t *testing.T) {
	srv := newTestServer(t)

	resp := pixelUpload(t, srv.URL+"/api/v1/pixels")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		RunID  string                   `json:"run_id"`
		Counts []map[string]interface{} `json:"counts"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Counts, 1)
	assert.Equal(t, float64(1), out.Counts[0]["pixel_count"])
	assert.Equal(t, float64(50), out.Counts[0]["percentage"])

	list, err := http.Get(srv.URL + "/api/v1/runs?limit=5")
	require.NoError(t, err)
	var runs []map[string]interface{}
	require.NoError(t, json.NewDecoder(list.Body).Decode(&runs))
	list.Body.Close()
	require.Len(t, runs, 1)
	assert.Equal(t, out.RunID, runs[0]["id"])

	art, err := http.Get(srv.URL + "/api/v1/runs/" + out.RunID + "/artifacts/pixel_counts.csv")
	require.NoError(t, err)
	art.Body.Close()
	require.Equal(t, http.StatusOK, art.StatusCode)
	assert.Equal(t, "text/csv", art.Header.Get("Content-Type"))
	etag := art.Header.Get("ETag")
	require.NotEmpty(t, etag)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/runs/"+out.RunID+"/artifacts/pixel_counts.csv", nil)
	require.NoError(t, err)
	req.Header.Set("If-None-Match", etag)
	cached, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	cached.Body.Close()
	assert.Equal(t, http.StatusNotModified, cached.StatusCode)

	missing, err := http.Get(srv.URL + "/api/v1/runs/" + out.RunID + "/artifacts/nope.csv")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	del, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/runs/"+out.RunID, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(del)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	gone, err := http.Get(srv.URL + "/api/v1/runs/" + out.RunID)
	require.NoError(t, err)
	gone.Body.Close()
	assert.Equal(t, http.StatusNotFound, gone.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServerWithOptions(t, Options{MaxUploadBytes: 8 << 20, AllowedOrigins: []string{"https://lab.example.org"}})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/fit", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://lab.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "https://lab.example.org", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://elsewhere.example.org")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestNoCORSWithoutOrigins(t *testing.T) {
	srv := newTestServer(t)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://lab.example.org")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
