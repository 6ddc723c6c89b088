package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"curiesuite/app"
	"curiesuite/domain/pixel"
	"curiesuite/domain/run"
	"curiesuite/internal/errors"
	"curiesuite/internal/hitfilter"
	"curiesuite/internal/tabular"

	"github.com/go-chi/chi/v5"
)

type blastBody struct {
	Name        string   `json:"name"`
	Sequence    string   `json:"sequence"`
	FASTA       string   `json:"fasta"`
	MaxHits     *int     `json:"max_hits"`
	MinIdentity *float64 `json:"min_identity"`
	MaxIdentity *float64 `json:"max_identity"`
	MinCoverage *float64 `json:"min_coverage"`
	Alignment   string   `json:"alignment"`
	Trim        bool     `json:"trim"`
}

func (b blastBody) request() app.BlastRequest {
	c := hitfilter.DefaultCriteria()
	if b.MaxHits != nil {
		c.MaxHits = *b.MaxHits
	}
	if b.MinIdentity != nil {
		c.MinIdentity = *b.MinIdentity
	}
	if b.MaxIdentity != nil {
		c.MaxIdentity = *b.MaxIdentity
	}
	if b.MinCoverage != nil {
		c.MinCoverage = *b.MinCoverage
	}
	return app.BlastRequest{
		Name:      b.Name,
		Sequence:  b.Sequence,
		FASTA:     b.FASTA,
		Criteria:  c,
		Alignment: b.Alignment,
		Trim:      b.Trim,
	}
}

func (s *Server) handleBlast(w http.ResponseWriter, r *http.Request) {
	var body blastBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Blast.Run(r.Context(), body.request())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := map[string]interface{}{
		"run_id":       res.Run.ID,
		"summary":      res.Run.Summary,
		"examined":     res.Filter.Examined,
		"accepted":     res.Filter.Accepted(),
		"malformed":    res.Filter.Malformed,
		"out_of_range": res.Filter.OutOfRange,
		"redundant":    res.Filter.Redundant,
		"fasta":        res.Filter.Records.String(),
		"artifacts":    artifactNames(res.Run),
	}
	if res.Alignment != nil {
		out["alignment"] = res.Alignment.String()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAligners(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Blast.Aligners())
}

type tableBody struct {
	Title string `json:"title"`
	// Data is tab or comma separated text with a header row
	Data string `json:"data"`
}

func (b tableBody) frame() (*tabular.Frame, error) {
	if b.Data == "" {
		return nil, errors.InvalidInput("data is empty")
	}
	return tabular.Parse(strings.NewReader(b.Data), 0)
}

type fitBody struct {
	tableBody
	XColumn   string   `json:"x_column"`
	YColumns  []string `json:"y_columns"`
	Transpose bool     `json:"transpose"`
	MinValue  *float64 `json:"min_value"`
}

type fitJSON struct {
	Sample    string   `json:"sample"`
	Midpoint  *float64 `json:"midpoint"`
	Steepness *float64 `json:"hill_coefficient"`
	Converged bool     `json:"converged"`
	Message   string   `json:"message,omitempty"`
}

func (s *Server) handleFit(w http.ResponseWriter, r *http.Request) {
	var body fitBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	frame, err := body.frame()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Curve.Fit(r.Context(), app.CurveRequest{
		Title:     body.Title,
		Frame:     frame,
		XColumn:   body.XColumn,
		YColumns:  body.YColumns,
		Transpose: body.Transpose,
		MinValue:  body.MinValue,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	fits := make([]fitJSON, len(res.Fits))
	for i, f := range res.Fits {
		fits[i] = fitJSON{Sample: f.Sample, Midpoint: num(f.Midpoint), Steepness: num(f.Steepness), Converged: f.Converged, Message: f.Message}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":    res.Run.ID,
		"x_column":  res.Table.XName,
		"fits":      fits,
		"artifacts": artifactNames(res.Run),
	})
}

type statsBody struct {
	tableBody
	Columns []string `json:"columns"`
	A       string   `json:"a"`
	B       string   `json:"b"`
}

type summaryJSON struct {
	Column string   `json:"column"`
	N      int      `json:"n"`
	Mean   *float64 `json:"mean"`
	StdDev *float64 `json:"sd"`
	Median *float64 `json:"median"`
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	Q1     *float64 `json:"q1"`
	Q3     *float64 `json:"q3"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var body statsBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	frame, err := body.frame()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Stats.Analyze(r.Context(), app.StatsRequest{Title: body.Title, Frame: frame, Columns: body.Columns, A: body.A, B: body.B})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sums := make([]summaryJSON, len(res.Summaries))
	for i, v := range res.Summaries {
		sums[i] = summaryJSON{Column: v.Column, N: v.N, Mean: num(v.Mean), StdDev: num(v.StdDev), Median: num(v.Median), Min: num(v.Min), Max: num(v.Max), Q1: num(v.Q1), Q3: num(v.Q3)}
	}
	out := map[string]interface{}{
		"run_id":    res.Run.ID,
		"summaries": sums,
		"artifacts": artifactNames(res.Run),
	}
	if tt := res.TTest; tt != nil {
		out["t_test"] = map[string]interface{}{
			"a": tt.A, "b": tt.B,
			"mean_a": num(tt.MeanA), "mean_b": num(tt.MeanB),
			"t": num(tt.T), "df": num(tt.DF), "p_value": num(tt.PValue),
			"summary": tt.Summary,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handlePixels takes a multipart form with one or more "images" files and
// lower, upper and highlight fields
func (s *Server) handlePixels(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, r, errors.InvalidInputf("malformed upload: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	rng := pixel.FullRange()
	var err error
	if v := r.FormValue("lower"); v != "" {
		if rng.Lower, err = strconv.Atoi(v); err != nil {
			s.writeError(w, r, errors.InvalidInputf("lower: %v", err))
			return
		}
	}
	if v := r.FormValue("upper"); v != "" {
		if rng.Upper, err = strconv.Atoi(v); err != nil {
			s.writeError(w, r, errors.InvalidInputf("upper: %v", err))
			return
		}
	}
	highlight, _ := strconv.ParseBool(r.FormValue("highlight"))

	var uploads []app.Upload
	for _, fh := range r.MultipartForm.File["images"] {
		f, err := fh.Open()
		if err != nil {
			s.writeError(w, r, errors.InvalidInputf("open %s: %v", fh.Filename, err))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			s.writeError(w, r, errors.InvalidInputf("read %s: %v", fh.Filename, err))
			return
		}
		uploads = append(uploads, app.Upload{Name: fh.Filename, Data: data})
	}

	res, err := s.svc.Pixels.Count(r.Context(), app.PixelRequest{
		Title:     r.FormValue("title"),
		Images:    uploads,
		Range:     rng,
		Highlight: highlight,
		Preview:   r.FormValue("preview"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	counts := make([]map[string]interface{}, len(res.Counts))
	for i, c := range res.Counts {
		counts[i] = map[string]interface{}{
			"file_name":    c.FileName,
			"pixel_count":  c.InRange,
			"total_pixels": c.Total,
			"percentage":   c.Percentage(),
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":    res.Run.ID,
		"counts":    counts,
		"preview":   res.Preview,
		"artifacts": artifactNames(res.Run),
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.svc.Runs.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rn, err := s.svc.Runs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rn)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Runs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.Runs.Artifact(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	etag := a.ETag()
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", a.MediaType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+a.Name+`"`)
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Length", strconv.Itoa(a.Size()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Data)
}

func artifactNames(r *run.Run) []string {
	names := make([]string, len(r.Artifacts))
	for i, a := range r.Artifacts {
		names[i] = a.Name
	}
	return names
}
