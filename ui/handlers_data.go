package ui

import (
	"html/template"
	"net/http"
	"strings"

	"curiesuite/app"
	"curiesuite/internal/errors"
	"curiesuite/internal/tabular"

	"github.com/gin-gonic/gin"
)

const previewRows = 15

// dataForm holds the data processing tab. Data carries the table between
// the load and fit steps as tab separated text.
type dataForm struct {
	Title     string   `form:"title" binding:"max=100"`
	Data      string   `form:"data"`
	XColumn   string   `form:"x_column"`
	YColumns  []string `form:"y_columns"`
	Transpose bool     `form:"transpose"`
	MinValue  string   `form:"min_value"`

	Columns    []string       `form:"-"`
	Preview    *tabular.Frame `form:"-"`
	DefaultMin float64        `form:"-"`
}

func (s *Server) newDataForm() *dataForm {
	return &dataForm{DefaultMin: s.svc.Curve.DefaultMin()}
}

// dataResult is what the fit step shows
type dataResult struct {
	*app.CurveResult
	Plot template.HTML
}

func (s *Server) handleDataForm(c *gin.Context) {
	s.render(c, http.StatusOK, "data.html", &page{Title: "Data Processing Tool", Active: "data", Form: s.newDataForm()})
}

// handleDataLoad reads pasted text or an uploaded spreadsheet and offers its
// columns for selection
func (s *Server) handleDataLoad(c *gin.Context) {
	form := s.newDataForm()
	p := &page{Title: "Data Processing Tool", Active: "data", Form: form}
	if err := c.ShouldBind(form); err != nil {
		p.Error = err.Error()
		s.render(c, http.StatusBadRequest, "data.html", p)
		return
	}

	frame, err := s.uploadedFrame(c, form.Data)
	if err == nil {
		err = form.load(frame)
	}
	if err != nil {
		p.Error = err.Error()
		s.render(c, errors.HTTPStatus(err), "data.html", p)
		return
	}
	s.render(c, http.StatusOK, "data.html", p)
}

func (s *Server) handleDataFit(c *gin.Context) {
	form := s.newDataForm()
	p := &page{Title: "Data Processing Tool", Active: "data", Form: form}
	if err := c.ShouldBind(form); err != nil {
		p.Error = err.Error()
		s.render(c, http.StatusBadRequest, "data.html", p)
		return
	}

	frame, err := tabular.ParsePaste(form.Data)
	if err == nil {
		err = form.load(frame)
	}
	var minVal *float64
	if err == nil && strings.TrimSpace(form.MinValue) != "" {
		v, perr := tabular.ParseNumber(form.MinValue)
		if perr != nil {
			err = errors.InvalidInputf("min value: %v", perr)
		}
		minVal = &v
	}
	if err != nil {
		p.Error = err.Error()
		s.render(c, errors.HTTPStatus(err), "data.html", p)
		return
	}

	res, err := s.svc.Curve.Fit(c.Request.Context(), app.CurveRequest{
		Title:     form.Title,
		Frame:     frame,
		XColumn:   form.XColumn,
		YColumns:  form.YColumns,
		Transpose: form.Transpose,
		MinValue:  minVal,
	})
	if err != nil {
		_ = c.Error(err)
		p.Error = err.Error()
		s.render(c, errors.HTTPStatus(err), "data.html", p)
		return
	}
	p.Result = dataResult{CurveResult: res, Plot: curvePlot(res.Table, res.Fits, res.MinValue)}
	s.render(c, http.StatusOK, "data.html", p)
}

// uploadedFrame prefers an uploaded file over pasted text
func (s *Server) uploadedFrame(c *gin.Context, pasted string) (*tabular.Frame, error) {
	fh, err := c.FormFile("file")
	if err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, errors.InvalidInputf("open %s: %v", fh.Filename, err)
		}
		defer f.Close()
		return s.svc.Reader.Read(fh.Filename, f)
	}
	if strings.TrimSpace(pasted) == "" {
		return nil, errors.InvalidInput("paste data or upload a file")
	}
	return tabular.ParsePaste(pasted)
}

// load fills the selectable columns and the preview. With no selection yet
// the first column is X and the second the only Y, as the form defaults.
func (f *dataForm) load(frame *tabular.Frame) error {
	f.Data = frame.Text()
	cols, err := app.Columns(frame, f.Transpose)
	if err != nil {
		return err
	}
	f.Columns = cols
	if f.XColumn == "" && len(cols) > 0 {
		f.XColumn = cols[0]
	}
	if len(f.YColumns) == 0 && len(cols) > 1 {
		f.YColumns = []string{cols[1]}
	}

	preview := &tabular.Frame{Headers: frame.Headers, Rows: frame.Rows}
	if f.Transpose {
		if t, err := frame.Transpose(); err == nil {
			preview = t
		}
	}
	if len(preview.Rows) > previewRows {
		preview = &tabular.Frame{Headers: preview.Headers, Rows: preview.Rows[:previewRows]}
	}
	f.Preview = preview
	return nil
}
