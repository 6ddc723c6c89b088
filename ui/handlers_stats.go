package ui

import (
	"net/http"
	"strings"

	"curiesuite/app"
	"curiesuite/internal/errors"

	"github.com/gin-gonic/gin"
)

type statsForm struct {
	Title   string   `form:"title" binding:"max=100"`
	Data    string   `form:"data"`
	Columns []string `form:"columns"`
	A       string   `form:"a"`
	B       string   `form:"b" binding:"omitempty,nefield=A"`

	Headers []string `form:"-"`
}

func (s *Server) handleStatsForm(c *gin.Context) {
	s.render(c, http.StatusOK, "stats.html", &page{Title: "Statistical Analysis Tool", Active: "stats", Form: &statsForm{}})
}

func (s *Server) handleStatsRun(c *gin.Context) {
	form := &statsForm{}
	p := &page{Title: "Statistical Analysis Tool", Active: "stats", Form: form}
	if err := c.ShouldBind(form); err != nil {
		p.Error = err.Error()
		s.render(c, http.StatusBadRequest, "stats.html", p)
		return
	}

	frame, err := s.uploadedFrame(c, form.Data)
	if err != nil {
		p.Error = err.Error()
		s.render(c, errors.HTTPStatus(err), "stats.html", p)
		return
	}
	form.Data = frame.Text()
	form.Headers = frame.Headers

	var cols []string
	for _, field := range form.Columns {
		for _, col := range strings.Split(field, ",") {
			if col = strings.TrimSpace(col); col != "" {
				cols = append(cols, col)
			}
		}
	}
	res, err := s.svc.Stats.Analyze(c.Request.Context(), app.StatsRequest{
		Title:   form.Title,
		Frame:   frame,
		Columns: cols,
		A:       form.A,
		B:       form.B,
	})
	if err != nil {
		_ = c.Error(err)
		p.Error = err.Error()
		s.render(c, errors.HTTPStatus(err), "stats.html", p)
		return
	}
	p.Result = res
	s.render(c, http.StatusOK, "stats.html", p)
}
