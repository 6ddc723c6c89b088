package ui

import (
	"net/http"
	"strconv"

	"curiesuite/internal/errors"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := s.svc.Runs.Recent(c.Request.Context(), limit)
	p := &page{Title: "Run History", Active: "runs", Result: runs}
	if err != nil {
		p.Error = err.Error()
		s.render(c, errors.HTTPStatus(err), "runs.html", p)
		return
	}
	s.render(c, http.StatusOK, "runs.html", p)
}

func (s *Server) handleRun(c *gin.Context) {
	r, err := s.svc.Runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.render(c, errors.HTTPStatus(err), "error.html", &page{Title: "Run not available", Error: err.Error()})
		return
	}
	s.render(c, http.StatusOK, "run.html", &page{Title: r.Title, Active: string(r.Kind), Result: r})
}

func (s *Server) handleRunDelete(c *gin.Context) {
	if err := s.svc.Runs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.render(c, errors.HTTPStatus(err), "error.html", &page{Title: "Run not deleted", Error: err.Error()})
		return
	}
	c.Redirect(http.StatusSeeOther, "/runs")
}

// handleArtifact serves a download. Images are shown inline so previews can
// be embedded in the run page.
func (s *Server) handleArtifact(c *gin.Context) {
	a, err := s.svc.Runs.Artifact(c.Request.Context(), c.Param("id"), c.Param("name"))
	if err != nil {
		c.String(errors.HTTPStatus(err), err.Error())
		return
	}
	etag := a.ETag()
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	disposition := "attachment"
	if c.Query("inline") == "1" {
		disposition = "inline"
	}
	c.Header("ETag", etag)
	c.Header("Content-Disposition", disposition+`; filename="`+a.Name+`"`)
	c.Data(http.StatusOK, a.MediaType, a.Data)
}

func (s *Server) handleHelp(c *gin.Context) {
	if len(s.help) == 0 {
		s.render(c, http.StatusNotFound, "error.html", &page{Title: "Help", Error: "no help pages installed"})
		return
	}
	slug := c.Param("slug")
	current := s.help[0]
	if slug != "" {
		found := false
		for _, h := range s.help {
			if h.Slug == slug {
				current, found = h, true
				break
			}
		}
		if !found {
			s.render(c, http.StatusNotFound, "error.html", &page{Title: "Help", Error: "no help page named " + slug})
			return
		}
	}
	s.render(c, http.StatusOK, "help.html", &page{Title: "Help: " + current.Title, Active: "help", Form: s.help, Result: current})
}
