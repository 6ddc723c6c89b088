package ui

import (
	"io"
	"net/http"

	"curiesuite/app"
	"curiesuite/domain/pixel"
	"curiesuite/internal/errors"

	"github.com/gin-gonic/gin"
)

type pixelForm struct {
	Title     string `form:"title" binding:"max=100"`
	Preview   string `form:"preview"`
	Highlight bool   `form:"highlight"`
	pixel.Range
}

func (s *Server) handlePixelsForm(c *gin.Context) {
	form := &pixelForm{Range: pixel.FullRange()}
	s.render(c, http.StatusOK, "pixels.html", &page{Title: "Pixel Counting Tool", Active: "pixels", Form: form})
}

func (s *Server) handlePixelsRun(c *gin.Context) {
	form := &pixelForm{Range: pixel.FullRange()}
	p := &page{Title: "Pixel Counting Tool", Active: "pixels", Form: form}
	if err := c.ShouldBind(form); err != nil {
		p.Error = err.Error()
		s.render(c, http.StatusBadRequest, "pixels.html", p)
		return
	}

	uploads, err := imageUploads(c)
	if err != nil {
		p.Error = err.Error()
		s.render(c, errors.HTTPStatus(err), "pixels.html", p)
		return
	}
	res, err := s.svc.Pixels.Count(c.Request.Context(), app.PixelRequest{
		Title:     form.Title,
		Images:    uploads,
		Range:     form.Range,
		Highlight: form.Highlight,
		Preview:   form.Preview,
	})
	if err != nil {
		_ = c.Error(err)
		p.Error = err.Error()
		s.render(c, errors.HTTPStatus(err), "pixels.html", p)
		return
	}
	p.Result = res
	s.render(c, http.StatusOK, "pixels.html", p)
}

func imageUploads(c *gin.Context) ([]app.Upload, error) {
	mf, err := c.MultipartForm()
	if err != nil {
		return nil, errors.InvalidInputf("upload images: %v", err)
	}
	var uploads []app.Upload
	for _, fh := range mf.File["images"] {
		f, err := fh.Open()
		if err != nil {
			return nil, errors.InvalidInputf("open %s: %v", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, errors.InvalidInputf("read %s: %v", fh.Filename, err)
		}
		uploads = append(uploads, app.Upload{Name: fh.Filename, Data: data})
	}
	return uploads, nil
}
