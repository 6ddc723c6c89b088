package ui

import (
	stderrors "errors"
	"io"
	"net/http"

	"curiesuite/app"
	"curiesuite/internal/errors"
	"curiesuite/internal/hitfilter"

	"github.com/gin-gonic/gin"
)

// blastForm mirrors the BLAST tab inputs. The FASTA file arrives as the
// "fasta" multipart field.
type blastForm struct {
	Name        string  `form:"name" binding:"max=100"`
	Sequence    string  `form:"sequence"`
	MaxHits     int     `form:"max_hits" binding:"gte=1,lte=5000"`
	MinIdentity float64 `form:"min_identity" binding:"gte=0,lte=100"`
	MaxIdentity float64 `form:"max_identity" binding:"gte=0,lte=100,gtefield=MinIdentity"`
	MinCoverage float64 `form:"min_coverage" binding:"gte=0,lte=100"`
	Alignment   string  `form:"alignment"`
	Trim        bool    `form:"trim"`

	Aligners []app.AlignerOption `form:"-"`
}

func (s *Server) defaultBlastForm() blastForm {
	c := hitfilter.DefaultCriteria()
	return blastForm{
		MaxHits:     c.MaxHits,
		MinIdentity: c.MinIdentity,
		MaxIdentity: c.MaxIdentity,
		MinCoverage: c.MinCoverage,
		Alignment:   app.AlignNone,
		Aligners:    s.svc.Blast.Aligners(),
	}
}

func (s *Server) handleBlastForm(c *gin.Context) {
	form := s.defaultBlastForm()
	s.render(c, http.StatusOK, "blast.html", &page{Title: "BLAST and Alignment Tool", Active: "blast", Form: form})
}

func (s *Server) handleBlastRun(c *gin.Context) {
	form := s.defaultBlastForm()
	p := &page{Title: "BLAST and Alignment Tool", Active: "blast", Form: &form}

	if err := c.ShouldBind(&form); err != nil {
		p.Error = err.Error()
		s.render(c, http.StatusBadRequest, "blast.html", p)
		return
	}
	fasta, err := formFileText(c, "fasta")
	if err != nil {
		p.Error = err.Error()
		s.render(c, errors.HTTPStatus(err), "blast.html", p)
		return
	}

	res, err := s.svc.Blast.Run(c.Request.Context(), app.BlastRequest{
		Name:     form.Name,
		Sequence: form.Sequence,
		FASTA:    fasta,
		Criteria: hitfilter.Criteria{
			MaxHits:     form.MaxHits,
			MinIdentity: form.MinIdentity,
			MaxIdentity: form.MaxIdentity,
			MinCoverage: form.MinCoverage,
		},
		Alignment: form.Alignment,
		Trim:      form.Trim,
	})
	if err != nil {
		_ = c.Error(err)
		p.Error = err.Error()
		s.render(c, errors.HTTPStatus(err), "blast.html", p)
		return
	}
	c.Redirect(http.StatusSeeOther, "/runs/"+res.Run.ID.String())
}

// formFileText reads an optional uploaded text file, "" when absent
func formFileText(c *gin.Context, field string) (string, error) {
	fh, err := c.FormFile(field)
	if stderrors.Is(err, http.ErrMissingFile) || stderrors.Is(err, http.ErrNotMultipart) {
		return "", nil
	}
	if err != nil {
		return "", errors.InvalidInputf("%s upload: %v", field, err)
	}
	f, err := fh.Open()
	if err != nil {
		return "", errors.InvalidInputf("open %s: %v", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", errors.InvalidInputf("read %s: %v", fh.Filename, err)
	}
	return string(data), nil
}
