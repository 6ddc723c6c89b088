package ui

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"math"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"curiesuite/domain/run"

	"github.com/gin-gonic/gin"
	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// page is the data every dashboard template receives
type page struct {
	Title  string
	Active string
	Recent []*run.Run
	Error  string
	Form   interface{}
	Result interface{}
}

type pageSet struct {
	templates *template.Template
}

var funcMap = template.FuncMap{
	"num": func(v float64) string {
		if math.IsNaN(v) {
			return "nan"
		}
		return fmt.Sprintf("%.4g", v)
	},
	"pct": func(v float64) string { return fmt.Sprintf("%.2f%%", v) },
	"when": func(t time.Time) string {
		return t.Local().Format("2006-01-02 15:04")
	},
	"seconds": func(d time.Duration) string {
		return fmt.Sprintf("%.1fs", d.Seconds())
	},
	"has": func(list []string, s string) bool {
		for _, v := range list {
			if v == s {
				return true
			}
		}
		return false
	},
	"join": strings.Join,
	"artifactURL": func(id fmt.Stringer, name string) string {
		return "/runs/" + url.PathEscape(id.String()) + "/artifacts/" + url.PathEscape(name)
	},
	"isImage": func(a run.Artifact) bool { return a.MediaType == run.MediaPNG },
}

// parsePages loads every page template from the embedded filesystem
func parsePages(fsys fs.FS) (*pageSet, error) {
	t, err := template.New("").Funcs(funcMap).ParseFS(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &pageSet{templates: t}, nil
}

// render executes a page into a buffer first so template errors never reach
// the client half written
func (s *Server) render(c *gin.Context, status int, name string, p *page) {
	if p.Recent == nil {
		recent, err := s.svc.Runs.Recent(c.Request.Context(), s.opts.RecentRuns)
		if err != nil {
			s.log.Warn().Err(err).Msg("listing recent runs for sidebar")
		}
		p.Recent = recent
	}

	var buf bytes.Buffer
	if err := s.pages.templates.ExecuteTemplate(&buf, name, p); err != nil {
		s.log.Error().Err(err).Str("template", name).Msg("template rendering failed")
		c.String(500, "template rendering failed")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

// helpPage is one rendered markdown document
type helpPage struct {
	Slug  string
	Title string
	Body  template.HTML
}

// loadHelp renders the embedded markdown help pages once at startup
func loadHelp(fsys fs.FS) ([]helpPage, error) {
	files, err := fs.Glob(fsys, "help/*.md")
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	pages := make([]helpPage, 0, len(files))
	for _, f := range files {
		md, err := fs.ReadFile(fsys, f)
		if err != nil {
			return nil, fmt.Errorf("read help page %s: %w", f, err)
		}
		slug := strings.TrimSuffix(path.Base(f), ".md")
		pages = append(pages, helpPage{Slug: slug, Title: helpTitle(md, slug), Body: template.HTML(renderMarkdown(md))})
	}
	return pages, nil
}

func renderMarkdown(md []byte) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	r := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank})
	return markdown.ToHTML(md, p, r)
}

func helpTitle(md []byte, fallback string) string {
	for _, line := range strings.Split(string(md), "\n") {
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return fallback
}
