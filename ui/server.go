// Package ui serves the tool dashboard: a sidebar of tools, one form per
// tool, results rendered server side and every output downloadable from
// its run page.
package ui

import (
	"embed"
	"net/http"

	"curiesuite/adapters/excel"
	"curiesuite/app"
	"curiesuite/ui/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

//go:embed templates/*.html static help/*.md
var embeddedFiles embed.FS

// Services are the application services behind the tabs
type Services struct {
	Blast  *app.BlastService
	Curve  *app.CurveService
	Pixels *app.PixelService
	Stats  *app.StatsService
	Runs   *app.RunService
	Reader *excel.DataReader
}

// Options tune the server
type Options struct {
	GinMode        string
	MaxUploadBytes int64
	RecentRuns     int
}

// Server represents the dashboard web server
type Server struct {
	router *gin.Engine
	svc    Services
	opts   Options
	pages  *pageSet
	help   []helpPage
	log    zerolog.Logger
}

// NewServer parses the embedded templates and help pages and mounts routes
func NewServer(svc Services, opts Options, log zerolog.Logger) (*Server, error) {
	if opts.GinMode != "" {
		gin.SetMode(opts.GinMode)
	}
	if opts.RecentRuns <= 0 {
		opts.RecentRuns = 10
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}

	pages, err := parsePages(embeddedFiles)
	if err != nil {
		return nil, err
	}
	help, err := loadHelp(embeddedFiles)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router: gin.New(),
		svc:    svc,
		opts:   opts,
		pages:  pages,
		help:   help,
		log:    log.With().Str("component", "ui").Logger(),
	}
	s.router.MaxMultipartMemory = opts.MaxUploadBytes
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

// Handler exposes the router for http.Server and tests
func (s *Server) Handler() http.Handler { return s.router }

// setupMiddleware configures Gin middleware and static files
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.AccessLog(s.log))
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.LimitBody(s.opts.MaxUploadBytes))
	s.router.StaticFileFS("/static/css/dashboard.css", "static/css/dashboard.css", http.FS(embeddedFiles))
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/blast") })

	s.router.GET("/blast", s.handleBlastForm)
	s.router.POST("/blast", s.handleBlastRun)

	s.router.GET("/data", s.handleDataForm)
	s.router.POST("/data/load", s.handleDataLoad)
	s.router.POST("/data/fit", s.handleDataFit)

	s.router.GET("/stats", s.handleStatsForm)
	s.router.POST("/stats", s.handleStatsRun)

	s.router.GET("/pixels", s.handlePixelsForm)
	s.router.POST("/pixels", s.handlePixelsRun)

	s.router.GET("/runs", s.handleRuns)
	s.router.GET("/runs/:id", s.handleRun)
	s.router.POST("/runs/:id/delete", s.handleRunDelete)
	s.router.GET("/runs/:id/artifacts/:name", s.handleArtifact)

	s.router.GET("/help", s.handleHelp)
	s.router.GET("/help/:slug", s.handleHelp)
}
