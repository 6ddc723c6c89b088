package container

import (
	"context"
	"fmt"

	"curiesuite/adapters/ebi"
	"curiesuite/adapters/excel"
	"curiesuite/adapters/memory"
	"curiesuite/adapters/ncbi"
	"curiesuite/adapters/postgres"
	"curiesuite/app"
	"curiesuite/internal/config"
	"curiesuite/internal/hill"
	"curiesuite/internal/migration"
	"curiesuite/ports"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Log    zerolog.Logger

	// Infrastructure
	DB *sqlx.DB

	// Repositories
	RunRepo ports.RunRepository

	// Remote collaborators
	Search   ports.SearchClient
	Aligners []ports.Aligner

	// Services
	Blast  *app.BlastService
	Curve  *app.CurveService
	Pixels *app.PixelService
	Stats  *app.StatsService
	Runs   *app.RunService

	Reader *excel.DataReader
}

// New builds every component from configuration. With a SQL driver the
// database is opened and migrated first.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	c := &Container{Config: cfg, Log: log}

	if err := c.initRepositories(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}
	if err := c.initRemote(); err != nil {
		c.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize remote clients: %w", err)
	}
	c.initServices()

	log.Info().
		Str("database", cfg.Database.Driver).
		Int("aligners", len(c.Aligners)).
		Msg("container initialized")
	return c, nil
}

// initRepositories picks the run store for the configured driver
func (c *Container) initRepositories(ctx context.Context) error {
	if c.Config.Database.Driver == "memory" {
		c.RunRepo = memory.NewRunRepository(0)
		return nil
	}
	db, err := postgres.Open(ctx, c.Config.Database, c.Log)
	if err != nil {
		return err
	}
	if err := migration.NewRunner(c.Log).Run(ctx, db); err != nil {
		db.Close()
		return err
	}
	c.DB = db
	c.RunRepo = postgres.NewRunRepository(db)
	return nil
}

// initRemote creates the NCBI and EBI clients
func (c *Container) initRemote() error {
	c.Search = ncbi.NewClient(c.Config.NCBI, nil, c.Log)
	for _, tool := range []string{ebi.ToolClustalOmega, ebi.ToolMuscle} {
		a, err := ebi.NewClient(tool, c.Config.EBI, nil, c.Log)
		if err != nil {
			return err
		}
		c.Aligners = append(c.Aligners, a)
	}
	return nil
}

func (c *Container) initServices() {
	searchOpts := ports.SearchOptions{Program: c.Config.NCBI.Program, Database: c.Config.NCBI.Database}
	c.Blast = app.NewBlastService(c.Search, c.RunRepo, c.Config.Limits.MaxInFlightSearches, searchOpts, c.Log, c.Aligners...)
	c.Curve = app.NewCurveService(hill.NewFitter(c.Log), c.RunRepo, c.Config.Curve.DefaultMinValue, c.Log)
	c.Pixels = app.NewPixelService(c.RunRepo, c.Log)
	c.Stats = app.NewStatsService(c.RunRepo, c.Log)
	c.Runs = app.NewRunService(c.RunRepo)
	c.Reader = excel.NewDataReader(c.Config.Limits.MaxUploadBytes)
}

// Shutdown releases the database connection
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
