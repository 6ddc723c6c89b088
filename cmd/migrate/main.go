// Command migrate creates the run history tables in the configured database
package main

import (
	"context"
	"os"

	"curiesuite/adapters/postgres"
	"curiesuite/internal"
	"curiesuite/internal/config"
	"curiesuite/internal/migration"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	log := internal.NewDefaultLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if len(os.Args) > 1 {
		cfg.Database.URL = os.Args[1]
		if cfg.Database.Driver == "memory" {
			cfg.Database.Driver = "postgres"
		}
	}
	if cfg.Database.Driver == "memory" {
		log.Fatal().Msg("usage: migrate <database_url>, or set DATABASE_URL")
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	runner := migration.NewRunner(log)
	if err := runner.Run(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Str("driver", cfg.Database.Driver).Str("version", runner.Version()).Msg("migration complete")
}
