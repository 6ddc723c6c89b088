package migration

import (
	"context"

	"curiesuite/internal/errors"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations for run history
type MigrationRunner struct {
	version string
	log     zerolog.Logger
}

// NewRunner creates a new migration runner
func NewRunner(log zerolog.Logger) *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
		log:     log.With().Str("component", "migration").Logger(),
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order. Statements are
// idempotent so Run is safe on every start.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createToolRunsTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create tool_runs table", err)
	}

	if err := r.createRunArtifactsTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create tool_run_artifacts table", err)
	}

	r.createIndexes(ctx, db)

	r.log.Info().Str("driver", db.DriverName()).Str("version", r.version).Msg("migrations applied")
	return nil
}

func (r *MigrationRunner) createToolRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tool_runs (
			id VARCHAR(36) PRIMARY KEY,
			kind VARCHAR(20) NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			params TEXT NOT NULL DEFAULT '{}',
			summary TEXT NOT NULL DEFAULT '[]',
			elapsed_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createRunArtifactsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tool_run_artifacts (
			run_id VARCHAR(36) NOT NULL REFERENCES tool_runs(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			media_type TEXT NOT NULL,
			data `+blobType(db)+` NOT NULL,
			PRIMARY KEY (run_id, name)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_tool_runs_created_at ON tool_runs(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_tool_runs_kind ON tool_runs(kind, created_at DESC)",
	}

	for _, idxSQL := range indexes {
		if _, err := db.ExecContext(ctx, idxSQL); err != nil {
			// Log but don't fail on index creation errors
			r.log.Warn().Err(err).Str("sql", idxSQL).Msg("failed to create index")
		}
	}
}

func blobType(db *sqlx.DB) string {
	if db.DriverName() == "postgres" {
		return "BYTEA"
	}
	return "BLOB"
}
