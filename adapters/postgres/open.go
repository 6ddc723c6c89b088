// Package postgres holds the sqlx-backed repositories. Postgres is the
// production store; sqlite3 serves single-user installs and tests through
// the same queries, rebound per driver.
package postgres

import (
	"context"
	"fmt"
	"time"

	"curiesuite/internal/config"
	"curiesuite/internal/errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const (
	pingAttempts = 10
	pingTimeout  = 3 * time.Second
)

// Open connects to the configured database and pings it with backoff until
// it answers
func Open(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*sqlx.DB, error) {
	if cfg.Driver != "postgres" && cfg.Driver != "sqlite3" {
		return nil, errors.ConfigInvalid(fmt.Sprintf("database driver %q has no SQL store", cfg.Driver))
	}
	db, err := sqlx.Open(cfg.Driver, cfg.URL)
	if err != nil {
		return nil, errors.DatabaseError("open database", err)
	}
	if cfg.Driver == "sqlite3" {
		// one writer avoids SQLITE_BUSY and keeps :memory: databases shared
		db.SetMaxOpenConns(1)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 150 * time.Millisecond
	eb.MaxInterval = 2 * time.Second
	b := backoff.WithContext(backoff.WithMaxRetries(eb, pingAttempts-1), ctx)

	ping := func() error {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		return db.PingContext(pctx)
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("retry_in", wait).Str("driver", cfg.Driver).Msg("database not ready")
	}
	if err := backoff.RetryNotify(ping, b, notify); err != nil {
		db.Close()
		return nil, errors.DatabaseError(fmt.Sprintf("%s ping failed", cfg.Driver), err)
	}
	return db, nil
}
