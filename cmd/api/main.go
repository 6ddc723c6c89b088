// Command api serves only the JSON API, for scripted use of the tools
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"curiesuite/internal"
	"curiesuite/internal/api"
	"curiesuite/internal/config"
	"curiesuite/internal/container"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	log := internal.NewDefaultLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create application container")
	}
	defer c.Shutdown(context.Background())

	handler := api.NewRouter(api.Services{
		Blast:  c.Blast,
		Curve:  c.Curve,
		Pixels: c.Pixels,
		Stats:  c.Stats,
		Runs:   c.Runs,
	}, api.Options{
		MaxUploadBytes: cfg.Limits.MaxUploadBytes,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.APIPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", srv.Addr).Msg("starting API server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
}
