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
	"curiesuite/ui"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownGrace = 15 * time.Second

func main() {
	// Load environment variables from .env file
	envErr := godotenv.Load()

	log := internal.NewDefaultLogger()
	if envErr != nil {
		log.Debug().Msg("no .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.New(ctx, appConfig, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create application container")
	}
	defer appContainer.Shutdown(context.Background())

	dashboard, err := ui.NewServer(ui.Services{
		Blast:  appContainer.Blast,
		Curve:  appContainer.Curve,
		Pixels: appContainer.Pixels,
		Stats:  appContainer.Stats,
		Runs:   appContainer.Runs,
		Reader: appContainer.Reader,
	}, ui.Options{
		GinMode:        appConfig.Server.GinMode,
		MaxUploadBytes: appConfig.Limits.MaxUploadBytes,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize dashboard")
	}

	apiHandler := api.NewRouter(api.Services{
		Blast:  appContainer.Blast,
		Curve:  appContainer.Curve,
		Pixels: appContainer.Pixels,
		Stats:  appContainer.Stats,
		Runs:   appContainer.Runs,
	}, api.Options{
		MaxUploadBytes: appConfig.Limits.MaxUploadBytes,
		AllowedOrigins: appConfig.Server.AllowedOrigins,
	}, log)

	servers := []*http.Server{
		newHTTPServer(":"+appConfig.Server.Port, dashboard.Handler()),
		newHTTPServer(":"+appConfig.Server.APIPort, apiHandler),
	}

	if err := serve(ctx, log, servers...); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("shutdown complete")
}

// newHTTPServer leaves the write timeout open because a BLAST request holds
// the connection until NCBI finishes
func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

// serve runs every server until ctx is cancelled or one of them fails, then
// drains them all
func serve(ctx context.Context, log zerolog.Logger, servers ...*http.Server) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			log.Info().Str("addr", srv.Addr).Msg("listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Str("addr", srv.Addr).Msg("graceful shutdown failed")
			}
		}
		return nil
	})
	return g.Wait()
}
