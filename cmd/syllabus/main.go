package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/jacentio/syllabus/api"
	"github.com/jacentio/syllabus/internal/app"
	"github.com/jacentio/syllabus/internal/config"
	"github.com/jacentio/syllabus/internal/logging"
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err == nil {
		err = cfg.ValidateServer()
	}
	if err != nil {
		l := logging.New("error", true)
		l.Fatal().Err(err).Msg("loading config")
	}
	log := logging.New(cfg.LogLevel, cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("wiring application")
	}

	srv := api.NewServer(&api.Options{
		Address:   cfg.Addr,
		Debug:     cfg.Debug,
		Logger:    log,
		Gate:      api.NewJWTGate(cfg.JWTSecret),
		Cascader:  a.Cascader,
		Reorderer: a.Reorderer,
		Browser:   a.Browser,
		Details:   a.Details,
	})

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			log.Error().Err(errors.Wrap(err, "stopping server")).Msg("unclean shutdown")
		}
	}
}
