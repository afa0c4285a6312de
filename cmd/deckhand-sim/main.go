package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"deckhand/internal/infra"
	"deckhand/internal/simulator"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	store := simulator.NewStore()
	runner, err := simulator.NewRunner(simulator.RunnerOptions{
		Store:     store,
		Logger:    &logger,
		StepDelay: cfg.SimStepDelay,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("sim: init runner")
	}
	defer runner.Close()

	srv, err := simulator.NewServer(simulator.ServerOptions{
		Store:       store,
		Runner:      runner,
		Logger:      &logger,
		Token:       cfg.APIToken,
		CORSOrigins: cfg.SimCORSOrigins,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("sim: init server")
	}

	server := infra.NewHTTPServer(cfg, srv.Router())

	go func() {
		logger.Info().Str("addr", server.Addr()).Dur("step_delay", cfg.SimStepDelay).Msg("sim: listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("sim: http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("sim: shutdown failed")
	}
	logger.Info().Msg("sim: stopped")
}
