package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/baechuer/pension-service/internal/bootstrap"
	"github.com/baechuer/pension-service/internal/logger"
)

// httpServer is the part of *http.Server that Run needs.
type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
	Close() error
	Addr() string
}

type realServer struct{ *http.Server }

func (r realServer) Addr() string { return r.Server.Addr }

// service is what a builder hands to Run.
type service struct {
	srv     httpServer
	modes   bootstrap.Modes
	cleanup func()
}

type serviceBuilder func() (service, error)

// Must stay below the orchestrator's kill grace period.
const shutdownTimeout = 15 * time.Second

func logModes(lg zerolog.Logger, m bootstrap.Modes) {
	ev := lg.Info().
		Str("env", m.Env).
		Str("rate_limiter", m.RateLimiter).
		Str("publisher", m.Publisher).
		Dur("token_sweep_interval", m.SweepInterval)
	if m.RegistrySeeded > 0 {
		ev = ev.Int("registry_seeded", m.RegistrySeeded)
	}
	ev.Msg("pension service configured")

	if m.Publisher == "noop" && m.Env != "dev" {
		lg.Warn().Msg("account.registered events are not being published")
	}
}

func Run(build serviceBuilder, sigCh <-chan os.Signal, lg zerolog.Logger) int {
	svc, err := build()
	if err != nil {
		lg.Error().Err(err).Msg("bootstrap failed")
		return 1
	}
	defer svc.cleanup()
	logModes(lg, svc.modes)

	errCh := make(chan error, 1)
	go func() {
		lg.Info().Str("addr", svc.srv.Addr()).Msg("accepting signups")
		if err := svc.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		lg.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		lg.Error().Err(err).Msg("server crashed")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := svc.srv.Shutdown(ctx); err != nil {
		lg.Error().Err(err).Msg("graceful shutdown failed")
		_ = svc.srv.Close()
	}

	lg.Info().Msg("shutdown complete")
	return 0
}

func buildFromBootstrap() (service, error) {
	app, err := bootstrap.NewApp()
	if err != nil {
		return service{}, err
	}
	return service{srv: realServer{app.Server}, modes: app.Modes, cleanup: app.Cleanup}, nil
}

func main() {
	logger.Init()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	os.Exit(Run(buildFromBootstrap, sigCh, zlog.Logger))
}
