package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"VaultRisk/internal/usecase"
	"VaultRisk/pkg/config"
	xhttp "VaultRisk/pkg/http"
	applogger "VaultRisk/pkg/logger"
)

// App encapsulates the serve lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	scheduler  *usecase.ScoreScheduler
}

// New creates a new App. scheduler may be nil.
func New(cfg *config.Config, log *applogger.Logger, httpServer *xhttp.Server, scheduler *usecase.ScoreScheduler) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		scheduler:  scheduler,
	}
}

// Run starts the application and blocks until ctx is done or a signal
// arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("vault risk service started",
		applogger.String("addr", a.httpServer.Addr()),
		applogger.String("sinks", a.cfg.Sinks.Backend),
	)

	if a.scheduler != nil {
		a.scheduler.Start(ctx)
		a.log.Info("score scheduler started", applogger.Duration("interval_ms", a.cfg.Scheduler.Interval))
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops the producers of work; sinks and clients are closed by the
// DI cleanup afterwards.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if a.scheduler != nil {
		if err := a.scheduler.Shutdown(ctx); err != nil {
			a.log.Warn("scheduler stop error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	a.log.RemoveCollector()
	return nil
}
