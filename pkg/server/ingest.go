package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	pkgkafka "VaultRisk/pkg/kafka"
	applogger "VaultRisk/pkg/logger"
)

// IngestApp consumes report events into the snapshot store.
type IngestApp struct {
	consumer *pkgkafka.Consumer
	handler  pkgkafka.MessageHandler
	log      *applogger.Logger
}

func NewIngestApp(consumer *pkgkafka.Consumer, handler pkgkafka.MessageHandler, log *applogger.Logger) *IngestApp {
	return &IngestApp{consumer: consumer, handler: handler, log: log}
}

// Run blocks until ctx is done or a signal arrives, then drains the consumer.
func (a *IngestApp) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.consumer.RegisterHandler(a.handler)
	if err := a.consumer.Start(); err != nil {
		return err
	}
	a.log.Info("ingesting report events", applogger.String("topic", a.handler.Topic()))

	<-ctx.Done()
	a.log.Info("shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.consumer.Stop(stopCtx); err != nil {
		a.log.Warn("kafka consumer stop error", applogger.Error(err))
	}
	a.log.Info("ingest stopped")
	return nil
}
