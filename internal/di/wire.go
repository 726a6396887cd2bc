//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"VaultRisk/pkg/config"
	"VaultRisk/pkg/server"
)

var observabilitySet = wire.NewSet(
	ProvideLogger,
	ProvidePrometheusRegistry,
	ProvideRecorder,
	ProvideMetrics,
)

var scoringSet = wire.NewSet(
	ProvideEVMRegistry,
	ProvideRedisCache,
	ProvideCache,
	ProvideScoringParams,
	ProvideScorer,
	ProvideOracleResolver,
	ProvideTargetUtilizationResolver,
	ProvideMarketSource,
	ProvideKafkaProducer,
	ProvideReportPublisher,
	ProvideClickHouseClient,
	ProvideSnapshotStore,
	ProvideReportDispatcher,
	ProvideKnownVaults,
	ProvideAggregator,
)

// InitializeApp wires the HTTP service.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		observabilitySet,
		scoringSet,
		ProvideScoreScheduler,
		ProvideHTTPHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeScoreRunner wires the one-shot score command.
func InitializeScoreRunner(cfg *config.Config) (*server.ScoreRunner, func(), error) {
	wire.Build(
		observabilitySet,
		scoringSet,
		ProvideScoreRunner,
	)
	return nil, nil, nil
}

// InitializeIngestApp wires the report-events consumer.
func InitializeIngestApp(cfg *config.Config) (*server.IngestApp, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvidePrometheusRegistry,
		ProvideRecorder,
		ProvideMetrics,
		ProvideIngestClickHouseClient,
		ProvideSnapshotStore,
		ProvideKafkaConsumer,
		ProvideReportEventsHandler,
		ProvideIngestApp,
	)
	return nil, nil, nil
}
