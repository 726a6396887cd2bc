package di

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"VaultRisk/internal/domain/models"
	"VaultRisk/internal/domain/repository"
	"VaultRisk/internal/handler/api"
	internalrepo "VaultRisk/internal/repository"
	"VaultRisk/internal/service/indexer"
	"VaultRisk/internal/service/ratelimit"
	"VaultRisk/internal/services/onchain"
	"VaultRisk/internal/services/risk"
	"VaultRisk/internal/usecase"
	"VaultRisk/pkg/cache"
	pkgch "VaultRisk/pkg/clickhouse"
	"VaultRisk/pkg/config"
	"VaultRisk/pkg/evm"
	xhttp "VaultRisk/pkg/http"
	pkgkafka "VaultRisk/pkg/kafka"
	"VaultRisk/pkg/logger"
	"VaultRisk/pkg/metrics"
	"VaultRisk/pkg/server"
)

// KnownVaults is the configured vault registry keyed by chain id.
type KnownVaults map[int64][]common.Address

// ProvideLogger builds the application logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvidePrometheusRegistry creates the registry served on /metrics.
func ProvidePrometheusRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func ProvideRecorder(reg *prometheus.Registry) *metrics.Recorder {
	pkgkafka.RegisterMetrics(reg)
	return metrics.New(reg)
}

// ProvideMetrics exposes the recorder through the domain interface.
func ProvideMetrics(rec *metrics.Recorder) repository.Metrics {
	return rec
}

// ProvideEVMRegistry dials one RPC caller per configured chain.
func ProvideEVMRegistry(cfg *config.Config, l *logger.Logger) (*evm.Registry, func(), error) {
	reg := evm.NewRegistry()
	for _, ch := range cfg.Chains {
		caller, err := evm.DialRPC(
			evm.WithURL(ch.RPCURL),
			evm.WithDialTimeout(ch.DialTimeout),
			evm.WithMaxBatchSize(ch.MaxBatchSize),
		)
		if err != nil {
			reg.Close()
			return nil, nil, fmt.Errorf("chain %d: %w", ch.ID, err)
		}
		reg.Register(ch.ID, caller)
		l.Info("rpc endpoint registered", logger.Int64("chain_id", ch.ID), logger.Int("max_batch", ch.MaxBatchSize))
	}
	return reg, reg.Close, nil
}

// ProvideRedisCache connects to Redis when enabled; nil otherwise.
func ProvideRedisCache(cfg *config.Config, l *logger.Logger) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 2),
		cache.WithRedisTimeout(cfg.Redis.Timeout),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	l.Info("redis cache connected", logger.String("addr", cfg.Redis.Addr))
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideCache returns memory-only caching, or memory in front of Redis.
func ProvideCache(rc *cache.RedisCache, cfg *config.Config) (cache.Service, func()) {
	var svc cache.Service
	if rc == nil {
		svc = cache.NewMemoryCache(cache.WithMemoryMaxSize(10_000))
	} else {
		svc = cache.NewLayeredCache(rc, cache.WithLayeredMemoryTTL(cfg.Redis.MemoryTTL))
	}
	return svc, func() { _ = svc.Close() }
}

// ProvideScoringParams overlays configured values on the built-in defaults.
func ProvideScoringParams(cfg *config.Config) (risk.ScoringParams, error) {
	p := risk.DefaultScoringParams()
	sc := cfg.Scoring

	w := sc.Weights
	if w.Headroom+w.Utilization+w.Coverage+w.Oracle > 0 {
		p.Weights = risk.Weights{Headroom: w.Headroom, Utilization: w.Utilization, Coverage: w.Coverage, Oracle: w.Oracle}
	}
	if sc.CoverageSaturation > 0 {
		p.CoverageSaturation = sc.CoverageSaturation
	}
	if sc.OracleFresh > 0 {
		p.OracleFresh = sc.OracleFresh
	}
	if sc.OracleStale > 0 {
		p.OracleStale = sc.OracleStale
	}
	if sc.OracleUnknownScore != nil {
		p.OracleUnknownScore = *sc.OracleUnknownScore
	}
	if sc.HeadroomNeutralScore != nil {
		p.HeadroomNeutralScore = *sc.HeadroomNeutralScore
	}
	if sc.DefaultTargetUtilization > 0 {
		p.DefaultTargetUtilization = sc.DefaultTargetUtilization
	}
	if len(sc.Grades) > 0 {
		bands := make([]risk.GradeBand, len(sc.Grades))
		for i, b := range sc.Grades {
			bands[i] = risk.GradeBand{Grade: models.Grade(b.Grade), Min: b.Min}
		}
		p.Grades = risk.GradeScale{Bands: bands, Floor: models.Grade(sc.GradeFloor)}
		if p.Grades.Floor == "" {
			p.Grades.Floor = models.GradeF
		}
	}

	if err := p.Validate(); err != nil {
		return risk.ScoringParams{}, err
	}
	return p, nil
}

func ProvideScorer(p risk.ScoringParams) *risk.Scorer {
	return risk.NewScorer(p)
}

func ProvideOracleResolver(reg *evm.Registry, l *logger.Logger, m repository.Metrics, cfg *config.Config) *onchain.OracleFreshnessResolver {
	return onchain.NewOracleFreshnessResolver(reg, l.With(logger.String("resolver", "oracle")), m,
		onchain.WithTimeout(cfg.Resolvers.Timeout),
	)
}

func ProvideTargetUtilizationResolver(
	reg *evm.Registry,
	l *logger.Logger,
	m repository.Metrics,
	cfg *config.Config,
	p risk.ScoringParams,
	c cache.Service,
) *onchain.TargetUtilizationResolver {
	return onchain.NewTargetUtilizationResolver(reg, l.With(logger.String("resolver", "irm")), m,
		onchain.WithTimeout(cfg.Resolvers.Timeout),
		onchain.WithDefaultTarget(p.DefaultTargetUtilization),
		onchain.WithCache(c, cfg.Resolvers.IRMCacheTTL),
	)
}

// ProvideMarketSource creates the GraphQL indexer client.
func ProvideMarketSource(cfg *config.Config) repository.MarketSource {
	opts := []indexer.ClientOption{indexer.WithTimeout(cfg.Indexer.Timeout), indexer.WithRetries(cfg.Indexer.Retries)}
	for k, v := range cfg.Indexer.Headers {
		opts = append(opts, indexer.WithHeader(k, v))
	}
	return indexer.NewClient(cfg.Indexer.URL, opts...)
}

func usesKafka(cfg *config.Config) bool {
	return cfg.Sinks.Backend == usecase.BackendKafka || cfg.Sinks.Backend == usecase.BackendBoth || cfg.LogCollector.Enabled
}

func usesClickHouse(cfg *config.Config) bool {
	return cfg.Sinks.Backend == usecase.BackendClickHouse || cfg.Sinks.Backend == usecase.BackendBoth
}

// ProvideKafkaProducer creates a producer when a sink or the log collector
// needs one; nil otherwise.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !usesKafka(cfg) {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.Producer.MaxAttempts, cfg.Kafka.Producer.Async),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithAutoCreateTopics(cfg.Kafka.AutoCreate),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideReportPublisher wraps the producer; nil when Kafka is off.
func ProvideReportPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.ReportPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaReportPublisher(producer, cfg.Kafka.Topic)
}

func openClickHouse(cfg *config.Config, l *logger.Logger) (*pkgch.Client, func(), error) {
	client, err := pkgch.NewClient(
		pkgch.WithAddrs(cfg.ClickHouse.Addrs...),
		pkgch.WithAuth(cfg.ClickHouse.Database, cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5, 0),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := append([]string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database},
		internalrepo.SnapshotSchema(snapshotTable(cfg))...)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse connected and schema ready", logger.String("table", snapshotTable(cfg)))
	return client, func() { _ = client.Close() }, nil
}

func snapshotTable(cfg *config.Config) string {
	return cfg.ClickHouse.Database + "." + cfg.ClickHouse.Table
}

// ProvideClickHouseClient connects when a sink needs ClickHouse; nil otherwise.
func ProvideClickHouseClient(cfg *config.Config, l *logger.Logger) (*pkgch.Client, func(), error) {
	if !usesClickHouse(cfg) {
		return nil, func() {}, nil
	}
	return openClickHouse(cfg, l)
}

// ProvideIngestClickHouseClient always connects; the ingest command has no
// other purpose.
func ProvideIngestClickHouseClient(cfg *config.Config, l *logger.Logger) (*pkgch.Client, func(), error) {
	return openClickHouse(cfg, l)
}

// ProvideSnapshotStore returns a nil interface when ClickHouse is off.
func ProvideSnapshotStore(client *pkgch.Client, cfg *config.Config, l *logger.Logger) (repository.SnapshotStore, error) {
	if client == nil {
		return nil, nil
	}
	store, err := internalrepo.NewCHSnapshotStore(client, snapshotTable(cfg), l)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func ProvideReportDispatcher(
	pub repository.ReportPublisher,
	store repository.SnapshotStore,
	m repository.Metrics,
	l *logger.Logger,
	cfg *config.Config,
) (*usecase.ReportDispatcher, func(), error) {
	d, err := usecase.NewReportDispatcher(pub, store, m, l, cfg.Sinks.Backend, cfg.Sinks.Timeout)
	if err != nil {
		return nil, nil, err
	}
	return d, d.Close, nil
}

// ProvideKnownVaults parses the configured registry. Addresses were
// validated by config.
func ProvideKnownVaults(cfg *config.Config) KnownVaults {
	out := make(KnownVaults)
	for chainID, addrs := range cfg.VaultsByChain() {
		for _, a := range addrs {
			out[chainID] = append(out[chainID], common.HexToAddress(a))
		}
	}
	return out
}

func ProvideAggregator(
	source repository.MarketSource,
	oracle *onchain.OracleFreshnessResolver,
	irm *onchain.TargetUtilizationResolver,
	scorer *risk.Scorer,
	m repository.Metrics,
	l *logger.Logger,
	dispatcher *usecase.ReportDispatcher,
	known KnownVaults,
	cfg *config.Config,
) *usecase.VaultRiskAggregator {
	return usecase.NewVaultRiskAggregator(source, oracle, irm, scorer, m, l,
		usecase.WithKnownVaults(known),
		usecase.WithMaxConcurrency(cfg.Resolvers.MaxConcurrency),
		usecase.WithVaultConcurrency(cfg.Scheduler.Concurrency),
		usecase.WithDispatcher(dispatcher),
	)
}

// ProvideScoreScheduler returns nil unless the scheduler is enabled.
func ProvideScoreScheduler(
	agg *usecase.VaultRiskAggregator,
	known KnownVaults,
	m repository.Metrics,
	l *logger.Logger,
	cfg *config.Config,
) *usecase.ScoreScheduler {
	if !cfg.Scheduler.Enabled {
		return nil
	}
	return usecase.NewScoreScheduler(agg, known, cfg.Scheduler.Interval, m, l)
}

func ProvideHTTPHandler(
	l *logger.Logger,
	agg *usecase.VaultRiskAggregator,
	c cache.Service,
	rc *cache.RedisCache,
	store repository.SnapshotStore,
	cfg *config.Config,
) *api.VaultRiskEchoHandler {
	opts := []api.Option{api.WithResponseCache(c, cfg.Server.ResponseCacheTTL)}
	if cfg.Server.RateLimit.Burst > 0 {
		opts = append(opts, api.WithRateLimiter(ratelimit.New(cfg.Server.RateLimit.Burst, cfg.Server.RateLimit.PerSecond)))
	}
	if store != nil {
		opts = append(opts,
			api.WithHistory(store, cfg.Server.HistoryWindow),
			api.WithReadinessCheck("clickhouse", store.Health),
		)
	}
	if rc != nil {
		opts = append(opts, api.WithReadinessCheck("redis", rc.Ping))
	}
	return api.NewVaultRiskEchoHandler(l, agg, opts...)
}

func ProvideHTTPServer(
	cfg *config.Config,
	h *api.VaultRiskEchoHandler,
	l *logger.Logger,
	rec *metrics.Recorder,
	reg *prometheus.Registry,
) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(rec, metrics.Handler(reg)))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideApp assembles the serve lifecycle.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	srv *xhttp.Server,
	scheduler *usecase.ScoreScheduler,
	producer *pkgkafka.Producer,
) *server.App {
	if cfg.LogCollector.Enabled && producer != nil {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   cfg.LogCollector.Interval,
			CountThreshold: cfg.LogCollector.CountThreshold,
			Topic:          cfg.LogCollector.Topic,
			Service:        "vaultrisk",
			Publisher:      producer,
		})
	}
	return server.New(cfg, l, srv, scheduler)
}

// ProvideScoreRunner assembles the one-shot score command.
func ProvideScoreRunner(
	agg *usecase.VaultRiskAggregator,
	dispatcher *usecase.ReportDispatcher,
	known KnownVaults,
	l *logger.Logger,
) *server.ScoreRunner {
	return server.NewScoreRunner(agg, dispatcher, known, l)
}

// ProvideKafkaConsumer creates the report-events consumer.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(l.With(logger.String("component", "consumer")),
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideReportEventsHandler(cfg *config.Config, store repository.SnapshotStore, m repository.Metrics, l *logger.Logger) *usecase.ReportEventsHandler {
	return usecase.NewReportEventsHandler(cfg.Kafka.Topic, store, m, l)
}

func ProvideIngestApp(consumer *pkgkafka.Consumer, h *usecase.ReportEventsHandler, l *logger.Logger) *server.IngestApp {
	return server.NewIngestApp(consumer, h, l)
}
