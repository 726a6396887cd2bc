package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"VaultRisk/pkg/logger"
	xutil "VaultRisk/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production"`

	Server struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
		CORS            bool          `yaml:"cors" default:"true"`
		// ResponseCacheTTL caches whole vault reports; 0 disables.
		ResponseCacheTTL time.Duration `yaml:"response_cache_ttl" default:"15s"`
		RateLimit        struct {
			Burst     float64 `yaml:"burst" default:"10" validate:"gte=0"`
			PerSecond float64 `yaml:"per_second" default:"2" validate:"gte=0"`
		} `yaml:"rate_limit"`
		HistoryWindow time.Duration `yaml:"history_window" default:"168h"`
	} `yaml:"server"`

	Logger logger.Config `yaml:"logger"`

	LogCollector struct {
		Enabled        bool          `yaml:"enabled"`
		Topic          string        `yaml:"topic" default:"vaultrisk.logs"`
		Interval       time.Duration `yaml:"interval" default:"30s"`
		CountThreshold int           `yaml:"count_threshold" default:"100"`
	} `yaml:"log_collector"`

	Indexer struct {
		URL     string            `yaml:"url" default:"https://blue-api.morpho.org/graphql" validate:"required,url"`
		Timeout time.Duration     `yaml:"timeout" default:"10s"`
		Retries int               `yaml:"retries" default:"2" validate:"gte=0,lte=5"`
		Headers map[string]string `yaml:"headers"`
	} `yaml:"indexer"`

	Chains []ChainConfig `yaml:"chains" validate:"required,min=1,dive"`

	// Vaults is the known-vault registry. Empty means any vault the indexer
	// knows is accepted.
	Vaults []VaultConfig `yaml:"vaults" validate:"dive"`

	Resolvers struct {
		Timeout        time.Duration `yaml:"timeout" default:"3s"`
		IRMCacheTTL    time.Duration `yaml:"irm_cache_ttl" default:"24h"`
		MaxConcurrency int           `yaml:"max_concurrency" default:"8" validate:"gte=1"`
	} `yaml:"resolvers"`

	Scoring ScoringConfig `yaml:"scoring"`

	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr" default:"localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		PoolSize int           `yaml:"pool_size" default:"10"`
		Timeout  time.Duration `yaml:"timeout" default:"3s"`
		Prefix   string        `yaml:"prefix" default:"vaultrisk"`
		// MemoryTTL bounds how long the in-process layer trusts a value.
		MemoryTTL time.Duration `yaml:"memory_ttl" default:"5m"`
	} `yaml:"redis"`

	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"vaultrisk.reports"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		AutoCreate   bool     `yaml:"auto_create_topics"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"vaultrisk-ingest"`
			Workers    int           `yaml:"workers" default:"4"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"vaultrisk.reports.dlq"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Addrs            []string      `yaml:"addrs"`
		Database         string        `yaml:"database" default:"vaultrisk"`
		Table            string        `yaml:"table" default:"market_risk_snapshots"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert" default:"true"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`

	Sinks struct {
		Backend string        `yaml:"backend" default:"none" validate:"oneof=none kafka clickhouse both"`
		Timeout time.Duration `yaml:"timeout" default:"10s"`
	} `yaml:"sinks"`

	Scheduler struct {
		Enabled     bool          `yaml:"enabled"`
		Interval    time.Duration `yaml:"interval" default:"5m"`
		Concurrency int           `yaml:"concurrency" default:"4" validate:"gte=1"`
	} `yaml:"scheduler"`

	Metrics struct {
		Enabled bool `yaml:"enabled" default:"true"`
	} `yaml:"metrics"`
}

type ChainConfig struct {
	ID           int64         `yaml:"id" validate:"gt=0"`
	RPCURL       string        `yaml:"rpc_url" validate:"required,url"`
	MaxBatchSize int           `yaml:"max_batch_size" default:"100" validate:"gte=1"`
	DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
}

type VaultConfig struct {
	ChainID int64  `yaml:"chain_id" validate:"gt=0"`
	Address string `yaml:"address" validate:"required,eth_addr"`
	Name    string `yaml:"name"`
}

// ScoringConfig overrides the scorer's built-in parameters. Zero values keep
// the built-in default.
type ScoringConfig struct {
	Weights struct {
		Headroom    float64 `yaml:"headroom"`
		Utilization float64 `yaml:"utilization"`
		Coverage    float64 `yaml:"coverage"`
		Oracle      float64 `yaml:"oracle"`
	} `yaml:"weights"`
	CoverageSaturation       float64       `yaml:"coverage_saturation"`
	OracleFresh              time.Duration `yaml:"oracle_fresh"`
	OracleStale              time.Duration `yaml:"oracle_stale"`
	OracleUnknownScore       *float64      `yaml:"oracle_unknown_score"`
	HeadroomNeutralScore     *float64      `yaml:"headroom_neutral_score"`
	DefaultTargetUtilization float64       `yaml:"default_target_utilization" validate:"gte=0,lte=1"`
	Grades                   []GradeBand   `yaml:"grades"`
	GradeFloor               string        `yaml:"grade_floor"`
}

type GradeBand struct {
	Grade string  `yaml:"grade" validate:"required"`
	Min   float64 `yaml:"min" validate:"gte=0,lte=100"`
}

var validate = validator.New()

// Load reads a YAML file, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env (if present) and the YAML file, then applies
// environment overrides before validation.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(environ()); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes and applies defaults without validating.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	for i := range c.Chains {
		if err := defaults.Set(&c.Chains[i]); err != nil {
			return nil, fmt.Errorf("config defaults: chain %d: %w", c.Chains[i].ID, err)
		}
	}
	return &c, nil
}

func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// applyEnv overrides selected fields. RPC_URL_<chainID> replaces or adds a
// chain endpoint.
func (c *Config) applyEnv(env map[string]string) error {
	getenv := func(k string) string { return env[k] }

	if v := getenv("APP_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
	if v := getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := getenv("INDEXER_URL"); v != "" {
		c.Indexer.URL = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = xutil.SplitCSV(v)
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("CLICKHOUSE_ADDRS"); v != "" {
		c.ClickHouse.Addrs = xutil.SplitCSV(v)
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("SINKS_BACKEND"); v != "" {
		c.Sinks.Backend = v
	}

	names := make([]string, 0, len(env))
	for name := range env {
		if strings.HasPrefix(name, "RPC_URL_") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		chainID, err := strconv.ParseInt(strings.TrimPrefix(name, "RPC_URL_"), 10, 64)
		if err != nil {
			return fmt.Errorf("%s: chain id must be numeric", name)
		}
		c.SetRPCURL(chainID, env[name])
	}
	return nil
}

// SetRPCURL replaces the endpoint of chainID, adding the chain if missing.
func (c *Config) SetRPCURL(chainID int64, url string) {
	for i := range c.Chains {
		if c.Chains[i].ID == chainID {
			c.Chains[i].RPCURL = url
			return
		}
	}
	ch := ChainConfig{ID: chainID, RPCURL: url}
	_ = defaults.Set(&ch)
	c.Chains = append(c.Chains, ch)
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	chains := make(map[int64]bool, len(c.Chains))
	for _, ch := range c.Chains {
		if chains[ch.ID] {
			return fmt.Errorf("chains: duplicate chain id %d", ch.ID)
		}
		chains[ch.ID] = true
	}
	for _, v := range c.Vaults {
		if !chains[v.ChainID] {
			return fmt.Errorf("vaults: %s references unconfigured chain %d", v.Address, v.ChainID)
		}
	}

	switch c.Sinks.Backend {
	case "kafka", "both":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("sinks.backend=%s requires kafka.brokers", c.Sinks.Backend)
		}
	}
	switch c.Sinks.Backend {
	case "clickhouse", "both":
		if len(c.ClickHouse.Addrs) == 0 {
			return fmt.Errorf("sinks.backend=%s requires clickhouse.addrs", c.Sinks.Backend)
		}
	}
	if c.LogCollector.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("log_collector requires kafka.brokers")
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}
	return nil
}

// VaultsByChain groups the known-vault registry.
func (c *Config) VaultsByChain() map[int64][]string {
	out := make(map[int64][]string)
	for _, v := range c.Vaults {
		out[v.ChainID] = append(out[v.ChainID], v.Address)
	}
	return out
}
