// Package onchain resolves oracle freshness and IRM parameters with eth_call.
package onchain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	domrepo "VaultRisk/internal/domain/repository"
	"VaultRisk/pkg/cache"
	"VaultRisk/pkg/evm"
	"VaultRisk/pkg/logger"
	"VaultRisk/pkg/metrics"
)

const (
	outcomeOK       = "ok"
	outcomeFallback = "fallback"
	outcomeCacheHit = "cache_hit"
	outcomeSkipped  = "skipped"
)

// Option configures a resolver.
type Option func(*Config)

// Config holds resolver settings shared by the oracle and IRM resolvers.
type Config struct {
	Timeout       time.Duration
	Clock         func() time.Time
	Cache         cache.Service
	CacheTTL      time.Duration
	DefaultTarget float64
}

// WithTimeout bounds every Resolve call.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.Clock = now
	}
}

// WithCache enables read-through caching of successful reads.
func WithCache(svc cache.Service, ttl time.Duration) Option {
	return func(c *Config) {
		c.Cache = svc
		c.CacheTTL = ttl
	}
}

// WithDefaultTarget sets the IRM fallback target utilization.
func WithDefaultTarget(v float64) Option {
	return func(c *Config) {
		c.DefaultTarget = v
	}
}

func newConfig(opts []Option) *Config {
	cfg := &Config{
		Timeout:       3 * time.Second,
		Clock:         time.Now,
		CacheTTL:      24 * time.Hour,
		DefaultTarget: 0.90,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return cfg
}

// contractBase packs calls, routes them to the chain's caller and unpacks
// single results.
type contractBase struct {
	registry *evm.Registry
	log      *logger.Logger
	metrics  domrepo.Metrics
	timeout  time.Duration
}

func newContractBase(registry *evm.Registry, log *logger.Logger, m domrepo.Metrics, timeout time.Duration) contractBase {
	if log == nil {
		log = logger.NewNop()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return contractBase{registry: registry, log: log, metrics: m, timeout: timeout}
}

// withDeadline bounds one Resolve call; every batch it makes shares the
// deadline.
func (b *contractBase) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

// batch runs calls in one round-trip. Any per-call error fails the batch.
func (b *contractBase) batch(ctx context.Context, chainID int64, calls []evm.Call) ([][]byte, error) {
	caller, err := b.registry.Caller(chainID)
	if err != nil {
		return nil, err
	}

	results, err := caller.BatchCall(ctx, calls)
	if err != nil {
		return nil, err
	}
	if len(results) != len(calls) {
		return nil, fmt.Errorf("batch returned %d results for %d calls", len(results), len(calls))
	}

	out := make([][]byte, len(results))
	for i, r := range results {
		if r.Err != nil {
			return nil, fmt.Errorf("call %s: %w", calls[i].To.Hex(), r.Err)
		}
		if len(r.Data) == 0 {
			return nil, fmt.Errorf("call %s: empty return data", calls[i].To.Hex())
		}
		out[i] = r.Data
	}
	return out, nil
}

func packCall(contract abi.ABI, to common.Address, method string) (evm.Call, error) {
	data, err := contract.Pack(method)
	if err != nil {
		return evm.Call{}, fmt.Errorf("pack %s: %w", method, err)
	}
	return evm.Call{To: to, Data: data}, nil
}
