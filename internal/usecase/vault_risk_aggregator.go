package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"VaultRisk/internal/domain/models"
	drepo "VaultRisk/internal/domain/repository"
	domsvc "VaultRisk/internal/domain/service"
	"VaultRisk/internal/services/risk"
	"VaultRisk/pkg/logger"
	"VaultRisk/pkg/metrics"
)

// Dispatcher receives finished reports. *ReportDispatcher satisfies it.
type Dispatcher interface {
	Dispatch(r *models.VaultRiskReport)
}

// AggregatorOption configures VaultRiskAggregator.
type AggregatorOption func(*VaultRiskAggregator)

// WithKnownVaults restricts scoring to the given vaults per chain. An empty
// registry accepts any vault.
func WithKnownVaults(known map[int64][]common.Address) AggregatorOption {
	return func(a *VaultRiskAggregator) {
		if len(known) == 0 {
			return
		}
		a.known = make(map[int64]map[common.Address]struct{}, len(known))
		for chainID, vaults := range known {
			set := make(map[common.Address]struct{}, len(vaults))
			for _, v := range vaults {
				set[v] = struct{}{}
			}
			a.known[chainID] = set
		}
	}
}

// WithMaxConcurrency caps markets resolved at once.
func WithMaxConcurrency(n int) AggregatorOption {
	return func(a *VaultRiskAggregator) {
		if n > 0 {
			a.maxConcurrency = n
		}
	}
}

// WithVaultConcurrency caps vaults aggregated at once by ScoreVaults.
func WithVaultConcurrency(n int) AggregatorOption {
	return func(a *VaultRiskAggregator) {
		if n > 0 {
			a.vaultConcurrency = n
		}
	}
}

// WithDispatcher hands every report to d after assembly.
func WithDispatcher(d Dispatcher) AggregatorOption {
	return func(a *VaultRiskAggregator) {
		a.dispatcher = d
	}
}

// WithAggregatorClock overrides time.Now for GeneratedAt.
func WithAggregatorClock(now func() time.Time) AggregatorOption {
	return func(a *VaultRiskAggregator) {
		a.now = now
	}
}

// VaultRiskAggregator scores every market a vault allocates to.
type VaultRiskAggregator struct {
	source           drepo.MarketSource
	oracle           domsvc.OracleFreshnessResolver
	irm              domsvc.TargetUtilizationResolver
	scorer           domsvc.MarketScorer
	metrics          drepo.Metrics
	log              *logger.Logger
	dispatcher       Dispatcher
	known            map[int64]map[common.Address]struct{}
	maxConcurrency   int
	vaultConcurrency int
	now              func() time.Time
}

func NewVaultRiskAggregator(
	source drepo.MarketSource,
	oracle domsvc.OracleFreshnessResolver,
	irm domsvc.TargetUtilizationResolver,
	scorer domsvc.MarketScorer,
	m drepo.Metrics,
	log *logger.Logger,
	opts ...AggregatorOption,
) *VaultRiskAggregator {
	a := &VaultRiskAggregator{
		source:           source,
		oracle:           oracle,
		irm:              irm,
		scorer:           scorer,
		metrics:          m,
		log:              log,
		maxConcurrency:   8,
		vaultConcurrency: 4,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.NewNop()
	}
	if a.metrics == nil {
		a.metrics = metrics.Nop{}
	}
	return a
}

// resolved holds one market's on-chain facts.
type resolved struct {
	oracle models.OracleTimestampData
	target models.TargetUtilization
}

// Aggregate builds the vault report. Entries keep the listing order; idle
// markets are included with nil scores.
func (a *VaultRiskAggregator) Aggregate(ctx context.Context, vault common.Address, chainID int64) (*models.VaultRiskReport, error) {
	start := time.Now()
	defer func() { a.metrics.RecordLatency("aggregate", time.Since(start).Seconds()) }()

	if chainID <= 0 {
		return nil, fmt.Errorf("%w: chain id %d", models.ErrInvalidInput, chainID)
	}
	if vault == (common.Address{}) {
		return nil, fmt.Errorf("%w: zero vault address", models.ErrInvalidInput)
	}
	if !a.isKnown(vault, chainID) {
		return nil, fmt.Errorf("%w: %s on chain %d", models.ErrVaultNotFound, vault.Hex(), chainID)
	}

	markets, err := a.source.ListVaultMarkets(ctx, vault, chainID)
	if err != nil {
		a.metrics.RecordError("list_markets")
		if errors.Is(err, models.ErrVaultNotFound) || errors.Is(err, models.ErrUpstreamUnavailable) {
			return nil, fmt.Errorf("list markets for %s: %w", vault.Hex(), err)
		}
		return nil, fmt.Errorf("%w: list markets for %s: %w", models.ErrUpstreamUnavailable, vault.Hex(), err)
	}
	for _, m := range markets {
		if err := m.Validate(); err != nil {
			a.metrics.RecordError("invalid_market")
			return nil, err
		}
	}

	facts := a.resolve(ctx, chainID, markets)
	// resolvers fall back when ctx ends; those rows must not reach the sinks
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", vault.Hex(), err)
	}

	report := &models.VaultRiskReport{
		VaultAddress: strings.ToLower(vault.Hex()),
		ChainID:      chainID,
		GeneratedAt:  a.now().UTC(),
		Markets:      make([]models.MarketRiskEntry, len(markets)),
	}
	for i, m := range markets {
		entry := models.MarketRiskEntry{Market: m}
		if f := facts[i]; f == nil {
			entry.Idle = true
		} else {
			scores := a.scorer.Score(m, f.oracle, f.target)
			oracle, target := f.oracle, f.target
			entry.Scores = &scores
			entry.Oracle = &oracle
			entry.TargetUtilization = &target
			a.metrics.RecordMarketScored(string(scores.Grade))
		}
		report.Markets[i] = entry
	}

	a.log.Debug("vault scored",
		logger.String("vault", report.VaultAddress),
		logger.Int64("chain_id", chainID),
		logger.Int("markets", len(markets)),
		logger.Int("scored", report.ScoredCount()),
		logger.Duration("duration_ms", time.Since(start)),
	)

	if a.dispatcher != nil {
		a.dispatcher.Dispatch(report)
	}
	return report, nil
}

// resolve fetches oracle and IRM facts for every non-idle market. Slot i
// belongs to markets[i]; idle markets keep a nil slot and never reach the
// resolvers. Resolvers do not fail, so the group never cancels early.
func (a *VaultRiskAggregator) resolve(ctx context.Context, chainID int64, markets []models.MarketState) []*resolved {
	slots := make([]*resolved, len(markets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxConcurrency)

	for i, m := range markets {
		if risk.IsIdle(m) {
			continue
		}
		g.Go(func() error {
			var (
				res   resolved
				inner errgroup.Group
			)
			inner.Go(func() error {
				res.oracle = a.oracle.Resolve(gctx, chainID, m.OracleAddress)
				return nil
			})
			inner.Go(func() error {
				res.target = a.irm.Resolve(gctx, chainID, m.IRMAddress)
				return nil
			})
			_ = inner.Wait()
			slots[i] = &res
			return nil
		})
	}
	_ = g.Wait()
	return slots
}

func (a *VaultRiskAggregator) isKnown(vault common.Address, chainID int64) bool {
	if a.known == nil {
		return true
	}
	set, ok := a.known[chainID]
	if !ok {
		return false
	}
	_, ok = set[vault]
	return ok
}

// ScoreVaults aggregates several vaults with bounded concurrency. Reports
// keep the input order; a failing vault is reported in the error map and
// does not stop the rest.
func (a *VaultRiskAggregator) ScoreVaults(ctx context.Context, chainID int64, vaults []common.Address) ([]*models.VaultRiskReport, map[string]error) {
	slots := make([]*models.VaultRiskReport, len(vaults))
	errs := make([]error, len(vaults))

	var g errgroup.Group
	g.SetLimit(a.vaultConcurrency)
	for i, v := range vaults {
		g.Go(func() error {
			slots[i], errs[i] = a.Aggregate(ctx, v, chainID)
			return nil
		})
	}
	_ = g.Wait()

	reports := make([]*models.VaultRiskReport, 0, len(vaults))
	var failed map[string]error
	for i, err := range errs {
		if err != nil {
			if failed == nil {
				failed = make(map[string]error)
			}
			failed[vaults[i].Hex()] = err
			continue
		}
		reports = append(reports, slots[i])
	}
	return reports, failed
}

// KnownVaults lists the configured vaults for chainID.
func (a *VaultRiskAggregator) KnownVaults(chainID int64) []common.Address {
	set := a.known[chainID]
	out := make([]common.Address, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	return out
}

var _ Dispatcher = (*ReportDispatcher)(nil)
