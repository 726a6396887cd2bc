package onchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"VaultRisk/internal/domain/models"
	domrepo "VaultRisk/internal/domain/repository"
	domsvc "VaultRisk/internal/domain/service"
	"VaultRisk/pkg/cache"
	"VaultRisk/pkg/evm"
	"VaultRisk/pkg/fixedpoint"
	"VaultRisk/pkg/logger"
)

const irmResolverName = "irm"

// TargetUtilizationResolver reads TARGET_UTILIZATION from an adaptive
// curve IRM.
type TargetUtilizationResolver struct {
	contractBase
	cfg *Config
}

func NewTargetUtilizationResolver(registry *evm.Registry, log *logger.Logger, m domrepo.Metrics, opts ...Option) *TargetUtilizationResolver {
	cfg := newConfig(opts)
	return &TargetUtilizationResolver{
		contractBase: newContractBase(registry, log, m, cfg.Timeout),
		cfg:          cfg,
	}
}

// CacheKey is the cache key for an IRM's target.
func CacheKey(chainID int64, irm common.Address) string {
	return cache.ChainKey("irm", chainID, irm.Hex())
}

// Resolve never fails; any read problem yields the configured default with
// IsFallback set.
func (r *TargetUtilizationResolver) Resolve(ctx context.Context, chainID int64, irm *common.Address) models.TargetUtilization {
	fallback := models.TargetUtilization{Value: r.cfg.DefaultTarget, IsFallback: true}
	if irm == nil {
		r.metrics.RecordResolverCall(irmResolverName, outcomeSkipped)
		return fallback
	}

	key := CacheKey(chainID, *irm)
	if r.cfg.Cache != nil {
		var cached models.TargetUtilization
		err := r.cfg.Cache.Get(ctx, key, &cached)
		if err == nil && !cached.IsFallback {
			r.metrics.RecordResolverCall(irmResolverName, outcomeCacheHit)
			return cached
		}
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			r.log.Debug("irm cache read failed", logger.String("key", key), logger.Error(err))
		}
	}

	readCtx, cancel := r.withDeadline(ctx)
	value, err := r.read(readCtx, chainID, *irm)
	cancel()
	if err != nil {
		r.log.Warn("irm target utilization unavailable, using default",
			logger.Int64("chain_id", chainID),
			logger.String("irm", irm.Hex()),
			logger.Float64("default", r.cfg.DefaultTarget),
			logger.Error(err),
		)
		r.metrics.RecordResolverCall(irmResolverName, outcomeFallback)
		return fallback
	}

	result := models.TargetUtilization{Value: value}
	if r.cfg.Cache != nil {
		if err := r.cfg.Cache.Set(ctx, key, result, r.cfg.CacheTTL); err != nil {
			r.log.Debug("irm cache write failed", logger.String("key", key), logger.Error(err))
		}
	}
	r.metrics.RecordResolverCall(irmResolverName, outcomeOK)
	return result
}

func (r *TargetUtilizationResolver) read(ctx context.Context, chainID int64, irm common.Address) (float64, error) {
	call, err := packCall(irmABI, irm, "TARGET_UTILIZATION")
	if err != nil {
		return 0, err
	}
	rets, err := r.batch(ctx, chainID, []evm.Call{call})
	if err != nil {
		return 0, err
	}

	out, err := irmABI.Unpack("TARGET_UTILIZATION", rets[0])
	if err != nil {
		return 0, fmt.Errorf("unpack TARGET_UTILIZATION: %w", err)
	}
	raw, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unpack TARGET_UTILIZATION: unexpected type %T", out[0])
	}

	wad := sdkmath.NewIntFromBigInt(raw)
	return fixedpoint.DecToFloat(fixedpoint.ClampDec01(fixedpoint.WadToDec(wad))), nil
}

var _ domsvc.TargetUtilizationResolver = (*TargetUtilizationResolver)(nil)
