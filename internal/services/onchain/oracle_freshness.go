package onchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"VaultRisk/internal/domain/models"
	domrepo "VaultRisk/internal/domain/repository"
	domsvc "VaultRisk/internal/domain/service"
	"VaultRisk/pkg/evm"
	"VaultRisk/pkg/logger"
)

const oracleResolverName = "oracle"

var errNoFeeds = errors.New("oracle exposes no chainlink feeds")

// OracleFreshnessResolver reads the Chainlink feeds behind a Morpho
// ChainlinkOracleV2 and reports the oldest updatedAt among them.
type OracleFreshnessResolver struct {
	contractBase
	cfg *Config
}

func NewOracleFreshnessResolver(registry *evm.Registry, log *logger.Logger, m domrepo.Metrics, opts ...Option) *OracleFreshnessResolver {
	cfg := newConfig(opts)
	return &OracleFreshnessResolver{
		contractBase: newContractBase(registry, log, m, cfg.Timeout),
		cfg:          cfg,
	}
}

// Resolve never fails; unreadable oracles yield all-null data.
func (r *OracleFreshnessResolver) Resolve(ctx context.Context, chainID int64, oracle *common.Address) models.OracleTimestampData {
	if oracle == nil {
		r.metrics.RecordResolverCall(oracleResolverName, outcomeSkipped)
		return models.UnknownOracleData()
	}

	ctx, cancel := r.withDeadline(ctx)
	defer cancel()

	feed, updatedAt, err := r.read(ctx, chainID, *oracle)
	if err != nil {
		r.log.Warn("oracle freshness unavailable",
			logger.Int64("chain_id", chainID),
			logger.String("oracle", oracle.Hex()),
			logger.Error(err),
		)
		r.metrics.RecordResolverCall(oracleResolverName, outcomeFallback)
		return models.UnknownOracleData()
	}

	r.metrics.RecordResolverCall(oracleResolverName, outcomeOK)
	return models.NewOracleTimestampData(feed, updatedAt, r.cfg.Clock())
}

func (r *OracleFreshnessResolver) read(ctx context.Context, chainID int64, oracle common.Address) (common.Address, int64, error) {
	feeds, err := r.feeds(ctx, chainID, oracle)
	if err != nil {
		return common.Address{}, 0, err
	}

	calls := make([]evm.Call, len(feeds))
	for i, feed := range feeds {
		if calls[i], err = packCall(aggregatorABI, feed, "latestRoundData"); err != nil {
			return common.Address{}, 0, err
		}
	}
	rets, err := r.batch(ctx, chainID, calls)
	if err != nil {
		return common.Address{}, 0, fmt.Errorf("latestRoundData: %w", err)
	}

	var (
		oldestFeed common.Address
		oldest     int64
	)
	for i, ret := range rets {
		updatedAt, err := decodeUpdatedAt(ret)
		if err != nil {
			return common.Address{}, 0, fmt.Errorf("feed %s: %w", feeds[i].Hex(), err)
		}
		if i == 0 || updatedAt < oldest {
			oldest = updatedAt
			oldestFeed = feeds[i]
		}
	}
	return oldestFeed, oldest, nil
}

// feeds returns the non-zero feed addresses in getter order.
func (r *OracleFreshnessResolver) feeds(ctx context.Context, chainID int64, oracle common.Address) ([]common.Address, error) {
	calls := make([]evm.Call, len(oracleFeedMethods))
	for i, method := range oracleFeedMethods {
		call, err := packCall(oracleABI, oracle, method)
		if err != nil {
			return nil, err
		}
		calls[i] = call
	}

	rets, err := r.batch(ctx, chainID, calls)
	if err != nil {
		return nil, fmt.Errorf("feed getters: %w", err)
	}

	feeds := make([]common.Address, 0, len(rets))
	for i, ret := range rets {
		out, err := oracleABI.Unpack(oracleFeedMethods[i], ret)
		if err != nil {
			return nil, fmt.Errorf("unpack %s: %w", oracleFeedMethods[i], err)
		}
		addr, ok := out[0].(common.Address)
		if !ok {
			return nil, fmt.Errorf("unpack %s: unexpected type %T", oracleFeedMethods[i], out[0])
		}
		if addr != (common.Address{}) {
			feeds = append(feeds, addr)
		}
	}
	if len(feeds) == 0 {
		return nil, errNoFeeds
	}
	return feeds, nil
}

func decodeUpdatedAt(ret []byte) (int64, error) {
	out, err := aggregatorABI.Unpack("latestRoundData", ret)
	if err != nil {
		return 0, fmt.Errorf("unpack latestRoundData: %w", err)
	}
	updatedAt, ok := out[3].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unpack latestRoundData: unexpected type %T", out[3])
	}
	if updatedAt.Sign() <= 0 || !updatedAt.IsInt64() {
		return 0, fmt.Errorf("implausible updatedAt %s", updatedAt)
	}
	return updatedAt.Int64(), nil
}

var _ domsvc.OracleFreshnessResolver = (*OracleFreshnessResolver)(nil)
