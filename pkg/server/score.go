package server

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"VaultRisk/internal/domain/models"
	"VaultRisk/internal/usecase"
	applogger "VaultRisk/pkg/logger"
)

// ScoreRunner backs the one-shot score command.
type ScoreRunner struct {
	agg        *usecase.VaultRiskAggregator
	dispatcher *usecase.ReportDispatcher
	known      map[int64][]common.Address
	log        *applogger.Logger
}

func NewScoreRunner(agg *usecase.VaultRiskAggregator, dispatcher *usecase.ReportDispatcher, known map[int64][]common.Address, log *applogger.Logger) *ScoreRunner {
	return &ScoreRunner{agg: agg, dispatcher: dispatcher, known: known, log: log}
}

// ScoreOne scores a single vault and waits for its dispatch.
func (r *ScoreRunner) ScoreOne(ctx context.Context, chainID int64, vault common.Address) (*models.VaultRiskReport, error) {
	report, err := r.agg.Aggregate(ctx, vault, chainID)
	if err != nil {
		return nil, err
	}
	r.dispatcher.Wait()
	return report, nil
}

// ScoreKnown scores every configured vault, chains in ascending order.
// Per-vault failures are logged and joined.
func (r *ScoreRunner) ScoreKnown(ctx context.Context) ([]*models.VaultRiskReport, error) {
	chains := make([]int64, 0, len(r.known))
	for id := range r.known {
		chains = append(chains, id)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })

	var (
		all  []*models.VaultRiskReport
		errs []error
	)
	for _, chainID := range chains {
		reports, failures := r.agg.ScoreVaults(ctx, chainID, r.known[chainID])
		for _, rep := range reports {
			if rep != nil {
				all = append(all, rep)
			}
		}
		for vault, err := range failures {
			r.log.Warn("vault scoring failed",
				applogger.Int64("chain_id", chainID),
				applogger.String("vault", vault),
				applogger.Error(err),
			)
			errs = append(errs, fmt.Errorf("chain %d vault %s: %w", chainID, vault, err))
		}
	}
	r.dispatcher.Wait()
	return all, errors.Join(errs...)
}
