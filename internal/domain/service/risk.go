package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"VaultRisk/internal/domain/models"
)

// OracleFreshnessResolver reads when a market oracle last updated. It never
// fails: unreadable oracles yield models.UnknownOracleData.
type OracleFreshnessResolver interface {
	Resolve(ctx context.Context, chainID int64, oracle *common.Address) models.OracleTimestampData
}

// TargetUtilizationResolver reads an IRM's target utilization, falling back
// to the configured default on any failure.
type TargetUtilizationResolver interface {
	Resolve(ctx context.Context, chainID int64, irm *common.Address) models.TargetUtilization
}

// MarketScorer turns a non-idle market and its resolved facts into scores.
type MarketScorer interface {
	Score(m models.MarketState, oracle models.OracleTimestampData, target models.TargetUtilization) models.RiskScoreResult
}
