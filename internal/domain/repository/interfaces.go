package repository

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"VaultRisk/internal/domain/models"
)

// MarketSource lists a vault's markets in supply-queue order.
type MarketSource interface {
	ListVaultMarkets(ctx context.Context, vault common.Address, chainID int64) ([]models.MarketState, error)
}

// ReportPublisher emits scored vault reports to a message bus.
type ReportPublisher interface {
	Publish(ctx context.Context, r *models.VaultRiskReport) error
	PublishBatch(ctx context.Context, reports []*models.VaultRiskReport) error
	Close() error
}

// SnapshotStore persists per-market score rows for history queries.
type SnapshotStore interface {
	Store(ctx context.Context, r *models.VaultRiskReport) error
	StoreBatch(ctx context.Context, reports []*models.VaultRiskReport) error
	History(ctx context.Context, chainID int64, marketID string, from, to time.Time, limit int) ([]models.MarketSnapshot, error)
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordResolverCall(resolver, outcome string)
	RecordMarketScored(grade string)
	RecordReportDispatched(backend string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
