package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	drepo "VaultRisk/internal/domain/repository"
	"VaultRisk/pkg/logger"
	"VaultRisk/pkg/metrics"
)

// ScoreScheduler re-scores the configured vaults on a fixed interval so the
// sinks accumulate history without external traffic.
type ScoreScheduler struct {
	agg      *VaultRiskAggregator
	vaults   map[int64][]common.Address
	interval time.Duration
	metrics  drepo.Metrics
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastRun time.Time
}

// NewScoreScheduler returns nil when interval is not positive or there is
// nothing to score.
func NewScoreScheduler(agg *VaultRiskAggregator, vaults map[int64][]common.Address, interval time.Duration, m drepo.Metrics, log *logger.Logger) *ScoreScheduler {
	if interval <= 0 || len(vaults) == 0 {
		return nil
	}
	if m == nil {
		m = metrics.Nop{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ScoreScheduler{agg: agg, vaults: vaults, interval: interval, metrics: m, log: log}
}

// Start runs one pass immediately and then one per interval until Shutdown
// or ctx is done.
func (s *ScoreScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(ctx)
}

func (s *ScoreScheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce scores every configured vault once.
func (s *ScoreScheduler) RunOnce(ctx context.Context) {
	start := time.Now()
	scored := 0
	for chainID, vaults := range s.vaults {
		reports, failed := s.agg.ScoreVaults(ctx, chainID, vaults)
		scored += len(reports)
		for vault, err := range failed {
			if errors.Is(err, context.Canceled) {
				continue
			}
			s.metrics.RecordError("scheduled_score")
			s.log.Warn("scheduled scoring failed",
				logger.Int64("chain_id", chainID),
				logger.String("vault", vault),
				logger.Error(err),
			)
		}
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()

	s.metrics.RecordLatency("scheduled_pass", time.Since(start).Seconds())
	s.log.Info("scheduled scoring pass done",
		logger.Int("vaults_scored", scored),
		logger.Duration("duration_ms", time.Since(start)),
	)
}

// LastRun is the completion time of the latest pass.
func (s *ScoreScheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// Shutdown stops the loop and waits for the current pass.
func (s *ScoreScheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
