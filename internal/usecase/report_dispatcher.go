package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"VaultRisk/internal/domain/models"
	drepo "VaultRisk/internal/domain/repository"
	"VaultRisk/pkg/logger"
	"VaultRisk/pkg/metrics"
)

// Sink backends.
const (
	BackendNone       = "none"
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
	BackendBoth       = "both"
)

// ReportDispatcher routes scored reports to the configured backend.
type ReportDispatcher struct {
	pub     drepo.ReportPublisher
	store   drepo.SnapshotStore
	metrics drepo.Metrics
	log     *logger.Logger
	backend string
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewReportDispatcher creates a dispatcher. pub and store may be nil when
// the backend does not use them.
func NewReportDispatcher(
	pub drepo.ReportPublisher,
	store drepo.SnapshotStore,
	m drepo.Metrics,
	log *logger.Logger,
	backend string,
	timeout time.Duration,
) (*ReportDispatcher, error) {
	if backend == "" {
		backend = BackendNone
	}
	switch backend {
	case BackendNone:
	case BackendKafka:
		if pub == nil {
			return nil, fmt.Errorf("backend %s: publisher not configured", backend)
		}
	case BackendClickHouse:
		if store == nil {
			return nil, fmt.Errorf("backend %s: snapshot store not configured", backend)
		}
	case BackendBoth:
		if pub == nil || store == nil {
			return nil, fmt.Errorf("backend %s: publisher and snapshot store required", backend)
		}
	default:
		return nil, fmt.Errorf("unknown backend: %s", backend)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &ReportDispatcher{
		pub:     pub,
		store:   store,
		metrics: m,
		log:     log,
		backend: backend,
		timeout: timeout,
	}, nil
}

func (d *ReportDispatcher) Backend() string { return d.backend }

// Dispatch sends r in the background. Failures are logged and counted; the
// caller never waits on the sinks.
func (d *ReportDispatcher) Dispatch(r *models.VaultRiskReport) {
	if d.backend == BackendNone || r == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.DispatchSync(ctx, r); err != nil {
			d.log.Error("report dispatch failed",
				logger.String("backend", d.backend),
				logger.String("vault", r.VaultAddress),
				logger.Int64("chain_id", r.ChainID),
				logger.Error(err),
			)
		}
	}()
}

// DispatchSync sends r and waits. With BackendBoth both sinks are tried and
// their errors joined.
func (d *ReportDispatcher) DispatchSync(ctx context.Context, r *models.VaultRiskReport) error {
	if r == nil {
		return fmt.Errorf("report is nil")
	}

	start := time.Now()
	var errs []error

	if d.backend == BackendKafka || d.backend == BackendBoth {
		if err := d.pub.Publish(ctx, r); err != nil {
			d.metrics.RecordError("dispatch_kafka")
			errs = append(errs, fmt.Errorf("kafka: %w", err))
		} else {
			d.metrics.RecordReportDispatched(BackendKafka)
		}
	}
	if d.backend == BackendClickHouse || d.backend == BackendBoth {
		if err := d.store.Store(ctx, r); err != nil {
			d.metrics.RecordError("dispatch_clickhouse")
			errs = append(errs, fmt.Errorf("clickhouse: %w", err))
		} else {
			d.metrics.RecordReportDispatched(BackendClickHouse)
		}
	}

	d.metrics.RecordLatency("dispatch", time.Since(start).Seconds())
	return errors.Join(errs...)
}

// DispatchBatch sends several reports at once; used by the score command.
func (d *ReportDispatcher) DispatchBatch(ctx context.Context, reports []*models.VaultRiskReport) error {
	if len(reports) == 0 || d.backend == BackendNone {
		return nil
	}

	start := time.Now()
	var errs []error

	if d.backend == BackendKafka || d.backend == BackendBoth {
		if err := d.pub.PublishBatch(ctx, reports); err != nil {
			d.metrics.RecordError("dispatch_batch_kafka")
			errs = append(errs, fmt.Errorf("kafka: %w", err))
		} else {
			for range reports {
				d.metrics.RecordReportDispatched(BackendKafka)
			}
		}
	}
	if d.backend == BackendClickHouse || d.backend == BackendBoth {
		if err := d.store.StoreBatch(ctx, reports); err != nil {
			d.metrics.RecordError("dispatch_batch_clickhouse")
			errs = append(errs, fmt.Errorf("clickhouse: %w", err))
		} else {
			for range reports {
				d.metrics.RecordReportDispatched(BackendClickHouse)
			}
		}
	}

	d.metrics.RecordLatency("dispatch_batch", time.Since(start).Seconds())
	return errors.Join(errs...)
}

// Wait blocks until background dispatches finish.
func (d *ReportDispatcher) Wait() { d.wg.Wait() }

// Close waits for in-flight dispatches and closes the sinks.
func (d *ReportDispatcher) Close() {
	d.wg.Wait()
	if d.pub != nil {
		_ = d.pub.Close()
	}
	if d.store != nil {
		_ = d.store.Close()
	}
}
