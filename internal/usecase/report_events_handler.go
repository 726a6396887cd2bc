package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"VaultRisk/internal/domain/models"
	domrepo "VaultRisk/internal/domain/repository"
	pkgkafka "VaultRisk/pkg/kafka"
	"VaultRisk/pkg/logger"
)

// ErrMalformedEvent is returned for payloads that can never be stored; the
// consumer sends them to the DLQ after its retries.
var ErrMalformedEvent = errors.New("malformed report event")

// ReportEventsHandler consumes report events and writes their snapshots to
// storage.
type ReportEventsHandler struct {
	topic   string
	store   domrepo.SnapshotStore
	metrics domrepo.Metrics
	log     *logger.Logger
	now     func() time.Time
}

func NewReportEventsHandler(topic string, store domrepo.SnapshotStore, m domrepo.Metrics, log *logger.Logger) *ReportEventsHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &ReportEventsHandler{topic: topic, store: store, metrics: m, log: log, now: time.Now}
}

func (h *ReportEventsHandler) Topic() string { return h.topic }

func (h *ReportEventsHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.ReportEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.EventType != models.EventTypeVaultRiskReport {
		h.log.Debug("skipping event", logger.String("event_type", ev.EventType), logger.String("event_id", ev.EventID))
		return nil
	}
	if ev.Report == nil || ev.Report.VaultAddress == "" || ev.Report.ChainID <= 0 {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("%w: event %s has no report", ErrMalformedEvent, ev.EventID)
	}

	if !ev.EmittedAt.IsZero() {
		h.metrics.RecordLatency("ingest_e2e_seconds", h.now().Sub(ev.EmittedAt).Seconds())
	}

	start := time.Now()
	err := h.store.Store(ctx, ev.Report)
	h.metrics.RecordLatency("snapshot_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordReportDispatched("ingest")
	return nil
}

var _ pkgkafka.MessageHandler = (*ReportEventsHandler)(nil)
