package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"VaultRisk/internal/domain/models"
	domrepo "VaultRisk/internal/domain/repository"
	pkgkafka "VaultRisk/pkg/kafka"
)

// EventProducer is satisfied by *pkgkafka.Producer.
type EventProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// KafkaReportPublisher emits one event per report keyed by vault address,
// so a vault's reports stay ordered within a partition.
type KafkaReportPublisher struct {
	producer EventProducer
	topic    string
	now      func() time.Time
}

func NewKafkaReportPublisher(producer EventProducer, topic string) *KafkaReportPublisher {
	return &KafkaReportPublisher{producer: producer, topic: topic, now: time.Now}
}

func (p *KafkaReportPublisher) event(r *models.VaultRiskReport) models.ReportEvent {
	return models.ReportEvent{
		EventID:   uuid.NewString(),
		EventType: models.EventTypeVaultRiskReport,
		EmittedAt: p.now().UTC(),
		Report:    r,
	}
}

func (p *KafkaReportPublisher) Publish(ctx context.Context, r *models.VaultRiskReport) error {
	return p.PublishBatch(ctx, []*models.VaultRiskReport{r})
}

func (p *KafkaReportPublisher) PublishBatch(ctx context.Context, reports []*models.VaultRiskReport) error {
	if len(reports) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(reports))
	for _, r := range reports {
		if r == nil {
			continue
		}
		ev := p.event(r)
		msgs = append(msgs, pkgkafka.Message{
			Key:     []byte(r.VaultAddress),
			Value:   ev,
			Headers: map[string]string{"event_type": ev.EventType, "event_id": ev.EventID},
		})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// Close is a no-op; the producer is shared with the log collector and closed
// by its owner.
func (p *KafkaReportPublisher) Close() error { return nil }

var (
	_ domrepo.ReportPublisher = (*KafkaReportPublisher)(nil)
	_ EventProducer           = (*pkgkafka.Producer)(nil)
)
