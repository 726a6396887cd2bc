package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VaultRisk/internal/domain/models"
	"VaultRisk/pkg/metrics"
)

func TestReportEventsHandlerStoresReport(t *testing.T) {
	store := &fakeStore{}
	h := NewReportEventsHandler("vaultrisk.reports", store, metrics.Nop{}, nil)
	assert.Equal(t, "vaultrisk.reports", h.Topic())

	b, err := json.Marshal(models.ReportEvent{
		EventID:   "e-1",
		EventType: models.EventTypeVaultRiskReport,
		EmittedAt: time.Now().UTC(),
		Report:    &models.VaultRiskReport{VaultAddress: "0xabc", ChainID: 1},
	})
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), b))
	require.Equal(t, 1, store.count())
	assert.Equal(t, "0xabc", store.stored[0].VaultAddress)
}

func TestReportEventsHandlerRejectsMalformed(t *testing.T) {
	store := &fakeStore{}
	h := NewReportEventsHandler("t", store, metrics.Nop{}, nil)

	err := h.Handle(context.Background(), []byte("{not json"))
	assert.ErrorIs(t, err, ErrMalformedEvent)

	b, _ := json.Marshal(models.ReportEvent{EventID: "e-2", EventType: models.EventTypeVaultRiskReport})
	err = h.Handle(context.Background(), b)
	assert.ErrorIs(t, err, ErrMalformedEvent)
	assert.Zero(t, store.count())
}

func TestReportEventsHandlerSkipsOtherEvents(t *testing.T) {
	store := &fakeStore{}
	h := NewReportEventsHandler("t", store, metrics.Nop{}, nil)
	b, _ := json.Marshal(models.ReportEvent{EventID: "e-3", EventType: "log_batch"})
	require.NoError(t, h.Handle(context.Background(), b))
	assert.Zero(t, store.count())
}

func TestReportEventsHandlerPropagatesStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("clickhouse down")}
	h := NewReportEventsHandler("t", store, metrics.Nop{}, nil)
	b, _ := json.Marshal(models.ReportEvent{
		EventID:   "e-4",
		EventType: models.EventTypeVaultRiskReport,
		Report:    &models.VaultRiskReport{VaultAddress: "0xabc", ChainID: 1},
	})
	assert.EqualError(t, h.Handle(context.Background(), b), "clickhouse down")
}
