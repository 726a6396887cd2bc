package di

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VaultRisk/internal/domain/models"
	"VaultRisk/internal/services/risk"
	"VaultRisk/internal/usecase"
	"VaultRisk/pkg/config"
)

func TestProvideScoringParamsDefaults(t *testing.T) {
	p, err := ProvideScoringParams(&config.Config{})
	require.NoError(t, err)
	assert.Equal(t, risk.DefaultScoringParams(), p)
}

func TestProvideScoringParamsOverlay(t *testing.T) {
	cfg := &config.Config{}
	cfg.Scoring.Weights.Headroom = 0.4
	cfg.Scoring.Weights.Utilization = 0.2
	cfg.Scoring.Weights.Coverage = 0.2
	cfg.Scoring.Weights.Oracle = 0.2
	cfg.Scoring.OracleStale = 12 * time.Hour
	zero := 0.0
	cfg.Scoring.OracleUnknownScore = &zero
	cfg.Scoring.Grades = []config.GradeBand{{Grade: "PASS", Min: 60}}
	cfg.Scoring.GradeFloor = "FAIL"

	p, err := ProvideScoringParams(cfg)
	require.NoError(t, err)
	assert.Equal(t, 0.4, p.Weights.Headroom)
	assert.Equal(t, 12*time.Hour, p.OracleStale)
	assert.Equal(t, time.Hour, p.OracleFresh)
	assert.Equal(t, 0.0, p.OracleUnknownScore)
	assert.Equal(t, models.Grade("FAIL"), p.Grades.Floor)
	assert.Len(t, p.Grades.Bands, 1)
}

func TestProvideScoringParamsRejectsBadWeights(t *testing.T) {
	cfg := &config.Config{}
	cfg.Scoring.Weights.Headroom = 0.5
	cfg.Scoring.Weights.Oracle = 0.2

	_, err := ProvideScoringParams(cfg)
	assert.ErrorIs(t, err, risk.ErrInvalidParams)
}

func TestProvideKnownVaults(t *testing.T) {
	cfg := &config.Config{Vaults: []config.VaultConfig{
		{ChainID: 1, Address: "0xbeef01735c132ada46aa9aa4c54623caa92a64cb"},
		{ChainID: 8453, Address: "0xc1256ae5ff1cf2719d4937adb3bbccab2e00a2ca"},
		{ChainID: 1, Address: "0x8eb67a509616cd6a7c1b3c8c21d48ff57df3d458"},
	}}

	known := ProvideKnownVaults(cfg)
	require.Len(t, known, 2)
	assert.Equal(t, []common.Address{
		common.HexToAddress("0xbeef01735c132ada46aa9aa4c54623caa92a64cb"),
		common.HexToAddress("0x8eb67a509616cd6a7c1b3c8c21d48ff57df3d458"),
	}, known[1])
	assert.Len(t, known[8453], 1)
}

func TestOptionalInfrastructureIsNilWhenDisabled(t *testing.T) {
	cfg := &config.Config{}
	cfg.Sinks.Backend = usecase.BackendNone

	producer, cleanup, err := ProvideKafkaProducer(cfg)
	require.NoError(t, err)
	cleanup()
	assert.Nil(t, producer)
	assert.Nil(t, ProvideReportPublisher(producer, cfg))

	client, cleanup, err := ProvideClickHouseClient(cfg, nil)
	require.NoError(t, err)
	cleanup()
	assert.Nil(t, client)

	store, err := ProvideSnapshotStore(client, cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, store)

	assert.Nil(t, ProvideScoreScheduler(nil, nil, nil, nil, cfg))
}
