package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VaultRisk/internal/domain/models"
	"VaultRisk/internal/services/risk"
)

var (
	testVault = common.HexToAddress("0xBEEF01735c132Ada46AA9aA4c54623cAA92A64CB")
	testNow   = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

type fakeSource struct {
	markets []models.MarketState
	err     error
	calls   int32
}

func (f *fakeSource) ListVaultMarkets(context.Context, common.Address, int64) ([]models.MarketState, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.markets, f.err
}

// fakeOracle returns a fixed age, sleeps per-address and counts calls.
// Addresses in unreadable behave like a resolver whose own timeout fired.
type fakeOracle struct {
	mu         sync.Mutex
	calls      map[common.Address]int
	delays     map[common.Address]time.Duration
	unreadable map[common.Address]bool
	age        int64
	order      []common.Address
}

func newFakeOracle(age int64) *fakeOracle {
	return &fakeOracle{
		calls:      map[common.Address]int{},
		delays:     map[common.Address]time.Duration{},
		unreadable: map[common.Address]bool{},
		age:        age,
	}
}

func (f *fakeOracle) Resolve(ctx context.Context, _ int64, oracle *common.Address) models.OracleTimestampData {
	if oracle == nil {
		return models.UnknownOracleData()
	}
	f.mu.Lock()
	f.calls[*oracle]++
	d := f.delays[*oracle]
	unreadable := f.unreadable[*oracle]
	f.mu.Unlock()

	if unreadable {
		return models.UnknownOracleData()
	}

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return models.UnknownOracleData()
		}
	}
	f.mu.Lock()
	f.order = append(f.order, *oracle)
	f.mu.Unlock()
	return models.NewOracleTimestampData(*oracle, testNow.Unix()-f.age, testNow)
}

func (f *fakeOracle) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type fakeIRM struct {
	calls int32
	value models.TargetUtilization
}

func (f *fakeIRM) Resolve(context.Context, int64, *common.Address) models.TargetUtilization {
	atomic.AddInt32(&f.calls, 1)
	return f.value
}

type captureDispatcher struct {
	mu      sync.Mutex
	reports []*models.VaultRiskReport
}

func (d *captureDispatcher) Dispatch(r *models.VaultRiskReport) {
	d.mu.Lock()
	d.reports = append(d.reports, r)
	d.mu.Unlock()
}

func activeMarket(id string, oracle common.Address) models.MarketState {
	irm := common.HexToAddress("0x870aC11D48B15DB9a138Cf899d20F13F79Ba00BC")
	return models.MarketState{
		MarketID:            id,
		LoanAsset:           models.Asset{Symbol: "USDC", Decimals: 6},
		CollateralAsset:     &models.Asset{Symbol: "WETH", Decimals: 18},
		LLTV:                sdkmath.NewIntWithDecimal(86, 16),
		OracleAddress:       &oracle,
		IRMAddress:          &irm,
		SupplyAssetsUSD:     1_000_000,
		BorrowAssetsUSD:     900_000,
		CollateralAssetsUSD: 1_050_000,
	}
}

func idleMarket(id string) models.MarketState {
	return models.MarketState{
		MarketID:  id,
		LoanAsset: models.Asset{Symbol: "USDC", Decimals: 6},
		LLTV:      sdkmath.ZeroInt(),
	}
}

func newTestAggregator(src *fakeSource, oracle *fakeOracle, irm *fakeIRM, opts ...AggregatorOption) *VaultRiskAggregator {
	opts = append([]AggregatorOption{WithAggregatorClock(func() time.Time { return testNow })}, opts...)
	return NewVaultRiskAggregator(src, oracle, irm, risk.NewScorer(risk.DefaultScoringParams()), nil, nil, opts...)
}

func TestAggregateIdleMarketInMiddle(t *testing.T) {
	oracleA := common.HexToAddress("0xa1")
	oracleC := common.HexToAddress("0xc1")
	src := &fakeSource{markets: []models.MarketState{
		activeMarket("0x01", oracleA),
		idleMarket("0x02"),
		activeMarket("0x03", oracleC),
	}}
	oracle := newFakeOracle(1_800)
	irm := &fakeIRM{value: models.TargetUtilization{Value: 0.9}}
	disp := &captureDispatcher{}

	report, err := newTestAggregator(src, oracle, irm, WithDispatcher(disp)).
		Aggregate(context.Background(), testVault, 1)
	require.NoError(t, err)

	require.Len(t, report.Markets, 3)
	assert.Equal(t, "0x01", report.Markets[0].Market.MarketID)
	assert.Equal(t, "0x02", report.Markets[1].Market.MarketID)
	assert.Equal(t, "0x03", report.Markets[2].Market.MarketID)

	assert.NotNil(t, report.Markets[0].Scores)
	assert.True(t, report.Markets[1].Idle)
	assert.Nil(t, report.Markets[1].Scores)
	assert.Nil(t, report.Markets[1].Oracle)
	assert.NotNil(t, report.Markets[2].Scores)
	assert.Equal(t, 2, report.ScoredCount())

	// idle markets never reach the resolvers
	assert.Equal(t, 2, oracle.total())
	assert.Equal(t, int32(2), atomic.LoadInt32(&irm.calls))

	assert.Equal(t, "0xbeef01735c132ada46aa9aa4c54623caa92a64cb", report.VaultAddress)
	assert.Equal(t, int64(1), report.ChainID)
	assert.Equal(t, testNow, report.GeneratedAt)
	require.Len(t, disp.reports, 1)
	assert.Same(t, report, disp.reports[0])
}

func TestAggregateKeepsOrderWhenFirstMarketIsSlow(t *testing.T) {
	slow := common.HexToAddress("0x51")
	fast := common.HexToAddress("0xfa")
	src := &fakeSource{markets: []models.MarketState{
		activeMarket("0x01", slow),
		activeMarket("0x02", fast),
	}}
	oracle := newFakeOracle(60)
	oracle.delays[slow] = 50 * time.Millisecond
	irm := &fakeIRM{value: models.TargetUtilization{Value: 0.9}}

	report, err := newTestAggregator(src, oracle, irm, WithMaxConcurrency(4)).
		Aggregate(context.Background(), testVault, 1)
	require.NoError(t, err)

	// the fast market resolved first but the report keeps listing order
	require.Equal(t, []common.Address{fast, slow}, oracle.order)
	assert.Equal(t, "0x01", report.Markets[0].Market.MarketID)
	assert.Equal(t, slow, *report.Markets[0].Oracle.ChainlinkAddress)
	assert.Equal(t, fast, *report.Markets[1].Oracle.ChainlinkAddress)
}

func TestAggregateUnknownOracleStillScores(t *testing.T) {
	src := &fakeSource{markets: []models.MarketState{activeMarket("0x01", common.HexToAddress("0xa1"))}}
	oracle := newFakeOracle(0)
	oracle.unreadable[common.HexToAddress("0xa1")] = true
	irm := &fakeIRM{value: models.TargetUtilization{Value: 0.9, IsFallback: true}}
	disp := &captureDispatcher{}

	report, err := newTestAggregator(src, oracle, irm, WithDispatcher(disp)).
		Aggregate(context.Background(), testVault, 1)
	require.NoError(t, err)
	require.Len(t, disp.reports, 1)

	entry := report.Markets[0]
	require.NotNil(t, entry.Scores)
	assert.False(t, entry.Oracle.Known())
	assert.Equal(t, risk.DefaultScoringParams().OracleUnknownScore, entry.Scores.OracleScore)
	assert.True(t, entry.TargetUtilization.IsFallback)
}

func TestAggregateCancelledDispatchesNothing(t *testing.T) {
	slow := common.HexToAddress("0xa1")
	src := &fakeSource{markets: []models.MarketState{activeMarket("0x01", slow)}}
	oracle := newFakeOracle(0)
	oracle.delays[slow] = time.Second
	disp := &captureDispatcher{}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	defer cancel()

	report, err := newTestAggregator(src, oracle, &fakeIRM{value: models.TargetUtilization{Value: 0.9}}, WithDispatcher(disp)).
		Aggregate(ctx, testVault, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, report)
	assert.Empty(t, disp.reports)
}

func TestAggregateErrors(t *testing.T) {
	negative := activeMarket("0xbad", common.HexToAddress("0xa1"))
	negative.BorrowAssetsUSD = -1

	tooHighLLTV := activeMarket("0xlltv", common.HexToAddress("0xa1"))
	tooHighLLTV.LLTV = sdkmath.NewIntWithDecimal(2, 18)

	other := common.HexToAddress("0x1234")

	tests := []struct {
		name    string
		src     *fakeSource
		vault   common.Address
		chainID int64
		opts    []AggregatorOption
		want    error
	}{
		{"listing fails", &fakeSource{err: errors.New("dial tcp: refused")}, testVault, 1, nil, models.ErrUpstreamUnavailable},
		{"not found upstream", &fakeSource{err: models.ErrVaultNotFound}, testVault, 1, nil, models.ErrVaultNotFound},
		{"negative usd", &fakeSource{markets: []models.MarketState{negative}}, testVault, 1, nil, models.ErrInvalidInput},
		{"lltv above one", &fakeSource{markets: []models.MarketState{tooHighLLTV}}, testVault, 1, nil, models.ErrInvalidInput},
		{"zero vault", &fakeSource{}, common.Address{}, 1, nil, models.ErrInvalidInput},
		{"bad chain", &fakeSource{}, testVault, 0, nil, models.ErrInvalidInput},
		{
			"unknown vault", &fakeSource{}, other, 1,
			[]AggregatorOption{WithKnownVaults(map[int64][]common.Address{1: {testVault}})},
			models.ErrVaultNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := newFakeOracle(0)
			irm := &fakeIRM{}
			disp := &captureDispatcher{}
			opts := append(tt.opts, WithDispatcher(disp))

			report, err := newTestAggregator(tt.src, oracle, irm, opts...).
				Aggregate(context.Background(), tt.vault, tt.chainID)
			require.Error(t, err)
			assert.Nil(t, report)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, oracle.total())
			assert.Empty(t, disp.reports)
		})
	}
}

func TestAggregateKnownVaultSkipsListingForOthers(t *testing.T) {
	src := &fakeSource{}
	a := newTestAggregator(src, newFakeOracle(0), &fakeIRM{},
		WithKnownVaults(map[int64][]common.Address{1: {testVault}}))

	_, err := a.Aggregate(context.Background(), testVault, 8453)
	assert.ErrorIs(t, err, models.ErrVaultNotFound)
	assert.Zero(t, atomic.LoadInt32(&src.calls))

	report, err := a.Aggregate(context.Background(), testVault, 1)
	require.NoError(t, err)
	assert.Empty(t, report.Markets)
	assert.Equal(t, []common.Address{testVault}, a.KnownVaults(1))
}

func TestScoreVaultsCollectsFailures(t *testing.T) {
	src := &fakeSource{markets: []models.MarketState{idleMarket("0x02")}}
	a := newTestAggregator(src, newFakeOracle(0), &fakeIRM{},
		WithKnownVaults(map[int64][]common.Address{1: {testVault}}))

	other := common.HexToAddress("0x1234")
	reports, failed := a.ScoreVaults(context.Background(), 1, []common.Address{testVault, other})
	require.Len(t, reports, 1)
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[other.Hex()], models.ErrVaultNotFound)
}

// slowSource tracks how many listings run at once.
type slowSource struct {
	delay    time.Duration
	inFlight int32
	peak     int32
}

func (s *slowSource) ListVaultMarkets(context.Context, common.Address, int64) ([]models.MarketState, error) {
	n := atomic.AddInt32(&s.inFlight, 1)
	for {
		p := atomic.LoadInt32(&s.peak)
		if n <= p || atomic.CompareAndSwapInt32(&s.peak, p, n) {
			break
		}
	}
	time.Sleep(s.delay)
	atomic.AddInt32(&s.inFlight, -1)
	return []models.MarketState{idleMarket("0x02")}, nil
}

func TestScoreVaultsBoundedAndOrdered(t *testing.T) {
	src := &slowSource{delay: 20 * time.Millisecond}
	a := NewVaultRiskAggregator(src, newFakeOracle(0), &fakeIRM{}, risk.NewScorer(risk.DefaultScoringParams()), nil, nil,
		WithVaultConcurrency(2))

	vaults := []common.Address{
		common.HexToAddress("0x01"),
		common.HexToAddress("0x02"),
		common.HexToAddress("0x03"),
		common.HexToAddress("0x04"),
		common.HexToAddress("0x05"),
	}
	reports, failed := a.ScoreVaults(context.Background(), 1, vaults)
	require.Empty(t, failed)
	require.Len(t, reports, len(vaults))
	for i, r := range reports {
		assert.Equal(t, strings.ToLower(vaults[i].Hex()), r.VaultAddress)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&src.peak), int32(2))
}
