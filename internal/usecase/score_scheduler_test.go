package usecase

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VaultRisk/internal/domain/models"
)

func TestNewScoreSchedulerDisabled(t *testing.T) {
	agg := newTestAggregator(&fakeSource{}, newFakeOracle(0), &fakeIRM{})
	assert.Nil(t, NewScoreScheduler(agg, map[int64][]common.Address{1: {testVault}}, 0, nil, nil))
	assert.Nil(t, NewScoreScheduler(agg, nil, time.Minute, nil, nil))
}

func TestScoreSchedulerRunsAndStops(t *testing.T) {
	src := &fakeSource{markets: []models.MarketState{idleMarket("0x02")}}
	disp := &captureDispatcher{}
	agg := newTestAggregator(src, newFakeOracle(0), &fakeIRM{}, WithDispatcher(disp))

	s := NewScoreScheduler(agg, map[int64][]common.Address{1: {testVault}}, 10*time.Millisecond, nil, nil)
	require.NotNil(t, s)

	s.Start(context.Background())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&src.calls) >= 2 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.False(t, s.LastRun().IsZero())

	calls := atomic.LoadInt32(&src.calls)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, atomic.LoadInt32(&src.calls))
}
