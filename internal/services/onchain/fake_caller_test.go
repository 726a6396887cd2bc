package onchain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"VaultRisk/pkg/evm"
)

var errReverted = errors.New("execution reverted")

type callKey struct {
	to       common.Address
	selector [4]byte
}

// fakeCaller answers calls from a table keyed by (to, selector). Unknown
// calls revert.
type fakeCaller struct {
	mu      sync.Mutex
	answers map[callKey][]byte
	batches int
	calls   int
	delay   time.Duration
	failAll error
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{answers: make(map[callKey][]byte)}
}

func (f *fakeCaller) answer(contract abi.ABI, to common.Address, method string, values ...interface{}) {
	m := contract.Methods[method]
	data, err := m.Outputs.Pack(values...)
	if err != nil {
		panic(err)
	}
	var sel [4]byte
	copy(sel[:], m.ID)
	f.answers[callKey{to: to, selector: sel}] = data
}

func (f *fakeCaller) feeds(oracle common.Address, base1, base2, quote1, quote2 common.Address) {
	f.answer(oracleABI, oracle, "BASE_FEED_1", base1)
	f.answer(oracleABI, oracle, "BASE_FEED_2", base2)
	f.answer(oracleABI, oracle, "QUOTE_FEED_1", quote1)
	f.answer(oracleABI, oracle, "QUOTE_FEED_2", quote2)
}

func (f *fakeCaller) round(feed common.Address, updatedAt int64) {
	f.answer(aggregatorABI, feed, "latestRoundData",
		big.NewInt(1), big.NewInt(100_000_000), big.NewInt(updatedAt), big.NewInt(updatedAt), big.NewInt(1))
}

func (f *fakeCaller) BatchCall(ctx context.Context, calls []evm.Call) ([]evm.Result, error) {
	f.mu.Lock()
	f.batches++
	f.calls += len(calls)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failAll != nil {
		return nil, f.failAll
	}

	out := make([]evm.Result, len(calls))
	for i, c := range calls {
		var sel [4]byte
		copy(sel[:], c.Data)
		if data, ok := f.answers[callKey{to: c.To, selector: sel}]; ok {
			out[i] = evm.Result{Data: data}
		} else {
			out[i] = evm.Result{Err: errReverted}
		}
	}
	return out, nil
}

func (f *fakeCaller) stats() (batches, calls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches, f.calls
}

func registryWith(chainID int64, c evm.Caller) *evm.Registry {
	r := evm.NewRegistry()
	r.Register(chainID, c)
	return r
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{outcomes: make(map[string]int)}
}

func (m *recordingMetrics) RecordResolverCall(resolver, outcome string) {
	m.mu.Lock()
	m.outcomes[resolver+"/"+outcome]++
	m.mu.Unlock()
}

func (m *recordingMetrics) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[key]
}

func (m *recordingMetrics) RecordMarketScored(string) {}
func (m *recordingMetrics) RecordReportDispatched(string) {}
func (m *recordingMetrics) RecordError(string) {}
func (m *recordingMetrics) RecordLatency(string, float64) {}

func evmRegistryEmpty() *evm.Registry { return evm.NewRegistry() }
