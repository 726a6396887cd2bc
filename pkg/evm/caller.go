// Package evm issues read-only contract calls against EVM chains.
package evm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var ErrUnknownChain = errors.New("evm: no rpc configured for chain")

// Call is a single eth_call against the latest block.
type Call struct {
	To   common.Address
	Data []byte
}

// Result carries the return data of one call or its own error (revert,
// missing method). Err on one result does not affect the others.
type Result struct {
	Data []byte
	Err  error
}

// Caller executes calls in as few round-trips as the transport allows.
// A non-nil error means the whole batch failed.
type Caller interface {
	BatchCall(ctx context.Context, calls []Call) ([]Result, error)
}

// Registry maps chain ids to callers.
type Registry struct {
	mu      sync.RWMutex
	callers map[int64]Caller
}

func NewRegistry() *Registry {
	return &Registry{callers: make(map[int64]Caller)}
}

// Register replaces any caller already set for chainID.
func (r *Registry) Register(chainID int64, c Caller) {
	r.mu.Lock()
	r.callers[chainID] = c
	r.mu.Unlock()
}

// Caller returns the caller for chainID or ErrUnknownChain.
func (r *Registry) Caller(chainID int64) (Caller, error) {
	r.mu.RLock()
	c, ok := r.callers[chainID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChain, chainID)
	}
	return c, nil
}

// Chains lists registered chain ids.
func (r *Registry) Chains() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int64, 0, len(r.callers))
	for id := range r.callers {
		out = append(out, id)
	}
	return out
}

// Close closes every caller that holds a connection.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.callers {
		if cl, ok := c.(interface{ Close() }); ok {
			cl.Close()
		}
	}
}
