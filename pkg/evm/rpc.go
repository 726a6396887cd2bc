package evm

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// RPCOption configures RPCCaller.
type RPCOption func(*RPCConfig)

// RPCConfig holds JSON-RPC caller configuration.
type RPCConfig struct {
	URL          string
	DialTimeout  time.Duration
	MaxBatchSize int
	BlockTag     string
}

// WithURL sets the JSON-RPC endpoint.
func WithURL(url string) RPCOption {
	return func(c *RPCConfig) {
		c.URL = url
	}
}

// WithDialTimeout bounds the initial connection.
func WithDialTimeout(d time.Duration) RPCOption {
	return func(c *RPCConfig) {
		c.DialTimeout = d
	}
}

// WithMaxBatchSize caps the number of calls per JSON-RPC batch.
func WithMaxBatchSize(n int) RPCOption {
	return func(c *RPCConfig) {
		c.MaxBatchSize = n
	}
}

// RPCCaller sends eth_call batches over a go-ethereum rpc.Client.
type RPCCaller struct {
	client   *rpc.Client
	maxBatch int
	block    string
}

type callArgs struct {
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

// DialRPC connects to an EVM JSON-RPC endpoint.
func DialRPC(opts ...RPCOption) (*RPCCaller, error) {
	cfg := &RPCConfig{
		DialTimeout:  5 * time.Second,
		MaxBatchSize: 100,
		BlockTag:     "latest",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 100
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	client, err := rpc.DialContext(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rpc dial: %w", err)
	}
	return &RPCCaller{client: client, maxBatch: cfg.MaxBatchSize, block: cfg.BlockTag}, nil
}

// BatchCall issues the calls as JSON-RPC batches of at most MaxBatchSize.
func (c *RPCCaller) BatchCall(ctx context.Context, calls []Call) ([]Result, error) {
	results := make([]Result, len(calls))
	for start := 0; start < len(calls); start += c.maxBatch {
		end := start + c.maxBatch
		if end > len(calls) {
			end = len(calls)
		}

		chunk := calls[start:end]
		outs := make([]hexutil.Bytes, len(chunk))
		elems := make([]rpc.BatchElem, len(chunk))
		for i, call := range chunk {
			elems[i] = rpc.BatchElem{
				Method: "eth_call",
				Args:   []interface{}{callArgs{To: call.To, Data: call.Data}, c.block},
				Result: &outs[i],
			}
		}
		if err := c.client.BatchCallContext(ctx, elems); err != nil {
			return nil, fmt.Errorf("eth_call batch: %w", err)
		}
		for i := range elems {
			results[start+i] = Result{Data: outs[i], Err: elems[i].Error}
		}
	}
	return results, nil
}

// Close releases the underlying connection.
func (c *RPCCaller) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

var _ Caller = (*RPCCaller)(nil)
