package evm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// newEthCallServer answers eth_call batches: calls to revertTo fail, every
// other call returns its target address left-padded to 32 bytes.
func newEthCallServer(t *testing.T, revertTo common.Address, batches *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(batches, 1)
		var reqs []rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
			t.Errorf("expected batch request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		resps := make([]rpcResponse, 0, len(reqs))
		for _, req := range reqs {
			if req.Method != "eth_call" {
				t.Errorf("unexpected method %s", req.Method)
			}
			var args struct {
				To   common.Address `json:"to"`
				Data string         `json:"data"`
			}
			_ = json.Unmarshal(req.Params[0], &args)
			resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
			if args.To == revertTo {
				resp.Error = &rpcError{Code: 3, Message: "execution reverted"}
			} else {
				resp.Result = common.BytesToHash(args.To.Bytes()).Hex()
			}
			resps = append(resps, resp)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resps)
	}))
}

func TestRPCCallerBatchCall(t *testing.T) {
	revert := common.HexToAddress("0xdead")
	var batches int32
	srv := newEthCallServer(t, revert, &batches)
	defer srv.Close()

	c, err := DialRPC(WithURL(srv.URL), WithMaxBatchSize(2))
	require.NoError(t, err)
	defer c.Close()

	calls := []Call{
		{To: common.HexToAddress("0x01"), Data: []byte{0xfe, 0xaf, 0x96, 0x8c}},
		{To: revert, Data: []byte{0x01}},
		{To: common.HexToAddress("0x03")},
	}
	res, err := c.BatchCall(context.Background(), calls)
	require.NoError(t, err)
	require.Len(t, res, 3)

	assert.NoError(t, res[0].Err)
	assert.Equal(t, common.HexToAddress("0x01"), common.BytesToAddress(res[0].Data))
	assert.Error(t, res[1].Err)
	assert.NoError(t, res[2].Err)
	assert.Equal(t, common.HexToAddress("0x03"), common.BytesToAddress(res[2].Data))
	assert.Equal(t, int32(2), atomic.LoadInt32(&batches))
}

func TestDialRPCRequiresURL(t *testing.T) {
	_, err := DialRPC()
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	_, err := r.Caller(1)
	assert.ErrorIs(t, err, ErrUnknownChain)

	var c Caller = &RPCCaller{}
	r.Register(1, c)
	got, err := r.Caller(1)
	require.NoError(t, err)
	assert.Same(t, c, got)
	assert.ElementsMatch(t, []int64{1}, r.Chains())
}
