package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
chains:
  - id: 1
    rpc_url: http://localhost:8545
vaults:
  - chain_id: 1
    address: "0xbeef01735c132ada46aa9aa4c54623caa92a64cb"
`

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(minimal))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 3*time.Second, c.Resolvers.Timeout)
	assert.Equal(t, 24*time.Hour, c.Resolvers.IRMCacheTTL)
	assert.Equal(t, "none", c.Sinks.Backend)
	assert.Equal(t, "info", c.Logger.Level)
	assert.Equal(t, 100, c.Chains[0].MaxBatchSize)
	assert.Equal(t, map[int64][]string{1: {"0xbeef01735c132ada46aa9aa4c54623caa92a64cb"}}, c.VaultsByChain())
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"no chains": `environment: development`,
		"bad vault address": `
chains: [{id: 1, rpc_url: "http://localhost:8545"}]
vaults: [{chain_id: 1, address: "0x1234"}]`,
		"vault on unknown chain": `
chains: [{id: 1, rpc_url: "http://localhost:8545"}]
vaults: [{chain_id: 10, address: "0xbeef01735c132ada46aa9aa4c54623caa92a64cb"}]`,
		"duplicate chain": `
chains: [{id: 1, rpc_url: "http://a:8545"}, {id: 1, rpc_url: "http://b:8545"}]`,
		"kafka sink without brokers": `
chains: [{id: 1, rpc_url: "http://localhost:8545"}]
sinks: {backend: kafka}`,
		"unknown backend": `
chains: [{id: 1, rpc_url: "http://localhost:8545"}]
sinks: {backend: s3}`,
		"target out of range": `
chains: [{id: 1, rpc_url: "http://localhost:8545"}]
scoring: {default_target_utilization: 1.5}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			c, err := Parse([]byte(doc))
			require.NoError(t, err)
			assert.Error(t, c.Validate())
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse([]byte(minimal))
	require.NoError(t, err)

	require.NoError(t, c.applyEnv(map[string]string{
		"RPC_URL_1":     "http://override:8545",
		"RPC_URL_8453":  "http://base:8545",
		"KAFKA_BROKERS": "k1:9092, k2:9092",
		"SINKS_BACKEND": "kafka",
		"REDIS_ADDR":    "redis:6379",
		"HTTP_PORT":     "9090",
	}))
	require.NoError(t, c.Validate())

	require.Len(t, c.Chains, 2)
	assert.Equal(t, "http://override:8545", c.Chains[0].RPCURL)
	assert.Equal(t, int64(8453), c.Chains[1].ID)
	assert.Equal(t, 100, c.Chains[1].MaxBatchSize)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, 9090, c.Server.Port)

	assert.Error(t, c.applyEnv(map[string]string{"RPC_URL_mainnet": "http://x"}))
	assert.Error(t, c.applyEnv(map[string]string{"HTTP_PORT": "eighty"}))
}

func TestLoadSampleConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.Len(t, c.Chains, 2)
	assert.Equal(t, 0.25, c.Scoring.Weights.Oracle)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
