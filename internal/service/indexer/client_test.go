package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VaultRisk/internal/domain/models"
)

var testVault = common.HexToAddress("0xBEEF01735c132Ada46AA9aA4c54623cAA92A64CB")

const twoMarkets = `{
  "data": {
    "vaultByAddress": {
      "address": "0xBEEF01735c132Ada46AA9aA4c54623cAA92A64CB",
      "state": {
        "allocation": [
          {
            "supplyAssetsUsd": 1500000,
            "market": {
              "uniqueKey": "0xB323495F7E4148BE5643A4EA4A8221EEF163E4BCCFDEDC2A6F4696BAACBC86CC",
              "lltv": "860000000000000000",
              "oracleAddress": "0x48F7E36EB6B826B2dF4B2E630B62Cd25e89E40e2",
              "irmAddress": "0x870aC11D48B15DB9a138Cf899d20F13F79Ba00BC",
              "loanAsset": {"address": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "symbol": "USDC", "decimals": 6},
              "collateralAsset": {"address": "0x7f39C581F595B53c5cb19bD0b3f8dA6c935E2Ca0", "symbol": "wstETH", "decimals": 18},
              "state": {"supplyAssetsUsd": 1000000, "borrowAssetsUsd": 800000, "collateralAssetsUsd": 1500000}
            }
          },
          {
            "supplyAssetsUsd": null,
            "market": {
              "uniqueKey": "0x54efdee08e272e929034a8f26f7ca34b1ebe364b275391169b28c6d7db24dbc8",
              "lltv": "0",
              "oracleAddress": "0x0000000000000000000000000000000000000000",
              "irmAddress": "0x0000000000000000000000000000000000000000",
              "loanAsset": {"address": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "symbol": "USDC", "decimals": 6},
              "collateralAsset": null,
              "state": {"supplyAssetsUsd": 0, "borrowAssetsUsd": 0, "collateralAssetsUsd": null}
            }
          }
        ]
      }
    }
  }
}`

func newIndexer(t *testing.T, status int, body string, seen *graphQLRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestListVaultMarketsPreservesOrder(t *testing.T) {
	var req graphQLRequest
	srv := newIndexer(t, http.StatusOK, twoMarkets, &req)
	defer srv.Close()

	markets, err := NewClient(srv.URL).ListVaultMarkets(context.Background(), testVault, 1)
	require.NoError(t, err)
	require.Len(t, markets, 2)

	assert.Equal(t, testVault.Hex(), req.Variables["address"])
	assert.Equal(t, float64(1), req.Variables["chainId"])

	first := markets[0]
	assert.Equal(t, "0xb323495f7e4148be5643a4ea4a8221eef163e4bccfdedc2a6f4696baacbc86cc", first.MarketID)
	assert.Equal(t, "USDC", first.LoanAsset.Symbol)
	assert.Equal(t, uint8(6), first.LoanAsset.Decimals)
	require.NotNil(t, first.CollateralAsset)
	assert.Equal(t, "wstETH", first.CollateralAsset.Symbol)
	assert.Equal(t, "860000000000000000", first.LLTV.String())
	require.NotNil(t, first.OracleAddress)
	require.NotNil(t, first.IRMAddress)
	assert.Equal(t, 800000.0, first.BorrowAssetsUSD)
	require.NotNil(t, first.VaultSupplyAssetsUSD)
	assert.Equal(t, 1500000.0, *first.VaultSupplyAssetsUSD)

	idle := markets[1]
	assert.Nil(t, idle.CollateralAsset)
	assert.Nil(t, idle.OracleAddress)
	assert.Nil(t, idle.IRMAddress)
	assert.Nil(t, idle.VaultSupplyAssetsUSD)
	assert.Zero(t, idle.CollateralAssetsUSD)
}

func TestListVaultMarketsNotFound(t *testing.T) {
	cases := map[string]string{
		"graphql error": `{"data":{"vaultByAddress":null},"errors":[{"message":"No results matching given parameters","status":"NOT_FOUND"}]}`,
		"null vault":    `{"data":{"vaultByAddress":null}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := newIndexer(t, http.StatusOK, body, nil)
			defer srv.Close()

			_, err := NewClient(srv.URL).ListVaultMarkets(context.Background(), testVault, 1)
			assert.ErrorIs(t, err, models.ErrVaultNotFound)
		})
	}
}

func TestListVaultMarketsUpstreamErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"http 500", http.StatusInternalServerError, `oops`},
		{"graphql error", http.StatusOK, `{"errors":[{"message":"rate limited","status":"TOO_MANY_REQUESTS"}]}`},
		{"bad json", http.StatusOK, `{"data":`},
		{"shape mismatch", http.StatusOK, `{"data":{"vaultByAddress":{"address":"nope","state":{"allocation":[]}}}}`},
		{"bad market id", http.StatusOK, `{"data":{"vaultByAddress":{"address":"0xBEEF01735c132Ada46AA9aA4c54623cAA92A64CB","state":{"allocation":[{"market":{"uniqueKey":"0x12","lltv":"0","loanAsset":{"address":"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48","symbol":"USDC","decimals":6}}}]}}}}`},
		{"bad lltv", http.StatusOK, `{"data":{"vaultByAddress":{"address":"0xBEEF01735c132Ada46AA9aA4c54623cAA92A64CB","state":{"allocation":[{"market":{"lltv":"abc","loanAsset":{"address":"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48","symbol":"USDC","decimals":6}}}]}}}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newIndexer(t, tc.status, tc.body, nil)
			defer srv.Close()

			_, err := NewClient(srv.URL).ListVaultMarkets(context.Background(), testVault, 1)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
			assert.NotErrorIs(t, err, models.ErrVaultNotFound)
		})
	}
}

func TestListVaultMarketsPassesNegativeFiguresThrough(t *testing.T) {
	body := `{"data":{"vaultByAddress":{"address":"0xBEEF01735c132Ada46AA9aA4c54623cAA92A64CB","state":{"allocation":[` +
		`{"supplyAssetsUsd":-5,"market":{"lltv":"860000000000000000",` +
		`"loanAsset":{"address":"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48","symbol":"USDC","decimals":6},` +
		`"state":{"supplyAssetsUsd":10,"borrowAssetsUsd":5,"collateralAssetsUsd":20}}}]}}}}`
	srv := newIndexer(t, http.StatusOK, body, nil)
	defer srv.Close()

	markets, err := NewClient(srv.URL).ListVaultMarkets(context.Background(), testVault, 1)
	require.NoError(t, err)
	require.Len(t, markets, 1)
	// negative figures are invalid market data, not an upstream failure
	assert.ErrorIs(t, markets[0].Validate(), models.ErrInvalidInput)
}

func TestToMarketStateDerivesMissingID(t *testing.T) {
	m, err := toMarketState(allocationNode{Market: &marketNode{
		LLTV:      "860000000000000000",
		LoanAsset: &assetNode{Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC", Decimals: 6},
	}})
	require.NoError(t, err)
	assert.Len(t, m.MarketID, 66)
}
