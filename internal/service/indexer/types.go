package indexer

// GraphQL request/response shapes for the vault allocation query.

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Status     string `json:"status"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type vaultResponse struct {
	Data struct {
		VaultByAddress *vaultNode `json:"vaultByAddress"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type vaultNode struct {
	Address string      `json:"address" validate:"required,eth_addr"`
	State   *vaultState `json:"state" validate:"required"`
}

type vaultState struct {
	Allocation []allocationNode `json:"allocation" validate:"dive"`
}

type allocationNode struct {
	SupplyAssetsUSD *float64    `json:"supplyAssetsUsd"`
	Market          *marketNode `json:"market" validate:"required"`
}

type marketNode struct {
	UniqueKey       string       `json:"uniqueKey" validate:"omitempty,bytes32"`
	LLTV            string       `json:"lltv" validate:"required,number"`
	OracleAddress   string       `json:"oracleAddress" validate:"omitempty,eth_addr"`
	IRMAddress      string       `json:"irmAddress" validate:"omitempty,eth_addr"`
	LoanAsset       *assetNode   `json:"loanAsset" validate:"required"`
	CollateralAsset *assetNode   `json:"collateralAsset" validate:"omitempty"`
	State           *marketState `json:"state"`
}

type assetNode struct {
	Address  string `json:"address" validate:"required,eth_addr"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals" validate:"gte=0,lte=255"`
}

type marketState struct {
	SupplyAssetsUSD     *float64 `json:"supplyAssetsUsd"`
	BorrowAssetsUSD     *float64 `json:"borrowAssetsUsd"`
	CollateralAssetsUSD *float64 `json:"collateralAssetsUsd"`
}

const vaultMarketsQuery = `query VaultMarkets($address: String!, $chainId: Int!) {
  vaultByAddress(address: $address, chainId: $chainId) {
    address
    state {
      allocation {
        supplyAssetsUsd
        market {
          uniqueKey
          lltv
          oracleAddress
          irmAddress
          loanAsset { address symbol decimals }
          collateralAsset { address symbol decimals }
          state { supplyAssetsUsd borrowAssetsUsd collateralAssetsUsd }
        }
      }
    }
  }
}`
