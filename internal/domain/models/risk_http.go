package models

// Requests for the risk HTTP endpoints.

type VaultRiskRequest struct {
	ChainID int64  `param:"chainId" json:"chainId" validate:"required,gt=0"`
	Address string `param:"address" json:"address" validate:"required,eth_addr"`
}

type MarketHistoryRequest struct {
	ChainID  int64  `param:"chainId" json:"chainId" validate:"required,gt=0"`
	MarketID string `param:"marketId" json:"marketId" validate:"required,bytes32"`
	From     string `query:"from" json:"from"`
	To       string `query:"to" json:"to"`
	Limit    int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=10000"`
}
