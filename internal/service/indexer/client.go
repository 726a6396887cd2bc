// Package indexer lists a vault's markets from a Morpho-compatible GraphQL
// indexer.
package indexer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"

	"VaultRisk/internal/domain/models"
	domrepo "VaultRisk/internal/domain/repository"
	"VaultRisk/pkg/fixedpoint"
	xhttp "VaultRisk/pkg/http"
)

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout bounds each indexer request.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetries replays a failed listing on transport errors, 429 and 5xx.
func WithRetries(n int) ClientOption {
	return func(c *Client) {
		c.retries = n
	}
}

// WithHeader adds a static request header (e.g. an API key).
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// Client implements repository.MarketSource over GraphQL.
type Client struct {
	url      string
	timeout  time.Duration
	retries  int
	headers  map[string]string
	http     *xhttp.Client
	validate *validator.Validate
}

func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:      url,
		timeout:  10 * time.Second,
		headers:  map[string]string{"Content-Type": "application/json"},
		validate: xhttp.NewValidator(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = xhttp.NewClient(xhttp.WithTimeout(c.timeout), xhttp.WithRetry(c.retries, 250*time.Millisecond))
	return c
}

// ListVaultMarkets returns the vault's markets in supply-queue order.
// Transport and shape failures wrap models.ErrUpstreamUnavailable.
func (c *Client) ListVaultMarkets(ctx context.Context, vault common.Address, chainID int64) ([]models.MarketState, error) {
	var resp vaultResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:    xhttp.MethodPost,
		URL:       c.url,
		Headers:   c.headers,
		Retryable: true,
		Body: graphQLRequest{
			Query: vaultMarketsQuery,
			Variables: map[string]interface{}{
				"address": vault.Hex(),
				"chainId": chainID,
			},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("%w: indexer: %v", models.ErrUpstreamUnavailable, err)
	}

	if len(resp.Errors) > 0 {
		if isNotFound(resp.Errors) {
			return nil, fmt.Errorf("%w: %s on chain %d", models.ErrVaultNotFound, vault.Hex(), chainID)
		}
		return nil, fmt.Errorf("%w: indexer: %s", models.ErrUpstreamUnavailable, resp.Errors[0].Message)
	}

	node := resp.Data.VaultByAddress
	if node == nil {
		return nil, fmt.Errorf("%w: %s on chain %d", models.ErrVaultNotFound, vault.Hex(), chainID)
	}
	if err := c.validate.StructCtx(ctx, node); err != nil {
		return nil, fmt.Errorf("%w: indexer response: %v", models.ErrUpstreamUnavailable, err)
	}

	markets := make([]models.MarketState, 0, len(node.State.Allocation))
	for i, alloc := range node.State.Allocation {
		m, err := toMarketState(alloc)
		if err != nil {
			return nil, fmt.Errorf("%w: allocation %d: %v", models.ErrUpstreamUnavailable, i, err)
		}
		markets = append(markets, m)
	}
	return markets, nil
}

func isNotFound(errs []graphQLError) bool {
	for _, e := range errs {
		if e.Status == "NOT_FOUND" || e.Extensions.Code == "NOT_FOUND" ||
			strings.Contains(strings.ToLower(e.Message), "no results") {
			return true
		}
	}
	return false
}

func toMarketState(alloc allocationNode) (models.MarketState, error) {
	mk := alloc.Market
	lltv, err := fixedpoint.ParseWad(mk.LLTV)
	if err != nil {
		return models.MarketState{}, err
	}

	m := models.MarketState{
		MarketID:             strings.ToLower(mk.UniqueKey),
		LoanAsset:            toAsset(mk.LoanAsset),
		LLTV:                 lltv,
		OracleAddress:        optionalAddress(mk.OracleAddress),
		IRMAddress:           optionalAddress(mk.IRMAddress),
		VaultSupplyAssetsUSD: alloc.SupplyAssetsUSD,
	}
	if mk.CollateralAsset != nil {
		collateral := toAsset(mk.CollateralAsset)
		if collateral.Address != (common.Address{}) {
			m.CollateralAsset = &collateral
		}
	}
	if mk.State != nil {
		m.SupplyAssetsUSD = valueOrZero(mk.State.SupplyAssetsUSD)
		m.BorrowAssetsUSD = valueOrZero(mk.State.BorrowAssetsUSD)
		m.CollateralAssetsUSD = valueOrZero(mk.State.CollateralAssetsUSD)
	}

	if m.MarketID == "" {
		params := models.MarketParams{LoanToken: m.LoanAsset.Address, LLTV: lltv}
		if m.CollateralAsset != nil {
			params.CollateralToken = m.CollateralAsset.Address
		}
		if m.OracleAddress != nil {
			params.Oracle = *m.OracleAddress
		}
		if m.IRMAddress != nil {
			params.IRM = *m.IRMAddress
		}
		m.MarketID = models.ComputeMarketID(params)
	}
	return m, nil
}

func toAsset(a *assetNode) models.Asset {
	return models.Asset{
		Address:  common.HexToAddress(a.Address),
		Symbol:   a.Symbol,
		Decimals: uint8(a.Decimals),
	}
}

func optionalAddress(s string) *common.Address {
	if s == "" || !common.IsHexAddress(s) {
		return nil
	}
	return models.NonZeroAddress(common.HexToAddress(s))
}

// unpriced markets report null USD figures
func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

var _ domrepo.MarketSource = (*Client)(nil)
