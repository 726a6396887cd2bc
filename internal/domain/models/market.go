package models

import (
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"VaultRisk/pkg/fixedpoint"
)

type Asset struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// MarketState is a lending market as of one indexer snapshot.
// Nil oracle/IRM addresses mean the slot was never initialized.
type MarketState struct {
	MarketID             string          `json:"marketId"`
	LoanAsset            Asset           `json:"loanAsset"`
	CollateralAsset      *Asset          `json:"collateralAsset"`
	LLTV                 sdkmath.Int     `json:"lltv"`
	OracleAddress        *common.Address `json:"oracleAddress"`
	IRMAddress           *common.Address `json:"irmAddress"`
	SupplyAssetsUSD      float64         `json:"supplyAssetsUsd"`
	BorrowAssetsUSD      float64         `json:"borrowAssetsUsd"`
	CollateralAssetsUSD  float64         `json:"collateralAssetsUsd"`
	VaultSupplyAssetsUSD *float64        `json:"vaultSupplyAssetsUsd"`
}

// Validate rejects figures that would make scoring meaningless. It does not
// check borrow <= supply; the scorer clamps that itself.
func (m MarketState) Validate() error {
	usd := []struct {
		name string
		v    float64
	}{
		{"supplyAssetsUsd", m.SupplyAssetsUSD},
		{"borrowAssetsUsd", m.BorrowAssetsUSD},
		{"collateralAssetsUsd", m.CollateralAssetsUSD},
	}
	if m.VaultSupplyAssetsUSD != nil {
		usd = append(usd, struct {
			name string
			v    float64
		}{"vaultSupplyAssetsUsd", *m.VaultSupplyAssetsUSD})
	}
	for _, f := range usd {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: market %s: %s is not finite", ErrInvalidInput, m.MarketID, f.name)
		}
		if f.v < 0 {
			return fmt.Errorf("%w: market %s: %s is negative (%v)", ErrInvalidInput, m.MarketID, f.name, f.v)
		}
	}
	if !m.LLTV.IsNil() {
		if m.LLTV.IsNegative() || m.LLTV.GT(fixedpoint.Wad) {
			return fmt.Errorf("%w: market %s: lltv %s outside [0, 1e18]", ErrInvalidInput, m.MarketID, m.LLTV)
		}
	}
	return nil
}

// HasVaultPosition reports whether the scoring vault supplies to this market.
func (m MarketState) HasVaultPosition() bool {
	return m.VaultSupplyAssetsUSD != nil && *m.VaultSupplyAssetsUSD > 0
}

// MarketParams are the five immutable fields a market id is derived from.
type MarketParams struct {
	LoanToken       common.Address
	CollateralToken common.Address
	Oracle          common.Address
	IRM             common.Address
	LLTV            sdkmath.Int
}

// ComputeMarketID returns keccak256(abi.encode(params)) as 0x-prefixed hex.
func ComputeMarketID(p MarketParams) string {
	lltv := []byte{}
	if !p.LLTV.IsNil() {
		lltv = p.LLTV.BigInt().Bytes()
	}
	buf := make([]byte, 0, 5*32)
	buf = append(buf, common.LeftPadBytes(p.LoanToken.Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(p.CollateralToken.Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(p.Oracle.Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(p.IRM.Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(lltv, 32)...)
	return crypto.Keccak256Hash(buf).Hex()
}

// NonZeroAddress maps the zero address to nil.
func NonZeroAddress(a common.Address) *common.Address {
	if a == (common.Address{}) {
		return nil
	}
	return &a
}
