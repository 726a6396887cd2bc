package models

import "time"

// MarketRiskEntry pairs a market with its scores. Scores is nil for idle
// markets, which also carry no resolved facts.
type MarketRiskEntry struct {
	Market            MarketState          `json:"market"`
	Idle              bool                 `json:"idle"`
	Scores            *RiskScoreResult     `json:"scores"`
	Oracle            *OracleTimestampData `json:"oracle,omitempty"`
	TargetUtilization *TargetUtilization   `json:"targetUtilization,omitempty"`
}

// VaultRiskReport lists markets in the vault's supply-queue order.
type VaultRiskReport struct {
	VaultAddress string            `json:"vaultAddress"`
	ChainID      int64             `json:"chainId"`
	GeneratedAt  time.Time         `json:"generatedAt"`
	Markets      []MarketRiskEntry `json:"markets"`
}

// ScoredCount returns the number of non-idle entries.
func (r *VaultRiskReport) ScoredCount() int {
	n := 0
	for _, m := range r.Markets {
		if m.Scores != nil {
			n++
		}
	}
	return n
}

// MarketSnapshot is one persisted score row.
type MarketSnapshot struct {
	Timestamp         time.Time `json:"timestamp"`
	ChainID           int64     `json:"chainId"`
	VaultAddress      string    `json:"vaultAddress"`
	MarketID          string    `json:"marketId"`
	LoanSymbol        string    `json:"loanSymbol"`
	CollateralSymbol  string    `json:"collateralSymbol"`
	Headroom          float64   `json:"liquidationHeadroomScore"`
	Utilization       float64   `json:"utilizationScore"`
	Coverage          float64   `json:"coverageRatioScore"`
	Oracle            float64   `json:"oracleScore"`
	MarketRiskScore   float64   `json:"marketRiskScore"`
	Grade             Grade     `json:"grade"`
	OracleAgeSeconds  *int64    `json:"oracleAgeSeconds"`
	TargetUtilization float64   `json:"targetUtilization"`
	TargetIsFallback  bool      `json:"targetIsFallback"`
}

// Snapshots flattens the scored entries of a report into rows.
func (r *VaultRiskReport) Snapshots() []MarketSnapshot {
	out := make([]MarketSnapshot, 0, len(r.Markets))
	for _, e := range r.Markets {
		if e.Scores == nil {
			continue
		}
		s := MarketSnapshot{
			Timestamp:       r.GeneratedAt,
			ChainID:         r.ChainID,
			VaultAddress:    r.VaultAddress,
			MarketID:        e.Market.MarketID,
			LoanSymbol:      e.Market.LoanAsset.Symbol,
			Headroom:        e.Scores.LiquidationHeadroomScore,
			Utilization:     e.Scores.UtilizationScore,
			Coverage:        e.Scores.CoverageRatioScore,
			Oracle:          e.Scores.OracleScore,
			MarketRiskScore: e.Scores.MarketRiskScore,
			Grade:           e.Scores.Grade,
		}
		if e.Market.CollateralAsset != nil {
			s.CollateralSymbol = e.Market.CollateralAsset.Symbol
		}
		if e.Oracle != nil {
			s.OracleAgeSeconds = e.Oracle.AgeSeconds
		}
		if e.TargetUtilization != nil {
			s.TargetUtilization = e.TargetUtilization.Value
			s.TargetIsFallback = e.TargetUtilization.IsFallback
		}
		out = append(out, s)
	}
	return out
}
