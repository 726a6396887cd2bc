package risk

import (
	"math"

	"VaultRisk/internal/domain/models"
	domsvc "VaultRisk/internal/domain/service"
	"VaultRisk/pkg/fixedpoint"
)

// Scorer combines a market's state with its resolved oracle and IRM facts.
// It is pure: every missing input is mapped to a fixed default before the
// weighted sum, so Score never fails.
type Scorer struct {
	params ScoringParams
}

// NewScorer builds a scorer. Params are expected to be validated by the
// caller (config loading does so).
func NewScorer(params ScoringParams) *Scorer {
	return &Scorer{params: params}
}

func (s *Scorer) Params() ScoringParams { return s.params }

// Score expects a non-idle market whose figures passed MarketState.Validate.
func (s *Scorer) Score(m models.MarketState, oracle models.OracleTimestampData, target models.TargetUtilization) models.RiskScoreResult {
	res := models.RiskScoreResult{
		LiquidationHeadroomScore: s.HeadroomScore(m),
		UtilizationScore:         s.UtilizationScore(m, target),
		CoverageRatioScore:       s.CoverageScore(m),
		OracleScore:              s.OracleScore(oracle),
	}
	w := s.params.Weights
	total := w.Headroom*res.LiquidationHeadroomScore +
		w.Utilization*res.UtilizationScore +
		w.Coverage*res.CoverageRatioScore +
		w.Oracle*res.OracleScore
	res.MarketRiskScore = fixedpoint.Clamp(total, 0, 100)
	res.Grade = s.params.Grades.Grade(res.MarketRiskScore)
	return res
}

// Utilization returns borrow/supply in [0,1]; zero supply is zero utilization.
func Utilization(m models.MarketState) float64 {
	return fixedpoint.Ratio(m.BorrowAssetsUSD, m.SupplyAssetsUSD)
}

// UtilizationScore is 100*(1-|actual-target|).
func (s *Scorer) UtilizationScore(m models.MarketState, target models.TargetUtilization) float64 {
	t := fixedpoint.Clamp01(target.Value)
	return fixedpoint.Clamp(100*(1-math.Abs(Utilization(m)-t)), 0, 100)
}

// EffectiveLTV returns borrow/collateral in [0,1]. Borrow against no
// collateral saturates at 1; no borrow is 0.
func EffectiveLTV(m models.MarketState) float64 {
	if m.BorrowAssetsUSD > 0 && m.CollateralAssetsUSD <= 0 {
		return 1
	}
	return fixedpoint.Ratio(m.BorrowAssetsUSD, m.CollateralAssetsUSD)
}

// HeadroomScore is 100*(lltv-ltv)/lltv, or the neutral score without an lltv.
func (s *Scorer) HeadroomScore(m models.MarketState) float64 {
	lltv := fixedpoint.DecToFloat(fixedpoint.ClampDec01(fixedpoint.WadToDec(m.LLTV)))
	if lltv <= 0 {
		return s.params.HeadroomNeutralScore
	}
	headroom := fixedpoint.Clamp(lltv-EffectiveLTV(m), 0, lltv)
	return fixedpoint.Clamp(100*headroom/lltv, 0, 100)
}

// CoverageScore rises linearly from 0 at 1x collateral/borrow to 100 at the
// saturation multiple. A market without borrow has nothing to cover.
func (s *Scorer) CoverageScore(m models.MarketState) float64 {
	if m.BorrowAssetsUSD <= 0 {
		return 100
	}
	coverage := fixedpoint.Quotient(m.CollateralAssetsUSD, m.BorrowAssetsUSD)
	sat := s.params.CoverageSaturation
	return fixedpoint.Clamp(100*(coverage-1)/(sat-1), 0, 100)
}

// OracleScore is 100 up to the fresh threshold, 0 from the stale threshold,
// linear in between. Unknown ages get the configured conservative score.
func (s *Scorer) OracleScore(d models.OracleTimestampData) float64 {
	if !d.Known() {
		return s.params.OracleUnknownScore
	}
	age := float64(*d.AgeSeconds)
	fresh := s.params.OracleFresh.Seconds()
	stale := s.params.OracleStale.Seconds()
	switch {
	case age <= fresh:
		return 100
	case age >= stale:
		return 0
	default:
		return fixedpoint.Clamp(100*(stale-age)/(stale-fresh), 0, 100)
	}
}

var _ domsvc.MarketScorer = (*Scorer)(nil)
