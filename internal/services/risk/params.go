package risk

import (
	"errors"
	"fmt"
	"math"
	"time"

	"VaultRisk/internal/domain/models"
)

var ErrInvalidParams = errors.New("invalid scoring parameters")

const weightSumTolerance = 1e-9

// Weights combine the four sub-scores. They must be non-negative and sum to 1.
type Weights struct {
	Headroom    float64 `yaml:"headroom" json:"headroom"`
	Utilization float64 `yaml:"utilization" json:"utilization"`
	Coverage    float64 `yaml:"coverage" json:"coverage"`
	Oracle      float64 `yaml:"oracle" json:"oracle"`
}

func (w Weights) Sum() float64 { return w.Headroom + w.Utilization + w.Coverage + w.Oracle }

// ScoringParams holds every tunable of the scorer.
type ScoringParams struct {
	Weights Weights `yaml:"weights" json:"weights"`

	// Coverage (collateral/borrow) at or above which the coverage score is 100.
	CoverageSaturation float64 `yaml:"coverage_saturation" json:"coverage_saturation"`

	OracleFresh        time.Duration `yaml:"oracle_fresh" json:"oracle_fresh"`
	OracleStale        time.Duration `yaml:"oracle_stale" json:"oracle_stale"`
	OracleUnknownScore float64       `yaml:"oracle_unknown_score" json:"oracle_unknown_score"`

	// Used when the market has no LLTV to measure headroom against.
	HeadroomNeutralScore float64 `yaml:"headroom_neutral_score" json:"headroom_neutral_score"`

	DefaultTargetUtilization float64 `yaml:"default_target_utilization" json:"default_target_utilization"`

	Grades GradeScale `yaml:"grades" json:"grades"`
}

// DefaultScoringParams returns equal weights and the baseline thresholds.
func DefaultScoringParams() ScoringParams {
	return ScoringParams{
		Weights:                  Weights{Headroom: 0.25, Utilization: 0.25, Coverage: 0.25, Oracle: 0.25},
		CoverageSaturation:       2.0,
		OracleFresh:              time.Hour,
		OracleStale:              24 * time.Hour,
		OracleUnknownScore:       40,
		HeadroomNeutralScore:     50,
		DefaultTargetUtilization: 0.90,
		Grades:                   DefaultGradeScale(),
	}
}

// Validate checks the parameter set as a whole.
func (p ScoringParams) Validate() error {
	w := p.Weights
	for name, v := range map[string]float64{
		"headroom": w.Headroom, "utilization": w.Utilization, "coverage": w.Coverage, "oracle": w.Oracle,
	} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: weight %s is %v", ErrInvalidParams, name, v)
		}
	}
	if math.Abs(w.Sum()-1) > weightSumTolerance {
		return fmt.Errorf("%w: weights sum to %v, want 1", ErrInvalidParams, w.Sum())
	}
	if p.CoverageSaturation <= 1 {
		return fmt.Errorf("%w: coverage_saturation must be > 1, got %v", ErrInvalidParams, p.CoverageSaturation)
	}
	if p.OracleFresh < 0 || p.OracleStale <= p.OracleFresh {
		return fmt.Errorf("%w: need 0 <= oracle_fresh < oracle_stale, got %s / %s", ErrInvalidParams, p.OracleFresh, p.OracleStale)
	}
	if !inScoreRange(p.OracleUnknownScore) || !inScoreRange(p.HeadroomNeutralScore) {
		return fmt.Errorf("%w: fixed scores must be within [0,100]", ErrInvalidParams)
	}
	if p.DefaultTargetUtilization < 0 || p.DefaultTargetUtilization > 1 {
		return fmt.Errorf("%w: default_target_utilization must be within [0,1], got %v", ErrInvalidParams, p.DefaultTargetUtilization)
	}
	return p.Grades.Validate()
}

// FallbackTargetUtilization is what the IRM resolver returns on any failure.
func (p ScoringParams) FallbackTargetUtilization() models.TargetUtilization {
	return models.TargetUtilization{Value: p.DefaultTargetUtilization, IsFallback: true}
}

func inScoreRange(v float64) bool { return v >= 0 && v <= 100 }
