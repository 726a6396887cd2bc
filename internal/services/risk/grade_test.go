package risk

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VaultRisk/internal/domain/models"
)

func TestGradeScaleTotal(t *testing.T) {
	scale := DefaultGradeScale()
	require.NoError(t, scale.Validate())

	counts := map[models.Grade]int{}
	for i := 0; i <= 10_000; i++ {
		score := float64(i) / 100
		g := scale.Grade(score)

		matched := 0
		for _, b := range scale.Bands {
			if g == b.Grade {
				matched++
			}
		}
		if g == scale.Floor {
			matched++
		}
		require.Equal(t, 1, matched, "score %.2f", score)
		counts[g]++
	}
	for _, g := range models.Grades {
		assert.Positive(t, counts[g], "grade %s never produced", g)
	}
}

func TestGradeBoundaries(t *testing.T) {
	scale := DefaultGradeScale()
	tests := []struct {
		score float64
		want  models.Grade
	}{
		{100, models.GradeA},
		{85, models.GradeA},
		{84.99, models.GradeB},
		{70, models.GradeB},
		{69.99, models.GradeC},
		{50, models.GradeC},
		{49.99, models.GradeD},
		{30, models.GradeD},
		{29.99, models.GradeF},
		{0, models.GradeF},
		{-5, models.GradeF},
		{150, models.GradeA},
		{math.NaN(), models.GradeF},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scale.Grade(tt.score), "score %v", tt.score)
	}
}

func TestGradeScaleValidate(t *testing.T) {
	tests := []struct {
		name  string
		scale GradeScale
	}{
		{"no floor", GradeScale{Bands: DefaultGradeScale().Bands}},
		{"overlapping", GradeScale{Floor: models.GradeF, Bands: []GradeBand{{models.GradeA, 70}, {models.GradeB, 70}}}},
		{"ascending", GradeScale{Floor: models.GradeF, Bands: []GradeBand{{models.GradeA, 50}, {models.GradeB, 70}}}},
		{"duplicate grade", GradeScale{Floor: models.GradeF, Bands: []GradeBand{{models.GradeA, 80}, {models.GradeA, 60}}}},
		{"floor reused", GradeScale{Floor: models.GradeA, Bands: []GradeBand{{models.GradeA, 80}}}},
		{"out of range", GradeScale{Floor: models.GradeF, Bands: []GradeBand{{models.GradeA, 120}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.scale.Validate(), ErrInvalidParams)
		})
	}
}

func TestScoringParamsValidate(t *testing.T) {
	require.NoError(t, DefaultScoringParams().Validate())

	tests := []struct {
		name   string
		mutate func(p *ScoringParams)
	}{
		{"weights do not sum to one", func(p *ScoringParams) { p.Weights.Oracle = 0.5 }},
		{"negative weight", func(p *ScoringParams) { p.Weights = Weights{Headroom: 1.5, Oracle: -0.5} }},
		{"saturation at one", func(p *ScoringParams) { p.CoverageSaturation = 1 }},
		{"stale before fresh", func(p *ScoringParams) { p.OracleStale = 30 * time.Minute }},
		{"unknown score out of range", func(p *ScoringParams) { p.OracleUnknownScore = 140 }},
		{"default target above one", func(p *ScoringParams) { p.DefaultTargetUtilization = 1.2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultScoringParams()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidParams)
		})
	}
}

func TestFallbackTargetUtilization(t *testing.T) {
	p := DefaultScoringParams()
	tu := p.FallbackTargetUtilization()
	assert.True(t, tu.IsFallback)
	assert.Equal(t, 0.90, tu.Value)
}
