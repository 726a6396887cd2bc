package risk

import (
	"fmt"

	"VaultRisk/internal/domain/models"
	"VaultRisk/pkg/fixedpoint"
)

// GradeBand maps scores at or above Min to Grade.
type GradeBand struct {
	Grade models.Grade `yaml:"grade" json:"grade"`
	Min   float64      `yaml:"min" json:"min"`
}

// GradeScale is an ordered list of bands, strictly descending by Min.
// Scores below the last band get Floor.
type GradeScale struct {
	Bands []GradeBand  `yaml:"bands" json:"bands"`
	Floor models.Grade `yaml:"floor" json:"floor"`
}

func DefaultGradeScale() GradeScale {
	return GradeScale{
		Bands: []GradeBand{
			{Grade: models.GradeA, Min: 85},
			{Grade: models.GradeB, Min: 70},
			{Grade: models.GradeC, Min: 50},
			{Grade: models.GradeD, Min: 30},
		},
		Floor: models.GradeF,
	}
}

// Validate rejects overlapping, unordered or duplicate bands.
func (s GradeScale) Validate() error {
	if s.Floor == "" {
		return fmt.Errorf("%w: grade floor is required", ErrInvalidParams)
	}
	seen := map[models.Grade]bool{s.Floor: true}
	for i, b := range s.Bands {
		if b.Grade == "" {
			return fmt.Errorf("%w: band %d has no grade", ErrInvalidParams, i)
		}
		if seen[b.Grade] {
			return fmt.Errorf("%w: grade %s appears twice", ErrInvalidParams, b.Grade)
		}
		seen[b.Grade] = true
		if b.Min <= 0 || b.Min > 100 {
			return fmt.Errorf("%w: band %s min %v outside (0,100]", ErrInvalidParams, b.Grade, b.Min)
		}
		if i > 0 && b.Min >= s.Bands[i-1].Min {
			return fmt.Errorf("%w: band %s min %v is not below %v", ErrInvalidParams, b.Grade, b.Min, s.Bands[i-1].Min)
		}
	}
	return nil
}

// Grade returns the first band whose Min the score reaches.
func (s GradeScale) Grade(score float64) models.Grade {
	score = fixedpoint.Clamp(score, 0, 100)
	for _, b := range s.Bands {
		if score >= b.Min {
			return b.Grade
		}
	}
	return s.Floor
}
