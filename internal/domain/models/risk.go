package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// OracleTimestampData is the freshness of a market oracle. All fields are nil
// when the oracle could not be read.
type OracleTimestampData struct {
	ChainlinkAddress *common.Address `json:"chainlinkAddress"`
	UpdatedAt        *int64          `json:"updatedAt"`
	AgeSeconds       *int64          `json:"ageSeconds"`
}

// UnknownOracleData is the all-null result.
func UnknownOracleData() OracleTimestampData { return OracleTimestampData{} }

// NewOracleTimestampData derives the age from updatedAt. Clock skew that puts
// updatedAt in the future yields age 0.
func NewOracleTimestampData(feed common.Address, updatedAt int64, now time.Time) OracleTimestampData {
	age := now.Unix() - updatedAt
	if age < 0 {
		age = 0
	}
	return OracleTimestampData{
		ChainlinkAddress: NonZeroAddress(feed),
		UpdatedAt:        &updatedAt,
		AgeSeconds:       &age,
	}
}

// Known reports whether an age is available.
func (d OracleTimestampData) Known() bool { return d.AgeSeconds != nil }

type TargetUtilization struct {
	Value      float64 `json:"value"`
	IsFallback bool    `json:"isFallback"`
}

type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// Grades lists every grade, best first.
var Grades = []Grade{GradeA, GradeB, GradeC, GradeD, GradeF}

// RiskScoreResult holds sub-scores in [0,100], higher meaning safer.
type RiskScoreResult struct {
	LiquidationHeadroomScore float64 `json:"liquidationHeadroomScore"`
	UtilizationScore         float64 `json:"utilizationScore"`
	CoverageRatioScore       float64 `json:"coverageRatioScore"`
	OracleScore              float64 `json:"oracleScore"`
	MarketRiskScore          float64 `json:"marketRiskScore"`
	Grade                    Grade   `json:"grade"`
}
