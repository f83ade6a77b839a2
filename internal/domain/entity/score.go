package entity

import (
	"time"
)

// RiskLevel represents the risk classification of a dimension or a token
type RiskLevel string

const (
	RiskLevelLow     RiskLevel = "low_risk"
	RiskLevelMedium  RiskLevel = "medium_risk"
	RiskLevelHigh    RiskLevel = "high_risk"
	RiskLevelExtreme RiskLevel = "extreme_risk"
	RiskLevelUnknown RiskLevel = "unknown"
)

// Analyzer score ceilings. Together they bound the total to 100.
const (
	MaxScoreActivity   = 40.0
	MaxScoreHolder     = 30.0
	MaxScorePermission = 30.0
)

// DataSource tags report where a dimension's data actually came from
const (
	DataSourceFast  = "fast"
	DataSourceDeep  = "deep"
	DataSourceError = "error"
)

// AnalysisMode selects the data-acquisition path for a scoring request
type AnalysisMode string

const (
	ModeAuto AnalysisMode = "auto"
	ModeFast AnalysisMode = "fast"
	ModeDeep AnalysisMode = "deep"
)

// AnalyzerResult is the immutable outcome of a single dimension analyzer.
// Score is always within [0, MaxScore], even on partial or missing data.
type AnalyzerResult struct {
	Score      float64        `json:"score"`
	MaxScore   float64        `json:"max_score"`
	RiskLevel  RiskLevel      `json:"risk_level"`
	DataSource string         `json:"data_source"`
	Metrics    map[string]any `json:"metrics,omitempty"`
	Err        string         `json:"error,omitempty"`
}

// BlockRange records the block window a deep analysis covered
type BlockRange struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// ScoreResult is the composite scoring outcome for one token. It is
// constructed once by the aggregator and never mutated afterwards.
type ScoreResult struct {
	TokenAddress string         `json:"token_address"`
	Timestamp    time.Time      `json:"timestamp"`
	Mode         AnalysisMode   `json:"analysis_mode"`
	BlockRange   *BlockRange    `json:"block_range,omitempty"`
	EOA          AnalyzerResult `json:"eoa"`
	Holder       AnalyzerResult `json:"holder"`
	Permission   AnalyzerResult `json:"permission"`
	TotalScore   float64        `json:"total_score"`
	RiskLevel    RiskLevel      `json:"risk_level"`
	RiskTags     []RiskTag      `json:"risk_tags"`
}

// OverallRiskLevel derives the token-level risk from a total score
func OverallRiskLevel(totalScore float64) RiskLevel {
	switch {
	case totalScore >= 80:
		return RiskLevelLow
	case totalScore >= 60:
		return RiskLevelMedium
	case totalScore >= 40:
		return RiskLevelHigh
	default:
		return RiskLevelExtreme
	}
}

// RiskLevelDisplay carries presentation metadata for a risk level
type RiskLevelDisplay struct {
	Label   string `json:"label"`
	Color   string `json:"color"`
	BgColor string `json:"bg_color"`
	Icon    string `json:"icon"`
}

var riskLevelDisplays = map[RiskLevel]RiskLevelDisplay{
	RiskLevelLow:     {Label: "Low Risk", Color: "#22c55e", BgColor: "#dcfce7", Icon: "shield-check"},
	RiskLevelMedium:  {Label: "Medium Risk", Color: "#eab308", BgColor: "#fef9c3", Icon: "alert-triangle"},
	RiskLevelHigh:    {Label: "High Risk", Color: "#f97316", BgColor: "#ffedd5", Icon: "alert-circle"},
	RiskLevelExtreme: {Label: "Extreme Risk", Color: "#ef4444", BgColor: "#fee2e2", Icon: "x-circle"},
	RiskLevelUnknown: {Label: "Unknown", Color: "#6b7280", BgColor: "#f3f4f6", Icon: "help-circle"},
}

// Display returns presentation metadata for the risk level
func (rl RiskLevel) Display() RiskLevelDisplay {
	if d, ok := riskLevelDisplays[rl]; ok {
		return d
	}
	return riskLevelDisplays[RiskLevelUnknown]
}
