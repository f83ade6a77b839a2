package entity

// RiskTagKey identifies a human-facing badge derived from a dimension's
// risk level
type RiskTagKey string

const (
	// Activity tags
	TagOrganicGrowth    RiskTagKey = "ORGANIC_GROWTH"
	TagModerateActivity RiskTagKey = "MODERATE_ACTIVITY"
	TagLowActivity      RiskTagKey = "LOW_ACTIVITY"

	// Holder tags
	TagDistributed          RiskTagKey = "DISTRIBUTED"
	TagConcentrated         RiskTagKey = "CONCENTRATED"
	TagWhaleControlled      RiskTagKey = "WHALE_CONTROLLED"
	TagExtremeConcentration RiskTagKey = "EXTREME_CONCENTRATION"

	// Permission tags
	TagSafeContract RiskTagKey = "SAFE_CONTRACT"
	TagLimitedRisk  RiskTagKey = "LIMITED_RISK"
	TagRugRisk      RiskTagKey = "RUG_RISK"
)

// RiskTag is a tag key with its presentation metadata resolved
type RiskTag struct {
	Key      RiskTagKey `json:"key"`
	Label    string     `json:"label"`
	Type     string     `json:"type"`     // success | warning | danger
	Category string     `json:"category"` // activity | holder | permission
}

var riskTagConfigs = map[RiskTagKey]RiskTag{
	TagOrganicGrowth:        {Key: TagOrganicGrowth, Label: "Organic Growth", Type: "success", Category: "activity"},
	TagModerateActivity:     {Key: TagModerateActivity, Label: "Moderate Activity", Type: "warning", Category: "activity"},
	TagLowActivity:          {Key: TagLowActivity, Label: "Low Activity", Type: "danger", Category: "activity"},
	TagDistributed:          {Key: TagDistributed, Label: "Well Distributed", Type: "success", Category: "holder"},
	TagConcentrated:         {Key: TagConcentrated, Label: "Concentrated", Type: "warning", Category: "holder"},
	TagWhaleControlled:      {Key: TagWhaleControlled, Label: "Whale Controlled", Type: "danger", Category: "holder"},
	TagExtremeConcentration: {Key: TagExtremeConcentration, Label: "Extreme Concentration", Type: "danger", Category: "holder"},
	TagSafeContract:         {Key: TagSafeContract, Label: "Safe Contract", Type: "success", Category: "permission"},
	TagLimitedRisk:          {Key: TagLimitedRisk, Label: "Limited Risk", Type: "warning", Category: "permission"},
	TagRugRisk:              {Key: TagRugRisk, Label: "Rug Risk", Type: "danger", Category: "permission"},
}

var activityTags = map[RiskLevel]RiskTagKey{
	RiskLevelLow:    TagOrganicGrowth,
	RiskLevelMedium: TagModerateActivity,
	RiskLevelHigh:   TagLowActivity,
}

var holderTags = map[RiskLevel]RiskTagKey{
	RiskLevelLow:     TagDistributed,
	RiskLevelMedium:  TagConcentrated,
	RiskLevelHigh:    TagWhaleControlled,
	RiskLevelExtreme: TagExtremeConcentration,
}

var permissionTags = map[RiskLevel]RiskTagKey{
	RiskLevelLow:    TagSafeContract,
	RiskLevelMedium: TagLimitedRisk,
	RiskLevelHigh:   TagRugRisk,
}

// GenerateRiskTags maps per-dimension risk levels to badges. Tags are
// additive across dimensions and ordering is fixed: activity, holder,
// permission. Unknown levels produce no tag.
func GenerateRiskTags(eoa, holder, permission RiskLevel) []RiskTag {
	tags := make([]RiskTag, 0, 3)
	if key, ok := activityTags[eoa]; ok {
		tags = append(tags, riskTagConfigs[key])
	}
	if key, ok := holderTags[holder]; ok {
		tags = append(tags, riskTagConfigs[key])
	}
	if key, ok := permissionTags[permission]; ok {
		tags = append(tags, riskTagConfigs[key])
	}
	return tags
}
