package pmax

// GeoTargetingType describes how campaign geo targeting is evaluated.
type GeoTargetingType int

const (
	// GeoTargetingUnspecified represents a missing geo targeting type.
	GeoTargetingUnspecified GeoTargetingType = iota
	// GeoTargetingPresenceOnly restricts targeting to users physically in the area.
	GeoTargetingPresenceOnly
	// GeoTargetingPresenceOrInterest also targets users interested in the area.
	GeoTargetingPresenceOrInterest
)

// Label returns a stable label for a geo targeting type.
func (g GeoTargetingType) Label() string {
	switch g {
	case GeoTargetingPresenceOnly:
		return "PRESENCE_ONLY"
	case GeoTargetingPresenceOrInterest:
		return "PRESENCE_OR_INTEREST"
	default:
		return "UNSPECIFIED"
	}
}

// AssetGroupSnapshot captures asset inventory counts for one asset group.
type AssetGroupSnapshot struct {
	Name           string `json:"name"`
	Enabled        bool   `json:"enabled"`
	Logos1x1       int    `json:"logos_1x1"`
	Logos4x1       int    `json:"logos_4x1"`
	Images1911     int    `json:"images_1_91x1"`
	Images1x1      int    `json:"images_1x1"`
	VerticalVideos int    `json:"vertical_videos"`
	// AutoGenVideo reports whether video auto-generation is enabled for the
	// group, which substitutes for a missing vertical video.
	AutoGenVideo bool `json:"auto_gen_video"`
}

// Metrics is an immutable snapshot of campaign state supplied by the metrics
// provider for one evaluation pass. Optional ratio fields use zero to signal
// "no baseline available".
type Metrics struct {
	CampaignID  string  `json:"campaign_id"`
	DailyBudget float64 `json:"daily_budget"`
	// TargetCPA is nil before a tCPA bid strategy is introduced (pre Phase 2).
	TargetCPA *float64 `json:"target_cpa,omitempty"`

	Conversions7d  int     `json:"conversions_7d"`
	Conversions30d int     `json:"conversions_30d"`
	Cost7d         float64 `json:"cost_7d"`
	Cost14d        float64 `json:"cost_14d"`
	Cost30d        float64 `json:"cost_30d"`
	CPL7d          float64 `json:"cpl_7d"`
	CPL30d         float64 `json:"cpl_30d"`

	CampaignAgeDays         int `json:"campaign_age_days"`
	DaysSinceLastChange     int `json:"days_since_last_change"`
	DaysSinceBudgetChange   int `json:"days_since_budget_change"`
	DaysSinceTCPAChange     int `json:"days_since_tcpa_change"`
	DaysSinceGeoChange      int `json:"days_since_geo_change"`
	DaysSinceLastConversion int `json:"days_since_last_conversion"`
	DaysUnderTargetCPA      int `json:"days_under_target_cpa"`

	AssetGroups []AssetGroupSnapshot `json:"asset_groups"`

	GeoTargeting GeoTargetingType `json:"geo_targeting"`
	// PresenceExclusions lists countries excluded from presence targeting.
	PresenceExclusions []string `json:"presence_exclusions"`
	URLExclusions      []string `json:"url_exclusions"`
	// PrimaryConversionActions lists conversion actions configured as Primary.
	PrimaryConversionActions []string `json:"primary_conversion_actions"`
	PageFeedLinked           bool     `json:"page_feed_linked"`

	// LeadQualityRatio is the fraction of leads tagged "serious" by the CRM.
	LeadQualityRatio float64 `json:"lead_quality_ratio"`
	// PacingRatio is actual spend divided by budgeted spend.
	PacingRatio float64 `json:"pacing_ratio"`
}

// EnabledAssetGroups returns the snapshots for currently enabled asset groups.
func (m Metrics) EnabledAssetGroups() []AssetGroupSnapshot {
	var enabled []AssetGroupSnapshot
	for _, group := range m.AssetGroups {
		if group.Enabled {
			enabled = append(enabled, group)
		}
	}
	return enabled
}
