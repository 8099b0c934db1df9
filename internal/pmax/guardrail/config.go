// Package guardrail enforces change safety for Performance Max campaigns.
//
// The engine is pure: given a change request, a metrics snapshot, and the
// current time it returns a structured verdict without touching any external
// state. Rejections are normal outcomes carried in the verdict, never errors.
package guardrail

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// BudgetLimits bounds daily budget adjustments.
type BudgetLimits struct {
	MinDaily             float64 `yaml:"min_daily"`
	MaxDaily             float64 `yaml:"max_daily"`
	MinAdjustmentPercent float64 `yaml:"min_adjustment_percent"`
	MaxAdjustmentPercent float64 `yaml:"max_adjustment_percent"`
	MinFrequencyDays     int     `yaml:"min_frequency_days"`
}

// TargetCPALimits bounds target CPA adjustments.
type TargetCPALimits struct {
	MinValue             float64 `yaml:"min_value"`
	MaxValue             float64 `yaml:"max_value"`
	MinAdjustmentPercent float64 `yaml:"min_adjustment_percent"`
	MaxAdjustmentPercent float64 `yaml:"max_adjustment_percent"`
	MinFrequencyDays     int     `yaml:"min_frequency_days"`
	MinConversions       int     `yaml:"min_conversions"`
}

// AssetRequirements holds the per-group asset format minimums.
type AssetRequirements struct {
	MinLogos1x1   int `yaml:"min_logos_1x1"`
	MinLogos4x1   int `yaml:"min_logos_4x1"`
	MinImages1911 int `yaml:"min_images_1_91x1"`
	MinImages1x1  int `yaml:"min_images_1x1"`
	MinVideos     int `yaml:"min_videos"`
	// AutoGenAllowed lets enabled video auto-generation satisfy MinVideos.
	AutoGenAllowed bool `yaml:"auto_gen_allowed"`
}

// GeoTargetingLimits bounds geo targeting changes.
type GeoTargetingLimits struct {
	PresenceOnlyRequired bool     `yaml:"presence_only_required"`
	PeriodDays           int      `yaml:"period_days"`
	RequiredExclusions   []string `yaml:"required_exclusions"`
}

// SafetyLimits holds stop-loss thresholds.
type SafetyLimits struct {
	SpendMultiplierThreshold float64 `yaml:"spend_multiplier_threshold"`
	ConversionDrySpellDays   int     `yaml:"conversion_dry_spell_days"`
}

// ChangeControls holds cross-cutting change cadence settings.
type ChangeControls struct {
	ChangeWindowHours   int `yaml:"change_window_hours"`
	OneLeverPerWeekDays int `yaml:"one_lever_per_week_days"`
}

// Config is the guardrail rulebook. It is immutable once handed to an Engine,
// which enables per-market overrides and deterministic tests.
type Config struct {
	BudgetLimits               BudgetLimits       `yaml:"budget_limits"`
	TargetCPALimits            TargetCPALimits    `yaml:"target_cpa_limits"`
	AssetRequirements          AssetRequirements  `yaml:"asset_requirements"`
	GeoTargetingLimits         GeoTargetingLimits `yaml:"geo_targeting_limits"`
	RequiredURLExclusions      []string           `yaml:"required_url_exclusions"`
	RequiredPrimaryConversions []string           `yaml:"required_primary_conversions"`
	SafetyLimits               SafetyLimits       `yaml:"safety_limits"`
	ChangeControls             ChangeControls     `yaml:"change_controls"`
}

// DefaultConfig returns the compiled-in rulebook for the real estate market.
func DefaultConfig() Config {
	return Config{
		BudgetLimits: BudgetLimits{
			MinDaily:             30,
			MaxDaily:             250,
			MinAdjustmentPercent: 20,
			MaxAdjustmentPercent: 30,
			MinFrequencyDays:     7,
		},
		TargetCPALimits: TargetCPALimits{
			MinValue:             80,
			MaxValue:             350,
			MinAdjustmentPercent: 10,
			MaxAdjustmentPercent: 15,
			MinFrequencyDays:     14,
			MinConversions:       30,
		},
		AssetRequirements: AssetRequirements{
			MinLogos1x1:    1,
			MinLogos4x1:    1,
			MinImages1911:  3,
			MinImages1x1:   3,
			MinVideos:      1,
			AutoGenAllowed: true,
		},
		GeoTargetingLimits: GeoTargetingLimits{
			PresenceOnlyRequired: true,
			PeriodDays:           21,
			RequiredExclusions:   []string{"India", "Pakistan", "Bangladesh", "Philippines"},
		},
		RequiredURLExclusions: []string{
			"/buyers/*",
			"/sellers/*",
			"/featured-listings/*",
			"/contact/*",
			"/blog/*",
			"/property-search/*",
			"/idx/*",
			"/privacy/*",
			"/about/*",
		},
		RequiredPrimaryConversions: []string{"Lead Form Submission", "Phone Call"},
		SafetyLimits: SafetyLimits{
			SpendMultiplierThreshold: 2,
			ConversionDrySpellDays:   14,
		},
		ChangeControls: ChangeControls{
			ChangeWindowHours:   2,
			OneLeverPerWeekDays: 7,
		},
	}
}

// LoadConfig reads a YAML rulebook overlaying the compiled defaults, so a
// partial file overrides only the limits it names. A missing file falls back
// to DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read guardrail config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse guardrail config: %w", err)
	}
	return cfg, nil
}
