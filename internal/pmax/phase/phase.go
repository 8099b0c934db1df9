// Package phase tracks campaign progression through lifecycle phases.
//
// The manager is pure: eligibility and progress checks take a metrics
// snapshot and explicit dates, and return structured results without touching
// any external state.
package phase

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lrdigital/pmax-steward/internal/pmax"
)

// ProgressionPath identifies which requirement path unlocked a transition.
type ProgressionPath string

const (
	// PathStandard is the conversion-volume progression path.
	PathStandard ProgressionPath = "standard"
	// PathTimeBased is the elapsed-time progression path for slow accumulators.
	PathTimeBased ProgressionPath = "time_based"
	// PathNone means no full requirement set is satisfied.
	PathNone ProgressionPath = "none"
)

// Phase1Requirements gates the Phase 1 to Phase 2 transition.
type Phase1Requirements struct {
	// Standard path.
	MinConversions      int
	MinDays             int
	CPLStabilityPercent float64
	NoChangesDays       int
	// Time-based path.
	TimeBasedMinDays        int
	TimeBasedMinConversions int
	TimeBasedMaxCPLIncrease float64
}

// Phase2Requirements gates the Phase 2 to Phase 3 transition.
type Phase2Requirements struct {
	MinTCPADays      int
	CPLMin           float64
	CPLMax           float64
	LeadQualityRatio float64
	PacingRatio      float64
}

// Timeline holds the expected and maximum duration of one phase in days.
type Timeline struct {
	ExpectedDays int
	MaxDays      int
}

// Config holds phase requirements and timelines. Immutable once handed to a
// Manager.
type Config struct {
	Phase1          Phase1Requirements
	Phase2          Phase2Requirements
	Timelines       map[pmax.Phase]Timeline
	GracePeriodDays int
}

// DefaultConfig returns the compiled-in phase requirements and timelines.
func DefaultConfig() Config {
	return Config{
		Phase1: Phase1Requirements{
			MinConversions:          30,
			MinDays:                 14,
			CPLStabilityPercent:     20,
			NoChangesDays:           7,
			TimeBasedMinDays:        60,
			TimeBasedMinConversions: 15,
			TimeBasedMaxCPLIncrease: 20,
		},
		Phase2: Phase2Requirements{
			MinTCPADays:      30,
			CPLMin:           80,
			CPLMax:           150,
			LeadQualityRatio: 0.05,
			PacingRatio:      0.8,
		},
		Timelines: map[pmax.Phase]Timeline{
			pmax.Phase1: {ExpectedDays: 21, MaxDays: 35},
			pmax.Phase2: {ExpectedDays: 45, MaxDays: 70},
			pmax.Phase3: {ExpectedDays: 90, MaxDays: 365},
		},
		GracePeriodDays: 3,
	}
}

// EligibilityResult is the structured outcome of one eligibility check.
//
// Invariant: EligibleForNext is true only when at least one progression
// path's full requirement set is satisfied.
type EligibilityResult struct {
	EligibleForNext   bool
	RecommendedAction string
	// Details echoes every sub-condition for diagnostics, keyed by
	// requirement name.
	Details         map[string]any
	ProgressionPath ProgressionPath
	BlockingFactors []string
}

// ProgressResult is the structured outcome of one progress check.
//
// Invariant: LagAlert implies Lagging.
type ProgressResult struct {
	Lagging     bool
	LagAlert    bool
	DaysInPhase int
	Message     string
}

// Manager evaluates phase eligibility and progress against its config.
type Manager struct {
	cfg Config
}

// NewManager creates a manager bound to an immutable config.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// CheckEligibility reports whether a campaign may progress out of the given
// phase. Conversion hygiene is validated first: a broken primary conversion
// mapping short-circuits every gate.
func (m *Manager) CheckEligibility(metrics pmax.Metrics, current pmax.Phase) EligibilityResult {
	if reason, ok := conversionHygiene(metrics); !ok {
		return EligibilityResult{
			RecommendedAction: "fix conversion mapping: " + reason,
			Details: map[string]any{
				"conversion_hygiene_ok": false,
			},
			ProgressionPath: PathNone,
			BlockingFactors: []string{reason},
		}
	}

	switch current {
	case pmax.Phase1:
		return m.checkPhase1Eligibility(metrics)
	case pmax.Phase2:
		return m.checkPhase2Eligibility(metrics)
	case pmax.Phase3:
		return m.checkPhase3Status(metrics)
	default:
		return EligibilityResult{
			RecommendedAction: fmt.Sprintf("unknown phase: %s", current.Label()),
			Details:           map[string]any{},
			ProgressionPath:   PathNone,
		}
	}
}

// CheckProgress reports whether a campaign is lagging in its phase. The grace
// period absorbs borderline timing so alerts are not noisy.
func (m *Manager) CheckProgress(startDate, today time.Time, current pmax.Phase, eligibility EligibilityResult) ProgressResult {
	daysInPhase := int(today.Sub(startDate).Hours() / 24)
	timeline, ok := m.cfg.Timelines[current]
	if !ok {
		timeline = Timeline{ExpectedDays: 30, MaxDays: 60}
	}
	grace := m.cfg.GracePeriodDays

	switch {
	case daysInPhase <= timeline.ExpectedDays:
		return ProgressResult{
			DaysInPhase: daysInPhase,
			Message: fmt.Sprintf(
				"%s progressing normally: day %d of %d expected",
				current.Label(), daysInPhase, timeline.ExpectedDays,
			),
		}
	case daysInPhase <= timeline.ExpectedDays+grace:
		return ProgressResult{
			DaysInPhase: daysInPhase,
			Message: fmt.Sprintf(
				"%s slightly behind: day %d, %d over expected (within grace period)",
				current.Label(), daysInPhase, daysInPhase-timeline.ExpectedDays,
			),
		}
	case daysInPhase <= timeline.MaxDays:
		return ProgressResult{
			Lagging:     true,
			DaysInPhase: daysInPhase,
			Message: fmt.Sprintf(
				"%s lagging: day %d, %d past expected completion. %s",
				current.Label(), daysInPhase, daysInPhase-timeline.ExpectedDays,
				lagDetail(eligibility),
			),
		}
	default:
		return ProgressResult{
			Lagging:     true,
			LagAlert:    true,
			DaysInPhase: daysInPhase,
			Message: fmt.Sprintf(
				"CRITICAL: %s exceeded maximum duration by %d days (day %d of max %d). %s",
				current.Label(), daysInPhase-timeline.MaxDays, daysInPhase, timeline.MaxDays,
				lagDetail(eligibility),
			),
		}
	}
}

func (m *Manager) checkPhase1Eligibility(metrics pmax.Metrics) EligibilityResult {
	req := m.cfg.Phase1
	var blocking []string

	cplVariation := cplStabilityPercent(metrics)

	conversionsOK := metrics.Conversions30d >= req.MinConversions
	ageOK := metrics.CampaignAgeDays >= req.MinDays
	cplStable := cplVariation <= req.CPLStabilityPercent
	noRecentChanges := metrics.DaysSinceLastChange >= req.NoChangesDays
	standardMet := conversionsOK && ageOK && cplStable && noRecentChanges

	perfStable := performanceStable(metrics, req.TimeBasedMaxCPLIncrease)
	timeBasedAgeOK := metrics.CampaignAgeDays >= req.TimeBasedMinDays
	timeBasedConversionsOK := metrics.Conversions30d >= req.TimeBasedMinConversions
	timeBasedMet := timeBasedAgeOK && timeBasedConversionsOK && perfStable

	if !standardMet {
		if !conversionsOK {
			blocking = append(blocking, fmt.Sprintf(
				"insufficient conversions: %d/%d", metrics.Conversions30d, req.MinConversions,
			))
		}
		if !ageOK {
			blocking = append(blocking, fmt.Sprintf(
				"campaign too new: %d/%d days", metrics.CampaignAgeDays, req.MinDays,
			))
		}
		if !cplStable {
			blocking = append(blocking, fmt.Sprintf(
				"CPL unstable: %.1f%% variation (max %.0f%%)", cplVariation, req.CPLStabilityPercent,
			))
		}
		if !noRecentChanges {
			blocking = append(blocking, fmt.Sprintf(
				"recent change %d days ago (min %d days)", metrics.DaysSinceLastChange, req.NoChangesDays,
			))
		}
	}
	if !timeBasedMet {
		if !timeBasedAgeOK {
			blocking = append(blocking, fmt.Sprintf(
				"time-based path: campaign too new: %d/%d days", metrics.CampaignAgeDays, req.TimeBasedMinDays,
			))
		}
		if !timeBasedConversionsOK {
			blocking = append(blocking, fmt.Sprintf(
				"time-based path: insufficient conversions: %d/%d", metrics.Conversions30d, req.TimeBasedMinConversions,
			))
		}
		if !perfStable {
			blocking = append(blocking, "time-based path: performance not stable")
		}
	}

	eligible := standardMet || timeBasedMet
	path := PathNone
	action := "continue Phase 1 optimization - address blocking factors"
	switch {
	case standardMet:
		path = PathStandard
		action = "safe to introduce tCPA at $100-$150 (standard progression)"
	case timeBasedMet:
		path = PathTimeBased
		action = "safe to introduce tCPA at $100-$150 (time-based progression)"
	}

	return EligibilityResult{
		EligibleForNext:   eligible,
		RecommendedAction: action,
		Details: map[string]any{
			"conversion_hygiene_ok":  true,
			"standard_condition":     standardMet,
			"time_based_condition":   timeBasedMet,
			"conversions":            conversionsOK,
			"campaign_age":           ageOK,
			"cpl_stability":          cplStable,
			"cpl_variation_percent":  cplVariation,
			"no_recent_changes":      noRecentChanges,
			"time_based_age":         timeBasedAgeOK,
			"time_based_conversions": timeBasedConversionsOK,
			"performance_stable":     perfStable,
			"conversions_30d":        metrics.Conversions30d,
			"campaign_age_days":      metrics.CampaignAgeDays,
			"days_since_last_change": metrics.DaysSinceLastChange,
		},
		ProgressionPath: path,
		BlockingFactors: blocking,
	}
}

func (m *Manager) checkPhase2Eligibility(metrics pmax.Metrics) EligibilityResult {
	req := m.cfg.Phase2
	var blocking []string

	tcpaDurationOK := metrics.DaysUnderTargetCPA >= req.MinTCPADays
	if !tcpaDurationOK {
		blocking = append(blocking, fmt.Sprintf(
			"insufficient tCPA time: %d/%d days", metrics.DaysUnderTargetCPA, req.MinTCPADays,
		))
	}

	cplInRange := metrics.CPL30d >= req.CPLMin && metrics.CPL30d <= req.CPLMax
	if !cplInRange {
		if metrics.CPL30d < req.CPLMin {
			blocking = append(blocking, fmt.Sprintf(
				"CPL too low: $%.2f (min $%.2f)", metrics.CPL30d, req.CPLMin,
			))
		} else {
			blocking = append(blocking, fmt.Sprintf(
				"CPL too high: $%.2f (max $%.2f)", metrics.CPL30d, req.CPLMax,
			))
		}
	}

	leadQualityOK := metrics.LeadQualityRatio >= req.LeadQualityRatio
	if !leadQualityOK {
		blocking = append(blocking, fmt.Sprintf(
			"low lead quality: %.1f%% of leads tagged serious (min %.1f%%)",
			metrics.LeadQualityRatio*100, req.LeadQualityRatio*100,
		))
	}

	pacingOK := metrics.PacingRatio >= req.PacingRatio
	if !pacingOK {
		blocking = append(blocking, fmt.Sprintf(
			"pacing constrained: %.0f%% of budget delivered (min %.0f%%)",
			metrics.PacingRatio*100, req.PacingRatio*100,
		))
	}

	eligible := len(blocking) == 0
	action := "continue Phase 2 optimization - address blocking factors"
	path := PathNone
	if eligible {
		action = "safe to scale budget by +20-30%"
		path = PathStandard
	}

	return EligibilityResult{
		EligibleForNext:   eligible,
		RecommendedAction: action,
		Details: map[string]any{
			"conversion_hygiene_ok": true,
			"tcpa_duration":         tcpaDurationOK,
			"cpl_range":             cplInRange,
			"lead_quality":          leadQualityOK,
			"pacing_ok":             pacingOK,
			"days_under_tcpa":       metrics.DaysUnderTargetCPA,
			"cpl_30d":               metrics.CPL30d,
			"lead_quality_ratio":    metrics.LeadQualityRatio,
			"pacing_ratio":          metrics.PacingRatio,
		},
		ProgressionPath: path,
		BlockingFactors: blocking,
	}
}

// checkPhase3Status classifies a terminal-phase campaign. This exists for
// reporting symmetry; Phase 3 offers no further transition.
func (m *Manager) checkPhase3Status(metrics pmax.Metrics) EligibilityResult {
	req := m.cfg.Phase2
	var opportunities []string
	if metrics.CPL30d > req.CPLMax {
		opportunities = append(opportunities, "high CPL - consider tCPA adjustment")
	}
	if metrics.PacingRatio < req.PacingRatio {
		opportunities = append(opportunities, "pacing constrained - consider budget increase")
	}
	if metrics.LeadQualityRatio < req.LeadQualityRatio {
		opportunities = append(opportunities, "low lead quality - review targeting")
	}

	action := "optimizing"
	if len(opportunities) > 0 {
		action = "optimizing: " + strings.Join(opportunities, "; ")
	}

	return EligibilityResult{
		RecommendedAction: action,
		Details: map[string]any{
			"conversion_hygiene_ok":      true,
			"optimization_opportunities": opportunities,
			"cpl_30d":                    metrics.CPL30d,
			"pacing_ratio":               metrics.PacingRatio,
			"lead_quality_ratio":         metrics.LeadQualityRatio,
		},
		ProgressionPath: PathNone,
	}
}

// conversionHygiene validates the primary conversion mapping used by every
// phase gate: lead form submissions and phone calls, nothing else.
func conversionHygiene(metrics pmax.Metrics) (string, bool) {
	allowed := map[string]bool{"Lead Form Submission": true, "Phone Call": true}
	var invalid []string
	hasLeadForm := false
	for _, action := range metrics.PrimaryConversionActions {
		if !allowed[action] {
			invalid = append(invalid, action)
		}
		if action == "Lead Form Submission" {
			hasLeadForm = true
		}
	}
	if len(invalid) > 0 {
		return fmt.Sprintf("invalid primary conversions: %s", strings.Join(invalid, ", ")), false
	}
	if !hasLeadForm {
		return "Lead Form Submission must be a primary conversion", false
	}
	return "", true
}

// cplStabilityPercent compares 7-day CPL against the 30-day baseline. A zero
// baseline reads as stable: there is nothing to violate.
func cplStabilityPercent(metrics pmax.Metrics) float64 {
	if metrics.CPL30d == 0 {
		return 0
	}
	return math.Abs(metrics.CPL7d-metrics.CPL30d) / metrics.CPL30d * 100
}

// performanceStable reports whether CPL increase stays within the allowed
// percentage for time-based progression.
func performanceStable(metrics pmax.Metrics, maxIncreasePercent float64) bool {
	if metrics.CPL30d == 0 {
		return true
	}
	increase := (metrics.CPL7d - metrics.CPL30d) / metrics.CPL30d * 100
	return increase <= maxIncreasePercent
}

func lagDetail(eligibility EligibilityResult) string {
	if eligibility.EligibleForNext {
		return "eligible for next phase - proceed"
	}
	if len(eligibility.BlockingFactors) == 0 {
		return "address blocking factors"
	}
	return "blocking factors: " + strings.Join(eligibility.BlockingFactors, ", ")
}
