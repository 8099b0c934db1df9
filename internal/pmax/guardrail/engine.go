package guardrail

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lrdigital/pmax-steward/internal/pmax"
)

// Verdict is the structured outcome of one guardrail evaluation.
//
// Invariant: when Approved is false, ModifiedChange is nil, ExecuteAfter is
// zero, and Reasons is non-empty.
type Verdict struct {
	Approved bool
	// ModifiedChange is the validated change to execute. It differs from the
	// requested change only when a value was clamped to an aim boundary.
	ModifiedChange pmax.ChangeRequest
	Reasons        []string
	// ExecuteAfter is the end of the human intervention window.
	ExecuteAfter time.Time
	Alerts       []string
}

// Engine evaluates change requests against the guardrail rulebook.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine bound to an immutable rulebook.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the rulebook the engine evaluates against.
func (e *Engine) Config() Config {
	return e.cfg
}

// Evaluate produces a verdict for one change request against a metrics
// snapshot. Check ordering matters: stop-loss and hard invariants dominate so
// a campaign in a bad state cannot be further destabilized by an otherwise
// valid lever pull.
func (e *Engine) Evaluate(change pmax.ChangeRequest, metrics pmax.Metrics, now time.Time) Verdict {
	verdict := Verdict{}
	if change == nil {
		verdict.Reasons = append(verdict.Reasons, "change request is required")
		return verdict
	}

	if alert, ok := e.stopLoss(metrics); ok {
		verdict.Alerts = append(verdict.Alerts, alert)
		verdict.Reasons = append(verdict.Reasons, "safety stop-loss triggered: "+alert)
		return verdict
	}

	if reasons := e.hardInvariants(metrics); len(reasons) > 0 {
		verdict.Reasons = append(verdict.Reasons, reasons...)
		return verdict
	}

	if metrics.DaysSinceLastChange < e.cfg.ChangeControls.OneLeverPerWeekDays {
		verdict.Reasons = append(verdict.Reasons, fmt.Sprintf(
			"one lever per week: major change %d days ago (minimum %d days)",
			metrics.DaysSinceLastChange, e.cfg.ChangeControls.OneLeverPerWeekDays,
		))
		return verdict
	}

	var approvedChange pmax.ChangeRequest
	var reasons []string
	switch c := change.(type) {
	case pmax.BudgetAdjustment:
		approvedChange, reasons = e.checkBudget(c, metrics)
	case pmax.TargetCPAAdjustment:
		approvedChange, reasons = e.checkTargetCPA(c, metrics)
	case pmax.AssetGroupChange:
		approvedChange, reasons = e.checkAssetGroup(c, metrics)
	case pmax.GeoTargetingChange:
		approvedChange, reasons = e.checkGeoTargeting(c, metrics)
	default:
		verdict.Reasons = append(verdict.Reasons, fmt.Sprintf("unknown change kind: %s", change.Kind()))
		return verdict
	}

	verdict.Reasons = append(verdict.Reasons, reasons...)
	if approvedChange == nil {
		return verdict
	}

	verdict.Approved = true
	verdict.ModifiedChange = approvedChange
	verdict.ExecuteAfter = now.Add(time.Duration(e.cfg.ChangeControls.ChangeWindowHours) * time.Hour)
	return verdict
}

// Baseline runs the hard-invariant suite standalone for reporting, including
// per-group asset format checks. An empty result means the campaign baseline
// configuration is intact.
func (e *Engine) Baseline(metrics pmax.Metrics) []string {
	violations := e.hardInvariants(metrics)
	for _, group := range metrics.EnabledAssetGroups() {
		if missing := e.missingAssetFormats(group); len(missing) > 0 {
			violations = append(violations, fmt.Sprintf(
				"asset group %q below format minimums: %s", group.Name, strings.Join(missing, ", "),
			))
		}
	}
	return violations
}

// StopLoss reports the active safety stop-loss alert, if any, without
// evaluating a change. Reporting surfaces use it for daily recaps.
func (e *Engine) StopLoss(metrics pmax.Metrics) (string, bool) {
	return e.stopLoss(metrics)
}

// stopLoss reports the safety stop-loss alert, if any. The pause condition
// and the conversion drought both freeze all lever changes.
func (e *Engine) stopLoss(metrics pmax.Metrics) (string, bool) {
	if metrics.DailyBudget > 0 {
		threshold := metrics.DailyBudget * e.cfg.SafetyLimits.SpendMultiplierThreshold
		if metrics.Cost7d > threshold && metrics.Conversions7d == 0 {
			return fmt.Sprintf(
				"7-day spend $%.2f exceeds %.1fx daily budget with zero conversions - pause campaign",
				metrics.Cost7d, e.cfg.SafetyLimits.SpendMultiplierThreshold,
			), true
		}
	}
	if metrics.DaysSinceLastConversion >= e.cfg.SafetyLimits.ConversionDrySpellDays {
		return fmt.Sprintf(
			"conversion drought: no conversions in %d days (limit %d) - all lever changes frozen",
			metrics.DaysSinceLastConversion, e.cfg.SafetyLimits.ConversionDrySpellDays,
		), true
	}
	return "", false
}

// hardInvariants checks the campaign baseline rules that apply to every
// change. Missing hard-invariant fields fail restrictively: wrongly blocking
// a change is far cheaper than wrongly approving an unsafe one.
func (e *Engine) hardInvariants(metrics pmax.Metrics) []string {
	var reasons []string

	if !equalSets(metrics.PrimaryConversionActions, e.cfg.RequiredPrimaryConversions) {
		reasons = append(reasons, fmt.Sprintf(
			"primary conversion mapping must be exactly {%s}, found {%s}",
			strings.Join(e.cfg.RequiredPrimaryConversions, ", "),
			strings.Join(metrics.PrimaryConversionActions, ", "),
		))
	}

	if missing := missingFrom(e.cfg.RequiredURLExclusions, metrics.URLExclusions); len(missing) > 0 {
		reasons = append(reasons, fmt.Sprintf(
			"missing required URL exclusions: %s", strings.Join(missing, ", "),
		))
	}

	if e.cfg.GeoTargetingLimits.PresenceOnlyRequired && metrics.GeoTargeting != pmax.GeoTargetingPresenceOnly {
		reasons = append(reasons, fmt.Sprintf(
			"presence-only targeting is required, found %s", metrics.GeoTargeting.Label(),
		))
	}

	if missing := missingFrom(e.cfg.GeoTargetingLimits.RequiredExclusions, metrics.PresenceExclusions); len(missing) > 0 {
		reasons = append(reasons, fmt.Sprintf(
			"missing required presence exclusions: %s", strings.Join(missing, ", "),
		))
	}

	if !metrics.PageFeedLinked {
		reasons = append(reasons, "page feed is not linked")
	}

	return reasons
}

func (e *Engine) checkBudget(change pmax.BudgetAdjustment, metrics pmax.Metrics) (pmax.ChangeRequest, []string) {
	limits := e.cfg.BudgetLimits
	var reasons []string

	if change.OldDailyBudget <= 0 {
		return nil, []string{"current daily budget is required"}
	}
	if change.NewDailyBudget < limits.MinDaily {
		reasons = append(reasons, fmt.Sprintf(
			"budget $%.2f below minimum $%.2f", change.NewDailyBudget, limits.MinDaily,
		))
	}
	if change.NewDailyBudget > limits.MaxDaily {
		reasons = append(reasons, fmt.Sprintf(
			"budget $%.2f exceeds maximum $%.2f", change.NewDailyBudget, limits.MaxDaily,
		))
	}

	percent := adjustmentPercent(change.OldDailyBudget, change.NewDailyBudget)
	// Both band edges are strict for budgets: a too-small change is either
	// noise or an attempt to reset the cadence clock with a trivial change.
	if percent < limits.MinAdjustmentPercent {
		reasons = append(reasons, fmt.Sprintf(
			"budget adjustment %.1f%% below minimum %.1f%% - rejected as a no-op",
			percent, limits.MinAdjustmentPercent,
		))
	}
	if percent > limits.MaxAdjustmentPercent {
		reasons = append(reasons, fmt.Sprintf(
			"budget adjustment %.1f%% exceeds maximum %.1f%%",
			percent, limits.MaxAdjustmentPercent,
		))
	}

	if metrics.DaysSinceBudgetChange < limits.MinFrequencyDays {
		reasons = append(reasons, fmt.Sprintf(
			"budget changed %d days ago (minimum %d days)",
			metrics.DaysSinceBudgetChange, limits.MinFrequencyDays,
		))
	}

	if len(reasons) > 0 {
		return nil, reasons
	}
	return change, []string{"budget adjustment meets all guardrail requirements"}
}

func (e *Engine) checkTargetCPA(change pmax.TargetCPAAdjustment, metrics pmax.Metrics) (pmax.ChangeRequest, []string) {
	limits := e.cfg.TargetCPALimits
	var reasons []string

	if metrics.Conversions30d < limits.MinConversions {
		reasons = append(reasons, fmt.Sprintf(
			"insufficient conversions (%d < %d)", metrics.Conversions30d, limits.MinConversions,
		))
	}
	if change.OldTargetCPA <= 0 {
		reasons = append(reasons, "current target CPA is required")
		return nil, reasons
	}

	// Requested values outside the hard dollar bounds are always rejected;
	// clamping only softens the percentage ceiling.
	if change.NewTargetCPA < limits.MinValue {
		reasons = append(reasons, fmt.Sprintf(
			"target CPA $%.2f below minimum $%.2f", change.NewTargetCPA, limits.MinValue,
		))
	}
	if change.NewTargetCPA > limits.MaxValue {
		reasons = append(reasons, fmt.Sprintf(
			"target CPA $%.2f exceeds maximum $%.2f", change.NewTargetCPA, limits.MaxValue,
		))
	}

	adjusted := change
	clamped := false
	percent := adjustmentPercent(change.OldTargetCPA, change.NewTargetCPA)
	switch {
	case percent > limits.MaxAdjustmentPercent:
		bound := change.OldTargetCPA * limits.MaxAdjustmentPercent / 100
		if change.NewTargetCPA < change.OldTargetCPA {
			adjusted.NewTargetCPA = change.OldTargetCPA - bound
		} else {
			adjusted.NewTargetCPA = change.OldTargetCPA + bound
		}
		clamped = true
		if adjusted.NewTargetCPA < limits.MinValue || adjusted.NewTargetCPA > limits.MaxValue {
			reasons = append(reasons, fmt.Sprintf(
				"clamped target CPA $%.2f falls outside [$%.2f, $%.2f]",
				adjusted.NewTargetCPA, limits.MinValue, limits.MaxValue,
			))
		}
	case percent < limits.MinAdjustmentPercent:
		reasons = append(reasons, fmt.Sprintf(
			"tCPA adjustment %.1f%% below minimum %.1f%% - rejected as a no-op",
			percent, limits.MinAdjustmentPercent,
		))
	}

	if metrics.DaysSinceTCPAChange < limits.MinFrequencyDays {
		reasons = append(reasons, fmt.Sprintf(
			"tCPA changed %d days ago (minimum %d days)",
			metrics.DaysSinceTCPAChange, limits.MinFrequencyDays,
		))
	}

	if len(reasons) > 0 {
		return nil, reasons
	}
	if clamped {
		return adjusted, []string{fmt.Sprintf(
			"tCPA adjustment %.1f%% exceeds maximum %.1f%% - clamped to $%.2f",
			percent, limits.MaxAdjustmentPercent, adjusted.NewTargetCPA,
		)}
	}
	return change, []string{"target CPA adjustment meets all guardrail requirements"}
}

func (e *Engine) checkAssetGroup(change pmax.AssetGroupChange, metrics pmax.Metrics) (pmax.ChangeRequest, []string) {
	switch change.Action {
	case pmax.AssetGroupActionPauseAll:
		return nil, []string{"cannot pause all asset groups"}

	case pmax.AssetGroupActionPause:
		if len(metrics.EnabledAssetGroups()) <= 1 {
			return nil, []string{"cannot pause the last active asset group"}
		}
		if findAssetGroup(metrics, change.GroupName) == nil {
			return nil, []string{fmt.Sprintf("asset group %q not found", change.GroupName)}
		}

	case pmax.AssetGroupActionUpdate:
		if change.Proposed == nil {
			return nil, []string{"proposed asset counts are required for an update"}
		}
		if missing := e.missingAssetFormats(*change.Proposed); len(missing) > 0 {
			return nil, []string{fmt.Sprintf(
				"asset group %q would fall below format minimums: %s",
				change.GroupName, strings.Join(missing, ", "),
			)}
		}

	case pmax.AssetGroupActionEnable:
		group := findAssetGroup(metrics, change.GroupName)
		if group == nil {
			return nil, []string{fmt.Sprintf("asset group %q not found", change.GroupName)}
		}
		if missing := e.missingAssetFormats(*group); len(missing) > 0 {
			return nil, []string{fmt.Sprintf(
				"asset group %q below format minimums: %s",
				change.GroupName, strings.Join(missing, ", "),
			)}
		}

	default:
		return nil, []string{fmt.Sprintf("unknown asset group action: %s", change.Action)}
	}

	return change, []string{"asset group modification meets all guardrail requirements"}
}

func (e *Engine) checkGeoTargeting(change pmax.GeoTargetingChange, metrics pmax.Metrics) (pmax.ChangeRequest, []string) {
	limits := e.cfg.GeoTargetingLimits
	var reasons []string

	if limits.PresenceOnlyRequired && change.NewType != pmax.GeoTargetingPresenceOnly {
		// Hard fail regardless of every other field on the request.
		return nil, []string{"presence-only targeting is required"}
	}

	if metrics.DaysSinceGeoChange < limits.PeriodDays {
		reasons = append(reasons, fmt.Sprintf(
			"geo targeting changed %d days ago (minimum %d days between changes)",
			metrics.DaysSinceGeoChange, limits.PeriodDays,
		))
	}

	if missing := missingFrom(limits.RequiredExclusions, change.Exclusions); len(missing) > 0 {
		reasons = append(reasons, fmt.Sprintf(
			"missing required presence exclusions: %s", strings.Join(missing, ", "),
		))
	}

	if len(reasons) > 0 {
		return nil, reasons
	}
	return change, []string{"geo targeting modification meets all guardrail requirements"}
}

// missingAssetFormats lists the format minimums a group does not meet.
func (e *Engine) missingAssetFormats(group pmax.AssetGroupSnapshot) []string {
	req := e.cfg.AssetRequirements
	var missing []string
	if group.Logos1x1 < req.MinLogos1x1 {
		missing = append(missing, fmt.Sprintf("1:1 logos (%d/%d)", group.Logos1x1, req.MinLogos1x1))
	}
	if group.Logos4x1 < req.MinLogos4x1 {
		missing = append(missing, fmt.Sprintf("4:1 logos (%d/%d)", group.Logos4x1, req.MinLogos4x1))
	}
	if group.Images1911 < req.MinImages1911 {
		missing = append(missing, fmt.Sprintf("1.91:1 images (%d/%d)", group.Images1911, req.MinImages1911))
	}
	if group.Images1x1 < req.MinImages1x1 {
		missing = append(missing, fmt.Sprintf("1:1 images (%d/%d)", group.Images1x1, req.MinImages1x1))
	}
	if group.VerticalVideos < req.MinVideos && !(req.AutoGenAllowed && group.AutoGenVideo) {
		missing = append(missing, fmt.Sprintf("vertical videos (%d/%d)", group.VerticalVideos, req.MinVideos))
	}
	return missing
}

func adjustmentPercent(oldValue, newValue float64) float64 {
	if oldValue == 0 {
		return 0
	}
	return math.Abs(newValue-oldValue) / oldValue * 100
}

func findAssetGroup(metrics pmax.Metrics, name string) *pmax.AssetGroupSnapshot {
	for i := range metrics.AssetGroups {
		if metrics.AssetGroups[i].Name == name {
			return &metrics.AssetGroups[i]
		}
	}
	return nil
}

func missingFrom(required, present []string) []string {
	set := make(map[string]bool, len(present))
	for _, value := range present {
		set[value] = true
	}
	var missing []string
	for _, value := range required {
		if !set[value] {
			missing = append(missing, value)
		}
	}
	return missing
}

func equalSets(a, b []string) bool {
	if len(missingFrom(a, b)) > 0 {
		return false
	}
	return len(missingFrom(b, a)) == 0
}
