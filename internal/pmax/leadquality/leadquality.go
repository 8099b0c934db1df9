// Package leadquality scores lead acquisition by quality rather than volume.
//
// Each lead carries a lead quality score (LQS) from 1 to 10. The package
// buckets leads by score, derives cost-per-high-quality-lead (CpHQL), and
// turns those numbers into budget and target-CPA recommendations.
package leadquality

import (
	"fmt"
)

// Score bucket boundaries. A lead with LQS >= HighQualityLQS counts as a
// serious buyer or seller inquiry.
const (
	HighQualityLQS   = 5
	MediumQualityLQS = 3
)

// Action is a recommended optimization move.
type Action string

const (
	ActionMaintain       Action = "maintain"
	ActionBudgetIncrease Action = "budget_increase"
	ActionBudgetDecrease Action = "budget_decrease"
	ActionTCPAIncrease   Action = "tcpa_increase"
	ActionTCPADecrease   Action = "tcpa_decrease"
)

// PerformanceLevel classifies overall acquisition efficiency by CpHQL.
type PerformanceLevel string

const (
	PerformanceExcellent        PerformanceLevel = "excellent"
	PerformanceGood             PerformanceLevel = "good"
	PerformanceNeedsImprovement PerformanceLevel = "needs_improvement"
	PerformancePoor             PerformanceLevel = "poor"
)

// Lead is one scored lead record.
type Lead struct {
	ID     string `json:"id"`
	LQS    int    `json:"lqs"`
	Source string `json:"source,omitempty"`
}

// Metrics aggregates scored leads and cost over one reporting period.
type Metrics struct {
	PeriodDays         int     `json:"period_days"`
	TotalLeads         int     `json:"total_leads"`
	HighQualityLeads   int     `json:"high_quality_leads"`
	MediumQualityLeads int     `json:"medium_quality_leads"`
	LowQualityLeads    int     `json:"low_quality_leads"`
	AverageLQS         float64 `json:"average_lqs"`
	TotalCost          float64 `json:"total_cost"`
	CpHQL              float64 `json:"cphql"`
	CPL                float64 `json:"cpl"`
	HighQualityRatio   float64 `json:"high_quality_ratio"`
}

// Recommendation is the outcome of one optimization pass.
type Recommendation struct {
	Action     Action   `json:"action"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
	Metrics    Metrics  `json:"metrics"`
}

// Targets holds the tunable goalposts for recommendation logic.
type Targets struct {
	// TargetCpHQL is the cost per high-quality lead the campaign aims for.
	TargetCpHQL float64
	// MaxCpHQL marks the boundary between needs-improvement and poor.
	MaxCpHQL float64
	// ExcellentCpHQL marks efficiency worth calling out.
	ExcellentCpHQL float64
	// TargetAverageLQS is the desired mean score across all leads.
	TargetAverageLQS float64
	// MinLeadsForRecommendation gates optimization on sample size.
	MinLeadsForRecommendation int

	// CpHQL-to-target ratios that trigger each lever.
	BudgetIncreaseBelow float64
	BudgetDecreaseAbove float64
	TCPADecreaseBelow   float64
	TCPAIncreaseAbove   float64
}

// DefaultTargets returns the compiled-in goalposts.
func DefaultTargets() Targets {
	return Targets{
		TargetCpHQL:               300,
		MaxCpHQL:                  500,
		ExcellentCpHQL:            250,
		TargetAverageLQS:          6.5,
		MinLeadsForRecommendation: 10,
		BudgetIncreaseBelow:       0.7,
		BudgetDecreaseAbove:       1.3,
		TCPADecreaseBelow:         0.8,
		TCPAIncreaseAbove:         1.2,
	}
}

// Engine derives metrics and recommendations from scored leads.
type Engine struct {
	targets Targets
}

// NewEngine creates an engine with the given targets.
func NewEngine(targets Targets) *Engine {
	return &Engine{targets: targets}
}

// Compute aggregates a period of scored leads against its total cost.
// Zero-lead periods produce zero rates rather than errors.
func Compute(leads []Lead, cost float64, periodDays int) Metrics {
	metrics := Metrics{
		PeriodDays: periodDays,
		TotalCost:  cost,
	}
	if len(leads) == 0 {
		return metrics
	}

	sum := 0
	for _, lead := range leads {
		sum += lead.LQS
		switch {
		case lead.LQS >= HighQualityLQS:
			metrics.HighQualityLeads++
		case lead.LQS >= MediumQualityLQS:
			metrics.MediumQualityLeads++
		default:
			metrics.LowQualityLeads++
		}
	}

	metrics.TotalLeads = len(leads)
	metrics.AverageLQS = float64(sum) / float64(metrics.TotalLeads)
	metrics.CPL = cost / float64(metrics.TotalLeads)
	metrics.HighQualityRatio = float64(metrics.HighQualityLeads) / float64(metrics.TotalLeads)
	if metrics.HighQualityLeads > 0 {
		metrics.CpHQL = cost / float64(metrics.HighQualityLeads)
	}
	return metrics
}

// Recommend turns a period's metrics into an optimization recommendation.
// Budget levers take precedence over tCPA levers: the wider CpHQL bands fire
// first, the narrower ones only when budget is already in range.
func (e *Engine) Recommend(metrics Metrics) Recommendation {
	rec := Recommendation{
		Action:     ActionMaintain,
		Confidence: 0.5,
		Metrics:    metrics,
	}

	if metrics.TotalLeads < e.targets.MinLeadsForRecommendation {
		rec.Confidence = 0.3
		rec.Reasons = append(rec.Reasons, fmt.Sprintf(
			"insufficient lead data (%d < %d leads)", metrics.TotalLeads, e.targets.MinLeadsForRecommendation,
		))
		return rec
	}

	ratio := 1.0
	if e.targets.TargetCpHQL > 0 {
		ratio = metrics.CpHQL / e.targets.TargetCpHQL
	}
	ratioReason := fmt.Sprintf(
		"CpHQL $%.2f is %.0f%% of the $%.2f target", metrics.CpHQL, ratio*100, e.targets.TargetCpHQL,
	)

	switch {
	case ratio < e.targets.BudgetIncreaseBelow:
		rec.Action = ActionBudgetIncrease
		rec.Confidence = 0.8
		rec.Reasons = append(rec.Reasons, ratioReason,
			"low CpHQL indicates efficient acquisition of high-quality leads; scale budget")
	case ratio > e.targets.BudgetDecreaseAbove:
		rec.Action = ActionBudgetDecrease
		rec.Confidence = 0.7
		rec.Reasons = append(rec.Reasons, ratioReason,
			"high CpHQL indicates inefficient acquisition of high-quality leads; reduce spend")
	case ratio < e.targets.TCPADecreaseBelow:
		rec.Action = ActionTCPADecrease
		rec.Confidence = 0.75
		rec.Reasons = append(rec.Reasons, ratioReason,
			"headroom under target; lower tCPA to acquire more leads at current efficiency")
	case ratio > e.targets.TCPAIncreaseAbove:
		rec.Action = ActionTCPAIncrease
		rec.Confidence = 0.7
		rec.Reasons = append(rec.Reasons, ratioReason,
			"above target; raise tCPA to focus on higher-quality leads")
	}

	if metrics.CpHQL > 0 && metrics.CpHQL < e.targets.ExcellentCpHQL {
		rec.Reasons = append(rec.Reasons, fmt.Sprintf(
			"excellent performance: CpHQL $%.2f below $%.2f", metrics.CpHQL, e.targets.ExcellentCpHQL,
		))
	}
	return rec
}

// Performance classifies the period's CpHQL against the configured bands.
func (e *Engine) Performance(metrics Metrics) PerformanceLevel {
	switch {
	case metrics.CpHQL > e.targets.MaxCpHQL:
		return PerformancePoor
	case metrics.CpHQL > e.targets.TargetCpHQL:
		return PerformanceNeedsImprovement
	case metrics.CpHQL > 0 && metrics.CpHQL < e.targets.ExcellentCpHQL:
		return PerformanceExcellent
	default:
		return PerformanceGood
	}
}
