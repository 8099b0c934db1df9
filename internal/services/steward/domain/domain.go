// Package domain orchestrates guardrail evaluation, change scheduling, and
// phase assessment for one campaign.
//
// The package owns the boundary contracts to external collaborators: the
// metrics provider (Ads read side), the change applier (Ads write side), and
// the notification sink. Business rejections are normal verdict outcomes,
// never errors.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lrdigital/pmax-steward/internal/id"
	"github.com/lrdigital/pmax-steward/internal/pmax"
	"github.com/lrdigital/pmax-steward/internal/pmax/guardrail"
	"github.com/lrdigital/pmax-steward/internal/pmax/leadquality"
	"github.com/lrdigital/pmax-steward/internal/pmax/phase"
	"github.com/lrdigital/pmax-steward/internal/scheduler"
	"github.com/lrdigital/pmax-steward/internal/services/steward/storage"
)

// MetricsProvider supplies campaign state snapshots. Read-only; staleness
// handling belongs to the provider, not the core.
type MetricsProvider interface {
	Snapshot(ctx context.Context, campaignID string) (pmax.Metrics, error)
}

// ChangeApplier applies one due change against the live account.
type ChangeApplier interface {
	Apply(ctx context.Context, change storage.PendingChange) error
}

// LeadProvider supplies scored lead records for one campaign's reporting
// period. Optional: without one the daily recap skips lead quality.
type LeadProvider interface {
	Leads(ctx context.Context, campaignID string, periodDays int) ([]leadquality.Lead, error)
}

// Notifier consumes structured verdicts and alerts. Delivery channels are the
// implementation's concern.
type Notifier interface {
	PlannedChange(ctx context.Context, campaignID string, change storage.PendingChange) error
	StopLoss(ctx context.Context, campaignID string, alerts []string) error
	PhaseAdvance(ctx context.Context, campaignID string, to pmax.Phase, eligibility phase.EligibilityResult) error
	PhaseLag(ctx context.Context, campaignID string, progress phase.ProgressResult) error
	CriticalLag(ctx context.Context, campaignID string, progress phase.ProgressResult) error
	DailyRecap(ctx context.Context, campaignID string, recap Recap) error
}

// Evaluation is the outcome of one change evaluation.
type Evaluation struct {
	Verdict guardrail.Verdict
	// PendingChangeID is set when the change was approved and scheduled.
	PendingChangeID string
}

// Assessment is the outcome of one phase assessment.
type Assessment struct {
	Phase       pmax.Phase
	Eligibility phase.EligibilityResult
	Progress    phase.ProgressResult
	// Advanced is true when this assessment moved the campaign forward.
	Advanced bool
}

// Recap is the daily summary handed to the notification sink.
type Recap struct {
	PhaseMessage   string
	LagAlerts      []string
	StopLossAlerts []string
	BaselineIssues []string
	PlannedChanges []storage.PendingChange
	RecentLevers   []storage.AuditEntry
	// LeadQuality is nil when no lead provider is configured.
	LeadQuality     *leadquality.Recommendation
	LeadPerformance leadquality.PerformanceLevel
}

// leadQualityPeriodDays matches the 30-day cost window on the metrics
// snapshot.
const leadQualityPeriodDays = 30

// Steward wires the decision core to its collaborators for one campaign
// portfolio.
type Steward struct {
	engine     *guardrail.Engine
	phases     *phase.Manager
	sched      *scheduler.Scheduler
	metrics    MetricsProvider
	audit      storage.AuditStore
	phaseStore storage.PhaseStateStore
	notifier   Notifier
	leads      LeadProvider
	leadEngine *leadquality.Engine
	newID      func() (string, error)
	now        func() time.Time
}

// Option configures optional Steward collaborators.
type Option func(*Steward)

// WithIDGenerator overrides audit entry id generation.
func WithIDGenerator(generate func() (string, error)) Option {
	return func(s *Steward) {
		if generate != nil {
			s.newID = generate
		}
	}
}

// WithClock overrides the steward clock.
func WithClock(now func() time.Time) Option {
	return func(s *Steward) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLeadProvider enables lead quality reporting in the daily recap.
func WithLeadProvider(leads LeadProvider) Option {
	return func(s *Steward) {
		s.leads = leads
	}
}

// WithLeadTargets overrides the lead quality goalposts.
func WithLeadTargets(targets leadquality.Targets) Option {
	return func(s *Steward) {
		s.leadEngine = leadquality.NewEngine(targets)
	}
}

// New creates a steward over the given collaborators.
func New(
	engine *guardrail.Engine,
	phases *phase.Manager,
	sched *scheduler.Scheduler,
	metrics MetricsProvider,
	audit storage.AuditStore,
	phaseStore storage.PhaseStateStore,
	notifier Notifier,
	opts ...Option,
) *Steward {
	s := &Steward{
		engine:     engine,
		phases:     phases,
		sched:      sched,
		metrics:    metrics,
		audit:      audit,
		phaseStore: phaseStore,
		notifier:   notifier,
		leadEngine: leadquality.NewEngine(leadquality.DefaultTargets()),
		newID:      id.NewID,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EvaluateChange runs one proposed change through the guardrails and, when
// approved, schedules it and notifies. A rejection is a normal outcome: the
// verdict carries the reasons and no error is returned.
func (s *Steward) EvaluateChange(ctx context.Context, campaignID string, change pmax.ChangeRequest) (Evaluation, error) {
	metrics, err := s.metrics.Snapshot(ctx, campaignID)
	if err != nil {
		return Evaluation{}, fmt.Errorf("metrics snapshot: %w", err)
	}

	now := s.now().UTC()
	verdict := s.engine.Evaluate(change, metrics, now)
	evaluation := Evaluation{Verdict: verdict}

	if len(verdict.Alerts) > 0 {
		if err := s.notifier.StopLoss(ctx, campaignID, verdict.Alerts); err != nil {
			return evaluation, fmt.Errorf("notify stop-loss: %w", err)
		}
	}
	if !verdict.Approved {
		return evaluation, nil
	}

	pendingID, err := s.sched.Add(ctx, campaignID, verdict, metrics)
	if err != nil {
		return evaluation, fmt.Errorf("schedule change: %w", err)
	}
	evaluation.PendingChangeID = pendingID

	if err := s.recordAudit(ctx, campaignID, string(change.Kind()), leverSummary(verdict), now); err != nil {
		return evaluation, err
	}
	pending := storage.PendingChange{
		ID:          pendingID,
		CampaignID:  campaignID,
		Change:      verdict.ModifiedChange,
		Reasons:     verdict.Reasons,
		Metrics:     metrics,
		ScheduledAt: verdict.ExecuteAfter,
		Status:      storage.StatusPending,
	}
	if err := s.notifier.PlannedChange(ctx, campaignID, pending); err != nil {
		return evaluation, fmt.Errorf("notify planned change: %w", err)
	}
	return evaluation, nil
}

// AssessPhase checks eligibility and timeline progress for one campaign,
// advancing its stored phase when a progression path is satisfied. A campaign
// with no stored state starts in Phase 1 at assessment time.
func (s *Steward) AssessPhase(ctx context.Context, campaignID string) (Assessment, error) {
	now := s.now().UTC()

	state, err := s.phaseStore.GetPhaseState(ctx, campaignID)
	if errors.Is(err, storage.ErrNotFound) {
		state = storage.PhaseState{
			CampaignID: campaignID,
			Phase:      pmax.Phase1,
			StartedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.phaseStore.SetPhaseState(ctx, state); err != nil {
			return Assessment{}, fmt.Errorf("initialize phase state: %w", err)
		}
	} else if err != nil {
		return Assessment{}, fmt.Errorf("load phase state: %w", err)
	}

	metrics, err := s.metrics.Snapshot(ctx, campaignID)
	if err != nil {
		return Assessment{}, fmt.Errorf("metrics snapshot: %w", err)
	}

	eligibility := s.phases.CheckEligibility(metrics, state.Phase)
	progress := s.phases.CheckProgress(state.StartedAt, now, state.Phase, eligibility)
	assessment := Assessment{
		Phase:       state.Phase,
		Eligibility: eligibility,
		Progress:    progress,
	}

	if err := s.recordAudit(ctx, campaignID, storage.KindPhaseAssessment, progress.Message, now); err != nil {
		return assessment, err
	}

	if eligibility.EligibleForNext {
		next, ok := state.Phase.Next()
		if ok {
			advanced, err := pmax.TransitionPhase(state.Phase, next)
			if err != nil {
				return assessment, fmt.Errorf("advance phase: %w", err)
			}
			state.Phase = advanced
			state.StartedAt = now
			state.UpdatedAt = now
			if err := s.phaseStore.SetPhaseState(ctx, state); err != nil {
				return assessment, fmt.Errorf("store phase state: %w", err)
			}
			assessment.Phase = advanced
			assessment.Advanced = true
			if err := s.notifier.PhaseAdvance(ctx, campaignID, advanced, eligibility); err != nil {
				return assessment, fmt.Errorf("notify phase advance: %w", err)
			}
		}
		return assessment, nil
	}

	switch {
	case progress.LagAlert:
		if err := s.notifier.CriticalLag(ctx, campaignID, progress); err != nil {
			return assessment, fmt.Errorf("notify critical lag: %w", err)
		}
	case progress.Lagging:
		if err := s.notifier.PhaseLag(ctx, campaignID, progress); err != nil {
			return assessment, fmt.Errorf("notify phase lag: %w", err)
		}
	}
	return assessment, nil
}

// SendDailyRecap composes and delivers the daily summary: phase status,
// active alerts, baseline violations, held changes, the week's lever pulls,
// and lead quality when a lead provider is configured.
func (s *Steward) SendDailyRecap(ctx context.Context, campaignID string) (Recap, error) {
	now := s.now().UTC()

	metrics, err := s.metrics.Snapshot(ctx, campaignID)
	if err != nil {
		return Recap{}, fmt.Errorf("metrics snapshot: %w", err)
	}

	var recap Recap
	state, err := s.phaseStore.GetPhaseState(ctx, campaignID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return Recap{}, fmt.Errorf("load phase state: %w", err)
	}
	if err == nil {
		eligibility := s.phases.CheckEligibility(metrics, state.Phase)
		progress := s.phases.CheckProgress(state.StartedAt, now, state.Phase, eligibility)
		recap.PhaseMessage = progress.Message
		if progress.Lagging {
			recap.LagAlerts = append(recap.LagAlerts, progress.Message)
		}
	}

	if alert, active := s.engine.StopLoss(metrics); active {
		recap.StopLossAlerts = append(recap.StopLossAlerts, alert)
	}
	recap.BaselineIssues = s.engine.Baseline(metrics)

	pending, err := s.sched.ListPending(ctx, campaignID)
	if err != nil {
		return recap, fmt.Errorf("list pending changes: %w", err)
	}
	recap.PlannedChanges = pending

	levers, err := s.audit.RecentLevers(ctx, campaignID, now.AddDate(0, 0, -7))
	if err != nil {
		return recap, fmt.Errorf("list recent levers: %w", err)
	}
	recap.RecentLevers = levers

	if s.leads != nil {
		leads, err := s.leads.Leads(ctx, campaignID, leadQualityPeriodDays)
		if err != nil {
			return recap, fmt.Errorf("list scored leads: %w", err)
		}
		quality := leadquality.Compute(leads, metrics.Cost30d, leadQualityPeriodDays)
		recommendation := s.leadEngine.Recommend(quality)
		recap.LeadQuality = &recommendation
		recap.LeadPerformance = s.leadEngine.Performance(quality)
	}

	if err := s.notifier.DailyRecap(ctx, campaignID, recap); err != nil {
		return recap, fmt.Errorf("notify daily recap: %w", err)
	}
	return recap, nil
}

func (s *Steward) recordAudit(ctx context.Context, campaignID, kind, summary string, occurredAt time.Time) error {
	entryID, err := s.newID()
	if err != nil {
		return fmt.Errorf("generate audit id: %w", err)
	}
	entry := storage.AuditEntry{
		ID:         entryID,
		CampaignID: campaignID,
		Kind:       kind,
		Summary:    summary,
		OccurredAt: occurredAt,
	}
	if err := s.audit.RecordAudit(ctx, entry); err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

func leverSummary(verdict guardrail.Verdict) string {
	if len(verdict.Reasons) == 0 {
		return "change approved"
	}
	return strings.Join(verdict.Reasons, "; ")
}
