// Package notify renders steward events as human-readable notifications.
//
// Rendering is separated from delivery: Renderer produces the text, and the
// Notifier implementations decide where it goes. The default LogNotifier
// writes to a standard logger; real email or Slack delivery is a drop-in
// replacement behind the same interface.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lrdigital/pmax-steward/internal/pmax"
	"github.com/lrdigital/pmax-steward/internal/pmax/phase"
	"github.com/lrdigital/pmax-steward/internal/services/steward/domain"
	"github.com/lrdigital/pmax-steward/internal/services/steward/storage"
)

// Renderer formats steward events into notification text.
type Renderer struct {
	printer *message.Printer
}

// NewRenderer creates a renderer with English number formatting.
func NewRenderer() *Renderer {
	return &Renderer{printer: message.NewPrinter(language.English)}
}

// PlannedChange renders the intervention-window notice for one held change.
func (r *Renderer) PlannedChange(change storage.PendingChange, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PLANNED CHANGE: campaign %s\n", change.CampaignID)
	fmt.Fprintf(&b, "Change: %s\n", r.describeChange(change.Change))
	fmt.Fprintf(&b, "Executes at: %s (%s remaining)\n",
		change.ScheduledAt.UTC().Format("2006-01-02 15:04:05 UTC"),
		windowRemaining(change.ScheduledAt, now))
	b.WriteString("Cancel before the execution time to stop this change.")
	return b.String()
}

// StopLoss renders the safety alert for triggered stop-loss conditions.
func (r *Renderer) StopLoss(campaignID string, alerts []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "STOP-LOSS TRIGGERED: campaign %s\n", campaignID)
	for _, alert := range alerts {
		fmt.Fprintf(&b, "- %s\n", alert)
	}
	b.WriteString("All lever changes are frozen until the condition clears.")
	return b.String()
}

// PhaseAdvance renders a phase progression notice.
func (r *Renderer) PhaseAdvance(campaignID string, to pmax.Phase, eligibility phase.EligibilityResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PHASE ADVANCEMENT: campaign %s -> %s\n", campaignID, to.Label())
	fmt.Fprintf(&b, "Progression path: %s\n", eligibility.ProgressionPath)
	fmt.Fprintf(&b, "Recommended action: %s", eligibility.RecommendedAction)
	return b.String()
}

// PhaseLag renders a lag warning for a campaign behind its phase timeline.
func (r *Renderer) PhaseLag(campaignID string, progress phase.ProgressResult) string {
	return fmt.Sprintf("PHASE LAG: campaign %s, day %d\n%s",
		campaignID, progress.DaysInPhase, progress.Message)
}

// CriticalLag renders the alert for a phase past its maximum duration.
func (r *Renderer) CriticalLag(campaignID string, progress phase.ProgressResult) string {
	return fmt.Sprintf("CRITICAL LAG: campaign %s, day %d\n%s\nImmediate review required.",
		campaignID, progress.DaysInPhase, progress.Message)
}

// DailyRecap renders the daily summary of phase status, alerts, and changes.
func (r *Renderer) DailyRecap(campaignID string, recap domain.Recap) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DAILY RECAP: campaign %s\n", campaignID)
	if recap.PhaseMessage != "" {
		fmt.Fprintf(&b, "Phase status: %s\n", recap.PhaseMessage)
	}
	if len(recap.LagAlerts) > 0 {
		fmt.Fprintf(&b, "Lag alerts (%d):\n", len(recap.LagAlerts))
		for _, alert := range recap.LagAlerts {
			fmt.Fprintf(&b, "- %s\n", alert)
		}
	}
	if len(recap.StopLossAlerts) > 0 {
		fmt.Fprintf(&b, "Stop-loss alerts (%d):\n", len(recap.StopLossAlerts))
		for _, alert := range recap.StopLossAlerts {
			fmt.Fprintf(&b, "- %s\n", alert)
		}
	}
	if len(recap.BaselineIssues) > 0 {
		fmt.Fprintf(&b, "Baseline violations (%d):\n", len(recap.BaselineIssues))
		for _, issue := range recap.BaselineIssues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
	}
	if len(recap.PlannedChanges) > 0 {
		fmt.Fprintf(&b, "Planned changes (%d):\n", len(recap.PlannedChanges))
		for _, change := range recap.PlannedChanges {
			fmt.Fprintf(&b, "- %s at %s\n",
				r.describeChange(change.Change),
				change.ScheduledAt.UTC().Format("2006-01-02 15:04 UTC"))
		}
	}
	if len(recap.RecentLevers) > 0 {
		fmt.Fprintf(&b, "Lever pulls this week (%d):\n", len(recap.RecentLevers))
		for _, lever := range recap.RecentLevers {
			fmt.Fprintf(&b, "- %s: %s\n", lever.Kind, lever.Summary)
		}
	}
	if recap.LeadQuality != nil {
		quality := recap.LeadQuality.Metrics
		fmt.Fprintf(&b, "Lead quality (%dd): %d leads, %d high quality", quality.PeriodDays,
			quality.TotalLeads, quality.HighQualityLeads)
		if quality.CpHQL > 0 {
			b.WriteString(r.printer.Sprintf(", CpHQL $%.2f", quality.CpHQL))
		}
		fmt.Fprintf(&b, " - %s\n", recap.LeadPerformance)
		fmt.Fprintf(&b, "Lead quality recommendation: %s\n", recap.LeadQuality.Action)
		for _, reason := range recap.LeadQuality.Reasons {
			fmt.Fprintf(&b, "- %s\n", reason)
		}
	}
	if len(recap.LagAlerts) == 0 && len(recap.StopLossAlerts) == 0 &&
		len(recap.BaselineIssues) == 0 && len(recap.PlannedChanges) == 0 {
		b.WriteString("No alerts to report - campaign performing normally.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Renderer) describeChange(change pmax.ChangeRequest) string {
	switch c := change.(type) {
	case pmax.BudgetAdjustment:
		return r.printer.Sprintf("budget adjustment: $%.2f -> $%.2f daily", c.OldDailyBudget, c.NewDailyBudget)
	case pmax.TargetCPAAdjustment:
		return r.printer.Sprintf("target CPA adjustment: $%.2f -> $%.2f", c.OldTargetCPA, c.NewTargetCPA)
	case pmax.AssetGroupChange:
		return fmt.Sprintf("asset group %s: %q", c.Action, c.GroupName)
	case pmax.GeoTargetingChange:
		return fmt.Sprintf("geo targeting change: %s -> %s", c.OldType.Label(), c.NewType.Label())
	case nil:
		return "no change"
	default:
		return string(change.Kind())
	}
}

// LogNotifier delivers rendered notifications to a standard logger.
type LogNotifier struct {
	renderer *Renderer
	logger   *log.Logger
}

// NewLogNotifier creates a log-backed notifier. A nil logger uses the default
// standard logger.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &LogNotifier{renderer: NewRenderer(), logger: logger}
}

// PlannedChange logs an intervention-window notice.
func (n *LogNotifier) PlannedChange(ctx context.Context, campaignID string, change storage.PendingChange) error {
	return n.deliver(ctx, n.renderer.PlannedChange(change, time.Now()))
}

// StopLoss logs a stop-loss alert.
func (n *LogNotifier) StopLoss(ctx context.Context, campaignID string, alerts []string) error {
	return n.deliver(ctx, n.renderer.StopLoss(campaignID, alerts))
}

// PhaseAdvance logs a phase progression notice.
func (n *LogNotifier) PhaseAdvance(ctx context.Context, campaignID string, to pmax.Phase, eligibility phase.EligibilityResult) error {
	return n.deliver(ctx, n.renderer.PhaseAdvance(campaignID, to, eligibility))
}

// PhaseLag logs a lag warning.
func (n *LogNotifier) PhaseLag(ctx context.Context, campaignID string, progress phase.ProgressResult) error {
	return n.deliver(ctx, n.renderer.PhaseLag(campaignID, progress))
}

// CriticalLag logs a critical lag alert.
func (n *LogNotifier) CriticalLag(ctx context.Context, campaignID string, progress phase.ProgressResult) error {
	return n.deliver(ctx, n.renderer.CriticalLag(campaignID, progress))
}

// DailyRecap logs the daily summary.
func (n *LogNotifier) DailyRecap(ctx context.Context, campaignID string, recap domain.Recap) error {
	return n.deliver(ctx, n.renderer.DailyRecap(campaignID, recap))
}

func (n *LogNotifier) deliver(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.logger.Print(text)
	return nil
}

var _ domain.Notifier = (*LogNotifier)(nil)

// windowRemaining formats the time left before a scheduled execution.
func windowRemaining(scheduledAt, now time.Time) string {
	remaining := scheduledAt.Sub(now)
	if remaining <= 0 {
		return "due now"
	}
	hours := int(remaining.Hours())
	minutes := int(remaining.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
