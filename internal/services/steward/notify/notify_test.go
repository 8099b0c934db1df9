package notify

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/lrdigital/pmax-steward/internal/pmax"
	"github.com/lrdigital/pmax-steward/internal/pmax/leadquality"
	"github.com/lrdigital/pmax-steward/internal/pmax/phase"
	"github.com/lrdigital/pmax-steward/internal/services/steward/domain"
	"github.com/lrdigital/pmax-steward/internal/services/steward/storage"
)

func TestRenderPlannedChange(t *testing.T) {
	renderer := NewRenderer()
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	change := storage.PendingChange{
		ID:          "chg-1",
		CampaignID:  "pmax-general",
		Change:      pmax.BudgetAdjustment{OldDailyBudget: 100, NewDailyBudget: 125},
		ScheduledAt: now.Add(2 * time.Hour),
	}

	text := renderer.PlannedChange(change, now)

	for _, fragment := range []string{
		"PLANNED CHANGE: campaign pmax-general",
		"budget adjustment: $100.00 -> $125.00 daily",
		"2026-03-10 11:00:00 UTC",
		"2h 0m remaining",
		"Cancel before the execution time",
	} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("expected %q in:\n%s", fragment, text)
		}
	}
}

func TestRenderStopLoss(t *testing.T) {
	renderer := NewRenderer()
	text := renderer.StopLoss("pmax-general", []string{"conversion drought: no conversions in 16 days"})

	if !strings.Contains(text, "STOP-LOSS TRIGGERED") {
		t.Fatalf("missing header in:\n%s", text)
	}
	if !strings.Contains(text, "- conversion drought") {
		t.Fatalf("missing alert line in:\n%s", text)
	}
}

func TestRenderPhaseAdvance(t *testing.T) {
	renderer := NewRenderer()
	eligibility := phase.EligibilityResult{
		EligibleForNext:   true,
		RecommendedAction: "safe to introduce tCPA at $100-$150 (standard progression)",
		ProgressionPath:   phase.PathStandard,
	}

	text := renderer.PhaseAdvance("pmax-general", pmax.Phase2, eligibility)

	if !strings.Contains(text, "PHASE_2") {
		t.Fatalf("missing target phase in:\n%s", text)
	}
	if !strings.Contains(text, "standard") {
		t.Fatalf("missing progression path in:\n%s", text)
	}
}

func TestRenderDailyRecap(t *testing.T) {
	renderer := NewRenderer()
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

	t.Run("quiet day", func(t *testing.T) {
		text := renderer.DailyRecap("pmax-general", domain.Recap{PhaseMessage: "PHASE_1 progressing normally: day 5 of 21 expected"})
		if !strings.Contains(text, "No alerts to report") {
			t.Fatalf("expected quiet-day line in:\n%s", text)
		}
	})

	t.Run("busy day", func(t *testing.T) {
		recap := domain.Recap{
			PhaseMessage:   "PHASE_1 lagging: day 30",
			LagAlerts:      []string{"PHASE_1 lagging: day 30"},
			StopLossAlerts: []string{"conversion drought"},
			PlannedChanges: []storage.PendingChange{
				{
					Change:      pmax.TargetCPAAdjustment{OldTargetCPA: 120, NewTargetCPA: 108},
					ScheduledAt: now.Add(time.Hour),
				},
			},
			RecentLevers: []storage.AuditEntry{
				{Kind: "budget_adjustment", Summary: "budget raised to $50"},
			},
		}
		text := renderer.DailyRecap("pmax-general", recap)
		for _, fragment := range []string{
			"Lag alerts (1):",
			"Stop-loss alerts (1):",
			"target CPA adjustment: $120.00 -> $108.00",
			"budget_adjustment: budget raised to $50",
		} {
			if !strings.Contains(text, fragment) {
				t.Fatalf("expected %q in:\n%s", fragment, text)
			}
		}
		if strings.Contains(text, "No alerts to report") {
			t.Fatalf("quiet-day line must not appear in:\n%s", text)
		}
	})

	t.Run("lead quality", func(t *testing.T) {
		recap := domain.Recap{
			PhaseMessage: "PHASE_2 progressing normally: day 10 of 45 expected",
			LeadQuality: &leadquality.Recommendation{
				Action:  leadquality.ActionBudgetDecrease,
				Reasons: []string{"CpHQL $600.00 is 200% of the $300.00 target"},
				Metrics: leadquality.Metrics{
					PeriodDays:       30,
					TotalLeads:       12,
					HighQualityLeads: 2,
					CpHQL:            600,
				},
			},
			LeadPerformance: leadquality.PerformancePoor,
		}
		text := renderer.DailyRecap("pmax-general", recap)
		for _, fragment := range []string{
			"Lead quality (30d): 12 leads, 2 high quality, CpHQL $600.00 - poor",
			"Lead quality recommendation: budget_decrease",
			"- CpHQL $600.00 is 200% of the $300.00 target",
		} {
			if !strings.Contains(text, fragment) {
				t.Fatalf("expected %q in:\n%s", fragment, text)
			}
		}
	})
}

func TestWindowRemaining(t *testing.T) {
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		offset time.Duration
		want   string
	}{
		{offset: 2 * time.Hour, want: "2h 0m"},
		{offset: 90 * time.Minute, want: "1h 30m"},
		{offset: 45 * time.Minute, want: "45m"},
		{offset: -time.Minute, want: "due now"},
	}
	for _, tt := range tests {
		if got := windowRemaining(now.Add(tt.offset), now); got != tt.want {
			t.Errorf("windowRemaining(+%v) = %q, want %q", tt.offset, got, tt.want)
		}
	}
}

func TestLogNotifierWritesToLogger(t *testing.T) {
	var buf bytes.Buffer
	notifier := NewLogNotifier(log.New(&buf, "", 0))

	err := notifier.StopLoss(context.Background(), "pmax-general", []string{"conversion drought"})
	if err != nil {
		t.Fatalf("stop loss: %v", err)
	}
	if !strings.Contains(buf.String(), "STOP-LOSS TRIGGERED: campaign pmax-general") {
		t.Fatalf("unexpected log output:\n%s", buf.String())
	}
}

func TestLogNotifierHonorsContext(t *testing.T) {
	var buf bytes.Buffer
	notifier := NewLogNotifier(log.New(&buf, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := notifier.StopLoss(ctx, "pmax-general", nil); err == nil {
		t.Fatal("expected context error")
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing should be logged after cancellation, got:\n%s", buf.String())
	}
}
