package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lrdigital/pmax-steward/internal/pmax"
	"github.com/lrdigital/pmax-steward/internal/services/steward/storage"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestCreateGetPendingChangeRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	input := storage.PendingChange{
		ID:         "chg-1",
		CampaignID: "pmax-general",
		Change: pmax.BudgetAdjustment{
			OldDailyBudget: 100,
			NewDailyBudget: 125,
		},
		Reasons:     []string{"budget adjustment approved"},
		Metrics:     pmax.Metrics{CampaignID: "pmax-general", DailyBudget: 100},
		ScheduledAt: now.Add(2 * time.Hour),
		Status:      storage.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.CreatePendingChange(context.Background(), input); err != nil {
		t.Fatalf("create pending change: %v", err)
	}

	got, err := store.GetPendingChange(context.Background(), "chg-1")
	if err != nil {
		t.Fatalf("get pending change: %v", err)
	}
	if got.Status != storage.StatusPending {
		t.Fatalf("status = %q, want %q", got.Status, storage.StatusPending)
	}
	if !got.ScheduledAt.Equal(input.ScheduledAt) {
		t.Fatalf("scheduled_at = %v, want %v", got.ScheduledAt, input.ScheduledAt)
	}
	budget, ok := got.Change.(pmax.BudgetAdjustment)
	if !ok {
		t.Fatalf("change type = %T, want BudgetAdjustment", got.Change)
	}
	if budget.NewDailyBudget != 125 {
		t.Fatalf("new daily budget = %v, want 125", budget.NewDailyBudget)
	}
	if got.Metrics.DailyBudget != 100 {
		t.Fatalf("snapshot budget = %v, want 100", got.Metrics.DailyBudget)
	}
}

func TestCreatePendingChangeReturnsAlreadyExistsOnDuplicate(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	input := storage.PendingChange{
		ID:          "chg-dup",
		CampaignID:  "pmax-general",
		Change:      pmax.BudgetAdjustment{OldDailyBudget: 100, NewDailyBudget: 125},
		ScheduledAt: now,
		CreatedAt:   now,
	}
	if err := store.CreatePendingChange(context.Background(), input); err != nil {
		t.Fatalf("create initial change: %v", err)
	}
	err := store.CreatePendingChange(context.Background(), input)
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate create error = %v, want %v", err, storage.ErrAlreadyExists)
	}
}

func TestGetPendingChangeReturnsNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	_, err := store.GetPendingChange(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestListPendingChangesOrdersByScheduledTime(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	for _, entry := range []struct {
		id      string
		offset  time.Duration
		status  storage.ChangeStatus
		pending bool
	}{
		{id: "chg-late", offset: 6 * time.Hour, status: storage.StatusPending},
		{id: "chg-early", offset: 1 * time.Hour, status: storage.StatusPending},
		{id: "chg-done", offset: 2 * time.Hour, status: storage.StatusExecuted},
	} {
		change := storage.PendingChange{
			ID:          entry.id,
			CampaignID:  "pmax-general",
			Change:      pmax.BudgetAdjustment{OldDailyBudget: 100, NewDailyBudget: 125},
			ScheduledAt: now.Add(entry.offset),
			Status:      entry.status,
			CreatedAt:   now,
		}
		if err := store.CreatePendingChange(context.Background(), change); err != nil {
			t.Fatalf("create %s: %v", entry.id, err)
		}
	}

	changes, err := store.ListPendingChanges(context.Background(), "pmax-general")
	if err != nil {
		t.Fatalf("list pending changes: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected 2 pending changes, got %d", len(changes))
	}
	if changes[0].ID != "chg-early" || changes[1].ID != "chg-late" {
		t.Fatalf("unexpected order: %s, %s", changes[0].ID, changes[1].ID)
	}
}

func TestUpdateChangeStatusTransitionsAreOneWay(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	change := storage.PendingChange{
		ID:          "chg-1",
		CampaignID:  "pmax-general",
		Change:      pmax.BudgetAdjustment{OldDailyBudget: 100, NewDailyBudget: 125},
		ScheduledAt: now,
		CreatedAt:   now,
	}
	if err := store.CreatePendingChange(context.Background(), change); err != nil {
		t.Fatalf("create pending change: %v", err)
	}

	if err := store.UpdateChangeStatus(context.Background(), "chg-1", storage.StatusFailed, "write rejected", now); err != nil {
		t.Fatalf("update change status: %v", err)
	}
	got, err := store.GetPendingChange(context.Background(), "chg-1")
	if err != nil {
		t.Fatalf("get pending change: %v", err)
	}
	if got.Status != storage.StatusFailed {
		t.Fatalf("status = %q, want %q", got.Status, storage.StatusFailed)
	}
	if got.FailureMessage != "write rejected" {
		t.Fatalf("failure message = %q, want %q", got.FailureMessage, "write rejected")
	}

	err = store.UpdateChangeStatus(context.Background(), "chg-1", storage.StatusCancelled, "", now)
	if !errors.Is(err, storage.ErrChangeTerminal) {
		t.Fatalf("second update error = %v, want %v", err, storage.ErrChangeTerminal)
	}

	err = store.UpdateChangeStatus(context.Background(), "missing", storage.StatusCancelled, "", now)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("unknown id error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestUpdateChangeStatusRejectsNonTerminalStatus(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	err := store.UpdateChangeStatus(context.Background(), "chg-1", storage.StatusPending, "", time.Now())
	if err == nil {
		t.Fatal("expected non-terminal status error")
	}
}

func TestRecentLeversFiltersAndOrders(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	for _, entry := range []storage.AuditEntry{
		{ID: "aud-1", CampaignID: "pmax-general", Kind: string(pmax.ChangeKindBudgetAdjustment), Summary: "budget +25%", OccurredAt: now.AddDate(0, 0, -2)},
		{ID: "aud-2", CampaignID: "pmax-general", Kind: storage.KindPhaseAssessment, Summary: "phase check", OccurredAt: now.AddDate(0, 0, -1)},
		{ID: "aud-3", CampaignID: "pmax-general", Kind: string(pmax.ChangeKindTargetCPAAdjustment), Summary: "tCPA -10%", OccurredAt: now},
		{ID: "aud-4", CampaignID: "pmax-general", Kind: string(pmax.ChangeKindGeoTargeting), Summary: "old entry", OccurredAt: now.AddDate(0, 0, -10)},
	} {
		if err := store.RecordAudit(context.Background(), entry); err != nil {
			t.Fatalf("record %s: %v", entry.ID, err)
		}
	}

	levers, err := store.RecentLevers(context.Background(), "pmax-general", now.AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("recent levers: %v", err)
	}
	if len(levers) != 2 {
		t.Fatalf("expected 2 lever entries, got %d", len(levers))
	}
	if levers[0].ID != "aud-3" || levers[1].ID != "aud-1" {
		t.Fatalf("unexpected order: %s, %s", levers[0].ID, levers[1].ID)
	}
}

func TestPhaseStateUpsertRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

	_, err := store.GetPhaseState(context.Background(), "pmax-general")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want %v", err, storage.ErrNotFound)
	}

	state := storage.PhaseState{
		CampaignID: "pmax-general",
		Phase:      pmax.Phase1,
		StartedAt:  now,
		UpdatedAt:  now,
	}
	if err := store.SetPhaseState(context.Background(), state); err != nil {
		t.Fatalf("set phase state: %v", err)
	}

	state.Phase = pmax.Phase2
	state.StartedAt = now.AddDate(0, 0, 21)
	if err := store.SetPhaseState(context.Background(), state); err != nil {
		t.Fatalf("upsert phase state: %v", err)
	}

	got, err := store.GetPhaseState(context.Background(), "pmax-general")
	if err != nil {
		t.Fatalf("get phase state: %v", err)
	}
	if got.Phase != pmax.Phase2 {
		t.Fatalf("phase = %s, want %s", got.Phase.Label(), pmax.Phase2.Label())
	}
	if !got.StartedAt.Equal(now.AddDate(0, 0, 21)) {
		t.Fatalf("started_at = %v, want %v", got.StartedAt, now.AddDate(0, 0, 21))
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "steward.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
