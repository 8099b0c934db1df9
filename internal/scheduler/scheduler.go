// Package scheduler holds approved changes through their intervention window
// and executes them once due.
//
// The scheduler owns every PendingChange for its lifetime. Status transitions
// are one-way: PENDING moves to exactly one of EXECUTED, FAILED, or
// CANCELLED, and a FAILED change is never retried. A retry is a new change
// request going back through guardrail evaluation, since campaign state may
// have shifted.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/lrdigital/pmax-steward/internal/errors"
	"github.com/lrdigital/pmax-steward/internal/id"
	"github.com/lrdigital/pmax-steward/internal/pmax"
	"github.com/lrdigital/pmax-steward/internal/pmax/guardrail"
	"github.com/lrdigital/pmax-steward/internal/services/steward/storage"
)

// Applier executes one due change against the live account.
type Applier interface {
	Apply(ctx context.Context, change storage.PendingChange) error
}

// ExecutionResult reports the outcome of one due change.
type ExecutionResult struct {
	ChangeID string
	Status   storage.ChangeStatus
	// FailureMessage carries the applier error for FAILED outcomes.
	FailureMessage string
}

// Scheduler manages the pending-change lifecycle over a persistent store.
type Scheduler struct {
	store   storage.PendingChangeStore
	applier Applier
	newID   func() (string, error)
	now     func() time.Time
}

// Option configures optional Scheduler collaborators.
type Option func(*Scheduler)

// WithIDGenerator overrides pending-change id generation.
func WithIDGenerator(generate func() (string, error)) Option {
	return func(s *Scheduler) {
		if generate != nil {
			s.newID = generate
		}
	}
}

// WithClock overrides the scheduler clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a scheduler over the given store and applier.
func New(store storage.PendingChangeStore, applier Applier, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:   store,
		applier: applier,
		newID:   id.NewID,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add schedules an approved change for delayed execution and returns its id.
// Only approved verdicts with an intervention window are accepted; anything
// else is a caller error. The metrics snapshot is captured for replay safety.
func (s *Scheduler) Add(ctx context.Context, campaignID string, verdict guardrail.Verdict, metrics pmax.Metrics) (string, error) {
	if !verdict.Approved {
		return "", apperrors.WithMetadata(apperrors.CodeVerdictNotApproved,
			"cannot schedule a change without an approved verdict",
			map[string]string{"campaign_id": campaignID})
	}
	if verdict.ExecuteAfter.IsZero() {
		return "", apperrors.WithMetadata(apperrors.CodeVerdictMissingWindow,
			"approved verdict is missing its intervention window",
			map[string]string{"campaign_id": campaignID})
	}
	if verdict.ModifiedChange == nil {
		return "", apperrors.WithMetadata(apperrors.CodeChangeEmptyPayload,
			"approved verdict carries no change request",
			map[string]string{"campaign_id": campaignID})
	}

	changeID, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("generate change id: %w", err)
	}

	now := s.now().UTC()
	change := storage.PendingChange{
		ID:          changeID,
		CampaignID:  campaignID,
		Change:      verdict.ModifiedChange,
		Reasons:     verdict.Reasons,
		Metrics:     metrics,
		ScheduledAt: verdict.ExecuteAfter.UTC(),
		Status:      storage.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreatePendingChange(ctx, change); err != nil {
		return "", fmt.Errorf("persist pending change: %w", err)
	}
	return change.ID, nil
}

// ListPending returns a campaign's PENDING changes ordered by scheduled
// execution time ascending.
func (s *Scheduler) ListPending(ctx context.Context, campaignID string) ([]storage.PendingChange, error) {
	return s.store.ListPendingChanges(ctx, campaignID)
}

// Cancel withdraws a pending change during its window. It reports false for
// unknown ids and for changes already in a terminal status; double-cancel is
// a safe no-op.
func (s *Scheduler) Cancel(ctx context.Context, changeID string) (bool, error) {
	err := s.store.UpdateChangeStatus(ctx, changeID, storage.StatusCancelled, "", s.now().UTC())
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrChangeTerminal) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cancel pending change: %w", err)
	}
	return true, nil
}

// ExecutePending applies every due change for one campaign and records the
// outcome. Changes not yet due are left untouched. An applier failure marks
// that change FAILED with the error preserved and does not stop the pass. A
// change that reaches a terminal status out from under the pass stops it
// with a SCHEDULER_CHANGE_ALREADY_TERMINAL error.
func (s *Scheduler) ExecutePending(ctx context.Context, campaignID string, now time.Time) ([]ExecutionResult, error) {
	pending, err := s.store.ListPendingChanges(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list pending changes: %w", err)
	}

	var results []ExecutionResult
	for _, change := range pending {
		if change.ScheduledAt.After(now) {
			continue
		}

		status := storage.StatusExecuted
		failureMessage := ""
		if applyErr := s.applier.Apply(ctx, change); applyErr != nil {
			status = storage.StatusFailed
			failureMessage = applyErr.Error()
		}
		if err := s.store.UpdateChangeStatus(ctx, change.ID, status, failureMessage, s.now().UTC()); err != nil {
			if errors.Is(err, storage.ErrChangeTerminal) {
				return results, apperrors.WithMetadata(apperrors.CodeChangeAlreadyTerminal,
					"change reached a terminal status outside this execution pass",
					map[string]string{"change_id": change.ID, "campaign_id": campaignID})
			}
			return results, fmt.Errorf("record outcome for change %s: %w", change.ID, err)
		}
		results = append(results, ExecutionResult{
			ChangeID:       change.ID,
			Status:         status,
			FailureMessage: failureMessage,
		})
	}
	return results, nil
}
