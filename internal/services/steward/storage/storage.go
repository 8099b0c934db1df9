// Package storage defines persistence contracts for steward service state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/lrdigital/pmax-steward/internal/pmax"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrChangeTerminal indicates a status update targeted a change that has
	// already left the PENDING state.
	ErrChangeTerminal = errors.New("pending change is terminal")
)

// ChangeStatus is the lifecycle state of a scheduled change.
type ChangeStatus string

const (
	// StatusPending marks a change waiting out its intervention window.
	StatusPending ChangeStatus = "PENDING"
	// StatusExecuted marks a change applied to the live account.
	StatusExecuted ChangeStatus = "EXECUTED"
	// StatusFailed marks a change the external writer rejected. Failed
	// changes are never retried.
	StatusFailed ChangeStatus = "FAILED"
	// StatusCancelled marks a change withdrawn during its window.
	StatusCancelled ChangeStatus = "CANCELLED"
)

// Terminal reports whether the status permits no further transitions.
func (s ChangeStatus) Terminal() bool {
	switch s {
	case StatusExecuted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// PendingChange stores one approved change held for delayed execution.
// The metrics snapshot is captured at approval time for replay safety.
type PendingChange struct {
	ID             string
	CampaignID     string
	Change         pmax.ChangeRequest
	Reasons        []string
	Metrics        pmax.Metrics
	ScheduledAt    time.Time
	Status         ChangeStatus
	FailureMessage string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PendingChangeStore persists scheduled changes for their full lifecycle.
type PendingChangeStore interface {
	CreatePendingChange(ctx context.Context, change PendingChange) error
	GetPendingChange(ctx context.Context, id string) (PendingChange, error)
	// ListPendingChanges returns PENDING changes for one campaign ordered
	// by scheduled execution time ascending.
	ListPendingChanges(ctx context.Context, campaignID string) ([]PendingChange, error)
	// UpdateChangeStatus transitions one change out of PENDING. It returns
	// ErrChangeTerminal when the change already left PENDING and
	// ErrNotFound when the id is unknown.
	UpdateChangeStatus(ctx context.Context, id string, status ChangeStatus, failureMessage string, updatedAt time.Time) error
}

// AuditEntry records one lever pull or phase assessment for history.
type AuditEntry struct {
	ID         string
	CampaignID string
	// Kind is a change kind for lever pulls, or "phase_assessment" for
	// phase checks.
	Kind       string
	Summary    string
	OccurredAt time.Time
}

// KindPhaseAssessment is the audit kind for phase eligibility checks.
const KindPhaseAssessment = "phase_assessment"

// AuditStore records change and assessment history.
type AuditStore interface {
	RecordAudit(ctx context.Context, entry AuditEntry) error
	// RecentLevers returns lever-pull entries (everything except phase
	// assessments) since the given time, newest first.
	RecentLevers(ctx context.Context, campaignID string, since time.Time) ([]AuditEntry, error)
}

// PhaseState stores which lifecycle phase a campaign is in and since when.
type PhaseState struct {
	CampaignID string
	Phase      pmax.Phase
	StartedAt  time.Time
	UpdatedAt  time.Time
}

// PhaseStateStore persists per-campaign phase state.
type PhaseStateStore interface {
	GetPhaseState(ctx context.Context, campaignID string) (PhaseState, error)
	SetPhaseState(ctx context.Context, state PhaseState) error
}
