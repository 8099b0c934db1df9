// Package sqlite provides a SQLite-backed steward storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrdigital/pmax-steward/internal/pmax"
	sqlitemigrate "github.com/lrdigital/pmax-steward/internal/platform/storage/sqlitemigrate"
	"github.com/lrdigital/pmax-steward/internal/services/steward/storage"
	"github.com/lrdigital/pmax-steward/internal/services/steward/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists steward state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite steward store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreatePendingChange inserts one scheduled change record.
func (s *Store) CreatePendingChange(ctx context.Context, change storage.PendingChange) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id := strings.TrimSpace(change.ID)
	campaignID := strings.TrimSpace(change.CampaignID)
	if id == "" {
		return fmt.Errorf("change id is required")
	}
	if campaignID == "" {
		return fmt.Errorf("campaign id is required")
	}
	if change.Change == nil {
		return fmt.Errorf("change request is required")
	}
	if change.Status == "" {
		change.Status = storage.StatusPending
	}
	createdAt := change.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := change.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	changeJSON, err := pmax.MarshalChange(change.Change)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	reasonsJSON, err := json.Marshal(change.Reasons)
	if err != nil {
		return fmt.Errorf("encode reasons: %w", err)
	}
	metricsJSON, err := json.Marshal(change.Metrics)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO pending_changes (
		   id,
		   campaign_id,
		   change_json,
		   reasons_json,
		   metrics_json,
		   scheduled_at,
		   status,
		   failure_message,
		   created_at,
		   updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		campaignID,
		string(changeJSON),
		string(reasonsJSON),
		string(metricsJSON),
		toMillis(change.ScheduledAt),
		string(change.Status),
		change.FailureMessage,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		if isPendingChangeUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create pending change: %w", err)
	}
	return nil
}

// GetPendingChange returns one scheduled change by id.
func (s *Store) GetPendingChange(ctx context.Context, id string) (storage.PendingChange, error) {
	if err := ctx.Err(); err != nil {
		return storage.PendingChange{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.PendingChange{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.PendingChange{}, fmt.Errorf("change id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, campaign_id, change_json, reasons_json, metrics_json,
		        scheduled_at, status, failure_message, created_at, updated_at
		   FROM pending_changes
		  WHERE id = ?`,
		id,
	)
	change, err := scanPendingChange(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PendingChange{}, storage.ErrNotFound
		}
		return storage.PendingChange{}, fmt.Errorf("get pending change: %w", err)
	}
	return change, nil
}

// ListPendingChanges returns PENDING changes for one campaign ordered by
// scheduled execution time ascending.
func (s *Store) ListPendingChanges(ctx context.Context, campaignID string) ([]storage.PendingChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	campaignID = strings.TrimSpace(campaignID)
	if campaignID == "" {
		return nil, fmt.Errorf("campaign id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, campaign_id, change_json, reasons_json, metrics_json,
		        scheduled_at, status, failure_message, created_at, updated_at
		   FROM pending_changes
		  WHERE campaign_id = ? AND status = ?
		  ORDER BY scheduled_at ASC, id ASC`,
		campaignID,
		string(storage.StatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("list pending changes: %w", err)
	}
	defer rows.Close()

	var changes []storage.PendingChange
	for rows.Next() {
		change, err := scanPendingChange(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list pending changes: %w", err)
		}
		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending changes: %w", err)
	}
	return changes, nil
}

// UpdateChangeStatus transitions one change out of PENDING. Transitions are
// one-way: a change that already left PENDING reports ErrChangeTerminal.
func (s *Store) UpdateChangeStatus(ctx context.Context, id string, status storage.ChangeStatus, failureMessage string, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("change id is required")
	}
	if !status.Terminal() {
		return fmt.Errorf("status %q is not a terminal status", status)
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE pending_changes
		    SET status = ?, failure_message = ?, updated_at = ?
		  WHERE id = ? AND status = ?`,
		string(status),
		failureMessage,
		toMillis(updatedAt),
		id,
		string(storage.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("update change status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update change status: %w", err)
	}
	if affected == 0 {
		var existing string
		err := s.sqlDB.QueryRowContext(ctx, `SELECT status FROM pending_changes WHERE id = ?`, id).Scan(&existing)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("update change status: %w", err)
		}
		return storage.ErrChangeTerminal
	}
	return nil
}

// RecordAudit inserts one audit history entry.
func (s *Store) RecordAudit(ctx context.Context, entry storage.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id := strings.TrimSpace(entry.ID)
	campaignID := strings.TrimSpace(entry.CampaignID)
	if id == "" {
		return fmt.Errorf("entry id is required")
	}
	if campaignID == "" {
		return fmt.Errorf("campaign id is required")
	}
	if strings.TrimSpace(entry.Kind) == "" {
		return fmt.Errorf("entry kind is required")
	}
	occurredAt := entry.OccurredAt.UTC()
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO audit_entries (id, campaign_id, kind, summary, occurred_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id,
		campaignID,
		entry.Kind,
		entry.Summary,
		toMillis(occurredAt),
	)
	if err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// RecentLevers returns lever-pull audit entries since the given time, newest
// first. Phase assessments are excluded.
func (s *Store) RecentLevers(ctx context.Context, campaignID string, since time.Time) ([]storage.AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	campaignID = strings.TrimSpace(campaignID)
	if campaignID == "" {
		return nil, fmt.Errorf("campaign id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, campaign_id, kind, summary, occurred_at
		   FROM audit_entries
		  WHERE campaign_id = ? AND kind != ? AND occurred_at >= ?
		  ORDER BY occurred_at DESC, id DESC`,
		campaignID,
		storage.KindPhaseAssessment,
		toMillis(since),
	)
	if err != nil {
		return nil, fmt.Errorf("list recent levers: %w", err)
	}
	defer rows.Close()

	var entries []storage.AuditEntry
	for rows.Next() {
		var entry storage.AuditEntry
		var occurredAt int64
		if err := rows.Scan(&entry.ID, &entry.CampaignID, &entry.Kind, &entry.Summary, &occurredAt); err != nil {
			return nil, fmt.Errorf("list recent levers: %w", err)
		}
		entry.OccurredAt = fromMillis(occurredAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recent levers: %w", err)
	}
	return entries, nil
}

// GetPhaseState returns the stored phase state for one campaign.
func (s *Store) GetPhaseState(ctx context.Context, campaignID string) (storage.PhaseState, error) {
	if err := ctx.Err(); err != nil {
		return storage.PhaseState{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.PhaseState{}, fmt.Errorf("storage is not configured")
	}
	campaignID = strings.TrimSpace(campaignID)
	if campaignID == "" {
		return storage.PhaseState{}, fmt.Errorf("campaign id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT campaign_id, phase, started_at, updated_at
		   FROM phase_states
		  WHERE campaign_id = ?`,
		campaignID,
	)
	var state storage.PhaseState
	var label string
	var startedAt int64
	var updatedAt int64
	if err := row.Scan(&state.CampaignID, &label, &startedAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PhaseState{}, storage.ErrNotFound
		}
		return storage.PhaseState{}, fmt.Errorf("get phase state: %w", err)
	}
	state.Phase = pmax.PhaseFromLabel(label)
	state.StartedAt = fromMillis(startedAt)
	state.UpdatedAt = fromMillis(updatedAt)
	return state, nil
}

// SetPhaseState upserts the phase state for one campaign.
func (s *Store) SetPhaseState(ctx context.Context, state storage.PhaseState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	campaignID := strings.TrimSpace(state.CampaignID)
	if campaignID == "" {
		return fmt.Errorf("campaign id is required")
	}
	updatedAt := state.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO phase_states (campaign_id, phase, started_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (campaign_id) DO UPDATE SET
		   phase = excluded.phase,
		   started_at = excluded.started_at,
		   updated_at = excluded.updated_at`,
		campaignID,
		state.Phase.Label(),
		toMillis(state.StartedAt),
		toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("set phase state: %w", err)
	}
	return nil
}

func scanPendingChange(scan func(dest ...any) error) (storage.PendingChange, error) {
	var change storage.PendingChange
	var changeJSON string
	var reasonsJSON string
	var metricsJSON string
	var scheduledAt int64
	var status string
	var createdAt int64
	var updatedAt int64
	if err := scan(
		&change.ID,
		&change.CampaignID,
		&changeJSON,
		&reasonsJSON,
		&metricsJSON,
		&scheduledAt,
		&status,
		&change.FailureMessage,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.PendingChange{}, err
	}

	decoded, err := pmax.UnmarshalChange([]byte(changeJSON))
	if err != nil {
		return storage.PendingChange{}, fmt.Errorf("decode change: %w", err)
	}
	change.Change = decoded
	if err := json.Unmarshal([]byte(reasonsJSON), &change.Reasons); err != nil {
		return storage.PendingChange{}, fmt.Errorf("decode reasons: %w", err)
	}
	if err := json.Unmarshal([]byte(metricsJSON), &change.Metrics); err != nil {
		return storage.PendingChange{}, fmt.Errorf("decode metrics: %w", err)
	}
	change.ScheduledAt = fromMillis(scheduledAt)
	change.Status = storage.ChangeStatus(status)
	change.CreatedAt = fromMillis(createdAt)
	change.UpdatedAt = fromMillis(updatedAt)
	return change, nil
}

func isPendingChangeUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "pending_changes.id")
}

var (
	_ storage.PendingChangeStore = (*Store)(nil)
	_ storage.AuditStore         = (*Store)(nil)
	_ storage.PhaseStateStore    = (*Store)(nil)
)
