package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

// JournalRepository keeps a Postgres copy of absence requests and slot edits
// so that a restart can rebuild the in-memory state.
type JournalRepository struct {
	db *sqlx.DB
}

// NewJournalRepository constructs the repository.
func NewJournalRepository(db *sqlx.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

type absenceRow struct {
	ID                      int64          `db:"id"`
	AbsentTeacherID         int64          `db:"absent_teacher_id"`
	AbsentTeacherName       string         `db:"absent_teacher_name"`
	Day                     string         `db:"day"`
	Period                  int            `db:"period"`
	Slot                    []byte         `db:"slot"`
	Status                  string         `db:"status"`
	RequestedSubstituteID   sql.NullInt64  `db:"requested_substitute_id"`
	RequestedSubstituteName sql.NullString `db:"requested_substitute_name"`
	AssignedSubstituteID    sql.NullInt64  `db:"assigned_substitute_id"`
	AssignedSubstituteName  sql.NullString `db:"assigned_substitute_name"`
	Reasoning               sql.NullString `db:"reasoning"`
	CreatedAt               time.Time      `db:"created_at"`
	UpdatedAt               time.Time      `db:"updated_at"`
}

type slotOverrideRow struct {
	Day       string    `db:"day"`
	Period    int       `db:"period"`
	Class     string    `db:"class"`
	Slot      []byte    `db:"slot"`
	ChangedBy string    `db:"changed_by"`
	ChangedAt time.Time `db:"changed_at"`
}

// UpsertRequest stores the latest state of a request.
func (r *JournalRepository) UpsertRequest(ctx context.Context, req models.AbsenceRequest) error {
	slot, err := json.Marshal(req.Slot)
	if err != nil {
		return fmt.Errorf("marshal slot for request %d: %w", req.ID, err)
	}
	row := absenceRow{
		ID:                      req.ID,
		AbsentTeacherID:         req.AbsentTeacherID,
		AbsentTeacherName:       req.AbsentTeacherName,
		Day:                     req.Day,
		Period:                  req.Period,
		Slot:                    slot,
		Status:                  string(req.Status),
		RequestedSubstituteID:   nullInt64(req.RequestedSubstituteID),
		RequestedSubstituteName: nullString(req.RequestedSubstituteName),
		AssignedSubstituteID:    nullInt64(req.AssignedSubstituteID),
		AssignedSubstituteName:  nullString(req.AssignedSubstituteName),
		Reasoning:               nullString(req.Reasoning),
		CreatedAt:               req.Timestamp,
		UpdatedAt:               req.UpdatedAt,
	}
	const query = `INSERT INTO absence_requests
	(id, absent_teacher_id, absent_teacher_name, day, period, slot, status, requested_substitute_id, requested_substitute_name,
	 assigned_substitute_id, assigned_substitute_name, reasoning, created_at, updated_at)
	VALUES (:id, :absent_teacher_id, :absent_teacher_name, :day, :period, :slot, :status, :requested_substitute_id, :requested_substitute_name,
	 :assigned_substitute_id, :assigned_substitute_name, :reasoning, :created_at, :updated_at)
	ON CONFLICT (id) DO UPDATE SET
	 status = EXCLUDED.status,
	 requested_substitute_id = EXCLUDED.requested_substitute_id,
	 requested_substitute_name = EXCLUDED.requested_substitute_name,
	 assigned_substitute_id = EXCLUDED.assigned_substitute_id,
	 assigned_substitute_name = EXCLUDED.assigned_substitute_name,
	 reasoning = EXCLUDED.reasoning,
	 updated_at = EXCLUDED.updated_at
	WHERE absence_requests.updated_at <= EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("upsert absence request %d: %w", req.ID, err)
	}
	return nil
}

// RecordSlotChange appends a slot edit.
func (r *JournalRepository) RecordSlotChange(ctx context.Context, change models.SlotChange) error {
	slot, err := json.Marshal(change.Slot)
	if err != nil {
		return fmt.Errorf("marshal slot change: %w", err)
	}
	if change.ChangedAt.IsZero() {
		change.ChangedAt = time.Now().UTC()
	}
	row := slotOverrideRow{
		Day:       change.Day,
		Period:    change.Period,
		Class:     change.Class,
		Slot:      slot,
		ChangedBy: change.ChangedBy,
		ChangedAt: change.ChangedAt,
	}
	const query = `INSERT INTO slot_overrides (day, period, class, slot, changed_by, changed_at)
	VALUES (:day, :period, :class, :slot, :changed_by, :changed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("record slot change %s/%d/%s: %w", change.Day, change.Period, change.Class, err)
	}
	return nil
}

// ListRequests returns every journaled request ordered by id.
func (r *JournalRepository) ListRequests(ctx context.Context) ([]models.AbsenceRequest, error) {
	const query = `SELECT id, absent_teacher_id, absent_teacher_name, day, period, slot, status, requested_substitute_id,
       requested_substitute_name, assigned_substitute_id, assigned_substitute_name, reasoning, created_at, updated_at
	FROM absence_requests ORDER BY id`
	var rows []absenceRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list absence requests: %w", err)
	}
	result := make([]models.AbsenceRequest, 0, len(rows))
	for _, row := range rows {
		var slot models.TimetableSlot
		if err := json.Unmarshal(row.Slot, &slot); err != nil {
			return nil, fmt.Errorf("decode slot for request %d: %w", row.ID, err)
		}
		result = append(result, models.AbsenceRequest{
			ID:                      row.ID,
			AbsentTeacherID:         row.AbsentTeacherID,
			AbsentTeacherName:       row.AbsentTeacherName,
			Day:                     row.Day,
			Period:                  row.Period,
			Slot:                    slot,
			Status:                  models.AbsenceStatus(row.Status),
			RequestedSubstituteID:   int64Ptr(row.RequestedSubstituteID),
			RequestedSubstituteName: stringPtr(row.RequestedSubstituteName),
			AssignedSubstituteID:    int64Ptr(row.AssignedSubstituteID),
			AssignedSubstituteName:  stringPtr(row.AssignedSubstituteName),
			Reasoning:               stringPtr(row.Reasoning),
			Timestamp:               row.CreatedAt,
			UpdatedAt:               row.UpdatedAt,
		})
	}
	return result, nil
}

// ListSlotOverrides returns the latest edit per slot, oldest first.
func (r *JournalRepository) ListSlotOverrides(ctx context.Context) ([]models.SlotChange, error) {
	const query = `SELECT day, period, class, slot, changed_by, changed_at FROM (
	  SELECT DISTINCT ON (day, period, class) day, period, class, slot, changed_by, changed_at
	  FROM slot_overrides ORDER BY day, period, class, changed_at DESC
	) latest ORDER BY changed_at`
	var rows []slotOverrideRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list slot overrides: %w", err)
	}
	result := make([]models.SlotChange, 0, len(rows))
	for _, row := range rows {
		var slot models.TimetableSlot
		if err := json.Unmarshal(row.Slot, &slot); err != nil {
			return nil, fmt.Errorf("decode slot override %s/%d/%s: %w", row.Day, row.Period, row.Class, err)
		}
		result = append(result, models.SlotChange{
			Day:       row.Day,
			Period:    row.Period,
			Class:     row.Class,
			Slot:      slot,
			ChangedBy: row.ChangedBy,
			ChangedAt: row.ChangedAt,
		})
	}
	return result, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	out := v.Int64
	return &out
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	out := v.String
	return &out
}
