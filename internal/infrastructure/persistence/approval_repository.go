package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/permitworks/backend/internal/domain/models"
	"github.com/permitworks/backend/pkg/constants"
)

// ApprovalRepository handles the approval template slots and the
// per-application approval records. Record status writes are guarded by the
// current status in the WHERE clause so racing writers cannot both succeed.
type ApprovalRepository struct {
	db *sql.DB
}

// NewApprovalRepository creates a new ApprovalRepository
func NewApprovalRepository(db *sql.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

const slotColumns = "id, company_id, workflow_id, user_id, group_id, name, role_name, level"

const recordColumns = "id, application_id, workflow_data_id, slot_id, kind, level, status, approver_id, group_id, approver_name, role_name, remarks, decided_at, created_time, updated_time"

// ListSlotsByWorkflow returns the template slots for a workflow ordered by level.
func (r *ApprovalRepository) ListSlotsByWorkflow(ctx context.Context, exec Executor, workflowID string) ([]*models.ApprovalTemplateSlot, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE workflow_id = ? ORDER BY level ASC
	`, slotColumns, constants.TableApprovalSlot)

	rows, err := exec.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approval slots: %w", err)
	}
	defer rows.Close()

	slots := make([]*models.ApprovalTemplateSlot, 0)
	for rows.Next() {
		s := &models.ApprovalTemplateSlot{}
		var userID, groupID sql.NullString
		if err := rows.Scan(&s.ID, &s.CompanyID, &s.WorkflowID, &userID, &groupID, &s.Name, &s.RoleName, &s.Level); err != nil {
			return nil, fmt.Errorf("failed to scan approval slot: %w", err)
		}
		if userID.Valid {
			s.UserID = &userID.String
		}
		if groupID.Valid {
			s.GroupID = &groupID.String
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// InsertRecord creates one approval record
func (r *ApprovalRepository) InsertRecord(ctx context.Context, exec Executor, rec *models.ApprovalRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, constants.TableApprovalRecord, recordColumns)

	_, err := exec.ExecContext(ctx, query,
		rec.ID, rec.ApplicationID, rec.WorkflowDataID, rec.SlotID, rec.Kind, rec.Level,
		rec.Status, rec.ApproverID, rec.GroupID, rec.ApproverName, rec.RoleName, rec.Remarks,
		rec.DecidedAt, rec.CreatedTime, rec.UpdatedTime)
	if err != nil {
		return fmt.Errorf("failed to insert approval record: %w", err)
	}
	return nil
}

// GetRecord loads one approval record by ID
func (r *ApprovalRepository) GetRecord(ctx context.Context, exec Executor, id string) (*models.ApprovalRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", recordColumns, constants.TableApprovalRecord)
	return scanRecord(exec.QueryRowContext(ctx, query, id))
}

// ListByApplication returns all approval records for an application ordered
// by level (the materialized chain sequence).
func (r *ApprovalRepository) ListByApplication(ctx context.Context, exec Executor, applicationID string) ([]*models.ApprovalRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE application_id = ? ORDER BY level ASC
	`, recordColumns, constants.TableApprovalRecord)
	return r.queryRecords(ctx, exec, query, applicationID)
}

// ListByApplicationForUpdate locks and returns the full chain for an
// application. Must run inside a transaction; this is the serialization
// point for concurrent decisions on the same permit.
func (r *ApprovalRepository) ListByApplicationForUpdate(ctx context.Context, tx Executor, applicationID string) ([]*models.ApprovalRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE application_id = ? ORDER BY level ASC FOR UPDATE
	`, recordColumns, constants.TableApprovalRecord)
	return r.queryRecords(ctx, tx, query, applicationID)
}

// UpdateDecision stamps a terminal decision onto a record. The WHERE guard
// on the current PENDING status makes retried or racing decisions fail with
// zero rows affected; callers translate that into AlreadyDecided.
func (r *ApprovalRepository) UpdateDecision(ctx context.Context, exec Executor, id string, status models.RecordStatus, approverID, approverName, remarks string, decidedAt time.Time) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = ?, approver_id = ?, approver_name = ?, remarks = ?, decided_at = ?, updated_time = ?
		WHERE id = ? AND status = ?
	`, constants.TableApprovalRecord)

	res, err := exec.ExecContext(ctx, query, status, approverID, approverName, remarks, decidedAt, decidedAt, id, models.RecordPending)
	if err != nil {
		return false, fmt.Errorf("failed to update approval decision: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Promote moves a record from WAITING to PENDING. This is the only way a
// record leaves WAITING.
func (r *ApprovalRepository) Promote(ctx context.Context, exec Executor, id string, now time.Time) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET status = ?, updated_time = ? WHERE id = ? AND status = ?
	`, constants.TableApprovalRecord)

	res, err := exec.ExecContext(ctx, query, models.RecordPending, now, id, models.RecordWaiting)
	if err != nil {
		return false, fmt.Errorf("failed to promote approval record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetCompletionRecord returns the completion-flow record for an application,
// or sql.ErrNoRows if none was injected yet.
func (r *ApprovalRepository) GetCompletionRecord(ctx context.Context, exec Executor, applicationID string) (*models.ApprovalRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE application_id = ? AND kind = ?
	`, recordColumns, constants.TableApprovalRecord)
	return scanRecord(exec.QueryRowContext(ctx, query, applicationID, models.SlotCompletion))
}

// ListPendingForApprover returns PENDING records assigned to the user
// directly or through one of their groups, oldest first. Completion-flow
// records carry no assignee and are deliberately absent from this queue:
// the supervisor decides them through the job-done action, not from the
// pending list.
func (r *ApprovalRepository) ListPendingForApprover(ctx context.Context, userID string, groupIDs []string) ([]*models.ApprovalRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE status = ? AND approver_id = ?
	`, recordColumns, constants.TableApprovalRecord)
	args := []interface{}{models.RecordPending, userID}

	if len(groupIDs) > 0 {
		placeholders := ""
		for i, gid := range groupIDs {
			if i > 0 {
				placeholders += ", "
			}
			placeholders += "?"
			args = append(args, gid)
		}
		query = fmt.Sprintf(`
			SELECT %s FROM %s WHERE status = ? AND (approver_id = ? OR group_id IN (%s))
		`, recordColumns, constants.TableApprovalRecord, placeholders)
	}
	query += " ORDER BY created_time ASC"

	return r.queryRecords(ctx, r.db, query, args...)
}

func (r *ApprovalRepository) queryRecords(ctx context.Context, exec Executor, query string, args ...interface{}) ([]*models.ApprovalRecord, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query approval records: %w", err)
	}
	defer rows.Close()

	records := make([]*models.ApprovalRecord, 0)
	for rows.Next() {
		rec, err := scanRecordRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type recordScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecordFields(s recordScanner) (*models.ApprovalRecord, error) {
	rec := &models.ApprovalRecord{}
	var slotID, approverID, groupID sql.NullString
	var decidedAt sql.NullTime
	err := s.Scan(
		&rec.ID, &rec.ApplicationID, &rec.WorkflowDataID, &slotID, &rec.Kind, &rec.Level,
		&rec.Status, &approverID, &groupID, &rec.ApproverName, &rec.RoleName, &rec.Remarks,
		&decidedAt, &rec.CreatedTime, &rec.UpdatedTime)
	if err != nil {
		return nil, err
	}
	if slotID.Valid {
		rec.SlotID = &slotID.String
	}
	if approverID.Valid {
		rec.ApproverID = &approverID.String
	}
	if groupID.Valid {
		rec.GroupID = &groupID.String
	}
	rec.DecidedAt = models.NullableTime(decidedAt)
	return rec, nil
}

func scanRecord(row *sql.Row) (*models.ApprovalRecord, error) {
	return scanRecordFields(row)
}

func scanRecordRows(rows *sql.Rows) (*models.ApprovalRecord, error) {
	rec, err := scanRecordFields(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan approval record: %w", err)
	}
	return rec, nil
}
