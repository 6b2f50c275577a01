package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/permitworks/backend/internal/domain/models"
	"github.com/permitworks/backend/pkg/constants"
)

// ApplicationRepository handles database operations for permit applications.
// The status column is only ever written through UpdateStatus so every
// lifecycle transition goes through the same stamp logic.
type ApplicationRepository struct {
	db *sql.DB
}

// NewApplicationRepository creates a new ApplicationRepository
func NewApplicationRepository(db *sql.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

const applicationColumns = "id, permit_type_id, workflow_data_id, location_id, applicant_id, name, status, created_by, updated_by, created_time, updated_time"

// Insert creates a new application row
func (r *ApplicationRepository) Insert(ctx context.Context, exec Executor, app *models.Application) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, constants.TableApplication, applicationColumns)

	_, err := exec.ExecContext(ctx, query,
		app.ID, app.PermitTypeID, app.WorkflowDataID, app.LocationID, app.ApplicantID,
		app.Name, app.Status, app.CreatedBy, app.UpdatedBy, app.CreatedTime, app.UpdatedTime)
	if err != nil {
		return fmt.Errorf("failed to insert application: %w", err)
	}
	return nil
}

// Get loads an application by ID
func (r *ApplicationRepository) Get(ctx context.Context, exec Executor, id string) (*models.Application, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", applicationColumns, constants.TableApplication)
	return r.scanApplication(exec.QueryRowContext(ctx, query, id))
}

// GetForUpdate loads an application with a row lock. Must run inside a
// transaction; it serializes all lifecycle mutations for one permit.
func (r *ApplicationRepository) GetForUpdate(ctx context.Context, tx Executor, id string) (*models.Application, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? FOR UPDATE", applicationColumns, constants.TableApplication)
	return r.scanApplication(tx.QueryRowContext(ctx, query, id))
}

// UpdateStatus writes a new lifecycle status with audit stamps.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, exec Executor, id string, status models.ApplicationStatus, updatedBy string, now time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = ?, updated_by = ?, updated_time = ? WHERE id = ?
	`, constants.TableApplication)

	_, err := exec.ExecContext(ctx, query, status, updatedBy, now, id)
	if err != nil {
		return fmt.Errorf("failed to update application status: %w", err)
	}
	return nil
}

// BindWorkflowData attaches the scheduled work window when the application
// enters its approval pipeline.
func (r *ApplicationRepository) BindWorkflowData(ctx context.Context, exec Executor, id, workflowDataID string, now time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s SET workflow_data_id = ?, updated_time = ? WHERE id = ?
	`, constants.TableApplication)

	_, err := exec.ExecContext(ctx, query, workflowDataID, now, id)
	if err != nil {
		return fmt.Errorf("failed to bind workflow data: %w", err)
	}
	return nil
}

// FindAll lists applications, newest first
func (r *ApplicationRepository) FindAll(ctx context.Context, limit int) ([]*models.Application, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s ORDER BY created_time DESC LIMIT ?
	`, applicationColumns, constants.TableApplication)

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	return r.scanApplications(rows)
}

// FindByApplicant lists one user's applications, newest first
func (r *ApplicationRepository) FindByApplicant(ctx context.Context, applicantID string, limit int) ([]*models.Application, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE applicant_id = ? ORDER BY created_time DESC LIMIT ?
	`, applicationColumns, constants.TableApplication)

	rows, err := r.db.QueryContext(ctx, query, applicantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	return r.scanApplications(rows)
}

// FindExpiredActiveIDs returns IDs of ACTIVE applications whose bound work
// window ended strictly before the given time. Used by the expiry sweeper.
func (r *ApplicationRepository) FindExpiredActiveIDs(ctx context.Context, now time.Time) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT a.id
		FROM %s a
		JOIN %s wd ON wd.id = a.workflow_data_id
		WHERE a.status = ? AND wd.end_time IS NOT NULL AND wd.end_time < ?
	`, constants.TableApplication, constants.TableWorkflowData)

	rows, err := r.db.QueryContext(ctx, query, models.StatusActive, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired applications: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan application id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes an application row. Callers enforce the draft-only rule.
func (r *ApplicationRepository) Delete(ctx context.Context, exec Executor, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", constants.TableApplication)
	_, err := exec.ExecContext(ctx, query, id)
	return err
}

func (r *ApplicationRepository) scanApplication(row *sql.Row) (*models.Application, error) {
	app := &models.Application{}
	var workflowDataID sql.NullString
	err := row.Scan(
		&app.ID, &app.PermitTypeID, &workflowDataID, &app.LocationID, &app.ApplicantID,
		&app.Name, &app.Status, &app.CreatedBy, &app.UpdatedBy, &app.CreatedTime, &app.UpdatedTime)
	if err != nil {
		return nil, err
	}
	if workflowDataID.Valid {
		app.WorkflowDataID = &workflowDataID.String
	}
	return app, nil
}

func (r *ApplicationRepository) scanApplications(rows *sql.Rows) ([]*models.Application, error) {
	apps := make([]*models.Application, 0)
	for rows.Next() {
		app := &models.Application{}
		var workflowDataID sql.NullString
		err := rows.Scan(
			&app.ID, &app.PermitTypeID, &workflowDataID, &app.LocationID, &app.ApplicantID,
			&app.Name, &app.Status, &app.CreatedBy, &app.UpdatedBy, &app.CreatedTime, &app.UpdatedTime)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		if workflowDataID.Valid {
			app.WorkflowDataID = &workflowDataID.String
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}
