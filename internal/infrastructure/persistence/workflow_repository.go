package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/permitworks/backend/internal/domain/models"
	"github.com/permitworks/backend/pkg/constants"
)

// WorkflowRepository handles workflows and their scheduled work windows.
type WorkflowRepository struct {
	db *sql.DB
}

// NewWorkflowRepository creates a new WorkflowRepository
func NewWorkflowRepository(db *sql.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// GetWorkflow loads a workflow by ID
func (r *WorkflowRepository) GetWorkflow(ctx context.Context, exec Executor, id string) (*models.Workflow, error) {
	query := fmt.Sprintf(`
		SELECT id, company_id, permit_type_id, name FROM %s WHERE id = ?
	`, constants.TableWorkflow)

	w := &models.Workflow{}
	err := exec.QueryRowContext(ctx, query, id).Scan(&w.ID, &w.CompanyID, &w.PermitTypeID, &w.Name)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// GetWorkflowByPermitType finds the workflow configured for a permit type
func (r *WorkflowRepository) GetWorkflowByPermitType(ctx context.Context, exec Executor, permitTypeID string) (*models.Workflow, error) {
	query := fmt.Sprintf(`
		SELECT id, company_id, permit_type_id, name FROM %s WHERE permit_type_id = ?
	`, constants.TableWorkflow)

	w := &models.Workflow{}
	err := exec.QueryRowContext(ctx, query, permitTypeID).Scan(&w.ID, &w.CompanyID, &w.PermitTypeID, &w.Name)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// InsertWorkflowData creates a scheduled work window
func (r *WorkflowRepository) InsertWorkflowData(ctx context.Context, exec Executor, wd *models.WorkflowData) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, company_id, workflow_id, name, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?)
	`, constants.TableWorkflowData)

	_, err := exec.ExecContext(ctx, query, wd.ID, wd.CompanyID, wd.WorkflowID, wd.Name, wd.StartTime, wd.EndTime)
	if err != nil {
		return fmt.Errorf("failed to insert workflow data: %w", err)
	}
	return nil
}

// GetWorkflowData loads a work window by ID
func (r *WorkflowRepository) GetWorkflowData(ctx context.Context, exec Executor, id string) (*models.WorkflowData, error) {
	query := fmt.Sprintf(`
		SELECT id, company_id, workflow_id, name, start_time, end_time FROM %s WHERE id = ?
	`, constants.TableWorkflowData)

	wd := &models.WorkflowData{}
	var start, end sql.NullTime
	err := exec.QueryRowContext(ctx, query, id).Scan(&wd.ID, &wd.CompanyID, &wd.WorkflowID, &wd.Name, &start, &end)
	if err != nil {
		return nil, err
	}
	wd.StartTime = models.NullableTime(start)
	wd.EndTime = models.NullableTime(end)
	return wd, nil
}

// UpdateEndTime extends the scheduled work end time. The WHERE guard keeps
// the window from being shortened by a stale request.
func (r *WorkflowRepository) UpdateEndTime(ctx context.Context, exec Executor, id string, newEnd time.Time) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET end_time = ? WHERE id = ? AND (end_time IS NULL OR end_time < ?)
	`, constants.TableWorkflowData)

	res, err := exec.ExecContext(ctx, query, newEnd, id, newEnd)
	if err != nil {
		return false, fmt.Errorf("failed to extend work window: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
