package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/permitworks/backend/internal/domain/models"
	"github.com/permitworks/backend/internal/infrastructure/persistence"
	"github.com/permitworks/backend/pkg/constants"
	appErrors "github.com/permitworks/backend/pkg/errors"
	"github.com/permitworks/backend/pkg/expression"
	"github.com/permitworks/backend/pkg/utils"
)

const defaultListLimit = 200

// CreateApplicationInput carries the intake fields for a new draft permit.
type CreateApplicationInput struct {
	PermitTypeID string `json:"permit_type_id" binding:"required"`
	LocationID   string `json:"location_id" binding:"required"`
	Name         string `json:"name" binding:"required"`
}

// SubmitApplicationInput carries the scheduled work window for submission.
type SubmitApplicationInput struct {
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

// ApplicationService handles permit application intake: drafts, submission
// into the approval pipeline, listing and draft deletion.
type ApplicationService struct {
	db           *sql.DB
	txManager    *persistence.TransactionManager
	applications *persistence.ApplicationRepository
	workflows    *persistence.WorkflowRepository
	approvalSvc  *ApprovalService
	exprEngine   *expression.Engine
	clock        func() time.Time
}

// NewApplicationService creates a new ApplicationService
func NewApplicationService(
	db *sql.DB,
	txManager *persistence.TransactionManager,
	applications *persistence.ApplicationRepository,
	workflows *persistence.WorkflowRepository,
	approvalSvc *ApprovalService,
	exprEngine *expression.Engine,
) *ApplicationService {
	return &ApplicationService{
		db:           db,
		txManager:    txManager,
		applications: applications,
		workflows:    workflows,
		approvalSvc:  approvalSvc,
		exprEngine:   exprEngine,
		clock:        time.Now,
	}
}

// Create opens a new DRAFT application for the calling user.
func (s *ApplicationService) Create(ctx context.Context, input *CreateApplicationInput, user *models.UserSession) (*models.Application, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, appErrors.NewValidationError("name", "name is required")
	}

	now := s.clock()
	app := &models.Application{
		ID:           utils.GenerateID(),
		PermitTypeID: input.PermitTypeID,
		LocationID:   input.LocationID,
		ApplicantID:  user.ID,
		Name:         strings.TrimSpace(input.Name),
		Status:       models.StatusDraft,
		CreatedBy:    user.ID,
		UpdatedBy:    user.ID,
		CreatedTime:  now,
		UpdatedTime:  now,
	}

	err := s.txManager.WithTransaction(func(tx persistence.Executor) error {
		if err := s.applications.Insert(ctx, tx, app); err != nil {
			return appErrors.NewDependencyError("database", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Submit moves a DRAFT application into its approval pipeline: the work
// window is created and bound, the status becomes SUBMITTED, and the approval
// chain is materialized from the permit type's workflow template. All of it
// commits atomically or not at all.
func (s *ApplicationService) Submit(ctx context.Context, applicationID string, input *SubmitApplicationInput, user *models.UserSession) (*models.Application, error) {
	if input.StartTime != nil && input.EndTime != nil && !input.EndTime.After(*input.StartTime) {
		return nil, appErrors.NewValidationError("end_time", "end time must be after start time")
	}

	var app *models.Application
	err := s.txManager.WithRetry(func(tx persistence.Executor) error {
		var err error
		app, err = s.applications.GetForUpdate(ctx, tx, applicationID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.NewNotFoundError("application", applicationID)
			}
			return appErrors.NewDependencyError("database", err)
		}
		if app.ApplicantID != user.ID && !user.IsAdmin() {
			return appErrors.NewPermissionError("submit", "this application")
		}

		next, err := nextStatus(app.Status, TriggerSubmit)
		if err != nil {
			return err
		}

		workflow, err := s.workflows.GetWorkflowByPermitType(ctx, tx, app.PermitTypeID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.NewConfigurationError("", fmt.Sprintf("no workflow configured for permit type %s", app.PermitTypeID))
			}
			return appErrors.NewDependencyError("database", err)
		}

		now := s.clock()
		wd := &models.WorkflowData{
			ID:         utils.GenerateID(),
			CompanyID:  workflow.CompanyID,
			WorkflowID: workflow.ID,
			Name:       app.Name,
			StartTime:  input.StartTime,
			EndTime:    input.EndTime,
		}
		if err := s.workflows.InsertWorkflowData(ctx, tx, wd); err != nil {
			return appErrors.NewDependencyError("database", err)
		}
		if err := s.applications.BindWorkflowData(ctx, tx, app.ID, wd.ID, now); err != nil {
			return appErrors.NewDependencyError("database", err)
		}
		app.WorkflowDataID = &wd.ID

		if err := s.applications.UpdateStatus(ctx, tx, app.ID, next, user.ID, now); err != nil {
			return appErrors.NewDependencyError("database", err)
		}
		app.Status = next
		app.UpdatedBy = user.ID
		app.UpdatedTime = now

		_, err = s.approvalSvc.CreateChain(ctx, tx, app, workflow.ID, wd.ID, user)
		return err
	}, decisionRetries)
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Get loads one application. Non-admins may only read their own.
func (s *ApplicationService) Get(ctx context.Context, applicationID string, user *models.UserSession) (*models.Application, error) {
	app, err := s.applications.Get(ctx, s.db, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewNotFoundError("application", applicationID)
		}
		return nil, appErrors.NewDependencyError("database", err)
	}
	if app.ApplicantID != user.ID && !user.HasRole(constants.RoleApprover, constants.RoleSecurity, constants.RoleSupervisor) {
		return nil, appErrors.NewPermissionError("read", "this application")
	}
	return app, nil
}

// List returns applications visible to the user, optionally narrowed by a
// filter expression like `status == 'ACTIVE'` evaluated per row.
func (s *ApplicationService) List(ctx context.Context, filter string, user *models.UserSession) ([]*models.Application, error) {
	var apps []*models.Application
	var err error
	if user.HasRole(constants.RoleApprover, constants.RoleSecurity, constants.RoleSupervisor) {
		apps, err = s.applications.FindAll(ctx, defaultListLimit)
	} else {
		apps, err = s.applications.FindByApplicant(ctx, user.ID, defaultListLimit)
	}
	if err != nil {
		return nil, appErrors.NewDependencyError("database", err)
	}

	if strings.TrimSpace(filter) == "" {
		return apps, nil
	}

	filtered := make([]*models.Application, 0, len(apps))
	for _, app := range apps {
		match, err := s.exprEngine.EvaluateBool(filter, filterEnv(app))
		if err != nil {
			return nil, appErrors.NewValidationError("filter", err.Error())
		}
		if match {
			filtered = append(filtered, app)
		}
	}
	return filtered, nil
}

// Delete removes an application. Only drafts may be deleted, and only by
// their owner or an admin; anything already in the pipeline is history.
func (s *ApplicationService) Delete(ctx context.Context, applicationID string, user *models.UserSession) error {
	return s.txManager.WithTransaction(func(tx persistence.Executor) error {
		app, err := s.applications.GetForUpdate(ctx, tx, applicationID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.NewNotFoundError("application", applicationID)
			}
			return appErrors.NewDependencyError("database", err)
		}
		if app.ApplicantID != user.ID && !user.IsAdmin() {
			return appErrors.NewPermissionError("delete", "this application")
		}
		if app.Status != models.StatusDraft {
			return appErrors.NewValidationError("status", "only draft applications can be deleted")
		}
		if err := s.applications.Delete(ctx, tx, applicationID); err != nil {
			return appErrors.NewDependencyError("database", err)
		}
		return nil
	})
}

func filterEnv(app *models.Application) map[string]interface{} {
	return map[string]interface{}{
		"id":             app.ID,
		"name":           app.Name,
		"status":         string(app.Status),
		"permit_type_id": app.PermitTypeID,
		"location_id":    app.LocationID,
		"applicant_id":   app.ApplicantID,
	}
}
