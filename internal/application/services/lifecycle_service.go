package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/permitworks/backend/internal/domain/models"
	"github.com/permitworks/backend/internal/infrastructure/persistence"
	"github.com/permitworks/backend/pkg/constants"
	appErrors "github.com/permitworks/backend/pkg/errors"
)

// LifecycleService owns the permit's aggregate status. Entry/exit
// confirmations, the supervisor job-done sign-off, the expiry sweep and the
// work-window extension all go through here; nothing else writes the status
// column.
type LifecycleService struct {
	db            *sql.DB
	txManager     *persistence.TransactionManager
	applications  *persistence.ApplicationRepository
	approvalRepo  *persistence.ApprovalRepository
	workflows     *persistence.WorkflowRepository
	notifications *persistence.NotificationRepository
	approvalSvc   *ApprovalService
	clock         func() time.Time
}

// NewLifecycleService creates a new LifecycleService
func NewLifecycleService(
	db *sql.DB,
	txManager *persistence.TransactionManager,
	applications *persistence.ApplicationRepository,
	approvalRepo *persistence.ApprovalRepository,
	workflows *persistence.WorkflowRepository,
	notifications *persistence.NotificationRepository,
	approvalSvc *ApprovalService,
) *LifecycleService {
	return &LifecycleService{
		db:            db,
		txManager:     txManager,
		applications:  applications,
		approvalRepo:  approvalRepo,
		workflows:     workflows,
		notifications: notifications,
		approvalSvc:   approvalSvc,
		clock:         time.Now,
	}
}

// ConfirmEntry records the security gate's entry confirmation: the permit
// goes APPROVED -> ACTIVE and the completion-flow sign-off slot is injected,
// exactly once, in the same transaction.
func (s *LifecycleService) ConfirmEntry(ctx context.Context, applicationID string, user *models.UserSession) (*models.Application, error) {
	if !user.HasRole(constants.RoleSecurity) {
		return nil, appErrors.NewPermissionError("confirm entry for", "this permit")
	}

	var app *models.Application
	err := s.txManager.WithRetry(func(tx persistence.Executor) error {
		var err error
		app, err = s.lockApplication(ctx, tx, applicationID)
		if err != nil {
			return err
		}

		now := s.clock()
		next, err := nextStatus(app.Status, TriggerConfirmEntry)
		if err != nil {
			return err
		}
		if err := s.applications.UpdateStatus(ctx, tx, app.ID, next, user.ID, now); err != nil {
			return appErrors.NewDependencyError("database", err)
		}
		app.Status = next
		app.UpdatedBy = user.ID
		app.UpdatedTime = now

		if _, err := s.approvalSvc.EnsureCompletionSlot(ctx, tx, app, now); err != nil {
			return err
		}

		if _, err := s.notifications.Enqueue(ctx, tx, models.NotificationIntent{
			RecipientID: app.ApplicantID,
			Title:       "Entry confirmed",
			Body:        fmt.Sprintf("Work under permit '%s' may begin", app.Name),
		}, now); err != nil {
			return appErrors.NewDependencyError("database", err)
		}
		return nil
	}, decisionRetries)
	if err != nil {
		return nil, err
	}
	return app, nil
}

// ConfirmJobDone records the supervisor's sign-off by deciding the
// completion-flow record through the chain engine, which moves the permit
// ACTIVE -> EXIT-PENDING. A second press surfaces AlreadyDecided.
func (s *LifecycleService) ConfirmJobDone(ctx context.Context, applicationID, remarks string, user *models.UserSession) (*models.Application, error) {
	if !user.HasRole(constants.RoleSupervisor) {
		return nil, appErrors.NewPermissionError("confirm job done for", "this permit")
	}

	var app *models.Application
	err := s.txManager.WithRetry(func(tx persistence.Executor) error {
		var err error
		app, err = s.lockApplication(ctx, tx, applicationID)
		if err != nil {
			return err
		}

		// Fail fast with the lifecycle guard before touching the chain.
		if _, err := nextStatus(app.Status, TriggerJobDone); err != nil {
			return err
		}

		rec, err := s.approvalRepo.GetCompletionRecord(ctx, tx, app.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.NewConfigurationError("", "active permit has no completion-flow record")
			}
			return appErrors.NewDependencyError("database", err)
		}

		if _, err := s.approvalSvc.decideTx(ctx, tx, rec.ID, models.RecordApproved, remarks, user); err != nil {
			return err
		}
		app.Status = models.StatusExitPending
		app.UpdatedBy = user.ID
		return nil
	}, decisionRetries)
	if err != nil {
		return nil, err
	}
	return app, nil
}

// ConfirmExit records the security gate's exit confirmation:
// EXIT-PENDING -> COMPLETED, terminal.
func (s *LifecycleService) ConfirmExit(ctx context.Context, applicationID string, user *models.UserSession) (*models.Application, error) {
	if !user.HasRole(constants.RoleSecurity) {
		return nil, appErrors.NewPermissionError("confirm exit for", "this permit")
	}

	var app *models.Application
	err := s.txManager.WithRetry(func(tx persistence.Executor) error {
		var err error
		app, err = s.lockApplication(ctx, tx, applicationID)
		if err != nil {
			return err
		}

		now := s.clock()
		next, err := nextStatus(app.Status, TriggerConfirmExit)
		if err != nil {
			return err
		}
		if err := s.applications.UpdateStatus(ctx, tx, app.ID, next, user.ID, now); err != nil {
			return appErrors.NewDependencyError("database", err)
		}
		app.Status = next
		app.UpdatedBy = user.ID
		app.UpdatedTime = now

		if _, err := s.notifications.Enqueue(ctx, tx, models.NotificationIntent{
			RecipientID: app.ApplicantID,
			Title:       "Permit completed",
			Body:        fmt.Sprintf("Exit confirmed for permit '%s'", app.Name),
		}, now); err != nil {
			return appErrors.NewDependencyError("database", err)
		}
		return nil
	}, decisionRetries)
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Complete force-completes an ACTIVE permit whose work window elapsed. Used
// by the expiry sweeper; racing with a user-triggered transition leaves the
// loser with InvalidTransition, which the sweeper treats as a no-op.
func (s *LifecycleService) Complete(ctx context.Context, applicationID string, actor *models.UserSession) error {
	return s.txManager.WithRetry(func(tx persistence.Executor) error {
		app, err := s.lockApplication(ctx, tx, applicationID)
		if err != nil {
			return err
		}

		now := s.clock()
		next, err := nextStatus(app.Status, TriggerExpire)
		if err != nil {
			return err
		}
		if err := s.applications.UpdateStatus(ctx, tx, app.ID, next, actor.ID, now); err != nil {
			return appErrors.NewDependencyError("database", err)
		}

		if _, err := s.notifications.Enqueue(ctx, tx, models.NotificationIntent{
			RecipientID: app.ApplicantID,
			Title:       "Permit completed",
			Body:        fmt.Sprintf("Permit '%s' was completed automatically: its work window has ended", app.Name),
		}, now); err != nil {
			return appErrors.NewDependencyError("database", err)
		}
		return nil
	}, decisionRetries)
}

// CheckExtensionEligibility is the read-only extension query: ACTIVE permit,
// scheduled end time, and now within the extension window. No side effects.
func (s *LifecycleService) CheckExtensionEligibility(ctx context.Context, applicationID string, now time.Time) (*ExtensionEligibility, error) {
	app, err := s.applications.Get(ctx, s.db, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewNotFoundError("application", applicationID)
		}
		return nil, appErrors.NewDependencyError("database", err)
	}

	var endTime *time.Time
	if app.WorkflowDataID != nil {
		wd, err := s.workflows.GetWorkflowData(ctx, s.db, *app.WorkflowDataID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewDependencyError("database", err)
		}
		if wd != nil {
			endTime = wd.EndTime
		}
	}

	eligibility := evaluateExtension(app.Status, endTime, now)
	return &eligibility, nil
}

// ExtendWorkWindow pushes the scheduled end time out for an eligible permit.
// The new end time must be later than the current one.
func (s *LifecycleService) ExtendWorkWindow(ctx context.Context, applicationID string, newEnd time.Time, user *models.UserSession) error {
	if !user.HasRole(constants.RoleApplicant, constants.RoleSupervisor) {
		return appErrors.NewPermissionError("extend", "this permit's work window")
	}

	return s.txManager.WithRetry(func(tx persistence.Executor) error {
		app, err := s.lockApplication(ctx, tx, applicationID)
		if err != nil {
			return err
		}
		if app.WorkflowDataID == nil {
			return appErrors.NewValidationError("workflow_data_id", "permit has no bound work window")
		}

		wd, err := s.workflows.GetWorkflowData(ctx, tx, *app.WorkflowDataID)
		if err != nil {
			return appErrors.NewDependencyError("database", err)
		}

		now := s.clock()
		eligibility := evaluateExtension(app.Status, wd.EndTime, now)
		if !eligibility.Eligible {
			return appErrors.NewValidationError("end_time", fmt.Sprintf("extension not allowed: %s", eligibility.Reason))
		}

		extended, err := s.workflows.UpdateEndTime(ctx, tx, wd.ID, newEnd)
		if err != nil {
			return appErrors.NewDependencyError("database", err)
		}
		if !extended {
			return appErrors.NewValidationError("end_time", "new end time must be later than the current one")
		}
		return nil
	}, decisionRetries)
}

// lockApplication loads an application with its row lock, mapping missing
// rows to NotFound.
func (s *LifecycleService) lockApplication(ctx context.Context, tx persistence.Executor, id string) (*models.Application, error) {
	app, err := s.applications.GetForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewNotFoundError("application", id)
		}
		return nil, appErrors.NewDependencyError("database", err)
	}
	return app, nil
}
