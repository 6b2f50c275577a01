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
	"github.com/permitworks/backend/pkg/utils"
)

// decisionRetries is how many times a deadlocked decision transaction is retried.
const decisionRetries = 3

// ApprovalService is the approval chain engine: it materializes chains from
// the workflow template, applies approver decisions, promotes levels, and
// drives the lifecycle state machine on chain completion or rejection.
//
// All mutations belonging to one decision run inside a single transaction
// with the application row locked first, then the chain rows, so two
// decisions on the same permit cannot interleave.
type ApprovalService struct {
	db            *sql.DB
	txManager     *persistence.TransactionManager
	approvals     *persistence.ApprovalRepository
	applications  *persistence.ApplicationRepository
	users         *persistence.UserRepository
	notifications *persistence.NotificationRepository
	clock         func() time.Time
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	db *sql.DB,
	txManager *persistence.TransactionManager,
	approvals *persistence.ApprovalRepository,
	applications *persistence.ApplicationRepository,
	users *persistence.UserRepository,
	notifications *persistence.NotificationRepository,
) *ApprovalService {
	return &ApprovalService{
		db:            db,
		txManager:     txManager,
		approvals:     approvals,
		applications:  applications,
		users:         users,
		notifications: notifications,
		clock:         time.Now,
	}
}

// CreateChain materializes one approval record per template slot for an
// application entering its workflow: level 1 starts PENDING, the rest
// WAITING. Runs inside the caller's transaction so chain creation commits
// atomically with the submit transition.
func (s *ApprovalService) CreateChain(ctx context.Context, tx persistence.Executor, app *models.Application, workflowID, workflowDataID string, user *models.UserSession) ([]*models.ApprovalRecord, error) {
	existing, err := s.approvals.ListByApplicationForUpdate(ctx, tx, app.ID)
	if err != nil {
		return nil, appErrors.NewDependencyError("database", err)
	}
	if len(existing) > 0 {
		return nil, appErrors.NewConflictError("approval chain", "application_id", app.ID)
	}

	slots, err := s.approvals.ListSlotsByWorkflow(ctx, tx, workflowID)
	if err != nil {
		return nil, appErrors.NewDependencyError("database", err)
	}
	if err := validateTemplate(workflowID, slots); err != nil {
		return nil, err
	}

	now := s.clock()
	records := make([]*models.ApprovalRecord, 0, len(slots))
	for _, slot := range slots {
		status := models.RecordWaiting
		if slot.Level == 1 {
			status = models.RecordPending
		}
		slotID := slot.ID
		rec := &models.ApprovalRecord{
			ID:             utils.GenerateID(),
			ApplicationID:  app.ID,
			WorkflowDataID: workflowDataID,
			SlotID:         &slotID,
			Kind:           models.SlotStandard,
			Level:          slot.Level,
			Status:         status,
			ApproverID:     slot.UserID,
			GroupID:        slot.GroupID,
			RoleName:       slot.RoleName,
			CreatedTime:    now,
			UpdatedTime:    now,
		}
		if err := s.approvals.InsertRecord(ctx, tx, rec); err != nil {
			return nil, appErrors.NewDependencyError("database", err)
		}
		records = append(records, rec)
	}

	// Tell the level-1 approver(s) work is waiting.
	if err := s.notifyAssignees(ctx, tx, records[0], app,
		"Approval required",
		fmt.Sprintf("Permit '%s' is awaiting your %s approval", app.Name, records[0].RoleName),
		now); err != nil {
		return nil, err
	}

	return records, nil
}

// Decide applies one approver decision to a chain record and, when the
// outcome warrants it, moves the permit's lifecycle status in the same
// transaction. Safe to retry: a repeated decision surfaces AlreadyDecided
// without re-running promotion or re-emitting intents.
func (s *ApprovalService) Decide(ctx context.Context, recordID string, decision models.RecordStatus, remarks string, user *models.UserSession) (*ChainOutcome, error) {
	var outcome *ChainOutcome
	err := s.txManager.WithRetry(func(tx persistence.Executor) error {
		var err error
		outcome, err = s.decideTx(ctx, tx, recordID, decision, remarks, user)
		return err
	}, decisionRetries)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *ApprovalService) decideTx(ctx context.Context, tx persistence.Executor, recordID string, decision models.RecordStatus, remarks string, user *models.UserSession) (*ChainOutcome, error) {
	rec, err := s.approvals.GetRecord(ctx, tx, recordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewNotFoundError("approval record", recordID)
		}
		return nil, appErrors.NewDependencyError("database", err)
	}

	if err := s.authorizeDecision(ctx, rec, user); err != nil {
		return nil, err
	}

	// Lock the application row first, then the chain. Every mutation path
	// takes locks in this order.
	app, err := s.applications.GetForUpdate(ctx, tx, rec.ApplicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewNotFoundError("application", rec.ApplicationID)
		}
		return nil, appErrors.NewDependencyError("database", err)
	}

	records, err := s.approvals.ListByApplicationForUpdate(ctx, tx, rec.ApplicationID)
	if err != nil {
		return nil, appErrors.NewDependencyError("database", err)
	}

	now := s.clock()
	outcome, err := advanceChain(records, recordID, decision, user, remarks, now)
	if err != nil {
		return nil, err
	}

	// Persist the decision. The status guard in the UPDATE is the optimistic
	// backstop: if another transaction decided this record between our read
	// and write, zero rows match and the loser sees AlreadyDecided.
	updated, err := s.approvals.UpdateDecision(ctx, tx, recordID, decision, user.ID, user.Name, remarks, now)
	if err != nil {
		return nil, appErrors.NewDependencyError("database", err)
	}
	if !updated {
		return nil, appErrors.NewAlreadyDecidedError(recordID, string(decision))
	}

	if outcome.NewlyPending != nil {
		promoted, err := s.approvals.Promote(ctx, tx, outcome.NewlyPending.ID, now)
		if err != nil {
			return nil, appErrors.NewDependencyError("database", err)
		}
		if promoted {
			if err := s.notifyAssignees(ctx, tx, outcome.NewlyPending, app,
				"Approval required",
				fmt.Sprintf("Permit '%s' is awaiting your %s approval", app.Name, outcome.NewlyPending.RoleName),
				now); err != nil {
				return nil, err
			}
		}
	}

	if err := s.applyOutcome(ctx, tx, outcome, app, user, now); err != nil {
		return nil, err
	}

	return outcome, nil
}

// authorizeDecision checks the caller is the record's assignee: the slot's
// user, a member of the slot's group, or for the completion-flow record a
// supervisor. Admins may decide anything.
func (s *ApprovalService) authorizeDecision(ctx context.Context, rec *models.ApprovalRecord, user *models.UserSession) error {
	if user.IsAdmin() {
		return nil
	}
	if rec.Kind == models.SlotCompletion {
		if !user.HasRole(constants.RoleSupervisor) {
			return appErrors.NewPermissionError("decide", "this completion record")
		}
		return nil
	}
	if rec.ApproverID != nil && *rec.ApproverID == user.ID {
		return nil
	}
	if rec.GroupID != nil {
		groupIDs, err := s.users.ListGroupIDs(ctx, user.ID)
		if err != nil {
			return appErrors.NewDependencyError("database", err)
		}
		for _, gid := range groupIDs {
			if gid == *rec.GroupID {
				return nil
			}
		}
	}
	return appErrors.NewPermissionError("decide", "this approval record")
}

// applyOutcome translates a chain outcome into a lifecycle transition and
// the matching applicant notification.
func (s *ApprovalService) applyOutcome(ctx context.Context, tx persistence.Executor, outcome *ChainOutcome, app *models.Application, user *models.UserSession, now time.Time) error {
	var trigger Trigger
	var title, body string

	switch {
	case outcome.Kind == OutcomeRejected:
		trigger = TriggerChainRejected
		title = "Permit rejected"
		body = fmt.Sprintf("Permit '%s' was rejected by %s", app.Name, user.Name)
	case outcome.Kind == OutcomeFullyApproved && outcome.DecidedKind == models.SlotStandard:
		trigger = TriggerChainApproved
		title = "Permit approved"
		body = fmt.Sprintf("Permit '%s' passed all approval levels", app.Name)
	case outcome.Kind == OutcomeFullyApproved && outcome.DecidedKind == models.SlotCompletion:
		trigger = TriggerJobDone
		title = "Job done confirmed"
		body = fmt.Sprintf("Permit '%s' is awaiting exit confirmation", app.Name)
	default:
		// Mid-chain approval; the lifecycle status is unchanged.
		return nil
	}

	next, err := nextStatus(app.Status, trigger)
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
		Title:       title,
		Body:        body,
	}, now); err != nil {
		return appErrors.NewDependencyError("database", err)
	}
	return nil
}

// EnsureCompletionSlot injects the completion-flow record for a permit,
// exactly once. Called inside the entry-confirmation transaction; the
// record starts PENDING and is decided by the supervisor's job-done action.
func (s *ApprovalService) EnsureCompletionSlot(ctx context.Context, tx persistence.Executor, app *models.Application, now time.Time) (*models.ApprovalRecord, error) {
	existing, err := s.approvals.GetCompletionRecord(ctx, tx, app.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewDependencyError("database", err)
	}

	if app.WorkflowDataID == nil {
		return nil, appErrors.NewConfigurationError("", "application has no bound work window")
	}

	rec := &models.ApprovalRecord{
		ID:             utils.GenerateID(),
		ApplicationID:  app.ID,
		WorkflowDataID: *app.WorkflowDataID,
		Kind:           models.SlotCompletion,
		Level:          models.CompletionSlotLevel,
		Status:         models.RecordPending,
		RoleName:       "Supervisor",
		CreatedTime:    now,
		UpdatedTime:    now,
	}
	if err := s.approvals.InsertRecord(ctx, tx, rec); err != nil {
		return nil, appErrors.NewDependencyError("database", err)
	}
	return rec, nil
}

// ListChain returns the full chain for an application ordered by level.
func (s *ApprovalService) ListChain(ctx context.Context, applicationID string) ([]*models.ApprovalRecord, error) {
	if _, err := s.applications.Get(ctx, s.db, applicationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewNotFoundError("application", applicationID)
		}
		return nil, appErrors.NewDependencyError("database", err)
	}
	records, err := s.approvals.ListByApplication(ctx, s.db, applicationID)
	if err != nil {
		return nil, appErrors.NewDependencyError("database", err)
	}
	return records, nil
}

// ListPendingForUser returns PENDING records the user may decide, directly
// assigned or through group membership.
func (s *ApprovalService) ListPendingForUser(ctx context.Context, user *models.UserSession) ([]*models.ApprovalRecord, error) {
	groupIDs, err := s.users.ListGroupIDs(ctx, user.ID)
	if err != nil {
		return nil, appErrors.NewDependencyError("database", err)
	}
	records, err := s.approvals.ListPendingForApprover(ctx, user.ID, groupIDs)
	if err != nil {
		return nil, appErrors.NewDependencyError("database", err)
	}
	return records, nil
}

// notifyAssignees enqueues one intent per assignee of a record: the slot's
// user, or every member of the slot's group.
func (s *ApprovalService) notifyAssignees(ctx context.Context, tx persistence.Executor, rec *models.ApprovalRecord, app *models.Application, title, body string, now time.Time) error {
	var recipients []string
	switch {
	case rec.ApproverID != nil:
		recipients = []string{*rec.ApproverID}
	case rec.GroupID != nil:
		members, err := s.users.ListGroupMemberIDs(ctx, tx, *rec.GroupID)
		if err != nil {
			return appErrors.NewDependencyError("database", err)
		}
		recipients = members
	}

	for _, recipient := range recipients {
		if _, err := s.notifications.Enqueue(ctx, tx, models.NotificationIntent{
			RecipientID: recipient,
			Title:       title,
			Body:        body,
		}, now); err != nil {
			return appErrors.NewDependencyError("database", err)
		}
	}
	return nil
}
