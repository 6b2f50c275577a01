package services

import (
	"time"

	"github.com/permitworks/backend/internal/domain/models"
	appErrors "github.com/permitworks/backend/pkg/errors"
)

// OutcomeKind classifies the chain-level result of one decision.
type OutcomeKind string

const (
	// OutcomeAdvanced: the decision was recorded and the chain moved on to a
	// later level (or is waiting on one that was already pending).
	OutcomeAdvanced OutcomeKind = "ADVANCED"
	// OutcomeFullyApproved: every record in the chain is now APPROVED.
	OutcomeFullyApproved OutcomeKind = "FULLY_APPROVED"
	// OutcomeRejected: the chain is terminally rejected.
	OutcomeRejected OutcomeKind = "REJECTED"
)

// ChainOutcome is the result of applying one approver decision to a chain.
type ChainOutcome struct {
	Kind OutcomeKind
	// DecidedKind is the slot kind of the record that was decided; the
	// lifecycle layer interprets a FULLY_APPROVED outcome on a COMPLETION
	// record as "job done confirmed".
	DecidedKind models.SlotKind
	// Decided is the record the decision landed on, after mutation.
	Decided *models.ApprovalRecord
	// NewlyPending is the record promoted WAITING -> PENDING by this
	// decision, nil if none.
	NewlyPending *models.ApprovalRecord
}

// advanceChain applies one approver decision to the materialized chain.
//
// records is the full chain for one application ordered ascending by level;
// the function mutates the target record (and at most the next record, for
// promotion) in memory and reports what changed. Persisting the mutations
// and emitting notification intents is the caller's apply step, so the chain
// rules stay testable without a database.
func advanceChain(records []*models.ApprovalRecord, recordID string, decision models.RecordStatus, approver *models.UserSession, remarks string, now time.Time) (*ChainOutcome, error) {
	if decision != models.RecordApproved && decision != models.RecordRejected {
		return nil, appErrors.NewValidationError("decision", "decision must be APPROVED or REJECTED")
	}

	idx := -1
	for i, rec := range records {
		if rec.ID == recordID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, appErrors.NewNotFoundError("approval record", recordID)
	}

	target := records[idx]
	switch target.Status {
	case models.RecordApproved, models.RecordRejected:
		// Retried or raced request; promotion must not re-run.
		return nil, appErrors.NewAlreadyDecidedError(target.ID, string(target.Status))
	case models.RecordWaiting:
		// A later level actioned out of order.
		return nil, appErrors.NewNotYetActionableError(target.ID, target.Level)
	}

	target.Status = decision
	target.ApproverName = approver.Name
	target.ApproverID = &approver.ID
	target.Remarks = remarks
	decidedAt := now
	target.DecidedAt = &decidedAt
	target.UpdatedTime = now

	outcome := &ChainOutcome{
		DecidedKind: target.Kind,
		Decided:     target,
	}

	if decision == models.RecordRejected {
		// Rejection short-circuits: no level is promoted past this point.
		outcome.Kind = OutcomeRejected
		return outcome, nil
	}

	// Promote the next level if it is still waiting. Advancing the
	// materialized sequence index is the only way a record leaves WAITING.
	if idx+1 < len(records) {
		next := records[idx+1]
		if next.Status == models.RecordWaiting {
			next.Status = models.RecordPending
			next.UpdatedTime = now
			outcome.NewlyPending = next
		}
	}

	for _, rec := range records {
		if rec.Status != models.RecordApproved {
			outcome.Kind = OutcomeAdvanced
			return outcome, nil
		}
	}

	outcome.Kind = OutcomeFullyApproved
	return outcome, nil
}

// validateTemplate checks that template slots form a contiguous ascending
// level sequence starting at 1. A broken template fails chain creation
// outright rather than producing a partial chain.
func validateTemplate(workflowID string, slots []*models.ApprovalTemplateSlot) error {
	if len(slots) == 0 {
		return appErrors.NewConfigurationError(workflowID, "no approval slots defined")
	}
	for i, slot := range slots {
		if slot.Level != i+1 {
			return appErrors.NewConfigurationError(workflowID, "levels must be contiguous starting at 1")
		}
		if slot.UserID == nil && slot.GroupID == nil {
			return appErrors.NewConfigurationError(workflowID, "slot has neither an approver user nor a group")
		}
		if slot.UserID != nil && slot.GroupID != nil {
			return appErrors.NewConfigurationError(workflowID, "slot approver user and group are mutually exclusive")
		}
	}
	return nil
}
