package services

import (
	"fmt"
	"time"

	"github.com/permitworks/backend/internal/domain/models"
	"github.com/permitworks/backend/pkg/constants"
	appErrors "github.com/permitworks/backend/pkg/errors"
)

// Trigger identifies what is asking the lifecycle state machine to move.
type Trigger string

const (
	TriggerSubmit        Trigger = "submit"
	TriggerChainApproved Trigger = "chain_approved"
	TriggerChainRejected Trigger = "chain_rejected"
	TriggerConfirmEntry  Trigger = "confirm_entry"
	TriggerJobDone       Trigger = "job_done"
	TriggerConfirmExit   Trigger = "confirm_exit"
	TriggerExpire        Trigger = "expire"
)

type transitionRule struct {
	from   []models.ApplicationStatus
	to     models.ApplicationStatus
	action string
}

// transitionTable is the whole lifecycle state machine. A trigger whose
// guard does not match the current status is refused with a typed error,
// never silently ignored.
var transitionTable = map[Trigger]transitionRule{
	TriggerSubmit: {
		from:   []models.ApplicationStatus{models.StatusDraft},
		to:     models.StatusSubmitted,
		action: "submit application",
	},
	TriggerChainApproved: {
		from:   []models.ApplicationStatus{models.StatusSubmitted, models.StatusDraft},
		to:     models.StatusApproved,
		action: "approve permit",
	},
	TriggerChainRejected: {
		from: []models.ApplicationStatus{
			models.StatusDraft, models.StatusSubmitted, models.StatusApproved,
			models.StatusActive, models.StatusExitPending,
		},
		to:     models.StatusRejected,
		action: "reject permit",
	},
	TriggerConfirmEntry: {
		from:   []models.ApplicationStatus{models.StatusApproved},
		to:     models.StatusActive,
		action: "confirm entry",
	},
	TriggerJobDone: {
		from:   []models.ApplicationStatus{models.StatusActive},
		to:     models.StatusExitPending,
		action: "confirm job done",
	},
	TriggerConfirmExit: {
		from:   []models.ApplicationStatus{models.StatusExitPending},
		to:     models.StatusCompleted,
		action: "confirm exit",
	},
	TriggerExpire: {
		from:   []models.ApplicationStatus{models.StatusActive},
		to:     models.StatusCompleted,
		action: "complete expired permit",
	},
}

// nextStatus computes the status a trigger moves the permit to, or an
// InvalidTransition error naming the required prior status.
func nextStatus(current models.ApplicationStatus, trigger Trigger) (models.ApplicationStatus, error) {
	rule, ok := transitionTable[trigger]
	if !ok {
		return "", appErrors.NewValidationError("trigger", fmt.Sprintf("unknown lifecycle trigger %q", trigger))
	}
	for _, from := range rule.from {
		if current == from {
			return rule.to, nil
		}
	}
	return "", appErrors.NewInvalidTransitionError(rule.action, string(current), expectedStatuses(rule.from))
}

func expectedStatuses(statuses []models.ApplicationStatus) string {
	out := ""
	for i, s := range statuses {
		if i > 0 {
			out += " or "
		}
		out += string(s)
	}
	return out
}

// ExtensionEligibility is the result of the read-only extension check.
type ExtensionEligibility struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// evaluateExtension decides whether a permit's work window may be extended:
// the permit must be ACTIVE, have a scheduled end time, and the current time
// must be within ExtensionWindowDays (inclusive) of that end time. Pure
// function of its inputs; no side effects.
func evaluateExtension(status models.ApplicationStatus, endTime *time.Time, now time.Time) ExtensionEligibility {
	if status != models.StatusActive {
		return ExtensionEligibility{
			Eligible: false,
			Reason:   fmt.Sprintf("permit is %s, extension requires %s", status, models.StatusActive),
		}
	}
	if endTime == nil {
		return ExtensionEligibility{Eligible: false, Reason: "permit has no scheduled end time"}
	}

	opens := endTime.AddDate(0, 0, -constants.ExtensionWindowDays)
	if now.Before(opens) {
		return ExtensionEligibility{
			Eligible: false,
			Reason:   fmt.Sprintf("opens on %s", opens.Format("2006-01-02")),
		}
	}
	return ExtensionEligibility{Eligible: true}
}
