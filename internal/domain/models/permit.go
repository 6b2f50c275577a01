package models

import (
	"database/sql"
	"time"
)

// ApplicationStatus is the permit's single aggregate lifecycle status. It is
// written only by the lifecycle state machine.
type ApplicationStatus string

const (
	StatusDraft       ApplicationStatus = "DRAFT"
	StatusSubmitted   ApplicationStatus = "SUBMITTED"
	StatusApproved    ApplicationStatus = "APPROVED"
	StatusActive      ApplicationStatus = "ACTIVE"
	StatusExitPending ApplicationStatus = "EXIT-PENDING"
	StatusCompleted   ApplicationStatus = "COMPLETED"
	StatusRejected    ApplicationStatus = "REJECTED"
)

// IsTerminal reports whether no further lifecycle transition is permitted.
func (s ApplicationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// RecordStatus is the live status of one approval record. Transitions are
// monotonic: WAITING -> PENDING -> APPROVED | REJECTED.
type RecordStatus string

const (
	RecordWaiting  RecordStatus = "WAITING"
	RecordPending  RecordStatus = "PENDING"
	RecordApproved RecordStatus = "APPROVED"
	RecordRejected RecordStatus = "REJECTED"
)

// IsTerminal reports whether the record has been decided.
func (s RecordStatus) IsTerminal() bool {
	return s == RecordApproved || s == RecordRejected
}

// SlotKind distinguishes the statically templated approval levels from the
// completion-flow sign-off slot injected after entry confirmation.
type SlotKind string

const (
	SlotStandard   SlotKind = "STANDARD"
	SlotCompletion SlotKind = "COMPLETION"
)

// CompletionSlotLevel is the level persisted for completion-flow records.
// Legacy rows used 98 as a reserved level; the value is kept for storage
// compatibility only, engine logic branches on SlotKind.
const CompletionSlotLevel = 98

// Company is a tenant owning workflows, locations and users.
type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PermitType categorizes the hazardous work a permit covers.
type PermitType struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
}

// Workflow pairs a company and permit type with an approval template.
type Workflow struct {
	ID           string `json:"id"`
	CompanyID    string `json:"company_id"`
	PermitTypeID string `json:"permit_type_id"`
	Name         string `json:"name"`
}

// Location is a physical work site.
type Location struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
}

// ApprovalTemplateSlot is one position in a workflow's fixed approval order.
// Exactly one of UserID / GroupID is set. Levels within a workflow must form
// a contiguous ascending sequence starting at 1.
type ApprovalTemplateSlot struct {
	ID         string  `json:"id"`
	CompanyID  string  `json:"company_id"`
	WorkflowID string  `json:"workflow_id"`
	UserID     *string `json:"user_id,omitempty"`
	GroupID    *string `json:"group_id,omitempty"`
	Name       string  `json:"name"`
	RoleName   string  `json:"role_name"`
	Level      int     `json:"level"`
}

// WorkflowData is the scheduled work window bound to an application. It is
// owned by the surrounding service layer; the core reads it for expiry and
// extension checks.
type WorkflowData struct {
	ID         string     `json:"id"`
	CompanyID  string     `json:"company_id"`
	WorkflowID string     `json:"workflow_id"`
	Name       string     `json:"name"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
}

// ApprovalRecord is the per-application instantiation of a template slot.
type ApprovalRecord struct {
	ID             string       `json:"id"`
	ApplicationID  string       `json:"application_id"`
	WorkflowDataID string       `json:"workflow_data_id"`
	SlotID         *string      `json:"slot_id,omitempty"`
	Kind           SlotKind     `json:"kind"`
	Level          int          `json:"level"`
	Status         RecordStatus `json:"status"`
	ApproverID     *string      `json:"approver_id,omitempty"`
	GroupID        *string      `json:"group_id,omitempty"`
	ApproverName   string       `json:"approver_name"`
	RoleName       string       `json:"role_name"`
	Remarks        string       `json:"remarks"`
	DecidedAt      *time.Time   `json:"decided_at,omitempty"`
	CreatedTime    time.Time    `json:"created_time"`
	UpdatedTime    time.Time    `json:"updated_time"`
}

// Application is a permit-to-work request.
type Application struct {
	ID             string            `json:"id"`
	PermitTypeID   string            `json:"permit_type_id"`
	WorkflowDataID *string           `json:"workflow_data_id,omitempty"`
	LocationID     string            `json:"location_id"`
	ApplicantID    string            `json:"applicant_id"`
	Name           string            `json:"name"`
	Status         ApplicationStatus `json:"status"`
	CreatedBy      string            `json:"created_by"`
	UpdatedBy      string            `json:"updated_by"`
	CreatedTime    time.Time         `json:"created_time"`
	UpdatedTime    time.Time         `json:"updated_time"`
}

// NullableTime converts a sql.NullTime to *time.Time.
func NullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
