package constants

// Table names
const (
	TableCompany        = "company"
	TablePermitType     = "permit_type"
	TableWorkflow       = "workflow"
	TableLocation       = "location"
	TableUser           = "user"
	TableGroup          = "user_group"
	TableGroupMember    = "user_group_member"
	TableApprovalSlot   = "approval_slot"
	TableWorkflowData   = "workflow_data"
	TableApplication    = "application"
	TableApprovalRecord = "approval_record"
	TableNotification   = "notification"
)

// Common field names
const (
	FieldID          = "id"
	FieldName        = "name"
	FieldEmail       = "email"
	FieldStatus      = "status"
	FieldLevel       = "level"
	FieldCreatedTime = "created_time"
	FieldUpdatedTime = "updated_time"
)

// Request context keys and headers
const (
	ContextKeyUser      = "user"
	HeaderAuthorization = "Authorization"
)

// User roles. The role gates which lifecycle actions a user may trigger.
const (
	RoleAdmin      = "admin"
	RoleApplicant  = "applicant"
	RoleApprover   = "approver"
	RoleSecurity   = "security"
	RoleSupervisor = "supervisor"
)

// Response envelope keys
const (
	ResponseError = "error"
	FieldMessage  = "message"
)

// ExtensionWindowDays is how many days before the scheduled work end time a
// permit becomes eligible for a work-window extension.
const ExtensionWindowDays = 3

// DefaultSweepSchedule is the cron spec for the expiry sweeper when
// SWEEP_SCHEDULE is not set.
const DefaultSweepSchedule = "@every 1m"

// NotificationPollInterval is the default outbox dispatcher poll interval in
// seconds (NOTIFY_POLL_SECONDS overrides).
const NotificationPollInterval = 10
