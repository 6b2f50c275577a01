package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/permitworks/backend/internal/infrastructure/database"
	"github.com/permitworks/backend/pkg/constants"
)

// tableDDL holds the schema, ordered so that referenced tables exist before
// the tables that point at them.
var tableDDL = []struct {
	name string
	ddl  string
}{
	{constants.TableCompany, `
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL
		)`},
	{constants.TableUser, `
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			company_id VARCHAR(36) NOT NULL,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE,
			role VARCHAR(32) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			created_time DATETIME NOT NULL,
			INDEX idx_user_company (company_id)
		)`},
	{constants.TableGroup, `
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			company_id VARCHAR(36) NOT NULL,
			name VARCHAR(255) NOT NULL
		)`},
	{constants.TableGroupMember, `
		CREATE TABLE IF NOT EXISTS %s (
			group_id VARCHAR(36) NOT NULL,
			user_id VARCHAR(36) NOT NULL,
			PRIMARY KEY (group_id, user_id),
			INDEX idx_member_user (user_id)
		)`},
	{constants.TableLocation, `
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			company_id VARCHAR(36) NOT NULL,
			name VARCHAR(255) NOT NULL
		)`},
	{constants.TablePermitType, `
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			company_id VARCHAR(36) NOT NULL,
			name VARCHAR(255) NOT NULL
		)`},
	{constants.TableWorkflow, `
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			company_id VARCHAR(36) NOT NULL,
			permit_type_id VARCHAR(36) NOT NULL,
			name VARCHAR(255) NOT NULL,
			INDEX idx_workflow_permit_type (permit_type_id)
		)`},
	{constants.TableApprovalSlot, `
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			company_id VARCHAR(36) NOT NULL,
			workflow_id VARCHAR(36) NOT NULL,
			user_id VARCHAR(36) NULL,
			group_id VARCHAR(36) NULL,
			name VARCHAR(255) NOT NULL,
			role_name VARCHAR(255) NOT NULL,
			level INT NOT NULL,
			INDEX idx_slot_workflow (workflow_id, level)
		)`},
	{constants.TableWorkflowData, `
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			company_id VARCHAR(36) NOT NULL,
			workflow_id VARCHAR(36) NOT NULL,
			name VARCHAR(255) NOT NULL,
			start_time DATETIME NULL,
			end_time DATETIME NULL,
			INDEX idx_wd_workflow (workflow_id),
			INDEX idx_wd_end_time (end_time)
		)`},
	{constants.TableApplication, `
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			permit_type_id VARCHAR(36) NOT NULL,
			workflow_data_id VARCHAR(36) NULL,
			location_id VARCHAR(36) NOT NULL,
			applicant_id VARCHAR(36) NOT NULL,
			name VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL,
			created_by VARCHAR(36) NOT NULL,
			updated_by VARCHAR(36) NOT NULL,
			created_time DATETIME NOT NULL,
			updated_time DATETIME NOT NULL,
			INDEX idx_application_status (status),
			INDEX idx_application_applicant (applicant_id)
		)`},
	{constants.TableApprovalRecord, `
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			application_id VARCHAR(36) NOT NULL,
			workflow_data_id VARCHAR(36) NOT NULL,
			slot_id VARCHAR(36) NULL,
			kind VARCHAR(16) NOT NULL,
			level INT NOT NULL,
			status VARCHAR(16) NOT NULL,
			approver_id VARCHAR(36) NULL,
			group_id VARCHAR(36) NULL,
			approver_name VARCHAR(255) NOT NULL DEFAULT '',
			role_name VARCHAR(255) NOT NULL DEFAULT '',
			remarks TEXT,
			decided_at DATETIME NULL,
			created_time DATETIME NOT NULL,
			updated_time DATETIME NOT NULL,
			INDEX idx_record_application (application_id, level),
			INDEX idx_record_status (status, approver_id)
		)`},
	{constants.TableNotification, `
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			recipient_id VARCHAR(36) NOT NULL,
			title VARCHAR(255) NOT NULL,
			body TEXT,
			status VARCHAR(16) NOT NULL,
			retry_count INT NOT NULL DEFAULT 0,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_time DATETIME NOT NULL,
			processed_time DATETIME NULL,
			INDEX idx_notification_status (status, created_time),
			INDEX idx_notification_recipient (recipient_id, created_time)
		)`},
}

// InitializeSchema creates the system tables if they do not exist.
func InitializeSchema(conn *database.Connection) error {
	log.Println("🔧 Initializing schema...")

	ctx := context.Background()
	for _, t := range tableDDL {
		if _, err := conn.ExecContext(ctx, fmt.Sprintf(t.ddl, t.name)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.name, err)
		}
	}

	log.Printf("✅ Schema ready (%d tables)", len(tableDDL))
	return nil
}
