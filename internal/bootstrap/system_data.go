package bootstrap

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/permitworks/backend/internal/infrastructure/database"
	"github.com/permitworks/backend/pkg/auth"
	"github.com/permitworks/backend/pkg/constants"
	"github.com/permitworks/backend/pkg/utils"
)

type seedUser struct {
	name  string
	email string
	role  string
}

var seedUsers = []seedUser{
	{"System Admin", "admin@permitworks.local", constants.RoleAdmin},
	{"Pat Applicant", "applicant@permitworks.local", constants.RoleApplicant},
	{"Alex Approver", "approver@permitworks.local", constants.RoleApprover},
	{"Sam Safety", "safety@permitworks.local", constants.RoleApprover},
	{"Gale Gate", "security@permitworks.local", constants.RoleSecurity},
	{"Sup Ervisor", "supervisor@permitworks.local", constants.RoleSupervisor},
}

// InitializeSystemData seeds a demo company, users for every role, one permit
// type with its workflow and a two-level approval template. Runs only when
// the user table is empty; an existing installation is left untouched.
func InitializeSystemData(conn *database.Connection) error {
	ctx := context.Background()

	var userCount int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", constants.TableUser)
	if err := conn.QueryRowContext(ctx, query).Scan(&userCount); err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if userCount > 0 {
		return nil
	}

	log.Println("🔧 Seeding system data...")
	now := time.Now()

	companyID := utils.GenerateID()
	if _, err := conn.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (id, name) VALUES (?, ?)", constants.TableCompany),
		companyID, "PermitWorks Demo Site"); err != nil {
		return fmt.Errorf("failed to seed company: %w", err)
	}

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "changeme123"
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash seed password: %w", err)
	}

	userIDs := make(map[string]string, len(seedUsers))
	insertUser := fmt.Sprintf(
		"INSERT INTO %s (id, company_id, name, email, role, password_hash, created_time) VALUES (?, ?, ?, ?, ?, ?, ?)",
		constants.TableUser)
	for _, u := range seedUsers {
		id := utils.GenerateID()
		userIDs[u.email] = id
		if _, err := conn.ExecContext(ctx, insertUser, id, companyID, u.name, u.email, u.role, hash, now); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", u.email, err)
		}
	}

	locationID := utils.GenerateID()
	if _, err := conn.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (id, company_id, name) VALUES (?, ?, ?)", constants.TableLocation),
		locationID, companyID, "Workshop Bay 3"); err != nil {
		return fmt.Errorf("failed to seed location: %w", err)
	}

	permitTypeID := utils.GenerateID()
	if _, err := conn.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (id, company_id, name) VALUES (?, ?, ?)", constants.TablePermitType),
		permitTypeID, companyID, "Hot Work"); err != nil {
		return fmt.Errorf("failed to seed permit type: %w", err)
	}

	workflowID := utils.GenerateID()
	if _, err := conn.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (id, company_id, permit_type_id, name) VALUES (?, ?, ?, ?)", constants.TableWorkflow),
		workflowID, companyID, permitTypeID, "Hot Work Approval"); err != nil {
		return fmt.Errorf("failed to seed workflow: %w", err)
	}

	// Two-level chain: area approver, then safety officer.
	insertSlot := fmt.Sprintf(
		"INSERT INTO %s (id, company_id, workflow_id, user_id, group_id, name, role_name, level) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		constants.TableApprovalSlot)
	slots := []struct {
		email    string
		name     string
		roleName string
		level    int
	}{
		{"approver@permitworks.local", "Area approval", "Area Approver", 1},
		{"safety@permitworks.local", "Safety approval", "Safety Officer", 2},
	}
	for _, s := range slots {
		if _, err := conn.ExecContext(ctx, insertSlot,
			utils.GenerateID(), companyID, workflowID, userIDs[s.email], nil, s.name, s.roleName, s.level); err != nil {
			return fmt.Errorf("failed to seed approval slot: %w", err)
		}
	}

	log.Printf("✅ Seeded demo data (%d users, workflow %s)", len(seedUsers), workflowID)
	return nil
}
