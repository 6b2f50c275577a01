package services

import (
	"os"

	"github.com/permitworks/backend/internal/infrastructure/database"
	"github.com/permitworks/backend/internal/infrastructure/persistence"
	"github.com/permitworks/backend/pkg/constants"
	"github.com/permitworks/backend/pkg/expression"
)

// ServiceManager orchestrates all services with dependency injection
type ServiceManager struct {
	db *database.Connection

	TxManager *persistence.TransactionManager

	Users         *persistence.UserRepository
	Workflows     *persistence.WorkflowRepository
	ApplicationDB *persistence.ApplicationRepository
	ApprovalDB    *persistence.ApprovalRepository
	Outbox        *persistence.NotificationRepository

	Auth          *AuthService
	Applications  *ApplicationService
	Approvals     *ApprovalService
	Lifecycle     *LifecycleService
	Notifications *NotificationService
	Sweeper       *SweeperService
}

// NewServiceManager creates a new service manager with all dependencies wired
func NewServiceManager(conn *database.Connection) *ServiceManager {
	sm := &ServiceManager{
		db: conn,
	}
	db := conn.DB()

	// Initialize in dependency order: repositories, then services.
	sm.TxManager = persistence.NewTransactionManager(conn)
	sm.Users = persistence.NewUserRepository(db)
	sm.Workflows = persistence.NewWorkflowRepository(db)
	sm.ApplicationDB = persistence.NewApplicationRepository(db)
	sm.ApprovalDB = persistence.NewApprovalRepository(db)
	sm.Outbox = persistence.NewNotificationRepository(db)

	sm.Auth = NewAuthService(sm.Users)
	sm.Approvals = NewApprovalService(db, sm.TxManager, sm.ApprovalDB, sm.ApplicationDB, sm.Users, sm.Outbox)
	sm.Lifecycle = NewLifecycleService(db, sm.TxManager, sm.ApplicationDB, sm.ApprovalDB, sm.Workflows, sm.Outbox, sm.Approvals)
	sm.Applications = NewApplicationService(db, sm.TxManager, sm.ApplicationDB, sm.Workflows, sm.Approvals, expression.NewEngine())
	sm.Notifications = NewNotificationService(sm.Outbox, nil)
	sm.Sweeper = NewSweeperService(sm.ApplicationDB, sm.Lifecycle, sweepSchedule())

	return sm
}

func sweepSchedule() string {
	if s := os.Getenv("SWEEP_SCHEDULE"); s != "" {
		return s
	}
	return constants.DefaultSweepSchedule
}

// StartWorkers launches the expiry sweeper and the notification dispatcher.
// Call this during server startup.
func (sm *ServiceManager) StartWorkers() error {
	if err := sm.Sweeper.Start(); err != nil {
		return err
	}
	sm.Notifications.Start()
	return nil
}

// StopWorkers stops the background workers gracefully.
// Call this during server shutdown.
func (sm *ServiceManager) StopWorkers() {
	sm.Sweeper.Stop()
	sm.Notifications.Stop()
}
