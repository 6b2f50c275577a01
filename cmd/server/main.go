package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/permitworks/backend/internal/application/services"
	"github.com/permitworks/backend/internal/bootstrap"
	"github.com/permitworks/backend/internal/infrastructure/database"
	"github.com/permitworks/backend/internal/interfaces/middleware"
	"github.com/permitworks/backend/internal/interfaces/rest"
	"github.com/permitworks/backend/pkg/constants"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}

	db, err := database.GetInstance()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("✅ Database connection established")

	if err := bootstrap.InitializeSchema(db); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	if err := bootstrap.InitializeSystemData(db); err != nil {
		log.Fatalf("Failed to initialize system data: %v", err)
	}

	svcMgr := services.NewServiceManager(db)
	log.Println("🔧 Service manager initialized")

	router := gin.Default()
	router.Use(middleware.Cors())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"server": "golang",
		})
	})

	authHandler := rest.NewAuthHandler(svcMgr)
	applicationHandler := rest.NewApplicationHandler(svcMgr)
	approvalHandler := rest.NewApprovalHandler(svcMgr.Approvals)
	notificationHandler := rest.NewNotificationHandler(svcMgr)

	requireAuth := middleware.RequireAuth(svcMgr.Auth)

	api := router.Group("/api")
	{
		// Public auth routes
		api.POST("/auth/login", authHandler.Login)

		api.GET("/auth/me", requireAuth, authHandler.GetMe)
		api.GET("/server-time", requireAuth, applicationHandler.ServerTime)

		// Permit application routes
		applications := api.Group("/applications")
		applications.Use(requireAuth)
		{
			applications.POST("", applicationHandler.Create)
			applications.GET("", applicationHandler.List)
			applications.GET("/:id", applicationHandler.Get)
			applications.DELETE("/:id", applicationHandler.Delete)
			applications.POST("/:id/submit", applicationHandler.Submit)
			applications.GET("/:id/approvals", approvalHandler.GetChain)

			applications.POST("/:id/security-confirm-entry",
				middleware.RequireRole(constants.RoleSecurity), applicationHandler.ConfirmEntry)
			applications.POST("/:id/job-done",
				middleware.RequireRole(constants.RoleSupervisor), applicationHandler.JobDone)
			applications.POST("/:id/security-confirm-exit",
				middleware.RequireRole(constants.RoleSecurity), applicationHandler.ConfirmExit)

			applications.GET("/:id/check-extension-eligibility", applicationHandler.CheckExtensionEligibility)
			applications.POST("/:id/extend-end-time", applicationHandler.ExtendEndTime)
		}

		// Approval chain routes
		approvals := api.Group("/approvals")
		approvals.Use(requireAuth)
		{
			approvals.GET("/pending", approvalHandler.GetPending)
			approvals.POST("/:id/approve", approvalHandler.Approve)
			approvals.POST("/:id/reject", approvalHandler.Reject)
		}

		// Notification routes
		notifications := api.Group("/notifications")
		notifications.Use(requireAuth)
		{
			notifications.GET("", notificationHandler.List)
			notifications.POST("/:id/read", notificationHandler.MarkRead)
		}
	}

	if err := svcMgr.StartWorkers(); err != nil {
		log.Fatalf("Failed to start background workers: %v", err)
	}

	log.Println("\n═══════════════════════════════════════════════════════════════════════════")
	log.Println("🚀 PermitWorks Backend Started Successfully")
	log.Println("═══════════════════════════════════════════════════════════════════════════")
	log.Printf("\n📍 Server:         http://localhost:%s", port)
	log.Printf("🔐 Auth API:       http://localhost:%s/api/auth", port)
	log.Printf("📋 Permits API:    http://localhost:%s/api/applications", port)
	log.Printf("✅ Approvals API:  http://localhost:%s/api/approvals", port)
	log.Printf("💚 Health check:   http://localhost:%s/health\n", port)

	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	svcMgr.StopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Println("Server exiting")
}
