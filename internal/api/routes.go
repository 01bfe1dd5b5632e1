package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"magazyn/internal/api/middleware"
	"magazyn/internal/handlers"
	"magazyn/internal/services"
)

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.healthCheck)

	activity := services.NewActivityLogger(s.db)
	backupService := services.NewBackupService(s.db)

	authHandler := handlers.NewAuthHandler(s.db, activity)
	userHandler := handlers.NewUserHandler(s.db, activity)
	deviceHandler := handlers.NewDeviceHandler(s.db, activity)
	installationHandler := handlers.NewInstallationHandler(s.db, activity)
	messageHandler := handlers.NewMessageHandler(s.db)
	taskHandler := handlers.NewTaskHandler(s.db)
	returnHandler := handlers.NewReturnHandler(s.db, activity)
	backupHandler := handlers.NewBackupHandler(s.db, backupService, activity)
	activityHandler := handlers.NewActivityHandler(s.db)

	auth := middleware.NewAuthMiddleware(s.db)

	api := s.echo.Group("/api")
	api.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "Magazyn API", "status": "ok"})
	})
	api.GET("/health", s.healthCheck)

	// Auth
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/logout", authHandler.Logout)
	api.GET("/auth/me", authHandler.GetMe, auth.RequireUser())
	api.POST("/auth/change-password", authHandler.ChangePassword, auth.RequireUser())

	// Users. POST /users resolves the session without requiring one: the
	// handler allows an unauthenticated call only while the users table is
	// empty, and needs the actor for the admin check afterwards.
	api.POST("/users", userHandler.CreateUser, auth.Authenticate())
	api.GET("/users", userHandler.ListUsers, auth.RequireAdmin())
	api.GET("/workers", userHandler.GetWorkers, auth.RequireUser())
	api.PUT("/users/:id/role", userHandler.UpdateRole, auth.RequireAdmin())
	api.PUT("/users/:id/password", userHandler.ResetPassword, auth.RequireAdmin())
	api.DELETE("/users/:id", userHandler.DeleteUser, auth.RequireAdmin())

	// Devices
	api.POST("/devices/import", deviceHandler.Import, auth.RequireAdmin())
	api.POST("/devices/add-single", deviceHandler.AddSingle, auth.RequireAdmin())
	api.GET("/devices", deviceHandler.List, auth.RequireUser())
	api.GET("/devices/scan/:code", deviceHandler.Scan, auth.RequireUser())
	api.GET("/devices/inventory/summary", deviceHandler.InventorySummary, auth.RequireAdmin())
	api.GET("/devices/inventory/:user_id", deviceHandler.UserInventory, auth.RequireAdmin())
	api.POST("/devices/assign-multiple", deviceHandler.AssignMultiple, auth.RequireAdmin())
	api.GET("/devices/:id", deviceHandler.Get, auth.RequireUser())
	api.POST("/devices/:id/assign", deviceHandler.Assign, auth.RequireAdmin())
	api.POST("/devices/:id/restore", deviceHandler.Restore, auth.RequireAdmin())
	api.POST("/devices/:id/transfer", deviceHandler.Transfer, auth.RequireAdmin())
	api.POST("/devices/:id/mark-damaged", deviceHandler.MarkDamaged, auth.RequireUser())

	// Installations
	api.POST("/installations", installationHandler.Create, auth.RequireUser())
	api.GET("/installations", installationHandler.List, auth.RequireUser())
	api.GET("/installations/stats", installationHandler.Stats, auth.RequireUser())
	api.GET("/report/daily", installationHandler.DailyReport, auth.RequireUser())

	// Chat
	api.POST("/messages", messageHandler.Send, auth.RequireUser())
	api.GET("/messages", messageHandler.List, auth.RequireUser())

	// Tasks
	api.POST("/tasks", taskHandler.Create, auth.RequireAdmin())
	api.GET("/tasks", taskHandler.List, auth.RequireUser())
	api.GET("/tasks/reminders/check", taskHandler.Reminders, auth.RequireUser())
	api.GET("/tasks/:id", taskHandler.Get, auth.RequireUser())
	api.PUT("/tasks/:id", taskHandler.Update, auth.RequireUser())
	api.DELETE("/tasks/:id", taskHandler.Delete, auth.RequireAdmin())

	// Returns
	api.POST("/returns", returnHandler.Add, auth.RequireAdmin())
	api.POST("/returns/bulk", returnHandler.Bulk, auth.RequireAdmin())
	api.GET("/returns", returnHandler.List, auth.RequireAdmin())
	api.POST("/returns/mark-returned", returnHandler.MarkAllReturned, auth.RequireAdmin())
	api.GET("/returns/export", returnHandler.Export, auth.RequireAdminWithQueryToken())
	api.PUT("/returns/:id", returnHandler.Update, auth.RequireAdmin())
	api.DELETE("/returns/:id", returnHandler.Delete, auth.RequireAdmin())

	// Backups
	api.GET("/backup/settings", backupHandler.GetSettings, auth.RequireAdmin())
	api.POST("/backup/settings", backupHandler.SaveSettings, auth.RequireAdmin())
	api.POST("/backup/create", backupHandler.Create, auth.RequireAdmin())
	api.GET("/backup/download", backupHandler.Download, auth.RequireAdmin())
	api.GET("/backup/logs", backupHandler.Logs, auth.RequireAdmin())
	api.POST("/backup/test-email", backupHandler.TestEmail, auth.RequireAdmin())
	api.POST("/backup/test-ftp", backupHandler.TestFTP, auth.RequireAdmin())

	// Activity log
	api.GET("/activity-logs/recent", activityHandler.Recent, auth.RequireAdmin())
	api.GET("/activity-logs/user/:id", activityHandler.ByUser, auth.RequireAdmin())
	api.GET("/activity-logs/device/:serial", activityHandler.ByDevice, auth.RequireAdmin())
}
