package main

import (
	"github.com/alphazee/agencyhub/backend/internal/middleware"
	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(svc.cfg.App.CORSOrigins))
	r.MaxMultipartMemory = svc.cfg.Storage.MaxUploadMB << 20

	// Per-IP limiters for unauthenticated write endpoints
	authLimiter := middleware.NewRateLimiter(5, 10)
	submitLimiter := middleware.NewRateLimiter(1, 5)
	webhookLimiter := middleware.NewRateLimiter(10, 20)
	svc.limiters = append(svc.limiters, authLimiter, submitLimiter, webhookLimiter)

	authed := middleware.AuthRequired(svc.db)
	clientOrAdmin := middleware.RoleRequired(models.RoleClient, models.RoleAdmin)
	admin := middleware.AdminRequired()

	api := r.Group("/api")
	api.GET("/health", svc.healthHandler.CheckHealth)

	// SSE Events (public route with internal token validation)
	api.GET("/events/notifications", svc.sseHandler.StreamNotifications)

	auth := api.Group("/auth")
	{
		h := svc.authHandler
		public := auth.Group("", authLimiter.Middleware())
		public.POST("/register", h.Register)
		public.POST("/login", h.Login)
		public.POST("/refresh", h.Refresh)
		public.POST("/logout", h.Logout)
		public.POST("/forgot-password", h.ForgotPassword)
		public.POST("/reset-password", h.ResetPassword)
		public.POST("/verify-email", h.VerifyEmail)
		auth.GET("/config", h.Config)

		auth.GET("/me", authed, h.Me)
		auth.POST("/change-password", authed, h.ChangePassword)
	}

	users := api.Group("/users", authed)
	{
		h := svc.userHandler
		users.GET("/profile", h.GetProfile)
		users.PUT("/profile", h.UpdateProfile)
		users.POST("/avatar", h.UploadAvatar)
		users.GET("/identity-verification", h.GetIdentity)
		users.POST("/identity-verification", h.SubmitIdentity)

		users.GET("", admin, h.List)
		users.GET("/:id", admin, h.GetByID)
		users.PUT("/:id/status", admin, h.UpdateStatus)
	}

	projects := api.Group("/projects")
	{
		h := svc.projectHandler
		projects.GET("/types", h.ListTypes)
		projects.POST("/submit", submitLimiter.Middleware(), h.Submit)

		member := projects.Group("", authed, clientOrAdmin)
		member.GET("", h.List)
		member.GET("/:id", h.GetByID)
		member.GET("/:id/milestones", h.ListMilestones)
		member.GET("/:id/files", h.ListFiles)
		member.POST("/:id/files", h.UploadFile)
		member.DELETE("/:id/files/:fid", h.DeleteFile)

		staff := projects.Group("", authed, admin)
		staff.GET("/stats", h.Stats)
		staff.PUT("/:id/status", h.UpdateStatus)
		staff.POST("/:id/milestones", h.AddMilestone)
		staff.PUT("/:id/milestones/:mid/complete", h.CompleteMilestone)
	}

	contracts := api.Group("/contracts", authed)
	{
		h := svc.contractHandler
		member := contracts.Group("", clientOrAdmin)
		member.GET("", h.List)
		member.GET("/:id", h.GetByID)
		member.POST("/:id/sign", h.Sign)
		member.GET("/:id/download", h.Download)

		staff := contracts.Group("", admin)
		staff.GET("/stats", h.Stats)
		staff.POST("", h.Create)
		staff.PUT("/:id/send", h.Send)
		staff.PUT("/:id/activate", h.Activate)
		staff.PUT("/:id/complete", h.Complete)
		staff.PUT("/:id/cancel", h.Cancel)
	}

	payments := api.Group("/payments")
	{
		h := svc.paymentHandler
		payments.POST("/webhook", webhookLimiter.Middleware(), h.Webhook)

		member := payments.Group("", authed, clientOrAdmin)
		member.GET("", h.List)
		member.GET("/invoices", h.ListInvoices)
		member.GET("/:id", h.GetByID)
		member.POST("/:id/process", h.Process)
		member.POST("/:id/intent", h.CreateIntent)
		member.POST("/:id/confirm", h.Confirm)

		staff := payments.Group("", authed, admin)
		staff.GET("/stats", h.Stats)
		staff.POST("", h.Create)
		staff.POST("/invoices", h.CreateInvoice)
		staff.POST("/:id/refund", h.Refund)
	}

	messages := api.Group("/messages", authed)
	{
		h := svc.messageHandler
		messages.GET("", h.List)
		messages.POST("", h.Send)
		messages.GET("/unread-count", h.UnreadCount)
		messages.GET("/notifications", h.ListNotifications)
		messages.GET("/notifications/unread-count", h.NotificationCounts)
		messages.PUT("/notifications/mark-all-read", h.MarkAllNotificationsRead)
		messages.PUT("/notifications/:id/read", h.MarkNotificationRead)
		messages.GET("/:id", h.GetByID)
		messages.POST("/:id/reply", h.Reply)
		messages.PUT("/:id/read", h.MarkRead)
	}

	files := api.Group("/files", authed)
	{
		h := svc.fileHandler
		files.POST("/upload", h.Upload)
		files.GET("/download/*path", h.Download)
		files.GET("/info/*path", h.Info)
		files.DELETE("/delete/*path", h.Delete)
		files.GET("/project/:id", h.ProjectFiles)
		files.POST("/cleanup", admin, h.Cleanup)
		files.GET("/stats", admin, h.Stats)
	}

	adm := api.Group("/admin", authed, admin)
	{
		h := svc.adminHandler
		adm.GET("/dashboard", h.Dashboard)
		adm.GET("/users", h.ListUsers)
		adm.GET("/users/:id", h.GetUser)
		adm.PUT("/users/:id/status", h.UpdateUserStatus)
		adm.PUT("/users/:id/verification", h.UpdateVerification)
		adm.GET("/project-types", h.ListProjectTypes)
		adm.POST("/project-types", h.CreateProjectType)
		adm.PUT("/project-types/:id", h.UpdateProjectType)
		adm.GET("/activity-logs", svc.activityHandler.List)
		adm.POST("/system/cleanup", h.Cleanup)
		adm.POST("/system/broadcast", h.Broadcast)
		adm.GET("/settings", svc.settingsHandler.GetSettings)
		adm.PUT("/settings", svc.settingsHandler.UpdateSettings)
		adm.GET("/holiday-countries", svc.settingsHandler.HolidayCountries)
	}
}
