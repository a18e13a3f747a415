package main

import (
	"github.com/alphazee/agencyhub/backend/internal/config"
	"github.com/alphazee/agencyhub/backend/internal/handlers"
	"github.com/alphazee/agencyhub/backend/internal/middleware"
	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/internal/services"
	"github.com/alphazee/agencyhub/backend/internal/utils"
	"github.com/alphazee/agencyhub/backend/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg         *config.Config
	db          *gorm.DB
	hub         *services.SSEHub
	taskQueue   services.TaskQueue
	worker      *services.Worker
	maintenance *services.MaintenanceService
	limiters    []*middleware.RateLimiter

	authHandler     *handlers.AuthHandler
	userHandler     *handlers.UserHandler
	projectHandler  *handlers.ProjectHandler
	contractHandler *handlers.ContractHandler
	paymentHandler  *handlers.PaymentHandler
	messageHandler  *handlers.MessageHandler
	fileHandler     *handlers.FileHandler
	adminHandler    *handlers.AdminHandler
	settingsHandler *handlers.SystemConfigHandler
	activityHandler *handlers.ActivityLogHandler
	sseHandler      *handlers.SSEHandler
	healthHandler   *handlers.HealthHandler
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	db, err := models.Open(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	if err := models.Migrate(db, &cfg.Database); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	if err := models.Seed(db); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	// Email goes through Redis when enabled, otherwise it is sent in-process
	emailService := services.NewEmailService(&cfg.Mail)
	taskQueue := services.NewTaskQueue(&cfg.Redis, emailService.Send)

	var worker *services.Worker
	if taskQueue.IsAsync() {
		worker = services.NewWorker(&cfg.Redis, emailService.Send)
		if worker != nil {
			if err := worker.Start(); err != nil {
				logger.Warn().Err(err).Msg("Failed to start email worker")
				worker = nil
			}
		}
	}

	store, err := services.NewFileStore(&cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize file storage: %v", err)
	}

	// A nil interface, not a typed nil, tells the payment service there is no gateway
	var gateway services.Gateway
	if cfg.Payment.StripeSecretKey != "" {
		gateway = services.NewStripeGateway(&cfg.Payment)
	} else {
		logger.Warn().Msg("[Payments] Stripe is not configured, card payments are disabled")
	}

	hub := services.NewSSEHub()
	mailer := services.NewMailer(taskQueue, cfg.App.FrontendURL, cfg.Business.Currency)
	notifications := services.NewNotificationService(db, hub)
	settings := services.NewSystemConfigService(db)
	holidays := services.NewHolidayService()
	rules := services.NewBusinessRules(cfg.Business, settings, holidays)
	files := services.NewFileService(db, store, cfg.Storage.MaxUploadMB)

	authService := services.NewAuthService(db, &cfg.JWT, services.NewLDAPService(&cfg.LDAP), mailer)
	userService := services.NewUserService(db, files, notifications)
	projectService := services.NewProjectService(db, files, notifications, mailer)
	contractService := services.NewContractService(db, files, rules, notifications, mailer)
	paymentService := services.NewPaymentService(db, gateway, rules, notifications)
	messageService := services.NewMessageService(db, notifications)
	adminService := services.NewAdminService(db, rules, settings, holidays, notifications)
	activityService := services.NewActivityService(db)

	if admin, created, err := authService.CreateAdminIfNotExists(cfg.App.AdminEmail, cfg.App.AdminPassword, "", ""); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	} else if created {
		logger.Info().Str("email", admin.Email).Msg("Bootstrap admin created")
	}

	maintenance := services.NewMaintenanceService(db, notifications, paymentService, rules)
	if err := maintenance.StartScheduler(); err != nil {
		logger.Warn().Err(err).Msg("Failed to start maintenance scheduler")
	}

	return &appServices{
		cfg:         cfg,
		db:          db,
		hub:         hub,
		taskQueue:   taskQueue,
		worker:      worker,
		maintenance: maintenance,

		authHandler:     handlers.NewAuthHandler(authService, &cfg.Payment),
		userHandler:     handlers.NewUserHandler(userService),
		projectHandler:  handlers.NewProjectHandler(projectService),
		contractHandler: handlers.NewContractHandler(contractService),
		paymentHandler:  handlers.NewPaymentHandler(paymentService),
		messageHandler:  handlers.NewMessageHandler(messageService, notifications),
		fileHandler:     handlers.NewFileHandler(files),
		adminHandler:    handlers.NewAdminHandler(adminService, notifications),
		settingsHandler: handlers.NewSystemConfigHandler(adminService),
		activityHandler: handlers.NewActivityLogHandler(activityService),
		sseHandler:      handlers.NewSSEHandler(hub, db),
		healthHandler:   handlers.NewHealthHandler(db, taskQueue, hub),
	}
}

// shutdown gracefully stops background work once the HTTP server has drained.
func (s *appServices) shutdown() {
	s.maintenance.StopScheduler()
	logger.Info().Msg("Maintenance scheduler stopped")

	for _, l := range s.limiters {
		l.Stop()
	}
	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		if err := s.taskQueue.Close(); err != nil {
			logger.Warnf("Task queue close: %v", err)
		}
	}
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}
