package models

import (
	"errors"
	"fmt"

	"github.com/alphazee/agencyhub/backend/internal/config"
	"github.com/alphazee/agencyhub/backend/pkg/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the configured database. serverMode selects the gorm log level.
func Open(cfg *config.DatabaseConfig, serverMode string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	level := gormlogger.Warn
	if serverMode == "debug" {
		level = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// Required for ON DELETE CASCADE.
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	}
	return db, nil
}

// AllModels lists every table in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&UserProfile{},
		&IdentityVerification{},
		&UserSession{},
		&ProjectType{},
		&Project{},
		&ProjectMilestone{},
		&ProjectFile{},
		&Contract{},
		&ContractSignature{},
		&Payment{},
		&Invoice{},
		&Message{},
		&Notification{},
		&ActivityLog{},
		&SystemConfig{},
		&SchedulerLock{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

// Migrate brings the schema up to date using the configured strategy.
func Migrate(db *gorm.DB, cfg *config.DatabaseConfig) error {
	switch cfg.Migrations {
	case "", "auto":
		return AutoMigrate(db)
	case "sql":
		m, err := NewMigrator(cfg)
		if err != nil {
			return err
		}
		defer m.Close()
		return m.Up()
	default:
		return fmt.Errorf("unknown migrations mode: %s", cfg.Migrations)
	}
}

var defaultProjectTypes = []ProjectType{
	{Name: "Web Development", Description: "Websites and web applications", Icon: "globe", Color: "#2563eb"},
	{Name: "Mobile App", Description: "iOS and Android applications", Icon: "smartphone", Color: "#16a34a"},
	{Name: "UI/UX Design", Description: "Interface and experience design", Icon: "palette", Color: "#db2777"},
	{Name: "E-commerce", Description: "Online stores and payment integration", Icon: "shopping-cart", Color: "#ea580c"},
	{Name: "Consulting", Description: "Technical consulting and audits", Icon: "briefcase", Color: "#7c3aed"},
}

// Seed inserts the default project types and system configs when missing.
func Seed(db *gorm.DB) error {
	var typeCount int64
	if err := db.Model(&ProjectType{}).Count(&typeCount).Error; err != nil {
		return err
	}
	if typeCount == 0 {
		for _, pt := range defaultProjectTypes {
			pt.IsActive = true
			if err := db.Create(&pt).Error; err != nil {
				return err
			}
		}
		logger.Infof("[Seed] created %d project types", len(defaultProjectTypes))
	}

	for _, cfg := range DefaultSystemConfigs() {
		var existing SystemConfig
		err := db.Where(&SystemConfig{Key: cfg.Key}).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := db.Create(&cfg).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}
